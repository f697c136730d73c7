package explore

import (
	"fmt"
	"strings"

	"github.com/praetorian-inc/sigscan/pkg/memory"
)

const (
	hexRowBytes     = 16
	hexContextBytes = 256
)

// span is a half-open byte range [start, end) at absolute addresses.
type span struct {
	start, end uint64
}

// imageFor maps stored image content so hit addresses resolve. Raw dumps
// were mapped flat at the region start, which the hit location recovers.
func imageFor(content []byte, h *hitRow) (*memory.Image, error) {
	if h.Region == "raw" {
		base := h.Location.Address.Start - uint64(h.Location.Offset.Start)
		return memory.LoadRaw(content, base, 8)
	}
	return memory.Load(content, memory.Config{})
}

// hexWindow reads up to hexContextBytes on either side of the hit from img,
// trimming the window to the readable bytes around the match.
func hexWindow(img *memory.Image, h *hitRow) (uint64, []byte) {
	match := span{h.Location.Address.Start, h.Location.Address.End}

	lo := match.start &^ (hexRowBytes - 1)
	for lo > 0 && match.start-lo < hexContextBytes && img.Readable(lo-hexRowBytes, hexRowBytes) {
		lo -= hexRowBytes
	}
	hi := match.end
	for hi-match.end < hexContextBytes && img.Readable(hi, 1) {
		hi++
	}

	data, ok := img.Read(lo, int(hi-lo))
	if !ok {
		data, ok = img.Read(match.start, int(match.end-match.start))
		if !ok {
			return match.start, nil
		}
		return match.start, data
	}
	return lo, data
}

// renderHexDump formats data loaded at base as rows of hexRowBytes, with
// the bytes inside match highlighted.
func renderHexDump(base uint64, data []byte, match span) []string {
	var lines []string
	for row := 0; row < len(data); row += hexRowBytes {
		end := min(row+hexRowBytes, len(data))
		var hexPart, asciiPart strings.Builder
		for i := row; i < row+hexRowBytes; i++ {
			if i >= end {
				hexPart.WriteString("   ")
				continue
			}
			b := data[i]
			cell := fmt.Sprintf("%02x", b)
			ch := "."
			if b >= 0x20 && b < 0x7f {
				ch = string(rune(b))
			}
			addr := base + uint64(i)
			if addr >= match.start && addr < match.end {
				cell = snippetMatchStyle.Render(cell)
				ch = snippetMatchStyle.Render(ch)
			} else {
				cell = snippetContextStyle.Render(cell)
			}
			hexPart.WriteString(cell)
			hexPart.WriteString(" ")
			asciiPart.WriteString(ch)
		}
		lines = append(lines, fmt.Sprintf("%s  %s |%s|",
			addressStyle.Render(fmt.Sprintf("%016x", base+uint64(row))),
			hexPart.String(),
			asciiPart.String()))
	}
	return lines
}

// snippetDump renders a hit's stored snippet when the image itself is not
// available.
func snippetDump(h *hitRow) []string {
	var data []byte
	data = append(data, h.Snippet.Before...)
	data = append(data, h.Snippet.Matching...)
	data = append(data, h.Snippet.After...)
	base := h.Location.Address.Start - uint64(len(h.Snippet.Before))
	return renderHexDump(base, data, span{h.Location.Address.Start, h.Location.Address.Start + uint64(len(h.Snippet.Matching))})
}
