//go:build wasm

package main

import (
	"encoding/json"
	"strconv"
	"sync"
	"syscall/js"

	"github.com/praetorian-inc/sigscan/pkg/scanner"
)

var (
	scanners   = make(map[int]*scanner.Core)
	scannersMu sync.RWMutex
	nextID     int
)

// newScanner creates a scanner from "builtin", a signatures YAML document
// or '/'-separated signature text.
// JS: SigscanNewScanner(signatures) -> {handle} or {error}
func newScanner(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("signatures argument required")
	}

	core, err := scanner.NewCore(args[0].String(), scanner.NoopLogger{})
	if err != nil {
		return errorResult("failed to create scanner: " + err.Error())
	}

	scannersMu.Lock()
	id := nextID
	nextID++
	scanners[id] = core
	scannersMu.Unlock()

	return map[string]interface{}{"handle": id}
}

// scan scans one image.
// JS: SigscanScan(handle, data, source?, base?, raw?) -> JSON result or {error}
//
// data is a Uint8Array or a binary string. base is a number or a string
// such as "0x7ff600000000" for addresses beyond 2^53.
func scan(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return errorResult("handle and data arguments required")
	}

	core, ok := lookup(args[0].Int())
	if !ok {
		return errorResult("invalid scanner handle")
	}

	item := scanner.ScanItem{Data: bytesOf(args[1])}
	if len(args) > 2 && args[2].Type() == js.TypeString {
		item.Source = args[2].String()
	}
	if len(args) > 3 && args[3].Truthy() {
		base, err := addressOf(args[3])
		if err != nil {
			return errorResult("invalid base: " + err.Error())
		}
		item.Base = base
	}
	if len(args) > 4 {
		item.Raw = args[4].Truthy()
	}

	result, err := core.Scan(item)
	if err != nil {
		return errorResult("scan failed: " + err.Error())
	}
	return marshal(result)
}

// scanBatch scans several images given as ScanItem JSON (data base64).
// JS: SigscanScanBatch(handle, itemsJSON) -> JSON results or {error}
func scanBatch(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return errorResult("handle and itemsJSON arguments required")
	}

	core, ok := lookup(args[0].Int())
	if !ok {
		return errorResult("invalid scanner handle")
	}

	var items []scanner.ScanItem
	if err := json.Unmarshal([]byte(args[1].String()), &items); err != nil {
		return errorResult("failed to parse items JSON: " + err.Error())
	}

	result, err := core.ScanBatch(items)
	if err != nil {
		return errorResult("batch scan failed: " + err.Error())
	}
	return marshal(result)
}

// compile compiles one signature without a scanner.
// JS: SigscanCompile(signature) -> JSON CompileResult or {error}
func compile(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("signature argument required")
	}

	result, err := scanner.CompileSignature(args[0].String(), nil)
	if err != nil {
		return errorResult(err.Error())
	}
	return marshal(result)
}

// closeScanner closes a scanner and releases resources.
// JS: SigscanCloseScanner(handle)
func closeScanner(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("handle argument required")
	}

	handle := args[0].Int()

	scannersMu.Lock()
	core, ok := scanners[handle]
	if ok {
		delete(scanners, handle)
	}
	scannersMu.Unlock()

	if !ok {
		return errorResult("invalid scanner handle")
	}

	core.Close()
	return nil
}

// getBuiltinSignatures returns the builtin signatures as JSON.
// JS: SigscanGetBuiltinSignatures() -> JSON array
func getBuiltinSignatures(this js.Value, args []js.Value) interface{} {
	sigs, err := scanner.GetBuiltinSignatures()
	if err != nil {
		return errorResult("failed to load builtin signatures: " + err.Error())
	}
	return marshal(sigs)
}

// =============================================================================
// HELPERS
// =============================================================================

func lookup(handle int) (*scanner.Core, bool) {
	scannersMu.RLock()
	defer scannersMu.RUnlock()
	core, ok := scanners[handle]
	return core, ok
}

func bytesOf(v js.Value) []byte {
	if v.Type() == js.TypeString {
		return []byte(v.String())
	}
	b := make([]byte, v.Get("length").Int())
	js.CopyBytesToGo(b, v)
	return b
}

func addressOf(v js.Value) (uint64, error) {
	if v.Type() == js.TypeString {
		return strconv.ParseUint(v.String(), 0, 64)
	}
	return uint64(v.Float()), nil
}

func marshal(v interface{}) interface{} {
	data, err := json.Marshal(v)
	if err != nil {
		return errorResult("failed to marshal result: " + err.Error())
	}
	return string(data)
}

func errorResult(msg string) map[string]interface{} {
	return map[string]interface{}{"error": msg}
}
