package serve

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/praetorian-inc/sigscan/pkg/scanner"
)

// Version is the server protocol version
const Version = "1.1.0"

// maxLineSize bounds one request line; scan payloads carry whole images.
const maxLineSize = 256 << 20

// handler decodes a payload and produces the response data.
type handler func(ctx context.Context, payload json.RawMessage) (any, error)

// errClose ends the request loop after a close request.
var errClose = errors.New("close requested")

// Server answers NDJSON requests from in with one response line each on out.
type Server struct {
	core     *scanner.Core
	in       io.Reader
	encoder  *json.Encoder
	handlers map[string]handler
}

// NewServer creates a server over core.
func NewServer(core *scanner.Core, in io.Reader, out io.Writer) *Server {
	s := &Server{
		core:    core,
		in:      in,
		encoder: json.NewEncoder(out),
	}
	s.handlers = map[string]handler{
		"scan":       s.scan,
		"scan_batch": s.scanBatch,
		"compile":    s.compile,
		"hits":       s.hits,
		"close":      func(context.Context, json.RawMessage) (any, error) { return nil, errClose },
	}
	return s
}

// Run writes the ready line and serves requests until in is exhausted, a
// close request arrives or ctx is cancelled. Requests are answered in order;
// a line that is not valid JSON gets a "decode" error response.
func (s *Server) Run(ctx context.Context) error {
	s.send(Response{Success: true, Type: "ready", Data: mustMarshal(ReadyData{
		Version:    Version,
		Signatures: s.core.Signatures(),
	})})

	lines := make(chan []byte)
	readErr := make(chan error, 1)
	stop := make(chan struct{})
	defer close(stop)

	go func() {
		defer close(lines)
		sc := bufio.NewScanner(s.in)
		sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		for sc.Scan() {
			line := append([]byte(nil), sc.Bytes()...)
			select {
			case lines <- line:
			case <-stop:
				return
			}
		}
		readErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				if err := <-readErr; err != nil {
					s.fail("decode", "", err)
				}
				return nil
			}
			if len(line) == 0 {
				continue
			}
			if s.handle(ctx, line) {
				return nil
			}
		}
	}
}

// handle answers one request line and reports whether the server should stop.
func (s *Server) handle(ctx context.Context, line []byte) bool {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		s.fail("decode", "", err)
		return false
	}

	h, ok := s.handlers[req.Type]
	if !ok {
		s.fail("unknown", req.ID, fmt.Errorf("unknown request type: %s", req.Type))
		return false
	}

	data, err := h(ctx, req.Payload)
	if errors.Is(err, errClose) {
		return true
	}
	if err != nil {
		s.fail(req.Type, req.ID, err)
		return false
	}
	s.send(Response{Success: true, Type: req.Type, ID: req.ID, Data: mustMarshal(data)})
	return false
}

// =============================================================================
// HANDLERS
// =============================================================================

func (s *Server) scan(ctx context.Context, payload json.RawMessage) (any, error) {
	var p ScanPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, err
	}
	return s.core.ScanContext(ctx, scanner.ScanItem(p))
}

func (s *Server) scanBatch(ctx context.Context, payload json.RawMessage) (any, error) {
	var p ScanBatchPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, err
	}
	return s.core.ScanBatch(p.Items)
}

func (s *Server) compile(_ context.Context, payload json.RawMessage) (any, error) {
	var p CompilePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, err
	}
	return s.core.Compile(p.Signature)
}

func (s *Server) hits(context.Context, json.RawMessage) (any, error) {
	hits, err := s.core.Hits()
	if err != nil {
		return nil, err
	}
	return HitsData{Hits: hits}, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Server) send(resp Response) {
	// a broken pipe surfaces as EOF on the next read
	_ = s.encoder.Encode(resp)
}

func (s *Server) fail(reqType, id string, err error) {
	s.send(Response{Success: false, Type: reqType, ID: id, Error: err.Error()})
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("serve: encoding %T: %v", v, err))
	}
	return data
}
