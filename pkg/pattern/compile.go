package pattern

import "fmt"

// CompileOption configures Compile.
type CompileOption func(*compileConfig)

type compileConfig struct {
	logger   Logger
	optimize bool
}

// WithLogger sends compile diagnostics to l.
func WithLogger(l Logger) CompileOption {
	return func(c *compileConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithoutOptimization keeps the token sequence exactly as written. An
// implicit address record is still added when the signature has none.
func WithoutOptimization() CompileOption {
	return func(c *compileConfig) {
		c.optimize = false
	}
}

// Compile parses and optimizes a signature. Malformed input returns a
// *CompileError; Compile never panics.
func Compile(sig string, opts ...CompileOption) (*Pattern, error) {
	cfg := compileConfig{logger: NoopLogger{}, optimize: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	p := &parser{src: sig}
	tokens, err := p.parse()
	if err != nil {
		cfg.logger.Log("%v", err)
		return nil, err
	}

	if cfg.optimize {
		tokens = optimize(tokens)
	}
	tokens = ensureRecord(tokens)

	pat, err := newPattern(tokens, sig)
	if err != nil {
		cerr := &CompileError{Signature: sig, Pos: len(sig), Msg: err.Error()}
		cfg.logger.Log("%v", cerr)
		return nil, cerr
	}
	return pat, nil
}

// MustCompile is like Compile but panics on error. It is meant for
// signatures embedded in source code.
func MustCompile(sig string, opts ...CompileOption) *Pattern {
	p, err := Compile(sig, opts...)
	if err != nil {
		panic(fmt.Sprintf("pattern: Compile(%q): %v", sig, err))
	}
	return p
}
