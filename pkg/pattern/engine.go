package pattern

// progress is the per-token scan position.
type progress struct {
	count int    // repetitions consumed
	start uint64 // address of the first repetition
	val   uint64 // extracted record value
}

// State is caller-owned scratch for matching. A State may be reused across
// calls and patterns but must not be shared by concurrent scans.
type State struct {
	buf   [32]progress
	extra []progress
}

// NewState returns scratch sized for p.
func (p *Pattern) NewState() *State {
	st := &State{}
	st.prepare(p.Len())
	return st
}

// prepare returns zeroed progress slots for n tokens. Patterns of up to
// 32 tokens use the inline buffer.
func (s *State) prepare(n int) []progress {
	var prog []progress
	if n <= len(s.buf) {
		prog = s.buf[:n]
	} else {
		if cap(s.extra) < n {
			s.extra = make([]progress, n)
		}
		prog = s.extra[:n]
	}
	for i := range prog {
		prog[i] = progress{}
	}
	return prog
}

// Result describes a successful match. A zero Result (empty Report) means
// no match.
type Result struct {
	Region  Region
	Address uint64 // first matched byte
	Offset  uint64 // Address - Region.Start
	Length  uint64 // bytes consumed by the match
	Report  Report
}

// machine runs one pattern over one region.
type machine struct {
	p      *Pattern
	mem    Memory
	region Region
	prog   []progress
	ptr    int
}

// Find returns the lowest offset in r at which the pattern matches and
// passes validation and extraction. Unreadable memory never matches and is
// never an error.
func (p *Pattern) Find(mem Memory, r Region, st *State) (Result, bool) {
	if !p.Valid() || mem == nil || r.Size() == 0 {
		return Result{}, false
	}
	if st == nil {
		st = &State{}
	}

	m := machine{
		p:      p,
		mem:    mem,
		region: r,
		prog:   st.prepare(len(p.tokens)),
		ptr:    mem.PointerSize(),
	}

	size := r.Size()
	for off := uint64(0); off < size; off++ {
		end, ok := m.matchAt(r.Start + off)
		if !ok {
			continue
		}
		return Result{
			Region:  r,
			Address: r.Start + off,
			Offset:  off,
			Length:  end - (r.Start + off),
			Report:  m.report(),
		}, true
	}
	return Result{}, false
}

// Scan searches regions in order and returns the first match. The Report is
// empty when no region matches.
func (p *Pattern) Scan(mem Memory, regions []Region) Result {
	return p.ScanWith(mem, regions, p.NewState())
}

// ScanWith is Scan using caller-owned scratch.
func (p *Pattern) ScanWith(mem Memory, regions []Region, st *State) Result {
	for _, r := range regions {
		if res, ok := p.Find(mem, r, st); ok && !res.Report.Empty() {
			return res
		}
	}
	return Result{}
}

// matchAt attempts a match starting at pos. Each token first consumes its
// minimum count in one block; backtracking into a token extends it by one
// repetition at a time.
func (m *machine) matchAt(pos uint64) (uint64, bool) {
	tokens := m.p.tokens
	prog := m.prog
	for i := range prog {
		prog[i] = progress{}
	}

	i := 0
	cur := pos
	forward := true
	for {
		if i < 0 {
			return 0, false
		}

		if i == len(tokens) {
			bad := m.validate()
			if bad < 0 {
				bad = m.extract()
			}
			if bad < 0 {
				return cur, true
			}
			for j := bad; j < len(prog); j++ {
				prog[j].count = 0
			}
			cur = prog[bad].start
			i = bad - 1
			forward = false
			continue
		}

		t := &tokens[i]
		pr := &prog[i]
		w := t.width(m.ptr)

		if forward {
			pr.start = cur
			pr.count = 0
			if t.Range.Min > 0 && w > 0 {
				n := satMul(t.Range.Min, w)
				if uint64(n) > m.region.End-cur {
					// End-of-region cutoff: a minimum block that
					// crosses the region end abandons this offset,
					// even if fewer earlier repetitions would fit.
					return 0, false
				}
				if !m.test(t, cur, t.Range.Min) {
					forward = false
					i--
					continue
				}
				cur += uint64(n)
			}
			pr.count = t.Range.Min
			i++
			continue
		}

		if w == 0 || pr.count >= t.Range.Max {
			cur = pr.start
			pr.count = 0
			i--
			continue
		}
		next := pr.start + uint64(pr.count)*uint64(w)
		if uint64(w) > m.region.End-next || !m.test(t, next, 1) {
			cur = pr.start
			pr.count = 0
			i--
			continue
		}
		pr.count++
		cur = next + uint64(w)
		forward = true
		i++
	}
}

// test checks count repetitions of t at addr.
func (m *machine) test(t *Token, addr uint64, count int) bool {
	w := t.width(m.ptr)
	n := count * w
	switch t.Kind {
	case KindDot, KindQuote:
		return m.mem.Readable(addr, uint64(n))
	case KindLiteral:
		data, ok := m.mem.Read(addr, n)
		if !ok {
			return false
		}
		for off := 0; off < n; off += w {
			if string(data[off:off+w]) != string(t.Bytes) {
				return false
			}
		}
		return true
	case KindClass, KindBackref:
		data, ok := m.mem.Read(addr, n)
		if !ok {
			return false
		}
		for _, b := range data {
			if !t.Class.Has(b) {
				return false
			}
		}
		return true
	default:
		return true
	}
}
