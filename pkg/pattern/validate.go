package pattern

// validate checks quotes and back-reference nibbles of a provisional match.
// It returns the index of the first token that fails, or -1.
func (m *machine) validate() int {
	for i := range m.p.tokens {
		t := &m.p.tokens[i]
		pr := &m.prog[i]
		switch t.Kind {
		case KindQuote:
			if !m.checkQuote(t, pr) {
				return i
			}
		case KindBackref:
			if !m.checkBackref(t, pr) {
				return i
			}
		}
	}
	return -1
}

// checkQuote dereferences every pointer the token consumed and compares the
// pointed-to bytes with the quoted string.
func (m *machine) checkQuote(t *Token, pr *progress) bool {
	w := m.ptr
	for k := 0; k < pr.count; k++ {
		raw, ok := m.mem.Read(pr.start+uint64(k*w), w)
		if !ok {
			return false
		}
		target := littleEndian(raw)
		data, ok := m.mem.Read(target, len(t.Bytes))
		if !ok || string(data) != string(t.Bytes) {
			return false
		}
	}
	return true
}

// checkBackref compares every byte of a referencing token with the first
// byte of the defining token on the referenced nibble. A side that consumed
// nothing has nothing to compare.
func (m *machine) checkBackref(t *Token, pr *progress) bool {
	br := t.Backref
	if pr.count == 0 || (br.HighRef == 0 && br.LowRef == 0) {
		return true
	}
	data, ok := m.mem.Read(pr.start, pr.count)
	if !ok {
		return false
	}
	if br.HighRef != 0 && !m.nibblesAgree(br.HighRef, data, 0xF0) {
		return false
	}
	if br.LowRef != 0 && !m.nibblesAgree(br.LowRef, data, 0x0F) {
		return false
	}
	return true
}

func (m *machine) nibblesAgree(ref int, data []byte, mask byte) bool {
	def := &m.prog[m.p.defs[ref-1]]
	if def.count == 0 {
		return true
	}
	first, ok := m.mem.Read(def.start, 1)
	if !ok {
		return false
	}
	want := first[0] & mask
	for _, b := range data {
		if b&mask != want {
			return false
		}
	}
	return true
}

// littleEndian decodes up to 8 bytes.
func littleEndian(b []byte) uint64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}
