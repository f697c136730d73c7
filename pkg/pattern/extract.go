package pattern

import "fmt"

// Value is a typed value captured by a record.
type Value struct {
	Kind     RecordKind
	Relative bool
	Raw      uint64
}

// Uint64 returns the raw value.
func (v Value) Uint64() uint64 {
	return v.Raw
}

// Int64 returns the value sign-extended from the width of its kind.
func (v Value) Int64() int64 {
	switch v.Kind {
	case RecordDword:
		return int64(int32(v.Raw))
	case RecordWord:
		return int64(int16(v.Raw))
	case RecordByte:
		return int64(int8(v.Raw))
	default:
		return int64(v.Raw)
	}
}

func (v Value) String() string {
	return fmt.Sprintf("%#x", v.Raw)
}

// extract computes every record value of a provisional match into the
// progress slots. It returns the index of a record that cannot be read or
// disagrees with an earlier record of the same name, or -1.
func (m *machine) extract() int {
	for i := range m.p.tokens {
		t := &m.p.tokens[i]
		if t.Kind != KindRecord {
			continue
		}
		pr := &m.prog[i]
		v, ok := m.recordValue(t, pr.start)
		if !ok {
			return i
		}
		pr.val = v

		name := m.p.names[i]
		for j := 0; j < i; j++ {
			if m.p.names[j] == name && m.prog[j].val != v {
				return i
			}
		}
	}
	return -1
}

func (m *machine) recordValue(t *Token, pos uint64) (uint64, bool) {
	var v uint64
	switch t.Value {
	case RecordAddress:
		v = pos
	case RecordCall:
		raw, ok := m.mem.Read(pos, 4)
		if !ok {
			return 0, false
		}
		disp := int32(littleEndian(raw))
		v = pos + 4 + uint64(int64(disp))
	default:
		raw, ok := m.mem.Read(pos, t.Value.Size())
		if !ok {
			return 0, false
		}
		v = littleEndian(raw)
	}
	if t.Relative {
		v -= m.region.Start
	}
	return v, true
}

// report builds the Report of an accepted match. Same-named records appear
// once, at the position of the first.
func (m *machine) report() Report {
	entries := make([]Entry, 0, len(m.p.names))
	for i, name := range m.p.names {
		if name == "" {
			continue
		}
		dup := false
		for _, e := range entries {
			if e.Name == name {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		t := &m.p.tokens[i]
		entries = append(entries, Entry{
			Name:  name,
			Value: Value{Kind: t.Value, Relative: t.Relative, Raw: m.prog[i].val},
		})
	}
	return Report{entries: entries}
}
