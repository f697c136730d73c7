package pattern

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Entry is one named value of a Report.
type Entry struct {
	Name  string
	Value Value
}

// Report holds the values captured by a match, in record order. The zero
// Report is empty and means no match.
type Report struct {
	entries []Entry
}

// NewReport builds a report from entries. Later duplicates of a name are
// dropped.
func NewReport(entries ...Entry) Report {
	var r Report
	for _, e := range entries {
		if _, ok := r.Get(e.Name); !ok {
			r.entries = append(r.entries, e)
		}
	}
	return r
}

// Empty reports whether the report has no values.
func (r Report) Empty() bool {
	return len(r.entries) == 0
}

// Len returns the number of values.
func (r Report) Len() int {
	return len(r.entries)
}

// Get returns the value named name.
func (r Report) Get(name string) (Value, bool) {
	for _, e := range r.entries {
		if e.Name == name {
			return e.Value, true
		}
	}
	return Value{}, false
}

// Names returns the value names in order.
func (r Report) Names() []string {
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Name
	}
	return out
}

// Entries returns a copy of the entries in order.
func (r Report) Entries() []Entry {
	return append([]Entry(nil), r.entries...)
}

type jsonEntry struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Relative bool   `json:"relative,omitempty"`
	Value    string `json:"value"`
}

// MarshalJSON encodes the report as an ordered array.
func (r Report) MarshalJSON() ([]byte, error) {
	out := make([]jsonEntry, len(r.entries))
	for i, e := range r.entries {
		out[i] = jsonEntry{
			Name:     e.Name,
			Kind:     e.Value.Kind.String(),
			Relative: e.Value.Relative,
			Value:    e.Value.String(),
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the array form written by MarshalJSON.
func (r *Report) UnmarshalJSON(data []byte) error {
	var in []jsonEntry
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	entries := make([]Entry, 0, len(in))
	for _, je := range in {
		kind, err := ParseRecordKind(je.Kind)
		if err != nil {
			return fmt.Errorf("report entry %q: %w", je.Name, err)
		}
		raw, err := strconv.ParseUint(je.Value, 0, 64)
		if err != nil {
			return fmt.Errorf("report entry %q: %w", je.Name, err)
		}
		entries = append(entries, Entry{
			Name:  je.Name,
			Value: Value{Kind: kind, Relative: je.Relative, Raw: raw},
		})
	}
	*r = NewReport(entries...)
	return nil
}

// ParseRecordKind parses a record flag letter.
func ParseRecordKind(s string) (RecordKind, error) {
	if len(s) == 1 {
		if k, ok := recordFlags[s[0]]; ok {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown record kind %q", s)
}
