package explore

import (
	"slices"
	"sort"
)

type facetID int

const (
	facetSignature facetID = iota
	facetCategory
	facetRegion
	facetStatus
)

// unreviewed is the status facet value of findings without an annotation.
const unreviewed = "-"

// facetDef names a facet and extracts the values a finding carries for it.
// facetDefs is indexed by facetID.
type facetDef struct {
	ID     facetID
	Label  string
	values func(*findingRow) []string
	seed   []string // always offered, even at count zero
}

var facetDefs = []facetDef{
	{ID: facetSignature, Label: "Signature", values: func(f *findingRow) []string { return []string{f.SignatureName} }},
	{ID: facetCategory, Label: "Category", values: func(f *findingRow) []string { return f.Categories }},
	{ID: facetRegion, Label: "Region", values: func(f *findingRow) []string { return f.Regions }},
	{ID: facetStatus, Label: "Status", values: findingStatus, seed: []string{unreviewed, "accept", "reject"}},
}

func findingStatus(f *findingRow) []string {
	if f.AnnotationStatus == "" {
		return []string{unreviewed}
	}
	return []string{f.AnnotationStatus}
}

type facetValue struct {
	Value    string
	Count    int
	Selected bool
}

// facetState is the filter selection, shared by the filter pane and the
// model. Values are sorted by name within each facet.
type facetState struct {
	Values map[facetID][]*facetValue
}

func buildFacets(findings []*findingRow) *facetState {
	fs := &facetState{Values: make(map[facetID][]*facetValue, len(facetDefs))}
	for _, def := range facetDefs {
		counts := make(map[string]int)
		for _, v := range def.seed {
			counts[v] = 0
		}
		for _, f := range findings {
			for _, v := range def.values(f) {
				counts[v]++
			}
		}

		values := make([]*facetValue, 0, len(counts))
		for v, n := range counts {
			values = append(values, &facetValue{Value: v, Count: n})
		}
		sort.Slice(values, func(i, j int) bool { return values[i].Value < values[j].Value })
		fs.Values[def.ID] = values
	}
	return fs
}

func (fs *facetState) selectedValues(id facetID) map[string]bool {
	selected := make(map[string]bool)
	for _, v := range fs.Values[id] {
		if v.Selected {
			selected[v.Value] = true
		}
	}
	return selected
}

func (fs *facetState) each(fn func(*facetValue)) {
	for _, values := range fs.Values {
		for _, v := range values {
			fn(v)
		}
	}
}

func (fs *facetState) hasActiveFilters() bool {
	active := false
	fs.each(func(v *facetValue) { active = active || v.Selected })
	return active
}

func (fs *facetState) resetAll() {
	fs.each(func(v *facetValue) { v.Selected = false })
}

// matchesFinding ORs the selected values of one facet and ANDs the facets.
// A facet with nothing selected does not filter.
func (fs *facetState) matchesFinding(f *findingRow) bool {
	for _, def := range facetDefs {
		selected := fs.selectedValues(def.ID)
		if len(selected) == 0 {
			continue
		}
		if !slices.ContainsFunc(def.values(f), func(v string) bool { return selected[v] }) {
			return false
		}
	}
	return true
}

// updateCounts recounts every value over the findings that pass the
// current selection.
func (fs *facetState) updateCounts(findings []*findingRow) {
	fs.each(func(v *facetValue) { v.Count = 0 })
	for _, f := range findings {
		if !fs.matchesFinding(f) {
			continue
		}
		for _, def := range facetDefs {
			have := def.values(f)
			for _, v := range fs.Values[def.ID] {
				if slices.Contains(have, v.Value) {
					v.Count++
				}
			}
		}
	}
}
