package explore

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"github.com/praetorian-inc/sigscan/pkg/store"
)

func keyPress(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// send feeds keys to the model and returns the resulting state.
func send(t *testing.T, m Model, keys ...string) Model {
	t.Helper()
	for _, k := range keys {
		next, _ := m.Update(keyPress(k))
		var ok bool
		if m, ok = next.(Model); !ok {
			t.Fatalf("unexpected model type %T", next)
		}
	}
	return m
}

func newTestModel(t *testing.T, storeImages bool) Model {
	t.Helper()
	m, err := New(seedDatastore(t, storeImages))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { m.Close() })

	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return next.(Model)
}

func TestModel_View(t *testing.T) {
	m := newTestModel(t, false)

	view := ansi.Strip(m.View())
	for _, want := range []string{"Findings (1/1)", "Frame pointer prologue", "fn=0x1002", "Signature", "Status"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected view to contain %q", want)
		}
	}
}

func TestModel_AcceptFinding(t *testing.T) {
	m := newTestModel(t, false)
	f := m.findings.selectedFinding()

	m = send(t, m, "a")
	if f.AnnotationStatus != "accept" {
		t.Fatalf("expected accept, got %q", f.AnnotationStatus)
	}
	status, _, err := m.data.store.GetAnnotation(store.AnnotationFinding, f.FindingID)
	if err != nil || status != "accept" {
		t.Errorf("expected stored accept, got %q (%v)", status, err)
	}

	// pressing again clears it
	m = send(t, m, "a")
	if f.AnnotationStatus != "" {
		t.Errorf("expected cleared status, got %q", f.AnnotationStatus)
	}
}

func TestModel_RejectHitWithComment(t *testing.T) {
	m := newTestModel(t, false)
	h := m.findings.selectedFinding().Hits[0]

	m = send(t, m, "d", "r", "c", "x", "o", "r", "enter")
	if m.activeOverlay != overlayNone {
		t.Fatalf("expected comment overlay closed, got %d", m.activeOverlay)
	}

	status, comment, err := m.data.store.GetAnnotation(store.AnnotationHit, h.StructuralID)
	if err != nil {
		t.Fatal(err)
	}
	if status != "reject" || comment != "xor" {
		t.Errorf("expected reject/xor, got %q/%q", status, comment)
	}
}

func TestModel_OpenBytes(t *testing.T) {
	t.Run("stored image", func(t *testing.T) {
		m := newTestModel(t, true)
		m = send(t, m, "o")
		if m.activeOverlay != overlayBytes {
			t.Fatal("expected bytes overlay")
		}
		if m.overlayTitle != "raw 0x1002" {
			t.Errorf("expected image title, got %q", m.overlayTitle)
		}
		if len(m.overlayLines) != 1 || !strings.Contains(ansi.Strip(m.overlayLines[0]), "cc cc 55 48 89 e5 c3") {
			t.Errorf("unexpected dump: %v", m.overlayLines)
		}

		m = send(t, m, "q")
		if m.activeOverlay != overlayNone {
			t.Error("expected overlay closed")
		}
	})

	t.Run("snippet fallback", func(t *testing.T) {
		m := newTestModel(t, false)
		m = send(t, m, "o")
		if m.overlayTitle != "Snippet" {
			t.Errorf("expected snippet title, got %q", m.overlayTitle)
		}
		if len(m.overlayLines) == 0 {
			t.Error("expected snippet dump")
		}
	})
}

func TestModel_NextUntriaged(t *testing.T) {
	rows := []*findingRow{
		{FindingID: "1", SignatureName: "A", AnnotationStatus: "accept"},
		{FindingID: "2", SignatureName: "B", AnnotationStatus: "reject"},
		{FindingID: "3", SignatureName: "C"},
	}
	fp := newFindingsPane(rows)
	if !fp.nextUntriaged() || fp.selectedFinding().FindingID != "3" {
		t.Errorf("expected cursor on untriaged finding, got %v", fp.selectedFinding())
	}

	rows[2].AnnotationStatus = "accept"
	if fp.nextUntriaged() {
		t.Error("expected no untriaged finding")
	}
}
