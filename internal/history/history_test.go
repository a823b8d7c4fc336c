package history

import (
	"fmt"
	"testing"
)

func push(h *History, name string) {
	h.Push(Action{Type: "test", Description: name, Before: []byte(name + "-before"), After: []byte(name)})
}

func descriptions(h *History) []string {
	var out []string
	for _, a := range h.Actions() {
		out = append(out, a.Description)
	}
	return out
}

func TestUndoThenPushDiscardsRedoTail(t *testing.T) {
	h := New(0)
	push(h, "A")
	push(h, "B")
	push(h, "C")
	if h.Cursor() != 2 {
		t.Fatalf("cursor = %d, want 2", h.Cursor())
	}
	if a, ok := h.Undo(); !ok || a.Description != "C" {
		t.Fatalf("first undo = %v %v", a.Description, ok)
	}
	if a, ok := h.Undo(); !ok || a.Description != "B" {
		t.Fatalf("second undo = %v %v", a.Description, ok)
	}
	if h.Cursor() != 0 {
		t.Fatalf("cursor = %d, want 0", h.Cursor())
	}
	push(h, "D")
	got := descriptions(h)
	if fmt.Sprint(got) != "[A D]" {
		t.Fatalf("stack = %v, want [A D]", got)
	}
	if _, ok := h.Redo(); ok {
		t.Fatalf("redo after new edit should fail")
	}
}

func TestLinearityForAnyUndoCount(t *testing.T) {
	for n := 1; n <= 6; n++ {
		for k := 0; k < n; k++ {
			h := New(DefaultLimit)
			for i := 0; i < n; i++ {
				push(h, fmt.Sprint(i))
			}
			for i := 0; i < k; i++ {
				h.Undo()
			}
			push(h, "new")
			if h.Len() != n-k+1 {
				t.Fatalf("n=%d k=%d: len %d want %d", n, k, h.Len(), n-k+1)
			}
			if h.CanRedo() {
				t.Fatalf("n=%d k=%d: redo still possible", n, k)
			}
		}
	}
}

func TestEmptyHistoryMisses(t *testing.T) {
	h := New(3)
	if _, ok := h.Undo(); ok {
		t.Fatalf("undo on empty history succeeded")
	}
	if _, ok := h.Redo(); ok {
		t.Fatalf("redo on empty history succeeded")
	}
	if _, ok := h.Current(); ok {
		t.Fatalf("current on empty history succeeded")
	}
}

func TestLimitTrimsOldest(t *testing.T) {
	h := New(3)
	for _, s := range []string{"a", "b", "c", "d", "e"} {
		push(h, s)
	}
	if got := fmt.Sprint(descriptions(h)); got != "[c d e]" {
		t.Fatalf("got %s", got)
	}
	if h.Cursor() != 2 {
		t.Fatalf("cursor = %d", h.Cursor())
	}
}

func TestActionsFlagsFollowCursor(t *testing.T) {
	h := New(0)
	push(h, "a")
	push(h, "b")
	h.Undo()
	acts := h.Actions()
	if !acts[0].CanUndo || acts[0].CanRedo {
		t.Fatalf("first action flags wrong: %+v", acts[0])
	}
	if acts[1].CanUndo || !acts[1].CanRedo {
		t.Fatalf("second action flags wrong: %+v", acts[1])
	}
	if acts[0].ID == "" || acts[0].Timestamp.IsZero() {
		t.Fatalf("push did not fill id/timestamp")
	}
	h.Redo()
	if !h.CanUndo() || h.CanRedo() {
		t.Fatalf("redo did not advance cursor")
	}
	h.Clear()
	if h.Len() != 0 || h.CanUndo() {
		t.Fatalf("clear failed")
	}
}
