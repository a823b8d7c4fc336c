// Package history implements a bounded linear undo/redo stack over serialized
// before/after snapshots.
package history

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultLimit is the number of actions retained when no limit is configured.
const DefaultLimit = 50

// Action is one undoable edit. Before and After are opaque snapshots owned by
// the caller; the history never inspects them.
type Action struct {
	ID          string
	Type        string
	Timestamp   time.Time
	Description string
	Before      []byte
	After       []byte
	CanUndo     bool
	CanRedo     bool
}

// History is a cursor over a bounded list of actions. Entries after the cursor
// are redoable until the next Push discards them.
type History struct {
	mu      sync.Mutex
	limit   int
	actions []Action
	cursor  int // index of the last applied action, -1 when none
}

// New returns an empty history. A limit below one selects DefaultLimit.
func New(limit int) *History {
	if limit < 1 {
		limit = DefaultLimit
	}
	return &History{limit: limit, cursor: -1}
}

// Limit reports the configured capacity.
func (h *History) Limit() int { return h.limit }

// Push appends a, discarding every action beyond the cursor and trimming the
// oldest entries once the limit is exceeded. A missing ID or timestamp is
// filled in.
func (h *History) Push(a Action) Action {
	h.mu.Lock()
	defer h.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now()
	}
	h.actions = append(h.actions[:h.cursor+1], a)
	if over := len(h.actions) - h.limit; over > 0 {
		h.actions = append([]Action(nil), h.actions[over:]...)
	}
	h.cursor = len(h.actions) - 1
	return h.decorate(h.cursor)
}

// Undo steps the cursor back and returns the action that was undone.
func (h *History) Undo() (Action, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cursor < 0 {
		return Action{}, false
	}
	a := h.decorate(h.cursor)
	h.cursor--
	return a, true
}

// Redo re-applies the action after the cursor.
func (h *History) Redo() (Action, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cursor+1 >= len(h.actions) {
		return Action{}, false
	}
	h.cursor++
	return h.decorate(h.cursor), true
}

func (h *History) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cursor >= 0
}

func (h *History) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cursor+1 < len(h.actions)
}

// Cursor returns the index of the last applied action, or -1.
func (h *History) Cursor() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cursor
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.actions)
}

// Current returns the last applied action.
func (h *History) Current() (Action, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cursor < 0 {
		return Action{}, false
	}
	return h.decorate(h.cursor), true
}

// Actions returns copies of every retained action with CanUndo/CanRedo
// reflecting the cursor position.
func (h *History) Actions() []Action {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Action, len(h.actions))
	for i := range h.actions {
		out[i] = h.decorate(i)
	}
	return out
}

// Clear drops all actions.
func (h *History) Clear() {
	h.mu.Lock()
	h.actions = nil
	h.cursor = -1
	h.mu.Unlock()
}

func (h *History) decorate(i int) Action {
	a := h.actions[i]
	a.CanUndo = i <= h.cursor
	a.CanRedo = i > h.cursor
	return a
}
