// Package events is the publish/subscribe boundary between the editing engine
// and UI collaborators. The engine publishes; subscribers never call back in
// through the bus.
package events

import (
	"image"
	"sync"
)

// Event is implemented by every event variant in this package. The set is
// closed so subscribers can switch over it exhaustively.
type Event interface {
	Name() string
	isEvent()
}

// NodeRef identifies a scene node in events without importing the scene package.
type NodeRef string

type ToolChanged struct{ From, To string }

type SelectionChanged struct {
	Kind   string
	Bounds image.Rectangle
}

type SelectionCleared struct{}

type NodeSelected struct{ Node NodeRef }

type ItemMoved struct {
	Node NodeRef
	X, Y float64
}

type ItemResized struct {
	Node          NodeRef
	Width, Height float64
}

// ActionPerformed fires after every history change: push, undo or redo.
type ActionPerformed struct {
	Action      string
	Description string
	CanUndo     bool
	CanRedo     bool
}

// ImageLoaded reports the outcome of loading the base image. Err is set when
// decoding failed; the scene is unchanged in that case.
type ImageLoaded struct {
	Width, Height int
	Err           error
}

type TextAdded struct{ Node NodeRef }

type TextEdited struct {
	Node NodeRef
	Text string
}

type StickerAdded struct {
	Node  NodeRef
	Asset string
}

type WatermarkAdded struct {
	Node  NodeRef
	Asset string
}

type FilterApplied struct{ Filter string }

type BackgroundRemoved struct {
	Success bool
	Err     error
}

type ObjectRemoved struct {
	Success bool
	Err     error
}

type Exported struct {
	Format string
	Size   int
}

func (ToolChanged) Name() string       { return "tool-changed" }
func (SelectionChanged) Name() string  { return "selection-changed" }
func (SelectionCleared) Name() string  { return "selection-cleared" }
func (NodeSelected) Name() string      { return "node-selected" }
func (ItemMoved) Name() string         { return "item-moved" }
func (ItemResized) Name() string       { return "item-resized" }
func (ActionPerformed) Name() string   { return "action-performed" }
func (ImageLoaded) Name() string       { return "image-loaded" }
func (TextAdded) Name() string         { return "text-added" }
func (TextEdited) Name() string        { return "text-edited" }
func (StickerAdded) Name() string      { return "sticker-added" }
func (WatermarkAdded) Name() string    { return "watermark-added" }
func (FilterApplied) Name() string     { return "filter-applied" }
func (BackgroundRemoved) Name() string { return "background-removed" }
func (ObjectRemoved) Name() string     { return "object-removed" }
func (Exported) Name() string          { return "exported" }

func (ToolChanged) isEvent()       {}
func (SelectionChanged) isEvent()  {}
func (SelectionCleared) isEvent()  {}
func (NodeSelected) isEvent()      {}
func (ItemMoved) isEvent()         {}
func (ItemResized) isEvent()       {}
func (ActionPerformed) isEvent()   {}
func (ImageLoaded) isEvent()       {}
func (TextAdded) isEvent()         {}
func (TextEdited) isEvent()        {}
func (StickerAdded) isEvent()      {}
func (WatermarkAdded) isEvent()    {}
func (FilterApplied) isEvent()     {}
func (BackgroundRemoved) isEvent() {}
func (ObjectRemoved) isEvent()     {}
func (Exported) isEvent()          {}

type subscriber struct {
	id uint64
	fn func(Event)
}

// Bus delivers events to subscribers synchronously in subscription order.
// A nil *Bus is valid and drops everything.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []subscriber
}

// NewBus creates an empty bus.
func NewBus() *Bus { return &Bus{} }

// Subscribe registers fn and returns a function that removes it.
func (b *Bus) Subscribe(fn func(Event)) (unsubscribe func()) {
	if b == nil || fn == nil {
		return func() {}
	}
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscriber{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.subs {
				if s.id == id {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Channel returns a buffered channel fed with every event. Events are dropped
// when the buffer is full so a slow reader never blocks the engine.
func (b *Bus) Channel(size int) (<-chan Event, func()) {
	if size < 1 {
		size = 1
	}
	ch := make(chan Event, size)
	var mu sync.Mutex
	closed := false
	unsub := b.Subscribe(func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- ev:
		default:
		}
	})
	return ch, func() {
		unsub()
		mu.Lock()
		if !closed {
			closed = true
			close(ch)
		}
		mu.Unlock()
	}
}

// Publish delivers ev to all current subscribers.
func (b *Bus) Publish(ev Event) {
	if b == nil || ev == nil {
		return
	}
	b.mu.RLock()
	subs := make([]subscriber, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()
	for _, s := range subs {
		s.fn(ev)
	}
}

// Len reports the number of subscribers.
func (b *Bus) Len() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Recorder collects published events, mainly for tests and the REPL.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Record appends ev. It matches the Subscribe callback signature.
func (r *Recorder) Record(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Names returns the names of recorded events in order.
func (r *Recorder) Names() []string {
	evs := r.Events()
	out := make([]string, len(evs))
	for i, ev := range evs {
		out[i] = ev.Name()
	}
	return out
}

// Count returns how many recorded events carry name.
func (r *Recorder) Count(name string) int {
	n := 0
	for _, ev := range r.Events() {
		if ev.Name() == name {
			n++
		}
	}
	return n
}

// Reset clears the recording.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}
