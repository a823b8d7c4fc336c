package selection

import (
	"sync"

	"github.com/example/retoucher/internal/events"
)

// Lasso accumulates pointer samples for a freehand selection. Nothing is
// committed until Finish succeeds.
type Lasso struct {
	pts    []float64
	active bool
}

// Begin starts a new drag at (x, y), discarding any unfinished one.
func (l *Lasso) Begin(x, y float64) {
	l.pts = append(l.pts[:0], x, y)
	l.active = true
}

// Add appends a sample; repeats of the previous point are dropped.
func (l *Lasso) Add(x, y float64) {
	if !l.active {
		return
	}
	if n := len(l.pts); n >= 2 && l.pts[n-2] == x && l.pts[n-1] == y {
		return
	}
	l.pts = append(l.pts, x, y)
}

// Finish closes the drag into a freehand area.
func (l *Lasso) Finish() (Area, error) {
	if !l.active {
		return Area{}, ErrTooFewPoints
	}
	pts := l.pts
	l.Cancel()
	return Freehand(pts)
}

// Cancel drops the in-progress drag.
func (l *Lasso) Cancel() {
	l.pts = nil
	l.active = false
}

// Active reports whether a drag is in progress.
func (l *Lasso) Active() bool { return l.active }

// Points returns a copy of the samples so far.
func (l *Lasso) Points() []float64 { return append([]float64(nil), l.pts...) }

// Manager holds the one live selection and announces changes on the bus.
type Manager struct {
	mu     sync.Mutex
	bus    *events.Bus
	active Area
}

// NewManager returns a manager publishing to bus, which may be nil.
func NewManager(bus *events.Bus) *Manager { return &Manager{bus: bus} }

// Set replaces the live selection.
func (m *Manager) Set(a Area) {
	m.mu.Lock()
	m.active = a
	m.mu.Unlock()
	m.bus.Publish(events.SelectionChanged{Kind: string(a.Kind), Bounds: a.Bounds()})
}

// Clear drops the live selection, publishing SelectionCleared if there was one.
func (m *Manager) Clear() {
	m.mu.Lock()
	had := !m.active.IsZero()
	m.active = Area{}
	m.mu.Unlock()
	if had {
		m.bus.Publish(events.SelectionCleared{})
	}
}

// Active returns the live selection.
func (m *Manager) Active() (Area, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active, !m.active.IsZero()
}
