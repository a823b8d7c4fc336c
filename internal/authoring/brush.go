package authoring

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/example/retoucher/internal/scene"
)

// Stroke limits applied when nothing else is configured.
const (
	DefaultMaxPoints = 2048
	DefaultTolerance = 2.0
)

// Stroke is a brush drag session. Points accumulate in canvas coordinates
// until Finish turns them into an immutable stroke item.
type Stroke struct {
	MaxPoints int
	Tolerance float64

	settings scene.StrokeSettings
	pts      []scene.StrokePoint
	active   bool
}

// NewStroke returns an idle session. A non-positive cap or a negative
// tolerance falls back to the default.
func NewStroke(maxPoints int, tolerance float64) *Stroke {
	if maxPoints <= 0 {
		maxPoints = DefaultMaxPoints
	}
	if tolerance < 0 {
		tolerance = DefaultTolerance
	}
	return &Stroke{MaxPoints: maxPoints, Tolerance: tolerance}
}

// Begin starts a stroke at (x, y).
func (s *Stroke) Begin(x, y, pressure float64, st scene.StrokeSettings) {
	if st.Blend == "" {
		st.Blend = scene.BlendNormal
	}
	s.settings = st
	s.pts = []scene.StrokePoint{{X: x, Y: y, P: pressure}}
	s.active = true
}

// Add appends a sample, simplifying once the cap is exceeded.
func (s *Stroke) Add(x, y, pressure float64) {
	if !s.active {
		return
	}
	s.pts = append(s.pts, scene.StrokePoint{X: x, Y: y, P: pressure})
	if len(s.pts) > s.MaxPoints {
		s.pts = bound(s.pts, s.Tolerance, s.MaxPoints)
	}
}

// Active reports whether a stroke is being drawn.
func (s *Stroke) Active() bool { return s.active }

// Len is the number of points currently held.
func (s *Stroke) Len() int { return len(s.pts) }

// Cancel drops the stroke.
func (s *Stroke) Cancel() {
	s.pts = nil
	s.active = false
}

// Finish closes the session and returns the stroke item with node-local
// points plus the transform to place it at.
func (s *Stroke) Finish() (*scene.StrokeItem, scene.Transform, error) {
	if !s.active || len(s.pts) == 0 {
		return nil, scene.Transform{}, ErrNoStroke
	}
	pts := bound(s.pts, s.Tolerance, s.MaxPoints)
	s.Cancel()

	pad := math.Ceil(math.Max(s.settings.Width, 1)/2) + 1
	minX, minY, maxX, maxY := pts[0].X, pts[0].Y, pts[0].X, pts[0].Y
	for _, p := range pts[1:] {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	ox, oy := math.Floor(minX-pad), math.Floor(minY-pad)
	local := make([]scene.StrokePoint, len(pts))
	for i, p := range pts {
		local[i] = scene.StrokePoint{X: p.X - ox, Y: p.Y - oy, P: p.P}
	}
	t := scene.Transform{
		X: ox, Y: oy,
		Width:  math.Ceil(maxX+pad) - ox,
		Height: math.Ceil(maxY+pad) - oy,
	}
	it := &scene.StrokeItem{ID: uuid.NewString(), Points: local, Settings: s.settings, Timestamp: time.Now()}
	return it, t, nil
}

// simplify keeps the first point and every point at least tol away from the
// last one kept.
func simplify(pts []scene.StrokePoint, tol float64) []scene.StrokePoint {
	if len(pts) == 0 {
		return nil
	}
	out := []scene.StrokePoint{pts[0]}
	for _, p := range pts[1:] {
		last := out[len(out)-1]
		if math.Hypot(p.X-last.X, p.Y-last.Y) >= tol {
			out = append(out, p)
		}
	}
	return out
}

// bound simplifies at tol and keeps doubling the tolerance until at most
// limit points remain.
func bound(pts []scene.StrokePoint, tol float64, limit int) []scene.StrokePoint {
	out := simplify(pts, tol)
	for t := tol; len(out) > limit; {
		if t <= 0 {
			t = 1
		} else {
			t *= 2
		}
		out = simplify(out, t)
	}
	return out
}
