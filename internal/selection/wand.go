package selection

import (
	"fmt"
	"image"
	"math"
)

// Mask is a per-pixel membership bitmap.
type Mask struct {
	W, H  int
	Bits  []bool
	Count int
	Seed  image.Point
}

// NewMask returns an empty w×h mask.
func NewMask(w, h int) *Mask {
	return &Mask{W: w, H: h, Bits: make([]bool, w*h)}
}

// At reports membership; points outside the mask are never members.
func (m *Mask) At(x, y int) bool {
	if m == nil || x < 0 || y < 0 || x >= m.W || y >= m.H {
		return false
	}
	return m.Bits[y*m.W+x]
}

// Set marks (x, y) as a member.
func (m *Mask) Set(x, y int) {
	if x < 0 || y < 0 || x >= m.W || y >= m.H {
		return
	}
	i := y*m.W + x
	if !m.Bits[i] {
		m.Bits[i] = true
		m.Count++
	}
}

// Bounds is the tight rectangle around every member.
func (m *Mask) Bounds() image.Rectangle {
	if m == nil || m.Count == 0 {
		return image.Rectangle{}
	}
	minX, minY, maxX, maxY := m.W, m.H, -1, -1
	for y := 0; y < m.H; y++ {
		row := m.Bits[y*m.W : (y+1)*m.W]
		for x, in := range row {
			if in {
				minX, maxX = min(minX, x), max(maxX, x)
				minY, maxY = min(minY, y), max(maxY, y)
			}
		}
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}

// Invert returns the complement of m.
func (m *Mask) Invert() *Mask {
	out := NewMask(m.W, m.H)
	for i, in := range m.Bits {
		if !in {
			out.Bits[i] = true
			out.Count++
		}
	}
	return out
}

func colorDistance(a, b []uint8) float64 {
	dr := float64(a[0]) - float64(b[0])
	dg := float64(a[1]) - float64(b[1])
	db := float64(a[2]) - float64(b[2])
	da := float64(a[3]) - float64(b[3])
	return math.Sqrt(dr*dr + dg*dg + db*db + da*da)
}

// MagicWand grows a region from seed over 4-connected pixels whose RGBA
// Euclidean distance to the seed colour is at most tolerance.
func MagicWand(img *image.RGBA, seed image.Point, tolerance float64) (*Mask, error) {
	if img == nil {
		return nil, fmt.Errorf("magic wand: nil image")
	}
	b := img.Bounds()
	if !seed.In(b) {
		return nil, fmt.Errorf("magic wand at %v: %w", seed, ErrSeedOutOfBounds)
	}
	if tolerance < 0 {
		tolerance = 0
	}
	w, h := b.Dx(), b.Dy()
	m := NewMask(w, h)
	m.Seed = seed.Sub(b.Min)
	visited := make([]bool, w*h)
	si := img.PixOffset(seed.X, seed.Y)
	ref := append([]uint8(nil), img.Pix[si:si+4]...)

	queue := []image.Point{m.Seed}
	visited[m.Seed.Y*w+m.Seed.X] = true
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		m.Set(p.X, p.Y)
		for _, d := range [4]image.Point{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
			q := p.Add(d)
			if q.X < 0 || q.Y < 0 || q.X >= w || q.Y >= h || visited[q.Y*w+q.X] {
				continue
			}
			visited[q.Y*w+q.X] = true
			i := img.PixOffset(q.X+b.Min.X, q.Y+b.Min.Y)
			if colorDistance(img.Pix[i:i+4], ref) <= tolerance {
				queue = append(queue, q)
			}
		}
	}
	return m, nil
}

// TraceBoundary emits (x, y) for every pixel whose membership differs from
// its right or bottom neighbour. The result is an unordered point cloud
// approximating the region contour, not a simple polygon.
func TraceBoundary(m *Mask) []float64 {
	if m == nil {
		return nil
	}
	var pts []float64
	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			in := m.At(x, y)
			if in != m.At(x+1, y) || in != m.At(x, y+1) {
				pts = append(pts, float64(x), float64(y))
			}
		}
	}
	return pts
}
