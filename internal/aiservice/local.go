package aiservice

import (
	"context"
	"image"
	"strconv"

	"github.com/example/retoucher/internal/raster"
	"github.com/example/retoucher/internal/selection"
)

// Local implements Service in-process. Background removal keys out the
// colour regions touching the image corners, inpainting diffuses the
// surrounding colours into the mask, and detection returns the largest
// region that is not background.
type Local struct {
	// Tolerance is the RGBA distance used by background keying.
	Tolerance float64
	// Iterations bounds the inpainting diffusion passes.
	Iterations int
}

// NewLocal returns a Local with working defaults.
func NewLocal() *Local { return &Local{Tolerance: 40, Iterations: 200} }

func (l *Local) Process(ctx context.Context, req Request) (Response, error) {
	if err := Validate(req); err != nil {
		return Response{}, err
	}
	if err := contextError(ctx); err != nil {
		return Response{}, err
	}
	img, err := raster.DecodeBytes(req.Image)
	if err != nil {
		return Response{}, &Error{Reason: ReasonInvalidRequest, Message: "undecodable image", Err: err}
	}
	tol := l.Tolerance
	if v, err := strconv.ParseFloat(req.Params["tolerance"], 64); err == nil {
		tol = v
	}

	var out []byte
	switch req.Model {
	case ModelBackgroundRemoval:
		bg := backgroundMask(img, tol)
		res := raster.Clone(img)
		for i, in := range bg.Bits {
			if in {
				copy(res.Pix[i*4:i*4+4], []uint8{0, 0, 0, 0})
			}
		}
		out, err = raster.EncodeBytes(res, raster.ExportOptions{Format: raster.FormatPNG})
	case ModelInpainting:
		mask, derr := DecodeMask(req.Mask)
		if derr != nil {
			return Response{}, &Error{Reason: ReasonInvalidRequest, Err: derr}
		}
		if mask.Bounds().Size() != img.Bounds().Size() {
			return Response{}, &Error{Reason: ReasonInvalidRequest, Message: "mask size does not match image"}
		}
		res, ierr := l.inpaint(ctx, img, mask)
		if ierr != nil {
			return Response{}, ierr
		}
		out, err = raster.EncodeBytes(res, raster.ExportOptions{Format: raster.FormatPNG})
	case ModelObjectDetection:
		obj := largestRegion(backgroundMask(img, tol).Invert())
		a := image.NewAlpha(img.Bounds())
		for i, in := range obj.Bits {
			if in {
				a.Pix[i] = 0xff
			}
		}
		out, err = EncodeMask(a)
	}
	if err != nil {
		return Response{}, &Error{Reason: ReasonInvalidResponse, Err: err}
	}
	return Response{Image: out}, nil
}

// backgroundMask unions magic-wand regions grown from the four corners.
func backgroundMask(img *image.RGBA, tol float64) *selection.Mask {
	b := img.Bounds()
	out := selection.NewMask(b.Dx(), b.Dy())
	corners := []image.Point{{0, 0}, {b.Dx() - 1, 0}, {0, b.Dy() - 1}, {b.Dx() - 1, b.Dy() - 1}}
	for _, c := range corners {
		if out.At(c.X, c.Y) {
			continue
		}
		m, err := selection.MagicWand(img, c.Add(b.Min), tol)
		if err != nil {
			continue
		}
		for i, in := range m.Bits {
			if in {
				out.Set(i%m.W, i/m.W)
			}
		}
	}
	return out
}

// largestRegion keeps the biggest 4-connected component of m.
func largestRegion(m *selection.Mask) *selection.Mask {
	label := make([]int, len(m.Bits))
	best, bestSize, next := 0, 0, 0
	for start, in := range m.Bits {
		if !in || label[start] != 0 {
			continue
		}
		next++
		size := 0
		stack := []int{start}
		label[start] = next
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			size++
			x, y := i%m.W, i/m.W
			for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
				nx, ny := x+d[0], y+d[1]
				if !m.At(nx, ny) {
					continue
				}
				j := ny*m.W + nx
				if label[j] == 0 {
					label[j] = next
					stack = append(stack, j)
				}
			}
		}
		if size > bestSize {
			best, bestSize = next, size
		}
	}
	out := selection.NewMask(m.W, m.H)
	for i, l := range label {
		if l == best && best != 0 {
			out.Set(i%m.W, i/m.W)
		}
	}
	return out
}

// inpaint repeatedly replaces every masked pixel with the mean of its four
// neighbours until the colours settle or the pass budget runs out.
func (l *Local) inpaint(ctx context.Context, img *image.RGBA, mask *image.Alpha) (*image.RGBA, error) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	cur := raster.Clone(img)
	var holes []int
	for i, v := range mask.Pix {
		if v >= 0x80 {
			holes = append(holes, i)
		}
	}
	if len(holes) == 0 {
		return cur, nil
	}
	iters := l.Iterations
	if iters <= 0 {
		iters = 200
	}
	nextPix := make([]uint8, len(cur.Pix))
	for it := 0; it < iters; it++ {
		if err := contextError(ctx); err != nil {
			return nil, err
		}
		copy(nextPix, cur.Pix)
		changed := false
		for _, p := range holes {
			x, y := p%w, p/w
			var acc [4]int
			n := 0
			for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
				nx, ny := x+d[0], y+d[1]
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				j := (ny*w + nx) * 4
				for c := 0; c < 4; c++ {
					acc[c] += int(cur.Pix[j+c])
				}
				n++
			}
			for c := 0; c < 4; c++ {
				v := uint8((acc[c] + n/2) / n)
				if nextPix[p*4+c] != v {
					nextPix[p*4+c] = v
					changed = true
				}
			}
		}
		cur.Pix, nextPix = nextPix, cur.Pix
		if !changed {
			break
		}
	}
	return cur, nil
}
