package render

import "image"

// boxPass runs a clamped running-mean blur over n samples spaced stride bytes
// apart, reading from src and writing to dst.
func boxPass(src, dst []uint8, start, n, stride, radius int, prefix []int) {
	prefix[0] = 0
	for i := 0; i < n; i++ {
		prefix[i+1] = prefix[i] + int(src[start+i*stride])
	}
	for i := 0; i < n; i++ {
		lo := max(i-radius, 0)
		hi := min(i+radius, n-1)
		dst[start+i*stride] = uint8((prefix[hi+1] - prefix[lo]) / (hi - lo + 1))
	}
}

// BlurAlpha returns a box-blurred copy of src. The input is never written.
func BlurAlpha(src *image.Alpha, radius int) *image.Alpha {
	out := image.NewAlpha(src.Bounds())
	copy(out.Pix, src.Pix)
	if radius <= 0 {
		return out
	}
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	tmp := make([]uint8, len(src.Pix))
	prefix := make([]int, max(w, h)+1)
	for y := 0; y < h; y++ {
		boxPass(src.Pix, tmp, y*src.Stride, w, 1, radius, prefix)
	}
	for x := 0; x < w; x++ {
		boxPass(tmp, out.Pix, x, h, src.Stride, radius, prefix)
	}
	return out
}

// BoxBlur returns a box-blurred copy of src with a (2·radius+1)² kernel,
// applied to all four channels. Output always lives in a fresh buffer so no
// pass reads a pixel it has already written.
func BoxBlur(src *image.RGBA, radius int) *image.RGBA {
	out := image.NewRGBA(src.Bounds())
	copy(out.Pix, src.Pix)
	if radius <= 0 {
		return out
	}
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	if w == 0 || h == 0 {
		return out
	}
	tmp := make([]uint8, len(src.Pix))
	prefix := make([]int, max(w, h)+1)
	for c := 0; c < 4; c++ {
		for y := 0; y < h; y++ {
			boxPass(src.Pix, tmp, y*src.Stride+c, w, 4, radius, prefix)
		}
		for x := 0; x < w; x++ {
			boxPass(tmp, out.Pix, x*4+c, h, src.Stride, radius, prefix)
		}
	}
	return out
}
