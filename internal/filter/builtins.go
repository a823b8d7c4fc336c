package filter

func pct(name string, def, lo float64) Param {
	return Param{Name: name, Value: def, Min: lo, Max: 100, Step: 1, Unit: "%"}
}

func px(name string, def, lo, hi float64) Param {
	return Param{Name: name, Value: def, Min: lo, Max: hi, Step: 1, Unit: "px"}
}

func deg(name string, def, lo, hi float64) Param {
	return Param{Name: name, Value: def, Min: lo, Max: hi, Step: 1, Unit: "deg"}
}

// Builtins returns the descriptors of every built-in filter.
func Builtins() []Filter {
	return []Filter{
		{ID: "brightness", Name: "Brightness", Category: CategoryAdjust, Params: []Param{pct("value", 0, -100)}, Apply: brightness},
		{ID: "contrast", Name: "Contrast", Category: CategoryAdjust, Params: []Param{pct("value", 0, -100)}, Apply: contrast},
		{ID: "saturation", Name: "Saturation", Category: CategoryAdjust, Params: []Param{pct("value", 0, -100)}, Apply: saturation},
		{ID: "hue", Name: "Hue", Category: CategoryAdjust, Params: []Param{deg("angle", 0, -180, 180)}, Apply: hue},
		{ID: "grayscale", Name: "Grayscale", Category: CategoryColor, Params: []Param{pct("amount", 100, 0)}, Apply: grayscale},
		{ID: "sepia", Name: "Sepia", Category: CategoryColor, Params: []Param{pct("amount", 100, 0)}, Apply: sepia},
		{ID: "invert", Name: "Invert", Category: CategoryColor, Params: []Param{pct("amount", 100, 0)}, Apply: invert},
		{ID: "posterize", Name: "Posterize", Category: CategoryColor, Params: []Param{{Name: "levels", Value: 4, Min: 2, Max: 32, Step: 1}}, Apply: posterize},

		{ID: "blur", Name: "Blur", Category: CategoryBlur, Params: []Param{px("radius", 3, 0, 50)}, Apply: boxBlur},
		{ID: "motion-blur", Name: "Motion Blur", Category: CategoryBlur, Params: []Param{px("distance", 10, 1, 100), deg("angle", 0, 0, 360)}, Apply: motionBlur},
		{ID: "radial-blur", Name: "Radial Blur", Category: CategoryBlur, Params: []Param{pct("strength", 20, 0), pct("centerX", 50, 0), pct("centerY", 50, 0)}, Apply: radialBlur},
		{ID: "sharpen", Name: "Sharpen", Category: CategoryStylize, Params: []Param{{Name: "amount", Value: 50, Min: 0, Max: 300, Step: 1, Unit: "%"}}, Apply: sharpen},
		{ID: "emboss", Name: "Emboss", Category: CategoryStylize, Params: []Param{{Name: "strength", Value: 1, Min: 0, Max: 10, Step: 0.1}}, Apply: emboss},
		{ID: "edge-detect", Name: "Edge Detect", Category: CategoryStylize, Params: []Param{{Name: "strength", Value: 1, Min: 0, Max: 10, Step: 0.1}}, Apply: edgeDetect},
		{ID: "pixelate", Name: "Pixelate", Category: CategoryStylize, Params: []Param{px("size", 8, 1, 100)}, Apply: pixelate},

		{ID: "oil-painting", Name: "Oil Painting", Category: CategoryArtistic, Params: []Param{px("radius", 3, 1, 10), pct("intensity", 100, 0)}, Apply: oilPainting},
		{ID: "watercolor", Name: "Watercolor", Category: CategoryArtistic, Params: []Param{px("radius", 2, 0, 10), {Name: "levels", Value: 8, Min: 2, Max: 32, Step: 1}, px("smoothing", 3, 1, 8)}, Apply: watercolor},
		{ID: "pencil-sketch", Name: "Pencil Sketch", Category: CategoryArtistic, Params: []Param{px("radius", 8, 1, 30), pct("intensity", 100, 0)}, Apply: pencilSketch},
		{ID: "vintage", Name: "Vintage", Category: CategoryArtistic, Params: []Param{pct("intensity", 70, 0), pct("vignette", 50, 0), px("shift", 2, 0, 20)}, Apply: vintage},
		{ID: "cross-process", Name: "Cross Process", Category: CategoryArtistic, Params: []Param{pct("intensity", 100, 0)}, Apply: crossProcess},
		{ID: "lomography", Name: "Lomography", Category: CategoryArtistic, Params: []Param{pct("saturation", 30, 0), pct("contrast", 30, 0), pct("vignette", 80, 0)}, Apply: lomography},
		{ID: "vignette", Name: "Vignette", Category: CategoryArtistic, Params: []Param{pct("strength", 50, 0)}, Apply: vignette},

		{ID: "noise", Name: "Noise", Category: CategoryNoise, Params: []Param{pct("amount", 20, 0), {Name: "seed", Value: 1, Min: 0, Max: 1 << 31, Step: 1}}, Apply: noise},
		{ID: "film-grain", Name: "Film Grain", Category: CategoryNoise, Params: []Param{pct("amount", 20, 0), {Name: "seed", Value: 1, Min: 0, Max: 1 << 31, Step: 1}}, Apply: filmGrain},

		{ID: "lens-distortion", Name: "Lens Distortion", Category: CategoryDistort, Params: []Param{{Name: "k", Value: 20, Min: -100, Max: 100, Step: 1}}, Apply: lensDistortion},
		{ID: "wave", Name: "Wave", Category: CategoryDistort, Params: []Param{px("amplitude", 10, 0, 100), px("wavelength", 60, 1, 500), deg("angle", 0, 0, 360)}, Apply: wave},
	}
}
