//go:build !(linux || freebsd || openbsd || netbsd || dragonfly)

package clipboard

import "image"

// WriteImage is unavailable on this platform.
func WriteImage(image.Image) error {
	return ErrUnsupported
}

// ReadImage is unavailable on this platform.
func ReadImage() (image.Image, error) {
	return nil, ErrUnsupported
}
