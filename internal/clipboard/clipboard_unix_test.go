//go:build linux || freebsd || openbsd || netbsd || dragonfly

package clipboard

import (
	"errors"
	"image"
	"sync"
	"testing"
)

func resetInit(t *testing.T) {
	t.Helper()
	initOnce = sync.Once{}
	initErr = nil
	t.Cleanup(func() {
		initOnce = sync.Once{}
		initErr = nil
	})
}

func TestWriteImageWithoutDisplay(t *testing.T) {
	t.Setenv("DISPLAY", "")
	t.Setenv("WAYLAND_DISPLAY", "")
	resetInit(t)

	err := WriteImage(image.NewRGBA(image.Rect(0, 0, 2, 2)))
	if !errors.Is(err, ErrNoDisplay) {
		t.Fatalf("expected ErrNoDisplay, got %v", err)
	}
}

func TestReadRGBAWithoutDisplay(t *testing.T) {
	t.Setenv("DISPLAY", "")
	t.Setenv("WAYLAND_DISPLAY", "")
	resetInit(t)

	if _, err := ReadRGBA(); !errors.Is(err, ErrNoDisplay) {
		t.Fatalf("expected ErrNoDisplay, got %v", err)
	}
}
