package aiservice

import (
	"context"
	"errors"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/retoucher/internal/raster"
)

// subject draws a 10x10 red square on a 40x30 white field.
func subject(t *testing.T) []byte {
	t.Helper()
	img := raster.New(40, 30)
	raster.Fill(img, color.RGBA{255, 255, 255, 255})
	for y := 10; y < 20; y++ {
		for x := 15; x < 25; x++ {
			img.SetRGBA(x, y, color.RGBA{200, 0, 0, 255})
		}
	}
	data, err := raster.EncodeBytes(img, raster.ExportOptions{Format: raster.FormatPNG})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return data
}

func TestLocalBackgroundRemoval(t *testing.T) {
	resp, err := NewLocal().Process(context.Background(), Request{Image: subject(t), Model: ModelBackgroundRemoval})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	out, err := raster.DecodeBytes(resp.Image)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if a := out.RGBAAt(0, 0).A; a != 0 {
		t.Errorf("corner alpha = %d, want 0", a)
	}
	if c := out.RGBAAt(20, 15); c.A != 255 || c.R != 200 {
		t.Errorf("subject pixel = %v", c)
	}
}

func TestLocalObjectDetection(t *testing.T) {
	resp, err := NewLocal().Process(context.Background(), Request{Image: subject(t), Model: ModelObjectDetection})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	m, err := DecodeMask(resp.Image)
	if err != nil {
		t.Fatalf("decode mask: %v", err)
	}
	n := 0
	for _, v := range m.Pix {
		if v == 0xff {
			n++
		}
	}
	if n != 100 {
		t.Errorf("object pixels = %d, want 100", n)
	}
}

func TestLocalInpainting(t *testing.T) {
	img := raster.New(20, 20)
	raster.Fill(img, color.RGBA{0, 0, 255, 255})
	img.SetRGBA(10, 10, color.RGBA{255, 0, 0, 255})
	data, _ := raster.EncodeBytes(img, raster.ExportOptions{Format: raster.FormatPNG})
	mask := image.NewAlpha(image.Rect(0, 0, 20, 20))
	mask.Pix[10*20+10] = 0xff
	mdata, err := EncodeMask(mask)
	if err != nil {
		t.Fatalf("encode mask: %v", err)
	}
	resp, err := NewLocal().Process(context.Background(), Request{Image: data, Mask: mdata, Model: ModelInpainting})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	out, _ := raster.DecodeBytes(resp.Image)
	if c := out.RGBAAt(10, 10); c != (color.RGBA{0, 0, 255, 255}) {
		t.Errorf("inpainted pixel = %v", c)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		req  Request
	}{
		{"unknown model", Request{Image: []byte{1}, Model: "upscale"}},
		{"no image", Request{Model: ModelBackgroundRemoval}},
		{"inpaint without mask", Request{Image: []byte{1}, Model: ModelInpainting}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if r := ReasonOf(Validate(tc.req)); r != ReasonInvalidRequest {
				t.Errorf("reason = %q", r)
			}
		})
	}
}

func TestHTTPRoundTrip(t *testing.T) {
	srv := httptest.NewServer(NewHandler(NewLocal(), nil))
	defer srv.Close()
	c := NewHTTPClient(srv.URL, time.Second)
	resp, err := c.Process(context.Background(), Request{Image: subject(t), Model: ModelBackgroundRemoval})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	out, err := raster.DecodeBytes(resp.Image)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Bounds().Dx() != 40 || out.Bounds().Dy() != 30 {
		t.Errorf("size = %v", out.Bounds())
	}
}

func TestHTTPUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	_, err := NewHTTPClient(url, time.Second).Process(context.Background(), Request{Image: subject(t), Model: ModelBackgroundRemoval})
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("err = %v, want unreachable", err)
	}
}

func TestHTTPTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()
	_, err := NewHTTPClient(srv.URL, 50*time.Millisecond).Process(context.Background(), Request{Image: subject(t), Model: ModelBackgroundRemoval})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want timeout", err)
	}
}

func TestHTTPRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusInternalServerError, errorBody{Reason: ReasonRejected, Message: "model offline"})
	}))
	defer srv.Close()
	_, err := NewHTTPClient(srv.URL, time.Second).Process(context.Background(), Request{Image: subject(t), Model: ModelBackgroundRemoval})
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("err = %v", err)
	}
	if e.Reason != ReasonRejected || e.Status != http.StatusInternalServerError || e.Message != "model offline" {
		t.Errorf("got %+v", e)
	}
}

func TestHandlerBadRequest(t *testing.T) {
	srv := httptest.NewServer(NewHandler(NewLocal(), nil))
	defer srv.Close()
	c := NewHTTPClient(srv.URL, time.Second)
	// passes validation but cannot be decoded by the service
	_, err := c.Process(context.Background(), Request{Image: []byte("not an image"), Model: ModelBackgroundRemoval})
	var e *Error
	if !errors.As(err, &e) || e.Status != http.StatusBadRequest {
		t.Fatalf("err = %v, want 400", err)
	}
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLocal().Process(ctx, Request{Image: subject(t), Model: ModelBackgroundRemoval})
	if !errors.Is(err, ErrCanceled) {
		t.Fatalf("err = %v, want canceled", err)
	}
}
