// Package aiservice defines the byte-in/byte-out contract of the external
// image AI service (background removal, inpainting, object detection) and
// ships an HTTP binding plus an in-process implementation.
package aiservice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/example/retoucher/internal/raster"
)

// Model selects the operation the service performs.
type Model string

const (
	ModelBackgroundRemoval Model = "background-removal"
	ModelInpainting        Model = "inpainting"
	ModelObjectDetection   Model = "object-detection"
)

// Known reports whether m is one of the defined models.
func (m Model) Known() bool {
	switch m {
	case ModelBackgroundRemoval, ModelInpainting, ModelObjectDetection:
		return true
	}
	return false
}

// Request carries encoded raster bytes. Mask is required for inpainting;
// white marks the pixels to replace.
type Request struct {
	Image  []byte            `json:"image"`
	Mask   []byte            `json:"mask,omitempty"`
	Model  Model             `json:"model"`
	Params map[string]string `json:"params,omitempty"`
}

// Response is the processed raster.
type Response struct {
	Image []byte `json:"image"`
}

// Service is anything that honours the request/response contract.
type Service interface {
	Process(ctx context.Context, req Request) (Response, error)
}

// Reason is the machine-readable failure class.
type Reason string

const (
	ReasonUnreachable     Reason = "unreachable"
	ReasonTimeout         Reason = "timeout"
	ReasonRejected        Reason = "rejected"
	ReasonInvalidRequest  Reason = "invalid-request"
	ReasonInvalidResponse Reason = "invalid-response"
	ReasonCanceled        Reason = "canceled"
)

var (
	ErrUnreachable = errors.New("ai service unreachable")
	ErrTimeout     = errors.New("ai service timed out")
	ErrCanceled    = errors.New("ai request canceled")
)

// Error is returned by every Service in this package.
type Error struct {
	Reason  Reason
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := string(e.Reason)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return "ai service " + msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the package sentinels by reason.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnreachable:
		return e.Reason == ReasonUnreachable
	case ErrTimeout:
		return e.Reason == ReasonTimeout
	case ErrCanceled:
		return e.Reason == ReasonCanceled
	}
	return false
}

// ReasonOf extracts the reason from err, or "" when err is not an *Error.
func ReasonOf(err error) Reason {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

// contextError maps a finished context to a typed error.
func contextError(ctx context.Context) error {
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return &Error{Reason: ReasonTimeout, Err: ctx.Err()}
	case context.Canceled:
		return &Error{Reason: ReasonCanceled, Err: ctx.Err()}
	}
	return nil
}

// Validate checks a request before it is sent or served.
func Validate(req Request) error {
	switch {
	case !req.Model.Known():
		return &Error{Reason: ReasonInvalidRequest, Message: fmt.Sprintf("unknown model %q", req.Model)}
	case len(req.Image) == 0:
		return &Error{Reason: ReasonInvalidRequest, Message: "image is required"}
	case req.Model == ModelInpainting && len(req.Mask) == 0:
		return &Error{Reason: ReasonInvalidRequest, Message: "inpainting needs a mask"}
	}
	return nil
}

// EncodeMask writes a coverage mask as a grayscale PNG.
func EncodeMask(m *image.Alpha) ([]byte, error) {
	b := m.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			g.SetGray(x, y, color.Gray{Y: m.AlphaAt(b.Min.X+x, b.Min.Y+y).A})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, g); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeMask reads a mask image; a pixel's coverage is its luminance times
// its alpha.
func DecodeMask(data []byte) (*image.Alpha, error) {
	img, err := raster.DecodeBytes(data)
	if err != nil {
		return nil, fmt.Errorf("decode mask: %w", err)
	}
	b := img.Bounds()
	out := image.NewAlpha(b)
	for i := 0; i < len(img.Pix); i += 4 {
		// premultiplied, so luma already includes alpha
		l := 0.299*float64(img.Pix[i]) + 0.587*float64(img.Pix[i+1]) + 0.114*float64(img.Pix[i+2])
		out.Pix[i/4] = raster.Clamp8(l)
	}
	return out, nil
}
