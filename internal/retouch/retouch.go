// Package retouch implements localized pixel repair: spot healing, clone
// stamping, patching and the AI-delegated background and object removal.
//
// Every operation reads its input buffer and returns a fresh one; callers
// hand the result back to the renderer, which stays the only writer of the
// image layer.
package retouch

import (
	"errors"
	"image"
	"image/color"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/example/retoucher/internal/aiservice"
	"github.com/example/retoucher/internal/raster"
)

var (
	// ErrBusy rejects an AI operation while another one is pending.
	ErrBusy = errors.New("retouch: ai operation already in progress")
	// ErrNoService is returned when no AI service is configured.
	ErrNoService = errors.New("retouch: no ai service configured")
	// ErrOutsideImage rejects a target point or region that is not on the image.
	ErrOutsideImage = errors.New("retouch: point outside image")
	// ErrInvalidRadius rejects non-positive brush radii.
	ErrInvalidRadius = errors.New("retouch: radius must be positive")
	// ErrEmptySelection rejects patching or removing an empty area.
	ErrEmptySelection = errors.New("retouch: selection is empty")
)

// State is the phase of the operation currently running.
type State int

const (
	StateIdle State = iota
	StateSampling
	StateCompositing
	StateCommitted
)

func (s State) String() string {
	switch s {
	case StateSampling:
		return "sampling"
	case StateCompositing:
		return "compositing"
	case StateCommitted:
		return "committed"
	}
	return "idle"
}

// Tool names a retouch operation.
type Tool string

const (
	ToolSpotHeal         Tool = "spot-heal"
	ToolCloneStamp       Tool = "clone-stamp"
	ToolPatch            Tool = "patch"
	ToolRemoveBackground Tool = "remove-background"
	ToolRemoveObject     Tool = "remove-object"
)

// TaskContext holds the parameters a task ran with.
type TaskContext struct {
	SourceX, SourceY float64
	TargetX, TargetY float64
	Radius           float64
	Feathering       float64
	Strength         float64
}

// RepairTask is the audit entry for one completed retouch. Before holds the
// pixels of Region as they were prior to the operation and Mask its coverage.
type RepairTask struct {
	ID        string
	Tool      Tool
	Context   TaskContext
	Region    image.Rectangle
	Mask      *image.Alpha
	Before    *image.RGBA
	Timestamp time.Time
}

// Recorder receives every completed task.
type Recorder interface {
	Record(RepairTask) error
}

// BrushSettings shape the clone stamp. Hardness is the fraction of the
// radius painted at full opacity.
type BrushSettings struct {
	Radius   float64
	Hardness float64
	Opacity  float64
}

// DefaultBrush is a medium soft brush.
func DefaultBrush() BrushSettings { return BrushSettings{Radius: 12, Hardness: 0.5, Opacity: 1} }

// Engine runs retouch operations and keeps their task log.
type Engine struct {
	mu      sync.Mutex
	state   State
	brush   BrushSettings
	onState func(State)

	source    *image.Point
	stroke    *cloneStroke
	tasks     []RepairTask
	rec       Recorder
	logger    *log.Logger
	ai        aiservice.Service
	timeout   time.Duration
	busy      atomic.Bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithService sets the AI service used for removal operations.
func WithService(s aiservice.Service) Option { return func(e *Engine) { e.ai = s } }

// WithTimeout bounds each AI call.
func WithTimeout(d time.Duration) Option { return func(e *Engine) { e.timeout = d } }

// WithRecorder forwards every task to rec.
func WithRecorder(rec Recorder) Option { return func(e *Engine) { e.rec = rec } }

// WithLogger sets the logger used for recorder failures.
func WithLogger(l *log.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithBrush sets the initial clone brush.
func WithBrush(b BrushSettings) Option { return func(e *Engine) { e.brush = b } }

// WithStateListener is called on every state transition.
func WithStateListener(fn func(State)) Option { return func(e *Engine) { e.onState = fn } }

// New returns an idle engine.
func New(opts ...Option) *Engine {
	e := &Engine{brush: DefaultBrush(), timeout: aiservice.DefaultTimeout, logger: log.Default()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// State reports the current phase.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Brush returns the clone brush.
func (e *Engine) Brush() BrushSettings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.brush
}

// SetBrush replaces the clone brush.
func (e *Engine) SetBrush(b BrushSettings) {
	e.mu.Lock()
	e.brush = b
	e.mu.Unlock()
}

// SetService swaps the AI service.
func (e *Engine) SetService(s aiservice.Service) {
	e.mu.Lock()
	e.ai = s
	e.mu.Unlock()
}

// Tasks returns the task log, oldest first.
func (e *Engine) Tasks() []RepairTask {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]RepairTask(nil), e.tasks...)
}

// Processing reports whether an AI call is pending.
func (e *Engine) Processing() bool { return e.busy.Load() }

// setState must be called with mu held.
func (e *Engine) setState(s State) {
	e.state = s
	if e.onState != nil {
		e.onState(s)
	}
}

// commit appends a task and returns the engine to idle. mu must be held.
func (e *Engine) commit(t RepairTask) RepairTask {
	t.ID = uuid.NewString()
	t.Timestamp = time.Now()
	e.setState(StateCommitted)
	e.tasks = append(e.tasks, t)
	if e.rec != nil {
		if err := e.rec.Record(t); err != nil {
			e.logger.Printf("retouch: record %s: %v", t.Tool, err)
		}
	}
	e.setState(StateIdle)
	return t
}

// before crops the pre-operation pixels of r.
func before(img *image.RGBA, r image.Rectangle) *image.RGBA {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return nil
	}
	out, err := raster.Crop(img, r)
	if err != nil {
		return nil
	}
	return out
}

func inside(img *image.RGBA, x, y float64) bool {
	return image.Pt(int(x), int(y)).In(img.Bounds()) && x >= 0 && y >= 0
}

// mix moves the premultiplied pixel dst toward src by w.
func mix(dst, src []uint8, w float64) {
	for c := 0; c < 4; c++ {
		dst[c] = raster.Lerp8(dst[c], src[c], w)
	}
	for c := 0; c < 3; c++ {
		if dst[c] > dst[3] {
			dst[c] = dst[3]
		}
	}
}

func alpha(w float64) color.Alpha { return color.Alpha{A: raster.Clamp8(w * 255)} }
