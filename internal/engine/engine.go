// Package engine is the editing session: it owns the scene, the tools and
// the history, and turns pointer input and operation calls into undoable
// actions.
package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"sync"

	"github.com/example/retoucher/assets"
	"github.com/example/retoucher/internal/aiservice"
	"github.com/example/retoucher/internal/authoring"
	"github.com/example/retoucher/internal/config"
	"github.com/example/retoucher/internal/events"
	"github.com/example/retoucher/internal/filter"
	"github.com/example/retoucher/internal/history"
	"github.com/example/retoucher/internal/notify"
	"github.com/example/retoucher/internal/raster"
	"github.com/example/retoucher/internal/retouch"
	"github.com/example/retoucher/internal/scene"
	"github.com/example/retoucher/internal/selection"
	"github.com/example/retoucher/internal/theme"
)

var (
	// ErrNoImage is returned by pixel operations before an image is loaded.
	ErrNoImage = errors.New("no image loaded")
	// ErrDestroyed is returned by every call after Destroy.
	ErrDestroyed = errors.New("engine destroyed")
	// ErrNoSelection is returned when an operation needs a selection.
	ErrNoSelection = errors.New("no active selection")
	// ErrUnknownTool is returned by ParseTool and SetTool.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrSuperseded reports an AI result discarded because the image was
	// edited while the request was running.
	ErrSuperseded = errors.New("image changed while ai request was running")
)

// Engine is one editing session. All methods are safe for concurrent use;
// history changes and rendering are serialised by one mutex.
type Engine struct {
	mu sync.Mutex

	logger   *log.Logger
	cfg      *config.Config
	bus      *events.Bus
	stage    *events.Bus
	pending  []events.Event
	renderer *scene.Renderer
	filters  *filter.Registry
	history  *history.History
	sel      *selection.Manager
	retouch  *retouch.Engine
	text     *authoring.TextTool
	placer   *authoring.Placer
	stroke   *authoring.Stroke
	theme    *theme.Theme

	state    EditingState
	handler  toolHandler
	revision uint64

	ai       aiservice.Service
	rec      retouch.Recorder
	loader   authoring.Loader
	notifier *notify.Notifier
	detach   []func()

	ctx       context.Context
	cancel    context.CancelFunc
	destroyed bool
}

// Option configures an Engine during creation.
type Option func(*Engine)

// WithLogger sets the logger for non-fatal diagnostics.
func WithLogger(l *log.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithConfig applies history, brush and AI settings from cfg.
func WithConfig(cfg *config.Config) Option { return func(e *Engine) { e.cfg = cfg } }

// WithAIService overrides the AI service chosen from the configuration.
func WithAIService(s aiservice.Service) Option { return func(e *Engine) { e.ai = s } }

// WithRecorder receives every committed retouch task.
func WithRecorder(r retouch.Recorder) Option { return func(e *Engine) { e.rec = r } }

// WithBus publishes engine events on bus instead of a private one.
func WithBus(b *events.Bus) Option { return func(e *Engine) { e.bus = b } }

// WithNotifier attaches n to the event bus for the engine's lifetime.
func WithNotifier(n *notify.Notifier) Option { return func(e *Engine) { e.notifier = n } }

// WithAssetLoader replaces the built-in sticker loader.
func WithAssetLoader(l authoring.Loader) Option { return func(e *Engine) { e.loader = l } }

// WithTheme styles the selection and transformer overlay.
func WithTheme(t *theme.Theme) Option { return func(e *Engine) { e.theme = t } }

// New creates an empty session.
func New(opts ...Option) *Engine {
	e := &Engine{
		logger: log.Default(),
		cfg:    config.New(),
		loader: assets.Load,
		state:  DefaultState(),
	}
	for _, o := range opts {
		o(e)
	}
	if e.bus == nil {
		e.bus = events.NewBus()
	}
	if e.ai == nil {
		e.ai = serviceFor(e.cfg.AI)
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())

	// Components publish on the staging bus while e.mu is held; the
	// events reach subscribers after the lock is released.
	e.stage = events.NewBus()
	e.stage.Subscribe(func(ev events.Event) { e.pending = append(e.pending, ev) })

	e.renderer = scene.New(0, 0, e.stage)
	if e.theme != nil {
		e.renderer.SetOverlayStyle(e.theme.Overlay())
	}
	e.filters = filter.Default()
	e.history = history.New(e.cfg.HistoryLimit)
	e.sel = selection.NewManager(e.stage)
	e.text = authoring.NewTextTool(e.renderer, e.stage)
	e.placer = authoring.NewPlacer(e.renderer, e.stage, authoring.NewAssetCache(e.loader))
	e.stroke = authoring.NewStroke(e.cfg.Brush.MaxPoints, e.cfg.Brush.Tolerance)

	b := e.cfg.Brush
	if b.Radius > 0 {
		e.state.Retouch = retouch.BrushSettings{Radius: b.Radius, Hardness: b.Hardness, Opacity: b.Opacity}
	}
	ropts := []retouch.Option{
		retouch.WithService(e.ai),
		retouch.WithTimeout(e.cfg.AI.Timeout),
		retouch.WithLogger(e.logger),
		retouch.WithBrush(e.state.Retouch),
	}
	if e.rec != nil {
		ropts = append(ropts, retouch.WithRecorder(e.rec))
	}
	e.retouch = retouch.New(ropts...)

	if e.notifier != nil {
		e.notifier.SetLogger(e.logger)
		e.notifier.Enable(notify.EventBackgroundRemoved, e.cfg.Notify.BackgroundRemoved)
		e.notifier.Enable(notify.EventObjectRemoved, e.cfg.Notify.ObjectRemoved)
		e.notifier.Enable(notify.EventExport, e.cfg.Notify.Export)
		e.detach = append(e.detach, e.notifier.Attach(e.bus))
	}
	e.handler = handlerFor(ToolSelect)
	return e
}

func serviceFor(c config.AI) aiservice.Service {
	if c.Endpoint == "" {
		return aiservice.NewLocal()
	}
	return aiservice.NewHTTPClient(c.Endpoint, c.Timeout)
}

// lock acquires the engine; unlock releases it and then delivers the
// events staged meanwhile.
func (e *Engine) lock() error {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return ErrDestroyed
	}
	return nil
}

func (e *Engine) unlock() {
	evs := e.pending
	e.pending = nil
	e.mu.Unlock()
	for _, ev := range evs {
		e.bus.Publish(ev)
	}
}

func (e *Engine) emit(ev events.Event) { e.pending = append(e.pending, ev) }

// Bus returns the bus engine events are published on.
func (e *Engine) Bus() *events.Bus { return e.bus }

// Filters exposes the filter and preset registry.
func (e *Engine) Filters() *filter.Registry { return e.filters }

// State returns a copy of the editing state.
func (e *Engine) State() EditingState {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := e.state
	st.Selection, _ = e.sel.Active()
	return st
}

// UpdateState lets fn change styles, zoom and preview. Tool and Selection
// changes made by fn are ignored; use SetTool and SetSelection.
func (e *Engine) UpdateState(fn func(*EditingState)) error {
	if err := e.lock(); err != nil {
		return err
	}
	defer e.unlock()
	st := e.state
	fn(&st)
	st.Tool = e.state.Tool
	st.Selection = selection.Area{}
	if st.Zoom <= 0 {
		st.Zoom = e.state.Zoom
	}
	e.state = st
	e.retouch.SetBrush(st.Retouch)
	return nil
}

// Size reports the canvas size.
func (e *Engine) Size() (int, int) { return e.renderer.Size() }

// BaseImage returns a copy of the editable raster, or nil.
func (e *Engine) BaseImage() *image.RGBA { return e.renderer.BaseImage() }

// Node returns a copy of the node behind h.
func (e *Engine) Node(h scene.Handle) (scene.Node, error) { return e.renderer.Node(h) }

// Nodes lists the nodes of a layer bottom to top.
func (e *Engine) Nodes(l scene.LayerID) []scene.Handle { return e.renderer.Nodes(l) }

// Selected returns the node carrying the transformer.
func (e *Engine) Selected() (scene.Handle, bool) { return e.renderer.Selected() }

// History returns the recorded actions with undo and redo flags.
func (e *Engine) History() []history.Action { return e.history.Actions() }

// Tasks returns the retouch tasks committed in this session.
func (e *Engine) Tasks() []retouch.RepairTask { return e.retouch.Tasks() }

// Processing reports whether an AI request is running.
func (e *Engine) Processing() bool { return e.retouch.Processing() }

// Render composites the scene with the overlay. It never observes a
// half-applied undo or redo.
func (e *Engine) Render() *image.RGBA {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.renderer.Render()
}

// Flatten composites the scene without the overlay.
func (e *Engine) Flatten() *image.RGBA {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.renderer.Flatten()
}

// perform snapshots the scene, runs fn and records the change. When fn
// fails the scene is restored and nothing is recorded. e.mu must be held.
func (e *Engine) perform(kind, desc string, fn func() error) error {
	before, err := e.renderer.Snapshot()
	if err != nil {
		return fmt.Errorf("%s: snapshot: %w", kind, err)
	}
	mark := len(e.pending)
	if err := fn(); err != nil {
		e.rollback(kind, before, mark)
		return err
	}
	return e.record(kind, desc, before)
}

// rollback restores before and drops the events staged after mark.
func (e *Engine) rollback(kind string, before []byte, mark int) {
	e.pending = e.pending[:mark]
	if err := e.renderer.Restore(before); err != nil {
		e.logger.Printf("%s: rollback: %v", kind, err)
	}
}

// record pushes the change since before onto the history. e.mu must be held.
func (e *Engine) record(kind, desc string, before []byte) error {
	after, err := e.renderer.Snapshot()
	if err != nil {
		return fmt.Errorf("%s: snapshot: %w", kind, err)
	}
	a := e.history.Push(history.Action{Type: kind, Description: desc, Before: before, After: after})
	e.revision++
	e.emit(events.ActionPerformed{Action: a.Type, Description: a.Description, CanUndo: e.history.CanUndo(), CanRedo: e.history.CanRedo()})
	return nil
}

// Undo reverts the last action. It reports false when there is nothing to
// undo.
func (e *Engine) Undo() bool {
	if e.lock() != nil {
		return false
	}
	defer e.unlock()
	e.handler.cancel(e)
	a, ok := e.history.Undo()
	if !ok {
		return false
	}
	if err := e.renderer.Restore(a.Before); err != nil {
		e.logger.Printf("undo %s: %v", a.Type, err)
		e.history.Redo()
		return false
	}
	e.afterRestore()
	e.emit(events.ActionPerformed{Action: "undo", Description: a.Description, CanUndo: e.history.CanUndo(), CanRedo: e.history.CanRedo()})
	return true
}

// Redo re-applies the last undone action.
func (e *Engine) Redo() bool {
	if e.lock() != nil {
		return false
	}
	defer e.unlock()
	e.handler.cancel(e)
	a, ok := e.history.Redo()
	if !ok {
		return false
	}
	if err := e.renderer.Restore(a.After); err != nil {
		e.logger.Printf("redo %s: %v", a.Type, err)
		e.history.Undo()
		return false
	}
	e.afterRestore()
	e.emit(events.ActionPerformed{Action: "redo", Description: a.Description, CanUndo: e.history.CanUndo(), CanRedo: e.history.CanRedo()})
	return true
}

// afterRestore drops session state that may refer to the replaced scene.
func (e *Engine) afterRestore() {
	e.revision++
	e.text.CancelEdit()
	w, h := e.renderer.Size()
	if a, ok := e.sel.Active(); ok && !a.Bounds().Overlaps(image.Rect(0, 0, w, h)) {
		e.clearSelection()
	}
}

// Snapshot serialises the scene.
func (e *Engine) Snapshot() ([]byte, error) {
	if err := e.lock(); err != nil {
		return nil, err
	}
	defer e.unlock()
	return e.renderer.Snapshot()
}

// Export encodes the scene without the overlay and publishes Exported.
func (e *Engine) Export(opts raster.ExportOptions) ([]byte, error) {
	if err := e.lock(); err != nil {
		return nil, err
	}
	defer e.unlock()
	if opts.Format == "" {
		f, err := raster.ParseFormat(e.cfg.Export.Format)
		if err != nil {
			return nil, err
		}
		opts.Format = f
	}
	if opts.Quality == 0 {
		opts.Quality = e.cfg.Export.Quality
	}
	data, err := e.renderer.ExportRaster(opts)
	if err != nil {
		return nil, err
	}
	e.emit(events.Exported{Format: string(opts.Format), Size: len(data)})
	return data, nil
}

// Destroy cancels pending AI work, detaches subscribers and clears the
// session. Later calls fail with ErrDestroyed.
func (e *Engine) Destroy() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return
	}
	e.destroyed = true
	e.cancel()
	e.handler.cancel(e)
	e.text.CancelEdit()
	e.retouch.ClearCloneSource()
	for _, fn := range e.detach {
		fn()
	}
	e.detach = nil
	e.pending = nil
	e.history.Clear()
	e.state = DefaultState()
}
