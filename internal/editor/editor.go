// Package editor is the interactive window around an engine session. It
// forwards window input to the active tool and repaints whenever the engine
// publishes an event.
package editor

import (
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/exp/shiny/driver"
	"golang.org/x/exp/shiny/screen"
	"golang.org/x/mobile/event/key"
	"golang.org/x/mobile/event/lifecycle"
	"golang.org/x/mobile/event/mouse"
	"golang.org/x/mobile/event/paint"
	"golang.org/x/mobile/event/size"

	"github.com/example/retoucher/internal/clipboard"
	"github.com/example/retoucher/internal/engine"
	"github.com/example/retoucher/internal/events"
	"github.com/example/retoucher/internal/raster"
	"github.com/example/retoucher/internal/theme"
)

const zoomStep = 1.25

// Window shows one engine session.
type Window struct {
	eng     *engine.Engine
	theme   *theme.Theme
	logger  *log.Logger
	output  string
	title   string
	toolbar int

	updateCh chan struct{}

	mu      sync.Mutex
	message string

	onClose   func()
	closeOnce sync.Once
}

// Option modifies a Window during creation.
type Option func(*Window)

// WithTheme sets the window colours.
func WithTheme(t *theme.Theme) Option { return func(w *Window) { w.theme = t } }

// WithLogger routes window diagnostics.
func WithLogger(l *log.Logger) Option { return func(w *Window) { w.logger = l } }

// WithOutput sets the file Ctrl+S writes to.
func WithOutput(path string) Option { return func(w *Window) { w.output = path } }

// WithTitle overrides the window title.
func WithTitle(title string) Option { return func(w *Window) { w.title = title } }

// WithOnClose registers a callback invoked when the window closes.
func WithOnClose(fn func()) Option { return func(w *Window) { w.onClose = fn } }

// New creates a window over eng.
func New(eng *engine.Engine, opts ...Option) *Window {
	w := &Window{
		eng:      eng,
		theme:    theme.Default(),
		logger:   log.Default(),
		toolbar:  toolbarWidth(),
		updateCh: make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(w)
	}
	if w.title == "" {
		w.title = ProgramTitle
		if w.output != "" {
			w.title += " - " + filepath.Base(w.output)
		}
	}
	return w
}

// Run executes the UI loop using shiny's driver. It returns once the
// window is closed.
func (w *Window) Run() { driver.Main(w.Main) }

// Main runs the event loop on s.
func (w *Window) Main(s screen.Screen) {
	width, height := w.initialSize()
	win, err := s.NewWindow(&screen.NewWindowOptions{Width: width, Height: height, Title: w.title})
	if err != nil {
		w.logger.Printf("new window: %v", err)
		return
	}
	defer win.Release()
	defer w.notifyClose()

	unsub := w.eng.Bus().Subscribe(w.observe)
	defer unsub()
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-w.updateCh:
				win.Send(paint.Event{})
			case <-done:
				return
			}
		}
	}()
	defer close(done)

	w.fit(width, height)
	for {
		switch e := win.NextEvent().(type) {
		case lifecycle.Event:
			if e.To == lifecycle.StageDead {
				return
			}
		case size.Event:
			width, height = e.WidthPx, e.HeightPx
			win.Send(paint.Event{})
		case paint.Event:
			w.paint(s, win, width, height)
		case mouse.Event:
			if w.handleMouse(e) {
				win.Send(paint.Event{})
			}
		case key.Event:
			redraw, quit := w.handleKey(e, width, height)
			if quit {
				return
			}
			if redraw {
				win.Send(paint.Event{})
			}
		}
	}
}

func (w *Window) initialSize() (int, int) {
	cw, ch := w.eng.Size()
	if cw <= 0 || ch <= 0 {
		cw, ch = 640, 480
	}
	return cw + w.toolbar, ch + statusHeight
}

func (w *Window) notifyClose() {
	w.closeOnce.Do(func() {
		if w.onClose != nil {
			w.onClose()
		}
	})
}

// observe runs on the engine's goroutine; it only records and wakes the
// paint loop.
func (w *Window) observe(ev events.Event) {
	if msg := describe(ev); msg != "" {
		w.setMessage(msg)
	}
	select {
	case w.updateCh <- struct{}{}:
	default:
	}
}

func describe(ev events.Event) string {
	switch e := ev.(type) {
	case events.ActionPerformed:
		return e.Description
	case events.ImageLoaded:
		if e.Err != nil {
			return "load failed: " + e.Err.Error()
		}
	case events.BackgroundRemoved:
		if !e.Success {
			return "background removal failed: " + e.Err.Error()
		}
		return "background removed"
	case events.ObjectRemoved:
		if !e.Success {
			return "object removal failed: " + e.Err.Error()
		}
		return "object removed"
	case events.Exported:
		return fmt.Sprintf("exported %s (%d bytes)", e.Format, e.Size)
	}
	return ""
}

func (w *Window) setMessage(s string) {
	w.mu.Lock()
	w.message = s
	w.mu.Unlock()
}

func (w *Window) currentMessage() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.message
}

func (w *Window) frame() frame {
	return frame{
		toolbar: w.toolbar,
		canvas:  w.eng.Render(),
		state:   w.eng.State(),
		busy:    w.eng.Processing(),
		message: w.currentMessage(),
	}
}

func (w *Window) paint(s screen.Screen, win screen.Window, width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	b, err := s.NewBuffer(image.Point{width, height})
	if err != nil {
		w.logger.Printf("new buffer: %v", err)
		return
	}
	defer b.Release()
	compose(b.RGBA(), w.theme, w.frame())
	win.Upload(image.Point{}, b, b.Bounds())
	win.Publish()
}

// fit zooms the canvas to the window and anchors it beside the toolbar.
func (w *Window) fit(width, height int) {
	cw, ch := w.eng.Size()
	z := fitZoom(image.Pt(cw, ch), width, height, w.toolbar)
	w.eng.UpdateState(func(st *engine.EditingState) {
		st.Zoom, st.PanX, st.PanY = z, float64(w.toolbar), 0
	})
}

// zoom scales by f around the canvas origin.
func (w *Window) zoom(f float64) {
	w.eng.UpdateState(func(st *engine.EditingState) {
		z := st.Zoom * f
		if z < 0.05 {
			z = 0.05
		}
		if z > 32 {
			z = 32
		}
		st.Zoom = z
	})
}

// handleMouse reports whether the window needs repainting.
func (w *Window) handleMouse(e mouse.Event) bool {
	switch e.Button {
	case mouse.ButtonWheelUp:
		if e.Direction == mouse.DirStep || e.Direction == mouse.DirPress {
			w.zoom(zoomStep)
			return true
		}
		return false
	case mouse.ButtonWheelDown:
		if e.Direction == mouse.DirStep || e.Direction == mouse.DirPress {
			w.zoom(1 / zoomStep)
			return true
		}
		return false
	}
	if int(e.X) < w.toolbar {
		if e.Direction != mouse.DirPress || e.Button != mouse.ButtonLeft {
			return false
		}
		t, ok := toolAt(image.Pt(int(e.X), int(e.Y)), w.toolbar)
		if !ok {
			return false
		}
		if err := w.eng.SetTool(t); err != nil {
			w.logger.Printf("set tool: %v", err)
		}
		return true
	}
	if err := w.eng.HandleMouse(e); err != nil {
		w.setMessage(err.Error())
		return true
	}
	return e.Direction != mouse.DirNone
}

// handleKey returns whether to repaint and whether to close the window.
func (w *Window) handleKey(e key.Event, width, height int) (redraw, quit bool) {
	if e.Direction != key.DirPress {
		return false, false
	}
	consumed, err := w.eng.HandleKey(e)
	if err != nil {
		w.setMessage(err.Error())
		return true, false
	}
	if consumed {
		return true, false
	}
	ctrl := e.Modifiers&key.ModControl != 0
	switch {
	case ctrl && e.Code == key.CodeS:
		w.save()
	case ctrl && e.Code == key.CodeC:
		w.copy()
	case ctrl && e.Code == key.CodeV:
		w.paste()
		w.fit(width, height)
	case ctrl && (e.Code == key.CodeW || e.Code == key.CodeQ):
		return false, true
	case e.Rune == '+' || e.Rune == '=':
		w.zoom(zoomStep)
	case e.Rune == '-':
		w.zoom(1 / zoomStep)
	case e.Rune == '0':
		w.fit(width, height)
	default:
		return false, false
	}
	return true, false
}

func (w *Window) save() {
	if w.output == "" {
		w.setMessage("no output file")
		return
	}
	f, err := raster.ParseFormat(strings.TrimPrefix(filepath.Ext(w.output), "."))
	if err != nil {
		w.setMessage(err.Error())
		return
	}
	data, err := w.eng.Export(raster.ExportOptions{Format: f})
	if err != nil {
		w.logger.Printf("export: %v", err)
		w.setMessage(err.Error())
		return
	}
	if err := os.WriteFile(w.output, data, 0o644); err != nil {
		w.logger.Printf("save: %v", err)
		w.setMessage(err.Error())
		return
	}
	w.setMessage("saved " + w.output)
}

func (w *Window) copy() {
	if err := clipboard.WriteImage(w.eng.Flatten()); err != nil {
		w.logger.Printf("copy: %v", err)
		w.setMessage(err.Error())
		return
	}
	w.setMessage("copied to clipboard")
}

func (w *Window) paste() {
	img, err := clipboard.ReadRGBA()
	if err != nil {
		w.logger.Printf("paste: %v", err)
		w.setMessage(err.Error())
		return
	}
	if err := w.eng.SetImage(img); err != nil {
		w.setMessage(err.Error())
	}
}
