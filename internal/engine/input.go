package engine

import (
	"unicode"

	"golang.org/x/mobile/event/key"
	"golang.org/x/mobile/event/mouse"
)

// toolKeys are the single-letter tool shortcuts.
var toolKeys = map[rune]Tool{
	'v': ToolSelect,
	'm': ToolRectSelect,
	'o': ToolCircleSelect,
	'l': ToolLasso,
	'p': ToolPolygonSelect,
	'w': ToolMagicWand,
	'b': ToolBrush,
	't': ToolText,
	'u': ToolShape,
	'j': ToolSpotHeal,
	's': ToolCloneStamp,
	'h': ToolPatch,
}

// ToolKey returns the shortcut letter of t, or 0.
func ToolKey(t Tool) rune {
	for r, k := range toolKeys {
		if k == t {
			return r
		}
	}
	return 0
}

// ToCanvas maps window coordinates to canvas coordinates using the zoom and
// pan of the editing state.
func (st EditingState) ToCanvas(x, y float32) (float64, float64) {
	z := st.Zoom
	if z <= 0 {
		z = 1
	}
	return (float64(x) - st.PanX) / z, (float64(y) - st.PanY) / z
}

// HandleMouse routes a window mouse event to the active tool. Only the left
// button draws; moves are forwarded whether or not it is held.
func (e *Engine) HandleMouse(ev mouse.Event) error {
	e.mu.Lock()
	x, y := e.state.ToCanvas(ev.X, ev.Y)
	e.mu.Unlock()
	mods := modifiersOf(ev.Modifiers)
	switch ev.Direction {
	case mouse.DirPress:
		if ev.Button == mouse.ButtonLeft {
			return e.PointerDown(x, y, 1, mods)
		}
	case mouse.DirRelease:
		if ev.Button == mouse.ButtonLeft {
			return e.PointerUp(x, y, 1, mods)
		}
	case mouse.DirNone:
		return e.PointerMove(x, y, 1, mods)
	}
	return nil
}

// HandleKey applies editor shortcuts and text input. It reports whether
// the key was consumed.
func (e *Engine) HandleKey(ev key.Event) (bool, error) {
	if ev.Direction != key.DirPress {
		return false, nil
	}
	ctrl := ev.Modifiers&key.ModControl != 0
	switch {
	case ev.Code == key.CodeEscape:
		e.Cancel()
		return true, nil
	case ctrl && unicode.ToLower(ev.Rune) == 'z':
		if ev.Modifiers&key.ModShift != 0 {
			return e.Redo(), nil
		}
		return e.Undo(), nil
	case ctrl && unicode.ToLower(ev.Rune) == 'y':
		return e.Redo(), nil
	}

	if err := e.lock(); err != nil {
		return false, err
	}
	if in, ok := e.handler.(textInput); ok && in.accepting() {
		switch ev.Code {
		case key.CodeReturnEnter:
			defer e.unlock()
			return true, in.commit(e)
		case key.CodeDeleteBackspace:
			defer e.unlock()
			in.backspace(e)
			return true, nil
		}
		if ev.Rune >= 0 && unicode.IsPrint(ev.Rune) && !ctrl && in.typeRune(e, ev.Rune) {
			e.unlock()
			return true, nil
		}
	}

	h, selected := e.renderer.Selected()
	if selected && e.state.Tool == ToolSelect && (ev.Code == key.CodeDeleteBackspace || ev.Code == key.CodeDeleteForward) {
		defer e.unlock()
		return true, e.removeNode(h)
	}
	e.unlock()

	if t, ok := toolKeys[unicode.ToLower(ev.Rune)]; ok && !ctrl {
		return true, e.SetTool(t)
	}
	return false, nil
}
