// Package filter is the registry of named, parameterised pixel filters and
// the presets bound to them.
package filter

import (
	"errors"
	"fmt"
	"image"
	"sort"
	"sync"

	"github.com/example/retoucher/internal/raster"
)

var (
	ErrUnknownFilter   = errors.New("unknown filter")
	ErrUnknownPreset   = errors.New("unknown preset")
	ErrUnknownParam    = errors.New("unknown filter parameter")
	ErrParamOutOfRange = errors.New("filter parameter out of range")
	// ErrBufferContract is returned when a filter hands back a buffer of the
	// wrong size or the input buffer itself.
	ErrBufferContract = errors.New("filter violated the buffer contract")
)

// Category groups filters for listing.
type Category string

const (
	CategoryAdjust   Category = "adjust"
	CategoryColor    Category = "color"
	CategoryBlur     Category = "blur"
	CategoryStylize  Category = "stylize"
	CategoryArtistic Category = "artistic"
	CategoryNoise    Category = "noise"
	CategoryDistort  Category = "distort"
)

// Param describes one tunable. Value is the default.
type Param struct {
	Name  string
	Value float64
	Min   float64
	Max   float64
	Step  float64
	Unit  string
}

// Values maps parameter names to values.
type Values map[string]float64

// Func transforms src into a new buffer of the same size. It must not
// write to src.
type Func func(src *image.RGBA, v Values) *image.RGBA

// Filter is a registered filter.
type Filter struct {
	ID       string
	Name     string
	Category Category
	Params   []Param
	Apply    Func
}

// Defaults returns the default value of every parameter.
func (f Filter) Defaults() Values {
	v := make(Values, len(f.Params))
	for _, p := range f.Params {
		v[p.Name] = p.Value
	}
	return v
}

// Resolve fills unset parameters with defaults and validates the rest.
func (f Filter) Resolve(in Values) (Values, error) {
	out := f.Defaults()
	for name, val := range in {
		p, ok := f.param(name)
		if !ok {
			return nil, fmt.Errorf("%s: %w %q", f.ID, ErrUnknownParam, name)
		}
		if !(val >= p.Min && val <= p.Max) {
			return nil, fmt.Errorf("%s: %s=%v not in [%v,%v]: %w", f.ID, name, val, p.Min, p.Max, ErrParamOutOfRange)
		}
		out[name] = val
	}
	return out, nil
}

func (f Filter) param(name string) (Param, bool) {
	for _, p := range f.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// Preset is a named parameter bundle for a filter.
type Preset struct {
	Name        string `yaml:"name"`
	FilterID    string `yaml:"filter"`
	Description string `yaml:"description,omitempty"`
	Params      Values `yaml:"params"`
}

// Registry maps filter ids to filters and preset names to presets. It is
// safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	filters map[string]Filter
	order   []string
	presets map[string]Preset
	porder  []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{filters: map[string]Filter{}, presets: map[string]Preset{}}
}

// Default returns a registry with every built-in filter and preset.
func Default() *Registry {
	r := NewRegistry()
	for _, f := range Builtins() {
		if err := r.Register(f); err != nil {
			panic(err)
		}
	}
	if err := r.loadBuiltinPresets(); err != nil {
		panic(err)
	}
	return r
}

// Register adds f. Duplicate ids and inconsistent parameter ranges fail.
func (r *Registry) Register(f Filter) error {
	if f.ID == "" || f.Apply == nil {
		return fmt.Errorf("register filter %q: missing id or apply func", f.ID)
	}
	for _, p := range f.Params {
		if !(p.Min <= p.Max && p.Value >= p.Min && p.Value <= p.Max) {
			return fmt.Errorf("register filter %s: param %s default %v outside [%v,%v]", f.ID, p.Name, p.Value, p.Min, p.Max)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.filters[f.ID]; dup {
		return fmt.Errorf("register filter %s: already registered", f.ID)
	}
	r.filters[f.ID] = f
	r.order = append(r.order, f.ID)
	return nil
}

// Get returns the filter registered under id.
func (r *Registry) Get(id string) (Filter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.filters[id]
	return f, ok
}

// List returns every filter in registration order.
func (r *Registry) List() []Filter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Filter, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.filters[id])
	}
	return out
}

// Categories returns the distinct categories in use, sorted.
func (r *Registry) Categories() []Category {
	seen := map[Category]bool{}
	var out []Category
	for _, f := range r.List() {
		if !seen[f.Category] {
			seen[f.Category] = true
			out = append(out, f.Category)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Apply runs filter id over src. src is never modified; the result is a
// fresh buffer with the same dimensions.
func (r *Registry) Apply(id string, src *image.RGBA, values Values) (*image.RGBA, error) {
	f, ok := r.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFilter, id)
	}
	if src == nil {
		return nil, fmt.Errorf("%s: nil image", id)
	}
	v, err := f.Resolve(values)
	if err != nil {
		return nil, err
	}
	in := raster.ToRGBA(src)
	out := f.Apply(in, v)
	if out == nil || out.Bounds().Size() != in.Bounds().Size() {
		return nil, fmt.Errorf("%s: %w: size changed", id, ErrBufferContract)
	}
	if len(out.Pix) > 0 && len(in.Pix) > 0 && &out.Pix[0] == &in.Pix[0] {
		return nil, fmt.Errorf("%s: %w: wrote into its input", id, ErrBufferContract)
	}
	return out, nil
}

// AddPreset registers p after checking its filter and parameters.
func (r *Registry) AddPreset(p Preset) error {
	if p.Name == "" {
		return fmt.Errorf("preset without a name")
	}
	f, ok := r.Get(p.FilterID)
	if !ok {
		return fmt.Errorf("preset %s: %w: %q", p.Name, ErrUnknownFilter, p.FilterID)
	}
	if _, err := f.Resolve(p.Params); err != nil {
		return fmt.Errorf("preset %s: %w", p.Name, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.presets[p.Name]; !dup {
		r.porder = append(r.porder, p.Name)
	}
	r.presets[p.Name] = p
	return nil
}

// Preset returns the preset called name.
func (r *Registry) Preset(name string) (Preset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.presets[name]
	return p, ok
}

// Presets returns every preset in registration order.
func (r *Registry) Presets() []Preset {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Preset, 0, len(r.porder))
	for _, n := range r.porder {
		out = append(out, r.presets[n])
	}
	return out
}

// ApplyPreset is Apply with the preset's filter and parameters.
func (r *Registry) ApplyPreset(name string, src *image.RGBA) (*image.RGBA, error) {
	p, ok := r.Preset(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	return r.Apply(p.FilterID, src, p.Params)
}
