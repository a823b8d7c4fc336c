package filter

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

//go:embed presets.yaml
var builtinPresets []byte

type presetBundle struct {
	Presets []Preset `yaml:"presets"`
}

// ParsePresets reads a YAML preset bundle:
//
//	presets:
//	  - name: warm
//	    filter: vintage
//	    params: {intensity: 60}
func ParsePresets(r io.Reader) ([]Preset, error) {
	var b presetBundle
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&b); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("parse presets: %w", err)
	}
	return b.Presets, nil
}

// LoadPresets parses a bundle and registers every preset in it. Nothing is
// registered unless the whole bundle is valid.
func (r *Registry) LoadPresets(src io.Reader) (int, error) {
	ps, err := ParsePresets(src)
	if err != nil {
		return 0, err
	}
	for _, p := range ps {
		f, ok := r.Get(p.FilterID)
		if !ok {
			return 0, fmt.Errorf("preset %s: %w: %q", p.Name, ErrUnknownFilter, p.FilterID)
		}
		if _, err := f.Resolve(p.Params); err != nil {
			return 0, fmt.Errorf("preset %s: %w", p.Name, err)
		}
	}
	for _, p := range ps {
		if err := r.AddPreset(p); err != nil {
			return 0, err
		}
	}
	return len(ps), nil
}

// MarshalPresets renders presets as a YAML bundle.
func MarshalPresets(ps []Preset) ([]byte, error) {
	return yaml.Marshal(presetBundle{Presets: ps})
}

func (r *Registry) loadBuiltinPresets() error {
	_, err := r.LoadPresets(bytes.NewReader(builtinPresets))
	return err
}
