// Package preset loads operator-tuned upgrade curves from YAML and applies
// them to freshly built game models.
package preset

import (
	"fmt"
	"math"
	"os"
	"slices"
	"sort"

	"tart/internal/game"

	"gopkg.in/yaml.v3"
)

type Curve struct {
	MaxLevel *int      `yaml:"max_level"`
	Prices   []float64 `yaml:"prices"`
	Values   []float64 `yaml:"values"`
}

// File maps model name -> kind name -> curve.
type File struct {
	Models map[string]map[string]Curve `yaml:"models"`
}

func Parse(raw []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse presets: %w", err)
	}
	return &f, nil
}

func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read presets: %w", err)
	}
	return Parse(raw)
}

// Edit converts a preset curve into a curve edit. Entries beyond the
// curve's max level are dropped by the curve itself.
func (c Curve) Edit() game.CurveEdit {
	edit := game.CurveEdit{MaxLevel: c.MaxLevel}
	if len(c.Prices) > 0 {
		edit.Prices = make(map[int]float64, len(c.Prices))
		for i, v := range c.Prices {
			edit.Prices[i] = v
		}
	}
	if len(c.Values) > 0 {
		edit.Values = make(map[int]float64, len(c.Values))
		for i, v := range c.Values {
			edit.Values[i] = v
		}
	}
	return edit
}

func (c Curve) finite() bool {
	for _, v := range slices.Concat(c.Prices, c.Values) {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Apply edits g's curves with the presets configured for model. Kind names
// that g does not know are an error. A nil File applies nothing.
func (f *File) Apply(model string, g game.Game) error {
	if f == nil {
		return nil
	}
	curves, ok := f.Models[model]
	if !ok {
		return nil
	}
	names := g.KindNames()
	kinds := make([]string, 0, len(curves))
	for kind := range curves {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		index := slices.Index(names, kind)
		if index < 0 {
			return fmt.Errorf("%w: preset for %s has unknown kind %q", game.ErrInvalidArgument, model, kind)
		}
		if !curves[kind].finite() {
			return fmt.Errorf("%w: preset %s.%s has a non-finite entry", game.ErrInvalidArgument, model, kind)
		}
		if err := g.EditCurve(index, curves[kind].Edit()); err != nil {
			return fmt.Errorf("apply %s.%s: %w", model, kind, err)
		}
	}
	return nil
}

// Validate builds one instance of every model named in f so a bad file
// fails at startup rather than on first create. models must apply f.
func (f *File) Validate(models *game.Models) error {
	if f == nil {
		return nil
	}
	names := models.Names()
	for model := range f.Models {
		index := slices.Index(names, model)
		if index < 0 {
			return fmt.Errorf("%w: preset for unknown model %q", game.ErrInvalidArgument, model)
		}
		if _, err := models.Instantiate(index); err != nil {
			return fmt.Errorf("validate %s presets: %w", model, err)
		}
	}
	return nil
}
