package game

import (
	"fmt"
	"slices"
)

// ModelType names a game model and knows how to build a fresh instance.
type ModelType struct {
	Name string
	New  func() (Game, error)
}

// Models is the ordered list of model types a server can instantiate.
// It is fixed at construction.
type Models struct {
	types []ModelType
}

func NewModels(types ...ModelType) *Models {
	return &Models{types: slices.Clone(types)}
}

// DefaultModels returns [example, port]. init, when set, runs on every new
// instance before it is handed out, e.g. to apply curve presets.
func DefaultModels(portLanes int, init func(model string, g Game) error) *Models {
	wrap := func(name string, build func() Game) ModelType {
		return ModelType{Name: name, New: func() (Game, error) {
			g := build()
			if init != nil {
				if err := init(name, g); err != nil {
					return nil, fmt.Errorf("init %s model: %w", name, err)
				}
			}
			return g, nil
		}}
	}
	return NewModels(
		wrap("example", func() Game { return NewExampleGame() }),
		wrap("port", func() Game { return NewIdlePort(portLanes) }),
	)
}

func (m *Models) Len() int {
	return len(m.types)
}

func (m *Models) Names() []string {
	out := make([]string, len(m.types))
	for i, t := range m.types {
		out[i] = t.Name
	}
	return out
}

func (m *Models) Name(index int) (string, error) {
	if index < 0 || index >= len(m.types) {
		return "", fmt.Errorf("%w: model index %d (have %d)", ErrOutOfRange, index, len(m.types))
	}
	return m.types[index].Name, nil
}

// Instantiate builds a new, independent instance of the model at index.
// A constructor that fails, panics or returns nil yields ErrInternal.
func (m *Models) Instantiate(index int) (g Game, err error) {
	name, err := m.Name(index)
	if err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			g, err = nil, fmt.Errorf("%w: construct %s: %v", ErrInternal, name, r)
		}
	}()
	g, err = m.types[index].New()
	if err != nil {
		return nil, fmt.Errorf("%w: construct %s: %v", ErrInternal, name, err)
	}
	if g == nil {
		return nil, fmt.Errorf("%w: construct %s: nil game", ErrInternal, name)
	}
	return g, nil
}
