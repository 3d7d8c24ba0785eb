package game

import (
	"fmt"
	"slices"
)

// Curve holds the per-level prices and values of one upgrade kind.
// Prices[i] is the cost of going from level i to i+1 and Values[i] is the
// effect while at level i, so len(Values) == len(Prices)+1.
type Curve struct {
	Kind   int
	Prices []float64
	Values []float64
}

func NewCurve(kind, maxLevel int) *Curve {
	if maxLevel < 1 {
		maxLevel = 1
	}
	return &Curve{
		Kind:   kind,
		Prices: make([]float64, maxLevel),
		Values: make([]float64, maxLevel+1),
	}
}

func (c *Curve) MaxLevel() int {
	return len(c.Prices)
}

func (c *Curve) Price(level int) (float64, error) {
	if level < 0 || level >= len(c.Prices) {
		return 0, fmt.Errorf("%w: price level %d (max level %d)", ErrOutOfRange, level, c.MaxLevel())
	}
	return c.Prices[level], nil
}

func (c *Curve) Value(level int) (float64, error) {
	if level < 0 || level >= len(c.Values) {
		return 0, fmt.Errorf("%w: value level %d (max level %d)", ErrOutOfRange, level, c.MaxLevel())
	}
	return c.Values[level], nil
}

// SetPrice ignores out-of-bounds levels.
func (c *Curve) SetPrice(level int, v float64) {
	if level < 0 || level >= len(c.Prices) {
		return
	}
	c.Prices[level] = v
}

// SetValue ignores out-of-bounds levels.
func (c *Curve) SetValue(level int, v float64) {
	if level < 0 || level >= len(c.Values) {
		return
	}
	c.Values[level] = v
}

// SetMaxLevel grows the curve with zeroed levels or truncates it from the top.
// n is clamped to at least 1.
func (c *Curve) SetMaxLevel(n int) {
	if n < 1 {
		n = 1
	}
	for len(c.Prices) < n {
		c.Prices = append(c.Prices, 0)
		c.Values = append(c.Values, 0)
	}
	if len(c.Prices) > n {
		c.Prices = c.Prices[:n]
		c.Values = c.Values[:n+1]
	}
}

// Apply runs edit in order: max level, prices, values.
func (c *Curve) Apply(edit CurveEdit) {
	if edit.MaxLevel != nil {
		c.SetMaxLevel(*edit.MaxLevel)
	}
	for level, v := range edit.Prices {
		c.SetPrice(level, v)
	}
	for level, v := range edit.Values {
		c.SetValue(level, v)
	}
}

func (c *Curve) Clone() *Curve {
	return &Curve{
		Kind:   c.Kind,
		Prices: slices.Clone(c.Prices),
		Values: slices.Clone(c.Values),
	}
}

func (c *Curve) View(index int, name string) CurveView {
	return CurveView{
		Index:    index,
		Kind:     c.Kind,
		Name:     name,
		MaxLevel: c.MaxLevel(),
		Prices:   slices.Clone(c.Prices),
		Values:   slices.Clone(c.Values),
	}
}
