package game

import (
	"fmt"
	"math"
	"slices"
)

type ExampleKind int

const (
	ExampleSpeed ExampleKind = iota
	ExampleMoney
)

var exampleKindNames = []string{"speed", "money"}

func (k ExampleKind) String() string {
	if k < 0 || int(k) >= len(exampleKindNames) {
		return fmt.Sprintf("ExampleKind(%d)", int(k))
	}
	return exampleKindNames[k]
}

const exampleMaxLevel = 10

// ExampleGame is the reference two-resource economy: income per second is
// value(speed) * value(money) / 1000.
type ExampleGame struct {
	money    float64
	moneyInc float64
	moneyDec float64
	time     float64

	curves  []*Curve
	levels  []int
	history []Choice
}

func NewExampleGame() *ExampleGame {
	g := &ExampleGame{
		curves: make([]*Curve, len(exampleKindNames)),
		levels: make([]int, len(exampleKindNames)),
	}
	for i := range g.curves {
		g.curves[i] = NewCurve(i, exampleMaxLevel)
	}
	return g
}

func (g *ExampleGame) Money() float64    { return g.money }
func (g *ExampleGame) MoneyInc() float64 { return g.moneyInc }
func (g *ExampleGame) MoneyDec() float64 { return g.moneyDec }
func (g *ExampleGame) Time() float64     { return g.time }

func (g *ExampleGame) Curves() []*Curve {
	out := make([]*Curve, len(g.curves))
	for i, c := range g.curves {
		out[i] = c.Clone()
	}
	return out
}

func (g *ExampleGame) Levels() []int {
	return slices.Clone(g.levels)
}

func (g *ExampleGame) KindNames() []string {
	return slices.Clone(exampleKindNames)
}

func (g *ExampleGame) ChoiceHistory() []Choice {
	out := make([]Choice, len(g.history))
	for i, c := range g.history {
		out[i] = c.clone()
	}
	return out
}

// Credit adds money as income. Used by operators and tests to fund purchases.
func (g *ExampleGame) Credit(amount float64) {
	g.income(amount)
}

func (g *ExampleGame) income(amount float64) {
	g.money += amount
	g.moneyInc += amount
}

func (g *ExampleGame) moneyPerSecond(levels []int) (float64, error) {
	speed, err := g.curves[ExampleSpeed].Value(levels[ExampleSpeed])
	if err != nil {
		return 0, err
	}
	money, err := g.curves[ExampleMoney].Value(levels[ExampleMoney])
	if err != nil {
		return 0, err
	}
	perSecond := speed * money / 1000
	if !finite(perSecond) {
		return 0, fmt.Errorf("%w: income rate overflows at levels %v", ErrInvalidArgument, levels)
	}
	return perSecond, nil
}

// Tick leaves the game untouched when the advanced totals would not be
// finite numbers.
func (g *ExampleGame) Tick(delta float64) error {
	if err := validateDelta(delta); err != nil {
		return err
	}
	perSecond, err := g.moneyPerSecond(g.levels)
	if err != nil {
		return err
	}
	earned := delta * perSecond
	nextTime, nextMoney, nextInc := g.time+delta, g.money+earned, g.moneyInc+earned
	if !finite(nextTime) || !finite(nextMoney) || !finite(nextInc) {
		return fmt.Errorf("%w: tick of %v overflows money", ErrInvalidArgument, delta)
	}
	g.time, g.money, g.moneyInc = nextTime, nextMoney, nextInc
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func (g *ExampleGame) Stats() (Stats, error) {
	return g.statsAt(g.money, g.levels)
}

func (g *ExampleGame) statsAt(money float64, levels []int) (Stats, error) {
	perSecond, err := g.moneyPerSecond(levels)
	if err != nil {
		return Stats{}, err
	}
	named := make(map[string]int, len(levels))
	for i, l := range levels {
		named[exampleKindNames[i]] = l
	}
	return Stats{
		Money:          money,
		MoneyPerSecond: perSecond,
		Levels:         named,
	}, nil
}

func (g *ExampleGame) AvailableChoices() ([]Choice, error) {
	current, err := g.Stats()
	if err != nil {
		return nil, err
	}
	out := make([]Choice, 0, len(g.curves))
	for kind, curve := range g.curves {
		level := g.levels[kind]
		if level >= curve.MaxLevel() {
			continue
		}
		price, err := curve.Price(level)
		if err != nil {
			return nil, err
		}
		next := slices.Clone(g.levels)
		next[kind]++
		nextStats, err := g.statsAt(g.money-price, next)
		if err != nil {
			return nil, err
		}
		out = append(out, Choice{
			Kind:         kind,
			KindName:     exampleKindNames[kind],
			Price:        price,
			Level:        level,
			CurrentStats: current.clone(),
			NextStats:    nextStats,
			Time:         g.time,
		})
	}
	return out, nil
}

func (g *ExampleGame) TryChoice(c Choice) (bool, error) {
	if c.Kind < 0 || c.Kind >= len(g.curves) {
		return false, fmt.Errorf("%w: upgrade kind %d", ErrOutOfRange, c.Kind)
	}
	curve := g.curves[c.Kind]
	level := g.levels[c.Kind]
	if level >= curve.MaxLevel() || c.Level != level {
		return false, nil
	}
	price, err := curve.Price(level)
	if err != nil {
		return false, err
	}
	if price != c.Price || g.money < price {
		return false, nil
	}
	nextMoney, nextDec := g.money-price, g.moneyDec-price
	if !finite(nextMoney) || !finite(nextDec) {
		return false, fmt.Errorf("%w: price %v overflows money", ErrInvalidArgument, price)
	}

	g.money, g.moneyDec = nextMoney, nextDec
	g.levels[c.Kind]++
	applied := c.clone()
	applied.KindName = exampleKindNames[c.Kind]
	g.history = append(g.history, applied)
	return true, nil
}

func (g *ExampleGame) EditCurve(index int, edit CurveEdit) error {
	if index < 0 || index >= len(g.curves) {
		return fmt.Errorf("%w: curve index %d", ErrOutOfRange, index)
	}
	curve := g.curves[index]
	curve.Apply(edit)
	g.levels[index] = clampLevel(g.levels[index], curve.MaxLevel())
	return nil
}
