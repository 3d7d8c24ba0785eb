package game

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrOutOfRange           = errors.New("out of range")
	ErrNotFound             = errors.New("not found")
	ErrNotImplemented       = errors.New("not implemented")
	ErrInternal             = errors.New("internal error")
	ErrDuplicateIdempotency = errors.New("duplicate idempotency key")
)

// Game is one running economy. Implementations are not safe for concurrent
// use; Simulation serializes access.
type Game interface {
	Money() float64
	MoneyInc() float64
	MoneyDec() float64
	Time() float64

	// Curves returns copies of the upgrade curves in kind order.
	Curves() []*Curve
	Levels() []int
	KindNames() []string

	Stats() (Stats, error)
	Tick(delta float64) error
	AvailableChoices() ([]Choice, error)

	// TryChoice re-validates c against live state. A false result with a nil
	// error means the purchase was rejected and nothing changed.
	TryChoice(c Choice) (bool, error)
	ChoiceHistory() []Choice

	EditCurve(index int, edit CurveEdit) error
}

func validateDelta(delta float64) error {
	if math.IsNaN(delta) || math.IsInf(delta, 0) || delta < 0 {
		return fmt.Errorf("%w: tick delta must be a finite number >= 0, got %v", ErrInvalidArgument, delta)
	}
	return nil
}

func clampLevel(level, maxLevel int) int {
	if level < 0 {
		return 0
	}
	if level > maxLevel {
		return maxLevel
	}
	return level
}
