package game

import (
	"fmt"
	"slices"
)

type PortResource int

const (
	BuyLane PortResource = iota

	BuyShipCrane
	BuyTrucks
	BuyYardCranes
	BuyShips
	BuyYard
	BuyTrains

	ShipCraneSpeed
	ShipCraneMoney
	TruckSpeed
	TruckSpawn
	TruckLevel
	TruckMoney
	YardCraneSpeed
	YardCraneMoney
	ShipSpeed
	ShipLevel
	ShipMoney
	YardInterval
	YardMoney
	YardLevel
	TrainSpeed
	TrainSpawn
	TrainLevel
	TrainMoney

	portResourceCount
)

var portResourceNames = [portResourceCount]string{
	"buy_lane",
	"buy_ship_crane", "buy_trucks", "buy_yard_cranes", "buy_ships", "buy_yard", "buy_trains",
	"ship_crane_speed", "ship_crane_money",
	"truck_speed", "truck_spawn", "truck_level", "truck_money",
	"yard_crane_speed", "yard_crane_money",
	"ship_speed", "ship_level", "ship_money",
	"yard_interval", "yard_money", "yard_level",
	"train_speed", "train_spawn", "train_level", "train_money",
}

func (r PortResource) String() string {
	if r < 0 || r >= portResourceCount {
		return fmt.Sprintf("PortResource(%d)", int(r))
	}
	return portResourceNames[r]
}

// Purchases (buy_*) are one-shot unlocks; tuning kinds have ten levels.
func (r PortResource) defaultMaxLevel() int {
	if r <= BuyTrains {
		return 1
	}
	return 10
}

type PortLane struct {
	Index  int
	Curves [portResourceCount]*Curve
	Levels [portResourceCount]int
}

func newPortLane(index int) *PortLane {
	l := &PortLane{Index: index}
	for r := PortResource(0); r < portResourceCount; r++ {
		l.Curves[r] = NewCurve(int(r), r.defaultMaxLevel())
	}
	return l
}

// IdlePort is the multi-lane port economy. Only its shape exists so far:
// curves, levels and kind names are served, the economy itself is not.
type IdlePort struct {
	money    float64
	moneyInc float64
	moneyDec float64
	time     float64

	lanes   []*PortLane
	history []Choice
}

func NewIdlePort(laneCount int) *IdlePort {
	if laneCount < 1 {
		laneCount = 1
	}
	p := &IdlePort{lanes: make([]*PortLane, laneCount)}
	for i := range p.lanes {
		p.lanes[i] = newPortLane(i)
	}
	return p
}

func (p *IdlePort) Money() float64    { return p.money }
func (p *IdlePort) MoneyInc() float64 { return p.moneyInc }
func (p *IdlePort) MoneyDec() float64 { return p.moneyDec }
func (p *IdlePort) Time() float64     { return p.time }

func (p *IdlePort) Lanes() int { return len(p.lanes) }

func (p *IdlePort) Curves() []*Curve {
	out := make([]*Curve, 0, len(p.lanes)*int(portResourceCount))
	for _, l := range p.lanes {
		for _, c := range l.Curves {
			out = append(out, c.Clone())
		}
	}
	return out
}

func (p *IdlePort) Levels() []int {
	out := make([]int, 0, len(p.lanes)*int(portResourceCount))
	for _, l := range p.lanes {
		out = append(out, l.Levels[:]...)
	}
	return out
}

func (p *IdlePort) KindNames() []string {
	out := make([]string, 0, len(p.lanes)*int(portResourceCount))
	for _, l := range p.lanes {
		for r := PortResource(0); r < portResourceCount; r++ {
			out = append(out, fmt.Sprintf("lane%d.%s", l.Index, r))
		}
	}
	return out
}

func (p *IdlePort) ChoiceHistory() []Choice {
	return slices.Clone(p.history)
}

func (p *IdlePort) Stats() (Stats, error) {
	return Stats{}, fmt.Errorf("%w: port stats", ErrNotImplemented)
}

func (p *IdlePort) Tick(delta float64) error {
	if err := validateDelta(delta); err != nil {
		return err
	}
	return fmt.Errorf("%w: port tick", ErrNotImplemented)
}

func (p *IdlePort) AvailableChoices() ([]Choice, error) {
	return nil, fmt.Errorf("%w: port choices", ErrNotImplemented)
}

func (p *IdlePort) TryChoice(Choice) (bool, error) {
	return false, fmt.Errorf("%w: port purchases", ErrNotImplemented)
}

// EditCurve addresses curves lane-major: index = lane*resources + resource.
func (p *IdlePort) EditCurve(index int, edit CurveEdit) error {
	n := int(portResourceCount)
	if index < 0 || index >= len(p.lanes)*n {
		return fmt.Errorf("%w: curve index %d", ErrOutOfRange, index)
	}
	lane, r := p.lanes[index/n], index%n
	lane.Curves[r].Apply(edit)
	lane.Levels[r] = clampLevel(lane.Levels[r], lane.Curves[r].MaxLevel())
	return nil
}
