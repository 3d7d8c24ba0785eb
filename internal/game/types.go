package game

import "maps"

type Stats struct {
	Money          float64        `json:"money"`
	MoneyPerSecond float64        `json:"money_per_second"`
	Levels         map[string]int `json:"levels"`
}

func (s Stats) clone() Stats {
	s.Levels = maps.Clone(s.Levels)
	return s
}

// Choice is a single-level purchase valued at the moment it was generated.
type Choice struct {
	Kind         int     `json:"kind"`
	KindName     string  `json:"kind_name"`
	Price        float64 `json:"price"`
	Level        int     `json:"level"`
	CurrentStats Stats   `json:"current_stats"`
	NextStats    Stats   `json:"next_stats"`
	Time         float64 `json:"time"`
}

func (c Choice) clone() Choice {
	c.CurrentStats = c.CurrentStats.clone()
	c.NextStats = c.NextStats.clone()
	return c
}

// CurveEdit is a partial curve update. Nil fields are left untouched.
type CurveEdit struct {
	MaxLevel *int            `json:"max_level,omitempty"`
	Prices   map[int]float64 `json:"prices,omitempty"`
	Values   map[int]float64 `json:"values,omitempty"`
}

type CurveView struct {
	Index    int       `json:"index"`
	Kind     int       `json:"kind"`
	Name     string    `json:"name"`
	MaxLevel int       `json:"max_level"`
	Prices   []float64 `json:"prices"`
	Values   []float64 `json:"values"`
}

type State struct {
	ID       int     `json:"id"`
	Model    string  `json:"model"`
	Money    float64 `json:"money"`
	MoneyInc float64 `json:"money_inc"`
	MoneyDec float64 `json:"money_dec"`
	Time     float64 `json:"time"`
	Levels   []int   `json:"levels"`
	Stats    *Stats  `json:"stats"`
}

type SimulationInfo struct {
	ID    int    `json:"id"`
	Model string `json:"model"`
}
