package game

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func checkCurveShape(t *testing.T, c *Curve) {
	t.Helper()
	if len(c.Values) != len(c.Prices)+1 {
		t.Fatalf("len(values)=%d len(prices)=%d", len(c.Values), len(c.Prices))
	}
}

func TestNewCurveClampsMaxLevel(t *testing.T) {
	for _, n := range []int{-3, 0, 1} {
		c := NewCurve(0, n)
		if c.MaxLevel() != 1 {
			t.Fatalf("NewCurve(%d) max level = %d, want 1", n, c.MaxLevel())
		}
		checkCurveShape(t, c)
	}
}

func TestCurveLookupBounds(t *testing.T) {
	c := NewCurve(0, 3)
	c.SetPrice(2, 7)
	c.SetValue(3, 9)

	if v, err := c.Price(2); err != nil || v != 7 {
		t.Fatalf("Price(2) = %v, %v", v, err)
	}
	if v, err := c.Value(3); err != nil || v != 9 {
		t.Fatalf("Value(3) = %v, %v", v, err)
	}
	for _, level := range []int{-1, 3} {
		if _, err := c.Price(level); !errors.Is(err, ErrOutOfRange) {
			t.Fatalf("Price(%d) err = %v, want ErrOutOfRange", level, err)
		}
	}
	for _, level := range []int{-1, 4} {
		if _, err := c.Value(level); !errors.Is(err, ErrOutOfRange) {
			t.Fatalf("Value(%d) err = %v, want ErrOutOfRange", level, err)
		}
	}
}

func TestCurveSetOutOfBoundsIsIgnored(t *testing.T) {
	c := NewCurve(0, 2)
	c.SetPrice(0, 1)
	c.SetValue(0, 2)
	before := c.Clone()

	c.SetPrice(-1, 100)
	c.SetPrice(2, 100)
	c.SetValue(-1, 100)
	c.SetValue(3, 100)

	if diff := cmp.Diff(before, c); diff != "" {
		t.Fatalf("curve changed (-before +after):\n%s", diff)
	}
}

func TestCurveSetMaxLevel(t *testing.T) {
	tests := []struct {
		name       string
		n          int
		wantPrices []float64
		wantValues []float64
	}{
		{name: "grow", n: 4, wantPrices: []float64{1, 2, 0, 0}, wantValues: []float64{10, 20, 30, 0, 0}},
		{name: "shrink", n: 1, wantPrices: []float64{1}, wantValues: []float64{10, 20}},
		{name: "clamp", n: 0, wantPrices: []float64{1}, wantValues: []float64{10, 20}},
		{name: "same", n: 2, wantPrices: []float64{1, 2}, wantValues: []float64{10, 20, 30}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := &Curve{Prices: []float64{1, 2}, Values: []float64{10, 20, 30}}
			c.SetMaxLevel(tc.n)
			checkCurveShape(t, c)
			if diff := cmp.Diff(tc.wantPrices, c.Prices); diff != "" {
				t.Fatalf("prices (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tc.wantValues, c.Values); diff != "" {
				t.Fatalf("values (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCurveShrinkThenRegrowZeroFillsTail(t *testing.T) {
	c := NewCurve(0, 3)
	for i := 0; i < 3; i++ {
		c.SetPrice(i, float64(i+1))
	}
	for i := 0; i < 4; i++ {
		c.SetValue(i, float64(10*(i+1)))
	}
	orig := c.Clone()

	// n < m: shrink to 3 from 5, then back.
	c.SetMaxLevel(5)
	checkCurveShape(t, c)
	c.SetMaxLevel(3)
	checkCurveShape(t, c)
	if diff := cmp.Diff(orig, c); diff != "" {
		t.Fatalf("n->m->n changed prefix (-want +got):\n%s", diff)
	}

	c.SetMaxLevel(1)
	c.SetMaxLevel(3)
	checkCurveShape(t, c)
	want := &Curve{Prices: []float64{1, 0, 0}, Values: []float64{10, 20, 0, 0}}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Fatalf("regrown tail not zeroed (-want +got):\n%s", diff)
	}
}

func TestCurveApplyOrdersMaxLevelFirst(t *testing.T) {
	c := NewCurve(0, 1)
	maxLevel := 3
	c.Apply(CurveEdit{
		MaxLevel: &maxLevel,
		Prices:   map[int]float64{2: 5, 9: 1},
		Values:   map[int]float64{3: 8, -1: 1},
	})
	want := &Curve{Prices: []float64{0, 0, 5}, Values: []float64{0, 0, 0, 8}}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Fatalf("apply (-want +got):\n%s", diff)
	}
}

func TestCurveCloneDoesNotAlias(t *testing.T) {
	c := NewCurve(1, 2)
	cp := c.Clone()
	cp.SetPrice(0, 4)
	cp.SetMaxLevel(5)
	if c.Prices[0] != 0 || c.MaxLevel() != 2 {
		t.Fatalf("clone aliases original: %+v", c)
	}
}
