package preset

import (
	"errors"
	"testing"

	"tart/internal/game"
)

const sample = `
models:
  example:
    speed:
      max_level: 3
      prices: [1, 2, 4]
      values: [5, 6, 7, 8]
    money:
      values: [5]
`

func TestApplyExamplePreset(t *testing.T) {
	f, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	g := game.NewExampleGame()
	if err := f.Apply("example", g); err != nil {
		t.Fatalf("apply: %v", err)
	}
	curves := g.Curves()
	speed := curves[game.ExampleSpeed]
	if speed.MaxLevel() != 3 || speed.Prices[2] != 4 || speed.Values[3] != 8 {
		t.Fatalf("speed curve = %+v", speed)
	}
	money := curves[game.ExampleMoney]
	if money.MaxLevel() != 10 || money.Values[0] != 5 || money.Values[1] != 0 {
		t.Fatalf("money curve = %+v", money)
	}
}

func TestApplyUnknownKind(t *testing.T) {
	f, err := Parse([]byte("models:\n  example:\n    luck:\n      values: [1]\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := f.Apply("example", game.NewExampleGame()); !errors.Is(err, game.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestApplyRejectsNonFinite(t *testing.T) {
	for _, raw := range []string{
		"models:\n  example:\n    speed:\n      prices: [1, .inf]\n",
		"models:\n  example:\n    money:\n      values: [.nan]\n",
	} {
		f, err := Parse([]byte(raw))
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		g := game.NewExampleGame()
		if err := f.Apply("example", g); !errors.Is(err, game.ErrInvalidArgument) {
			t.Fatalf("apply %q err = %v, want ErrInvalidArgument", raw, err)
		}
	}
}

func TestApplyNilAndMissingModel(t *testing.T) {
	var f *File
	if err := f.Apply("example", game.NewExampleGame()); err != nil {
		t.Fatalf("nil file: %v", err)
	}
	f, _ = Parse([]byte(sample))
	if err := f.Apply("port", game.NewIdlePort(1)); err != nil {
		t.Fatalf("model without presets: %v", err)
	}
}

func TestValidate(t *testing.T) {
	good, _ := Parse([]byte(sample))
	if err := good.Validate(game.DefaultModels(1, good.Apply)); err != nil {
		t.Fatalf("validate good: %v", err)
	}

	badKind, _ := Parse([]byte("models:\n  example:\n    luck: {}\n"))
	if err := badKind.Validate(game.DefaultModels(1, badKind.Apply)); !errors.Is(err, game.ErrInternal) {
		t.Fatalf("validate bad kind err = %v", err)
	}

	badModel, _ := Parse([]byte("models:\n  casino: {}\n"))
	if err := badModel.Validate(game.DefaultModels(1, badModel.Apply)); !errors.Is(err, game.ErrInvalidArgument) {
		t.Fatalf("validate bad model err = %v", err)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse([]byte("models: [1, 2")); err == nil {
		t.Fatalf("expected parse error")
	}
}
