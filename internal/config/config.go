package config

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

type APIConfig struct {
	Addr             string
	CurvesFile       string
	PortLanes        int
	DefaultTick      float64
	LogLevel         slog.Level
	MetricsEnabled   bool
	SeedSimulations  []int
	ShutdownDeadline time.Duration
}

type CLIConfig struct {
	APIBaseURL string
}

type BotConfig struct {
	APIBaseURL string
	Simulation int
	Model      int
	TickEvery  time.Duration
	Delta      float64
	LogLevel   slog.Level
}

func LoadAPIFromEnv() (APIConfig, error) {
	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("TART_API_ADDR", ":8080")
	}

	cfg := APIConfig{
		Addr:             addr,
		CurvesFile:       strings.TrimSpace(os.Getenv("TART_CURVES_FILE")),
		PortLanes:        envIntDefault("TART_PORT_LANES", 1),
		DefaultTick:      envFloatDefault("TART_DEFAULT_TICK", 0.1),
		LogLevel:         envLevelDefault("TART_LOG_LEVEL", slog.LevelInfo),
		MetricsEnabled:   envBoolDefault("TART_METRICS_ENABLED", true),
		ShutdownDeadline: envDurationDefault("TART_SHUTDOWN_DEADLINE", 15*time.Second),
	}
	seeds, err := parseIntList(os.Getenv("TART_SEED_SIMULATIONS"))
	if err != nil {
		return cfg, fmt.Errorf("TART_SEED_SIMULATIONS: %w", err)
	}
	cfg.SeedSimulations = seeds
	if cfg.PortLanes < 1 {
		return cfg, fmt.Errorf("TART_PORT_LANES must be >= 1")
	}
	if !finiteNonNegative(cfg.DefaultTick) {
		return cfg, fmt.Errorf("TART_DEFAULT_TICK must be a finite number >= 0")
	}
	return cfg, nil
}

func LoadCLIFromEnv() CLIConfig {
	return CLIConfig{
		APIBaseURL: strings.TrimRight(envDefault("TART_API_BASE_URL", "http://localhost:8080"), "/"),
	}
}

func LoadBotFromEnv() (BotConfig, error) {
	cfg := BotConfig{
		APIBaseURL: strings.TrimRight(envDefault("TART_API_BASE_URL", "http://localhost:8080"), "/"),
		Simulation: envIntDefault("TART_BOT_SIMULATION", -1),
		Model:      envIntDefault("TART_BOT_MODEL", 0),
		TickEvery:  envDurationDefault("TART_BOT_TICK_EVERY", time.Second),
		Delta:      envFloatDefault("TART_BOT_DELTA", 1),
		LogLevel:   envLevelDefault("TART_LOG_LEVEL", slog.LevelInfo),
	}
	if cfg.TickEvery <= 0 {
		return cfg, fmt.Errorf("TART_BOT_TICK_EVERY must be > 0")
	}
	if !finiteNonNegative(cfg.Delta) {
		return cfg, fmt.Errorf("TART_BOT_DELTA must be a finite number >= 0")
	}
	if cfg.Model < 0 {
		return cfg, fmt.Errorf("TART_BOT_MODEL must be >= 0")
	}
	return cfg, nil
}

func finiteNonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envFloatDefault(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envIntDefault(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBoolDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envLevelDefault(key string, fallback slog.Level) slog.Level {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(v)); err != nil {
		return fallback
	}
	return level
}

func parseIntList(raw string) ([]int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid model index %q", p)
		}
		out = append(out, n)
	}
	return out, nil
}
