// Package reliability holds long-running stress checks for providers and
// session managers. They are skipped unless RESOURCEZ_RELIABILITY_LEVEL is
// set to "basic" or "stress".
package reliability

import (
	"os"
	"strconv"
	"testing"
	"time"
)

// Levels accepted in RESOURCEZ_RELIABILITY_LEVEL.
const (
	levelBasic  = "basic"
	levelStress = "stress"
)

// reliabilityConfig holds the env-driven knobs for one run.
type reliabilityConfig struct {
	Level      string
	Duration   time.Duration
	Goroutines int
}

func getReliabilityConfig() reliabilityConfig {
	return reliabilityConfig{
		Level:      os.Getenv("RESOURCEZ_RELIABILITY_LEVEL"),
		Duration:   envDuration("RESOURCEZ_RELIABILITY_DURATION", 5*time.Second),
		Goroutines: envInt("RESOURCEZ_RELIABILITY_GOROUTINES", 64),
	}
}

// requireLevel skips t unless the configured level is one of levels.
func requireLevel(t *testing.T, levels ...string) reliabilityConfig {
	t.Helper()
	cfg := getReliabilityConfig()
	for _, l := range levels {
		if cfg.Level == l {
			return cfg
		}
	}
	t.Skip("RESOURCEZ_RELIABILITY_LEVEL not set for this test, skipping")
	return cfg
}

func envInt(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n > 0 {
		return n
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return fallback
}
