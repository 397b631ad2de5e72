package service

import (
	"errors"
	"fmt"
	"math"
	"time"

	"riskgate/internal/risk/models"
)

// Thresholds are the inclusive lower bounds of each non-allow band.
type Thresholds struct {
	SoftChallenge int
	HardChallenge int
	Block         int
}

// Config is the immutable scoring policy. Build it once at start-up.
type Config struct {
	Weights       map[models.Category]float64
	Thresholds    Thresholds
	Sensitive     map[models.Action]bool
	SignalTimeout time.Duration
}

const weightTolerance = 1e-9

// DefaultConfig is the reference policy: bot .30, ip .15, trust .25,
// behavioral .15, velocity .15 with bands 0-30, 31-60, 61-85, 86-100.
func DefaultConfig() Config {
	return Config{
		Weights: map[models.Category]float64{
			models.CategoryBot:        0.30,
			models.CategoryIP:         0.15,
			models.CategoryTrust:      0.25,
			models.CategoryBehavioral: 0.15,
			models.CategoryVelocity:   0.15,
		},
		Thresholds: Thresholds{SoftChallenge: 31, HardChallenge: 61, Block: 86},
		Sensitive: map[models.Action]bool{
			models.ActionLogin:         true,
			models.ActionRegister:      true,
			models.ActionPasswordReset: true,
			models.ActionPayoutRequest: true,
		},
		SignalTimeout: 2 * time.Second,
	}
}

func (c Config) Validate() error {
	if len(c.Weights) == 0 {
		return errors.New("weights are required")
	}
	var sum float64
	for cat, w := range c.Weights {
		if w < 0 {
			return fmt.Errorf("weight for %s must not be negative", cat)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > 1e-6 {
		return fmt.Errorf("weights must sum to 1.0, got %.4f", sum)
	}
	t := c.Thresholds
	if t.SoftChallenge <= 0 || t.SoftChallenge >= t.HardChallenge || t.HardChallenge >= t.Block || t.Block > 100 {
		return errors.New("thresholds must be ascending within 1..100")
	}
	return nil
}

// Composite is the weighted sum of sub-scores clamped to 0..100. Fractional
// sums round up so a score never lands in a more lenient band than its inputs
// warrant.
func (c Config) Composite(factors []models.SignalResult) int {
	var sum float64
	for _, f := range factors {
		sum += c.Weights[f.Category] * float64(f.Score)
	}
	score := int(math.Ceil(sum - weightTolerance))
	return min(100, max(0, score))
}

// LevelFor maps a score to its band. Lower bounds are inclusive.
func (c Config) LevelFor(score int) models.Level {
	switch {
	case score >= c.Thresholds.Block:
		return models.LevelBlock
	case score >= c.Thresholds.HardChallenge:
		return models.LevelHardChallenge
	case score >= c.Thresholds.SoftChallenge:
		return models.LevelSoftChallenge
	default:
		return models.LevelAllow
	}
}
