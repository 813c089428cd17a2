package opt

import (
	"log/slog"
	"math"
)

// ConvergenceConfig controls when repeated optimization steps stop.
type ConvergenceConfig struct {
	Enabled bool `yaml:"enabled"`

	// Patience is the number of steps without significant improvement
	// tolerated before stopping.
	Patience int `yaml:"patience"`

	// Threshold is the minimum relative x2 improvement that counts as
	// progress, (last - x2) / last.
	Threshold float64 `yaml:"threshold"`
}

// DefaultConvergenceConfig stops after 3 steps that improve x2 by less than 0.1%.
func DefaultConvergenceConfig() ConvergenceConfig {
	return ConvergenceConfig{
		Enabled:   true,
		Patience:  3,
		Threshold: 0.001,
	}
}

// ConvergenceTracker records the x2 of successive steps and reports
// convergence.
type ConvergenceTracker struct {
	cfg    ConvergenceConfig
	logger *slog.Logger

	history         []float64
	best            float64
	lastSignificant float64
	stale           int
}

// NewConvergenceTracker creates a tracker with no history.
func NewConvergenceTracker(cfg ConvergenceConfig, logger *slog.Logger) *ConvergenceTracker {
	return &ConvergenceTracker{
		cfg:             cfg,
		logger:          logger,
		best:            math.Inf(1),
		lastSignificant: math.Inf(1),
	}
}

// Update records x2 and returns true once Patience consecutive updates
// failed to improve on the last significant value by Threshold.
func (c *ConvergenceTracker) Update(x2 float64) bool {
	if !c.cfg.Enabled {
		return false
	}

	c.history = append(c.history, x2)
	if x2 < c.best {
		c.best = x2
	}
	if len(c.history) == 1 {
		c.lastSignificant = x2
		return false
	}

	var improvement float64
	switch {
	case c.lastSignificant == 0:
		// Nothing left to improve on.
		improvement = 0
	default:
		improvement = (c.lastSignificant - x2) / c.lastSignificant
	}

	if improvement >= c.cfg.Threshold {
		c.lastSignificant = x2
		c.stale = 0
		c.logger.Debug("x2 improved", "x2", x2, "relative_improvement", improvement)
		return false
	}

	c.stale++
	c.logger.Debug("No significant x2 improvement",
		"x2", x2,
		"last_significant", c.lastSignificant,
		"relative_improvement", improvement,
		"stale", c.stale,
		"patience", c.cfg.Patience,
	)
	if c.stale >= c.cfg.Patience {
		c.logger.Info("Converged", "stale", c.stale, "best_x2", c.best)
		return true
	}
	return false
}

// Best returns the lowest x2 recorded.
func (c *ConvergenceTracker) Best() float64 {
	return c.best
}

// History returns a copy of every recorded x2.
func (c *ConvergenceTracker) History() []float64 {
	return append([]float64{}, c.history...)
}

// Stale returns the number of updates since the last significant improvement.
func (c *ConvergenceTracker) Stale() int {
	return c.stale
}

// Converged reports whether the last Update signalled convergence.
func (c *ConvergenceTracker) Converged() bool {
	return c.cfg.Enabled && c.cfg.Patience > 0 && c.stale >= c.cfg.Patience
}
