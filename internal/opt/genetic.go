package opt

import (
	"context"
	"errors"
	"fmt"

	"github.com/cwbudde/ffopt/internal/ff"
)

// Genetic is a placeholder for an evolutionary driver. It only compares the
// first trial force field with the initial one and keeps the better.
type Genetic struct {
	*Optimizer
}

var _ Driver = (*Genetic)(nil)

// NewGenetic wraps o in a Genetic driver.
func NewGenetic(o *Optimizer) *Genetic {
	return &Genetic{Optimizer: o}
}

// Run evaluates the initial force field if needed and returns the first
// trial as the new best when its x2 is lower. Whichever force field wins is
// written to the force field file.
func (g *Genetic) Run(ctx context.Context) (*ff.MM3, error) {
	g.logger.Info("Running driver", "driver", "genetic")
	if g.Init == nil {
		return nil, errors.New("optimizer is not set up")
	}
	if len(g.Trials) == 0 {
		return nil, errors.New("no trial force fields")
	}

	if !g.Init.Evaluated {
		if err := g.CalcX2FF(ctx, &g.Init.FF, false); err != nil {
			return nil, err
		}
	}
	trial := g.Trials[0]
	if !trial.Evaluated {
		if err := g.CalcX2FF(ctx, trial, false); err != nil {
			return nil, err
		}
	}

	if trial.X2 < g.Init.X2 {
		best := g.Init.CopyAttributes()
		best.Method = trial.Method
		best.Params = ff.CloneParams(trial.Params)
		best.SetX2(trial.X2)
		if trial.Data != nil {
			best.Data = trial.Data
		}
		if err := best.Export(nil); err != nil {
			return nil, fmt.Errorf("failed to write best force field: %w", err)
		}
		g.logger.Info("Driver complete",
			"driver", "genetic",
			"initial", g.Init.X2,
			"initial_method", g.Init.Method,
			"final", best.X2,
			"final_method", best.Method,
		)
		return best, nil
	}

	if err := g.Init.Export(nil); err != nil {
		return nil, fmt.Errorf("failed to write initial force field: %w", err)
	}
	g.logger.Info("Driver complete",
		"driver", "genetic",
		"initial", g.Init.X2,
		"initial_method", g.Init.Method,
		"final", trial.X2,
		"final_method", trial.Method,
	)
	g.logger.Info("No improvement", "driver", "genetic")
	return g.Init, nil
}
