package compare

import (
	"fmt"
	"math"

	"github.com/cwbudde/ffopt/internal/ff"
)

// DefaultSteps are the step sizes used for parameters that have none.
func DefaultSteps() map[string]ff.Step {
	return map[string]ff.Step{
		ff.PTypeBondEq:      {Size: 0.02},
		ff.PTypeBondForce:   {Size: 0.2},
		ff.PTypeAngleEq:     {Size: 1.0},
		ff.PTypeAngleForce:  {Size: 0.1},
		ff.PTypeStretchBend: {Size: 0.1},
		ff.PTypeTorsion:     {Size: 0.2},
		ff.PTypeImproper1:   {Size: 0.2},
		ff.PTypeImproper2:   {Size: 0.2},
		ff.PTypeCharge:      {Size: 0.1},
	}
}

// ImportSteps resolves the step of every parameter in place. Parameters
// without a step take the default for their type, and relative steps become
// absolute increments of fraction*|value|.
func ImportSteps(params []ff.Parameter, defaults map[string]ff.Step) error {
	for i := range params {
		p := &params[i]
		if p.Step.Size == 0 {
			step, ok := defaults[p.PType]
			if !ok {
				return fmt.Errorf("no step size for parameter type %q (%s)", p.PType, p)
			}
			p.Step = step
		}
		if p.Step.Relative {
			p.Step = ff.Step{Size: p.Step.Size * math.Abs(p.Value)}
		}
	}
	return nil
}
