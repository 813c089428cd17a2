package opt

import (
	"fmt"

	"github.com/cwbudde/ffopt/internal/ff"
)

// CentralDiffDerivs assigns Der1 and Der2 of every parameter of base from
// the evaluated central differentiation variants, where variants[2i] and
// variants[2i+1] are the forward and backward variants of base.Params[i]:
//
//	der1 = (x2_f - x2_b) / 2
//	der2 = x2_f + x2_b - 2*x2_0
//
// The estimates are in units of the step; they are not divided by the step
// length.
func (o *Optimizer) CentralDiffDerivs(base *ff.FF, variants []*ff.FF) error {
	if err := checkVariants(base, variants, 2); err != nil {
		return err
	}
	for i := 0; i < len(variants); i += 2 {
		fwd, bwd := variants[i], variants[i+1]
		base.Params[i/2].Der1 = (fwd.X2 - bwd.X2) * 0.5
		base.Params[i/2].Der2 = fwd.X2 + bwd.X2 - 2*base.X2
	}
	o.logger.Info("1st derivatives", "der1", base.Der1())
	o.logger.Info("2nd derivatives", "der2", base.Der2())
	return nil
}

// ForwardDiffDerivs assigns Der1 = x2_f - x2_0 from forward variants, where
// variants[i] perturbs base.Params[i]. Der2 is left alone.
func (o *Optimizer) ForwardDiffDerivs(base *ff.FF, variants []*ff.FF) error {
	if err := checkVariants(base, variants, 1); err != nil {
		return err
	}
	for i, fwd := range variants {
		base.Params[i].Der1 = fwd.X2 - base.X2
	}
	o.logger.Info("1st derivatives", "der1", base.Der1())
	return nil
}

func checkVariants(base *ff.FF, variants []*ff.FF, perParam int) error {
	if !base.Evaluated {
		return fmt.Errorf("%s has not been evaluated", base.Method)
	}
	if len(variants) != perParam*len(base.Params) {
		return fmt.Errorf("expected %d variants for %d parameters, got %d",
			perParam*len(base.Params), len(base.Params), len(variants))
	}
	for _, v := range variants {
		if !v.Evaluated {
			return fmt.Errorf("%s has not been evaluated", v.Method)
		}
	}
	return nil
}
