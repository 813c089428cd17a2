package compare

import (
	"fmt"

	"github.com/cwbudde/ffopt/internal/calc"
	"gonum.org/v1/gonum/floats"
)

// CostFunc computes the discrepancy between reference and calculated data
type CostFunc func(ref, cal calc.Data) (float64, error)

// X2 computes the weighted sum of squared deviations
//
//	x2 = sum_i (w_i * (ref_i - cal_i))^2
//
// over the reference observations, matching calculated points by label and
// taking weights from the reference. A reference label missing from cal is
// an error; extra calculated points are ignored.
func X2(ref, cal calc.Data) (float64, error) {
	if len(ref) == 0 {
		return 0, fmt.Errorf("no reference data")
	}

	byLabel := cal.Index()
	refVals := make([]float64, len(ref))
	calVals := make([]float64, len(ref))
	weights := make([]float64, len(ref))
	for i, r := range ref {
		c, ok := byLabel[r.Label]
		if !ok {
			return 0, fmt.Errorf("calculated data has no point %q", r.Label)
		}
		refVals[i] = r.Value
		calVals[i] = c.Value
		weights[i] = r.Weight
	}

	diff := floats.SubTo(make([]float64, len(ref)), refVals, calVals)
	floats.Mul(diff, weights)
	return floats.Dot(diff, diff), nil
}
