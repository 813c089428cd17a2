package opt

import (
	"cmp"
	"slices"

	"github.com/cwbudde/ffopt/internal/ff"
)

// TrimOn2nd returns the limit parameters with the lowest second derivatives in
// ascending order of Der2. Parameters with equal Der2 keep their relative
// order. params itself is not reordered. A limit of zero or less keeps all.
func TrimOn2nd(params []ff.Parameter, limit int) []ff.Parameter {
	sorted := ff.CloneParams(params)
	slices.SortStableFunc(sorted, func(a, b ff.Parameter) int {
		return cmp.Compare(a.Der2, b.Der2)
	})
	if limit > 0 && limit < len(sorted) {
		sorted = sorted[:limit]
	}
	return sorted
}

// TrimParamsOn2nd trims params to the configured maximum using TrimOn2nd.
func (o *Optimizer) TrimParamsOn2nd(params []ff.Parameter) []ff.Parameter {
	kept := TrimOn2nd(params, o.cfg.MaxParams)
	if len(kept) != len(params) {
		der2 := make([]float64, len(kept))
		for i, p := range kept {
			der2[i] = p.Der2
		}
		o.logger.Info("Reduced number of parameters based on 2nd derivatives",
			"from", len(params),
			"to", len(kept),
			"der2", der2,
		)
	}
	return kept
}
