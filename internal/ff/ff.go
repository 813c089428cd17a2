package ff

import (
	"log/slog"

	"github.com/cwbudde/ffopt/internal/calc"
)

// Method labels used for force fields that are not differentiation variants.
const (
	MethodInitial = "initial"
	MethodNewton  = "newton"
)

// FF is a parameter set together with its provenance and evaluation.
type FF struct {
	Method string
	Params []Parameter

	// X2 is only meaningful when Evaluated is set.
	X2        float64
	Evaluated bool

	// Data is the calculated data behind X2, kept only on request.
	Data calc.Data
}

// New returns an unevaluated force field holding a copy of params.
func New(method string, params []Parameter) *FF {
	return &FF{
		Method: method,
		Params: CloneParams(params),
	}
}

// SetX2 records the objective value for this parameter set.
func (f *FF) SetX2(x2 float64) {
	f.X2 = x2
	f.Evaluated = true
}

// Der1 returns the first derivatives in parameter order.
func (f *FF) Der1() []float64 {
	out := make([]float64, len(f.Params))
	for i, p := range f.Params {
		out[i] = p.Der1
	}
	return out
}

// Der2 returns the second derivatives in parameter order.
func (f *FF) Der2() []float64 {
	out := make([]float64, len(f.Params))
	for i, p := range f.Params {
		out[i] = p.Der2
	}
	return out
}

// Values returns the parameter values in order.
func (f *FF) Values() []float64 {
	out := make([]float64, len(f.Params))
	for i, p := range f.Params {
		out[i] = p.Value
	}
	return out
}

// LogParams writes a debug snapshot of the parameter values.
func (f *FF) LogParams(logger *slog.Logger) {
	logger.Debug("Parameters", "method", f.Method, "values", f.Values())
}
