package ff

import (
	"fmt"
	"strconv"
)

// Parameter types found in the optimizable substructure of an MM3* file.
const (
	PTypeBondEq      = "be"
	PTypeBondForce   = "bf"
	PTypeAngleEq     = "ae"
	PTypeAngleForce  = "af"
	PTypeStretchBend = "sb"
	PTypeTorsion     = "df"
	PTypeImproper1   = "imp1"
	PTypeImproper2   = "imp2"
	PTypeCharge      = "q"
)

// Step is a parameter step size. A relative step is a fraction of the
// parameter's value and must be resolved to an absolute increment before use.
type Step struct {
	Size     float64
	Relative bool
}

func (s Step) String() string {
	if s.Relative {
		return strconv.FormatFloat(s.Size, 'g', -1, 64) + "x"
	}
	return strconv.FormatFloat(s.Size, 'g', -1, 64)
}

// Parameter is a single tunable value of a force field. It holds no
// references, so copying a Parameter (or a slice of them with CloneParams)
// yields a fully independent value.
type Parameter struct {
	Row   int    `json:"row"`
	Col   int    `json:"col"`
	PType string `json:"ptype"`

	Value float64 `json:"value"`
	Step  Step    `json:"step"`
	Der1  float64 `json:"der1"`
	Der2  float64 `json:"der2"`

	AllowNegative bool `json:"allowNegative,omitempty"`
}

func (p Parameter) String() string {
	return fmt.Sprintf("%s[%d,%d](%.4f)", p.PType, p.Row, p.Col, p.Value)
}

// UnallowedNegativeError reports a parameter value that went negative where
// negative values are not permitted.
type UnallowedNegativeError struct {
	Param Parameter
}

func (e *UnallowedNegativeError) Error() string {
	return fmt.Sprintf("%s: negative value %g not allowed", e.Param, e.Param.Value)
}

// NegativeAllowed reports whether the parameter may take negative values,
// either by type or because it was flagged explicitly.
func (p Parameter) NegativeAllowed() bool {
	if p.AllowNegative {
		return true
	}
	switch p.PType {
	case PTypeTorsion, PTypeCharge:
		return true
	}
	return false
}

// CheckValue returns *UnallowedNegativeError when the current value violates
// the parameter's sign constraint.
func (p Parameter) CheckValue() error {
	if p.Value < 0 && !p.NegativeAllowed() {
		return &UnallowedNegativeError{Param: p}
	}
	return nil
}

// CloneParams returns an independent copy of params.
func CloneParams(params []Parameter) []Parameter {
	if params == nil {
		return nil
	}
	out := make([]Parameter, len(params))
	copy(out, params)
	return out
}
