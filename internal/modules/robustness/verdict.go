package robustness

import (
	"fmt"
	"math"

	"github.com/aristath/screener/internal/domain"
)

// Level is the three-valued robustness verdict
type Level string

const (
	// Green means every input passed
	Green Level = "GREEN"
	// Yellow is anything between green and red
	Yellow Level = "YELLOW"
	// Red means two or more inputs failed
	Red Level = "RED"
)

// Grade is the classification of one input
type Grade string

// Grades, best first
const (
	Pass     Grade = "pass"
	Marginal Grade = "marginal"
	Fail     Grade = "fail"
)

// Thresholds are the per-input pass and fail boundaries.
// For p-values and PBO lower is better: pass when value <= Pass, fail when
// value > Fail. For NDR higher is better: pass when value >= Pass, fail
// when value < Fail.
type Thresholds struct {
	DSRPass         float64 `yaml:"dsr_pass" validate:"gte=0,lte=1"`
	DSRFail         float64 `yaml:"dsr_fail" validate:"gte=0,lte=1,gtefield=DSRPass"`
	PBOPass         float64 `yaml:"pbo_pass" validate:"gte=0,lte=1"`
	PBOFail         float64 `yaml:"pbo_fail" validate:"gte=0,lte=1,gtefield=PBOPass"`
	NDRPass         float64 `yaml:"ndr_pass" validate:"gte=0"`
	NDRFail         float64 `yaml:"ndr_fail" validate:"gte=0,ltefield=NDRPass"`
	PermutationPass float64 `yaml:"permutation_pass" validate:"gte=0,lte=1"`
	PermutationFail float64 `yaml:"permutation_fail" validate:"gte=0,lte=1,gtefield=PermutationPass"`
}

// DefaultThresholds returns the standard verdict thresholds
func DefaultThresholds() Thresholds {
	return Thresholds{
		DSRPass:         0.05,
		DSRFail:         0.20,
		PBOPass:         0.20,
		PBOFail:         0.50,
		NDRPass:         0.70,
		NDRFail:         0.40,
		PermutationPass: 0.05,
		PermutationFail: 0.20,
	}
}

// Validate checks that every fail boundary lies on the far side of its pass boundary
func (t Thresholds) Validate() error {
	if t.DSRFail < t.DSRPass || t.PBOFail < t.PBOPass ||
		t.PermutationFail < t.PermutationPass || t.NDRFail > t.NDRPass {
		return fmt.Errorf("%w: fail thresholds must not be stricter than pass thresholds", domain.ErrInvalidParams)
	}
	return nil
}

// Inputs are the four statistics the verdict combines. NaN marks an input
// that could not be computed.
type Inputs struct {
	DSRPValue         float64 `json:"dsr_p_value"`
	PBO               float64 `json:"pbo"`
	NDR1              float64 `json:"ndr1"`
	PermutationPValue float64 `json:"permutation_p_value"`
}

// Assessment is the grade of one input
type Assessment struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Grade Grade   `json:"grade"`
}

// Verdict is the combined judgment
type Verdict struct {
	Level       Level        `json:"level"`
	Assessments []Assessment `json:"assessments"`
	Reasons     []string     `json:"reasons"`
}

// Judge combines the inputs into a verdict. GREEN requires every input to
// pass; RED requires two or more failures; everything else is YELLOW, so no
// single input decides the outcome on its own. Undefined inputs grade as
// marginal.
func Judge(in Inputs, th Thresholds) Verdict {
	assessments := []Assessment{
		{Name: "dsr_p_value", Value: in.DSRPValue, Grade: lowerIsBetter(in.DSRPValue, th.DSRPass, th.DSRFail)},
		{Name: "pbo", Value: in.PBO, Grade: lowerIsBetter(in.PBO, th.PBOPass, th.PBOFail)},
		{Name: "ndr1", Value: in.NDR1, Grade: higherIsBetter(in.NDR1, th.NDRPass, th.NDRFail)},
		{Name: "permutation_p_value", Value: in.PermutationPValue,
			Grade: lowerIsBetter(in.PermutationPValue, th.PermutationPass, th.PermutationFail)},
	}

	passes, fails := 0, 0
	reasons := make([]string, 0, len(assessments))
	for _, a := range assessments {
		switch a.Grade {
		case Pass:
			passes++
		case Fail:
			fails++
			reasons = append(reasons, fmt.Sprintf("%s=%.4g fails", a.Name, a.Value))
		default:
			if math.IsNaN(a.Value) {
				reasons = append(reasons, fmt.Sprintf("%s is undefined", a.Name))
			} else {
				reasons = append(reasons, fmt.Sprintf("%s=%.4g is marginal", a.Name, a.Value))
			}
		}
	}

	level := Yellow
	switch {
	case passes == len(assessments):
		level = Green
		reasons = append(reasons, "all inputs pass")
	case fails >= 2:
		level = Red
	}

	return Verdict{Level: level, Assessments: assessments, Reasons: reasons}
}

func lowerIsBetter(v, pass, fail float64) Grade {
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return Marginal
	case v <= pass:
		return Pass
	case v > fail:
		return Fail
	default:
		return Marginal
	}
}

func higherIsBetter(v, pass, fail float64) Grade {
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return Marginal
	case v >= pass:
		return Pass
	case v < fail:
		return Fail
	default:
		return Marginal
	}
}
