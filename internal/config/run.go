package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/aristath/screener/internal/domain"
	"github.com/aristath/screener/internal/modules/crosscheck"
	"github.com/aristath/screener/internal/modules/returns"
	"github.com/aristath/screener/internal/modules/robustness"
	"github.com/aristath/screener/internal/modules/signals"
	"github.com/aristath/screener/internal/modules/sweep"
	"github.com/aristath/screener/internal/modules/validation"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Run describes one screening run: what to sweep, how fills are simulated,
// how the winner is validated and how the verdict is graded.
//
//	kind: rsi_reversion
//	axes:
//	  - name: period
//	    values: [7, 14, 21]
//	  - name: entry
//	    values: [25, 30]
//	  - name: exit
//	    values: [70, 75]
//	fill_timing: next_open
//	validation:
//	  blocks: 16
//	  remainder_policy: trim_head
//	external:
//	  dsr_p_value: 0.03
type Run struct {
	Kind       signals.Kind      `yaml:"kind" validate:"required,oneof=rsi_reversion ema_cross macd_cross bollinger_reversion"`
	Axes       []sweep.Axis      `yaml:"axes" validate:"required,min=1,dive"`
	FillTiming domain.FillTiming `yaml:"fill_timing" default:"next_open" validate:"oneof=close next_open"`
	// Slippage is a pointer so that an explicit 0 survives defaulting
	Slippage *float64 `yaml:"slippage" default:"0.001" validate:"required,gte=0,lt=1"`
	// Resolver overrides SCREENER_RESOLVER when set
	Resolver string `yaml:"resolver" validate:"omitempty,oneof=fast portable"`

	Validation validation.Config     `yaml:"validation"`
	External   ExternalStats         `yaml:"external"`
	Thresholds robustness.Thresholds `yaml:"thresholds"`
	Crosscheck crosscheck.Tolerance  `yaml:"crosscheck"`
}

// ExternalStats are significance tests computed outside the screener.
// A missing value grades as marginal.
type ExternalStats struct {
	DSRPValue         *float64 `yaml:"dsr_p_value" validate:"omitempty,gte=0,lte=1"`
	PermutationPValue *float64 `yaml:"permutation_p_value" validate:"omitempty,gte=0,lte=1"`
}

// LoadRun reads and validates a YAML run file
func LoadRun(path string) (*Run, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open run file: %w", err)
	}
	defer f.Close()
	return ParseRun(f)
}

// ParseRun decodes a run, applies defaults and validates it. Unknown keys are
// rejected.
func ParseRun(r io.Reader) (*Run, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read run file: %w", err)
	}

	// Float thresholds are seeded before decoding so an explicit 0 is kept
	run := Run{
		Thresholds: robustness.DefaultThresholds(),
		Crosscheck: crosscheck.DefaultTolerance(),
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&run); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: failed to parse run file: %v", domain.ErrInvalidParams, err)
	}

	if err := defaults.Set(&run); err != nil {
		return nil, fmt.Errorf("failed to apply run defaults: %w", err)
	}
	if err := validate.Struct(&run); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidParams, describe(err))
	}
	if err := run.Thresholds.Validate(); err != nil {
		return nil, err
	}
	if _, err := run.Grid(); err != nil {
		return nil, err
	}
	return &run, nil
}

// Grid builds the sweep grid in the order the axes were written
func (r *Run) Grid() (sweep.Grid, error) {
	return sweep.NewOrderedGrid(r.Axes...)
}

// FillOptions returns the compositor options
func (r *Run) FillOptions() returns.Options {
	return returns.Options{Timing: r.FillTiming, Slippage: *r.Slippage}
}

// ExternalInputs returns the DSR and permutation p-values, NaN when absent
func (r *Run) ExternalInputs() (dsr, permutation float64) {
	return valueOrNaN(r.External.DSRPValue), valueOrNaN(r.External.PermutationPValue)
}

func valueOrNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

// describe flattens validator errors into one line per failed field
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msg := ""
	for i, fe := range verrs {
		if i > 0 {
			msg += "; "
		}
		if fe.Param() != "" {
			msg += fmt.Sprintf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param())
		} else {
			msg += fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag())
		}
	}
	return msg
}
