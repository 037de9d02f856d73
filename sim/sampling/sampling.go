// Package sampling provides the delay samplers used by simulation processes.
// Every sampler returns a non-negative delay in virtual milliseconds.
package sampling

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// DelaySampler generates delay samples.
type DelaySampler interface {
	// Sample returns a non-negative delay in milliseconds.
	Sample(rng *rand.Rand) float64
}

// DistSpec parameterizes a delay distribution.
type DistSpec struct {
	Type   string             `yaml:"type"`
	Params map[string]float64 `yaml:"params,omitempty"`
}

// ChiSquare returns a chi-square DistSpec with k degrees of freedom.
func ChiSquare(k float64) DistSpec {
	return DistSpec{Type: "chisquare", Params: map[string]float64{"k": k}}
}

// Constant returns a DistSpec that always yields value.
func Constant(value float64) DistSpec {
	return DistSpec{Type: "constant", Params: map[string]float64{"value": value}}
}

func (d DistSpec) String() string {
	return fmt.Sprintf("%s%v", d.Type, d.Params)
}

// ChiSquareSampler draws from a chi-square distribution with K degrees of freedom,
// optionally multiplied by Scale (default 1).
type ChiSquareSampler struct {
	k, scale float64
}

func (s *ChiSquareSampler) Sample(rng *rand.Rand) float64 {
	d := distuv.ChiSquared{K: s.k, Src: rng}
	return clampDelay(d.Rand() * s.scale)
}

// ExponentialSampler draws exponentially-distributed delays with the given mean.
type ExponentialSampler struct {
	mean float64
}

func (s *ExponentialSampler) Sample(rng *rand.Rand) float64 {
	d := distuv.Exponential{Rate: 1 / s.mean, Src: rng}
	return clampDelay(d.Rand())
}

// UniformSampler draws delays uniformly from [min, max).
type UniformSampler struct {
	min, max float64
}

func (s *UniformSampler) Sample(rng *rand.Rand) float64 {
	if s.min == s.max {
		return clampDelay(s.min)
	}
	d := distuv.Uniform{Min: s.min, Max: s.max, Src: rng}
	return clampDelay(d.Rand())
}

// ConstantSampler always returns the same fixed delay.
type ConstantSampler struct {
	value float64
}

func (s *ConstantSampler) Sample(_ *rand.Rand) float64 {
	return clampDelay(s.value)
}

// clampDelay maps NaN, infinities and negative values onto valid delays.
func clampDelay(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if math.IsInf(v, 1) {
		return math.MaxFloat64
	}
	return v
}

// requireParam checks that all required keys exist in a params map.
func requireParam(params map[string]float64, keys ...string) error {
	for _, k := range keys {
		if _, ok := params[k]; !ok {
			return fmt.Errorf("distribution requires parameter %q", k)
		}
	}
	return nil
}

// NewDelaySampler creates a DelaySampler from a DistSpec.
func NewDelaySampler(spec DistSpec) (DelaySampler, error) {
	switch spec.Type {
	case "chisquare":
		if err := requireParam(spec.Params, "k"); err != nil {
			return nil, err
		}
		k := spec.Params["k"]
		if k <= 0 {
			return nil, fmt.Errorf("chisquare: k must be > 0, got %v", k)
		}
		scale := 1.0
		if v, ok := spec.Params["scale"]; ok {
			if v <= 0 {
				return nil, fmt.Errorf("chisquare: scale must be > 0, got %v", v)
			}
			scale = v
		}
		return &ChiSquareSampler{k: k, scale: scale}, nil

	case "exponential":
		if err := requireParam(spec.Params, "mean"); err != nil {
			return nil, err
		}
		mean := spec.Params["mean"]
		if mean <= 0 {
			return nil, fmt.Errorf("exponential: mean must be > 0, got %v", mean)
		}
		return &ExponentialSampler{mean: mean}, nil

	case "uniform":
		if err := requireParam(spec.Params, "min", "max"); err != nil {
			return nil, err
		}
		lo, hi := spec.Params["min"], spec.Params["max"]
		if lo < 0 || hi < lo {
			return nil, fmt.Errorf("uniform: need 0 <= min <= max, got [%v, %v]", lo, hi)
		}
		return &UniformSampler{min: lo, max: hi}, nil

	case "constant":
		if err := requireParam(spec.Params, "value"); err != nil {
			return nil, err
		}
		v := spec.Params["value"]
		if v < 0 {
			return nil, fmt.Errorf("constant: value must be >= 0, got %v", v)
		}
		return &ConstantSampler{value: v}, nil

	default:
		return nil, fmt.Errorf("unknown distribution type %q", spec.Type)
	}
}
