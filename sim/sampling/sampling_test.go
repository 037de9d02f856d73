package sampling

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDelaySampler_RejectsInvalidSpecs(t *testing.T) {
	tests := []struct {
		name string
		spec DistSpec
	}{
		{"unknown type", DistSpec{Type: "weibull"}},
		{"chisquare missing k", DistSpec{Type: "chisquare"}},
		{"chisquare zero k", ChiSquare(0)},
		{"chisquare negative scale", DistSpec{Type: "chisquare", Params: map[string]float64{"k": 2, "scale": -1}}},
		{"exponential zero mean", DistSpec{Type: "exponential", Params: map[string]float64{"mean": 0}}},
		{"uniform inverted", DistSpec{Type: "uniform", Params: map[string]float64{"min": 5, "max": 1}}},
		{"constant negative", Constant(-1)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewDelaySampler(tc.spec)
			assert.Error(t, err)
		})
	}
}

func TestChiSquareSampler_MeanApproximatesK(t *testing.T) {
	// GIVEN a chi-square sampler with k=7 (mean k, variance 2k)
	s, err := NewDelaySampler(ChiSquare(7))
	require.NoError(t, err)
	rng := rand.New(rand.NewPCG(42, 0))

	// WHEN drawing many samples
	const n = 20000
	sum := 0.0
	for i := 0; i < n; i++ {
		v := s.Sample(rng)
		require.GreaterOrEqual(t, v, 0.0)
		sum += v
	}

	// THEN the sample mean is within 4 standard errors of k
	se := math.Sqrt(2*7.0) / math.Sqrt(n)
	assert.InDelta(t, 7.0, sum/n, 4*se)
}

func TestSamplers_AreNonNegativeAndDeterministic(t *testing.T) {
	specs := []DistSpec{
		ChiSquare(1),
		{Type: "chisquare", Params: map[string]float64{"k": 3, "scale": 10}},
		{Type: "exponential", Params: map[string]float64{"mean": 2}},
		{Type: "uniform", Params: map[string]float64{"min": 1, "max": 3}},
		Constant(4),
	}
	for _, spec := range specs {
		t.Run(spec.Type, func(t *testing.T) {
			s, err := NewDelaySampler(spec)
			require.NoError(t, err)
			a := rand.New(rand.NewPCG(7, 0))
			b := rand.New(rand.NewPCG(7, 0))
			for i := 0; i < 100; i++ {
				va, vb := s.Sample(a), s.Sample(b)
				assert.GreaterOrEqual(t, va, 0.0)
				assert.Equal(t, va, vb, "same seed must give same sample")
			}
		})
	}
}

func TestUniformSampler_DegenerateRange(t *testing.T) {
	s, err := NewDelaySampler(DistSpec{Type: "uniform", Params: map[string]float64{"min": 2, "max": 2}})
	require.NoError(t, err)
	assert.Equal(t, 2.0, s.Sample(rand.New(rand.NewPCG(1, 1))))
}

func TestClampDelay(t *testing.T) {
	assert.Equal(t, 0.0, clampDelay(-3))
	assert.Equal(t, 0.0, clampDelay(math.NaN()))
	assert.Equal(t, math.MaxFloat64, clampDelay(math.Inf(1)))
	assert.Equal(t, 1.5, clampDelay(1.5))
}
