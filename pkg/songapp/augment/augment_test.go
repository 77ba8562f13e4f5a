package augment

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func ramp(n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = float64(i) * 0.5
	}
	return v
}

func TestAugmentShape(t *testing.T) {
	x := [][]float64{ramp(16), ramp(16)}
	x[1][3] = 7
	y := []string{"alpha", "beta"}

	outX, outY, err := Augment(x, y, rand.NewPCG(1, 2))
	require.NoError(t, err)
	require.Len(t, outX, 6)
	assert.Equal(t, []string{"alpha", "alpha", "alpha", "beta", "beta", "beta"}, outY)

	for i, vec := range outX {
		assert.Len(t, vec, 16, "vector %d", i)
	}

	// Originals come back bit-exact in the third slot.
	assert.Equal(t, x[0], outX[2])
	assert.Equal(t, x[1], outX[5])

	// Noise is small.
	for j := range x[0] {
		assert.InDelta(t, x[0][j], outX[0][j], 0.1)
	}
	assert.False(t, floats.Equal(x[0], outX[0]))
}

func TestAugmentDoesNotAliasInput(t *testing.T) {
	x := [][]float64{ramp(4)}
	outX, _, err := Augment(x, []string{"a"}, nil)
	require.NoError(t, err)
	outX[2][0] = 42
	assert.Equal(t, 0.0, x[0][0])
}

func TestAugmentSeedIsReproducible(t *testing.T) {
	x := [][]float64{ramp(32)}
	a, _, err := Augment(x, []string{"a"}, rand.NewPCG(9, 9))
	require.NoError(t, err)
	b, _, err := Augment(x, []string{"a"}, rand.NewPCG(9, 9))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestAugmentNoiseStatistics(t *testing.T) {
	vec := make([]float64, 20000)
	outX, _, err := Augment([][]float64{vec}, []string{"z"}, rand.NewPCG(42, 42))
	require.NoError(t, err)

	var sum, sq float64
	for _, v := range outX[0] {
		sum += v
		sq += v * v
	}
	n := float64(len(vec))
	mean := sum / n
	std := math.Sqrt(sq/n - mean*mean)
	assert.InDelta(t, 0, mean, 0.001)
	assert.InDelta(t, NoiseStdDev, std, 0.001)
}

func TestAugmentErrors(t *testing.T) {
	_, _, err := Augment([][]float64{ramp(3)}, []string{"a", "b"}, nil)
	assert.Error(t, err)

	_, _, err = Augment([][]float64{{}}, []string{"a"}, nil)
	assert.Error(t, err)

	outX, outY, err := Augment(nil, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, outX)
	assert.Empty(t, outY)
}

func TestGaussianFilterPreservesConstant(t *testing.T) {
	x := []float64{3, 3, 3, 3, 3}
	got := GaussianFilter1D(x, 1)
	assert.InDeltaSlice(t, x, got, 1e-12)
}

func TestGaussianFilterPreservesSum(t *testing.T) {
	// Reflect boundaries keep the total of a signal that is flat near both edges.
	x := make([]float64, 41)
	x[20] = 1
	got := GaussianFilter1D(x, 1)
	assert.InDelta(t, 1.0, floats.Sum(got), 1e-12)
	assert.Greater(t, got[20], got[19])
	assert.InDelta(t, got[19], got[21], 1e-15)
}

func TestGaussianFilterImpulseWeights(t *testing.T) {
	x := make([]float64, 21)
	x[10] = 1
	got := GaussianFilter1D(x, 1)

	// Normalised weights exp(-k^2/2) over k in [-4, 4].
	var norm float64
	for k := -4; k <= 4; k++ {
		norm += math.Exp(-0.5 * float64(k*k))
	}
	assert.InDelta(t, 1/norm, got[10], 1e-12)
	assert.InDelta(t, math.Exp(-0.5)/norm, got[11], 1e-12)
	assert.InDelta(t, 0, got[15], 1e-12)
}

func TestGaussianFilterReflectsEdges(t *testing.T) {
	x := []float64{1, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	got := GaussianFilter1D(x, 1)

	// The mirrored copy of x[0] sits at index -1, so the edge keeps w0+w1.
	var norm float64
	for k := -4; k <= 4; k++ {
		norm += math.Exp(-0.5 * float64(k*k))
	}
	assert.InDelta(t, (1+math.Exp(-0.5))/norm, got[0], 1e-12)
	assert.InDelta(t, 1.0, floats.Sum(got), 1e-12)
}

func TestReflect(t *testing.T) {
	n := 4
	cases := map[int]int{-1: 0, -2: 1, -4: 3, -5: 3, 0: 0, 3: 3, 4: 3, 5: 2, 8: 0}
	for in, want := range cases {
		assert.Equal(t, want, reflect(in, n), "reflect(%d)", in)
	}
	assert.Equal(t, 0, reflect(5, 1))
}
