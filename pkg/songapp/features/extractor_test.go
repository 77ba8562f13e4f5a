package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(freq float64, rate, n int, amp float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
	}
	return out
}

func TestExtractLengthAndSign(t *testing.T) {
	cases := []struct {
		name   string
		n      int
		length int
	}{
		{"short clip padded", 100, 1024},
		{"long clip truncated", 8000, 1024},
		{"custom length", 4096, 256},
		{"odd sample count", 1001, 1024},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			samples := sine(440, 8000, tc.n, 1000)
			vec, err := Extract(samples, 1, Options{FeatureLength: tc.length})
			require.NoError(t, err)
			require.Len(t, vec, tc.length)
			for i, v := range vec {
				if v < 0 || math.IsNaN(v) {
					t.Fatalf("feature %d is %f", i, v)
				}
			}
		})
	}
}

func TestExtractKeepsLeadingBinsInOrder(t *testing.T) {
	samples := sine(440, 8000, 8000, 1000)
	samples[17] += 250
	full := Magnitude(samples)
	require.Greater(t, len(full), DefaultFeatureLength)

	vec, err := Extract(samples, 1, Options{FeatureLength: DefaultFeatureLength})
	require.NoError(t, err)
	assert.Equal(t, full[:DefaultFeatureLength], vec)
}

func TestExtractDefaultsTo1024(t *testing.T) {
	vec, err := Extract(sine(100, 8000, 3000, 1), 1, Options{})
	require.NoError(t, err)
	assert.Len(t, vec, DefaultFeatureLength)
}

func TestExtractDeterministic(t *testing.T) {
	samples := sine(523.25, 11025, 5000, 3000)
	a, err := Extract(samples, 1, Options{})
	require.NoError(t, err)
	b, err := Extract(samples, 1, Options{})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestExtractStereoMatchesMono(t *testing.T) {
	mono := sine(330, 8000, 2048, 500)
	stereo := make([]float64, 0, 2*len(mono))
	for _, v := range mono {
		stereo = append(stereo, v, v)
	}

	fromMono, err := Extract(mono, 1, Options{})
	require.NoError(t, err)
	fromStereo, err := Extract(stereo, 2, Options{})
	require.NoError(t, err)

	assert.InDeltaSlice(t, fromMono, fromStereo, 1e-9)
}

func TestExtractZerosPadded(t *testing.T) {
	vec, err := Extract(make([]float64, 10), 1, Options{})
	require.NoError(t, err)
	require.Len(t, vec, 1024)
	for _, v := range vec {
		assert.Equal(t, 0.0, v)
	}
}

func TestExtractConstantSignalIsDC(t *testing.T) {
	samples := make([]float64, 64)
	for i := range samples {
		samples[i] = 2
	}
	vec, err := Extract(samples, 1, Options{FeatureLength: 40})
	require.NoError(t, err)

	// |sum|/n == mean for a constant signal.
	assert.InDelta(t, 2.0, vec[0], 1e-9)
	for i := 1; i < 33; i++ {
		assert.InDelta(t, 0.0, vec[i], 1e-9)
	}
}

func TestExtractTruncatesBeforeTransform(t *testing.T) {
	rate := 1000
	head := sine(50, rate, rate, 1)
	tail := sine(200, rate, rate, 5)
	samples := append(append([]float64{}, head...), tail...)

	limited, err := Extract(samples, 1, Options{MaxDurationSeconds: 1, SampleRate: rate})
	require.NoError(t, err)
	headOnly, err := Extract(head, 1, Options{})
	require.NoError(t, err)

	assert.InDeltaSlice(t, headOnly, limited, 1e-9)
}

func TestExtractErrors(t *testing.T) {
	_, err := Extract(nil, 1, Options{})
	assert.ErrorIs(t, err, ErrEmptySamples)

	_, err = Extract([]float64{1, 2}, 0, Options{})
	assert.ErrorIs(t, err, ErrInvalidChannels)

	_, err = Extract([]float64{1}, 2, Options{})
	assert.ErrorIs(t, err, ErrEmptySamples)

	_, err = Extract([]float64{1, 2}, 1, Options{MaxDurationSeconds: 1})
	assert.ErrorIs(t, err, ErrInvalidRate)
}

func TestExtractDoesNotAliasInput(t *testing.T) {
	samples := []float64{1, 2, 3, 4}
	vec, err := Extract(samples, 1, Options{FeatureLength: 2})
	require.NoError(t, err)
	vec[0] = 99
	assert.Equal(t, []float64{1, 2, 3, 4}, samples)
}

func TestDownmix(t *testing.T) {
	got := Downmix([]float64{1, 3, 2, 4, 10}, 2)
	assert.Equal(t, []float64{2, 3}, got)

	got = Downmix([]float64{3, 6, 9}, 3)
	assert.Equal(t, []float64{6}, got)
}

func TestChunk(t *testing.T) {
	mono := make([]float64, 25)
	for i := range mono {
		mono[i] = float64(i)
	}

	chunks := Chunk(mono, 10, 1)
	require.Len(t, chunks, 2)
	assert.Equal(t, 0.0, chunks[0][0])
	assert.Equal(t, 10.0, chunks[1][0])
	assert.Len(t, chunks[1], 10)

	assert.Empty(t, Chunk(mono[:9], 10, 1))
	assert.Empty(t, Chunk(mono, 10, 0))
}
