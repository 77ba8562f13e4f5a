package classifier

import "math/rand/v2"

// Extraction records the feature settings a model was trained with, so that query
// vectors are built the same way.
type Extraction struct {
	FeatureLength      int
	MaxDurationSeconds float64
	SampleRate         int
	Normalized         bool   // vectors pass through a fitted scaler
	LabelKey           string // catalogue column the labels were drawn from
}

type Config struct {
	HiddenUnits  int
	MaxEpochs    int
	BatchSize    int
	LearningRate float64
	Alpha        float64 // L2 penalty
	Beta1        float64
	Beta2        float64
	Epsilon      float64
	Tolerance    float64
	Patience     int     // epochs without improvement before stopping
	TestFraction float64 // share of examples held out for the accuracy report
	Seed         uint64
	Extraction   Extraction

	// OnEpoch, when set, is called after every epoch with the 1-based epoch and its loss.
	OnEpoch func(epoch int, loss float64)
}

func DefaultConfig() Config {
	return Config{
		HiddenUnits:  100,
		MaxEpochs:    500,
		BatchSize:    200,
		LearningRate: 0.001,
		Alpha:        0.0001,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
		Tolerance:    1e-4,
		Patience:     10,
		TestFraction: 0.2,
		Seed:         42,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.HiddenUnits <= 0 {
		c.HiddenUnits = d.HiddenUnits
	}
	if c.MaxEpochs <= 0 {
		c.MaxEpochs = d.MaxEpochs
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.LearningRate <= 0 {
		c.LearningRate = d.LearningRate
	}
	if c.Alpha < 0 {
		c.Alpha = d.Alpha
	}
	if c.Beta1 <= 0 || c.Beta1 >= 1 {
		c.Beta1 = d.Beta1
	}
	if c.Beta2 <= 0 || c.Beta2 >= 1 {
		c.Beta2 = d.Beta2
	}
	if c.Epsilon <= 0 {
		c.Epsilon = d.Epsilon
	}
	if c.Tolerance <= 0 {
		c.Tolerance = d.Tolerance
	}
	if c.Patience <= 0 {
		c.Patience = d.Patience
	}
	if c.TestFraction <= 0 || c.TestFraction >= 1 {
		c.TestFraction = d.TestFraction
	}
	return c
}

func (c Config) rng() *rand.Rand {
	return rand.New(rand.NewPCG(c.Seed, c.Seed))
}
