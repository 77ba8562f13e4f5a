// Package classifier implements a single-hidden-layer perceptron that maps feature
// vectors to song labels.
package classifier

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrTooFewLabels    = errors.New("classifier: at least two distinct labels are required")
	ErrDatasetTooSmall = errors.New("classifier: dataset too small for a train/test split")
	ErrDimension       = errors.New("classifier: feature vector has the wrong length")
)

const probClip = 1e-15

// Prediction is the most probable label and its softmax probability.
type Prediction struct {
	Label      string
	Confidence float64
}

// Model is a trained network plus its label vocabulary. Read-only after training.
type Model struct {
	ID         string
	Labels     []string
	Extraction Extraction
	Accuracy   float64
	TrainedAt  time.Time

	w1 *mat.Dense // inputs x hidden
	b1 []float64
	w2 *mat.Dense // hidden x classes
	b2 []float64
}

func newModel(inputs, hidden int, labels []string, rng interface{ Float64() float64 }) *Model {
	m := &Model{
		ID:     uuid.NewString(),
		Labels: labels,
		w1:     mat.NewDense(inputs, hidden, nil),
		b1:     make([]float64, hidden),
		w2:     mat.NewDense(hidden, len(labels), nil),
		b2:     make([]float64, len(labels)),
	}
	glorot(m.w1.RawMatrix().Data, m.b1, inputs, hidden, rng)
	glorot(m.w2.RawMatrix().Data, m.b2, hidden, len(labels), rng)
	return m
}

// glorot fills weights and biases uniformly in +-sqrt(6/(fanIn+fanOut)).
func glorot(w, b []float64, fanIn, fanOut int, rng interface{ Float64() float64 }) {
	bound := math.Sqrt(6 / float64(fanIn+fanOut))
	for i := range w {
		w[i] = (2*rng.Float64() - 1) * bound
	}
	for i := range b {
		b[i] = (2*rng.Float64() - 1) * bound
	}
}

func (m *Model) InputDim() int {
	r, _ := m.w1.Dims()
	return r
}

func (m *Model) HiddenUnits() int {
	_, c := m.w1.Dims()
	return c
}

func (m *Model) Predict(vec []float64) (Prediction, error) {
	preds, err := m.PredictBatch([][]float64{vec})
	if err != nil {
		return Prediction{}, err
	}
	return preds[0], nil
}

func (m *Model) PredictBatch(matrix [][]float64) ([]Prediction, error) {
	if len(matrix) == 0 {
		return nil, nil
	}
	x, err := m.rows(matrix)
	if err != nil {
		return nil, err
	}
	_, _, probs := m.forward(x)

	out := make([]Prediction, len(matrix))
	for i := range out {
		row := probs.RawRowView(i)
		best := floats.MaxIdx(row)
		out[i] = Prediction{Label: m.Labels[best], Confidence: row[best]}
	}
	return out, nil
}

func (m *Model) rows(matrix [][]float64) (*mat.Dense, error) {
	d := m.InputDim()
	x := mat.NewDense(len(matrix), d, nil)
	for i, row := range matrix {
		if len(row) != d {
			return nil, fmt.Errorf("%w: row %d has %d values, model expects %d", ErrDimension, i, len(row), d)
		}
		x.SetRow(i, row)
	}
	return x, nil
}

func (m *Model) forward(x *mat.Dense) (z1, a1, probs *mat.Dense) {
	z1 = new(mat.Dense)
	z1.Mul(x, m.w1)
	addBias(z1, m.b1)

	a1 = new(mat.Dense)
	a1.Apply(func(_, _ int, v float64) float64 { return math.Max(0, v) }, z1)

	probs = new(mat.Dense)
	probs.Mul(a1, m.w2)
	addBias(probs, m.b2)
	rows, _ := probs.Dims()
	for i := 0; i < rows; i++ {
		softmax(probs.RawRowView(i))
	}
	return z1, a1, probs
}

func addBias(m *mat.Dense, b []float64) {
	rows, _ := m.Dims()
	for i := 0; i < rows; i++ {
		floats.Add(m.RawRowView(i), b)
	}
}

func softmax(row []float64) {
	maxV := floats.Max(row)
	var sum float64
	for i, v := range row {
		e := math.Exp(v - maxV)
		row[i] = e
		sum += e
	}
	floats.Scale(1/sum, row)
}
