package classifier

import (
	"fmt"
	"math"
	"slices"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Report summarises a training run.
type Report struct {
	TrainSize int
	TestSize  int
	Epochs    int
	Loss      float64
	Accuracy  float64 // fraction of held-out examples predicted correctly
	Converged bool    // false when MaxEpochs was reached
}

// Train fits a model on a shuffled 1-TestFraction share of the examples and scores it
// on the rest. Poor accuracy is reported, never returned as an error.
func Train(x [][]float64, labels []string, cfg Config) (*Model, *Report, error) {
	cfg = cfg.withDefaults()

	if len(x) != len(labels) {
		return nil, nil, fmt.Errorf("classifier: %d feature vectors but %d labels", len(x), len(labels))
	}
	if distinct(labels) < 2 {
		return nil, nil, ErrTooFewLabels
	}
	dim := len(x[0])
	for i, row := range x {
		if len(row) != dim || dim == 0 {
			return nil, nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrDimension, i, len(row), dim)
		}
	}

	nTest := int(math.Ceil(cfg.TestFraction * float64(len(x))))
	nTrain := len(x) - nTest
	if nTest < 1 || nTrain < 1 {
		return nil, nil, fmt.Errorf("%w: %d examples", ErrDatasetTooSmall, len(x))
	}

	rng := cfg.rng()
	perm := rng.Perm(len(x))
	testIdx, trainIdx := perm[:nTest], perm[nTest:]

	trainLabels := make([]string, nTrain)
	for i, idx := range trainIdx {
		trainLabels[i] = labels[idx]
	}
	vocab := vocabulary(trainLabels)
	if len(vocab) < 2 {
		return nil, nil, fmt.Errorf("%w: training split holds only %q", ErrTooFewLabels, vocab)
	}
	classOf := make(map[string]int, len(vocab))
	for i, l := range vocab {
		classOf[l] = i
	}

	model := newModel(dim, cfg.HiddenUnits, vocab, rng)
	model.Extraction = cfg.Extraction

	t := &trainer{cfg: cfg, model: model}
	t.init()

	batch := min(cfg.BatchSize, nTrain)
	bestLoss := math.Inf(1)
	stale := 0
	report := &Report{TrainSize: nTrain, TestSize: nTest}

	order := slices.Clone(trainIdx)
	for epoch := 1; epoch <= cfg.MaxEpochs; epoch++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		var total float64
		for start := 0; start < nTrain; start += batch {
			end := min(start+batch, nTrain)
			idx := order[start:end]

			xb := mat.NewDense(len(idx), dim, nil)
			yb := make([]int, len(idx))
			for i, k := range idx {
				xb.SetRow(i, x[k])
				yb[i] = classOf[labels[k]]
			}
			total += t.step(xb, yb) * float64(len(idx))
		}
		loss := total / float64(nTrain)

		report.Epochs = epoch
		report.Loss = loss
		if cfg.OnEpoch != nil {
			cfg.OnEpoch(epoch, loss)
		}

		if loss > bestLoss-cfg.Tolerance {
			stale++
		} else {
			stale = 0
		}
		if loss < bestLoss {
			bestLoss = loss
		}
		if stale > cfg.Patience {
			report.Converged = true
			break
		}
	}

	testX := make([][]float64, nTest)
	for i, idx := range testIdx {
		testX[i] = x[idx]
	}
	preds, err := model.PredictBatch(testX)
	if err != nil {
		return nil, nil, err
	}
	correct := 0
	for i, p := range preds {
		if p.Label == labels[testIdx[i]] {
			correct++
		}
	}
	report.Accuracy = float64(correct) / float64(nTest)

	model.Accuracy = report.Accuracy
	model.TrainedAt = time.Now().UTC()
	return model, report, nil
}

func distinct(labels []string) int {
	seen := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		seen[l] = struct{}{}
	}
	return len(seen)
}

func vocabulary(labels []string) []string {
	out := slices.Clone(labels)
	slices.Sort(out)
	return slices.Compact(out)
}

// trainer holds Adam state for one training run.
type trainer struct {
	cfg    Config
	model  *Model
	params [][]float64
	m, v   [][]float64
	steps  int
}

func (t *trainer) init() {
	t.params = [][]float64{
		t.model.w1.RawMatrix().Data,
		t.model.b1,
		t.model.w2.RawMatrix().Data,
		t.model.b2,
	}
	t.m = make([][]float64, len(t.params))
	t.v = make([][]float64, len(t.params))
	for i, p := range t.params {
		t.m[i] = make([]float64, len(p))
		t.v[i] = make([]float64, len(p))
	}
}

// step runs one forward/backward pass on a batch and applies an Adam update.
// It returns the regularised cross-entropy loss of the batch.
func (t *trainer) step(x *mat.Dense, y []int) float64 {
	m := t.model
	n := float64(len(y))
	z1, a1, probs := m.forward(x)

	var loss float64
	for i, c := range y {
		p := math.Min(math.Max(probs.At(i, c), probClip), 1-probClip)
		loss -= math.Log(p)
	}
	loss /= n
	w1 := m.w1.RawMatrix().Data
	w2 := m.w2.RawMatrix().Data
	loss += 0.5 * t.cfg.Alpha * (floats.Dot(w1, w1) + floats.Dot(w2, w2)) / n

	// Output delta: softmax minus one-hot, reusing probs.
	delta2 := probs
	for i, c := range y {
		delta2.Set(i, c, delta2.At(i, c)-1)
	}

	gw2 := new(mat.Dense)
	gw2.Mul(a1.T(), delta2)
	gb2 := colMeans(delta2)

	delta1 := new(mat.Dense)
	delta1.Mul(delta2, m.w2.T())
	delta1.Apply(func(i, j int, v float64) float64 {
		if z1.At(i, j) <= 0 {
			return 0
		}
		return v
	}, delta1)

	gw1 := new(mat.Dense)
	gw1.Mul(x.T(), delta1)
	gb1 := colMeans(delta1)

	gw1Data := gw1.RawMatrix().Data
	gw2Data := gw2.RawMatrix().Data
	floats.AddScaled(gw1Data, t.cfg.Alpha, w1)
	floats.Scale(1/n, gw1Data)
	floats.AddScaled(gw2Data, t.cfg.Alpha, w2)
	floats.Scale(1/n, gw2Data)

	t.adam([][]float64{gw1Data, gb1, gw2Data, gb2})
	return loss
}

func (t *trainer) adam(grads [][]float64) {
	t.steps++
	b1, b2 := t.cfg.Beta1, t.cfg.Beta2
	step := float64(t.steps)
	lr := t.cfg.LearningRate * math.Sqrt(1-math.Pow(b2, step)) / (1 - math.Pow(b1, step))

	for k, p := range t.params {
		g, m, v := grads[k], t.m[k], t.v[k]
		for i := range p {
			m[i] = b1*m[i] + (1-b1)*g[i]
			v[i] = b2*v[i] + (1-b2)*g[i]*g[i]
			p[i] -= lr * m[i] / (math.Sqrt(v[i]) + t.cfg.Epsilon)
		}
	}
}

func colMeans(d *mat.Dense) []float64 {
	rows, cols := d.Dims()
	out := make([]float64, cols)
	for i := 0; i < rows; i++ {
		floats.Add(out, d.RawRowView(i))
	}
	floats.Scale(1/float64(rows), out)
	return out
}
