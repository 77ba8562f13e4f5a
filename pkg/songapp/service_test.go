package songapp

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xon-patrick/SongApp/pkg/logger"
	"github.com/xon-patrick/SongApp/pkg/models"
	"github.com/xon-patrick/SongApp/pkg/songapp/audio"
	"github.com/xon-patrick/SongApp/pkg/songapp/classifier"
	"github.com/xon-patrick/SongApp/pkg/songapp/inference"
	"github.com/xon-patrick/SongApp/pkg/songapp/ingest"
	"github.com/xon-patrick/SongApp/pkg/songapp/storage"
)

var songNames = []string{"Alpha-One.wav", "Bravo-Two.wav", "Charlie.wav"}

func writeTone(t *testing.T, path string, freq float64) {
	t.Helper()
	const rate = 8000
	samples := make([]float64, 1600)
	for i := range samples {
		samples[i] = math.Round(8000 * math.Sin(2*math.Pi*freq*float64(i)/rate))
	}
	require.NoError(t, audio.WriteWAVFile(path, &audio.Clip{Samples: samples, Channels: 1, SampleRate: rate}))
}

func songDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for i, name := range songNames {
		writeTone(t, filepath.Join(dir, name), float64(300*(i+1)))
		cover := strings.TrimSuffix(name, ".wav") + ".png"
		require.NoError(t, os.WriteFile(filepath.Join(dir, cover), []byte("cover "+name), 0o644))
	}
	return dir
}

func testOptions(t *testing.T, extra ...Option) []Option {
	t.Helper()
	work := t.TempDir()
	opts := []Option{
		WithDBPath(filepath.Join(work, "songs.sqlite3")),
		WithModelPath(filepath.Join(work, "models", "classifier.gob")),
		WithScalerPath(filepath.Join(work, "models", "scaler.gob")),
		WithFeatureLength(32),
		WithFFmpeg(false, ""),
		WithLogger(logger.Discard()),
		WithTraining(classifier.Config{HiddenUnits: 16, MaxEpochs: 40, Seed: 42}),
	}
	return append(opts, extra...)
}

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	svc, err := NewService(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestIngestAndList(t *testing.T) {
	dir := songDir(t)
	writeTone(t, filepath.Join(dir, "Uncovered.wav"), 900)

	var seen []ingest.Status
	svc := newTestService(t, testOptions(t, WithIngestObserver(func(_ string, st ingest.Status) {
		seen = append(seen, st)
	}))...)

	report, err := svc.Ingest(context.Background(), dir)
	require.NoError(t, err)
	assert.Len(t, report.Added, 3)
	assert.Equal(t, []string{"Uncovered.wav"}, report.SkippedNoImage)
	assert.Len(t, seen, 4)

	songs, err := svc.ListSongs()
	require.NoError(t, err)
	require.Len(t, songs, 3)
	assert.Equal(t, "Alpha-One.wav", songs[0].Identifier)
	assert.Equal(t, "Alpha", songs[0].SongName)
	assert.Equal(t, "One", songs[0].Artist)
	assert.True(t, songs[0].HasImage)
	assert.Equal(t, 32, songs[0].Features)

	again, err := svc.Ingest(context.Background(), dir)
	require.NoError(t, err)
	assert.Empty(t, again.Added)
	assert.Len(t, again.Existing, 3)
}

func TestGetAndDeleteSong(t *testing.T) {
	svc := newTestService(t, testOptions(t)...)
	_, err := svc.Ingest(context.Background(), songDir(t))
	require.NoError(t, err)

	rec, err := svc.GetSong("Bravo-Two.wav")
	require.NoError(t, err)
	assert.Equal(t, "Bravo", rec.SongName)

	byID, err := svc.GetSong("1")
	require.NoError(t, err)
	assert.Equal(t, "Alpha-One.wav", byID.Identifier)

	_, err = svc.GetSong("missing.wav")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, svc.DeleteSong("Bravo-Two.wav"))
	assert.ErrorIs(t, svc.DeleteSong("Bravo-Two.wav"), storage.ErrNotFound)

	songs, err := svc.ListSongs()
	require.NoError(t, err)
	assert.Len(t, songs, 2)
}

func TestTrainEmptyCatalogue(t *testing.T) {
	svc := newTestService(t, testOptions(t)...)
	_, err := svc.Train(context.Background())
	assert.Error(t, err)
}

func TestTrainNeedsTwoLabels(t *testing.T) {
	dir := t.TempDir()
	writeTone(t, filepath.Join(dir, "Only.wav"), 440)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Only.png"), []byte("c"), 0o644))

	svc := newTestService(t, testOptions(t)...)
	_, err := svc.Ingest(context.Background(), dir)
	require.NoError(t, err)

	_, err = svc.Train(context.Background())
	assert.ErrorIs(t, err, classifier.ErrTooFewLabels)
}

func TestTrainAndRecognize(t *testing.T) {
	dir := songDir(t)
	var epochs int
	opts := testOptions(t, WithEpochObserver(func(int, float64) { epochs++ }))

	svc := newTestService(t, opts...)
	_, err := svc.Ingest(context.Background(), dir)
	require.NoError(t, err)

	report, err := svc.Train(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9, report.Examples)
	assert.Equal(t, 3, report.Songs)
	assert.Equal(t, 3, report.Labels)
	assert.Empty(t, report.ScalerPath)
	assert.Equal(t, report.Epochs, epochs)
	assert.Contains(t, report.String(), "Model accuracy: ")
	assert.FileExists(t, report.ModelPath)
	require.NoError(t, svc.Close())

	var states []string
	rec, err := NewRecognizer(append(opts, WithStateObserver(func(s inference.State) {
		states = append(states, s.String())
	}))...)
	require.NoError(t, err)
	defer rec.Close()

	info := rec.Info()
	assert.Equal(t, []string{"Alpha", "Bravo", "Charlie"}, info.Labels)
	assert.Equal(t, 32, info.FeatureLen)
	assert.False(t, info.Normalized)

	res := rec.IdentifyFile(context.Background(), filepath.Join(dir, "Charlie.wav"))
	require.Equal(t, models.OutcomeFound, res.Outcome, res.Reason)
	assert.Contains(t, info.Labels, res.Label)
	assert.NotEmpty(t, res.Image)
	assert.Equal(t, "found", states[len(states)-1])

	bad := rec.IdentifyFile(context.Background(), filepath.Join(dir, "nope.wav"))
	assert.Equal(t, models.OutcomeFailed, bad.Outcome)
}

func TestChunkedTrainingWritesScaler(t *testing.T) {
	dir := songDir(t)
	opts := testOptions(t,
		WithChunkSeconds(0.05),
		WithAugment(false),
		WithCacheDir(filepath.Join(t.TempDir(), "cache")),
	)

	svc := newTestService(t, opts...)
	_, err := svc.Ingest(context.Background(), dir)
	require.NoError(t, err)

	// 1600 samples at 8 kHz hold four whole 50 ms chunks.
	report, err := svc.Train(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, report.Examples)
	assert.Equal(t, 3, report.Songs)
	assert.FileExists(t, report.ScalerPath)

	// Second run is served from the feature cache and must agree.
	again, err := svc.Train(context.Background())
	require.NoError(t, err)
	assert.Equal(t, report.Examples, again.Examples)
	require.NoError(t, svc.Close())

	rec, err := NewRecognizer(opts...)
	require.NoError(t, err)
	info := rec.Info()
	assert.True(t, info.Normalized)
	assert.InDelta(t, 0.05, info.ChunkSeconds, 1e-12)

	res := rec.IdentifyFile(context.Background(), filepath.Join(dir, "Alpha-One.wav"))
	assert.Equal(t, models.OutcomeFound, res.Outcome, res.Reason)
	require.NoError(t, rec.Close())

	require.NoError(t, os.Remove(report.ScalerPath))
	_, err = NewRecognizer(opts...)
	assert.ErrorIs(t, err, ErrScalerMissing)
}

func TestNewRecognizerWithoutModel(t *testing.T) {
	_, err := NewRecognizer(testOptions(t)...)
	assert.ErrorIs(t, err, ErrModelMissing)
}
