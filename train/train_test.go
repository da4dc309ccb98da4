package train

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hawkdove/dataset"
	"hawkdove/metrics"
	"hawkdove/models"
	"hawkdove/tokenizer"
	"hawkdove/utils"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var vocab = []string{"[PAD]", "[UNK]", "[CLS]", "[SEP]", "rates", "will", "rise", "fall", "hold", "steady", "inflation", "growth"}

var sentences = []dataset.Example{
	{Sentence: "rates will rise", Label: 1},
	{Sentence: "inflation will rise", Label: 1},
	{Sentence: "rates will fall", Label: 0},
	{Sentence: "growth will fall", Label: 0},
	{Sentence: "rates hold steady", Label: 2},
	{Sentence: "growth hold steady", Label: 2},
}

func TestEarlyStopperCounter(t *testing.T) {
	e := NewEarlyStopper(7, 0.01)
	require.False(t, e.ShouldStop())

	e.BeginTrain()
	require.Equal(t, 1, e.Count)
	require.True(t, e.Observe(metrics.Scores{CrossEntropy: 1.0, Accuracy: 0.5, F1: 0.5}))
	require.Equal(t, 0, e.Count)

	// Below MinDelta on every metric.
	e.BeginTrain()
	require.False(t, e.Observe(metrics.Scores{CrossEntropy: 0.995, Accuracy: 0.505, F1: 0.505}))
	require.Equal(t, 1, e.Count)

	// Accuracy alone qualifies.
	e.BeginTrain()
	require.True(t, e.Observe(metrics.Scores{CrossEntropy: 2.0, Accuracy: 0.51, F1: 0.1}))
	require.Equal(t, 0, e.Count)
	best := e.Best()
	require.Equal(t, 1.0, best.CrossEntropy)
	require.Equal(t, 0.51, best.Accuracy)
	require.Equal(t, 0.5, best.F1)

	// F1 alone qualifies.
	e.BeginTrain()
	require.True(t, e.Observe(metrics.Scores{CrossEntropy: 2.0, Accuracy: 0.0, F1: 0.6}))
	// Loss alone qualifies, exactly at the boundary.
	e.BeginTrain()
	require.True(t, e.Observe(metrics.Scores{CrossEntropy: 0.99, Accuracy: 0.0, F1: 0.0}))
}

func TestEarlyStopperStopsAfterPatience(t *testing.T) {
	e := NewEarlyStopper(3, 0.01)
	e.BeginTrain()
	e.Observe(metrics.Scores{CrossEntropy: 1, Accuracy: 0.5, F1: 0.5})
	for i := 1; i <= 3; i++ {
		require.False(t, e.ShouldStop())
		e.BeginTrain()
		e.Observe(metrics.Scores{CrossEntropy: 1, Accuracy: 0.5, F1: 0.5})
		require.Equal(t, i, e.Count)
	}
	require.True(t, e.ShouldStop())
}

func newTrainer(t *testing.T, lr float64) (*Trainer, *dataset.Dataset) {
	t.Helper()
	tok, err := tokenizer.NewWordPiece(vocab, true)
	require.NoError(t, err)
	m, err := models.NewClassifier(models.ClassifierConfig{Model: "bert", VocabSize: tok.VocabSize(), MaxLength: 16, Hidden: 8, NumLabels: models.NumLabels})
	require.NoError(t, err)
	m.InitRandom(5768)
	return NewTrainer(m, lr, nil), dataset.Build(tok, sentences, 16)
}

func loaders(t *testing.T, d *dataset.Dataset, batch int) (*dataset.Loader, *dataset.Loader) {
	t.Helper()
	src, err := dataset.NewSource(1)
	require.NoError(t, err)
	tl, err := dataset.NewLoader(d, batch, true, src)
	require.NoError(t, err)
	vl, err := dataset.NewLoader(d, batch, false, nil)
	require.NoError(t, err)
	return tl, vl
}

func TestFitStopsAfterPatienceWithoutImprovement(t *testing.T) {
	// A zero learning rate never changes the model, so only the first
	// validation pass counts as an improvement.
	tr, d := newTrainer(t, 0)
	tl, vl := loaders(t, d, 4)
	stopper := NewEarlyStopper(7, 0.01)

	rows, err := tr.Fit(context.Background(), tl, vl, stopper, 100)
	require.NoError(t, err)
	require.Len(t, rows, 8)
	require.Equal(t, 7, stopper.Count)
	require.Equal(t, 8*2, tr.Optimizer.Steps())
}

func TestFitRespectsMaxEpochs(t *testing.T) {
	tr, d := newTrainer(t, 1e-2)
	tl, vl := loaders(t, d, 2)
	rows, err := tr.Fit(context.Background(), tl, vl, NewEarlyStopper(7, 0.01), 3)
	require.NoError(t, err)
	require.LessOrEqual(t, len(rows), 3)
	require.Equal(t, len(rows)*3, tr.Optimizer.Steps())
}

func TestFitLearnsSeparableData(t *testing.T) {
	tr, d := newTrainer(t, 5e-2)
	tl, vl := loaders(t, d, 2)
	before, err := tr.Evaluate(context.Background(), vl)
	require.NoError(t, err)

	_, err = tr.Fit(context.Background(), tl, vl, NewEarlyStopper(1000, 0.01), 60)
	require.NoError(t, err)
	after, err := tr.Evaluate(context.Background(), vl)
	require.NoError(t, err)
	require.Less(t, after.CrossEntropy, before.CrossEntropy)
	require.GreaterOrEqual(t, after.Accuracy, 5.0/6)
}

func TestFitHonoursCancellation(t *testing.T) {
	tr, d := newTrainer(t, 1e-2)
	tl, vl := loaders(t, d, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := tr.Fit(ctx, tl, vl, NewEarlyStopper(7, 0.01), 10)
	require.ErrorIs(t, err, context.Canceled)
}

func writeSheet(t *testing.T, path string, examples []dataset.Example) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"sentence", "label"}))
	for i, ex := range examples {
		require.NoError(t, f.SetSheetRow(sheet, fmt.Sprintf("A%d", i+2), &[]interface{}{ex.Sentence, ex.Label}))
	}
	// A numeric sentence cell is skipped.
	require.NoError(t, f.SetSheetRow(sheet, fmt.Sprintf("A%d", len(examples)+2), &[]interface{}{12, 0}))
	require.NoError(t, f.SaveAs(path))
}

func TestRunSavesExperiment(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "models")
	src := filepath.Join(root, "bert-base-uncased")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, tokenizer.VocabFile), []byte(strings.Join(vocab, "\n")), 0o644))

	trainPath := filepath.Join(dir, "lab-manual-combine-train-5768.xlsx")
	testPath := filepath.Join(dir, "lab-manual-combine-test-5768.xlsx")
	writeSheet(t, trainPath, append(append([]dataset.Example{}, sentences...), sentences...))
	writeSheet(t, testPath, sentences)

	cfg := utils.DefaultConfig()
	cfg.ModelName = "bert"
	cfg.DataCategory = "lab-manual-combine"
	cfg.Seed = 5768
	cfg.BatchSize = 4
	cfg.LearningRate = 1e-3
	cfg.MaxEpochs = 2
	cfg.TrainPath = trainPath
	cfg.TestPath = testPath
	cfg.SaveRoot = filepath.Join(dir, "final_model") + string(filepath.Separator)

	res, err := Run(context.Background(), cfg, models.NewLoader(root))
	require.NoError(t, err)
	require.Len(t, res.Epochs, 2)
	require.Equal(t, int64(5768), res.Row.Seed)
	require.Equal(t, 4, res.Row.BatchSize)
	require.GreaterOrEqual(t, res.Row.Test.Accuracy, 0.0)
	require.LessOrEqual(t, res.Row.Test.Accuracy, 1.0)
	require.GreaterOrEqual(t, res.Row.Val.Accuracy, res.Epochs[0].Val.Accuracy)
	require.LessOrEqual(t, res.Row.Val.CrossEntropy, res.Epochs[0].Val.CrossEntropy)
	require.Equal(t, cfg.SaveRoot+"bertlab-manual-combine-5768-0.001-4", res.SavePath)

	for _, name := range []string{models.ConfigFile, models.WeightsFile, tokenizer.VocabFile, EpochResultsFile, EpochPlotFile} {
		_, err := os.Stat(filepath.Join(res.SavePath, name))
		require.NoError(t, err, name)
	}
	m, err := models.LoadClassifier(res.SavePath)
	require.NoError(t, err)
	require.Equal(t, "bert", m.Config.Model)
}

func TestRunRejectsUnknownModel(t *testing.T) {
	cfg := utils.DefaultConfig()
	cfg.ModelName = "gpt"
	cfg.BatchSize = 4
	cfg.LearningRate = 1e-5
	cfg.TrainPath, cfg.TestPath = "train.xlsx", "test.xlsx"
	_, err := Run(context.Background(), cfg, models.NewLoader(t.TempDir()))
	require.ErrorIs(t, err, models.ErrUnknownModel)
}
