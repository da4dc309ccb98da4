// Package train fine-tunes a classifier on one experiment configuration:
// epochs of TRAIN and VAL phases with early stopping, then a test pass.
package train

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"hawkdove/dataset"
	"hawkdove/metrics"
	"hawkdove/models"
	"hawkdove/nn"
	"hawkdove/report"
	"hawkdove/utils"

	"github.com/charmbracelet/log"
)

// Phase names one half of an epoch.
type Phase string

const (
	PhaseTrain Phase = "train"
	PhaseVal   Phase = "val"
)

const (
	EpochResultsFile = "epoch_results.xlsx"
	EpochPlotFile    = "epoch_results.png"
)

// Trainer owns a model and its optimizer for one experiment.
type Trainer struct {
	Model     *models.Classifier
	Optimizer *nn.AdamW
	Stats     *utils.TimingStats
}

func NewTrainer(model *models.Classifier, learningRate float64, stats *utils.TimingStats) *Trainer {
	if stats == nil {
		stats = &utils.TimingStats{}
	}
	return &Trainer{Model: model, Optimizer: nn.NewAdamW(learningRate), Stats: stats}
}

// TrainEpoch runs one training phase: for each batch, the mean loss
// gradient is accumulated and a single optimizer step is taken.
func (t *Trainer) TrainEpoch(ctx context.Context, loader *dataset.Loader) (metrics.Scores, error) {
	params := t.Model.Params()
	var acc metrics.Accumulator
	for _, batch := range loader.Epoch() {
		if err := ctx.Err(); err != nil {
			return metrics.Scores{}, err
		}
		nn.ZeroGrad(params)
		for _, it := range batch {
			start := time.Now()
			out, err := t.Model.Forward(it.Tokens, it.Label)
			if err != nil {
				return metrics.Scores{}, err
			}
			t.Stats.ForwardPassTime += time.Since(start)
			acc.Add(out.Loss, it.Label, out.Pred)

			start = time.Now()
			if err := t.Model.Backward(out); err != nil {
				return metrics.Scores{}, err
			}
			t.Stats.BackwardPassTime += time.Since(start)
		}
		start := time.Now()
		nn.ScaleGrad(params, 1/float64(len(batch)))
		if err := t.Optimizer.Step(params); err != nil {
			return metrics.Scores{}, fmt.Errorf("optimizer step %d: %w", t.Optimizer.Steps()+1, err)
		}
		t.Stats.UpdateTime += time.Since(start)
	}
	return acc.Scores(), nil
}

// Evaluate runs a forward-only pass over every batch.
func (t *Trainer) Evaluate(ctx context.Context, loader *dataset.Loader) (metrics.Scores, error) {
	start := time.Now()
	defer func() { t.Stats.EvaluationTime += time.Since(start) }()

	var acc metrics.Accumulator
	for _, batch := range loader.Epoch() {
		if err := ctx.Err(); err != nil {
			return metrics.Scores{}, err
		}
		for _, it := range batch {
			out, err := t.Model.Forward(it.Tokens, it.Label)
			if err != nil {
				return metrics.Scores{}, err
			}
			acc.Add(out.Loss, it.Label, out.Pred)
		}
	}
	return acc.Scores(), nil
}

// Fit alternates TRAIN and VAL phases until maxEpochs have run or the
// stopper reports patience exhausted at the start of an epoch.
func (t *Trainer) Fit(ctx context.Context, trainLoader, valLoader *dataset.Loader, stopper *EarlyStopper, maxEpochs int) ([]report.EpochRow, error) {
	var rows []report.EpochRow
	for epoch := 0; epoch < maxEpochs; epoch++ {
		if stopper.ShouldStop() {
			log.Info("early stopping", "epoch", epoch, "count", stopper.Count)
			break
		}
		var row report.EpochRow
		for _, phase := range []Phase{PhaseTrain, PhaseVal} {
			var err error
			switch phase {
			case PhaseTrain:
				stopper.BeginTrain()
				row.Train, err = t.TrainEpoch(ctx, trainLoader)
			case PhaseVal:
				row.Val, err = t.Evaluate(ctx, valLoader)
				if err == nil {
					stopper.Observe(row.Val)
				}
			}
			if err != nil {
				return rows, fmt.Errorf("epoch %d %s: %w", epoch, phase, err)
			}
		}
		rows = append(rows, row)
		log.Debug("epoch", "n", epoch, "train", row.Train, "val", row.Val, "early_stopping_count", stopper.Count)
	}
	return rows, nil
}

// Result is everything one experiment produces.
type Result struct {
	Row      report.ResultRow
	Epochs   []report.EpochRow
	SavePath string
	Steps    int
	Stats    utils.TimingStats
}

// Run performs one complete experiment described by cfg, loading the
// tokenizer and model through loader.
func Run(ctx context.Context, cfg utils.Config, loader *models.Loader) (*Result, error) {
	if err := utils.ValidateConfig(&cfg); err != nil {
		return nil, err
	}
	spec, err := models.Lookup(cfg.ModelName)
	if err != nil {
		return nil, err
	}
	var stats utils.TimingStats
	begin := time.Now()
	log.Info("starting experiment", "model", cfg.ModelName, "seed", cfg.Seed,
		"batch_size", cfg.BatchSize, "learning_rate", cfg.LearningRate, "device", "cpu", "gpu", cfg.GPU)

	start := time.Now()
	tok, err := loader.Tokenizer(ctx, cfg.ModelName)
	if err != nil {
		return nil, err
	}
	stats.ModelInitTime += time.Since(start)

	start = time.Now()
	trainExamples, err := dataset.Load(cfg.TrainPath)
	if err != nil {
		return nil, err
	}
	testExamples, err := dataset.Load(cfg.TestPath)
	if err != nil {
		return nil, err
	}
	stats.DataLoadingTime += time.Since(start)

	start = time.Now()
	full := dataset.Build(tok, trainExamples, spec.MaxLength)
	test := dataset.Build(tok, testExamples, spec.MaxLength)
	stats.TokenizeTime += time.Since(start)

	start = time.Now()
	model, err := loader.Model(ctx, cfg.ModelName, tok, cfg.Seed)
	if err != nil {
		return nil, err
	}
	stats.ModelInitTime += time.Since(start)

	trainSet, valSet, err := dataset.Split(full, cfg.Seed, cfg.ValFraction)
	if err != nil {
		return nil, err
	}
	log.Info("split dataset", "train", trainSet.Len(), "val", valSet.Len(), "test", test.Len())

	src, err := dataset.NewSource(cfg.Seed + 1)
	if err != nil {
		return nil, err
	}
	trainLoader, err := dataset.NewLoader(trainSet, cfg.BatchSize, true, src)
	if err != nil {
		return nil, err
	}
	valLoader, err := dataset.NewLoader(valSet, cfg.BatchSize, true, src)
	if err != nil {
		return nil, err
	}
	testLoader, err := dataset.NewLoader(test, cfg.BatchSize, false, nil)
	if err != nil {
		return nil, err
	}

	tr := NewTrainer(model, cfg.LearningRate, &stats)
	stopper := NewEarlyStopper(cfg.Patience, cfg.MinDelta)
	epochs, err := tr.Fit(ctx, trainLoader, valLoader, stopper, cfg.MaxEpochs)
	if err != nil {
		return nil, err
	}
	testScores, err := tr.Evaluate(ctx, testLoader)
	if err != nil {
		return nil, fmt.Errorf("test: %w", err)
	}

	res := &Result{
		Row: report.ResultRow{
			Seed:         cfg.Seed,
			LearningRate: cfg.LearningRate,
			BatchSize:    cfg.BatchSize,
			Val:          stopper.Best(),
			Test:         testScores,
		},
		Epochs:   epochs,
		SavePath: cfg.SavePath(),
		Steps:    tr.Optimizer.Steps(),
	}
	if res.SavePath != "" {
		start = time.Now()
		if err := save(res.SavePath, model, tok, epochs); err != nil {
			return nil, err
		}
		stats.SaveTime += time.Since(start)
	}
	stats.TotalTime = time.Since(begin)
	res.Stats = stats
	log.Info("finished experiment", "epochs", len(epochs), "val", res.Row.Val, "test", res.Row.Test)
	return res, nil
}

type saver interface {
	Save(dir string) error
}

func save(dir string, model *models.Classifier, tok saver, epochs []report.EpochRow) error {
	if err := model.Save(dir); err != nil {
		return fmt.Errorf("saving model to %s: %w", dir, err)
	}
	if err := tok.Save(dir); err != nil {
		return fmt.Errorf("saving tokenizer to %s: %w", dir, err)
	}
	if err := report.WriteEpochResults(filepath.Join(dir, EpochResultsFile), epochs); err != nil {
		return err
	}
	if err := report.PlotEpochs(filepath.Join(dir, EpochPlotFile), epochs); err != nil {
		log.Warn("could not plot epoch results", "err", err)
	}
	return nil
}
