package sweep

import (
	"context"
	"fmt"
	"path/filepath"

	"hawkdove/report"
	"hawkdove/utils"

	"github.com/charmbracelet/log"
)

// RunFunc runs one experiment and returns its summary row.
type RunFunc func(ctx context.Context, cfg utils.Config) (report.ResultRow, error)

// Driver walks a Grid for one model and data category.
type Driver struct {
	Grid  Grid
	Store CheckpointStore
	Run   RunFunc

	// Base carries everything but seed, batch size, learning rate and
	// data paths.
	Base utils.Config
	// TrainPrefix and TestPrefix are completed with -<seed>.xlsx.
	TrainPrefix string
	TestPrefix  string
	// ResultsPath is rewritten in full after every experiment.
	ResultsPath string
}

// DataPath is <prefix>-<seed>.xlsx.
func DataPath(prefix string, seed int64) string {
	return fmt.Sprintf("%s-%d.xlsx", prefix, seed)
}

// ResultsPath is <dir>/final_<category>_<model>.xlsx.
func ResultsPath(dir, category, model string) string {
	return filepath.Join(dir, report.ResultsFileName(category, model))
}

func (d *Driver) config(p Point) utils.Config {
	cfg := d.Base
	cfg.Seed = p.Seed
	cfg.BatchSize = p.BatchSize
	cfg.LearningRate = p.LearningRate
	cfg.TrainPath = DataPath(d.TrainPrefix, p.Seed)
	cfg.TestPath = DataPath(d.TestPrefix, p.Seed)
	return cfg
}

// Start resolves where the sweep begins and which earlier rows to keep.
func (d *Driver) Start() (Checkpoint, []report.ResultRow, error) {
	c, ok, err := d.Store.Load()
	if err != nil {
		return Checkpoint{}, nil, err
	}
	if !ok {
		fmt.Println("No checkpoint found, start from the beginning.")
		return Checkpoint{}, nil, nil
	}
	if err := d.Grid.Validate(c); err != nil {
		return Checkpoint{}, nil, err
	}
	rows, err := report.ReadResults(d.ResultsPath)
	if err != nil {
		return Checkpoint{}, nil, err
	}
	if d.Grid.Done(c) {
		fmt.Println("Loading from checkpoint successfully, sweep already complete.")
	} else {
		p := d.Grid.point(c)
		fmt.Printf("Loading from checkpoint successfully, seeds: %d, batch_size: %d, learning_rate: %g\n",
			p.Seed, p.BatchSize, p.LearningRate)
	}
	return c, rows, nil
}

// Sweep runs every remaining experiment. After each one its row is
// appended, the results sheet rewritten and the next position saved. An
// experiment that fails or is cancelled leaves the checkpoint untouched.
// ran counts the experiments this call completed.
func (d *Driver) Sweep(ctx context.Context) (rows []report.ResultRow, ran int, err error) {
	start, rows, err := d.Start()
	if err != nil {
		return nil, 0, err
	}
	fmt.Printf("Start Training, Language Model:%s, Data Category:%s\n", d.Base.ModelName, d.Base.DataCategory)

	total := d.Grid.Size()
	for _, p := range d.Grid.From(start) {
		if err := ctx.Err(); err != nil {
			return rows, ran, err
		}
		cfg := d.config(p)
		fmt.Printf("Experiment %d of %d:\n", d.Grid.Ordinal(p.At)+1, total)
		fmt.Printf("Seed: %d, Batch Size: %d, Learning Rate: %g\n", p.Seed, p.BatchSize, p.LearningRate)
		log.Debug("experiment paths", "train", cfg.TrainPath, "test", cfg.TestPath, "save", cfg.SavePath())

		row, err := d.Run(ctx, cfg)
		if err != nil {
			return rows, ran, fmt.Errorf("experiment %v %s: %w", p.At, cfg.ExperimentName(), err)
		}
		rows = append(rows, row)
		ran++
		if err := report.WriteResults(d.ResultsPath, rows); err != nil {
			return rows, ran, err
		}
		next := d.Grid.Next(p.At)
		if err := d.Store.Save(next); err != nil {
			return rows, ran, fmt.Errorf("saving checkpoint: %w", err)
		}
		fmt.Printf("Save Checkpoint:[%d, %d, %g] successfully.\n", p.Seed, p.BatchSize, p.LearningRate)
	}
	return rows, ran, nil
}
