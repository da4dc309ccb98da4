package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"hawkdove/models"
	"hawkdove/report"
	"hawkdove/sweep"
	"hawkdove/train"
	"hawkdove/utils"

	"github.com/charmbracelet/log"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	modelsToSweep = []string{
		"roberta", "roberta-large", "bert", "bert-large", "finbert",
		"flangbert", "flangroberta", "xlnet", "xlm-roberta-base",
	}
	categoriesToSweep = []string{
		"lab-manual-combine", "lab-manual-sp", "lab-manual-mm", "lab-manual-pc",
		"lab-manual-mm-split", "lab-manual-pc-split", "lab-manual-sp-split",
		"lab-manual-split-combine",
	}
)

type sweepArgs struct {
	model       string
	category    string
	trainPrefix string
	testPrefix  string
	checkpoint  string
	resultsDir  string
}

// NewSweepCommand returns the command that grid-searches one model and
// data category.
func NewSweepCommand() *cobra.Command {
	var args sweepArgs
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Grid-search seeds, batch sizes and learning rates for one model",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d := newDriver(newLoader(), args.model, args.category, args.trainPrefix, args.testPrefix,
				sweep.FileStore{Path: args.checkpoint}, args.resultsDir)
			rows, ran, err := d.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			return finishSweep(args.resultsDir, args.model, args.category, rows, ran)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&args.model, "model", "m", "roberta", "Model key")
	f.StringVarP(&args.category, "category", "c", "lab-manual-split-combine", "Data category")
	f.StringVar(&args.trainPrefix, "train-prefix", "", "Training data prefix, completed with -<seed>.xlsx")
	f.StringVar(&args.testPrefix, "test-prefix", "", "Test data prefix, completed with -<seed>.xlsx")
	f.StringVar(&args.checkpoint, "checkpoint", "../model_data/checkpoint", "Checkpoint file")
	f.StringVar(&args.resultsDir, "results-dir", "../grid_search_results_repro", "Directory for the results spreadsheet")
	_ = cmd.MarkFlagRequired("train-prefix")
	_ = cmd.MarkFlagRequired("test-prefix")
	return cmd
}

type sweepAllArgs struct {
	dataRoot      string
	checkpointDir string
	resultsDir    string
	models        []string
	categories    []string
}

// NewSweepAllCommand returns the command that sweeps every model over every
// data category.
func NewSweepAllCommand() *cobra.Command {
	var args sweepAllArgs
	cmd := &cobra.Command{
		Use:   "sweep-all",
		Short: "Run the grid search for every model and data category",
		RunE: func(cmd *cobra.Command, _ []string) error {
			start := time.Now()
			loader := newLoader()
			for _, model := range args.models {
				for _, category := range args.categories {
					trainPrefix := filepath.Join(args.dataRoot, "training_data", category+"-train")
					testPrefix := filepath.Join(args.dataRoot, "test_data", category+"-test")
					store := sweep.FileStore{Path: filepath.Join(args.checkpointDir, fmt.Sprintf("%s_%s.json", category, model))}
					d := newDriver(loader, model, category, trainPrefix, testPrefix, store, args.resultsDir)
					rows, ran, err := d.Sweep(cmd.Context())
					if err != nil {
						return fmt.Errorf("%s/%s: %w", model, category, err)
					}
					if err := finishSweep(args.resultsDir, model, category, rows, ran); err != nil {
						return err
					}
				}
			}
			fmt.Printf("%.2f minutes\n", time.Since(start).Minutes())
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&args.dataRoot, "data-root", "../training_data/test-and-training", "Directory with training_data/ and test_data/")
	f.StringVar(&args.checkpointDir, "checkpoint-dir", "../model_data", "Directory for per-model, per-category checkpoints")
	f.StringVar(&args.resultsDir, "results-dir", "../grid_search_results_repro", "Directory for the results spreadsheets")
	f.StringSliceVar(&args.models, "models", modelsToSweep, "Model keys to sweep")
	f.StringSliceVar(&args.categories, "categories", categoriesToSweep, "Data categories to sweep")
	return cmd
}

func newDriver(loader *models.Loader, model, category, trainPrefix, testPrefix string, store sweep.CheckpointStore, resultsDir string) *sweep.Driver {
	return &sweep.Driver{
		Grid:  sweep.DefaultGrid(),
		Store: store,
		Run: func(ctx context.Context, cfg utils.Config) (report.ResultRow, error) {
			res, err := train.Run(ctx, cfg, loader)
			if err != nil {
				return report.ResultRow{}, err
			}
			utils.PrintTimingStats(&res.Stats, res.Steps)
			return res.Row, nil
		},
		Base:        baseConfig(model, category),
		TrainPrefix: trainPrefix,
		TestPrefix:  testPrefix,
		ResultsPath: sweep.ResultsPath(resultsDir, category, model),
	}
}

func analysisPath(resultsDir string) string {
	return filepath.Join(resultsDir, "analysis.csv")
}

// finishSweep prints the best configuration and logs it to the analysis
// file. A sweep that ran nothing was logged when it finished.
func finishSweep(resultsDir, model, category string, rows []report.ResultRow, ran int) error {
	best, ok := report.Best(rows)
	if !ok {
		log.Warn("no results", "model", model, "category", category)
		return nil
	}
	title := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("%s %s/%s (%d experiments)\n", title("Best configuration"), model, category, len(rows))
	fmt.Printf("  seed=%d batch_size=%d learning_rate=%g\n", best.Seed, best.BatchSize, best.LearningRate)
	fmt.Printf("  val  F1 %s  acc %.4f  ce %.4f\n", green(fmt.Sprintf("%.4f", best.Val.F1)), best.Val.Accuracy, best.Val.CrossEntropy)
	fmt.Printf("  test F1 %s  acc %.4f  ce %.4f\n", green(fmt.Sprintf("%.4f", best.Test.F1)), best.Test.Accuracy, best.Test.CrossEntropy)
	if ran == 0 {
		log.Info("sweep already complete, analysis log unchanged", "model", model, "category", category)
		return nil
	}
	return report.AppendAnalysis(analysisPath(resultsDir), report.Analysis{
		Model:       model,
		Category:    category,
		Experiments: len(rows),
		Best:        best,
		End:         time.Now(),
	})
}
