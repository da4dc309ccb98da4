package cmd

import (
	"fmt"
	"time"

	"hawkdove/models"
	"hawkdove/report"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// NewPredictCommand returns the command that classifies sentences with a
// saved experiment directory.
func NewPredictCommand() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "predict [sentence...]",
		Short: "Classify sentences with a fine-tuned model",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := models.LoadPredictor(dir)
			if err != nil {
				return err
			}
			start := time.Now()
			for _, sentence := range args {
				pred, err := p.Classify(sentence)
				if err != nil {
					return err
				}
				showPrediction(sentence, pred)
			}
			fmt.Printf("Inference time: %.4fs\n", time.Since(start).Seconds())
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "model-dir", "d", "", "Saved experiment directory")
	_ = cmd.MarkFlagRequired("model-dir")
	return cmd
}

var labelColors = [models.NumLabels]color.Attribute{color.FgBlue, color.FgRed, color.FgYellow}

func showPrediction(sentence string, pred models.Prediction) {
	fmt.Printf("\n%s\n", sentence)
	for i, idx := range pred.Ranked() {
		name := models.LabelNames[idx]
		fmt.Printf("  %d. %s: %.4f\n", i+1, color.New(labelColors[idx]).Sprint(name), pred.Probs[idx])
	}
}

// NewBestCommand returns the command that reports the best model for a data
// category from the analysis log written by the sweeps.
func NewBestCommand() *cobra.Command {
	var resultsDir string
	cmd := &cobra.Command{
		Use:   "best [category...]",
		Short: "Show the best swept model per data category",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := analysisPath(resultsDir)
			for _, category := range args {
				a, err := report.BestFor(path, category)
				if err != nil {
					return err
				}
				fmt.Printf("%s: %s seed=%d batch_size=%d learning_rate=%g val_f1=%.4f test_f1=%.4f (%s)\n",
					color.New(color.Bold).Sprint(category), a.Model, a.Best.Seed, a.Best.BatchSize, a.Best.LearningRate,
					a.Best.Val.F1, a.Best.Test.F1, a.End.Format(time.RFC3339))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&resultsDir, "results-dir", "../grid_search_results_repro", "Directory holding analysis.csv")
	return cmd
}
