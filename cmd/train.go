package cmd

import (
	"fmt"

	"hawkdove/train"
	"hawkdove/utils"

	"github.com/spf13/cobra"
)

type trainArgs struct {
	model        string
	category     string
	seed         int64
	batchSize    int
	learningRate float64
	trainPath    string
	testPath     string
}

// NewTrainCommand returns the command that runs a single experiment.
func NewTrainCommand() *cobra.Command {
	var args trainArgs
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Fine-tune one model on one train/test pair",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := baseConfig(args.model, args.category)
			cfg.Seed = args.seed
			cfg.BatchSize = args.batchSize
			cfg.LearningRate = args.learningRate
			cfg.TrainPath = args.trainPath
			cfg.TestPath = args.testPath

			fmt.Printf("\nConfiguration:\n")
			fmt.Printf("  Model:         %s\n", cfg.ModelName)
			fmt.Printf("  Seed:          %d\n", cfg.Seed)
			fmt.Printf("  Batch Size:    %d\n", cfg.BatchSize)
			fmt.Printf("  Learning Rate: %g\n", cfg.LearningRate)
			fmt.Printf("  Train:         %s\n", cfg.TrainPath)
			fmt.Printf("  Test:          %s\n", cfg.TestPath)
			fmt.Println()

			res, err := train.Run(cmd.Context(), cfg, newLoader())
			if err != nil {
				return fmt.Errorf("failed to train model: %w", err)
			}
			fmt.Printf("Epochs: %d\n", len(res.Epochs))
			fmt.Printf("Val   CE: %.6f  Accuracy: %.4f  F1: %.4f\n", res.Row.Val.CrossEntropy, res.Row.Val.Accuracy, res.Row.Val.F1)
			fmt.Printf("Test  CE: %.6f  Accuracy: %.4f  F1: %.4f\n", res.Row.Test.CrossEntropy, res.Row.Test.Accuracy, res.Row.Test.F1)
			if res.SavePath != "" {
				fmt.Printf("Saved to %s\n", res.SavePath)
			}
			utils.PrintTimingStats(&res.Stats, res.Steps)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&args.model, "model", "m", "roberta", "Model key")
	f.StringVarP(&args.category, "category", "c", "lab-manual-split-combine", "Data category, used in the save path")
	f.Int64VarP(&args.seed, "seed", "s", 5768, "Experiment seed")
	f.IntVarP(&args.batchSize, "batch-size", "b", 4, "Batch size")
	f.Float64VarP(&args.learningRate, "learning-rate", "r", 1e-6, "Learning rate")
	f.StringVar(&args.trainPath, "train", "", "Training spreadsheet")
	f.StringVar(&args.testPath, "test", "", "Test spreadsheet")
	_ = cmd.MarkFlagRequired("train")
	_ = cmd.MarkFlagRequired("test")
	return cmd
}
