// Package cmd contains the hawkdove command line.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hawkdove/models"
	"hawkdove/utils"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

type rootArgs struct {
	verbose    bool
	modelRoot  string
	gpu        string
	retryDelay time.Duration
	cacheBytes int
	maxEpochs  int
	patience   int
	minDelta   float64
	saveRoot   string
}

// RootArgs holds the flags shared by every subcommand.
var RootArgs rootArgs

var rootCmd = &cobra.Command{
	Use:   "hawkdove",
	Short: "Fine-tune hawkish/dovish stance classifiers",
	Long: `
Fine-tunes 3-way (dovish, hawkish, neutral) sentence classifiers on
monetary-policy text and runs resumable hyperparameter grid searches.
	`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if RootArgs.verbose {
			log.SetLevel(log.DebugLevel)
		}
		utils.Verbose = RootArgs.verbose
		return nil
	},
}

// Execute runs the root command with a context cancelled on SIGINT/SIGTERM.
// This is called by main.main().
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error("command failed", "err", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&RootArgs.verbose, "verbose", "v", false, "Verbose output")
	flags.StringVar(&RootArgs.modelRoot, "model-root", "pretrained", "Directory holding pretrained vocabularies and encoder weights")
	flags.StringVar(&RootArgs.gpu, "gpu", "0", "GPU id to record for the run (training uses the CPU)")
	flags.DurationVar(&RootArgs.retryDelay, "retry-delay", models.DefaultRetryDelay, "Wait before retrying a failed pretrained load")
	flags.IntVar(&RootArgs.cacheBytes, "tokenizer-cache", 32<<20, "Tokenizer cache size in bytes")
	flags.IntVar(&RootArgs.maxEpochs, "max-epochs", utils.DefaultMaxEpochs, "Maximum epochs per experiment")
	flags.IntVar(&RootArgs.patience, "patience", utils.DefaultPatience, "Epochs without validation improvement before stopping")
	flags.Float64Var(&RootArgs.minDelta, "min-delta", utils.DefaultMinDelta, "Minimum validation change that counts as improvement")
	flags.StringVar(&RootArgs.saveRoot, "save-root", "../model_data/final_model", "Prefix for experiment output directories; empty disables saving")

	rootCmd.AddCommand(NewTrainCommand())
	rootCmd.AddCommand(NewSweepCommand())
	rootCmd.AddCommand(NewSweepAllCommand())
	rootCmd.AddCommand(NewPredictCommand())
	rootCmd.AddCommand(NewBestCommand())
}

func newLoader() *models.Loader {
	l := models.NewLoader(RootArgs.modelRoot)
	l.Retry.Delay = RootArgs.retryDelay
	l.CacheBytes = RootArgs.cacheBytes
	return l
}

// baseConfig fills the loop settings shared by every experiment.
func baseConfig(model, category string) utils.Config {
	cfg := utils.DefaultConfig()
	cfg.ModelName = model
	cfg.DataCategory = category
	cfg.GPU = RootArgs.gpu
	cfg.SaveRoot = RootArgs.saveRoot
	cfg.MaxEpochs = RootArgs.maxEpochs
	cfg.Patience = RootArgs.patience
	cfg.MinDelta = RootArgs.minDelta
	return cfg
}
