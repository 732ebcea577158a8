package main

import (
	"github.com/spf13/cobra"
)

var (
	windowsConfidence float64
	windowsMinSamples int
)

var windowsCmd = &cobra.Command{
	Use:   "windows",
	Short: "Show ranked posting windows",
	Long:  "Ranks the learned hour-by-day posting windows by average reward. Falls back to the default schedule when no window has enough statistical support.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		threshold := windowsConfidence
		if !cmd.Flags().Changed("confidence") {
			threshold = cfg.Timing.ConfidenceThreshold
		}

		windows, err := env.Timing.RankWindows(ctx, threshold, windowsMinSamples)
		if err != nil {
			return err
		}
		return printOut(windows)
	},
}

func init() {
	windowsCmd.Flags().Float64Var(&windowsConfidence, "confidence", 0.3, "minimum Wilson lower bound")
	windowsCmd.Flags().IntVar(&windowsMinSamples, "min-samples", 0, "minimum trials per window (default from config)")
	rootCmd.AddCommand(windowsCmd)
}
