package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var learnEvery time.Duration

var learnCmd = &cobra.Command{
	Use:   "learn",
	Short: "Apply pending attributions and republish recommendations",
	Long:  "Runs one learning cycle and exits. With --every it keeps cycling on that interval until interrupted; each record is applied at most once, so overlapping or repeated runs are safe.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("learn"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if learnEvery > 0 {
			err := env.Learner.Run(ctx, learnEvery)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		summary, err := env.Learner.RunOnce(ctx)
		if err != nil {
			return err
		}
		return printOut(summary)
	},
}

func init() {
	learnCmd.Flags().DurationVar(&learnEvery, "every", 0, "keep running on this interval (e.g. 1h); omit for a single cycle")
	rootCmd.AddCommand(learnCmd)
}
