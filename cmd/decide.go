package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/growthloop/decider/internal/bandit"
	"github.com/growthloop/decider/internal/model"
)

var decideArmType string

var decideCmd = &cobra.Command{
	Use:   "decide",
	Short: "Select an arm for the current context and record the decision",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		// Budget pressure feeds the context; an unreadable budget reads
		// as zero pressure rather than blocking the decision.
		utilization, err := env.Budget.Utilization(ctx)
		if err != nil {
			zap.L().Warn("budget utilization unavailable", zap.Error(err))
			utilization = 0
		}

		snap := bandit.BuildContext(time.Now().UTC(), nil, utilization)
		decision, err := env.Selector.Select(ctx, model.ArmType(decideArmType), snap)
		if err != nil {
			return err
		}
		return printOut(decision)
	},
}

var (
	linkDecisionID string
	linkArtifactID string
	linkPublished  string
)

var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Link a published artifact to its decision",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		publishedAt := time.Now().UTC()
		if linkPublished != "" {
			t, err := time.Parse(time.RFC3339, linkPublished)
			if err != nil {
				return eris.Wrap(err, "parse --published-at")
			}
			publishedAt = t
		}

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Store.LinkArtifact(ctx, linkDecisionID, linkArtifactID, publishedAt); err != nil {
			return err
		}
		zap.L().Info("artifact linked",
			zap.String("decision_id", linkDecisionID),
			zap.String("artifact_id", linkArtifactID),
		)
		return nil
	},
}

func init() {
	decideCmd.Flags().StringVar(&decideArmType, "type", string(model.ArmTypeContentFormat), "arm type (content_format, timing_window, model_tier)")

	linkCmd.Flags().StringVar(&linkDecisionID, "decision", "", "decision id (required)")
	linkCmd.Flags().StringVar(&linkArtifactID, "artifact", "", "published artifact id (required)")
	linkCmd.Flags().StringVar(&linkPublished, "published-at", "", "publish time, RFC3339 (default now)")
	linkCmd.MarkFlagRequired("decision")
	linkCmd.MarkFlagRequired("artifact")

	rootCmd.AddCommand(decideCmd)
	rootCmd.AddCommand(linkCmd)
}
