package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var budgetCmd = &cobra.Command{
	Use:   "budget",
	Short: "Show budget utilization and per-tier ROI",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		utilization, err := env.Budget.Utilization(ctx)
		if err != nil {
			zap.L().Warn("budget utilization unavailable", zap.Error(err))
		}
		roi, err := env.Budget.TierROI(ctx, budgetTaskType)
		if err != nil {
			return err
		}

		return printOut(map[string]any{
			"monthly_budget": cfg.Budget.MonthlyBudget,
			"ceiling":        cfg.Budget.Ceiling,
			"utilization":    utilization,
			"tiers":          roi,
		})
	},
}

var (
	budgetTaskType   string
	chooseOperation  string
	chooseArtifactID string
	chooseRecord     bool
)

var chooseCmd = &cobra.Command{
	Use:   "choose",
	Short: "Pick a model tier by ROI under the spend ceiling",
	Long:  "Selects the best-ROI tier whose marginal cost keeps utilization under the ceiling. With --record the call is written to the budget ledger for later ROI resolution.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		utilization, err := env.Budget.Utilization(ctx)
		if err != nil {
			zap.L().Warn("budget utilization unavailable, selecting blind", zap.Error(err))
			utilization = 0
		}

		selection := env.Budget.ChooseModel(ctx, budgetTaskType, utilization)
		if chooseRecord {
			txn, err := env.Budget.RecordTransaction(ctx, chooseOperation, budgetTaskType, selection, chooseArtifactID)
			if err != nil {
				return err
			}
			return printOut(map[string]any{"selection": selection, "transaction": txn})
		}
		return printOut(selection)
	},
}

func init() {
	budgetCmd.PersistentFlags().StringVar(&budgetTaskType, "task", "", "task type filter (e.g. tweet)")

	chooseCmd.Flags().StringVar(&chooseOperation, "operation", "generate", "operation type for the ledger entry")
	chooseCmd.Flags().StringVar(&chooseArtifactID, "artifact", "", "artifact id to attribute the spend to")
	chooseCmd.Flags().BoolVar(&chooseRecord, "record", false, "append the call to the budget ledger")

	budgetCmd.AddCommand(chooseCmd)
	rootCmd.AddCommand(budgetCmd)
}
