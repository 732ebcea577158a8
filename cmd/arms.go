package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/growthloop/decider/internal/model"
)

var (
	armsType       string
	armsActiveOnly bool
)

var armsCmd = &cobra.Command{
	Use:   "arms",
	Short: "List arms and their statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		arms, err := env.Store.ListArms(ctx, model.ArmType(armsType), armsActiveOnly)
		if err != nil {
			return err
		}
		return printOut(arms)
	},
}

var armsDeactivateCmd = &cobra.Command{
	Use:   "deactivate <arm-id>",
	Short: "Remove an arm from selection, keeping its history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Registry.Deactivate(ctx, args[0]); err != nil {
			return err
		}
		zap.L().Info("arm deactivated", zap.String("arm_id", args[0]))
		return nil
	},
}

var armsReactivateCmd = &cobra.Command{
	Use:   "reactivate <arm-id>",
	Short: "Put a deactivated arm back into selection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Registry.Reactivate(ctx, args[0]); err != nil {
			return err
		}
		zap.L().Info("arm reactivated", zap.String("arm_id", args[0]))
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Register the configured seed arms",
	Long:  "Registers every arm in the seeds section of config.yaml. Existing arms keep their statistics.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// initEngine seeds as a side effect; this command exists so
		// operators can do it explicitly and see the result.
		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		zap.L().Info("seed arms ensured", zap.Int("count", len(cfg.Seeds)))
		return nil
	},
}

func init() {
	armsCmd.Flags().StringVar(&armsType, "type", string(model.ArmTypeContentFormat), "arm type")
	armsCmd.Flags().BoolVar(&armsActiveOnly, "active", false, "only active arms")
	armsCmd.AddCommand(armsDeactivateCmd)
	armsCmd.AddCommand(armsReactivateCmd)

	rootCmd.AddCommand(armsCmd)
	rootCmd.AddCommand(seedCmd)
}
