package main

import (
	"github.com/spf13/cobra"
)

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Show the latest published recommendations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		recs, err := env.Store.LatestRecommendations(ctx)
		if err != nil {
			return err
		}
		return printOut(recs)
	},
}

func init() {
	rootCmd.AddCommand(recommendCmd)
}
