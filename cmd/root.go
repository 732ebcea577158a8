package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/growthloop/decider/internal/config"
)

var (
	cfg       *config.Config
	outFormat string
)

var rootCmd = &cobra.Command{
	Use:   "decider",
	Short: "Adaptive decision engine for social posting",
	Long:  "Multi-armed bandit over content formats, posting windows, and model tiers; learns from delayed engagement outcomes and publishes recommendations.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// printOut writes v to stdout in the selected output format.
func printOut(v any) error {
	switch outFormat {
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	default:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
}

func main() {
	rootCmd.PersistentFlags().StringVar(&outFormat, "format", "json", "output format (json or yaml)")
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
