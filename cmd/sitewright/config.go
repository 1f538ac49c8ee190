package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sitewright/sitewright/internal/config"
	"github.com/sitewright/sitewright/internal/memory"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		bold := color.New(color.Bold)

		bold.Println("anthropic")
		model := cfg.Anthropic.Model
		if model == "" {
			model = "(sdk default)"
		}
		fmt.Printf("  model: %s\n", model)
		fmt.Printf("  bedrock: %v\n", cfg.Anthropic.UseBedrock)
		if _, err := config.APIKey(cfg); err == nil {
			fmt.Println("  api key: configured")
		} else {
			color.Yellow("  api key: missing")
		}

		bold.Println("budget")
		fmt.Printf("  token ceiling: %d\n", cfg.Budget.TokenCeiling)

		bold.Println("embedding")
		fmt.Printf("  provider: %s (%s)\n", cfg.Embedding.Provider, cfg.Embedding.Model)

		bold.Println("memory")
		dbPath := cfg.Memory.DBPath
		if dbPath == "" {
			dbPath = memory.DefaultDBPath()
		}
		fmt.Printf("  database: %s\n", dbPath)
		fmt.Printf("  retrieval: top %d above %.2f, decay %.2f/week, max age %dd\n",
			cfg.Memory.MaxResults, cfg.Memory.SimilarityThreshold,
			cfg.Memory.DecayRate, cfg.Memory.MaxAgeDays)

		bold.Println("coordinator")
		fmt.Printf("  max rounds: %d\n", cfg.Coordinator.MaxRounds)
		return nil
	},
}
