package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sitewright/sitewright/internal/config"
	"github.com/sitewright/sitewright/internal/lifecycle"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Show the effective reaction rules",
	Long: `Rules prints the reaction rule set the coordinator will use:
custom rules from configuration when present, the built-in defaults
otherwise. Each rule maps a specialist terminal condition to a
corrective action.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		rules := cfg.Reactions.Rules
		source := "config"
		if len(rules) == 0 {
			rules = lifecycle.DefaultRules()
			source = "defaults"
		}

		fmt.Printf("precedence: %s  (source: %s)\n\n", cfg.Reactions.Precedence, source)
		for _, rule := range rules {
			status := color.GreenString("enabled")
			if !rule.Enabled {
				status = color.RedString("disabled")
			}
			fmt.Printf("%-22s %s\n", rule.ID, status)
			fmt.Printf("  on %s -> %s (max retries %d)\n", rule.Trigger, rule.Action, rule.MaxRetries)
			if rule.Instruction != "" {
				fmt.Printf("  %q\n", rule.Instruction)
			}
			fmt.Println()
		}
		return nil
	},
}
