package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sitewright/sitewright/internal/config"
	"github.com/sitewright/sitewright/internal/embedding"
	"github.com/sitewright/sitewright/internal/memory"
	"github.com/sitewright/sitewright/pkg/models"
)

var (
	memoryProject string
	memoryLimit   int
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect and maintain outcome memory",
}

var memoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent task outcomes",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, projectID, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		outcomes, err := store.ListOutcomes(projectID, memoryLimit)
		if err != nil {
			return err
		}
		if len(outcomes) == 0 {
			fmt.Println("no outcomes recorded for", projectID)
			return nil
		}
		for _, o := range outcomes {
			switch o.Outcome {
			case models.OutcomeSuccess:
				color.Green("[%s]", o.Outcome)
			case models.OutcomePartial:
				color.Yellow("[%s]", o.Outcome)
			default:
				color.Red("[%s]", o.Outcome)
			}
			fmt.Printf("  %s  (%s, %s)\n", o.TaskSummary, o.Strategy,
				o.CreatedAt.Format("2006-01-02"))
		}
		return nil
	},
}

var memoryPrefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "List learned user preferences",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, projectID, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		prefs, err := store.ListPreferences(projectID)
		if err != nil {
			return err
		}
		if len(prefs) == 0 {
			fmt.Println("no preferences recorded for", projectID)
			return nil
		}
		for _, p := range prefs {
			fmt.Printf("%.2f  %-12s %s (seen %dx)\n",
				p.Confidence, p.Category, p.Preference, p.ObservedCount)
		}
		return nil
	},
}

var memoryRequeueCmd = &cobra.Command{
	Use:   "requeue",
	Short: "Retry embedding generation for dead-lettered outcomes",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		store, _, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		engine, err := embedding.NewEngine(cfg.Embedding)
		if err != nil {
			return err
		}
		if engine == nil {
			return fmt.Errorf("embedding provider is disabled; nothing to requeue into")
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		backfill := memory.NewBackfiller(store, engine)
		backfill.Start(ctx)

		n, err := backfill.RequeueDeadLetters()
		if err != nil {
			cancel()
			return err
		}
		fmt.Printf("requeued %d outcome(s)\n", n)

		deadline := time.After(2 * time.Minute)
		for {
			processed, failed := backfill.Stats()
			if processed+failed >= n {
				break
			}
			select {
			case <-deadline:
				color.Yellow("timed out waiting for the backfill queue to drain")
			case <-time.After(100 * time.Millisecond):
				continue
			}
			break
		}

		cancel()
		backfill.Wait()
		processed, failed := backfill.Stats()
		fmt.Printf("processed %d, failed %d\n", processed, failed)
		return nil
	},
}

func defaultProjectID() string {
	wd, err := os.Getwd()
	if err != nil {
		return "default"
	}
	return filepath.Base(wd)
}

func openStore() (*memory.Store, string, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, "", err
	}
	dbPath := cfg.Memory.DBPath
	if dbPath == "" {
		dbPath = memory.DefaultDBPath()
	}
	store, err := memory.NewStore(dbPath)
	if err != nil {
		return nil, "", err
	}

	projectID := memoryProject
	if projectID == "" {
		projectID = cfg.Coordinator.ProjectID
	}
	if projectID == "" {
		projectID = defaultProjectID()
	}
	return store, projectID, nil
}

func init() {
	memoryCmd.PersistentFlags().StringVar(&memoryProject, "project", "", "Project ID (defaults to the working directory name)")
	memoryListCmd.Flags().IntVar(&memoryLimit, "limit", 20, "Maximum outcomes to list")
	memoryCmd.AddCommand(memoryListCmd)
	memoryCmd.AddCommand(memoryPrefsCmd)
	memoryCmd.AddCommand(memoryRequeueCmd)
}
