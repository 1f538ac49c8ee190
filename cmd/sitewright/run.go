package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sitewright/sitewright/internal/config"
	"github.com/sitewright/sitewright/internal/coordinator"
	"github.com/sitewright/sitewright/internal/embedding"
	"github.com/sitewright/sitewright/internal/lifecycle"
	"github.com/sitewright/sitewright/internal/llm"
	"github.com/sitewright/sitewright/internal/logging"
	"github.com/sitewright/sitewright/internal/memory"
	"github.com/sitewright/sitewright/internal/review"
	"github.com/sitewright/sitewright/internal/specialist"
	"github.com/sitewright/sitewright/pkg/models"
)

var (
	runDryRun  bool
	runProject string
	runSelect  []string
)

var runCmd = &cobra.Command{
	Use:   "run \"instruction\" [files...]",
	Short: "Run an editing task against the given files",
	Long: `Run routes the instruction to specialists over the named files and
prints the reviewed changes. Changes are written back to disk unless
--dry-run is set.

Examples:
  sitewright run "darken the navbar" css/main.css templates/nav.hbs
  sitewright run --dry-run "add alt text to all images" index.html
  sitewright run --select index.html=<change-id> "restyle the hero" ...`,
	Args: cobra.MinimumNArgs(2),
	RunE: runTask,
}

func init() {
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Print changes without writing files")
	runCmd.Flags().StringVar(&runProject, "project", "", "Project ID for outcome memory (defaults to the working directory name)")
	runCmd.Flags().StringArrayVar(&runSelect, "select", nil, "Resolve a conflict explicitly as file=change-id (repeatable)")
}

func runTask(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	instruction := args[0]
	task, err := loadTask(instruction, args[1:])
	if err != nil {
		return err
	}

	client, err := newClient(cfg)
	if err != nil {
		return err
	}

	projectID := runProject
	if projectID == "" {
		projectID = cfg.Coordinator.ProjectID
	}
	if projectID == "" {
		projectID = defaultProjectID()
	}

	coord, backfill, cleanup, err := buildCoordinator(ctx, cfg, client, projectID)
	if err != nil {
		return err
	}
	defer cleanup()

	selections, err := parseSelections(runSelect)
	if err != nil {
		return err
	}

	result, err := coord.Run(ctx, task, selections)
	if err == coordinator.ErrCancelled {
		color.Yellow("cancelled; no changes were applied or recorded")
		return nil
	}
	if err != nil {
		return err
	}

	printResult(result)

	if !runDryRun && len(result.Changes) > 0 {
		if err := applyChanges(task, result.Changes); err != nil {
			return err
		}
		color.Green("applied %d change(s)", len(result.Changes))
	}

	if backfill != nil {
		stop()
		backfill.Wait()
	}

	input, output := client.Tracker().Total()
	fmt.Printf("tokens: %d in / %d out across %d call(s)\n", input, output, client.Tracker().Calls())
	return nil
}

func newClient(cfg *config.Config) (*llm.Client, error) {
	apiKey, err := config.APIKey(cfg)
	if err != nil && !cfg.Anthropic.UseBedrock {
		return nil, err
	}
	return llm.NewClient(llm.ClientConfig{
		Model:         anthropic.Model(cfg.Anthropic.Model),
		APIKey:        apiKey,
		UseAWSBedrock: cfg.Anthropic.UseBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
		MaxTokens:     cfg.Anthropic.MaxTokens,
	})
}

func buildCoordinator(ctx context.Context, cfg *config.Config, client *llm.Client, projectID string) (*coordinator.Coordinator, *memory.Backfiller, func(), error) {
	opts := []coordinator.Option{
		coordinator.WithTokenCeiling(cfg.Budget.TokenCeiling),
		coordinator.WithPriorityFiles(cfg.Budget.PriorityFiles),
		coordinator.WithMaxRounds(cfg.Coordinator.MaxRounds),
		coordinator.WithProjectID(projectID),
		coordinator.WithRetrieveOptions(cfg.Memory.RetrieveOptions()),
		coordinator.WithReviewGate(review.NewGate(client)),
	}

	rules := cfg.Reactions.Rules
	if len(rules) == 0 {
		rules = lifecycle.DefaultRules()
	}
	opts = append(opts, coordinator.WithReactionEngine(
		lifecycle.NewEngine(rules, lifecycle.PrecedencePolicy(cfg.Reactions.Precedence))))

	if wd, err := os.Getwd(); err == nil {
		opts = append(opts, coordinator.WithLogger(logging.NewSessionLoggerForProject(wd)))
	}

	cleanup := func() {}
	var backfill *memory.Backfiller

	dbPath := cfg.Memory.DBPath
	if dbPath == "" {
		dbPath = memory.DefaultDBPath()
	}
	store, err := memory.NewStore(dbPath)
	if err != nil {
		color.Yellow("outcome memory unavailable: %v", err)
	} else {
		engine, engErr := embedding.NewEngine(cfg.Embedding)
		if engErr != nil {
			color.Yellow("embedding disabled: %v", engErr)
			engine = nil
		}
		backfill = memory.NewBackfiller(store, engine)
		backfill.Start(ctx)
		opts = append(opts, coordinator.WithMemory(store, memory.NewRetriever(store, engine), backfill))
		cleanup = func() { store.Close() }
	}

	return coordinator.New(client, specialist.NewRegistry(), opts...), backfill, cleanup, nil
}

// loadTask reads the named files into a task context. File type is the
// lowercased extension; the path doubles as the file ID.
func loadTask(instruction string, paths []string) (models.Task, error) {
	task := models.Task{Instruction: instruction}
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return task, fmt.Errorf("read %s: %w", path, err)
		}
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
		if ext == "yml" {
			ext = "yaml"
		}
		task.Files = append(task.Files, models.FileContext{
			FileID:   path,
			FileName: filepath.Base(path),
			FileType: ext,
			Path:     path,
			Content:  string(content),
		})
	}
	return task, nil
}

func parseSelections(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	selections := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		file, id, ok := strings.Cut(pair, "=")
		if !ok || file == "" || id == "" {
			return nil, fmt.Errorf("invalid --select %q, want file=change-id", pair)
		}
		selections[file] = id
	}
	return selections, nil
}

// applyChanges writes accepted changes back to their source paths.
func applyChanges(task models.Task, changes []models.CodeChange) error {
	pathByName := make(map[string]string, len(task.Files))
	for _, f := range task.Files {
		pathByName[f.FileName] = f.Path
	}
	for _, change := range changes {
		path, ok := pathByName[change.FileName]
		if !ok || path == "" {
			return fmt.Errorf("no source path for %s", change.FileName)
		}
		if err := os.WriteFile(path, []byte(change.ProposedContent), 0644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	return nil
}

func printResult(result *coordinator.Result) {
	bold := color.New(color.Bold)

	bold.Printf("strategy: %s", result.Strategy)
	if result.Reasoning != "" {
		fmt.Printf("  (%s)", result.Reasoning)
	}
	fmt.Println()

	if result.Strategy == coordinator.StrategyClarify {
		color.Yellow("\nThe request is ambiguous. Which did you mean?")
		for i, opt := range result.ClarificationOptions {
			marker := " "
			if opt.Recommended {
				marker = color.GreenString("*")
			}
			fmt.Printf(" %s %d. %s\n", marker, i+1, opt.Label)
			if opt.Detail != "" {
				fmt.Printf("      %s\n", opt.Detail)
			}
		}
		return
	}

	for _, esc := range result.Escalations {
		color.Red("\n%s needs help: %s", esc.Agent, esc.Message)
		if esc.LastError != "" {
			fmt.Printf("  last error: %s\n", esc.LastError)
		}
		fmt.Printf("  suggestion: %s\n", esc.SuggestedAction)
	}

	for _, issue := range result.Review.Issues {
		switch issue.Severity {
		case review.SeverityError:
			color.Red("review error [%s]: %s", issue.FileName, issue.Message)
		case review.SeverityWarning:
			color.Yellow("review warning [%s]: %s", issue.FileName, issue.Message)
		default:
			fmt.Printf("review note [%s]: %s\n", issue.FileName, issue.Message)
		}
	}
	if result.Review.Summary != "" {
		fmt.Printf("review: %s\n", result.Review.Summary)
	}

	for _, change := range result.Changes {
		color.Green("\n%s (%s, confidence %.2f)", change.FileName, change.Agent, change.ScoredConfidence())
		if change.Reasoning != "" {
			fmt.Printf("  %s\n", change.Reasoning)
		}
	}
	for _, change := range result.Rejected {
		color.Yellow("rejected: %s from %s (conflict)", change.FileName, change.Agent)
	}

	if len(result.Changes) == 0 && len(result.Escalations) == 0 {
		fmt.Println("no changes proposed")
	}
}
