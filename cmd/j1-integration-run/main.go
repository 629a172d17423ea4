// Command j1-integration-run is a minimal demonstration binary: it wires a
// hardcoded two-step integration through the scheduler and prints a
// colorized run summary. No flag/CLI parsing — that stays an external
// collaborator per spec.md's Non-goals.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/gookit/color"

	"github.com/j1-labs/j1-integration-runtime/internal/execconfig"
	"github.com/j1-labs/j1-integration-runtime/internal/graphobject"
	"github.com/j1-labs/j1-integration-runtime/internal/persistence"
	"github.com/j1-labs/j1-integration-runtime/internal/runlog"
	"github.com/j1-labs/j1-integration-runtime/internal/scheduler"
	"github.com/j1-labs/j1-integration-runtime/internal/uploader"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	if err := run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	events := runlog.NewEventBus()
	logger := runlog.New(slog.Default(), events)

	accountsStep := &graphobject.Step{
		ID:   "fetch-accounts",
		Name: "Fetch accounts",
		Entities: []graphobject.EntityTypeDeclaration{
			{Type: "demo_account", Class: []string{"Account"}},
		},
		ExecutionHandler: func(ctx context.Context, stepCtx *graphobject.StepContext) error {
			_, err := stepCtx.JobState.AddEntity(ctx, graphobject.Entity{
				"_key":   "demo-account-1",
				"_type":  "demo_account",
				"_class": []string{"Account"},
				"name":   "Demo Account",
			})
			return err
		},
	}

	usersStep := &graphobject.Step{
		ID:        "fetch-users",
		Name:      "Fetch users",
		DependsOn: []string{"fetch-accounts"},
		Entities: []graphobject.EntityTypeDeclaration{
			{Type: "demo_user", Class: []string{"User"}},
		},
		Relationships: []graphobject.RelationshipTypeDeclaration{
			{Type: "demo_account_has_user", Class: []string{"HAS"}},
		},
		ExecutionHandler: func(ctx context.Context, stepCtx *graphobject.StepContext) error {
			userKey := "demo-user-" + uuid.NewString()
			if _, err := stepCtx.JobState.AddEntity(ctx, graphobject.Entity{
				"_key":   userKey,
				"_type":  "demo_user",
				"_class": []string{"User"},
				"name":   "Demo User",
			}); err != nil {
				return err
			}
			_, err := stepCtx.JobState.AddRelationship(ctx, graphobject.Relationship{
				"_key":            "demo-account-1|HAS|" + userKey,
				"_type":           "demo_account_has_user",
				"_class":          []string{"HAS"},
				"_fromEntityKey":  "demo-account-1",
				"_toEntityKey":    userKey,
			})
			return err
		},
	}

	workDir, err := os.Getwd()
	if err != nil {
		return err
	}
	root := persistence.DefaultRoot

	var overrides map[string]execconfig.StepExecutionOverride
	s := scheduler.New(scheduler.InvocationConfig{
		Root:             root,
		IntegrationSteps: []*graphobject.Step{accountsStep, usersStep},
		Logger:           logger,
		LoadExecutionConfig: func(ctx context.Context) (any, error) {
			loaded, err := execconfig.Load(workDir)
			if err == nil {
				overrides = loaded
			}
			return loaded, err
		},
	})

	result, err := s.Run(ctx)
	if err != nil {
		return err
	}

	printSummary(result)

	if baseURL := os.Getenv("J1_SYNC_API_URL"); baseURL != "" {
		if err := runUpload(ctx, root, baseURL, overrides, logger, events); err != nil {
			return fmt.Errorf("synchronization upload: %w", err)
		}
	}

	return nil
}

// runUpload wires a real Uploader from environment configuration and drives
// it to completion against the staging root the scheduler just populated.
// It is only invoked when J1_SYNC_API_URL is set — this demo binary has no
// synchronization backend by default (spec.md's Non-goals keep CLI/.env
// parsing out of scope, so this reads the env directly rather than adding a
// flag parser).
func runUpload(ctx context.Context, root, baseURL string, overrides map[string]execconfig.StepExecutionOverride, logger *runlog.Logger, events *runlog.EventBus) error {
	u, err := uploader.NewFromConfig(ctx, uploader.Config{
		Root:         root,
		BaseURL:      baseURL,
		EventSinkURL: os.Getenv("J1_EVENT_SINK_URL"),
		Logger:       logger,
		Events:       events,
		Overrides:    overrides,
	})
	if err != nil {
		return err
	}

	jobID, err := u.Run(ctx, uploader.Source{Source: "api"})
	if err != nil {
		return err
	}
	color.New(color.FgCyan).Printf("Synchronization job %s finalized\n", jobID)
	return nil
}

func printSummary(result *scheduler.RunResult) {
	color.New(color.FgCyan, color.OpBold).Println("Integration run summary")
	for _, r := range result.StepResults {
		statusColor := color.FgGreen
		switch r.Status {
		case graphobject.StatusFailure:
			statusColor = color.FgRed
		case graphobject.StatusPartialSuccessDueToDependencyFailure:
			statusColor = color.FgYellow
		case graphobject.StatusDisabled, graphobject.StatusCancelled:
			statusColor = color.FgGray
		}
		color.New(statusColor).Printf("  %-20s %-40s %s\n", r.ID, r.Name, r.Status)
	}
	if len(result.PartialDatasets.Types) > 0 {
		color.New(color.FgYellow).Printf("Partial datasets: %v\n", result.PartialDatasets.Types)
	}
}
