package cmd

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/tasks/internal/models"
	"github.com/joescharf/tasks/internal/store"
)

const defaultSeedCount = 100

var seedCmd = &cobra.Command{
	Use:   "seed [count]",
	Short: "Insert random demo tasks",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n := defaultSeedCount
		if len(args) == 1 {
			v, err := strconv.Atoi(args[0])
			if err != nil || v < 1 {
				return fmt.Errorf("count must be a positive integer: %q", args[0])
			}
			n = v
		}
		return seedRun(cmd.Context(), n)
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

var (
	seedVerbs = []string{"Add", "Fix", "Refactor", "Document", "Improve", "Remove", "Test", "Review"}
	seedNouns = []string{
		"the login form", "CSV export", "search indexing", "the billing page",
		"rate limiting", "the onboarding flow", "API pagination", "dark mode",
		"error reporting", "the settings screen", "date range filter", "bulk actions",
	}
)

func seedRun(ctx context.Context, n int) error {
	if dryRun {
		ui.DryRunMsg("Would insert %d random tasks", n)
		return nil
	}

	s, err := getStore()
	if err != nil {
		return err
	}
	r := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	if err := seedTasks(ctx, s, r, n, time.Now()); err != nil {
		return err
	}
	ui.Success("Inserted %d tasks", n)
	return nil
}

// seedTasks inserts n random tasks created within the 90 days before now.
func seedTasks(ctx context.Context, s store.Store, r *rand.Rand, n int, now time.Time) error {
	for range n {
		title := seedVerbs[r.IntN(len(seedVerbs))] + " " + seedNouns[r.IntN(len(seedNouns))]
		t := &models.Task{
			Title:     models.StringPtr(title),
			Status:    models.AllTaskStatuses[r.IntN(len(models.AllTaskStatuses))],
			Priority:  models.AllTaskPriorities[r.IntN(len(models.AllTaskPriorities))],
			Label:     models.AllTaskLabels[r.IntN(len(models.AllTaskLabels))],
			CreatedAt: now.Add(-time.Duration(r.Int64N(int64(90 * 24 * time.Hour)))),
		}
		if err := s.CreateTask(ctx, t); err != nil {
			return fmt.Errorf("seed task: %w", err)
		}
	}
	return nil
}
