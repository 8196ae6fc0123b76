package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/tasks/internal/llm"
	"github.com/joescharf/tasks/internal/models"
	"github.com/joescharf/tasks/internal/output"
)

var classifyApply bool

var classifyCmd = &cobra.Command{
	Use:   "classify <id-or-code>",
	Short: "Suggest a label and priority for a task",
	Long: `Suggest a label and priority for a task from its title.

Uses Claude when ANTHROPIC_API_KEY or anthropic.api_key is set, and
keyword heuristics otherwise. Pass --apply to save the suggestion.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return classifyRun(cmd.Context(), args[0])
	},
}

func init() {
	classifyCmd.Flags().BoolVar(&classifyApply, "apply", false, "Save the suggested label and priority")
	rootCmd.AddCommand(classifyCmd)
}

// newLLMClient creates an LLM client from config/env, or returns nil if no API key is configured.
func newLLMClient() *llm.Client {
	apiKey := viper.GetString("anthropic.api_key")
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil
	}
	return llm.NewClient(apiKey, viper.GetString("anthropic.model"))
}

func classifyRun(ctx context.Context, ref string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	t, err := findTask(ctx, s, ref)
	if err != nil {
		return err
	}

	c, err := classify(ctx, newLLMClient(), t)
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan(t.CodeOrEmpty()), t.TitleOrEmpty())
	fmt.Fprintf(ui.Out, "  Label:      %s -> %s\n", t.Label, c.Label)
	fmt.Fprintf(ui.Out, "  Priority:   %s -> %s\n", t.Priority, output.PriorityColor(string(c.Priority)))
	if c.Reason != "" {
		fmt.Fprintf(ui.Out, "  Reason:     %s\n", c.Reason)
	}

	if !classifyApply {
		return nil
	}
	if c.Label == t.Label && c.Priority == t.Priority {
		ui.Info("Task already matches the suggestion")
		return nil
	}
	if dryRun {
		ui.DryRunMsg("Would set %s to %s/%s", t.CodeOrEmpty(), c.Label, c.Priority)
		return nil
	}

	t.Label = c.Label
	t.Priority = c.Priority
	if err := s.UpdateTask(ctx, t); err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	ui.Success("Updated task %s", output.Cyan(t.CodeOrEmpty()))
	return nil
}

// classify asks the model when a client is available and falls back to the
// keyword heuristics otherwise or when the call fails.
func classify(ctx context.Context, client *llm.Client, t *models.Task) (*llm.Classification, error) {
	title := t.TitleOrEmpty()
	if title == "" {
		return nil, fmt.Errorf("task %s has no title to classify", t.CodeOrEmpty())
	}

	if client != nil {
		ui.VerboseLog("Classifying with %s", viper.GetString("anthropic.model"))
		c, err := client.ClassifyTask(ctx, title, t)
		if err == nil {
			return c, nil
		}
		ui.Warning("LLM classification failed, using keywords: %v", err)
	}

	return &llm.Classification{
		Label:    classifyTaskLabel(title),
		Priority: classifyTaskPriority(title),
		Reason:   "keyword match",
	}, nil
}

// classifyTaskLabel infers the label from the title using keyword heuristics.
// Documentation keywords are checked first, then bug, then enhancement.
// Defaults to "feature" if no keywords match.
func classifyTaskLabel(title string) models.TaskLabel {
	lower := strings.ToLower(title)

	docKeywords := []string{
		"document", "docs", "readme", "changelog", "typo", "guide", "tutorial",
	}
	for _, kw := range docKeywords {
		if strings.Contains(lower, kw) {
			return models.TaskLabelDocumentation
		}
	}

	// Multi-word phrases checked first, then single words with common variants.
	bugPhrases := []string{
		"issue with", "not working",
	}
	for _, kw := range bugPhrases {
		if strings.Contains(lower, kw) {
			return models.TaskLabelBug
		}
	}

	bugWords := []string{
		"fix ", "fix:", "fixed", "fixes", "fixing",
		"bug", "broken", "crash", "error",
		"regression", "fail", "fault", "defect",
	}
	for _, kw := range bugWords {
		if strings.Contains(lower, kw) {
			return models.TaskLabelBug
		}
	}
	// "fix" at end of string
	if strings.HasSuffix(lower, "fix") {
		return models.TaskLabelBug
	}

	enhancementKeywords := []string{
		"improve", "refactor", "cleanup", "clean up", "optimize", "speed up",
		"faster", "performance", "upgrade", "simplify", "polish",
	}
	for _, kw := range enhancementKeywords {
		if strings.Contains(lower, kw) {
			return models.TaskLabelEnhancement
		}
	}

	return models.TaskLabelFeature
}

// classifyTaskPriority infers the priority from the title using keyword heuristics.
// High keywords are checked before low keywords. Defaults to "medium".
func classifyTaskPriority(title string) models.TaskPriority {
	lower := strings.ToLower(title)

	highKeywords := []string{
		"critical", "urgent", "blocker", "crash", "security",
		"data loss", "production down", "p0", "p1",
	}
	for _, kw := range highKeywords {
		if strings.Contains(lower, kw) {
			return models.TaskPriorityHigh
		}
	}

	lowKeywords := []string{
		"minor", "nice to have", "cosmetic", "trivial",
		"low priority", "cleanup", "clean up",
	}
	for _, kw := range lowKeywords {
		if strings.Contains(lower, kw) {
			return models.TaskPriorityLow
		}
	}

	return models.TaskPriorityMedium
}
