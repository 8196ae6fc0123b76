package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/joescharf/tasks/internal/models"
)

// Classification is the suggested label and priority for a task.
type Classification struct {
	Label    models.TaskLabel    `json:"label"`
	Priority models.TaskPriority `json:"priority"`
	Reason   string              `json:"reason"`
}

// Client wraps the Anthropic API for task classification.
type Client struct {
	api   *anthropic.Client
	model anthropic.Model
}

// NewClient creates an LLM client with the given API key and model.
func NewClient(apiKey, model string) *Client {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	return &Client{
		api:   &client,
		model: anthropic.Model(model),
	}
}

// buildClassifyPrompt constructs the system and user prompts for classifying one task.
func buildClassifyPrompt(title string, current *models.Task) (system string, user string) {
	system = `You triage tasks in a task tracker. Given a task title, return a JSON object with exactly these fields:
- "label": one of "bug", "feature", "enhancement", "documentation"
- "priority": one of "low", "medium", "high"
- "reason": one short sentence explaining the choice

Rules:
- bug: something is broken or behaves incorrectly
- feature: a new capability
- enhancement: an improvement to something that already works
- documentation: docs, guides, comments, READMEs
- Default priority to "medium" unless the title signals urgency (outage, data loss, security) or is cosmetic
- Return valid JSON only, no markdown fencing or explanation`

	var sb strings.Builder
	sb.WriteString("Task title: ")
	sb.WriteString(title)
	sb.WriteString("\n")
	if current != nil {
		fmt.Fprintf(&sb, "\nCurrent label: %s\nCurrent priority: %s\nCurrent status: %s\n", current.Label, current.Priority, current.Status)
	}
	user = sb.String()
	return
}

// stripFence removes a surrounding markdown code fence, if any.
func stripFence(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		lines := strings.SplitN(text, "\n", 2)
		if len(lines) > 1 {
			text = lines[1]
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	return text
}

// parseClassification decodes and validates the model's JSON answer.
func parseClassification(text string) (*Classification, error) {
	text = stripFence(text)

	var c Classification
	if err := json.Unmarshal([]byte(text), &c); err != nil {
		return nil, fmt.Errorf("parse LLM response as JSON: %w\nraw response: %s", err, text)
	}
	if !c.Label.Valid() {
		return nil, fmt.Errorf("LLM returned unknown label %q", c.Label)
	}
	if !c.Priority.Valid() {
		return nil, fmt.Errorf("LLM returned unknown priority %q", c.Priority)
	}
	return &c, nil
}

// ClassifyTask asks the model for a label and priority. current may be nil.
func (c *Client) ClassifyTask(ctx context.Context, title string, current *models.Task) (*Classification, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("cannot classify a task without a title")
	}
	systemPrompt, userPrompt := buildClassifyPrompt(title, current)

	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 512,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API call: %w", err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return nil, fmt.Errorf("no text content in API response")
	}

	return parseClassification(text)
}
