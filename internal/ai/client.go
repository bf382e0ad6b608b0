package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
)

type Client struct {
	client *openai.Client
	model  string
}

func New(apiKey, baseURL, model string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	return &Client{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

func (c *Client) SetModel(model string) {
	c.model = model
}

// MedicationDraft is the structured result of parsing a free-form message
// like "aspirin 500mg every morning at 8". A draft is shown to the user for
// confirmation before anything is saved.
type MedicationDraft struct {
	Name         string  `json:"name"`
	Dosage       string  `json:"dosage"`
	Time         string  `json:"time"`
	Frequency    string  `json:"frequency"`
	Days         []int   `json:"days"`
	IntervalDays int     `json:"interval_days"`
	Confidence   float64 `json:"confidence"`
	Message      string  `json:"message"`
	RawResponse  string  `json:"-"`
}

const systemPromptTemplate = `You are the parser of a medication reminder bot. The user describes a
medication and when to take it in free form. Extract a structured draft.

Current time: %s

Fields:
- name: the medication name, as the user wrote it
- dosage: dose per intake, e.g. "500mg", "1 tablet", "2 capsules". Empty if not given.
- time: intake time as HH:MM in 24-hour format. Map words like "morning" to 08:00,
  "noon" to 14:00, "evening" to 20:00. Empty if no time is mentioned.
- frequency: one of "daily", "specific_days", "interval", "monthly"
- days: for specific_days, ISO weekday numbers (1=Monday .. 7=Sunday);
  for monthly, days of month (1-31); empty otherwise
- interval_days: for interval ("every 2 days"), the number of days; 0 otherwise
- confidence: 0 to 1, how sure you are this message describes a medication to add
- message: one short sentence summarizing what you understood, in the user's language

If the message is not about adding a medication, set confidence below 0.5 and
explain in message what you can help with.`

func getSystemPrompt() string {
	now := time.Now()
	return fmt.Sprintf(systemPromptTemplate, now.Format("2006-01-02 15:04 (Monday)"))
}

// JSON Schema for structured output
var draftSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"name": {
			"type": "string",
			"description": "Medication name"
		},
		"dosage": {
			"type": "string",
			"description": "Dose per intake, empty if not given"
		},
		"time": {
			"type": "string",
			"description": "Intake time as HH:MM, empty if not given"
		},
		"frequency": {
			"type": "string",
			"enum": ["daily", "specific_days", "interval", "monthly"],
			"description": "How often the intake repeats"
		},
		"days": {
			"type": "array",
			"items": {
				"type": "integer"
			},
			"description": "ISO weekdays (1-7) for specific_days, days of month for monthly"
		},
		"interval_days": {
			"type": "integer",
			"description": "Gap in days for interval frequency, 0 otherwise"
		},
		"confidence": {
			"type": "number",
			"minimum": 0,
			"maximum": 1,
			"description": "Confidence that this is a medication to add"
		},
		"message": {
			"type": "string",
			"description": "Short summary of what was understood"
		}
	},
	"required": ["name", "frequency", "confidence"],
	"additionalProperties": false
}`)

func (c *Client) ParseMedication(ctx context.Context, userMessage string) (*MedicationDraft, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: getSystemPrompt(),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: userMessage,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "medication_draft",
				Schema: draftSchema,
				Strict: true,
			},
		},
		Temperature: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call AI API: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from AI")
	}

	content := resp.Choices[0].Message.Content
	draft := &MedicationDraft{RawResponse: content}

	if err := json.Unmarshal([]byte(content), draft); err != nil {
		return nil, fmt.Errorf("failed to parse AI response: %w", err)
	}

	return draft, nil
}
