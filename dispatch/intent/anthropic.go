package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClassifier classifies messages with Anthropic's Claude API.
//
// Safe for concurrent use after creation; the SDK client handles
// concurrent requests internally.
type AnthropicClassifier struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicClassifier creates a classifier backed by the given model
// (for example "claude-3-5-haiku-latest"; classification is a small task,
// prefer the fast tier).
func NewAnthropicClassifier(apiKey, model string) *AnthropicClassifier {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicClassifier{
		client: &client,
		model:  model,
	}
}

// Classify implements Classifier.
func (a *AnthropicClassifier) Classify(ctx context.Context, message string, history []string) (Result, error) {
	prompt := buildClassifyPrompt(message, history)

	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: 256,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("anthropic classify: %w", err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return parseClassifyResponse(text)
}

// buildClassifyPrompt renders the shared classification prompt. All
// model-backed classifiers use it so their outputs stay comparable.
func buildClassifyPrompt(message string, history []string) string {
	var sb strings.Builder

	sb.WriteString("You classify messages from fleet dispatchers into exactly one intent.\n\n")
	sb.WriteString("Intents:\n")
	sb.WriteString("- selection: pick or assign drivers/vehicles to a plan\n")
	sb.WriteString("- communication: send a notification or message to drivers\n")
	sb.WriteString("- compliance: questions about driving hours, rest periods, legal limits\n")
	sb.WriteString("- plan_query: questions about the current plan or schedule\n")
	sb.WriteString("- unknown: anything else\n\n")

	if len(history) > 0 {
		sb.WriteString("Recent conversation:\n")
		for _, h := range history {
			sb.WriteString("- ")
			sb.WriteString(h)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Message: ")
	sb.WriteString(message)
	sb.WriteString("\n\nRespond with ONLY a JSON object, no other text:\n")
	sb.WriteString(`{"intent":"selection","confidence":0.92,"params":{"count":20}}`)
	sb.WriteString("\n\nInclude in params any numbers or entities mentioned ")
	sb.WriteString("(count of drivers, locations, plan names). ")
	sb.WriteString("Confidence is 0.0 to 1.0.")

	return sb.String()
}

// parseClassifyResponse decodes a model response, tolerating JSON wrapped
// in extra prose. Shared by the Anthropic, OpenAI and Google classifiers.
func parseClassifyResponse(text string) (Result, error) {
	var res Result
	if err := json.Unmarshal([]byte(text), &res); err != nil {
		start := strings.Index(text, "{")
		end := strings.LastIndex(text, "}")
		if start == -1 || end == -1 || start >= end {
			return Result{}, fmt.Errorf("no JSON object in response")
		}
		if err := json.Unmarshal([]byte(text[start:end+1]), &res); err != nil {
			return Result{}, fmt.Errorf("parse classification: %w", err)
		}
	}

	switch res.Intent {
	case Selection, Communication, Compliance, PlanQuery, Unknown:
	default:
		return Result{}, fmt.Errorf("model returned unknown intent %q", res.Intent)
	}
	if res.Confidence < 0 || res.Confidence > 1 {
		return Result{}, fmt.Errorf("confidence %v out of range", res.Confidence)
	}
	return res, nil
}
