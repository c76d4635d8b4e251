package intent

import (
	"context"
	"fmt"
	"os"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultGoogleModel is the Gemini model used when none is configured.
const DefaultGoogleModel = "gemini-1.5-flash"

// GoogleClassifier classifies messages with Google's Gemini API. The
// response schema constrains the model to the classification shape, so
// parsing rarely needs the prose-stripping fallback.
type GoogleClassifier struct {
	client *genai.Client
	model  string
}

// NewGoogleClassifier creates a Gemini-backed classifier. An empty
// apiKey falls back to the GOOGLE_API_KEY environment variable; an
// empty model uses DefaultGoogleModel.
func NewGoogleClassifier(ctx context.Context, apiKey, model string) (*GoogleClassifier, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("google API key not provided and GOOGLE_API_KEY not set")
		}
	}
	if model == "" {
		model = DefaultGoogleModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create google client: %w", err)
	}

	return &GoogleClassifier{client: client, model: model}, nil
}

// Close releases the underlying client.
func (g *GoogleClassifier) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// Classify implements Classifier.
func (g *GoogleClassifier) Classify(ctx context.Context, message string, history []string) (Result, error) {
	model := g.client.GenerativeModel(g.model)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"intent":     {Type: genai.TypeString},
			"confidence": {Type: genai.TypeNumber},
			"params": {
				Type:     genai.TypeObject,
				Nullable: true,
			},
		},
		Required: []string{"intent", "confidence"},
	}

	resp, err := model.GenerateContent(ctx, genai.Text(buildClassifyPrompt(message, history)))
	if err != nil {
		return Result{}, fmt.Errorf("google classify: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return Result{}, fmt.Errorf("google classify: empty response")
	}

	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text += string(t)
		}
	}
	return parseClassifyResponse(text)
}
