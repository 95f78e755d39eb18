// Package sentiment classifies call transcripts with the Gemini API.
package sentiment

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"receptionist-platform/internal/calls"
)

const prompt = "Classify the overall caller sentiment of the following phone call transcript. " +
	"Answer with exactly one word: POSITIVE, NEUTRAL or NEGATIVE. " +
	"Transcript:\n%s"

// GeminiClassifier implements calls.SentimentClassifier on top of the
// Gemini generative API.
type GeminiClassifier struct {
	model *genai.GenerativeModel
}

// NewGeminiClassifier dials the Gemini API. The caller owns the
// returned closer for shutdown.
func NewGeminiClassifier(ctx context.Context, apiKey, model string) (*GeminiClassifier, func() error, error) {
	if apiKey == "" {
		return nil, nil, fmt.Errorf("sentiment: api key required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, nil, fmt.Errorf("sentiment: create client: %w", err)
	}
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &GeminiClassifier{model: client.GenerativeModel(model)}, client.Close, nil
}

func (g *GeminiClassifier) Classify(ctx context.Context, transcript string) (calls.Sentiment, error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return calls.SentimentUnknown, nil
	}

	resp, err := g.model.GenerateContent(ctx, genai.Text(fmt.Sprintf(prompt, transcript)))
	if err != nil {
		return calls.SentimentUnknown, fmt.Errorf("sentiment: generate: %w", err)
	}

	var answer string
	if len(resp.Candidates) > 0 && len(resp.Candidates[0].Content.Parts) > 0 {
		if text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text); ok {
			answer = string(text)
		}
	}
	label := calls.ParseSentiment(strings.TrimSpace(answer))
	if label == calls.SentimentUnknown && answer != "" {
		return calls.SentimentUnknown, fmt.Errorf("sentiment: unrecognized label %q", strings.TrimSpace(answer))
	}
	return label, nil
}
