package summary

import (
	"context"
	"errors"
	"fmt"

	"github.com/nijaru/yt-summary/config"
)

// Instructions precede the transcript in every summary request.
const Instructions = `You are a YouTube video summarizer. You will be taking the transcript text
and summarizing the entire video and providing the important summary points
within 600 words. Please provide the summary of the text given here: `

// partialInstructions are used for each window when a transcript is too long
// to send in one request.
const partialInstructions = `You are a YouTube video summarizer. The following text is one consecutive
part of a longer video transcript. Summarize the important points of this part
within 300 words so they can be combined with the summaries of the other parts.
Text: `

var ErrMissingAPIKey = errors.New("API key is not configured")

// Generator sends a complete prompt to a hosted model and returns its text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Model() string
}

// NewGenerator builds the generator for the configured provider. A missing
// key does not fail here; the returned generator reports ErrMissingAPIKey on
// every call so the service can still start.
func NewGenerator(ctx context.Context, cfg *config.Config) (Generator, error) {
	apiKey := cfg.APIKey()
	if apiKey == "" {
		return unconfigured{model: cfg.Summary.Model}, nil
	}

	switch cfg.Summary.Provider {
	case config.ProviderGemini:
		return NewGeminiGenerator(ctx, apiKey, cfg.Summary.Model)
	case config.ProviderOpenAI:
		return NewOpenAIGenerator(apiKey, cfg.Summary.Model), nil
	default:
		return nil, fmt.Errorf("unknown summary provider %q", cfg.Summary.Provider)
	}
}

type unconfigured struct {
	model string
}

func (u unconfigured) Generate(context.Context, string) (string, error) {
	return "", ErrMissingAPIKey
}

func (u unconfigured) Model() string { return u.model }
