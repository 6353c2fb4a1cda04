package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	apperrors "github.com/nijaru/yt-summary/errors"
	"github.com/nijaru/yt-summary/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct {
	mu      sync.Mutex
	prompts []string
	reply   func(call int, prompt string) (string, error)
}

func (s *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	call := len(s.prompts)
	s.mu.Unlock()
	return s.reply(call, prompt)
}

func (s *stubGenerator) Model() string { return "stub-model" }

func (s *stubGenerator) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

func fixed(text string) func(int, string) (string, error) {
	return func(int, string) (string, error) { return text, nil }
}

var fastRetry = retry.Config{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: 2 * time.Millisecond}

func TestSummarizeSendsInstructionsThenTranscript(t *testing.T) {
	gen := &stubGenerator{reply: fixed("  * point one\n* point two\n")}
	service := NewSummaryService(gen, Config{MaxInputChars: 10000, Retry: fastRetry})

	summary, err := service.Summarize(context.Background(), "hello world")
	require.NoError(t, err)

	assert.Equal(t, "  * point one\n* point two\n", summary, "summary must be returned verbatim")
	require.Equal(t, 1, gen.calls())
	assert.Equal(t, Instructions+"hello world", gen.prompts[0])
	assert.True(t, strings.HasSuffix(Instructions, "given here: "))
}

func TestSummarizeGeneratorFailure(t *testing.T) {
	gen := &stubGenerator{reply: func(int, string) (string, error) {
		return "", &ProviderError{StatusCode: 401, Err: errors.New("API key not valid")}
	}}
	service := NewSummaryService(gen, Config{Retry: fastRetry})

	_, err := service.Summarize(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindGenerationFailed))
	assert.Contains(t, err.Error(), "API key not valid")
	assert.Equal(t, 1, gen.calls(), "auth failures must not be retried")
}

func TestSummarizeMissingAPIKey(t *testing.T) {
	service := NewSummaryService(unconfigured{model: "gemini-2.5-flash"}, Config{Retry: fastRetry})

	_, err := service.Summarize(context.Background(), "hello")
	assert.True(t, apperrors.IsKind(err, apperrors.KindGenerationFailed))
	assert.ErrorIs(t, err, ErrMissingAPIKey)
	assert.Equal(t, "gemini-2.5-flash", service.Model())
}

func TestSummarizeEmptyOutput(t *testing.T) {
	gen := &stubGenerator{reply: fixed("   ")}
	service := NewSummaryService(gen, Config{Retry: fastRetry})

	_, err := service.Summarize(context.Background(), "hello")
	assert.True(t, apperrors.IsKind(err, apperrors.KindGenerationFailed))
	assert.ErrorIs(t, err, ErrEmptyOutput)
}

func TestSummarizeRetriesTransientFailure(t *testing.T) {
	gen := &stubGenerator{reply: func(call int, _ string) (string, error) {
		if call == 1 {
			return "", &ProviderError{StatusCode: 503, Err: errors.New("overloaded")}
		}
		return "summary", nil
	}}
	service := NewSummaryService(gen, Config{Retry: fastRetry})

	summary, err := service.Summarize(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "summary", summary)
	assert.Equal(t, 2, gen.calls())
}

func TestSummarizeRetriesPerCallTimeout(t *testing.T) {
	gen := &stubGenerator{reply: func(call int, _ string) (string, error) {
		if call == 1 {
			return "", fmt.Errorf("generate: %w", context.DeadlineExceeded)
		}
		return "summary", nil
	}}
	service := NewSummaryService(gen, Config{Timeout: time.Second, Retry: fastRetry})

	_, err := service.Summarize(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, 2, gen.calls())
}

func TestSummarizePayloadTooLargeWithoutChunking(t *testing.T) {
	gen := &stubGenerator{reply: fixed("unused")}
	service := NewSummaryService(gen, Config{MaxInputChars: len(Instructions) + 10, Retry: fastRetry})

	_, err := service.Summarize(context.Background(), strings.Repeat("word ", 10))
	assert.True(t, apperrors.IsKind(err, apperrors.KindPayloadTooLarge))
	assert.Equal(t, 0, gen.calls())
}

func TestSummarizeProviderRejectsSize(t *testing.T) {
	gen := &stubGenerator{reply: func(int, string) (string, error) {
		return "", classify(errors.New("request too big"), 413)
	}}
	service := NewSummaryService(gen, Config{Retry: fastRetry})

	_, err := service.Summarize(context.Background(), "hello")
	assert.True(t, apperrors.IsKind(err, apperrors.KindPayloadTooLarge))
	assert.Equal(t, 1, gen.calls())
}

func TestSummarizeChunkAndReduce(t *testing.T) {
	gen := &stubGenerator{reply: func(call int, prompt string) (string, error) {
		if strings.HasPrefix(prompt, partialInstructions) {
			return fmt.Sprintf("part%d", call), nil
		}
		return "final", nil
	}}

	maxChars := utf8.RuneCountInString(partialInstructions) + 40
	service := NewSummaryService(gen, Config{
		MaxInputChars: maxChars,
		Chunking:      true,
		ChunkChars:    maxChars,
		Retry:         fastRetry,
	})

	transcript := strings.TrimSpace(strings.Repeat("alpha beta gamma delta ", 6))
	summary, err := service.Summarize(context.Background(), transcript)
	require.NoError(t, err)
	assert.Equal(t, "final", summary)

	chunks := splitText(transcript, 40)
	require.Equal(t, len(chunks)+1, gen.calls(), "one call per window plus the reduce call")
	for i, chunk := range chunks {
		assert.Equal(t, partialInstructions+chunk, gen.prompts[i])
	}

	last := gen.prompts[len(gen.prompts)-1]
	assert.True(t, strings.HasPrefix(last, Instructions))
	assert.Contains(t, last, "part1\n\npart2")
}

func TestSplitText(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		budget int
		want   []string
	}{
		{"fits", "a b c", 10, []string{"a b c"}},
		{"word aligned", "aaa bbb ccc", 7, []string{"aaa bbb", "ccc"}},
		{"long word cut", "abcdefgh ij", 3, []string{"abc", "def", "gh", "ij"}},
		{"collapses whitespace", "a \n b", 10, []string{"a b"}},
		{"empty", "", 5, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitText(tt.text, tt.budget)
			assert.Equal(t, tt.want, got)
			for _, chunk := range got {
				assert.LessOrEqual(t, utf8.RuneCountInString(chunk), tt.budget)
			}
		})
	}
}
