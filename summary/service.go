package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/nijaru/yt-summary/errors"
	"github.com/nijaru/yt-summary/retry"
	"github.com/sirupsen/logrus"
)

type Config struct {
	// MaxInputChars caps a single request. Zero means no cap.
	MaxInputChars int
	// Chunking enables chunk-and-reduce for transcripts over the cap.
	// Without it such transcripts fail with payload_too_large.
	Chunking   bool
	ChunkChars int
	// Timeout bounds each model call.
	Timeout time.Duration
	Retry   retry.Config
}

type SummaryService struct {
	generator Generator
	config    Config
	logger    *logrus.Logger
}

func NewSummaryService(generator Generator, config Config) *SummaryService {
	return &SummaryService{
		generator: generator,
		config:    config,
		logger:    logrus.StandardLogger(),
	}
}

func (s *SummaryService) Model() string {
	return s.generator.Model()
}

// Summarize summarizes transcript with the fixed Instructions.
func (s *SummaryService) Summarize(ctx context.Context, transcript string) (string, error) {
	return s.GenerateSummary(ctx, Instructions, transcript)
}

// GenerateSummary sends instructions followed by transcript to the model and
// returns its text unchanged.
func (s *SummaryService) GenerateSummary(ctx context.Context, instructions, transcript string) (string, error) {
	const op = "SummaryService.GenerateSummary"

	payload := instructions + transcript
	size := utf8.RuneCountInString(payload)
	if !s.exceedsCap(size) {
		return s.generate(ctx, op, payload)
	}

	if !s.config.Chunking {
		return "", apperrors.PayloadTooLarge(op, ErrPayloadTooLarge,
			fmt.Sprintf("Transcript is too long to summarize (%d characters, limit %d)", size, s.config.MaxInputChars))
	}
	return s.chunkAndReduce(ctx, instructions, transcript)
}

func (s *SummaryService) exceedsCap(size int) bool {
	return s.config.MaxInputChars > 0 && size > s.config.MaxInputChars
}

// chunkAndReduce summarizes transcript window by window, then summarizes the
// joined partial summaries with instructions.
func (s *SummaryService) chunkAndReduce(ctx context.Context, instructions, transcript string) (string, error) {
	const op = "SummaryService.chunkAndReduce"
	logger := s.logger.WithContext(ctx)

	budget := s.config.MaxInputChars - utf8.RuneCountInString(partialInstructions)
	if s.config.ChunkChars > 0 && s.config.ChunkChars < budget {
		budget = s.config.ChunkChars
	}
	if budget <= 0 {
		return "", apperrors.PayloadTooLarge(op, ErrPayloadTooLarge, "Input limit is too small to split the transcript")
	}

	chunks := splitText(transcript, budget)
	summaries := make([]string, 0, len(chunks))

	for i, chunk := range chunks {
		select {
		case <-ctx.Done():
			return "", apperrors.GenerationFailed(op, ctx.Err(), "Summary generation cancelled")
		default:
		}

		logger.WithFields(logrus.Fields{
			"chunk": i + 1,
			"total": len(chunks),
		}).Debug("Processing chunk")

		summary, err := s.generate(ctx, op, partialInstructions+chunk)
		if err != nil {
			return "", err
		}
		summaries = append(summaries, summary)
	}

	combined := strings.Join(summaries, "\n\n")
	if utf8.RuneCountInString(combined) >= utf8.RuneCountInString(transcript) {
		return "", apperrors.PayloadTooLarge(op, ErrPayloadTooLarge, "Partial summaries did not reduce the transcript")
	}
	return s.GenerateSummary(ctx, instructions, combined)
}

func (s *SummaryService) generate(ctx context.Context, op, prompt string) (string, error) {
	logger := s.logger.WithContext(ctx).WithField("model", s.generator.Model())
	start := time.Now()

	rc := s.config.Retry
	rc.Op = op
	rc.Retryable = func(err error) bool {
		// A per-call timeout is worth another attempt while the caller still waits.
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return true
		}
		return isRetryable(err)
	}

	text, err := retry.Do(ctx, rc, func(ctx context.Context) (string, error) {
		if s.config.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
			defer cancel()
		}
		return s.generator.Generate(ctx, prompt)
	})
	if err != nil {
		logger.WithError(err).Error("Summary generation failed")
		if errors.Is(err, ErrPayloadTooLarge) {
			return "", apperrors.PayloadTooLarge(op, err, "Transcript is too long for the model")
		}
		return "", apperrors.GenerationFailed(op, err, "Error generating summary")
	}

	if strings.TrimSpace(text) == "" {
		logger.Error("Model returned an empty summary")
		return "", apperrors.GenerationFailed(op, ErrEmptyOutput, "Error generating summary")
	}

	logger.WithFields(logrus.Fields{
		"prompt_chars":  utf8.RuneCountInString(prompt),
		"summary_chars": utf8.RuneCountInString(text),
		"duration":      time.Since(start),
	}).Info("Summary generated")

	return text, nil
}

// splitText breaks text into word-aligned pieces of at most budget runes.
// Words longer than budget are cut.
func splitText(text string, budget int) []string {
	var chunks []string
	var b strings.Builder
	size := 0

	flush := func() {
		if b.Len() > 0 {
			chunks = append(chunks, b.String())
			b.Reset()
			size = 0
		}
	}

	for _, word := range strings.Fields(text) {
		runes := []rune(word)
		for len(runes) > budget {
			flush()
			chunks = append(chunks, string(runes[:budget]))
			runes = runes[budget:]
		}
		if len(runes) == 0 {
			continue
		}

		need := len(runes)
		if size > 0 {
			need++
		}
		if size+need > budget {
			flush()
			need = len(runes)
		}
		if size > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(string(runes))
		size += need
	}
	flush()

	return chunks
}
