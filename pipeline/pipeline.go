package pipeline

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nijaru/yt-summary/db"
	apperrors "github.com/nijaru/yt-summary/errors"
	"github.com/nijaru/yt-summary/validation"
	"github.com/sirupsen/logrus"
)

const historyTimeout = 5 * time.Second

type Extractor interface {
	Extract(raw string) (string, bool)
}

type TranscriptResolver interface {
	Resolve(ctx context.Context, videoID string) (string, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (string, error)
	Model() string
}

type History interface {
	RecordRun(ctx context.Context, run db.Run) error
}

type Result struct {
	VideoID      string `json:"video_id"`
	ThumbnailURL string `json:"thumbnail_url"`
	Summary      string `json:"summary"`
	Model        string `json:"model"`
}

// Pipeline turns a video URL into a summary: extract the identifier, resolve
// the transcript, then summarize it. Each stage runs only if the previous one
// succeeded.
type Pipeline struct {
	extractor         Extractor
	resolver          TranscriptResolver
	summarizer        Summarizer
	history           History
	transcriptTimeout time.Duration
	logger            *logrus.Logger
}

type Option func(*Pipeline)

// WithHistory records every run in h.
func WithHistory(h History) Option {
	return func(p *Pipeline) { p.history = h }
}

// WithTranscriptTimeout bounds the transcript stage, retries included.
func WithTranscriptTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.transcriptTimeout = d }
}

func New(extractor Extractor, resolver TranscriptResolver, summarizer Summarizer, opts ...Option) *Pipeline {
	p := &Pipeline{
		extractor:  extractor,
		resolver:   resolver,
		summarizer: summarizer,
		logger:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes the pipeline for rawURL. Failures are *errors.AppError values
// whose Kind says which stage failed.
func (p *Pipeline) Run(ctx context.Context, rawURL string) (result *Result, err error) {
	const op = "Pipeline.Run"

	start := time.Now()
	run := db.Run{Model: p.summarizer.Model()}
	defer func() {
		run.Duration = time.Since(start)
		run.Outcome = db.OutcomeOK
		if err != nil {
			run.Outcome = string(apperrors.KindOf(err))
			run.Error = err.Error()
		}
		p.record(ctx, run)
	}()

	if strings.TrimSpace(rawURL) == "" {
		return nil, apperrors.IdentifierNotFound(op, "Please enter a valid YouTube video link.")
	}

	videoID, ok := p.extractor.Extract(rawURL)
	if !ok {
		return nil, apperrors.IdentifierNotFound(op, "Please enter a valid YouTube URL.")
	}
	run.VideoID = videoID

	logger := p.logger.WithContext(ctx).WithField("video_id", videoID)

	transcript, err := p.resolveTranscript(ctx, videoID)
	if err != nil {
		return nil, err
	}
	run.TranscriptChars = utf8.RuneCountInString(transcript)

	summary, err := p.summarizer.Summarize(ctx, transcript)
	if err != nil {
		return nil, err
	}
	run.SummaryChars = utf8.RuneCountInString(summary)

	logger.WithField("duration", time.Since(start)).Info("Pipeline completed")

	return &Result{
		VideoID:      videoID,
		ThumbnailURL: validation.ThumbnailURL(videoID),
		Summary:      summary,
		Model:        p.summarizer.Model(),
	}, nil
}

func (p *Pipeline) resolveTranscript(ctx context.Context, videoID string) (string, error) {
	if p.transcriptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.transcriptTimeout)
		defer cancel()
	}
	return p.resolver.Resolve(ctx, videoID)
}

// record stores run even when the request context is already cancelled.
func (p *Pipeline) record(ctx context.Context, run db.Run) {
	if p.history == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyTimeout)
	defer cancel()

	if err := p.history.RecordRun(ctx, run); err != nil {
		p.logger.WithContext(ctx).WithError(err).WithField("video_id", run.VideoID).Warn("Failed to record run")
	}
}
