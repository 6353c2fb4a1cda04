package transcription

import (
	"context"
	"strings"
	"time"

	apperrors "github.com/nijaru/yt-summary/errors"
	"github.com/sirupsen/logrus"
)

// Segment is one caption line. Only Text ends up in the transcript.
type Segment struct {
	Text     string
	Start    float64
	Duration float64
}

// Fetcher retrieves the caption segments of a video in display order.
type Fetcher interface {
	FetchSegments(ctx context.Context, videoID string) ([]Segment, error)
}

type TranscriptionService struct {
	fetcher Fetcher
	logger  *logrus.Logger
}

func NewTranscriptionService(fetcher Fetcher) *TranscriptionService {
	return &TranscriptionService{
		fetcher: fetcher,
		logger:  logrus.StandardLogger(),
	}
}

// Resolve returns the transcript of videoID as a single space-joined string.
// An empty videoID fails without contacting YouTube.
func (s *TranscriptionService) Resolve(ctx context.Context, videoID string) (string, error) {
	const op = "TranscriptionService.Resolve"

	if videoID == "" {
		return "", apperrors.IdentifierNotFound(op, "no video identifier to fetch a transcript for")
	}

	logger := s.logger.WithContext(ctx).WithField("video_id", videoID)
	start := time.Now()

	segments, err := s.fetcher.FetchSegments(ctx, videoID)
	if err != nil {
		logger.WithError(err).Warn("Transcript fetch failed")
		return "", apperrors.TranscriptUnavailable(op, err, "Transcript could not be retrieved")
	}

	text := JoinSegments(segments)
	if strings.TrimSpace(text) == "" {
		logger.Warn("Transcript has no text")
		return "", apperrors.TranscriptUnavailable(op, ErrEmptyTranscript, "Transcript could not be retrieved")
	}

	logger.WithFields(logrus.Fields{
		"segments": len(segments),
		"chars":    len(text),
		"duration": time.Since(start),
	}).Info("Transcript fetched")

	return text, nil
}

// JoinSegments concatenates segment texts with a single space, in order.
func JoinSegments(segments []Segment) string {
	if len(segments) == 0 {
		return ""
	}

	var b strings.Builder
	for i, seg := range segments {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(seg.Text)
	}
	return b.String()
}
