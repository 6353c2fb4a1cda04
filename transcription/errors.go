package transcription

import "errors"

// Reasons a transcript could not be retrieved. FetchSegments wraps one of
// these so callers can match with errors.Is.
var (
	ErrTranscriptsDisabled = errors.New("transcripts are disabled for this video")
	ErrNoTranscriptFound   = errors.New("no transcript found in the requested languages")
	ErrVideoUnavailable    = errors.New("video is no longer available")
	ErrVideoUnplayable     = errors.New("video is unplayable")
	ErrAgeRestricted       = errors.New("video is age restricted")
	ErrRequestBlocked      = errors.New("YouTube is blocking requests from this IP")
	ErrTooManyRequests     = errors.New("YouTube is rate limiting requests")
	ErrPoTokenRequired     = errors.New("transcript requires a proof of origin token")
	ErrUnparsable          = errors.New("YouTube response could not be parsed")
	ErrEmptyTranscript     = errors.New("transcript is empty")
)
