package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/nijaru/yt-summary/retry"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

const (
	DefaultBaseURL = "https://www.youtube.com"

	consentAction = "https://consent.youtube.com/s"

	innertubeClientName    = "ANDROID"
	innertubeClientVersion = "20.10.38"

	botCheckReason      = "Sign in to confirm you're not a bot"
	ageRestrictedReason = "This video may be inappropriate for some users."
	unavailableReason   = "This video is unavailable"

	maxResponseBytes = 10 << 20
)

var (
	apiKeyPattern = regexp.MustCompile(`"INNERTUBE_API_KEY":\s*"([a-zA-Z0-9_-]+)"`)
	tagPattern    = regexp.MustCompile(`<[^>]*>`)
)

// Track describes one caption track offered for a video.
type Track struct {
	BaseURL      string
	LanguageCode string
	Name         string
	Generated    bool
}

// YouTubeFetcher reads captions the way the YouTube web player does: the
// watch page yields an innertube key, the innertube player endpoint lists
// the caption tracks and the chosen track is downloaded as timed-text XML.
type YouTubeFetcher struct {
	client    *http.Client
	baseURL   string
	languages []string
	userAgent string
	retry     retry.Config
}

type FetcherOption func(*YouTubeFetcher)

// WithBaseURL points the fetcher at another host, typically a test server.
func WithBaseURL(baseURL string) FetcherOption {
	return func(f *YouTubeFetcher) { f.baseURL = strings.TrimRight(baseURL, "/") }
}

func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *YouTubeFetcher) { f.client = client }
}

func WithRetry(rc retry.Config) FetcherOption {
	return func(f *YouTubeFetcher) { f.retry = rc }
}

func NewYouTubeFetcher(languages []string, userAgent string, opts ...FetcherOption) *YouTubeFetcher {
	jar, _ := cookiejar.New(nil)
	f := &YouTubeFetcher{
		client:    &http.Client{Jar: jar, Timeout: 30 * time.Second},
		baseURL:   DefaultBaseURL,
		languages: languages,
		userAgent: userAgent,
		retry:     retry.DefaultConfig,
	}
	for _, opt := range opts {
		opt(f)
	}
	if len(f.languages) == 0 {
		f.languages = []string{"en"}
	}
	if f.client.Jar == nil {
		f.client.Jar = jar
	}
	return f
}

func (f *YouTubeFetcher) FetchSegments(ctx context.Context, videoID string) ([]Segment, error) {
	logger := logrus.WithContext(ctx).WithField("video_id", videoID)

	page, err := f.fetchWatchPage(ctx, videoID)
	if err != nil {
		return nil, err
	}

	apiKey, err := extractAPIKey(page)
	if err != nil {
		return nil, err
	}

	player, err := f.fetchPlayer(ctx, videoID, apiKey)
	if err != nil {
		return nil, err
	}

	if err := checkPlayability(player); err != nil {
		return nil, err
	}

	tracks, err := captionTracks(player)
	if err != nil {
		return nil, err
	}

	track, err := selectTrack(tracks, f.languages)
	if err != nil {
		return nil, err
	}
	logger.WithFields(logrus.Fields{
		"language":  track.LanguageCode,
		"generated": track.Generated,
		"tracks":    len(tracks),
	}).Debug("Selected caption track")

	if strings.Contains(track.BaseURL, "&exp=xpe") {
		return nil, ErrPoTokenRequired
	}

	body, err := f.get(ctx, strings.Replace(track.BaseURL, "&fmt=srv3", "", 1))
	if err != nil {
		return nil, err
	}

	return parseTimedText(body)
}

func (f *YouTubeFetcher) watchURL(videoID string) string {
	return fmt.Sprintf("%s/watch?v=%s", f.baseURL, url.QueryEscape(videoID))
}

// fetchWatchPage returns the watch page HTML, accepting the cookie consent
// interstitial once if YouTube serves it.
func (f *YouTubeFetcher) fetchWatchPage(ctx context.Context, videoID string) ([]byte, error) {
	page, err := f.get(ctx, f.watchURL(videoID))
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, errors.Wrap(ErrUnparsable, err.Error())
	}

	form := doc.Find(fmt.Sprintf(`form[action=%q]`, consentAction))
	if form.Length() == 0 {
		return page, nil
	}

	value, ok := form.Find(`input[name="v"]`).Attr("value")
	if !ok || value == "" {
		return nil, errors.Wrap(ErrUnparsable, "consent form without a value")
	}
	if err := f.setConsentCookie(value); err != nil {
		return nil, err
	}

	page, err = f.get(ctx, f.watchURL(videoID))
	if err != nil {
		return nil, err
	}
	if bytes.Contains(page, []byte(consentAction)) {
		return nil, errors.Wrap(ErrUnparsable, "consent cookie was not accepted")
	}
	return page, nil
}

func (f *YouTubeFetcher) setConsentCookie(value string) error {
	u, err := url.Parse(f.baseURL)
	if err != nil {
		return errors.Wrap(err, "parse base URL")
	}
	f.client.Jar.SetCookies(u, []*http.Cookie{{
		Name:  "CONSENT",
		Value: "YES+" + value,
		Path:  "/",
	}})
	return nil
}

func extractAPIKey(page []byte) (string, error) {
	if m := apiKeyPattern.FindSubmatch(page); m != nil {
		return string(m[1]), nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err == nil && doc.Find(".g-recaptcha").Length() > 0 {
		return "", ErrRequestBlocked
	}
	return "", errors.Wrap(ErrUnparsable, "innertube API key not found")
}

func (f *YouTubeFetcher) fetchPlayer(ctx context.Context, videoID, apiKey string) (gjson.Result, error) {
	payload, err := json.Marshal(map[string]any{
		"context": map[string]any{
			"client": map[string]string{
				"clientName":    innertubeClientName,
				"clientVersion": innertubeClientVersion,
			},
		},
		"videoId": videoID,
	})
	if err != nil {
		return gjson.Result{}, errors.Wrap(err, "encode player request")
	}

	endpoint := fmt.Sprintf("%s/youtubei/v1/player?key=%s", f.baseURL, url.QueryEscape(apiKey))
	body, err := f.do(ctx, http.MethodPost, endpoint, payload)
	if err != nil {
		return gjson.Result{}, err
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, errors.Wrap(ErrUnparsable, "player response is not JSON")
	}
	return gjson.ParseBytes(body), nil
}

func checkPlayability(player gjson.Result) error {
	status := player.Get("playabilityStatus.status").String()
	if status == "" || status == "OK" {
		return nil
	}

	reason := player.Get("playabilityStatus.reason").String()
	switch {
	case status == "LOGIN_REQUIRED" && reason == botCheckReason:
		return ErrRequestBlocked
	case status == "LOGIN_REQUIRED" && reason == ageRestrictedReason:
		return ErrAgeRestricted
	case status == "ERROR" && reason == unavailableReason:
		return ErrVideoUnavailable
	}

	if reason == "" {
		reason = status
	}
	return errors.Wrap(ErrVideoUnplayable, reason)
}

func captionTracks(player gjson.Result) ([]Track, error) {
	list := player.Get("captions.playerCaptionsTracklistRenderer.captionTracks")
	if !list.Exists() || !list.IsArray() {
		return nil, ErrTranscriptsDisabled
	}

	var tracks []Track
	list.ForEach(func(_, t gjson.Result) bool {
		name := t.Get("name.simpleText").String()
		if name == "" {
			name = t.Get("name.runs.0.text").String()
		}
		tracks = append(tracks, Track{
			BaseURL:      t.Get("baseUrl").String(),
			LanguageCode: t.Get("languageCode").String(),
			Name:         name,
			Generated:    t.Get("kind").String() == "asr",
		})
		return true
	})
	if len(tracks) == 0 {
		return nil, ErrTranscriptsDisabled
	}
	return tracks, nil
}

// selectTrack walks languages in order and, per language, prefers a manually
// created track over an auto-generated one.
func selectTrack(tracks []Track, languages []string) (Track, error) {
	for _, lang := range languages {
		var generated *Track
		for i := range tracks {
			if tracks[i].LanguageCode != lang {
				continue
			}
			if !tracks[i].Generated {
				return tracks[i], nil
			}
			if generated == nil {
				generated = &tracks[i]
			}
		}
		if generated != nil {
			return *generated, nil
		}
	}

	available := make([]string, 0, len(tracks))
	for _, t := range tracks {
		available = append(available, t.LanguageCode)
	}
	return Track{}, errors.Wrapf(ErrNoTranscriptFound, "requested %v, available %v", languages, available)
}

type timedText struct {
	Texts []struct {
		Start string `xml:"start,attr"`
		Dur   string `xml:"dur,attr"`
		Body  string `xml:",chardata"`
	} `xml:"text"`
}

func parseTimedText(body []byte) ([]Segment, error) {
	var doc timedText
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, errors.Wrap(ErrUnparsable, err.Error())
	}

	segments := make([]Segment, 0, len(doc.Texts))
	for _, t := range doc.Texts {
		if t.Body == "" {
			continue
		}
		start, _ := strconv.ParseFloat(t.Start, 64)
		dur, _ := strconv.ParseFloat(t.Dur, 64)
		segments = append(segments, Segment{
			Text:     tagPattern.ReplaceAllString(html.UnescapeString(t.Body), ""),
			Start:    start,
			Duration: dur,
		})
	}
	return segments, nil
}

func (f *YouTubeFetcher) get(ctx context.Context, target string) ([]byte, error) {
	return f.do(ctx, http.MethodGet, target, nil)
}

// do performs one logical request under the retry policy. A final 429 is
// reported as ErrTooManyRequests.
func (f *YouTubeFetcher) do(ctx context.Context, method, target string, payload []byte) ([]byte, error) {
	rc := f.retry
	rc.Op = "youtube " + method

	body, err := retry.Do(ctx, rc, func(ctx context.Context) ([]byte, error) {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, reader)
		if err != nil {
			return nil, errors.Wrap(err, "build request")
		}
		req.Header.Set("Accept-Language", "en-US")
		if f.userAgent != "" {
			req.Header.Set("User-Agent", f.userAgent)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := f.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, &retry.StatusError{StatusCode: resp.StatusCode, URL: req.URL.Path}
		}
		return io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	})
	if err != nil {
		var statusErr *retry.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusTooManyRequests {
			return nil, errors.Wrap(ErrTooManyRequests, statusErr.Error())
		}
		return nil, err
	}
	return body, nil
}
