package summary

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/googleapis/gax-go/v2/apierror"
	"github.com/nijaru/yt-summary/retry"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
)

var (
	ErrEmptyOutput     = errors.New("model returned no text")
	ErrPayloadTooLarge = errors.New("request exceeds the model input limit")
)

// ProviderError is a failed call to a model provider with the HTTP status it
// reported, or zero when none was available.
type ProviderError struct {
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode == 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("provider returned %d: %v", e.StatusCode, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

var tooLargeMarkers = []string{
	"exceeds the maximum number of tokens",
	"input token count",
	"context_length_exceeded",
	"maximum context length",
	"request payload size exceeds",
	"too large",
}

// classify turns a provider error into a ProviderError, marking payload size
// rejections with ErrPayloadTooLarge.
func classify(err error, status int) error {
	if status == http.StatusRequestEntityTooLarge || looksTooLarge(err) {
		return fmt.Errorf("%w: %w", ErrPayloadTooLarge, &ProviderError{StatusCode: status, Err: err})
	}
	return &ProviderError{StatusCode: status, Err: err}
}

func looksTooLarge(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range tooLargeMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func isRetryable(err error) bool {
	if errors.Is(err, ErrPayloadTooLarge) || errors.Is(err, ErrMissingAPIKey) {
		return false
	}
	var providerErr *ProviderError
	if errors.As(err, &providerErr) && providerErr.StatusCode != 0 {
		return retry.IsRetryableStatus(providerErr.StatusCode)
	}
	return retry.IsRetryable(err)
}

func geminiStatus(err error) int {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return gErr.Code
	}

	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		if code := apiErr.HTTPCode(); code > 0 {
			return code
		}
		if st := apiErr.GRPCStatus(); st != nil {
			return grpcToHTTP(st.Code())
		}
	}
	return 0
}

func grpcToHTTP(code codes.Code) int {
	switch code {
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.NotFound:
		return http.StatusNotFound
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.Internal:
		return http.StatusInternalServerError
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	}
	return 0
}
