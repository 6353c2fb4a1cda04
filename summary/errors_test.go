package summary

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		tooLarge  bool
		retryable bool
	}{
		{"rate limited", errors.New("quota"), http.StatusTooManyRequests, false, true},
		{"server error", errors.New("internal"), http.StatusInternalServerError, false, true},
		{"bad key", errors.New("API key not valid"), http.StatusBadRequest, false, false},
		{"413", errors.New("payload"), http.StatusRequestEntityTooLarge, true, false},
		{"token limit message", errors.New("The input token count (1200000) exceeds the maximum number of tokens allowed"), http.StatusBadRequest, true, false},
		{"no status", errors.New("boom"), 0, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify(tt.err, tt.status)
			assert.Equal(t, tt.tooLarge, errors.Is(err, ErrPayloadTooLarge))
			assert.Equal(t, tt.retryable, isRetryable(err))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestGeminiStatus(t *testing.T) {
	err := fmt.Errorf("generate: %w", &googleapi.Error{Code: http.StatusServiceUnavailable, Message: "overloaded"})
	assert.Equal(t, http.StatusServiceUnavailable, geminiStatus(err))
	assert.Equal(t, 0, geminiStatus(errors.New("plain")))
}

func TestGRPCToHTTP(t *testing.T) {
	assert.Equal(t, http.StatusTooManyRequests, grpcToHTTP(codes.ResourceExhausted))
	assert.Equal(t, http.StatusServiceUnavailable, grpcToHTTP(codes.Unavailable))
	assert.Equal(t, http.StatusBadRequest, grpcToHTTP(codes.InvalidArgument))
	assert.Equal(t, 0, grpcToHTTP(codes.OK))
}

func TestResponseText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text("## Notes\n"), genai.Text("- one")}},
		}},
	}
	assert.Equal(t, "## Notes\n- one", responseText(resp))
	assert.Equal(t, "", responseText(&genai.GenerateContentResponse{}))
	assert.Equal(t, "", responseText(nil))
}
