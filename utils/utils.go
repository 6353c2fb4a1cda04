package utils

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/nijaru/yt-summary/errors"
	"github.com/sirupsen/logrus"
)

// ErrorResponse is the JSON body of every failed API call.
type ErrorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	Severity  string `json:"severity,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func HandleError(w http.ResponseWriter, message string, statusCode int) {
	RespondWithJSON(w, statusCode, ErrorResponse{Error: message})
}

// RespondWithAppError writes err with the status code and severity of its kind.
func RespondWithAppError(w http.ResponseWriter, err *apperrors.AppError, requestID string) {
	RespondWithJSON(w, err.Code, ErrorResponse{
		Error:     err.Error(),
		Kind:      string(err.Kind),
		Severity:  string(err.Severity()),
		RequestID: requestID,
	})
}

func RespondWithJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logrus.WithError(err).Error("Failed to encode JSON response")
	}
}
