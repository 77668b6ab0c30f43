package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/natours/natours-api/internal/apperror"
)

// envelope is the success response shape: {"status":"success","data":{"data":...}}.
type envelope struct {
	Status  string `json:"status"`
	Results *int   `json:"results,omitempty"`
	Data    *inner `json:"data,omitempty"`
}

type inner struct {
	Data any `json:"data"`
}

// errorEnvelope is the error response shape: {"status":"fail","message":"..."}.
type errorEnvelope struct {
	Status  string `json:"status"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// RespondJSON sends a JSON response with the given status code.
// Logs encoding errors to avoid silent failures.
func RespondJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// RespondData wraps a single document in the success envelope.
func RespondData(w http.ResponseWriter, doc any, statusCode int) {
	RespondJSON(w, envelope{Status: "success", Data: &inner{Data: doc}}, statusCode)
}

// RespondList wraps a collection in the success envelope together with its count.
func RespondList(w http.ResponseWriter, docs any, results int) {
	RespondJSON(w, envelope{Status: "success", Results: &results, Data: &inner{Data: docs}}, http.StatusOK)
}

// RespondNoContent is used by delete handlers: 204 with an empty body.
func RespondNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// RespondError is the single conversion point from Go errors to the error
// envelope. Known *apperror.Error values keep their status and message;
// anything else is reported as a generic 500 so internals never leak.
func RespondError(w http.ResponseWriter, err error) {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		RespondJSON(w, errorEnvelope{Status: appErr.Status(), Code: appErr.Code, Message: appErr.Message}, appErr.StatusCode)
		return
	}
	RespondJSON(w, errorEnvelope{Status: "error", Message: "Something went wrong"}, http.StatusInternalServerError)
}

// RespondErrorMessage reports an ad-hoc client error without a sentinel.
func RespondErrorMessage(w http.ResponseWriter, message string, statusCode int) {
	RespondError(w, apperror.New(statusCode, message))
}
