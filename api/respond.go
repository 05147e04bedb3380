package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/garnizeh/probetas/internal/inventory"
)

// maxBodyBytes bounds request bodies; a batch carries at most a few thousand
// specimens.
const maxBodyBytes = 10 << 20

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", slog.Any("err", err))
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, errorResponse{Error: code, Message: message}, status)
}

// responder maps service errors to HTTP responses. With debug set, internal
// error text is sent to the client.
type responder struct {
	debug bool
}

func (rs responder) fail(w http.ResponseWriter, r *http.Request, err error) {
	var verr *inventory.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, errorResponse{Error: "invalid_input", Message: verr.Message, Field: verr.Field}, http.StatusBadRequest)
	case errors.Is(err, inventory.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, inventory.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", inventory.ErrConflict.Error())
	default:
		logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("err", err),
		)
		msg := "unexpected error"
		if rs.debug {
			msg = err.Error()
		}
		writeError(w, http.StatusInternalServerError, "internal_error", msg)
	}
}

// readBody reads a bounded request body.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, &inventory.ValidationError{Field: "body", Message: fmt.Sprintf("body exceeds %d bytes", tooLarge.Limit)}
		}
		return nil, fmt.Errorf("read body: %w", err)
	}
	return b, nil
}

// decode unmarshals a body that already passed schema validation.
func decode(b []byte, v any) error {
	if err := json.Unmarshal(b, v); err != nil {
		return &inventory.ValidationError{Field: "body", Message: err.Error()}
	}
	return nil
}
