package httpapi

import (
	"encoding/json"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-trellolink/core"
)

type plainError struct {
	Error string `json:"error"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeServiceError logs the full error and answers with the text code and
// a message that is safe to show.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err *goerrors.Error) {
	if err == nil {
		err = core.MapError(errInternal)
	}
	status := err.Code
	if status < 400 || status > 599 {
		status = http.StatusInternalServerError
	}

	logger := s.requestLogger(r)
	args := []any{"error", err, "error_code", err.TextCode, "status", status}
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", args...)
	} else {
		logger.Warn("request rejected", args...)
	}

	writeJSON(w, status, errorResponse{
		Success: false,
		Error:   err.TextCode,
		Message: core.PublicMessage(err),
	})
}
