package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-trellolink/core"
	"github.com/goliatone/go-trellolink/webhooks"
)

type completeRequest struct {
	Token string `json:"token"`
	State string `json:"state"`
}

type completeResponse struct {
	Success bool   `json:"success"`
	UserID  string `json:"userId"`
}

type recentEventsResponse struct {
	Success bool                 `json:"success"`
	Data    []core.ProviderEvent `json:"data"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Timestamp string `json:"timestamp"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if s.link == nil {
		s.writeServiceError(w, r, core.MapError(errors.New("httpapi: link service is not configured")))
		return
	}
	out, err := s.link.Start(r.Context(), core.StartLinkRequest{UserID: r.URL.Query().Get("userId")})
	if err != nil {
		s.writeServiceError(w, r, core.MapError(err))
		return
	}
	http.Redirect(w, r, out.AuthorizeURL, http.StatusFound)
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Referrer-Policy", "no-referrer")
	page := callbackPage{
		State:       r.URL.Query().Get("state"),
		CompleteURL: defaultCompletePath,
		AppName:     s.appName,
	}
	if err := templates.ExecuteTemplate(w, "callback.html", page); err != nil {
		s.requestLogger(r).Error("render callback page failed", "error", err)
	}
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	if s.link == nil {
		s.writeServiceError(w, r, core.MapError(errors.New("httpapi: link service is not configured")))
		return
	}
	var req completeRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCompleteBodyBytes))
	if err := decoder.Decode(&req); err != nil {
		s.writeServiceError(w, r, core.InvalidRequestError("Token and state are required"))
		return
	}

	out, err := s.link.Complete(r.Context(), core.CompleteLinkRequest{Token: req.Token, State: req.State})
	if err != nil {
		s.writeServiceError(w, r, core.MapError(err))
		return
	}
	writeJSON(w, http.StatusOK, completeResponse{Success: true, UserID: out.UserID})
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	logger := s.requestLogger(r)
	if s.ingestor == nil {
		logger.Error("webhook ingestor is not configured")
		writeJSON(w, http.StatusInternalServerError, plainError{Error: "Internal server error"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.bodyLimit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			logger.Warn("webhook body exceeds limit", "limit_bytes", s.bodyLimit)
			writeJSON(w, http.StatusRequestEntityTooLarge, plainError{Error: "Payload too large"})
			return
		}
		logger.Warn("webhook body read failed", "error", err)
		writeJSON(w, http.StatusBadRequest, plainError{Error: "Unable to read request body"})
		return
	}

	if err := s.signatures.Verify(body, r.Header.Get(webhooks.SignatureHeader)); err != nil {
		logger.Warn("webhook signature rejected", "error", err)
		writeJSON(w, http.StatusUnauthorized, plainError{Error: "Invalid webhook signature"})
		return
	}

	result, err := s.ingestor.Ingest(r.Context(), body)
	if err != nil {
		mapped := core.MapError(err)
		logger.Error("webhook ingest failed", "error", err, "error_code", mapped.TextCode)
		writeJSON(w, http.StatusInternalServerError, plainError{Error: "Internal server error"})
		return
	}
	if result.Outcome == webhooks.OutcomeRejected {
		writeJSON(w, http.StatusBadRequest, plainError{Error: "Malformed webhook payload"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (s *Server) handleWebhookProbe(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleRecentEvents(w http.ResponseWriter, r *http.Request) {
	if s.ingestor == nil {
		s.writeServiceError(w, r, core.MapError(errors.New("httpapi: event reader is not configured")))
		return
	}
	events, err := s.ingestor.Recent(r.Context(), parseLimit(r.URL.Query().Get("limit")))
	if err != nil {
		s.writeServiceError(w, r, core.MapError(err))
		return
	}
	if events == nil {
		events = []core.ProviderEvent{}
	}
	writeJSON(w, http.StatusOK, recentEventsResponse{Success: true, Data: events})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "OK",
		Service:   s.serviceName,
		Timestamp: s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "Backend is running!")
}

func (s *Server) handleNotFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, plainError{Error: "Endpoint not found"})
}

// parseLimit maps missing, malformed and non-positive values to 0, which
// the event reader treats as its default page size.
func parseLimit(raw string) int {
	limit, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}
