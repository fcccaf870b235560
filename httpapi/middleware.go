package httpapi

import (
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"strings"
)

var errInternal = errors.New("httpapi: internal error")

// requireAPIKey guards a route with the x-api-key header. An empty server
// key disables the check.
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			next.ServeHTTP(w, r)
			return
		}
		presented := strings.TrimSpace(r.Header.Get(apiKeyHeader))
		if subtle.ConstantTimeCompare([]byte(presented), []byte(s.apiKey)) != 1 {
			s.requestLogger(r).Warn("api key rejected")
			writeJSON(w, http.StatusForbidden, plainError{Error: "Unauthorized - Invalid API Key"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) rateLimited(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(clientIP(r)) {
			s.requestLogger(r).Warn("rate limited")
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, errorResponse{
				Success: false,
				Error:   "RateLimited",
				Message: "Too many requests",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if recovered := recover(); recovered != nil {
				if recovered == http.ErrAbortHandler {
					panic(recovered)
				}
				s.requestLogger(r).Error("handler panic", "panic", recovered)
				writeJSON(w, http.StatusInternalServerError, plainError{Error: "Internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// clientIP uses the connection address only; forwarding headers are not
// trusted.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
