package trello

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-trellolink/core"
)

const (
	DefaultAPIBaseURL      = "https://api.trello.com"
	memberProfilePath      = "/1/members/me"
	memberProfileFields    = "id,username,fullName"
	maxMemberResponseBytes = 64 << 10
	memberProfileBucket    = "trello.members.me"
)

var ErrTokenRejected = errors.New("trello: token rejected")

// VerificationError explains why Trello did not vouch for a token.
type VerificationError struct {
	Reason     string
	StatusCode int
	Cause      error
}

func (e *VerificationError) Error() string {
	if e == nil {
		return ErrTokenRejected.Error()
	}
	msg := ErrTokenRejected.Error() + ": " + e.Reason
	if e.StatusCode > 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *VerificationError) Unwrap() error {
	if e == nil || e.Cause == nil {
		return ErrTokenRejected
	}
	return errors.Join(ErrTokenRejected, e.Cause)
}

type memberProfile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	FullName string `json:"fullName"`
}

// RateLimitPolicy gates upstream calls after Trello asks for a back off.
type RateLimitPolicy interface {
	BeforeCall(ctx context.Context, bucket string) error
	AfterCall(ctx context.Context, bucket string, res core.TransportResponse) error
}

type VerifierOption func(*TokenVerifier)

func WithRateLimitPolicy(policy RateLimitPolicy) VerifierOption {
	return func(v *TokenVerifier) {
		v.policy = policy
	}
}

// TokenVerifier asks Trello who owns a token. One call, bounded by Timeout,
// never retried.
type TokenVerifier struct {
	transport core.TransportAdapter
	policy    RateLimitPolicy
	apiBase   string
	apiKey    string
	timeout   time.Duration
}

func NewTokenVerifier(cfg core.TrelloConfig, transport core.TransportAdapter, opts ...VerifierOption) *TokenVerifier {
	timeout := cfg.VerifyTimeout
	if timeout <= 0 {
		timeout = core.DefaultVerifyTimeout
	}
	apiBase := strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	if apiBase == "" {
		apiBase = DefaultAPIBaseURL
	}
	verifier := &TokenVerifier{
		transport: transport,
		apiBase:   apiBase,
		apiKey:    strings.TrimSpace(cfg.APIKey),
		timeout:   timeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(verifier)
		}
	}
	return verifier
}

func (v *TokenVerifier) Verify(ctx context.Context, token string) (core.ProviderIdentity, error) {
	if v == nil || v.transport == nil {
		return core.ProviderIdentity{}, fmt.Errorf("trello: token verifier is not configured")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return core.ProviderIdentity{}, &VerificationError{Reason: "empty token"}
	}

	if v.policy != nil {
		if err := v.policy.BeforeCall(ctx, memberProfileBucket); err != nil {
			return core.ProviderIdentity{}, &VerificationError{Reason: "throttled", Cause: err}
		}
	}

	res, err := v.transport.Do(ctx, core.TransportRequest{
		Method: http.MethodGet,
		URL:    v.apiBase + memberProfilePath,
		Query: map[string]string{
			"key":    v.apiKey,
			"token":  token,
			"fields": memberProfileFields,
		},
		Timeout:              v.timeout,
		MaxResponseBodyBytes: maxMemberResponseBytes,
	})
	if err != nil {
		return core.ProviderIdentity{}, &VerificationError{Reason: "request failed", Cause: err}
	}
	if v.policy != nil {
		// AfterCall errors do not fail verification.
		_ = v.policy.AfterCall(ctx, memberProfileBucket, res)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return core.ProviderIdentity{}, &VerificationError{Reason: "unexpected status", StatusCode: res.StatusCode}
	}

	var profile memberProfile
	if err := json.Unmarshal(res.Body, &profile); err != nil {
		return core.ProviderIdentity{}, &VerificationError{
			Reason:     "malformed member payload",
			StatusCode: res.StatusCode,
			Cause:      err,
		}
	}
	if strings.TrimSpace(profile.ID) == "" {
		return core.ProviderIdentity{}, &VerificationError{Reason: "member id missing", StatusCode: res.StatusCode}
	}

	return core.ProviderIdentity{
		ID:       strings.TrimSpace(profile.ID),
		Username: strings.TrimSpace(profile.Username),
		FullName: strings.TrimSpace(profile.FullName),
	}, nil
}

var _ core.TokenVerifier = (*TokenVerifier)(nil)
