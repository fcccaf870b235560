package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorInvalidRequest          = "InvalidRequest"
	ErrorSessionInvalidOrExpired = "SessionInvalidOrExpired"
	ErrorTokenVerificationFailed = "TokenVerificationFailed"
	ErrorStorageFailure          = "StorageFailure"
	ErrorUnauthorized            = "Unauthorized"
	ErrorRateLimited             = "RateLimited"
	ErrorExternalFailure         = "ExternalFailure"
	ErrorInternal                = "InternalError"
)

var (
	ErrCredentialNotFound    = errors.New("core: credential not found")
	ErrSessionStateCollision = errors.New("core: session state collision")
)

const (
	messageSessionInvalid    = "Invalid or expired session"
	messageTokenVerification = "Failed to verify token with provider"
	messageStorageFailure    = "Failed to persist data"
)

func InvalidRequestError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorInvalidRequest)
}

// SessionInvalidError does not say whether the state ever existed.
func SessionInvalidError(phase HandshakePhase) *goerrors.Error {
	return goerrors.New(messageSessionInvalid, goerrors.CategoryAuth).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorSessionInvalidOrExpired).
		WithMetadata(map[string]any{"phase": string(phase)})
}

func TokenVerificationError(cause error) *goerrors.Error {
	var err *goerrors.Error
	if cause == nil {
		err = goerrors.New(messageTokenVerification, goerrors.CategoryExternal)
	} else {
		err = goerrors.Wrap(cause, goerrors.CategoryExternal, messageTokenVerification)
	}
	return err.
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorTokenVerificationFailed).
		WithMetadata(map[string]any{"phase": string(PhaseFailed)})
}

func StorageError(cause error, operation string) *goerrors.Error {
	var err *goerrors.Error
	if cause == nil {
		err = goerrors.New(messageStorageFailure, goerrors.CategoryInternal)
	} else {
		err = goerrors.Wrap(cause, goerrors.CategoryInternal, messageStorageFailure)
	}
	err = err.
		WithCode(http.StatusInternalServerError).
		WithTextCode(ErrorStorageFailure)
	if strings.TrimSpace(operation) != "" {
		err.WithMetadata(map[string]any{"operation": operation})
	}
	return err
}

// MapError normalizes any error into a go-errors envelope carrying an HTTP
// status and one of the text codes above.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureErrorEnvelope(richErr)
	}

	switch {
	case errors.Is(err, ErrCredentialNotFound):
		return ensureErrorEnvelope(
			goerrors.New(err.Error(), goerrors.CategoryNotFound).WithTextCode(ErrorInvalidRequest),
		)
	case errors.Is(err, ErrSessionStateCollision):
		return StorageError(err, "issue_session")
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureErrorEnvelope(mapped)
}

// PublicMessage is the message safe to hand to a client. Internal and
// external failures never leak their cause.
func PublicMessage(err *goerrors.Error) string {
	if err == nil {
		return ""
	}
	switch err.TextCode {
	case ErrorTokenVerificationFailed:
		return messageTokenVerification
	case ErrorStorageFailure:
		return messageStorageFailure
	case ErrorSessionInvalidOrExpired:
		return messageSessionInvalid
	}
	if err.Category == goerrors.CategoryInternal || err.Category == goerrors.CategoryExternal {
		return "An unexpected error occurred"
	}
	return err.Message
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = errorHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation, goerrors.CategoryNotFound:
		return ErrorInvalidRequest
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return ErrorUnauthorized
	case goerrors.CategoryRateLimit:
		return ErrorRateLimited
	case goerrors.CategoryExternal:
		return ErrorExternalFailure
	default:
		return ErrorInternal
	}
}

func errorHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
