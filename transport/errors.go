package transport

import (
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-trellolink/core"
)

// restFailure builds the go-errors envelope returned by RESTAdapter. When
// source is nil a fresh error is created instead of a wrap.
func restFailure(source error, category goerrors.Category, code int, message string, metadata map[string]any) error {
	var err *goerrors.Error
	if source != nil {
		err = goerrors.Wrap(source, category, message)
	} else {
		err = goerrors.New(message, category)
	}

	fields := map[string]any{"adapter": KindREST}
	for key, value := range metadata {
		fields[key] = value
	}
	return err.WithCode(code).WithTextCode(textCodeFor(category)).WithMetadata(fields)
}

func textCodeFor(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return core.ErrorInvalidRequest
	case goerrors.CategoryRateLimit:
		return core.ErrorRateLimited
	case goerrors.CategoryExternal:
		return core.ErrorExternalFailure
	default:
		return core.ErrorInternal
	}
}
