package handlers

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/smartsupply/agent/internal/auth"
	"github.com/smartsupply/agent/internal/cache"
	"github.com/smartsupply/agent/internal/remote"
	appErrors "github.com/smartsupply/agent/pkg/errors"
	"github.com/smartsupply/agent/pkg/response"
)

// toAppError maps domain errors onto the API error catalogue.
func toAppError(err error) *appErrors.AppError {
	var netErr *remote.NetworkError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, auth.ErrInvalidToken):
		return appErrors.ErrInvalidToken.WithInternal(err)
	case errors.Is(err, auth.ErrNotLoggedIn):
		return appErrors.ErrUnauthorized.WithInternal(err)
	case errors.Is(err, cache.ErrStorageUnavailable), errors.Is(err, cache.ErrStorageIO):
		return appErrors.ErrStorageUnavailable.WithInternal(err)
	case errors.Is(err, remote.ErrNotConfigured):
		return appErrors.ErrNotConfigured.WithInternal(err)
	case errors.As(err, &netErr), errors.Is(err, remote.ErrUnsuccessful):
		return appErrors.ErrUpstream.WithInternal(err)
	case errors.Is(err, context.DeadlineExceeded):
		return appErrors.ErrUpstream.WithInternal(err)
	default:
		return appErrors.FromError(err)
	}
}

func writeError(c *gin.Context, err error) {
	appErr := toAppError(err)
	if appErr.Internal != nil {
		_ = c.Error(appErr.Internal)
	}
	response.Error(c, appErr)
}
