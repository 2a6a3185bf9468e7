package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/promo-composer/internal/editor"
	"github.com/fleveque/promo-composer/internal/export"
	"github.com/fleveque/promo-composer/internal/model"
	"github.com/fleveque/promo-composer/internal/provider"
	"github.com/fleveque/promo-composer/internal/service"
	"github.com/fleveque/promo-composer/internal/storage"
)

// statusFor maps domain errors to HTTP status codes.
// errors.Is walks the wrap chain, so wrapped errors map like their sentinels.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrUnsupportedFormat),
		errors.Is(err, service.ErrEmptyQuery):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNoImages),
		errors.Is(err, provider.ErrNotFound),
		errors.Is(err, storage.ErrNotFound),
		errors.Is(err, editor.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, editor.ErrNotConfigured):
		return http.StatusConflict
	case errors.Is(err, editor.ErrTooManySessions):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes a JSON error. Server-side failures are logged and their
// details hidden from the client.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	status := statusFor(err)
	respondStatus(c, logger, status, err)
}

func respondStatus(c *gin.Context, logger *zap.Logger, status int, err error) {
	_ = c.Error(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError && status != http.StatusGatewayTimeout {
		logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Error(err),
		)
		if status == http.StatusInternalServerError {
			msg = "internal error"
		}
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// encodingParams reads ?encoding= and ?quality= shared by every image endpoint.
func encodingParams(c *gin.Context) (export.Encoding, int, error) {
	enc, err := export.ParseEncoding(c.Query("encoding"))
	if err != nil {
		return "", 0, err
	}
	quality, err := intQuery(c, "quality")
	if err != nil {
		return "", 0, err
	}
	return enc, quality, nil
}

func intQuery(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return n, nil
}

// paramError responds to a query/body parsing failure with 400.
func paramError(c *gin.Context, logger *zap.Logger, err error) {
	respondStatus(c, logger, http.StatusBadRequest, err)
}

// durationQuery parses a Go duration such as "10m"; empty means zero.
func durationQuery(c *gin.Context, name string) (time.Duration, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return d, nil
}
