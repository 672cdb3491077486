package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lerim-dev/lerim/internal/errs"
)

// writeError maps a service-layer error to a JSON error response,
// generalized from the teacher's mapServiceError (pkg/api/errors.go) from
// echo.HTTPError to gin's c.JSON(status, gin.H{...}) idiom.
func writeError(c *gin.Context, err error) {
	status, message := classifyError(err)
	if status == http.StatusInternalServerError {
		slog.Error("unexpected httpapi error", "error", err)
	}
	c.JSON(status, gin.H{"error": message})
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, errs.ErrSessionNotFound), errors.Is(err, errs.ErrJobNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, errs.ErrLockBusy):
		return http.StatusConflict, err.Error()
	case errors.Is(err, errs.ErrWindowConflict):
		return http.StatusBadRequest, err.Error()
	default:
		var boundaryErr *errs.BoundaryError
		if errors.As(err, &boundaryErr) {
			return http.StatusBadRequest, err.Error()
		}
		var configErr *errs.ConfigError
		if errors.As(err, &configErr) {
			return http.StatusBadRequest, err.Error()
		}
		return http.StatusInternalServerError, "internal server error"
	}
}

// readOnly rejects PUT/DELETE and any explicitly reflect-only route with
// 403, matching §6 "PUT/DELETE ... return 403 read-only".
func readOnly(c *gin.Context) {
	c.JSON(http.StatusForbidden, gin.H{"error": "read-only"})
	c.Abort()
}
