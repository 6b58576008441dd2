package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pokerhall/internal/coordinator"
)

// statusForKind maps a coordinator error kind to the HTTP status spec.md
// §6/§7 assigns it.
func statusForKind(kind coordinator.Kind) int {
	switch kind {
	case coordinator.KindNotFound:
		return http.StatusNotFound
	case coordinator.KindUnauthorized:
		return http.StatusUnauthorized
	case coordinator.KindInvalidState:
		return http.StatusConflict
	case coordinator.KindInvalidArgument:
		return http.StatusBadRequest
	case coordinator.KindConflict:
		return http.StatusConflict
	case coordinator.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders a coordinator *Error as the wire error body, or a
// generic 500 for an error this layer doesn't recognize (should not
// happen — every coordinator method returns *coordinator.Error).
func writeError(c *gin.Context, err *coordinator.Error) {
	c.JSON(statusForKind(err.Kind), gin.H{
		"error": gin.H{
			"kind":    string(err.Kind),
			"message": err.Message,
		},
	})
}
