package gateway

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timelinkhq/tlcore/internal/domain"
)

// statusFor maps the domain error taxonomy onto HTTP codes. Validation
// failures are 400, ownership and account-state failures 403, state
// conflicts 409, economic rejections 422.
func statusFor(err error) int {
	switch {
	case domain.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrForbiddenAccount),
		errors.Is(err, domain.ErrSuspendedAccount),
		errors.Is(err, domain.ErrSelfDispute):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrDuplicateDispute),
		errors.Is(err, domain.ErrEscrowAlreadyDisputed),
		errors.Is(err, domain.ErrAlreadyResolved),
		errors.Is(err, domain.ErrAlreadyForfeited),
		errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	case domain.IsPolicyViolation(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (g *Gateway) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		g.log.WithError(err).WithField("path", c.FullPath()).Error("request failed")
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
