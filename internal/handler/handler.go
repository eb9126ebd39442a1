package handler

import (
	"errors"
	"net/http"
	"strconv"

	"securetalk/internal/errs"
	"securetalk/internal/models"

	"github.com/gin-gonic/gin"
)

// requestMeta captures the request context every write path records.
func requestMeta(c *gin.Context) models.RequestMeta {
	return models.RequestMeta{
		ClientIP:   c.ClientIP(),
		UserAgent:  c.GetHeader("User-Agent"),
		DeviceInfo: c.GetHeader("X-Device-Info"),
	}
}

// fail maps domain errors onto HTTP statuses. Unknown errors become a 500
// without leaking internals.
func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errs.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, errs.ErrInvalidCredentials),
		errors.Is(err, errs.ErrInvalidToken),
		errors.Is(err, errs.ErrExpiredOrRevoked):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, errs.ErrAccountLocked),
		errors.Is(err, errs.ErrAccountDisabled),
		errors.Is(err, errs.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, errs.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, errs.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, errs.ErrInvalidState), errors.Is(err, errs.ErrExpired):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func uintParam(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return uint(v), true
}

func pagination(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
