package handlers

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/emilythestrangee/campus-events/backend/internal/apperrors"
	"github.com/emilythestrangee/campus-events/backend/internal/auth"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
)

func respondOK(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func respondError(c *gin.Context, err error) {
	apperrors.Abort(c, err)
}

// paramID parses a positive integer path parameter.
func paramID(c *gin.Context, name, what string) (int, error) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		return 0, apperrors.Validation("Invalid " + what + " ID")
	}
	return id, nil
}

// currentUser returns the authenticated user id, writing a 401 when there is
// none.
func currentUser(c *gin.Context) (int, bool) {
	id, ok := auth.UserID(c)
	if !ok {
		respondError(c, apperrors.Unauthenticated("User not authenticated"))
	}
	return id, ok
}

func pagination(c *gin.Context) (limit, offset int) {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	offset, err = strconv.Atoi(c.Query("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

func bindJSON(c *gin.Context, v any) error {
	if err := c.ShouldBindJSON(v); err != nil {
		return apperrors.Validation("Invalid request body: " + err.Error())
	}
	return nil
}

// lookupError maps a failed single-row lookup.
func lookupError(err error, notFound, failed string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NotFound(notFound)
	}
	return apperrors.Internal(failed, err)
}
