package handlers

import (
	"net/http"
	"strconv"

	"catalog-service/internal/apperrors"
	"catalog-service/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// respondError writes err as an ErrorResponse with the status of its kind.
// Errors that are not classified are reported as internal errors without
// leaking their text.
func respondError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	message := err.Error()
	if apperrors.KindOf(err) == "" || apperrors.KindOf(err) == apperrors.KindConfiguration {
		message = "An unexpected error occurred"
	}
	_ = c.Error(err)
	c.JSON(status, models.ErrorResponse{
		Success: false,
		Error: models.Error{
			Code:    apperrors.CodeOf(err),
			Message: message,
		},
	})
}

func respondValidation(c *gin.Context, code, message, field string) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Success: false,
		Error: models.Error{
			Code:    code,
			Message: message,
			Field:   field,
		},
	})
}

// pathUUID parses the named path parameter, writing a 400 when it is not a UUID.
func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		respondValidation(c, "INVALID_ID", "Invalid "+name+" format", name)
		return uuid.Nil, false
	}
	return id, true
}

// queryInt reads a positive integer query parameter, falling back to def.
func queryInt(c *gin.Context, name string, def int) int {
	n, err := strconv.Atoi(c.Query(name))
	if err != nil || n < 1 {
		return def
	}
	return n
}
