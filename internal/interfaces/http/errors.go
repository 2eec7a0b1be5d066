package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/legal-docgen/internal/domain/entity"
)

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, entity.ErrTemplateNotFound),
		errors.Is(err, entity.ErrGenerationNotFound),
		errors.Is(err, entity.ErrReportNotFound),
		errors.Is(err, entity.ErrReferenceNotFound):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrNumberingConflict),
		errors.Is(err, entity.ErrTemplateInUse),
		errors.Is(err, entity.ErrGenerationLocked):
		return http.StatusConflict
	case errors.Is(err, entity.ErrTemplateNotActive),
		errors.Is(err, entity.ErrCorrectionTargetInvalid),
		errors.Is(err, entity.ErrInvalidDocumentType),
		errors.Is(err, entity.ErrInvalidRequest):
		return http.StatusUnprocessableEntity
	case errors.Is(err, entity.ErrRenderingFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the error envelope. Internal errors are not echoed to the client.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	_ = c.Error(err)

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	c.JSON(status, Response{Success: false, Error: message})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: message})
}
