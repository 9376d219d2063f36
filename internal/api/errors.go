package api

import (
	"errors"
	"net/http"

	"github.com/epi-risk-server/internal/domain"
	"github.com/epi-risk-server/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// respondError maps pipeline errors onto the APIError envelope
func (s *Server) respondError(c *gin.Context, err error) {
	requestID := c.GetString(middleware.CorrelationIDKey)

	var (
		unknown *domain.UnknownMedicationError
		verr    *domain.ValidationError
		kbErr   *domain.KnowledgeBaseError
	)
	switch {
	case errors.As(err, &unknown):
		c.JSON(http.StatusNotFound, domain.NewAPIError(
			domain.ErrUnknownMedication, "Unknown medication", unknown.Identifier(), requestID))
	case errors.Is(err, domain.ErrMissingMedication):
		c.JSON(http.StatusBadRequest, domain.NewAPIError(
			domain.ErrInvalidInput, "Invalid input", err.Error(), requestID))
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, domain.NewAPIError(
			domain.ErrInvalidInput, "Invalid input", verr.Error(), requestID))
	case errors.As(err, &kbErr):
		s.logger.WithError(err).WithField("correlation_id", requestID).Error("Knowledge base error")
		c.JSON(http.StatusInternalServerError, domain.NewAPIError(
			domain.ErrKnowledgeBase, "Knowledge base error", kbErr.Error(), requestID))
	default:
		s.logger.WithFields(logrus.Fields{
			"correlation_id": requestID,
			"path":           c.FullPath(),
		}).WithError(err).Error("Request failed")
		c.JSON(http.StatusInternalServerError, domain.NewAPIError(
			domain.ErrInternalServer, "Internal server error", "", requestID))
	}
}

func (s *Server) badRequest(c *gin.Context, details string) {
	c.JSON(http.StatusBadRequest, domain.NewAPIError(
		domain.ErrInvalidInput, "Invalid input", details, c.GetString(middleware.CorrelationIDKey)))
}

func (s *Server) storageError(c *gin.Context, err error) {
	requestID := c.GetString(middleware.CorrelationIDKey)
	s.logger.WithError(err).WithField("correlation_id", requestID).Error("Outcome store error")
	c.JSON(http.StatusInternalServerError, domain.NewAPIError(
		domain.ErrStorage, "Outcome store error", "", requestID))
}
