package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/epi-risk-server/internal/domain"
	"github.com/epi-risk-server/internal/ingest"
	"github.com/epi-risk-server/internal/middleware"
	"github.com/epi-risk-server/internal/outcome"
	"github.com/epi-risk-server/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ScoreRequest is the JSON body of POST /v1/score
type ScoreRequest struct {
	Variants       []map[string]interface{} `json:"variants"`
	MedicationName string                   `json:"medication_name"`
	RxNorm         string                   `json:"rxnorm"`
	Scorer         string                   `json:"scorer"`
}

// OutcomeRequest is the JSON body of POST /v1/outcomes. Tags are derived
// from Variants when variants are given.
type OutcomeRequest struct {
	PatientRef     string                   `json:"patient_ref" binding:"required"`
	MedicationName string                   `json:"medication_name"`
	RxNorm         string                   `json:"rxnorm"`
	Variants       []map[string]interface{} `json:"variants"`
	Tags           []string                 `json:"tags"`
	AdverseEvent   *bool                    `json:"adverse_event" binding:"required"`
	TraceID        string                   `json:"trace_id"`
	PredictedScore float64                  `json:"predicted_score"`
	PredictedLabel string                   `json:"predicted_label"`
	Notes          string                   `json:"notes"`
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":            "ok",
		"version":           APIVersion,
		"model_available":   s.risk.ModelAvailable(),
		"knowledge_version": s.risk.Knowledge().Version(),
	})
}

func (s *Server) handleVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"api_version":       APIVersion,
		"model_version":     s.risk.ModelVersion(),
		"knowledge_version": s.risk.Knowledge().Version(),
	})
}

func (s *Server) handleMedications(c *gin.Context) {
	kb := s.risk.Knowledge()
	c.JSON(http.StatusOK, gin.H{
		"medications":       kb.Medications(),
		"knowledge_version": kb.Version(),
	})
}

func (s *Server) handleScore(c *gin.Context) {
	var req ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err.Error())
		return
	}

	assessment, err := s.risk.Evaluate(c.Request.Context(), service.EvaluateRequest{
		Rows:           toRows(req.Variants),
		MedicationName: req.MedicationName,
		MedicationCode: req.RxNorm,
		Scorer:         domain.ScorerKind(strings.ToLower(req.Scorer)),
		TraceID:        c.GetString(middleware.CorrelationIDKey),
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, assessment)
}

func (s *Server) handleScoreFile(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.Server.MaxUploadBytes)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		s.badRequest(c, fmt.Sprintf("a CSV file is required in field \"file\": %v", err))
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		s.badRequest(c, err.Error())
		return
	}
	defer f.Close()

	rows, err := ingest.ReadCSV(f)
	if err != nil {
		s.badRequest(c, err.Error())
		return
	}

	assessment, err := s.risk.Evaluate(c.Request.Context(), service.EvaluateRequest{
		Rows:           rows,
		MedicationName: c.PostForm("medication_name"),
		MedicationCode: c.PostForm("rxnorm"),
		Scorer:         domain.ScorerKind(strings.ToLower(c.PostForm("scorer"))),
		TraceID:        c.GetString(middleware.CorrelationIDKey),
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, assessment)
}

func (s *Server) requireOutcomeStore(c *gin.Context) {
	if s.outcomes == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, domain.NewAPIError(
			domain.ErrUnavailable,
			"Outcome store not configured",
			"set outcomes.driver to sqlite or postgres",
			c.GetString(middleware.CorrelationIDKey),
		))
		return
	}
	c.Next()
}

func (s *Server) handleRecordOutcome(c *gin.Context) {
	var req OutcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err.Error())
		return
	}

	drug, tags, err := s.risk.PathwayTags(toRows(req.Variants), req.MedicationName, req.RxNorm)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if len(req.Variants) == 0 {
		tags = make([]domain.FunctionalTag, 0, len(req.Tags))
		for _, t := range req.Tags {
			tags = append(tags, domain.FunctionalTag(strings.TrimSpace(t)))
		}
	}

	o := &outcome.Outcome{
		TraceID:        req.TraceID,
		PatientRef:     req.PatientRef,
		DrugKey:        drug.Key,
		DrugName:       drug.Name,
		Tags:           tags,
		PredictedScore: req.PredictedScore,
		PredictedLabel: domain.RiskLabel(req.PredictedLabel),
		AdverseEvent:   *req.AdverseEvent,
		Notes:          req.Notes,
	}
	if err := s.outcomes.Save(c.Request.Context(), o); err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			s.respondError(c, err)
			return
		}
		s.storageError(c, err)
		return
	}

	s.logger.WithFields(logrus.Fields{
		"correlation_id": c.GetString(middleware.CorrelationIDKey),
		"outcome_id":     o.ID,
		"medication":     o.DrugName,
		"adverse_event":  o.AdverseEvent,
	}).Info("Outcome recorded")
	c.JSON(http.StatusCreated, o)
}

func (s *Server) handleListOutcomes(c *gin.Context) {
	limit, err := queryInt(c, "limit", defaultListLimit)
	if err != nil || limit <= 0 || limit > maxListLimit {
		s.badRequest(c, fmt.Sprintf("limit must be between 1 and %d", maxListLimit))
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		s.badRequest(c, "offset must be a non-negative integer")
		return
	}

	ctx := c.Request.Context()
	list, err := s.outcomes.List(ctx, limit, offset)
	if err != nil {
		s.storageError(c, err)
		return
	}
	total, err := s.outcomes.Count(ctx)
	if err != nil {
		s.storageError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"outcomes": list,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

func (s *Server) handleExportOutcomes(c *gin.Context) {
	c.Header("Content-Type", "application/json")
	c.Header("Content-Disposition", `attachment; filename="outcomes.json"`)
	if err := s.outcomes.ExportJSON(c.Request.Context(), c.Writer); err != nil {
		s.storageError(c, err)
	}
}

func (s *Server) handleReloadKnowledge(c *gin.Context) {
	tables, err := s.risk.ReloadKnowledge()
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":            "reloaded",
		"knowledge_version": tables.Version(),
		"tables":            tables.Stats(),
	})
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

// toRows flattens JSON variant objects into raw rows. Null values are
// dropped and scalars are rendered as text.
func toRows(variants []map[string]interface{}) []domain.RawVariantRow {
	rows := make([]domain.RawVariantRow, 0, len(variants))
	for _, v := range variants {
		row := make(domain.RawVariantRow, len(v))
		for k, val := range v {
			if val == nil {
				continue
			}
			row[k] = fmt.Sprint(val)
		}
		rows = append(rows, row)
	}
	return rows
}
