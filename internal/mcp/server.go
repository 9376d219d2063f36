// Package mcp exposes the risk pipeline as Model Context Protocol tools.
package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/epi-risk-server/internal/domain"
	"github.com/epi-risk-server/internal/outcome"
	"github.com/epi-risk-server/internal/service"
)

// Server wraps the MCP SDK server around a RiskService.
type Server struct {
	MCPServer *sdkmcp.Server

	risk     *service.RiskService
	outcomes outcome.Store
	logger   *logrus.Logger
}

// NewServer registers the pipeline tools. record_outcome is only offered
// when outcomes is non-nil.
func NewServer(cfg domain.MCPConfig, risk *service.RiskService, outcomes outcome.Store, logger *logrus.Logger) *Server {
	s := &Server{
		risk:     risk,
		outcomes: outcomes,
		logger:   logger,
	}
	s.MCPServer = sdkmcp.NewServer(
		&sdkmcp.Implementation{Name: cfg.ServerName, Version: cfg.ServerVersion},
		nil,
	)
	s.registerTools()
	return s
}

// Run serves over stdin/stdout until ctx is cancelled or the client disconnects
func (s *Server) Run(ctx context.Context) error {
	s.logger.WithFields(logrus.Fields{
		"knowledge_version": s.risk.Knowledge().Version(),
		"model_available":   s.risk.ModelAvailable(),
		"outcomes":          s.outcomes != nil,
	}).Info("Starting MCP server on stdio")
	return s.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "score_medication_risk",
		Description: "Score adverse drug response risk for one medication from a patient's variant rows (rsID + genotype or gene + star diplotype). Returns a score in [0,1], a low/moderate/high label, rationales and suggested alternatives.",
	}, s.handleScore)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "normalize_variants",
		Description: "Normalize raw variant rows into canonical rsID/genotype and gene/star records without scoring. Reports how many rows were dropped.",
	}, s.handleNormalize)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "list_medications",
		Description: "List the medications the knowledge base can score, with their RxNorm codes and pathway genes.",
	}, s.handleListMedications)

	if s.outcomes != nil {
		sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
			Name:        "record_outcome",
			Description: "Record whether a patient had an adverse event on a medication. Recorded outcomes are used to train the ML scorer.",
		}, s.handleRecordOutcome)
	}
}
