package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	reerrors "reagent/internal/errors"
	"reagent/internal/orchestrator"
)

type predictRequest struct {
	Question string `json:"question"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// handlePredict answers a query with the slim response shape: answer,
// confidence and meta, without the plan/verification payload.
func (s *Server) handlePredict(c *gin.Context) {
	resp, ok := s.runPredict(c)
	if !ok {
		return
	}
	// Detailed fields stay off the slim endpoint.
	resp.Plan = nil
	resp.Results = nil
	resp.Verifications = nil
	resp.Trace = nil
	c.JSON(http.StatusOK, resp)
}

// handlePredictDetailed answers with the full payload: plan, step
// results, verifications and the execution trace when enabled.
func (s *Server) handlePredictDetailed(c *gin.Context) {
	resp, ok := s.runPredict(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) runPredict(c *gin.Context) (*orchestrator.Response, bool) {
	var req predictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{
			Error: "request body must be JSON with a \"question\" field",
			Kind:  string(reerrors.KindInput),
		})
		return nil, false
	}

	resp, err := s.orch.Process(c.Request.Context(), req.Question)
	if err != nil {
		kind := reerrors.KindOf(err)
		s.logger.Warn("predict failed (%s): %v", kind, err)
		c.JSON(statusForKind(kind), errorResponse{
			Error: err.Error(),
			Kind:  string(kind),
		})
		return nil, false
	}
	return resp, true
}

// statusForKind maps failure categories onto HTTP statuses.
func statusForKind(kind reerrors.Kind) int {
	switch kind {
	case reerrors.KindInput:
		return http.StatusBadRequest
	case reerrors.KindCapabilityMiss:
		return http.StatusNotFound
	case reerrors.KindDeadline:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

type healthResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Requests      int64   `json:"requests"`
	Errors        int64   `json:"errors"`
	Tools         int     `json:"tools"`
	MemoryTurns   int     `json:"memory_turns"`
	Timestamp     string  `json:"timestamp"`
}

func (s *Server) handleHealth(c *gin.Context) {
	total, errs := s.orch.Stats()
	c.JSON(http.StatusOK, healthResponse{
		Status:        "ok",
		UptimeSeconds: s.orch.Uptime().Seconds(),
		Requests:      total,
		Errors:        errs,
		Tools:         s.orch.ToolCount(),
		MemoryTurns:   s.orch.MemoryLen(),
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	})
}
