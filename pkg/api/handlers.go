package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tunogya/spi/pkg/analogue"
	"github.com/tunogya/spi/pkg/explain"
	"github.com/tunogya/spi/pkg/index"
	"github.com/tunogya/spi/pkg/matcher"
	"github.com/tunogya/spi/pkg/model"
	"github.com/tunogya/spi/pkg/recommend"
	"github.com/tunogya/spi/pkg/similarity"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *Server) handleRecommend(c *gin.Context) {
	var req recommend.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}
	if !validQuery(c, req.TenantID, req.Limit) {
		return
	}

	recs, err := s.svc.Recommend(c.Request.Context(), req)
	if err != nil {
		s.failure(c, err)
		return
	}
	successResponse(c, recs)
}

type candlesRequest struct {
	recommend.Request
	Candles []model.Candle `json:"candles" binding:"required,min=2"`
}

func (s *Server) handleRecommendForCandles(c *gin.Context) {
	var req candlesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}
	if !validQuery(c, req.TenantID, req.Limit) {
		return
	}

	recs, regime, err := s.svc.RecommendForCandles(c.Request.Context(), req.Request, req.Candles)
	if err != nil {
		s.failure(c, err)
		return
	}
	successResponse(c, gin.H{"regime": regime, "recommendations": recs})
}

func (s *Server) handleSimilar(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok || !validQuery(c, c.Query("tenantId"), limit) {
		return
	}

	results, err := s.svc.FindSimilar(c.Request.Context(), similarity.Request{
		StrategyID: c.Param("id"),
		TenantID:   c.Query("tenantId"),
		Limit:      limit,
	})
	if err != nil {
		s.failure(c, err)
		return
	}
	successResponse(c, results)
}

func (s *Server) handleExplain(c *gin.Context) {
	if !validQuery(c, c.Query("tenantId"), 0) {
		return
	}
	explanation, err := s.svc.Explain(c.Request.Context(), explain.Request{
		StrategyID: c.Param("id"),
		TenantID:   c.Query("tenantId"),
	})
	if err != nil {
		s.failure(c, err)
		return
	}
	successResponse(c, explanation)
}

func (s *Server) handleMatch(c *gin.Context) {
	var req matcher.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}
	if !validQuery(c, req.TenantID, req.Limit) {
		return
	}

	resp, err := s.svc.Match(c.Request.Context(), req)
	if err != nil {
		s.failure(c, err)
		return
	}
	successResponse(c, resp)
}

func (s *Server) handleAnalogues(c *gin.Context) {
	var req analogue.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}
	if !validQuery(c, req.TenantID, req.Limit) {
		return
	}
	for _, h := range req.Horizons {
		if h <= 0 {
			errorResponse(c, http.StatusBadRequest, "Horizons must be positive")
			return
		}
	}

	resp, err := s.svc.FindAnalogues(c.Request.Context(), req)
	if err != nil {
		s.failure(c, err)
		return
	}
	successResponse(c, resp)
}

func (s *Server) handleIngestStrategy(c *gin.Context) {
	id := c.Param("id")
	if err := s.svc.IngestStrategy(c.Request.Context(), id); err != nil {
		s.failure(c, err)
		return
	}
	successResponse(c, gin.H{"strategyId": id})
}

func (s *Server) handleReindex(c *gin.Context) {
	if s.lister == nil {
		errorResponse(c, http.StatusNotImplemented, "Re-indexing is not available for this store")
		return
	}

	report, err := s.svc.ReindexAll(c.Request.Context(), s.lister, c.Query("tenantId"))
	if err != nil {
		s.failure(c, err)
		return
	}
	successResponse(c, report)
}

type regimesRequest struct {
	Snapshots []model.RegimeSnapshot `json:"snapshots" binding:"required"`
}

func (s *Server) handleIngestRegimes(c *gin.Context) {
	var req regimesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}
	for _, snap := range req.Snapshots {
		if snap.ID == "" {
			errorResponse(c, http.StatusBadRequest, "Every snapshot needs an id")
			return
		}
	}

	ctx := c.Request.Context()
	if s.recorder != nil {
		if err := s.recorder.SaveBatch(ctx, req.Snapshots); err != nil {
			s.failure(c, err)
			return
		}
	}
	if err := s.svc.IngestRegimes(ctx, req.Snapshots); err != nil {
		s.failure(c, err)
		return
	}
	successResponse(c, gin.H{"ingested": len(req.Snapshots)})
}

// validQuery rejects a missing tenant or a limit above index.MaxLimit with a 400
func validQuery(c *gin.Context, tenantID string, limit int) bool {
	if tenantID == "" {
		errorResponse(c, http.StatusBadRequest, "tenantId is required")
		return false
	}
	if limit > index.MaxLimit {
		errorResponse(c, http.StatusBadRequest, fmt.Sprintf("limit must not exceed %d", index.MaxLimit))
		return false
	}
	return true
}

// queryLimit parses the optional limit query parameter, writing a 400 on failure
func queryLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		errorResponse(c, http.StatusBadRequest, "Invalid limit")
		return 0, false
	}
	return limit, true
}
