package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/tracepipe/internal/analysis"
	"github.com/your-org/tracepipe/internal/models"
	"github.com/your-org/tracepipe/pkg/dto"
)

type AnalysisHandler struct {
	registry    *analysis.Registry
	fpsInterval float64 // default sample interval when the request omits one
}

func NewAnalysisHandler(registry *analysis.Registry, defaultFPSInterval float64) *AnalysisHandler {
	return &AnalysisHandler{registry: registry, fpsInterval: defaultFPSInterval}
}

// Start handles POST /analyze_video.
func (h *AnalysisHandler) Start(c *gin.Context) {
	var req dto.StartAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	interval := req.FPSInterval
	if interval <= 0 {
		interval = h.fpsInterval
	}

	id := h.registry.Start(models.AnalysisParams{
		VideoPath:    req.VideoPath,
		FPSInterval:  interval,
		StopOnDetect: req.StopOnDetect,
		Location:     req.Location,
		Date:         req.Date,
	})

	c.JSON(http.StatusAccepted, dto.StartAnalysisResponse{
		AnalysisID: id,
		Status:     string(models.StatusProcessing),
	})
}

// Status handles GET /analysis_status/{id}.
func (h *AnalysisHandler) Status(c *gin.Context) {
	id := c.Param("id")
	state, ok := h.registry.Status(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "analysis not found"})
		return
	}
	c.JSON(http.StatusOK, dto.AnalysisStatusResponse{
		AnalysisID:      state.AnalysisID,
		Status:          state.Status,
		ProgressPercent: state.ProgressPercent,
		Phase:           state.Phase,
		Stats:           state.Stats,
		ErrorMessage:    state.ErrorMessage,
	})
}

// Result handles GET /analysis_result/{id}.
func (h *AnalysisHandler) Result(c *gin.Context) {
	id := c.Param("id")
	result, err := h.registry.Result(id)
	switch {
	case errors.Is(err, analysis.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "analysis not found"})
	case errors.Is(err, analysis.ErrNotReady):
		c.JSON(http.StatusBadRequest, gin.H{"error": "analysis result not ready"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, dto.AnalysisResultResponse{AnalysisID: id, Result: *result})
	}
}

// Delete handles DELETE /analysis/{id}.
func (h *AnalysisHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.registry.Delete(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "analysis not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// List handles GET /v1/analyses.
func (h *AnalysisHandler) List(c *gin.Context) {
	states := h.registry.List()
	summaries := make([]dto.AnalysisSummary, 0, len(states))
	for _, s := range states {
		summaries = append(summaries, dto.AnalysisSummary{
			AnalysisID:      s.AnalysisID,
			Status:          s.Status,
			ProgressPercent: s.ProgressPercent,
			StartedAt:       s.StartedAt,
			FinishedAt:      s.FinishedAt,
		})
	}
	c.JSON(http.StatusOK, dto.AnalysisListResponse{Analyses: summaries})
}

// OptimizationStats handles GET /optimization_stats.
func (h *AnalysisHandler) OptimizationStats(c *gin.Context) {
	n, sampled, skipped, avgQuality := h.registry.OptimizationStats()
	resp := dto.OptimizationStatsResponse{
		TotalAnalyses:      n,
		TotalFramesSampled: sampled,
		TotalFramesSkipped: skipped,
		AvgQualityAllRuns:  avgQuality,
	}
	if sampled > 0 {
		resp.OverallSkipRate = float64(skipped) / float64(sampled)
	}
	c.JSON(http.StatusOK, resp)
}
