package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/tracepipe/internal/analysis"
	"github.com/your-org/tracepipe/internal/storage"
)

type CropsHandler struct {
	minio    *storage.MinIOStore
	registry *analysis.Registry
}

func NewCropsHandler(minio *storage.MinIOStore, registry *analysis.Registry) *CropsHandler {
	return &CropsHandler{minio: minio, registry: registry}
}

// Get handles GET /v1/analyses/:id/crops/:target_id, proxying the best
// crop image for a matched target out of object storage.
func (h *CropsHandler) Get(c *gin.Context) {
	id := c.Param("id")
	targetID := c.Param("target_id")

	result, err := h.registry.Result(id)
	switch {
	case errors.Is(err, analysis.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "analysis not found"})
		return
	case errors.Is(err, analysis.ErrNotReady):
		c.JSON(http.StatusBadRequest, gin.H{"error": "analysis result not ready"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	key, ok := result.CropKeys[targetID]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no crop for target"})
		return
	}

	data, err := h.minio.GetObject(c.Request.Context(), key)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "crop not found in storage"})
		return
	}
	c.Data(http.StatusOK, "image/jpeg", data)
}
