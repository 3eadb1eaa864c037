package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/tracepipe/internal/eventbus"
	"github.com/your-org/tracepipe/internal/storage"
)

type SystemHandler struct {
	minio     *storage.MinIOStore
	publisher *eventbus.Publisher
}

func NewSystemHandler(minio *storage.MinIOStore, publisher *eventbus.Publisher) *SystemHandler {
	return &SystemHandler{minio: minio, publisher: publisher}
}

func (h *SystemHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Health is a thin alias of Healthz kept for callers that expect the
// more conventional path.
func (h *SystemHandler) Health(c *gin.Context) {
	h.Healthz(c)
}

func (h *SystemHandler) Readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if err := h.minio.Ping(ctx); err != nil {
		checks["minio"] = err.Error()
		healthy = false
	} else {
		checks["minio"] = "ok"
	}

	if err := h.publisher.Ping(); err != nil {
		checks["nats"] = err.Error()
		healthy = false
	} else {
		checks["nats"] = "ok"
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status": map[bool]string{true: "ready", false: "not ready"}[healthy],
		"checks": checks,
	})
}
