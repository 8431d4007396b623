package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/coinrush-app/coinrush-backend/internal/health"
)

// HealthHandler reports dependency health for load balancers and monitoring.
type HealthHandler struct {
	checker *health.Checker
}

func NewHealthHandler(checker *health.Checker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

func (h *HealthHandler) Check(c *gin.Context) {
	status := h.checker.Check(c.Request.Context())

	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, Envelope{Success: status.Healthy, Data: status})
}
