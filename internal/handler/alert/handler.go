package alert

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/labalert/internal/model"
	"github.com/jwalitptl/labalert/pkg/errors"
	"github.com/jwalitptl/labalert/pkg/httputil"
)

// Queue is the local acknowledgment queue of critical results.
type Queue interface {
	PendingCount() int
	HasPending() bool
	ListPending() []*model.ResultRecord
	Acknowledge(patientID string) int
	Clear() int
	GenerateTestAlerts(ctx context.Context, count int)
}

type Handler struct {
	queue Queue
}

func NewHandler(queue Queue) *Handler {
	return &Handler{queue: queue}
}

// RegisterRoutes adds the read-only alert routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	alerts := r.Group("/alerts")
	{
		alerts.GET("", h.ListPending)
		alerts.GET("/count", h.Count)
	}
}

// RegisterProtectedRoutes adds the routes that change the queue. r must
// already require an operator token.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	alerts := r.Group("/alerts")
	{
		alerts.POST("/:patientId/acknowledge", h.Acknowledge)
		alerts.DELETE("", h.Clear)
		alerts.POST("/simulate", h.Simulate)
	}
}

func (h *Handler) ListPending(c *gin.Context) {
	pending := h.queue.ListPending()
	httputil.RespondWithSuccess(c, model.PendingAlertsResponse{
		Count:      len(pending),
		HasPending: len(pending) > 0,
		Alerts:     pending,
	})
}

func (h *Handler) Count(c *gin.Context) {
	n := h.queue.PendingCount()
	httputil.RespondWithSuccess(c, model.PendingAlertsResponse{
		Count:      n,
		HasPending: n > 0,
	})
}

func (h *Handler) Acknowledge(c *gin.Context) {
	// Matching is exact, so the id is used as sent.
	patientID := c.Param("patientId")
	if patientID == "" {
		_ = c.Error(errors.BadRequest("patient id is required", nil))
		return
	}

	removed := h.queue.Acknowledge(patientID)
	httputil.RespondWithSuccess(c, gin.H{
		"patient_id": patientID,
		"removed":    removed,
		"remaining":  h.queue.PendingCount(),
	})
}

func (h *Handler) Clear(c *gin.Context) {
	httputil.RespondWithSuccess(c, gin.H{"removed": h.queue.Clear()})
}

// Simulate queues synthetic critical results for drills.
func (h *Handler) Simulate(c *gin.Context) {
	var req model.SimulateAlertsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err).SetType(gin.ErrorTypeBind)
		return
	}

	h.queue.GenerateTestAlerts(c.Request.Context(), req.Count)
	httputil.RespondWithCreated(c, model.PendingAlertsResponse{
		Count:      h.queue.PendingCount(),
		HasPending: h.queue.HasPending(),
	})
}
