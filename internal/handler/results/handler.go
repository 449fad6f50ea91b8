package results

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/labalert/internal/classification"
	"github.com/jwalitptl/labalert/internal/export"
	"github.com/jwalitptl/labalert/internal/model"
	"github.com/jwalitptl/labalert/internal/service/results"
	"github.com/jwalitptl/labalert/pkg/errors"
	"github.com/jwalitptl/labalert/pkg/httputil"
)

const maxLimit = 1000

type Handler struct {
	svc           results.Service
	recentDefault int
}

func NewHandler(svc results.Service, recentDefault int) *Handler {
	if recentDefault <= 0 {
		recentDefault = 10
	}
	return &Handler{svc: svc, recentDefault: recentDefault}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	res := r.Group("/results")
	{
		res.POST("", h.AddResult)
		res.POST("/records", h.SubmitResult)
		res.GET("/patients/:name", h.PatientResults)
		res.GET("/critical", h.CriticalResults)
		res.GET("/recent", h.RecentResults)
		res.GET("/statistics", h.Statistics)
		res.GET("/counts", h.Counts)
		res.GET("/status", h.Status)
		res.GET("/rules", h.Rules)
		res.GET("/export", h.Export)
	}
}

func (h *Handler) AddResult(c *gin.Context) {
	var req model.AddResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err).SetType(gin.ErrorTypeBind)
		return
	}

	summary := h.svc.AddResult(c.Request.Context(), strings.TrimSpace(req.PatientName), strings.TrimSpace(req.TestType), *req.Value)
	httputil.RespondWithCreated(c, model.SummaryResponse{Summary: summary})
}

func (h *Handler) SubmitResult(c *gin.Context) {
	var req model.SubmitResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err).SetType(gin.ErrorTypeBind)
		return
	}

	summary := h.svc.SubmitResult(c.Request.Context(), req.Record())
	httputil.RespondWithCreated(c, model.SummaryResponse{Summary: summary})
}

func (h *Handler) PatientResults(c *gin.Context) {
	httputil.RespondWithSuccess(c, h.svc.PatientResults(c.Request.Context(), c.Param("name")))
}

func (h *Handler) CriticalResults(c *gin.Context) {
	httputil.RespondWithSuccess(c, h.svc.CriticalResults(c.Request.Context()))
}

func (h *Handler) RecentResults(c *gin.Context) {
	limit, err := h.limit(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, h.svc.RecentResults(c.Request.Context(), limit))
}

func (h *Handler) Statistics(c *gin.Context) {
	httputil.RespondWithSuccess(c, h.svc.Statistics(c.Request.Context()))
}

func (h *Handler) Counts(c *gin.Context) {
	ctx := c.Request.Context()
	httputil.RespondWithSuccess(c, model.CountsResponse{
		Total:         h.svc.TotalCount(ctx),
		Critical:      h.svc.CriticalCount(ctx),
		PendingAlerts: h.svc.PendingAlertCount(ctx),
	})
}

func (h *Handler) Status(c *gin.Context) {
	httputil.RespondWithSuccess(c, model.SummaryResponse{Summary: h.svc.SystemStatus(c.Request.Context())})
}

func (h *Handler) Rules(c *gin.Context) {
	httputil.RespondWithSuccess(c, classification.Rules())
}

// Export returns the recent window as an xlsx workbook.
func (h *Handler) Export(c *gin.Context) {
	limit, err := h.limit(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteResults(&buf, h.svc.RecentResults(c.Request.Context(), limit)); err != nil {
		_ = c.Error(errors.Internal(err))
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.FileName("recent")))
	c.Data(http.StatusOK, export.ContentType, buf.Bytes())
}

func (h *Handler) limit(c *gin.Context) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return h.recentDefault, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.BadRequest("limit must be an integer", err)
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return limit, nil
}
