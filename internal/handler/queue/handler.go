package queue

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/itsmeEn/New-MediSync-sub001/internal/middleware"
	"github.com/itsmeEn/New-MediSync-sub001/internal/model"
	"github.com/itsmeEn/New-MediSync-sub001/internal/service/flow"
	"github.com/itsmeEn/New-MediSync-sub001/internal/service/notification"
	"github.com/itsmeEn/New-MediSync-sub001/internal/service/queue"
	apperrors "github.com/itsmeEn/New-MediSync-sub001/pkg/errors"
)

type Handler struct {
	flowSvc  *flow.Service
	queueSvc *queue.Service
	notifSvc notification.Service
}

func NewHandler(flowSvc *flow.Service, queueSvc *queue.Service, notifSvc notification.Service) *Handler {
	return &Handler{
		flowSvc:  flowSvc,
		queueSvc: queueSvc,
		notifSvc: notifSvc,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, auth *middleware.AuthMiddleware) {
	q := r.Group("/queue")
	{
		q.POST("/status", auth.RequireRole("nurse", "admin"), h.SetStatus)
		q.POST("/join", auth.RequireRole("patient"), h.Join)
		q.POST("/start-processing", auth.RequireRole("nurse", "admin"), h.StartProcessing)
		q.POST("/notifications/confirm", h.ConfirmNotification)
		q.GET("/patients", h.ListPatients)
		q.POST("/entries/:id/serve", auth.RequireRole("nurse", "admin", "doctor"), h.ServeEntry)
		q.POST("/entries/:id/remove", auth.RequireRole("nurse", "admin"), h.RemoveEntry)
	}
}

// SetStatus opens or closes a department queue.
func (h *Handler) SetStatus(c *gin.Context) {
	var req model.QueueStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.Validation(err.Error(), err))
		return
	}

	dept, err := h.queueSvc.SetOpen(c.Request.Context(), req.Department, *req.Open)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dept)
}

func (h *Handler) Join(c *gin.Context) {
	var req model.JoinQueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.Validation(err.Error(), err))
		return
	}

	principal := middleware.Principal(c)
	resp, _, err := h.flowSvc.Join(c.Request.Context(), principal.UserID, req.Department, req.PriorityLevel)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) StartProcessing(c *gin.Context) {
	var req model.StartProcessingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.Validation(err.Error(), err))
		return
	}

	snapshot, notif, err := h.queueSvc.StartNext(c.Request.Context(), req.Department)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"queue_status": snapshot, "notification": notif})
}

func (h *Handler) ConfirmNotification(c *gin.Context) {
	var req model.ConfirmNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.Validation(err.Error(), err))
		return
	}

	notif, err := h.notifSvc.Confirm(c.Request.Context(), req.NotificationID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, notif)
}

func (h *Handler) ListPatients(c *gin.Context) {
	department := c.Query("department")
	if department == "" {
		c.Error(apperrors.Validation("department query parameter is required", nil))
		return
	}

	snapshot, err := h.queueSvc.List(c.Request.Context(), department)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (h *Handler) ServeEntry(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.Error(apperrors.Validation("invalid queue entry ID", err))
		return
	}

	entry, err := h.queueSvc.MarkServed(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *Handler) RemoveEntry(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.Error(apperrors.Validation("invalid queue entry ID", err))
		return
	}

	var req model.RemoveEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.Validation(err.Error(), err))
		return
	}

	entry, err := h.queueSvc.Remove(c.Request.Context(), id, req.Reason)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, entry)
}
