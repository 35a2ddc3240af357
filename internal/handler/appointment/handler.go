package appointment

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/itsmeEn/New-MediSync-sub001/internal/middleware"
	"github.com/itsmeEn/New-MediSync-sub001/internal/model"
	"github.com/itsmeEn/New-MediSync-sub001/internal/service/appointment"
	"github.com/itsmeEn/New-MediSync-sub001/internal/service/flow"
	apperrors "github.com/itsmeEn/New-MediSync-sub001/pkg/errors"
)

type Handler struct {
	flowSvc *flow.Service
	apptSvc *appointment.Service
}

func NewHandler(flowSvc *flow.Service, apptSvc *appointment.Service) *Handler {
	return &Handler{
		flowSvc: flowSvc,
		apptSvc: apptSvc,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, auth *middleware.AuthMiddleware) {
	a := r.Group("/appointments")
	{
		a.POST("/schedule", auth.RequireRole("patient"), h.Schedule)
		a.GET("", auth.RequireRole("patient"), h.ListMine)
		a.GET("/:id", h.Get)
		a.POST("/:id/reschedule", h.Reschedule)
		a.POST("/:id/cancel", h.Cancel)
		a.POST("/:id/notify-patient", auth.RequireRole("nurse", "admin"), h.NotifyPatient)
		a.POST("/:id/finish", auth.RequireRole("doctor"), h.Finish)
		a.POST("/:id/arrived", auth.RequireRole("nurse", "admin"), h.MarkArrived)
	}
}

func (h *Handler) Schedule(c *gin.Context) {
	var req model.ScheduleAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.Validation(err.Error(), err))
		return
	}

	principal := middleware.Principal(c)
	appt, err := h.flowSvc.Schedule(c.Request.Context(), principal.UserID, &req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, appt)
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.Error(apperrors.Validation("invalid appointment ID", err))
		return
	}

	appt, err := h.apptSvc.Get(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, appt)
}

func (h *Handler) ListMine(c *gin.Context) {
	principal := middleware.Principal(c)
	appts, err := h.apptSvc.ListForPatient(c.Request.Context(), principal.UserID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, appts)
}

func (h *Handler) Reschedule(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.Error(apperrors.Validation("invalid appointment ID", err))
		return
	}

	var req model.RescheduleAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.Validation(err.Error(), err))
		return
	}

	appt, err := h.apptSvc.Reschedule(c.Request.Context(), id, req.NewWhen, req.Reason)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, appt)
}

func (h *Handler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.Error(apperrors.Validation("invalid appointment ID", err))
		return
	}

	var req model.CancelAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.Validation(err.Error(), err))
		return
	}

	principal := middleware.Principal(c)
	appt, err := h.apptSvc.Cancel(c.Request.Context(), id, principal.UserID, req.Reason)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, appt)
}

func (h *Handler) NotifyPatient(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.Error(apperrors.Validation("invalid appointment ID", err))
		return
	}

	notif, err := h.apptSvc.NotifyPatient(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, notif)
}

func (h *Handler) Finish(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.Error(apperrors.Validation("invalid appointment ID", err))
		return
	}

	principal := middleware.Principal(c)
	appt, err := h.flowSvc.Finish(c.Request.Context(), id, principal.UserID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, appt)
}

func (h *Handler) MarkArrived(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.Error(apperrors.Validation("invalid appointment ID", err))
		return
	}

	if err := h.apptSvc.MarkArrived(c.Request.Context(), id); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}
