package archive

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/itsmeEn/New-MediSync-sub001/internal/middleware"
	"github.com/itsmeEn/New-MediSync-sub001/internal/model"
	"github.com/itsmeEn/New-MediSync-sub001/internal/service/archive"
	apperrors "github.com/itsmeEn/New-MediSync-sub001/pkg/errors"
)

type Handler struct {
	svc *archive.Service
}

func NewHandler(svc *archive.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, auth *middleware.AuthMiddleware) {
	a := r.Group("/archives", auth.RequireRole("doctor", "nurse", "admin"))
	{
		a.GET("", h.List)
		a.POST("/create", h.Create)
		a.GET("/logs", auth.RequireRole("admin"), h.Logs)
		a.GET("/:id", h.Get)
		a.PUT("/:id", h.Update)
		a.POST("/:id/unarchive", h.Unarchive)
		a.GET("/:id/export", h.Export)
	}
}

func (h *Handler) Create(c *gin.Context) {
	var req model.CreateArchiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.Validation(err.Error(), err))
		return
	}

	principal := middleware.Principal(c)
	rec, err := h.svc.Create(c.Request.Context(), principal.UserID, &req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.Error(apperrors.Validation("invalid archive ID", err))
		return
	}

	principal := middleware.Principal(c)
	rec, err := h.svc.Get(c.Request.Context(), principal.UserID, id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.Error(apperrors.Validation("invalid archive ID", err))
		return
	}

	var req model.UpdateArchiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.Validation(err.Error(), err))
		return
	}

	principal := middleware.Principal(c)
	rec, err := h.svc.Update(c.Request.Context(), principal.UserID, id, &req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *Handler) Unarchive(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.Error(apperrors.Validation("invalid archive ID", err))
		return
	}

	principal := middleware.Principal(c)
	rec, err := h.svc.Unarchive(c.Request.Context(), principal.UserID, id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// Export streams the canonical payload, the exact bytes held in the
// mirror directories.
func (h *Handler) Export(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.Error(apperrors.Validation("invalid archive ID", err))
		return
	}

	principal := middleware.Principal(c)
	payload, err := h.svc.Export(c.Request.Context(), principal.UserID, id)
	if err != nil {
		c.Error(err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=archive_%s.json", id))
	c.Data(http.StatusOK, "application/json", payload)
}

func (h *Handler) List(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		c.Error(err)
		return
	}

	principal := middleware.Principal(c)
	records, err := h.svc.List(c.Request.Context(), principal.UserID, filter)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records, "count": len(records)})
}

func (h *Handler) Logs(c *gin.Context) {
	filter := &model.ArchiveLogFilter{}
	if v := c.Query("doctor_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			c.Error(apperrors.Validation("invalid doctor_id", err))
			return
		}
		filter.PrincipalID = &id
	}
	if v := c.Query("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			c.Error(apperrors.Validation("invalid patient_id", err))
			return
		}
		filter.PatientID = &id
	}
	if v := c.Query("record_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			c.Error(apperrors.Validation("invalid record_id", err))
			return
		}
		filter.RecordID = &id
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			c.Error(apperrors.Validation("invalid limit", err))
			return
		}
		filter.Limit = limit
	}

	logs, err := h.svc.Logs(c.Request.Context(), filter)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs, "count": len(logs)})
}

func parseFilter(c *gin.Context) (*model.ArchiveFilter, error) {
	filter := &model.ArchiveFilter{
		PatientName:    c.Query("patient_name"),
		AssessmentType: c.Query("assessment_type"),
		Condition:      c.Query("condition"),
	}

	if v := c.Query("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, apperrors.Validation("invalid patient_id", err)
		}
		filter.PatientID = &id
	}
	if v := c.Query("start"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, apperrors.Validation("invalid start time, expected RFC3339", err)
		}
		filter.Start = &t
	}
	if v := c.Query("end"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, apperrors.Validation("invalid end time, expected RFC3339", err)
		}
		filter.End = &t
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return nil, apperrors.Validation("invalid limit", err)
		}
		filter.Limit = limit
	}
	if v := c.Query("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil {
			return nil, apperrors.Validation("invalid offset", err)
		}
		filter.Offset = offset
	}
	return filter, nil
}
