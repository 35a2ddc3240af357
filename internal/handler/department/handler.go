package department

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/itsmeEn/New-MediSync-sub001/internal/middleware"
	"github.com/itsmeEn/New-MediSync-sub001/internal/model"
	"github.com/itsmeEn/New-MediSync-sub001/internal/repository"
	apperrors "github.com/itsmeEn/New-MediSync-sub001/pkg/errors"
)

type Handler struct {
	repo repository.DepartmentRepository
}

func NewHandler(repo repository.DepartmentRepository) *Handler {
	return &Handler{repo: repo}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, auth *middleware.AuthMiddleware) {
	d := r.Group("/departments")
	{
		d.GET("", h.List)
		d.POST("", auth.RequireRole("admin"), h.Create)
	}
}

func (h *Handler) Create(c *gin.Context) {
	var req model.CreateDepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.Validation(err.Error(), err))
		return
	}

	dept := &model.Department{
		Code: req.Code,
		Name: req.Name,
	}
	if err := h.repo.Create(c.Request.Context(), dept); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			c.Error(apperrors.Conflict("department code already exists", err))
			return
		}
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, dept)
}

func (h *Handler) List(c *gin.Context) {
	depts, err := h.repo.List(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, depts)
}
