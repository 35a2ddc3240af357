package notification

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/itsmeEn/New-MediSync-sub001/internal/middleware"
	"github.com/itsmeEn/New-MediSync-sub001/internal/service/notification"
	apperrors "github.com/itsmeEn/New-MediSync-sub001/pkg/errors"
)

type Handler struct {
	svc notification.Service
}

func NewHandler(svc notification.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/notifications", h.ListMine)
}

// ListMine returns the principal's recent notifications, newest first.
func (h *Handler) ListMine(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			c.Error(apperrors.Validation("invalid limit", err))
			return
		}
		limit = parsed
	}

	principal := middleware.Principal(c)
	notifs, err := h.svc.ListForRecipient(c.Request.Context(), principal.UserID, limit)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifs, "count": len(notifs)})
}
