package matching

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler provides the matching HTTP endpoint.
type Handler struct {
	svc *Service
}

// NewHandler creates a new matching handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes sets up the matching routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/match", h.FindBestAgent)
}

// FindBestAgent handles GET /match?description=...
func (h *Handler) FindBestAgent(c *gin.Context) {
	description := c.Query("description")

	match, err := h.svc.FindBestAgent(c.Request.Context(), description)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to match agents",
		})
		return
	}
	c.JSON(http.StatusOK, match)
}
