package registry

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/zialiel/agora/internal/identity"
	"github.com/zialiel/agora/internal/logging"
)

// Handler provides HTTP handlers for the registry API
type Handler struct {
	svc *Service
}

// NewHandler creates a new registry handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes sets up the registry routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/agents", h.RegisterAgent)
	r.PATCH("/agents", h.UpdateAgent)
	r.GET("/agents", h.ListAgents)
	r.GET("/agents/:id", h.GetAgent)
}

// RegisterAgent handles POST /agents
func (h *Handler) RegisterAgent(c *gin.Context) {
	ctx := c.Request.Context()
	logger := logging.L(ctx)

	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	agent, err := h.svc.Register(ctx, req.CallerAddress, req.Specialty, req.Description, req.Rate, req.FeePaid)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrInvalidCredential):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_address",
				"message": "callerAddress must be a valid address",
			})
		case errors.Is(err, ErrInvalidRate):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_rate",
				"message": "rate must be a positive amount",
			})
		case errors.Is(err, ErrInsufficientPayment):
			c.JSON(http.StatusPaymentRequired, gin.H{
				"error":   "insufficient_payment",
				"message": "feePaid does not cover the registration fee",
				"fee":     h.svc.RegistrationFee(),
			})
		case errors.Is(err, ErrAlreadyRegistered):
			c.JSON(http.StatusConflict, gin.H{
				"error":   "already_registered",
				"message": "An agent with this identifier is already registered",
			})
		default:
			logger.Error("failed to register agent", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "internal_error",
				"message": "Failed to register agent",
			})
		}
		return
	}

	c.JSON(http.StatusCreated, agent)
}

// UpdateAgent handles PATCH /agents
func (h *Handler) UpdateAgent(c *gin.Context) {
	ctx := c.Request.Context()
	logger := logging.L(ctx)

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	agent, err := h.svc.Update(ctx, req.CallerAddress, req.Active, req.Rate)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrInvalidCredential):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_address",
				"message": "callerAddress must be a valid address",
			})
		case errors.Is(err, ErrInvalidRate):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_rate",
				"message": "rate must be a positive amount",
			})
		case errors.Is(err, ErrNotRegistered):
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_registered",
				"message": "Caller has no agent record",
			})
		default:
			logger.Error("failed to update agent", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "internal_error",
				"message": "Failed to update agent",
			})
		}
		return
	}

	c.JSON(http.StatusOK, agent)
}

// GetAgent handles GET /agents/:id
func (h *Handler) GetAgent(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_id",
			"message": "Agent id must be an integer",
		})
		return
	}

	agent, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrAgentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "agent_not_found",
				"message": "No agent with this id",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to load agent",
		})
		return
	}

	c.JSON(http.StatusOK, agent)
}

// ListAgents handles GET /agents (active agents, ascending id)
func (h *Handler) ListAgents(c *gin.Context) {
	agents, err := h.svc.ListActive(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to list agents",
		})
		return
	}
	if agents == nil {
		agents = []*Agent{}
	}
	c.JSON(http.StatusOK, gin.H{"agents": agents, "count": len(agents)})
}
