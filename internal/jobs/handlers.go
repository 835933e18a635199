package jobs

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/zialiel/agora/internal/identity"
	"github.com/zialiel/agora/internal/logging"
	"github.com/zialiel/agora/internal/registry"
)

// Handler provides HTTP handlers for the job API
type Handler struct {
	svc *Service
}

// NewHandler creates a new jobs handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes sets up the job routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/jobs", h.CreateJob)
	r.GET("/jobs", h.ListJobs)
	r.GET("/jobs/:id", h.GetJob)
	r.POST("/jobs/:id/complete", h.CompleteJob)
	r.POST("/jobs/:id/fail", h.FailJob)
	r.POST("/gratitude", h.SendGratitude)
}

// CreateJob handles POST /jobs
func (h *Handler) CreateJob(c *gin.Context) {
	ctx := c.Request.Context()

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	job, err := h.svc.Create(ctx, req.CallerAddress, req.AgentID, req.Description, req.Payment)
	if err != nil {
		h.writeError(c, err, "Failed to create job")
		return
	}

	c.JSON(http.StatusCreated, job)
}

// CompleteJob handles POST /jobs/:id/complete
func (h *Handler) CompleteJob(c *gin.Context) {
	id, ok := h.jobID(c)
	if !ok {
		return
	}

	var req CompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	job, err := h.svc.Complete(c.Request.Context(), id, req.CallerAddress, req.ResultRef)
	if err != nil {
		h.writeError(c, err, "Failed to complete job")
		return
	}

	c.JSON(http.StatusOK, job)
}

// FailJob handles POST /jobs/:id/fail
func (h *Handler) FailJob(c *gin.Context) {
	id, ok := h.jobID(c)
	if !ok {
		return
	}

	var req FailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	job, err := h.svc.ReportFailed(c.Request.Context(), id, req.CallerAddress)
	if err != nil {
		h.writeError(c, err, "Failed to report job")
		return
	}

	c.JSON(http.StatusOK, job)
}

// SendGratitude handles POST /gratitude
func (h *Handler) SendGratitude(c *gin.Context) {
	var req GratitudeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	err := h.svc.SendGratitude(c.Request.Context(), req.CallerAddress, req.AgentID, req.Amount, req.Reason, req.Payment)
	if err != nil {
		h.writeError(c, err, "Failed to send gratitude")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "sent", "agentId": req.AgentID, "amount": req.Amount})
}

// GetJob handles GET /jobs/:id
func (h *Handler) GetJob(c *gin.Context) {
	id, ok := h.jobID(c)
	if !ok {
		return
	}

	job, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err, "Failed to load job")
		return
	}

	c.JSON(http.StatusOK, job)
}

// ListJobs handles GET /jobs?requester=0x... or GET /jobs?agentId=N
func (h *Handler) ListJobs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	var (
		jobs []*Job
		err  error
	)
	switch {
	case c.Query("requester") != "":
		jobs, err = h.svc.ListByRequester(c.Request.Context(), c.Query("requester"), limit)
	case c.Query("agentId") != "":
		var agentID int64
		agentID, err = strconv.ParseInt(c.Query("agentId"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_id",
				"message": "agentId must be an integer",
			})
			return
		}
		jobs, err = h.svc.ListByAgent(c.Request.Context(), agentID, limit)
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "missing_filter",
			"message": "Provide requester or agentId",
		})
		return
	}
	if err != nil {
		h.writeError(c, err, "Failed to list jobs")
		return
	}
	if jobs == nil {
		jobs = []*Job{}
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs, "count": len(jobs)})
}

func (h *Handler) jobID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_id",
			"message": "Job id must be an integer",
		})
		return 0, false
	}
	return id, true
}

func (h *Handler) writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, identity.ErrInvalidCredential):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_address",
			"message": "callerAddress must be a valid address",
		})
	case errors.Is(err, ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_amount",
			"message": "amount must be positive",
		})
	case errors.Is(err, registry.ErrAgentNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "agent_not_found",
			"message": "No agent with this id",
		})
	case errors.Is(err, ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "job_not_found",
			"message": "No job with this id",
		})
	case errors.Is(err, ErrAgentInactive):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "agent_inactive",
			"message": "Agent is not accepting work",
		})
	case errors.Is(err, ErrInsufficientPayment):
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":   "insufficient_payment",
			"message": "Payment does not cover the required amount",
		})
	case errors.Is(err, ErrAlreadyTerminal):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "already_settled",
			"message": "Job has already reached a terminal state",
		})
	case errors.Is(err, ErrNotYourJob):
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "not_your_job",
			"message": "Only the assigned agent can complete this job",
		})
	case errors.Is(err, ErrNotAuthorized):
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "not_authorized",
			"message": "Only the requester or the assigned agent may report this job",
		})
	default:
		logging.L(c.Request.Context()).Error(fallback, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": fallback,
		})
	}
}
