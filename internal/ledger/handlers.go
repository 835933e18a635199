package ledger

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Handler exposes read-only custody endpoints.
type Handler struct {
	ledger *Ledger
}

// NewHandler creates a new ledger handler.
func NewHandler(ledger *Ledger) *Handler {
	return &Handler{ledger: ledger}
}

// RegisterRoutes registers ledger routes on the given router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	lg := rg.Group("/ledger")
	{
		lg.GET("/balances/:address", h.getBalance)
		lg.GET("/balances/:address/history", h.getHistory)
		lg.GET("/pools", h.getPools)
		lg.GET("/events", h.getEvents)
	}
}

func (h *Handler) getBalance(c *gin.Context) {
	address := c.Param("address")
	balance, err := h.ledger.Balance(c.Request.Context(), address)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to load balance"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": address, "balance": balance})
}

func (h *Handler) getHistory(c *gin.Context) {
	address := c.Param("address")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	events, err := h.ledger.HistoryFor(c.Request.Context(), address, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to load history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": address, "events": events})
}

func (h *Handler) getPools(c *gin.Context) {
	pools, err := h.ledger.Pools(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to load pools"})
		return
	}
	c.JSON(http.StatusOK, pools)
}

func (h *Handler) getEvents(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	events, err := h.ledger.History(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to load events"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
