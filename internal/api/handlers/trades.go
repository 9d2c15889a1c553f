package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/bidback-engine/internal/database"
	"github.com/irfndi/bidback-engine/internal/models"
	"github.com/irfndi/bidback-engine/internal/services"
)

// TradeHandler owns the planning and pre-fill lifecycle endpoints.
type TradeHandler struct {
	store   *database.TradeStore
	planner *services.TradePlanner
	tracker *services.LifecycleTracker
	maxHeat decimal.Decimal
}

func NewTradeHandler(store *database.TradeStore, planner *services.TradePlanner, tracker *services.LifecycleTracker, maxHeatPercent float64) *TradeHandler {
	return &TradeHandler{
		store:   store,
		planner: planner,
		tracker: tracker,
		maxHeat: decimal.NewFromFloat(maxHeatPercent),
	}
}

// PlanTradeRequest carries the trader's inputs; everything else comes from
// the latest imported snapshot.
type PlanTradeRequest struct {
	Symbol           string  `json:"symbol" binding:"required"`
	EntryPrice       float64 `json:"entry_price" binding:"required"`
	BasePositionSize float64 `json:"base_position_size" binding:"required"`
	EntryDate        string  `json:"entry_date" binding:"required"`
}

// FillTradeRequest records the broker fill that opens a position.
type FillTradeRequest struct {
	Quantity  int     `json:"quantity" binding:"required"`
	FillPrice float64 `json:"fill_price" binding:"required"`
	FillDate  string  `json:"fill_date" binding:"required"`
}

// PlanTradeResponse is the planned trade plus the portfolio-heat picture the
// trader should see before executing. The plan is saved either way; the
// warning is advisory.
type PlanTradeResponse struct {
	*models.PlannedTrade
	OpenHeatPercent decimal.Decimal `json:"open_heat_percent"`
	HeatWarning     bool            `json:"heat_warning"`
}

// PlanTrade sizes and plans a trade against the latest breadth snapshot.
func (h *TradeHandler) PlanTrade(c *gin.Context) {
	var req PlanTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entryDate, err := time.Parse("2006-01-02", req.EntryDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "entry_date must be YYYY-MM-DD"})
		return
	}

	snapshot, err := h.store.LatestSnapshot(c.Request.Context())
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusConflict, gin.H{"error": "no breadth data imported yet"})
		return
	}
	if err != nil {
		logrus.WithError(err).Error("Failed to load latest snapshot")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load latest snapshot"})
		return
	}

	trade, err := h.planner.PlanTrade(services.PlanRequest{
		Symbol:           req.Symbol,
		EntryPrice:       decimal.NewFromFloat(req.EntryPrice),
		BasePositionSize: decimal.NewFromFloat(req.BasePositionSize),
		EntryDate:        entryDate,
	}, snapshot)
	if err != nil {
		respondEngineError(c, err)
		return
	}

	openHeat, err := h.store.TotalOpenHeat(c.Request.Context())
	if err != nil {
		logrus.WithError(err).Error("Failed to sum open portfolio heat")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to sum open portfolio heat"})
		return
	}

	if err := h.store.SaveTrade(c.Request.Context(), trade); err != nil {
		logrus.WithError(err).Error("Failed to save planned trade")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save planned trade"})
		return
	}

	c.JSON(http.StatusCreated, PlanTradeResponse{
		PlannedTrade:    trade,
		OpenHeatPercent: openHeat,
		HeatWarning:     openHeat.Add(trade.PortfolioHeatPercent).GreaterThan(h.maxHeat),
	})
}

// GetTrade returns one planned trade.
func (h *TradeHandler) GetTrade(c *gin.Context) {
	trade, err := h.store.GetTrade(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, trade)
}

// ExecuteTrade marks a planned trade as ordered at the broker.
func (h *TradeHandler) ExecuteTrade(c *gin.Context) {
	trade, err := h.store.GetTrade(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondEngineError(c, err)
		return
	}

	updated, err := h.tracker.Execute(*trade)
	if err != nil {
		respondEngineError(c, err)
		return
	}

	if err := h.store.UpdateTradeStatus(c.Request.Context(), updated.ID, updated.Status); err != nil {
		respondEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, updated)
}

// CancelTrade cancels a trade that has not been filled yet.
func (h *TradeHandler) CancelTrade(c *gin.Context) {
	trade, err := h.store.GetTrade(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondEngineError(c, err)
		return
	}

	updated, err := h.tracker.CancelTrade(*trade)
	if err != nil {
		respondEngineError(c, err)
		return
	}

	if err := h.store.UpdateTradeStatus(c.Request.Context(), updated.ID, updated.Status); err != nil {
		respondEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, updated)
}

// FillTrade records the broker fill and opens the position.
func (h *TradeHandler) FillTrade(c *gin.Context) {
	var req FillTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fillDate, err := time.Parse("2006-01-02", req.FillDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "fill_date must be YYYY-MM-DD"})
		return
	}

	trade, err := h.store.GetTrade(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondEngineError(c, err)
		return
	}

	pos, err := h.tracker.Fill(*trade, req.Quantity, decimal.NewFromFloat(req.FillPrice), fillDate)
	if err != nil {
		respondEngineError(c, err)
		return
	}

	if err := h.store.SavePosition(c.Request.Context(), pos); err != nil {
		logrus.WithError(err).Error("Failed to save position")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save position"})
		return
	}

	c.JSON(http.StatusCreated, pos)
}
