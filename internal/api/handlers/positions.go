package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/bidback-engine/internal/calendar"
	"github.com/irfndi/bidback-engine/internal/database"
	"github.com/irfndi/bidback-engine/internal/models"
	"github.com/irfndi/bidback-engine/internal/services"
)

// PositionHandler owns the open-position endpoints: the dashboard list,
// scale-outs, cancellation, and the bulk refresh that re-scores every
// position against a fresh snapshot.
type PositionHandler struct {
	store    *database.TradeStore
	tracker  *services.LifecycleTracker
	notifier *services.Notifier
	cal      *calendar.Calendar
	maxHeat  decimal.Decimal
}

func NewPositionHandler(store *database.TradeStore, tracker *services.LifecycleTracker, notifier *services.Notifier, cal *calendar.Calendar, maxHeatPercent float64) *PositionHandler {
	return &PositionHandler{
		store:    store,
		tracker:  tracker,
		notifier: notifier,
		cal:      cal,
		maxHeat:  decimal.NewFromFloat(maxHeatPercent),
	}
}

// PartialExitRequest records one scale-out against a position.
type PartialExitRequest struct {
	Date     string  `json:"date" binding:"required"`
	Quantity int     `json:"quantity" binding:"required"`
	Price    float64 `json:"price" binding:"required"`
	Reason   string  `json:"reason"`
}

// RefreshRequest carries one price per open symbol and the evaluation date.
type RefreshRequest struct {
	Prices map[string]float64 `json:"prices" binding:"required"`
	AsOf   string             `json:"as_of" binding:"required"`
}

// PositionView is one dashboard row: the position plus its exit-window
// display fields.
type PositionView struct {
	models.OpenPosition
	DaysToExit  int                  `json:"days_to_exit"`
	ExitUrgency calendar.ExitUrgency `json:"exit_urgency"`
}

// DashboardResponse is the open-positions dashboard.
type DashboardResponse struct {
	Positions    []PositionView  `json:"positions"`
	TotalHeat    decimal.Decimal `json:"total_heat_percent"`
	MaxHeat      decimal.Decimal `json:"max_heat_percent"`
	HeatExceeded bool            `json:"heat_exceeded"`
	AsOf         time.Time       `json:"as_of"`
}

// ListPositions returns the dashboard: every open position with its
// days-to-exit countdown, urgency bucket, and the aggregate portfolio heat.
func (h *PositionHandler) ListPositions(c *gin.Context) {
	asOf := time.Now()
	if raw := c.Query("as_of"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "as_of must be YYYY-MM-DD"})
			return
		}
		asOf = parsed
	}

	positions, err := h.store.ListOpenPositions(c.Request.Context())
	if err != nil {
		logrus.WithError(err).Error("Failed to list open positions")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list open positions"})
		return
	}

	views := make([]PositionView, 0, len(positions))
	totalHeat := decimal.Zero
	for _, pos := range positions {
		daysToExit := h.cal.DaysToExit(asOf, pos.TimeExitDate)
		views = append(views, PositionView{
			OpenPosition: pos,
			DaysToExit:   daysToExit,
			ExitUrgency:  calendar.UrgencyFor(daysToExit),
		})
		totalHeat = totalHeat.Add(pos.PortfolioHeatPercent)
	}

	c.JSON(http.StatusOK, DashboardResponse{
		Positions:    views,
		TotalHeat:    totalHeat,
		MaxHeat:      h.maxHeat,
		HeatExceeded: totalHeat.GreaterThan(h.maxHeat),
		AsOf:         asOf,
	})
}

// GetPosition returns one open position.
func (h *PositionHandler) GetPosition(c *gin.Context) {
	pos, err := h.store.GetPosition(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, pos)
}

// RecordPartialExit applies one scale-out to a position. Emptying the
// position closes it.
func (h *PositionHandler) RecordPartialExit(c *gin.Context) {
	var req PartialExitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}

	pos, err := h.store.GetPosition(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondEngineError(c, err)
		return
	}

	updated, err := h.tracker.RecordPartialExit(*pos, models.PartialExit{
		Date:     date,
		Quantity: req.Quantity,
		Price:    decimal.NewFromFloat(req.Price),
		Reason:   req.Reason,
	})
	if err != nil {
		respondEngineError(c, err)
		return
	}

	if err := h.store.SavePosition(c.Request.Context(), updated); err != nil {
		logrus.WithError(err).Error("Failed to save position")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save position"})
		return
	}

	c.JSON(http.StatusOK, updated)
}

// CancelPosition marks a non-terminal position cancelled (bust trade).
func (h *PositionHandler) CancelPosition(c *gin.Context) {
	pos, err := h.store.GetPosition(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondEngineError(c, err)
		return
	}

	updated, err := h.tracker.CancelPosition(*pos)
	if err != nil {
		respondEngineError(c, err)
		return
	}

	if err := h.store.SavePosition(c.Request.Context(), updated); err != nil {
		logrus.WithError(err).Error("Failed to save position")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save position"})
		return
	}
	if err := h.store.UpdateTradeStatus(c.Request.Context(), updated.ID, updated.Status); err != nil {
		respondEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, updated)
}

// RefreshPositions re-scores every open position against the latest
// snapshot and the supplied prices, firing alerts where warranted.
// Positions without a supplied price are skipped, not failed.
func (h *PositionHandler) RefreshPositions(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	asOf, err := time.Parse("2006-01-02", req.AsOf)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "as_of must be YYYY-MM-DD"})
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

	positions, err := h.store.ListOpenPositions(c.Request.Context())
	if err != nil {
		logrus.WithError(err).Error("Failed to list open positions")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list open positions"})
		return
	}

	refreshed := make([]PositionView, 0, len(positions))
	skipped := make([]string, 0)
	for _, pos := range positions {
		price, ok := req.Prices[pos.Symbol]
		if !ok {
			skipped = append(skipped, pos.Symbol)
			continue
		}

		updated, err := h.tracker.Refresh(pos, snapshot, decimal.NewFromFloat(price), asOf)
		var transitionErr *models.StateTransitionError
		if errors.As(err, &transitionErr) {
			// A record that can no longer be refreshed must not wedge the
			// rest of the book.
			logrus.WithError(err).WithField("trade_id", pos.ID).Warn("Skipping unrefreshable position")
			skipped = append(skipped, pos.Symbol)
			continue
		}
		if err != nil {
			respondEngineError(c, err)
			return
		}
		if err := h.store.SavePosition(c.Request.Context(), updated); err != nil {
			logrus.WithError(err).Error("Failed to save refreshed position")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save refreshed position"})
			return
		}

		daysToExit := h.cal.DaysToExit(asOf, updated.TimeExitDate)
		if err := h.notifier.NotifyExitWindow(c.Request.Context(), updated, daysToExit); err != nil {
			logrus.WithError(err).Warn("Exit window alert failed")
		}
		if err := h.notifier.NotifyDeterioration(c.Request.Context(), updated); err != nil {
			logrus.WithError(err).Warn("Deterioration alert failed")
		}

		refreshed = append(refreshed, PositionView{
			OpenPosition: *updated,
			DaysToExit:   daysToExit,
			ExitUrgency:  calendar.UrgencyFor(daysToExit),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"positions": refreshed,
		"skipped":   skipped,
		"as_of":     asOf,
	})
}
