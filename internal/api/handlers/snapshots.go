package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/bidback-engine/internal/cache"
	"github.com/irfndi/bidback-engine/internal/database"
	"github.com/irfndi/bidback-engine/internal/models"
	"github.com/irfndi/bidback-engine/internal/services"
)

// SnapshotHandler owns the breadth-import and signal endpoints.
type SnapshotHandler struct {
	store    *database.TradeStore
	cache    *cache.SnapshotCache
	detector *services.SignalDetector
	analyzer *services.BreadthAnalyzer
}

func NewSnapshotHandler(store *database.TradeStore, snapCache *cache.SnapshotCache, detector *services.SignalDetector, analyzer *services.BreadthAnalyzer) *SnapshotHandler {
	return &SnapshotHandler{
		store:    store,
		cache:    snapCache,
		detector: detector,
		analyzer: analyzer,
	}
}

// ImportSnapshotRequest is one day of Stockbee breadth data plus VIX. The
// numeric fields are all legitimately zero on a bad enough day, so range
// checks live in MarketSnapshot.Validate, not in binding tags.
type ImportSnapshotRequest struct {
	StocksUp4Pct   int     `json:"stocks_up_4pct"`
	StocksDown4Pct int     `json:"stocks_down_4pct"`
	T2108          float64 `json:"t2108"`
	VIX            float64 `json:"vix"`
	Date           string  `json:"date" binding:"required"`
}

// SnapshotResponse pairs a snapshot with its signal classification.
type SnapshotResponse struct {
	Snapshot *models.MarketSnapshot `json:"snapshot"`
	Signals  models.Signals         `json:"signals"`
}

// ImportSnapshot stores one trading day of breadth data. Re-importing a day
// replaces the earlier reading.
func (h *SnapshotHandler) ImportSnapshot(c *gin.Context) {
	var req ImportSnapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}

	snapshot := &models.MarketSnapshot{
		ID:             uuid.New().String(),
		StocksUp4Pct:   req.StocksUp4Pct,
		StocksDown4Pct: req.StocksDown4Pct,
		T2108:          req.T2108,
		VIX:            req.VIX,
		Date:           date,
		CreatedAt:      time.Now(),
	}
	if err := snapshot.Validate(); err != nil {
		respondEngineError(c, err)
		return
	}

	if err := h.store.SaveSnapshot(c.Request.Context(), snapshot); err != nil {
		logrus.WithError(err).Error("Failed to save snapshot")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save snapshot"})
		return
	}

	if err := h.cache.Invalidate(c.Request.Context()); err != nil {
		logrus.WithError(err).Warn("Failed to invalidate snapshot cache")
	}

	signals, err := h.detector.Classify(snapshot)
	if err != nil {
		respondEngineError(c, err)
		return
	}

	c.JSON(http.StatusCreated, SnapshotResponse{Snapshot: snapshot, Signals: signals})
}

// GetLatestSnapshot returns the most recent breadth reading with its
// signal classification, served from cache when possible.
func (h *SnapshotHandler) GetLatestSnapshot(c *gin.Context) {
	snapshot, ok := h.cache.GetLatest(c.Request.Context())
	if !ok {
		var err error
		snapshot, err = h.store.LatestSnapshot(c.Request.Context())
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no breadth data imported yet"})
			return
		}
		if err != nil {
			logrus.WithError(err).Error("Failed to load latest snapshot")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load latest snapshot"})
			return
		}
		if cacheErr := h.cache.SetLatest(c.Request.Context(), snapshot); cacheErr != nil {
			logrus.WithError(cacheErr).Warn("Failed to cache latest snapshot")
		}
	}

	signals, err := h.detector.Classify(snapshot)
	if err != nil {
		respondEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, SnapshotResponse{Snapshot: snapshot, Signals: signals})
}

// GetBreadthTrend classifies the recent breadth history as stable,
// deteriorating, or improving.
func (h *SnapshotHandler) GetBreadthTrend(c *gin.Context) {
	history, ok := h.cache.GetHistory(c.Request.Context())
	if !ok {
		var err error
		history, err = h.store.SnapshotHistory(c.Request.Context(), h.analyzer.Window()+1)
		if err != nil {
			logrus.WithError(err).Error("Failed to load snapshot history")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load snapshot history"})
			return
		}
		if cacheErr := h.cache.SetHistory(c.Request.Context(), history); cacheErr != nil {
			logrus.WithError(cacheErr).Warn("Failed to cache snapshot history")
		}
	}

	trend, err := h.analyzer.Analyze(history)
	if err != nil {
		respondEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, trend)
}
