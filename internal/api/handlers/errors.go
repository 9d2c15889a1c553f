package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/bidback-engine/internal/database"
	"github.com/irfndi/bidback-engine/internal/models"
)

// respondEngineError maps engine errors onto HTTP statuses: bad input is
// 400, a rejected lifecycle transition is 409, a missing record is 404,
// anything else is a 500.
func respondEngineError(c *gin.Context, err error) {
	var validationErr *models.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error()})
		return
	}

	var transitionErr *models.StateTransitionError
	if errors.As(err, &transitionErr) {
		c.JSON(http.StatusConflict, gin.H{"error": transitionErr.Error()})
		return
	}

	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	logrus.WithError(err).Error("Unhandled engine error")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
