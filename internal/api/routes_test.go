package api

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHealthResponseJSON(t *testing.T) {
	response := HealthResponse{
		Status:    "degraded",
		Timestamp: time.Now(),
		Version:   "1.0.0",
		Services: Services{
			Database: "ok",
			Redis:    "error",
		},
	}

	raw, err := json.Marshal(response)
	assert.NoError(t, err)

	var decoded HealthResponse
	assert.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "degraded", decoded.Status)
	assert.Equal(t, "ok", decoded.Services.Database)
	assert.Equal(t, "error", decoded.Services.Redis)
}
