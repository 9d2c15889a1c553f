package services

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/bidback-engine/internal/calendar"
	"github.com/irfndi/bidback-engine/internal/config"
	"github.com/irfndi/bidback-engine/internal/models"
)

type recordingSender struct {
	messages []string
	err      error
}

func (r *recordingSender) Send(_ context.Context, _, text string) error {
	if r.err != nil {
		return r.err
	}
	r.messages = append(r.messages, text)
	return nil
}

func notifierPosition() *models.OpenPosition {
	return &models.OpenPosition{
		PlannedTrade: models.PlannedTrade{
			Symbol:       "TQQQ",
			StopLoss:     decimal.NewFromFloat(40.68),
			TimeExitDate: day("2025-03-17"),
		},
		Quantity:            100,
		RemainingQuantity:   60,
		CurrentPrice:        decimal.NewFromFloat(47.46),
		UnrealizedPL:        decimal.NewFromFloat(226),
		UnrealizedPLPercent: decimal.NewFromInt(5),
	}
}

func TestNotifierDisabledWithoutToken(t *testing.T) {
	n := NewNotifier(config.TelegramConfig{}, calendar.Default())
	assert.False(t, n.Enabled())

	// no-ops, never panics
	assert.NoError(t, n.NotifyExitWindow(context.Background(), notifierPosition(), 1))
	assert.NoError(t, n.NotifyDeterioration(context.Background(), notifierPosition()))
}

func TestNotifyExitWindowUrgent(t *testing.T) {
	sender := &recordingSender{}
	n := newNotifierWithSender(sender, "chat-1", calendar.Default())

	require.NoError(t, n.NotifyExitWindow(context.Background(), notifierPosition(), 1))
	require.Len(t, sender.messages, 1)
	assert.Contains(t, sender.messages[0], "Time exit due")
	assert.Contains(t, sender.messages[0], "TQQQ")
	assert.Contains(t, sender.messages[0], "2025-03-17")
	assert.Contains(t, sender.messages[0], "60 of 100")
}

func TestNotifyExitWindowWarning(t *testing.T) {
	sender := &recordingSender{}
	n := newNotifierWithSender(sender, "chat-1", calendar.Default())

	require.NoError(t, n.NotifyExitWindow(context.Background(), notifierPosition(), 2))
	require.Len(t, sender.messages, 1)
	assert.Contains(t, sender.messages[0], "Time exit approaching")
}

func TestNotifyExitWindowSkipsNormal(t *testing.T) {
	sender := &recordingSender{}
	n := newNotifierWithSender(sender, "chat-1", calendar.Default())

	require.NoError(t, n.NotifyExitWindow(context.Background(), notifierPosition(), 4))
	assert.Empty(t, sender.messages)
}

func TestNotifyDeterioration(t *testing.T) {
	sender := &recordingSender{}
	n := newNotifierWithSender(sender, "chat-1", calendar.Default())

	pos := notifierPosition()
	pos.Deterioration = models.DeteriorationSignals{
		AvoidSignalActive:  true,
		DeteriorationScore: 3,
		Recommendation:     models.RecommendationExit,
	}

	require.NoError(t, n.NotifyDeterioration(context.Background(), pos))
	require.Len(t, sender.messages, 1)
	assert.Contains(t, sender.messages[0], "Exit recommended")
	assert.Contains(t, sender.messages[0], "score 3/4")
	assert.Contains(t, sender.messages[0], "turned against new entries")
}

func TestNotifyDeteriorationReduce(t *testing.T) {
	sender := &recordingSender{}
	n := newNotifierWithSender(sender, "chat-1", calendar.Default())

	pos := notifierPosition()
	pos.Deterioration = models.DeteriorationSignals{
		DeteriorationScore: 2,
		Recommendation:     models.RecommendationReduce,
	}

	require.NoError(t, n.NotifyDeterioration(context.Background(), pos))
	require.Len(t, sender.messages, 1)
	assert.Contains(t, sender.messages[0], "Reduce recommended")
	assert.NotContains(t, sender.messages[0], "turned against")
}

func TestNotifyDeteriorationSkipsHold(t *testing.T) {
	sender := &recordingSender{}
	n := newNotifierWithSender(sender, "chat-1", calendar.Default())

	pos := notifierPosition()
	pos.Deterioration.Recommendation = models.RecommendationHold

	require.NoError(t, n.NotifyDeterioration(context.Background(), pos))
	assert.Empty(t, sender.messages)
}

func TestNotifierSendFailure(t *testing.T) {
	sender := &recordingSender{err: errors.New("telegram unavailable")}
	n := newNotifierWithSender(sender, "chat-1", calendar.Default())

	err := n.NotifyExitWindow(context.Background(), notifierPosition(), 1)
	assert.ErrorContains(t, err, "telegram unavailable")
}
