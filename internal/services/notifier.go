package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/bidback-engine/internal/calendar"
	"github.com/irfndi/bidback-engine/internal/config"
	"github.com/irfndi/bidback-engine/internal/models"
)

// telegramSender is the slice of the bot client the notifier needs; tests
// swap in a recorder.
type telegramSender interface {
	Send(ctx context.Context, chatID, text string) error
}

type botAdapter struct {
	bot *bot.Bot
}

func (a *botAdapter) Send(ctx context.Context, chatID, text string) error {
	_, err := a.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "Markdown",
	})
	return err
}

// Notifier pushes exit-window and deterioration alerts to a Telegram chat.
// With no bot token configured every method is a no-op, so the engine runs
// fine as a purely local tool.
type Notifier struct {
	sender telegramSender
	chatID string
	cal    *calendar.Calendar
	logger *logrus.Entry
}

// NewNotifier creates a notifier from the telegram config. A missing token
// yields a disabled notifier rather than an error.
func NewNotifier(cfg config.TelegramConfig, cal *calendar.Calendar) *Notifier {
	logger := logrus.WithField("component", "notifier")

	var sender telegramSender
	if cfg.BotToken != "" {
		b, err := bot.New(cfg.BotToken)
		if err != nil {
			logger.WithError(err).Warn("Failed to initialize Telegram bot, notifications disabled")
		} else {
			sender = &botAdapter{bot: b}
		}
	}

	return &Notifier{
		sender: sender,
		chatID: cfg.ChatID,
		cal:    cal,
		logger: logger,
	}
}

// newNotifierWithSender wires a custom sender for tests.
func newNotifierWithSender(sender telegramSender, chatID string, cal *calendar.Calendar) *Notifier {
	return &Notifier{
		sender: sender,
		chatID: chatID,
		cal:    cal,
		logger: logrus.WithField("component", "notifier"),
	}
}

// Enabled reports whether alerts will actually be sent.
func (n *Notifier) Enabled() bool {
	return n.sender != nil && n.chatID != ""
}

// NotifyExitWindow alerts when an open position enters the warning or
// urgent exit bucket. Positions with a normal urgency are skipped.
func (n *Notifier) NotifyExitWindow(ctx context.Context, pos *models.OpenPosition, daysToExit int) error {
	if !n.Enabled() {
		return nil
	}
	urgency := calendar.UrgencyFor(daysToExit)
	if urgency == calendar.UrgencyNormal {
		return nil
	}

	var header string
	if urgency == calendar.UrgencyUrgent {
		header = "🔴 *Time exit due*"
	} else {
		header = "🟡 *Time exit approaching*"
	}

	var sb strings.Builder
	sb.WriteString(header + "\n\n")
	fmt.Fprintf(&sb, "*%s* exits by %s (%d trading day(s) left)\n", pos.Symbol, pos.TimeExitDate.Format("2006-01-02"), daysToExit)
	fmt.Fprintf(&sb, "Remaining: %d of %d\n", pos.RemainingQuantity, pos.Quantity)
	fmt.Fprintf(&sb, "Unrealized P/L: %s (%s%%)\n", pos.UnrealizedPL.StringFixed(2), pos.UnrealizedPLPercent.StringFixed(2))

	return n.send(ctx, sb.String())
}

// NotifyDeterioration alerts when the tracker recommends reducing or
// exiting a position. Hold recommendations are skipped.
func (n *Notifier) NotifyDeterioration(ctx context.Context, pos *models.OpenPosition) error {
	if !n.Enabled() {
		return nil
	}
	if pos.Deterioration.Recommendation == models.RecommendationHold {
		return nil
	}

	var header string
	if pos.Deterioration.Recommendation == models.RecommendationExit {
		header = "🔴 *Exit recommended*"
	} else {
		header = "🟠 *Reduce recommended*"
	}

	var sb strings.Builder
	sb.WriteString(header + "\n\n")
	fmt.Fprintf(&sb, "*%s* deterioration score %d/4\n", pos.Symbol, pos.Deterioration.DeteriorationScore)
	if pos.Deterioration.AvoidSignalActive {
		sb.WriteString("Market breadth has turned against new entries\n")
	}
	fmt.Fprintf(&sb, "Stop: %s, current: %s\n", pos.StopLoss.StringFixed(2), pos.CurrentPrice.StringFixed(2))

	return n.send(ctx, sb.String())
}

func (n *Notifier) send(ctx context.Context, text string) error {
	if err := n.sender.Send(ctx, n.chatID, text); err != nil {
		n.logger.WithError(err).Error("Failed to send Telegram alert")
		return fmt.Errorf("failed to send telegram alert: %w", err)
	}
	return nil
}
