package bot

import (
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/olivmath/stealth-battleship-sub001/internal/logger"
)

// Alerter is the ops notification boundary; the service fires alerts
// without blocking on delivery.
type Alerter interface {
	AlertInvalidProof(matchID, playerKey, circuit string, priorInvalid int)
	AlertAggregateFailure(matchID string, err error)
}

// AlertBot pushes protocol incidents to the operators' Telegram chats:
// a player caught submitting an invalid proof is the one event worth a
// human look, since it never happens with an honest client.
type AlertBot struct {
	bot      *tgbotapi.BotAPI
	adminIDs []int64
	log      *slog.Logger
}

func NewAlertBot(token string, adminIDs []int64) (*AlertBot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log := logger.With("component", "alert_bot")
	log.Info("alert bot authorized", "username", api.Self.UserName)

	return &AlertBot{bot: api, adminIDs: adminIDs, log: log}, nil
}

func (b *AlertBot) AlertInvalidProof(matchID, playerKey, circuit string, priorInvalid int) {
	text := fmt.Sprintf("⚠️ invalid %s proof\nmatch: %s\nplayer: %s\nadjudicated as instant loss", circuit, matchID, playerKey)
	if priorInvalid > 0 {
		text += fmt.Sprintf("\nrepeat offender: %d earlier invalid proofs on record", priorInvalid)
	}
	b.broadcast(text)
}

func (b *AlertBot) AlertAggregateFailure(matchID string, err error) {
	text := fmt.Sprintf("❌ turns proof generation failed\nmatch: %s\nerror: %v", matchID, err)
	b.broadcast(text)
}

func (b *AlertBot) broadcast(text string) {
	for _, id := range b.adminIDs {
		msg := tgbotapi.NewMessage(id, text)
		if _, err := b.bot.Send(msg); err != nil {
			b.log.Warn("alert delivery failed", "admin_id", id, "error", err)
		}
	}
}

// NopAlerter satisfies Alerter when no bot token is configured.
type NopAlerter struct{}

func (NopAlerter) AlertInvalidProof(string, string, string, int) {}
func (NopAlerter) AlertAggregateFailure(string, error)           {}
