// Package notification provides implementations for various notification services
package notification

import (
	"fmt"
	"time"

	"github.com/solwatch/solwatch/core"
	tb "gopkg.in/tucnak/telebot.v2"
)

const pollingTimeout = 10 * time.Second

// Telegram implements the core.Notifier interface. It delivers watcher
// messages to the chat whose id matches the watcher owner, so each user
// only sees their own triggers.
type Telegram struct {
	client *tb.Bot
	log    core.Logger
}

// NewTelegram creates and initializes a new Telegram service
func NewTelegram(settings core.TelegramSettings, log core.Logger) (*Telegram, error) {
	client, err := tb.NewBot(tb.Settings{
		ParseMode: tb.ModeMarkdown,
		Token:     settings.Token,
		Poller:    &tb.LongPoller{Timeout: pollingTimeout},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &Telegram{client: client, log: log}, nil
}

// Send delivers a message to the owner's chat
func (t *Telegram) Send(ownerID int64, text string) error {
	_, err := t.client.Send(&tb.User{ID: ownerID}, text)
	if err != nil {
		t.log.WithError(err).
			WithField("owner", ownerID).
			Error("failed to send notification")
		return fmt.Errorf("failed to send notification: %w", err)
	}
	return nil
}
