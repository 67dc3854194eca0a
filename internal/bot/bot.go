// Package bot runs the Telegram onboarding bot: /start registers the
// sender in the user directory so they can log into the chat mini-app.
package bot

import (
	"context"
	"fmt"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"

	"github.com/tgchat-app/chat-server/internal/store"
)

const welcomeText = "Welcome! Your account is registered, open the chat from the app menu."

// Bot wraps the Telegram long-polling client.
type Bot struct {
	client    *tgbot.Bot
	directory store.UserDirectory
	log       *zerolog.Logger
}

// New builds the onboarding bot. The token comes from configuration; the
// caller skips construction entirely when no token is set.
func New(token string, directory store.UserDirectory, logger *zerolog.Logger) (*Bot, error) {
	b := &Bot{directory: directory, log: logger}

	client, err := tgbot.New(token, tgbot.WithDefaultHandler(b.handleUpdate))
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	b.client = client

	return b, nil
}

// Run long-polls for updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	b.log.Info().Msg("telegram bot started")
	b.client.Start(ctx)
	b.log.Info().Msg("telegram bot stopped")
}

func (b *Bot) handleUpdate(ctx context.Context, client *tgbot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	if update.Message.Text != "/start" {
		return
	}

	from := update.Message.From
	user := store.User{
		ID:        from.ID,
		FirstName: from.FirstName,
		LastName:  from.LastName,
		Username:  from.Username,
	}

	if _, err := b.directory.Upsert(ctx, user); err != nil {
		b.log.Error().Err(err).Int64("user_id", from.ID).Msg("register user from /start failed")
		return
	}

	b.log.Info().Int64("user_id", from.ID).Str("first_name", from.FirstName).Msg("user onboarded")

	if _, err := client.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: update.Message.Chat.ID,
		Text:   welcomeText,
	}); err != nil {
		b.log.Warn().Err(err).Int64("chat_id", update.Message.Chat.ID).Msg("send welcome failed")
	}
}
