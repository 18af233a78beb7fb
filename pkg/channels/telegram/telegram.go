// Package telegram adapts the Telegram Bot API to the transport-neutral
// messenger and inbound-event surfaces. All Telegram types stay inside this
// package.
package telegram

import (
	"context"
	"fmt"
	"strings"

	"github.com/mymmrac/telego"

	"github.com/lotbot/lotbot/pkg/bot"
	"github.com/lotbot/lotbot/pkg/domain"
	"github.com/lotbot/lotbot/pkg/domain/catalog"
	"github.com/lotbot/lotbot/pkg/logger"
	"github.com/lotbot/lotbot/pkg/notify"
)

// Router is the inbound surface the channel dispatches to.
type Router interface {
	HandleMessage(ctx context.Context, msg bot.InboundMessage)
	HandleCallback(ctx context.Context, cb bot.InboundCallback) string
}

// Channel connects the bot to Telegram via long polling.
type Channel struct {
	api    *telego.Bot
	router Router
}

// Outbound interface checks.
var (
	_ bot.Messenger = (*Channel)(nil)
	_ notify.Sender = (*Channel)(nil)
)

// NewChannel creates a Telegram channel with the given bot token.
func NewChannel(token string) (*Channel, error) {
	api, err := telego.NewBot(token, telego.WithDefaultLogger(false, true))
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Channel{api: api}, nil
}

// SetRouter wires the inbound handler. Must be called before Run.
func (c *Channel) SetRouter(router Router) { c.router = router }

// Run starts long polling and dispatches updates until ctx is cancelled.
func (c *Channel) Run(ctx context.Context) error {
	if err := c.registerCommands(ctx); err != nil {
		logger.WarnCF("telegram", "failed to register bot commands", map[string]interface{}{
			"error": err.Error(),
		})
	}

	updates, err := c.api.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return fmt.Errorf("start long polling: %w", err)
	}
	logger.InfoC("telegram", "long polling started")

	for update := range updates {
		update := update
		go c.dispatch(ctx, update)
	}
	return nil
}

func (c *Channel) registerCommands(ctx context.Context) error {
	return c.api.SetMyCommands(ctx, &telego.SetMyCommandsParams{
		Commands: []telego.BotCommand{
			{Command: "start", Description: "Open the main menu"},
			{Command: "help", Description: "Show help"},
		},
	})
}

func (c *Channel) dispatch(ctx context.Context, update telego.Update) {
	switch {
	case update.Message != nil:
		c.dispatchMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		c.dispatchCallback(ctx, update.CallbackQuery)
	}
}

func (c *Channel) dispatchMessage(ctx context.Context, msg *telego.Message) {
	if msg.From == nil {
		return
	}
	inbound := bot.InboundMessage{
		ChatID: domain.ChatID(msg.Chat.ID),
		From:   userFrom(*msg.From),
		Text:   msg.Text,
	}
	if inbound.Text == "" {
		inbound.Text = msg.Caption
	}
	if len(msg.Photo) > 0 {
		// Telegram sends several sizes per photo; the last is the largest.
		inbound.PhotoIDs = []string{msg.Photo[len(msg.Photo)-1].FileID}
	}
	c.router.HandleMessage(ctx, inbound)
}

func (c *Channel) dispatchCallback(ctx context.Context, query *telego.CallbackQuery) {
	inbound := bot.InboundCallback{
		From: userFrom(query.From),
		Data: query.Data,
	}
	if query.Message != nil && query.Message.IsAccessible() {
		inbound.HasMessage = true
		inbound.ChatID = domain.ChatID(query.Message.GetChat().ID)
		inbound.MessageID = query.Message.GetMessageID()
	}

	ack := c.router.HandleCallback(ctx, inbound)

	if err := c.api.AnswerCallbackQuery(ctx, &telego.AnswerCallbackQueryParams{
		CallbackQueryID: query.ID,
		Text:            ack,
	}); err != nil {
		logger.WarnCF("telegram", "failed to answer callback query", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func userFrom(u telego.User) catalog.User {
	return catalog.User{
		ID:        domain.UserID(u.ID),
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

// ---------------------------------------------------------------------------
// Outbound surface
// ---------------------------------------------------------------------------

func (c *Channel) SendText(ctx context.Context, chatID domain.ChatID, text string) error {
	_, err := c.api.SendMessage(ctx, &telego.SendMessageParams{
		ChatID: telego.ChatID{ID: int64(chatID)},
		Text:   text,
	})
	return err
}

func (c *Channel) SendKeyboard(ctx context.Context, chatID domain.ChatID, text string, keyboard bot.Keyboard) error {
	_, err := c.api.SendMessage(ctx, &telego.SendMessageParams{
		ChatID:      telego.ChatID{ID: int64(chatID)},
		Text:        text,
		ReplyMarkup: inlineMarkup(keyboard),
	})
	return err
}

func (c *Channel) EditText(ctx context.Context, chatID domain.ChatID, messageID int, text string, keyboard bot.Keyboard) error {
	_, err := c.api.EditMessageText(ctx, &telego.EditMessageTextParams{
		ChatID:      telego.ChatID{ID: int64(chatID)},
		MessageID:   messageID,
		Text:        text,
		ReplyMarkup: inlineMarkup(keyboard),
	})
	return ignoreNotModified(err)
}

func (c *Channel) EditKeyboard(ctx context.Context, chatID domain.ChatID, messageID int, keyboard bot.Keyboard) error {
	_, err := c.api.EditMessageReplyMarkup(ctx, &telego.EditMessageReplyMarkupParams{
		ChatID:      telego.ChatID{ID: int64(chatID)},
		MessageID:   messageID,
		ReplyMarkup: inlineMarkup(keyboard),
	})
	return ignoreNotModified(err)
}

func (c *Channel) SendMediaGroup(ctx context.Context, chatID domain.ChatID, fileIDs []string) error {
	if len(fileIDs) == 0 {
		return nil
	}
	media := make([]telego.InputMedia, 0, len(fileIDs))
	for _, fileID := range fileIDs {
		media = append(media, &telego.InputMediaPhoto{
			Type:  telego.MediaTypePhoto,
			Media: telego.InputFile{FileID: fileID},
		})
	}
	_, err := c.api.SendMediaGroup(ctx, &telego.SendMediaGroupParams{
		ChatID: telego.ChatID{ID: int64(chatID)},
		Media:  media,
	})
	return err
}

func inlineMarkup(keyboard bot.Keyboard) *telego.InlineKeyboardMarkup {
	if len(keyboard) == 0 {
		return nil
	}
	rows := make([][]telego.InlineKeyboardButton, 0, len(keyboard))
	for _, row := range keyboard {
		buttons := make([]telego.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, telego.InlineKeyboardButton{
				Text:         b.Text,
				CallbackData: b.Data,
			})
		}
		rows = append(rows, buttons)
	}
	return &telego.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// ignoreNotModified drops the Telegram error for edits that change nothing.
// Re-rendering an identical keyboard is routine, not a failure.
func ignoreNotModified(err error) error {
	if err != nil && strings.Contains(err.Error(), "message is not modified") {
		return nil
	}
	return err
}
