package services

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
)

// Sender is the slice of the Telegram API the bot uses. *bot.Bot satisfies it.
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*tgmodels.Message, error)
	EditMessageText(ctx context.Context, params *bot.EditMessageTextParams) (*tgmodels.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
}

type MessageManager struct {
	sender   Sender
	errMgr   *ErrorManager
	maxRetry int
}

func NewMessageManager(sender Sender, errMgr *ErrorManager) *MessageManager {
	return &MessageManager{
		sender:   sender,
		errMgr:   errMgr,
		maxRetry: 2,
	}
}

func (m *MessageManager) SendWithRetry(ctx context.Context, params *bot.SendMessageParams) (*tgmodels.Message, error) {
	var lastErr error
	for attempt := 0; attempt < m.maxRetry; attempt++ {
		msg, err := m.sender.SendMessage(ctx, params)
		if err == nil {
			return msg, nil
		}
		lastErr = err
	}
	chatID, _ := params.ChatID.(int64)
	m.errMgr.NotifyAdminWithCurl(ctx, chatID, params, lastErr)
	return nil, lastErr
}

// EditWithRetry rewrites a message in place. Telegram rejects edits that
// change nothing; those count as success.
func (m *MessageManager) EditWithRetry(ctx context.Context, params *bot.EditMessageTextParams) error {
	var lastErr error
	for attempt := 0; attempt < m.maxRetry; attempt++ {
		_, err := m.sender.EditMessageText(ctx, params)
		if err == nil || isNotModified(err) {
			return nil
		}
		lastErr = err
	}
	chatID, _ := params.ChatID.(int64)
	m.errMgr.NotifyAdminWithCurl(ctx, chatID, params, lastErr)
	return lastErr
}

func (m *MessageManager) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) {
	_, _ = m.sender.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
		ShowAlert:       alert,
	})
}

func isNotModified(err error) bool {
	return strings.Contains(err.Error(), "message is not modified")
}
