package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"runtime/debug"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
)

const maxAdminMessageLen = 4000

type ErrorManager struct {
	sender  Sender
	adminID int64
}

func NewErrorManager(sender Sender, adminID int64) *ErrorManager {
	return &ErrorManager{
		sender:  sender,
		adminID: adminID,
	}
}

func (e *ErrorManager) NotifyAdmin(ctx context.Context, panicValue any, update *tgmodels.Update) {
	msg := fmt.Sprintf("🚨 Panic in handler\nUser: %s\nUpdate: %s\nError: %v\n\nStack trace:\n%s",
		describeSender(update), describeUpdate(update), panicValue, string(debug.Stack()))
	e.send(ctx, msg)
}

func (e *ErrorManager) NotifyAdminWithCurl(ctx context.Context, chatID int64, request any, err error) {
	msg := fmt.Sprintf("❌ Failed to send message\nUser: [%d]\nError: %v\n\nCurl:\n%s",
		chatID, err, buildCurlCommand(request))
	e.send(ctx, msg)
}

func (e *ErrorManager) send(ctx context.Context, msg string) {
	if len(msg) > maxAdminMessageLen {
		msg = msg[:maxAdminMessageLen] + "\n... (truncated)"
	}
	if e.sender == nil || e.adminID == 0 {
		log.Printf("[ERROR] %s", msg)
		return
	}
	if _, err := e.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: e.adminID,
		Text:   msg,
	}); err != nil {
		log.Printf("[ERROR] notify admin: %v", err)
	}
}

func describeSender(update *tgmodels.Update) string {
	if update == nil {
		return "unknown"
	}
	var from *tgmodels.User
	switch {
	case update.Message != nil && update.Message.From != nil:
		from = update.Message.From
	case update.CallbackQuery != nil && update.CallbackQuery.From.ID != 0:
		from = &update.CallbackQuery.From
	default:
		return "unknown"
	}

	info := fmt.Sprintf("[%d]", from.ID)
	if from.FirstName != "" {
		info = from.FirstName + " " + info
	}
	if from.Username != "" {
		info += " @" + from.Username
	}
	return info
}

func describeUpdate(update *tgmodels.Update) string {
	switch {
	case update == nil:
		return "none"
	case update.Message != nil:
		return fmt.Sprintf("message %q", update.Message.Text)
	case update.CallbackQuery != nil:
		return fmt.Sprintf("callback %q", update.CallbackQuery.Data)
	}
	return "other"
}

func buildCurlCommand(request any) string {
	jsonData, err := json.MarshalIndent(request, "", "  ")
	if err != nil {
		return fmt.Sprintf("# Failed to serialize request: %v", err)
	}

	return fmt.Sprintf("curl -X POST 'https://api.telegram.org/bot[BOT_TOKEN]/sendMessage' \\\n  -H 'Content-Type: application/json' \\\n  -d '%s'",
		string(jsonData))
}
