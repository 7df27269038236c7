package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/ad/go-onboarding-journey/internal/journey"
	"github.com/ad/go-onboarding-journey/internal/services"
	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
)

const welcomeText = "👋 Welcome! This bot walks you through your student onboarding one step at a time."

// BotHandler presents each chat's onboarding journey in Telegram.
type BotHandler struct {
	registry     *journey.Registry
	msgManager   *services.MessageManager
	errorManager *services.ErrorManager
	studentID    string
}

// NewBotHandler builds the handler. A non-empty studentID pins every chat to
// that student; otherwise the Telegram user id names the student.
func NewBotHandler(
	registry *journey.Registry,
	msgManager *services.MessageManager,
	errorManager *services.ErrorManager,
	studentID string,
) *BotHandler {
	return &BotHandler{
		registry:     registry,
		msgManager:   msgManager,
		errorManager: errorManager,
		studentID:    studentID,
	}
}

func (h *BotHandler) HandleUpdate(ctx context.Context, _ *bot.Bot, update *tgmodels.Update) {
	defer h.recoverPanic(ctx, update)

	if update.Message != nil {
		h.handleMessage(ctx, update.Message)
	} else if update.CallbackQuery != nil {
		h.handleCallback(ctx, update.CallbackQuery)
	}
}

func (h *BotHandler) recoverPanic(ctx context.Context, update *tgmodels.Update) {
	if r := recover(); r != nil {
		log.Printf("[BOT] panic: %v", r)
		h.errorManager.NotifyAdmin(ctx, r, update)
	}
}

func (h *BotHandler) studentFor(userID int64) string {
	if h.studentID != "" {
		return h.studentID
	}
	return fmt.Sprintf("tg_%d", userID)
}

func (h *BotHandler) handleMessage(ctx context.Context, msg *tgmodels.Message) {
	if msg.From == nil {
		return
	}

	command, _, _ := strings.Cut(strings.TrimSpace(msg.Text), " ")
	command, _, _ = strings.Cut(command, "@")
	switch command {
	case "/start":
		h.msgManager.SendWithRetry(ctx, &bot.SendMessageParams{
			ChatID: msg.Chat.ID,
			Text:   welcomeText,
		})
		h.sendJourney(ctx, msg.Chat.ID, msg.From.ID)
	case "/progress":
		h.sendJourney(ctx, msg.Chat.ID, msg.From.ID)
	default:
		h.msgManager.SendWithRetry(ctx, &bot.SendMessageParams{
			ChatID: msg.Chat.ID,
			Text:   "Send /progress to see your onboarding journey.",
		})
	}
}

// sendJourney re-fetches the student's progress and posts it as a new message.
func (h *BotHandler) sendJourney(ctx context.Context, chatID, userID int64) {
	ctrl := h.registry.Get(h.studentFor(userID))
	if err := ctrl.Load(ctx); err != nil && !errors.Is(err, journey.ErrBusy) {
		log.Printf("[BOT] load journey for %d: %v", userID, err)
	}

	view := ctrl.View()
	h.msgManager.SendWithRetry(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        services.FormatJourney(view),
		ParseMode:   tgmodels.ParseModeHTML,
		ReplyMarkup: services.JourneyKeyboard(view),
	})
}

func (h *BotHandler) handleCallback(ctx context.Context, callback *tgmodels.CallbackQuery) {
	ctrl := h.registry.Get(h.studentFor(callback.From.ID))

	switch {
	case callback.Data == services.CallbackRefresh:
		h.handleRefresh(ctx, ctrl, callback)
	case strings.HasPrefix(callback.Data, services.CallbackComplete):
		stepID, ok := services.ParseCompleteCallback(callback.Data)
		if !ok {
			h.msgManager.AnswerCallback(ctx, callback.ID, "Unknown step", false)
			return
		}
		h.handleComplete(ctx, ctrl, callback, stepID)
	default:
		h.msgManager.AnswerCallback(ctx, callback.ID, "", false)
	}
}

func (h *BotHandler) handleRefresh(ctx context.Context, ctrl *journey.Controller, callback *tgmodels.CallbackQuery) {
	var err error
	if ctrl.View().State == journey.StateError {
		err = ctrl.Retry(ctx)
	} else {
		err = ctrl.Refresh(ctx)
	}

	if err != nil {
		h.msgManager.AnswerCallback(ctx, callback.ID, describeError(err), true)
	} else {
		h.msgManager.AnswerCallback(ctx, callback.ID, "Updated", false)
	}
	h.editJourney(ctx, ctrl, callback)
}

func (h *BotHandler) handleComplete(ctx context.Context, ctrl *journey.Controller, callback *tgmodels.CallbackQuery, stepID int) {
	// A controller recreated after eviction has never loaded.
	if v := ctrl.View(); v.State == journey.StateLoading && v.Snapshot == nil {
		if err := ctrl.Load(ctx); err != nil {
			h.msgManager.AnswerCallback(ctx, callback.ID, describeError(err), true)
			h.editJourney(ctx, ctrl, callback)
			return
		}
	}

	xp, err := ctrl.CompleteStep(ctx, stepID)
	if err != nil {
		h.msgManager.AnswerCallback(ctx, callback.ID, describeError(err), true)
	} else {
		h.msgManager.AnswerCallback(ctx, callback.ID, fmt.Sprintf("🎉 +%d XP", xp), false)
	}
	h.editJourney(ctx, ctrl, callback)
}

func (h *BotHandler) editJourney(ctx context.Context, ctrl *journey.Controller, callback *tgmodels.CallbackQuery) {
	if callback.Message.Message == nil {
		return
	}
	view := ctrl.View()
	msg := callback.Message.Message
	if err := h.msgManager.EditWithRetry(ctx, &bot.EditMessageTextParams{
		ChatID:      msg.Chat.ID,
		MessageID:   msg.ID,
		Text:        services.FormatJourney(view),
		ParseMode:   tgmodels.ParseModeHTML,
		ReplyMarkup: services.JourneyKeyboard(view),
	}); err != nil {
		log.Printf("[BOT] edit journey message %d: %v", msg.ID, err)
	}
}

func describeError(err error) string {
	switch {
	case errors.Is(err, journey.ErrBusy):
		return "⏳ Still working on your previous request"
	case errors.Is(err, journey.ErrInvalidStepTransition):
		return "This step is not available right now"
	case errors.Is(err, journey.ErrNotReady):
		return "Your journey is still loading, try again in a moment"
	case errors.Is(err, journey.ErrNotFailed):
		return "Already up to date"
	case errors.Is(err, journey.ErrDisposed):
		return "Session expired, send /progress"
	case errors.Is(err, journey.ErrNetwork):
		return "⚠️ Could not reach the onboarding server, try again"
	default:
		return "⚠️ Something went wrong"
	}
}
