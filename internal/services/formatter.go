package services

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/ad/go-onboarding-journey/internal/journey"
	"github.com/ad/go-onboarding-journey/internal/models"
	tgmodels "github.com/go-telegram/bot/models"
)

const progressBarWidth = 10

const (
	CallbackComplete = "complete:"
	CallbackRefresh  = "refresh"
)

func FormatBold(text string) string {
	return fmt.Sprintf("<b>%s</b>", html.EscapeString(text))
}

func FormatItalic(text string) string {
	return fmt.Sprintf("<i>%s</i>", html.EscapeString(text))
}

// ProgressBar renders percentage as a fixed-width bar, e.g. "▓▓▓░░░░░░░ 30%".
func ProgressBar(percentage int) string {
	if percentage < 0 {
		percentage = 0
	}
	if percentage > 100 {
		percentage = 100
	}
	filled := percentage * progressBarWidth / 100
	return strings.Repeat("▓", filled) + strings.Repeat("░", progressBarWidth-filled) + " " + strconv.Itoa(percentage) + "%"
}

func statusIcon(status models.StepStatus) string {
	switch status {
	case models.StatusCompleted:
		return "✅"
	case models.StatusUnlocked:
		return "▶️"
	default:
		return "🔒"
	}
}

// FormatJourney renders a controller view as Telegram HTML.
func FormatJourney(v journey.View) string {
	if v.Snapshot == nil {
		if v.State == journey.StateError {
			return "⚠️ Could not load your onboarding journey.\n" + FormatItalic(errorText(v.Err))
		}
		return "⏳ Loading your onboarding journey..."
	}

	snap := v.Snapshot
	var sb strings.Builder
	sb.WriteString(FormatBold("🎓 Onboarding journey"))
	sb.WriteString("\n")
	sb.WriteString(ProgressBar(snap.Percentage()))
	sb.WriteString(fmt.Sprintf("\n%d/%d steps · %d XP\n\n", snap.CompletedCount(), snap.Total(), snap.TotalXP()))

	for _, step := range snap.Steps() {
		line := fmt.Sprintf("%s %d. %s", statusIcon(step.Status), step.ID, html.EscapeString(step.Title))
		if step.Status == models.StatusUnlocked {
			line = "<b>" + line + "</b>"
		}
		sb.WriteString(line)
		sb.WriteString(fmt.Sprintf(" (+%d XP)\n", step.XP))
	}

	sb.WriteString("\n")
	switch {
	case snap.IsFinished():
		sb.WriteString("🎉 All steps completed!")
	case v.Current != nil && v.Current.Status == models.StatusUnlocked:
		sb.WriteString("Next: " + FormatBold(v.Current.Title) + "\n")
		if v.Current.Description != "" {
			sb.WriteString(FormatItalic(v.Current.Description) + "\n")
		}
		sb.WriteString(fmt.Sprintf("⏱ ~%d min · +%d XP", v.Current.Minutes, v.Current.XP))
	default:
		sb.WriteString("No step is available right now.")
	}

	switch {
	case v.Pending:
		sb.WriteString("\n\n⏳ Submitting...")
	case v.State == journey.StateLoading:
		sb.WriteString("\n\n⏳ Updating...")
	case v.State == journey.StateError:
		sb.WriteString("\n\n⚠️ " + FormatItalic(errorText(v.Err)))
	}
	return sb.String()
}

// JourneyKeyboard offers completing the current step when the view allows it,
// and always a refresh button.
func JourneyKeyboard(v journey.View) *tgmodels.InlineKeyboardMarkup {
	var rows [][]tgmodels.InlineKeyboardButton
	if v.State == journey.StateReady && !v.Pending && v.Current != nil && v.Current.Status == models.StatusUnlocked {
		rows = append(rows, []tgmodels.InlineKeyboardButton{{
			Text:         "✅ Complete: " + v.Current.Title,
			CallbackData: CallbackComplete + strconv.Itoa(v.Current.ID),
		}})
	}
	label := "🔄 Refresh"
	if v.State == journey.StateError {
		label = "🔁 Retry"
	}
	rows = append(rows, []tgmodels.InlineKeyboardButton{{
		Text:         label,
		CallbackData: CallbackRefresh,
	}})
	return &tgmodels.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// ParseCompleteCallback extracts the step id from "complete:<id>".
func ParseCompleteCallback(data string) (int, bool) {
	raw, ok := strings.CutPrefix(data, CallbackComplete)
	if !ok {
		return 0, false
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func errorText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
