package keyboards

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/vladimiradmaev/dish-journal/internal/domain"
)

// Callback actions
const (
	ActionMainMenu = "main_menu"
	ActionToday    = "today"
	ActionMonth    = "month"
	ActionShow     = "show"
	ActionConfirm  = "confirm"
	ActionServings = "servings"
)

// RecordData builds the callback data of a record action
func RecordData(action string, id uint) string {
	return fmt.Sprintf("%s:%d", action, id)
}

// ParseData splits callback data into its action and optional record id.
// A malformed id yields ok=false.
func ParseData(data string) (action string, id uint, ok bool) {
	action, raw, found := strings.Cut(data, ":")
	if !found {
		return action, 0, true
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || n == 0 {
		return action, 0, false
	}
	return action, uint(n), true
}

// MainMenu creates the main menu keyboard
func MainMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📅 Today", ActionToday),
			tgbotapi.NewInlineKeyboardButtonData("🗓️ This month", ActionMonth),
		),
	)
}

// DayMenu lists the used slots of a day
func DayMenu(view *domain.DayView) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for p := 1; p <= view.MaxDishes; p++ {
		slot := view.Slot(p)
		if !slot.HasData || slot.RecordID == nil {
			continue
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("🍽️ Dish %d", p), RecordData(ActionShow, *slot.RecordID)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("◀️ Main menu", ActionMainMenu),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// RecordMenu offers the actions valid for a record in the given state
func RecordMenu(id uint, st domain.AnalysisState) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	switch st {
	case domain.StateStep1Done:
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Confirm", RecordData(ActionConfirm, id)),
		))
	case domain.StateStep2Done, domain.StateAnalyzed:
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✏️ Servings", RecordData(ActionServings, id)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🔄 Refresh", RecordData(ActionShow, id)),
		tgbotapi.NewInlineKeyboardButtonData("◀️ Main menu", ActionMainMenu),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
