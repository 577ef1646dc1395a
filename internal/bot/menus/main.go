package menus

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/vladimiradmaev/dish-journal/internal/bot/keyboards"
	"github.com/vladimiradmaev/dish-journal/internal/domain"
)

// Sender is the part of the bot API menus need
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// SendMainMenu sends the main menu to a chat
func SendMainMenu(api Sender, chatID int64) error {
	text := `🍽️ *Dish Journal*

📷 Send a photo of your meal and I will:
• Identify the dish and its components
• Estimate calories and macros once you confirm
• File it under today's dishes (up to 5 per day)

Choose an action:`

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = keyboards.MainMenu()
	_, err := api.Send(msg)
	return err
}

// SendDay sends the slots of a day
func SendDay(api Sender, chatID int64, view *domain.DayView) error {
	return sendMarkdown(api, chatID, FormatDay(view), keyboards.DayMenu(view))
}

// SendRecord sends the current analysis of a record
func SendRecord(api Sender, chatID int64, id uint, it *domain.Iteration, st domain.AnalysisState) error {
	return sendMarkdown(api, chatID, FormatIteration(it, st), keyboards.RecordMenu(id, st))
}

// sendMarkdown falls back to plain text when Telegram rejects the markup
func sendMarkdown(api Sender, chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewMessage(chatID, strings.ToValidUTF8(text, ""))
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = keyboard
	if _, err := api.Send(msg); err == nil {
		return nil
	}
	msg.ParseMode = ""
	_, err := api.Send(msg)
	return err
}

// FormatDay renders the slot overview of a day
func FormatDay(view *domain.DayView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📅 *%s*\n\n", view.FormattedDate)
	used := 0
	for p := 1; p <= view.MaxDishes; p++ {
		if view.Slot(p).HasData {
			used++
			fmt.Fprintf(&b, "%d. ✅ logged\n", p)
		} else {
			fmt.Fprintf(&b, "%d. ➖ empty\n", p)
		}
	}
	if used == 0 {
		b.WriteString("\nNo dishes yet. Send a photo to log one.")
	}
	return b.String()
}

// FormatMonth renders per day record counts of a month
func FormatMonth(year int, month time.Month, counts map[string]int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🗓️ *%s %d*\n\n", month, year)

	days := make([]string, 0, len(counts))
	total := 0
	for day, n := range counts {
		if n > 0 {
			days = append(days, day)
			total += n
		}
	}
	if len(days) == 0 {
		b.WriteString("No dishes logged this month.")
		return b.String()
	}
	sort.Strings(days)
	for _, day := range days {
		fmt.Fprintf(&b, "• %s: %d\n", day, counts[day])
	}
	fmt.Fprintf(&b, "\nTotal: %d", total)
	return b.String()
}

// FormatIteration renders the current iteration of a record
func FormatIteration(it *domain.Iteration, st domain.AnalysisState) string {
	if it == nil {
		return "⏳ Analysis in progress... Tap Refresh in a moment."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🍽️ *%s*\n", escapeMarkdown(dishName(it)))
	fmt.Fprintf(&b, "Iteration %d\n\n", it.Number)

	switch st {
	case domain.StateStep1Done:
		writeIdentification(&b, it.Step1Data)
		b.WriteString("\nTap Confirm to run the nutrition analysis.")
		return b.String()
	case domain.StateStep1Confirmed:
		b.WriteString("⏳ Nutrition analysis in progress...")
		return b.String()
	}

	result := it.Result()
	nutrients := []struct {
		key, label, unit string
	}{
		{"calories_kcal", "🔥 Calories", "kcal"},
		{"carbs_g", "🍞 Carbs", "g"},
		{"protein_g", "🥩 Protein", "g"},
		{"fat_g", "🧈 Fat", "g"},
		{"fiber_g", "🥦 Fiber", "g"},
	}
	for _, n := range nutrients {
		if v, ok := result.Number(n.key); ok {
			fmt.Fprintf(&b, "%s: %.1f %s\n", n.label, v, n.unit)
		}
	}
	if v, ok := result.Number("healthiness_score"); ok {
		fmt.Fprintf(&b, "💚 Healthiness: %.0f/10\n", v)
	}
	fmt.Fprintf(&b, "\n🍴 Servings: %g", it.Metadata.NumberOfServings())
	if size := it.Metadata.SelectedServingSize(); size != nil {
		fmt.Fprintf(&b, " x %s", escapeMarkdown(*size))
	}
	return b.String()
}

func writeIdentification(b *strings.Builder, step1 domain.Document) {
	if preds, ok := step1["dish_predictions"].([]any); ok && len(preds) > 0 {
		b.WriteString("*Possible dishes:*\n")
		for _, p := range preds {
			if doc, ok := p.(map[string]any); ok {
				if name, ok := domain.Document(doc).String("name"); ok {
					fmt.Fprintf(b, "• %s\n", escapeMarkdown(name))
				}
			}
		}
	}
	if comps, ok := step1["components"].([]any); ok && len(comps) > 0 {
		b.WriteString("*Components:*\n")
		for _, c := range comps {
			doc, ok := c.(map[string]any)
			if !ok {
				continue
			}
			name, ok := domain.Document(doc).String("component_name")
			if !ok {
				continue
			}
			line := escapeMarkdown(name)
			if sizes, ok := doc["serving_sizes"].([]any); ok && len(sizes) > 0 {
				if s, ok := sizes[0].(string); ok {
					line += " (" + escapeMarkdown(s) + ")"
				}
			}
			fmt.Fprintf(b, "• %s\n", line)
		}
	}
}

func dishName(it *domain.Iteration) string {
	if s := it.Metadata.SelectedDish(); s != "" {
		return s
	}
	if s := it.Metadata.ConfirmedDishName(); s != "" {
		return s
	}
	if s, ok := it.Result().String("dish_name"); ok {
		return s
	}
	return domain.UnknownDish
}

// escapeMarkdown escapes the characters legacy Markdown treats as markup
func escapeMarkdown(s string) string {
	return strings.NewReplacer("_", "\\_", "*", "\\*", "[", "\\[", "]", "\\]", "`", "\\`").Replace(s)
}
