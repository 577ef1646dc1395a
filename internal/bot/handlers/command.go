package handlers

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/vladimiradmaev/dish-journal/internal/bot/menus"
	"github.com/vladimiradmaev/dish-journal/internal/bot/state"
	"github.com/vladimiradmaev/dish-journal/internal/database"
	"github.com/vladimiradmaev/dish-journal/internal/logger"
)

const helpText = `Available commands:
/start - Show the main menu
/today - Show today's dishes
/month - Show dish counts for this month
/help - Show this message

How to log a dish:
1. Send a photo of your meal
2. Wait for the dish and its components to be identified
3. Tap "Confirm" to get the nutrition facts
4. Tap "Servings" to change how much you ate`

// CommandHandler handles bot commands
type CommandHandler struct {
	api          BotAPI
	deps         Dependencies
	stateManager state.StateManager
}

// NewCommandHandler creates a new command handler
func NewCommandHandler(api BotAPI, deps Dependencies, stateManager state.StateManager) *CommandHandler {
	return &CommandHandler{
		api:          api,
		deps:         deps,
		stateManager: stateManager,
	}
}

// Handle processes a command message
func (h *CommandHandler) Handle(ctx context.Context, message *tgbotapi.Message, user *database.User) error {
	logger.Info("Handling command", "command", message.Command(), "user_id", user.ID)

	chatID := message.Chat.ID
	switch message.Command() {
	case "start":
		h.stateManager.ClearUserState(message.From.ID)
		h.stateManager.ClearTempData(message.From.ID)
		return menus.SendMainMenu(h.api, chatID)
	case "help":
		return sendText(h.api, chatID, helpText)
	case "today":
		return sendToday(ctx, h.api, h.deps, chatID, user)
	case "month":
		return sendMonth(ctx, h.api, h.deps, chatID, user)
	default:
		return sendText(h.api, chatID, "Unknown command. Use /help to see the available commands.")
	}
}

func sendToday(ctx context.Context, api BotAPI, deps Dependencies, chatID int64, user *database.User) error {
	view, err := deps.Calendar.DayView(ctx, user.ID, deps.now())
	if err != nil {
		logger.Error("Failed to load day view", "user_id", user.ID, "error", err)
		return sendText(api, chatID, "Sorry, I could not load your dishes. Please try again.")
	}
	return menus.SendDay(api, chatID, view)
}

func sendMonth(ctx context.Context, api BotAPI, deps Dependencies, chatID int64, user *database.User) error {
	now := deps.now().UTC()
	counts, err := deps.Calendar.MonthCounts(ctx, user.ID, now.Year(), now.Month())
	if err != nil {
		logger.Error("Failed to load month counts", "user_id", user.ID, "error", err)
		return sendText(api, chatID, "Sorry, I could not load your calendar. Please try again.")
	}
	msg := tgbotapi.NewMessage(chatID, menus.FormatMonth(now.Year(), now.Month(), counts))
	msg.ParseMode = tgbotapi.ModeMarkdown
	_, err = api.Send(msg)
	return err
}
