package handlers

import (
	"context"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/vladimiradmaev/dish-journal/internal/bot/menus"
	"github.com/vladimiradmaev/dish-journal/internal/bot/state"
	"github.com/vladimiradmaev/dish-journal/internal/database"
	"github.com/vladimiradmaev/dish-journal/internal/domain"
	"github.com/vladimiradmaev/dish-journal/internal/logger"
)

const defaultServingSize = "1 serving"

// TextHandler handles text messages
type TextHandler struct {
	api          BotAPI
	deps         Dependencies
	stateManager state.StateManager
}

// NewTextHandler creates a new text handler
func NewTextHandler(api BotAPI, deps Dependencies, stateManager state.StateManager) *TextHandler {
	return &TextHandler{
		api:          api,
		deps:         deps,
		stateManager: stateManager,
	}
}

// Handle processes a text message
func (h *TextHandler) Handle(ctx context.Context, message *tgbotapi.Message, user *database.User) error {
	switch h.stateManager.GetUserState(message.From.ID) {
	case state.WaitingForServings:
		return h.handleServings(ctx, message, user)
	default:
		return menus.SendMainMenu(h.api, message.Chat.ID)
	}
}

// handleServings applies the number of servings to the current iteration
func (h *TextHandler) handleServings(ctx context.Context, message *tgbotapi.Message, user *database.User) error {
	telegramID, chatID := message.From.ID, message.Chat.ID

	servings, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(message.Text), ",", "."), 64)
	if err != nil || domain.ValidateServings(servings) != nil {
		return sendText(h.api, chatID, "Please send a number between 0.01 and 10 (for example: 1.5)")
	}

	id, ok := state.RecordID(h.stateManager, telegramID)
	h.stateManager.ClearUserState(telegramID)
	h.stateManager.ClearTempData(telegramID)
	if !ok {
		return menus.SendMainMenu(h.api, chatID)
	}

	_, current, err := h.deps.Dishes.GetCurrent(ctx, user.ID, id)
	if err != nil || current == nil {
		return sendText(h.api, chatID, "This dish has no analysis to update.")
	}

	update := servingsUpdate(current.Metadata, servings)
	updated, err := h.deps.Dishes.UpdateMetadata(ctx, user.ID, id, update)
	if err != nil {
		logger.Error("Failed to update servings", "user_id", user.ID, "record_id", id, "error", err)
		return sendText(h.api, chatID, "Sorry, I could not update the servings. Please try again.")
	}
	if !updated {
		return sendText(h.api, chatID, "This dish has no analysis to update.")
	}
	return sendText(h.api, chatID, "✅ Servings updated to "+strconv.FormatFloat(servings, 'g', -1, 64))
}

// servingsUpdate keeps the chosen dish and serving size and replaces the
// number of servings
func servingsUpdate(md domain.Metadata, servings float64) domain.MetadataUpdate {
	dish := md.SelectedDish()
	if dish == "" {
		dish = md.ConfirmedDishName()
	}
	if dish == "" {
		dish = domain.UnknownDish
	}
	size := defaultServingSize
	if s := md.SelectedServingSize(); s != nil && strings.TrimSpace(*s) != "" {
		size = *s
	}
	return domain.MetadataUpdate{
		SelectedDish:        dish,
		SelectedServingSize: size,
		NumberOfServings:    servings,
	}
}
