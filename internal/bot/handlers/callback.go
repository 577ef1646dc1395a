package handlers

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/vladimiradmaev/dish-journal/internal/bot/keyboards"
	"github.com/vladimiradmaev/dish-journal/internal/bot/menus"
	"github.com/vladimiradmaev/dish-journal/internal/bot/state"
	"github.com/vladimiradmaev/dish-journal/internal/database"
	"github.com/vladimiradmaev/dish-journal/internal/domain"
	apperrors "github.com/vladimiradmaev/dish-journal/internal/errors"
	"github.com/vladimiradmaev/dish-journal/internal/logger"
)

// CallbackHandler handles callback query messages
type CallbackHandler struct {
	api          BotAPI
	deps         Dependencies
	stateManager state.StateManager
}

// NewCallbackHandler creates a new callback handler
func NewCallbackHandler(api BotAPI, deps Dependencies, stateManager state.StateManager) *CallbackHandler {
	return &CallbackHandler{
		api:          api,
		deps:         deps,
		stateManager: stateManager,
	}
}

// Handle processes a callback query
func (h *CallbackHandler) Handle(ctx context.Context, query *tgbotapi.CallbackQuery, user *database.User) error {
	// Answer the callback query first
	if _, err := h.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		return err
	}
	if query.Message == nil {
		return nil
	}
	chatID := query.Message.Chat.ID

	action, id, ok := keyboards.ParseData(query.Data)
	if !ok {
		return h.handleUnknownCallback(chatID)
	}

	switch action {
	case keyboards.ActionMainMenu:
		h.stateManager.ClearUserState(query.From.ID)
		return menus.SendMainMenu(h.api, chatID)
	case keyboards.ActionToday:
		return sendToday(ctx, h.api, h.deps, chatID, user)
	case keyboards.ActionMonth:
		return sendMonth(ctx, h.api, h.deps, chatID, user)
	case keyboards.ActionShow:
		return h.handleShow(ctx, chatID, user, id)
	case keyboards.ActionConfirm:
		return h.handleConfirm(ctx, chatID, user, id)
	case keyboards.ActionServings:
		return h.handleServings(ctx, query.From.ID, chatID, user, id)
	default:
		return h.handleUnknownCallback(chatID)
	}
}

// handleShow renders the current iteration of a record
func (h *CallbackHandler) handleShow(ctx context.Context, chatID int64, user *database.User, id uint) error {
	rec, current, err := h.deps.Dishes.GetCurrent(ctx, user.ID, id)
	if err != nil {
		return h.handleRecordError(chatID, user, id, err)
	}
	p, _ := rec.Payload()
	return menus.SendRecord(h.api, chatID, id, current, domain.StateOf(p))
}

// handleConfirm accepts the suggested dish and components of step 1
func (h *CallbackHandler) handleConfirm(ctx context.Context, chatID int64, user *database.User, id uint) error {
	rec, current, err := h.deps.Dishes.GetCurrent(ctx, user.ID, id)
	if err != nil {
		return h.handleRecordError(chatID, user, id, err)
	}
	p, _ := rec.Payload()
	if domain.StateOf(p) != domain.StateStep1Done || current == nil {
		return sendText(h.api, chatID, "This dish cannot be confirmed right now.")
	}

	dish, components, err := domain.DefaultConfirmation(current.Step1Data)
	if err != nil {
		return sendText(h.api, chatID, "The dish could not be identified. Please send another photo.")
	}
	if err := h.deps.Dishes.ConfirmStep1(ctx, user.ID, id, dish, components); err != nil {
		return h.handleRecordError(chatID, user, id, err)
	}
	return sendText(h.api, chatID, "✅ Confirmed "+dish+". Nutrition analysis in progress...")
}

// handleServings asks for the number of servings eaten
func (h *CallbackHandler) handleServings(ctx context.Context, telegramID, chatID int64, user *database.User, id uint) error {
	if _, err := h.deps.Dishes.Get(ctx, user.ID, id); err != nil {
		return h.handleRecordError(chatID, user, id, err)
	}
	h.stateManager.SetUserState(telegramID, state.WaitingForServings)
	h.stateManager.SetTempData(telegramID, state.KeyRecordID, id)
	return sendText(h.api, chatID, "How many servings did you eat? Send a number between 0.01 and 10, for example 1.5")
}

func (h *CallbackHandler) handleRecordError(chatID int64, user *database.User, id uint, err error) error {
	switch {
	case apperrors.IsType(err, apperrors.ErrorTypeNotFound):
		return sendText(h.api, chatID, "This dish no longer exists.")
	case apperrors.IsType(err, apperrors.ErrorTypeInvalidState):
		return sendText(h.api, chatID, "This dish cannot be confirmed right now.")
	}
	logger.Error("Failed to handle dish action", "user_id", user.ID, "record_id", id, "error", err)
	return sendText(h.api, chatID, "Sorry, something went wrong. Please try again.")
}

// handleUnknownCallback handles unknown callbacks
func (h *CallbackHandler) handleUnknownCallback(chatID int64) error {
	return sendText(h.api, chatID, "Unknown action. Use /help to see the available commands.")
}
