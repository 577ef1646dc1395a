package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/vladimiradmaev/dish-journal/internal/bot/keyboards"
	"github.com/vladimiradmaev/dish-journal/internal/database"
	"github.com/vladimiradmaev/dish-journal/internal/logger"
)

// PhotoHandler handles photo messages
type PhotoHandler struct {
	api    BotAPI
	deps   Dependencies
	client *http.Client
}

// NewPhotoHandler creates a new photo handler
func NewPhotoHandler(api BotAPI, deps Dependencies) *PhotoHandler {
	return &PhotoHandler{
		api:    api,
		deps:   deps,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Handle uploads the photo into the first free slot of today
func (h *PhotoHandler) Handle(ctx context.Context, message *tgbotapi.Message, user *database.User) error {
	chatID := message.Chat.ID
	today := h.deps.now()

	view, err := h.deps.Calendar.DayView(ctx, user.ID, today)
	if err != nil {
		logger.Error("Failed to load day view", "user_id", user.ID, "error", err)
		return sendText(h.api, chatID, "Sorry, something went wrong. Please try again.")
	}
	position := view.FreePosition()
	if position == 0 {
		return sendText(h.api, chatID, fmt.Sprintf("You already logged %d dishes today. Delete one to add another.", view.MaxDishes))
	}

	// Get the largest photo
	photo := message.Photo[len(message.Photo)-1]
	data, err := downloadFile(ctx, h.api, h.client, photo.FileID)
	if err != nil {
		logger.Error("Failed to download photo", "user_id", user.ID, "error", err)
		return sendText(h.api, chatID, "Sorry, I could not download the photo. Please try again.")
	}

	rec, err := h.deps.Dishes.Upload(ctx, user.ID, today, position, data, "image/jpeg")
	if err != nil {
		logger.Error("Failed to upload photo", "user_id", user.ID, "error", err)
		return sendText(h.api, chatID, "Sorry, I could not save the photo. Please try again.")
	}
	logger.Info("Dish photo uploaded", "user_id", user.ID, "record_id", rec.ID, "position", position)

	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("📷 Saved as dish %d of today. Analysis in progress...", position))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔍 Show result", keyboards.RecordData(keyboards.ActionShow, rec.ID)),
		),
	)
	_, err = h.api.Send(msg)
	return err
}
