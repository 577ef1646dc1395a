package interfaces

import (
	"context"
	"time"

	"github.com/vladimiradmaev/dish-journal/internal/database"
	"github.com/vladimiradmaev/dish-journal/internal/domain"
)

// DishServiceInterface defines the contract for record operations
type DishServiceInterface interface {
	Upload(ctx context.Context, userID uint, date time.Time, position int, image []byte, contentType string) (*database.DishImageQuery, error)
	Get(ctx context.Context, userID, id uint) (*database.DishImageQuery, error)
	GetCurrent(ctx context.Context, userID, id uint) (*database.DishImageQuery, *domain.Iteration, error)
	ListRecent(ctx context.Context, userID, id uint, limit int) ([]domain.Iteration, error)
	UpdateMetadata(ctx context.Context, userID, id uint, u domain.MetadataUpdate) (bool, error)
	ConfirmStep1(ctx context.Context, userID, id uint, dishName string, components []domain.ConfirmedComponent) error
	Reanalyze(ctx context.Context, userID, id uint, u domain.MetadataUpdate) error
	Delete(ctx context.Context, userID, id uint) error
}

// CalendarServiceInterface defines the contract for day and month views
type CalendarServiceInterface interface {
	DayView(ctx context.Context, userID uint, date time.Time) (*domain.DayView, error)
	MonthView(ctx context.Context, userID uint, year, month int) (*domain.MonthView, error)
	MonthCounts(ctx context.Context, userID uint, year int, month time.Month) (map[string]int, error)
}

// UserServiceInterface defines the contract for user operations
type UserServiceInterface interface {
	Register(ctx context.Context, username, password string) (*database.User, error)
	Authenticate(ctx context.Context, username, password string) (*database.User, error)
	GetByID(ctx context.Context, id uint) (*database.User, error)
	GetOrCreateTelegramUser(ctx context.Context, telegramID int64, username string) (*database.User, error)
}
