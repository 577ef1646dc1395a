package database

import (
	"time"

	"github.com/vladimiradmaev/dish-journal/internal/domain"
	"gorm.io/datatypes"
)

// MaxDishesPerDate is the number of position slots per logical date.
const MaxDishesPerDate = 5

type User struct {
	ID             uint   `gorm:"primaryKey"`
	Username       string `gorm:"uniqueIndex;size:255;not null"`
	HashedPassword string `gorm:"not null"`
	Role           string `gorm:"size:32;default:user"`
	TelegramID     *int64 `gorm:"uniqueIndex"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// DishImageQuery is one uploaded dish image and its analysis. ResultGemini
// holds the versioned analysis payload; ResultOpenAI is the optional payload
// of the secondary provider.
type DishImageQuery struct {
	ID           uint   `gorm:"primaryKey"`
	UserID       uint   `gorm:"index;not null"`
	ImageURL     string `gorm:"not null"`
	ResultGemini datatypes.JSON
	ResultOpenAI datatypes.JSON `gorm:"column:result_openai"`
	DishPosition *int           `gorm:"index"`
	CreatedAt    time.Time      `gorm:"index"`
	TargetDate   *time.Time     `gorm:"index"`
}

func (DishImageQuery) TableName() string {
	return "dish_image_query"
}

// Payload normalizes the stored analysis payload. It returns nil when no
// analysis has been written yet.
func (q *DishImageQuery) Payload() (*domain.Payload, error) {
	return domain.ParsePayload(q.ResultGemini, q.CreatedAt)
}

// LogicalDate is the day the dish counts toward: target_date when set,
// created_at otherwise.
func (q *DishImageQuery) LogicalDate() time.Time {
	if q.TargetDate != nil {
		return q.TargetDate.UTC()
	}
	return q.CreatedAt.UTC()
}

// Position returns the slot or 0 when the record predates position slots.
func (q *DishImageQuery) Position() int {
	if q.DishPosition == nil {
		return 0
	}
	return *q.DishPosition
}
