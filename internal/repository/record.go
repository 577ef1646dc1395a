package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vladimiradmaev/dish-journal/internal/database"
	apperrors "github.com/vladimiradmaev/dish-journal/internal/errors"
	"github.com/vladimiradmaev/dish-journal/internal/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RecordRepository persists dish image queries. It knows nothing about the
// payload structure beyond storing it whole.
type RecordRepository struct {
	db *gorm.DB
}

// NewRecordRepository creates a new record repository
func NewRecordRepository(db *gorm.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// onDate matches a record whose target_date falls on the day, or whose
// created_at does when it has no target_date. The fallback is decided per row.
func onDate(date time.Time) func(*gorm.DB) *gorm.DB {
	start, end := utils.DayBounds(date)
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(
			"((target_date IS NOT NULL AND target_date >= ? AND target_date < ?) OR (target_date IS NULL AND created_at >= ? AND created_at < ?))",
			start, end, start, end)
	}
}

func wrapErr(err error, id uint) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperrors.NewNotFoundError("record", id)
	default:
		return apperrors.NewDatabaseError(err).With("record_id", id)
	}
}

func normalizeTimes(rec *database.DishImageQuery) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	} else {
		rec.CreatedAt = rec.CreatedAt.UTC()
	}
	if rec.TargetDate != nil {
		t := rec.TargetDate.UTC()
		rec.TargetDate = &t
	}
}

func (r *RecordRepository) Create(ctx context.Context, rec *database.DishImageQuery) error {
	normalizeTimes(rec)
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return apperrors.NewDatabaseError(fmt.Errorf("create record: %w", err))
	}
	return nil
}

func (r *RecordRepository) GetByID(ctx context.Context, id uint) (*database.DishImageQuery, error) {
	var rec database.DishImageQuery
	if err := r.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		return nil, wrapErr(err, id)
	}
	return &rec, nil
}

// GetByUser returns every record of a user, newest upload first.
func (r *RecordRepository) GetByUser(ctx context.Context, userID uint) ([]database.DishImageQuery, error) {
	var recs []database.DishImageQuery
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&recs).Error
	if err != nil {
		return nil, apperrors.NewDatabaseError(err).With("user_id", userID)
	}
	return recs, nil
}

// GetByUserAndDate returns the records of a day ordered by position slot,
// slotless records last, then newest upload first.
func (r *RecordRepository) GetByUserAndDate(ctx context.Context, userID uint, date time.Time) ([]database.DishImageQuery, error) {
	var recs []database.DishImageQuery
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Scopes(onDate(date)).
		Order("dish_position IS NULL, dish_position ASC, created_at DESC").
		Find(&recs).Error
	if err != nil {
		return nil, apperrors.NewDatabaseError(err).With("user_id", userID)
	}
	return recs, nil
}

// GetByUserDatePosition returns the record occupying a slot. When uploads
// collided on a slot the one with the latest target date and upload wins.
func (r *RecordRepository) GetByUserDatePosition(ctx context.Context, userID uint, date time.Time, position int) (*database.DishImageQuery, error) {
	var rec database.DishImageQuery
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND dish_position = ?", userID, position).
		Scopes(onDate(date)).
		Order("target_date IS NULL, target_date DESC, created_at DESC").
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("record", nil).
				With("date", utils.DateKey(date)).
				With("position", position)
		}
		return nil, apperrors.NewDatabaseError(err)
	}
	return &rec, nil
}

// UpdateResults replaces whichever payloads are non-nil.
func (r *RecordRepository) UpdateResults(ctx context.Context, id uint, gemini, openai []byte) error {
	updates := map[string]any{}
	if gemini != nil {
		updates["result_gemini"] = datatypes.JSON(gemini)
	}
	if openai != nil {
		updates["result_openai"] = datatypes.JSON(openai)
	}
	if len(updates) == 0 {
		return nil
	}

	res := r.db.WithContext(ctx).Model(&database.DishImageQuery{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return wrapErr(res.Error, id)
	}
	if res.RowsAffected == 0 {
		return apperrors.NewNotFoundError("record", id)
	}
	return nil
}

// forUpdate locks the selected rows until the transaction ends. SQLite has
// no row locks and the sqlite driver drops the clause.
func forUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// Mutate loads a record, lets fn change it and writes both payload columns
// back in the same transaction. An error from fn aborts without writing.
// The row is locked on Postgres, so concurrent appends serialize.
func (r *RecordRepository) Mutate(ctx context.Context, id uint, fn func(rec *database.DishImageQuery) error) (*database.DishImageQuery, error) {
	var rec database.DishImageQuery
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&rec, id).Error; err != nil {
			return err
		}
		if err := fn(&rec); err != nil {
			return err
		}
		return tx.Model(&rec).Select("result_gemini", "result_openai").Updates(&rec).Error
	})
	if err != nil {
		return nil, wrapErr(err, id)
	}
	return &rec, nil
}

func (r *RecordRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&database.DishImageQuery{}, id)
	if res.Error != nil {
		return wrapErr(res.Error, id)
	}
	if res.RowsAffected == 0 {
		return apperrors.NewNotFoundError("record", id)
	}
	return nil
}

// MonthCounts counts a user's records per logical date within a month, keyed
// YYYY-MM-DD. The logical date is target_date, falling back to created_at.
func (r *RecordRepository) MonthCounts(ctx context.Context, userID uint, year int, month time.Month) (map[string]int, error) {
	start, end := utils.MonthBounds(year, month)

	var rows []struct {
		CreatedAt  time.Time
		TargetDate *time.Time
	}
	err := r.db.WithContext(ctx).
		Model(&database.DishImageQuery{}).
		Select("created_at, target_date").
		Where("user_id = ?", userID).
		Where("COALESCE(target_date, created_at) >= ? AND COALESCE(target_date, created_at) < ?", start, end).
		Scan(&rows).Error
	if err != nil {
		return nil, apperrors.NewDatabaseError(err).With("user_id", userID)
	}

	counts := make(map[string]int)
	for _, row := range rows {
		rec := database.DishImageQuery{CreatedAt: row.CreatedAt, TargetDate: row.TargetDate}
		counts[utils.DateKey(rec.LogicalDate())]++
	}
	return counts, nil
}
