package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/vladimiradmaev/dish-journal/internal/database"
	"github.com/vladimiradmaev/dish-journal/internal/domain"
	apperrors "github.com/vladimiradmaev/dish-journal/internal/errors"
	"github.com/vladimiradmaev/dish-journal/internal/logger"
	"github.com/vladimiradmaev/dish-journal/internal/storage"
	"github.com/vladimiradmaev/dish-journal/internal/utils"
	"gorm.io/datatypes"
)

// RecordStore is the persistence the dish services need.
type RecordStore interface {
	Create(ctx context.Context, rec *database.DishImageQuery) error
	GetByID(ctx context.Context, id uint) (*database.DishImageQuery, error)
	GetByUser(ctx context.Context, userID uint) ([]database.DishImageQuery, error)
	GetByUserAndDate(ctx context.Context, userID uint, date time.Time) ([]database.DishImageQuery, error)
	GetByUserDatePosition(ctx context.Context, userID uint, date time.Time, position int) (*database.DishImageQuery, error)
	UpdateResults(ctx context.Context, id uint, gemini, openai []byte) error
	Mutate(ctx context.Context, id uint, fn func(rec *database.DishImageQuery) error) (*database.DishImageQuery, error)
	Delete(ctx context.Context, id uint) error
	MonthCounts(ctx context.Context, userID uint, year int, month time.Month) (map[string]int, error)
}

// DishService drives a record through upload, two-step analysis, metadata
// corrections and re-analysis.
type DishService struct {
	store     RecordStore
	images    storage.ImageStore
	primary   Analyzer
	secondary Analyzer
	runner    Runner
	now       func() time.Time
}

// NewDishService wires the service. secondary may be nil, in which case no
// second opinion is stored in result_openai.
func NewDishService(store RecordStore, images storage.ImageStore, primary, secondary Analyzer, runner Runner) *DishService {
	return &DishService{
		store:     store,
		images:    images,
		primary:   primary,
		secondary: secondary,
		runner:    runner,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func writePayload(rec *database.DishImageQuery, p *domain.Payload) error {
	data, err := json.Marshal(p)
	if err != nil {
		return apperrors.NewInternalError(fmt.Errorf("encode payload: %w", err))
	}
	rec.ResultGemini = datatypes.JSON(data)
	return nil
}

func readPayload(rec *database.DishImageQuery) (*domain.Payload, error) {
	p, err := rec.Payload()
	if err != nil {
		return nil, apperrors.NewInternalError(err).With("record_id", rec.ID)
	}
	return p, nil
}

// Upload stores the image, creates the record for the given date and slot and
// schedules the identification pass.
func (s *DishService) Upload(ctx context.Context, userID uint, date time.Time, position int, image []byte, contentType string) (*database.DishImageQuery, error) {
	if position < 1 || position > database.MaxDishesPerDate {
		return nil, apperrors.NewValidationError(fmt.Sprintf("Invalid dish position. Must be between 1 and %d", database.MaxDishesPerDate))
	}
	if len(image) == 0 {
		return nil, apperrors.NewValidationError("Empty image")
	}

	now := s.now()
	url, err := s.images.Save(ctx, storage.ImageName(now, position), image, contentType)
	if err != nil {
		return nil, err
	}

	target := utils.StartOfDay(date)
	rec := &database.DishImageQuery{
		UserID:       userID,
		ImageURL:     url,
		DishPosition: &position,
		CreatedAt:    now,
		TargetDate:   &target,
	}
	if err := s.store.Create(ctx, rec); err != nil {
		return nil, err
	}

	logger.Info("Dish image uploaded",
		"record_id", rec.ID,
		"user_id", userID,
		"position", position,
		"target_date", utils.DateKey(target))

	id := rec.ID
	s.runner.Go(ctx, "step1", func(ctx context.Context) error {
		return s.runStep1(ctx, id, url)
	}, "record_id", id, "step", 1)
	if s.secondary != nil {
		s.runner.Go(ctx, "secondary", func(ctx context.Context) error {
			return s.runSecondary(ctx, id, url)
		}, "record_id", id, "step", "secondary")
	}
	return rec, nil
}

// Get returns a record owned by userID. A record of another user is reported
// exactly like a missing one.
func (s *DishService) Get(ctx context.Context, userID, id uint) (*database.DishImageQuery, error) {
	rec, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.UserID != userID {
		return nil, apperrors.NewNotFoundError("record", id)
	}
	return rec, nil
}

// GetCurrent returns the record with its current iteration. The iteration is
// nil when there is no analysis yet or the pointer is out of range.
func (s *DishService) GetCurrent(ctx context.Context, userID, id uint) (*database.DishImageQuery, *domain.Iteration, error) {
	rec, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, nil, err
	}
	p, err := readPayload(rec)
	if err != nil {
		return nil, nil, err
	}
	return rec, p.Current(), nil
}

// ListRecent returns up to limit iterations, newest first. It never writes.
func (s *DishService) ListRecent(ctx context.Context, userID, id uint, limit int) ([]domain.Iteration, error) {
	rec, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	p, err := readPayload(rec)
	if err != nil {
		return nil, err
	}
	return p.Recent(limit), nil
}

// AppendIteration adds a re-analysis result as a new current iteration. An
// empty or legacy payload is upgraded first so its history is kept.
func (s *DishService) AppendIteration(ctx context.Context, id uint, result domain.Document, md domain.Metadata) (*database.DishImageQuery, error) {
	return s.store.Mutate(ctx, id, func(rec *database.DishImageQuery) error {
		p, err := readPayload(rec)
		if err != nil {
			return err
		}
		now := s.now()
		if p == nil {
			p = domain.Initialize(domain.Document{}, nil, now)
		}
		it := p.Append(result, md, now)
		logger.Info("Iteration appended", "record_id", id, "iteration", it.Number)
		return writePayload(rec, p)
	})
}

// UpdateMetadata corrects the current iteration of a record owned by userID.
// It reports false when there is nothing to correct.
func (s *DishService) UpdateMetadata(ctx context.Context, userID, id uint, u domain.MetadataUpdate) (bool, error) {
	if err := u.Validate(); err != nil {
		return false, err
	}
	if _, err := s.Get(ctx, userID, id); err != nil {
		return false, err
	}
	return s.updateMetadata(ctx, id, u)
}

func (s *DishService) updateMetadata(ctx context.Context, id uint, u domain.MetadataUpdate) (bool, error) {
	_, err := s.store.Mutate(ctx, id, func(rec *database.DishImageQuery) error {
		p, err := readPayload(rec)
		if err != nil {
			return err
		}
		if p == nil {
			return errNoChange
		}
		p.Upgrade(s.now())
		if !p.UpdateMetadata(u) {
			return errNoChange
		}
		return writePayload(rec, p)
	})
	switch {
	case errors.Is(err, errNoChange), apperrors.IsType(err, apperrors.ErrorTypeNotFound):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

// errNoChange aborts a mutation without writing.
var errNoChange = errors.New("no change")

// RecordStep1Result writes the identification result of a fresh record.
func (s *DishService) RecordStep1Result(ctx context.Context, id uint, step1 domain.Document) error {
	_, err := s.store.Mutate(ctx, id, func(rec *database.DishImageQuery) error {
		p, err := readPayload(rec)
		if err != nil {
			return err
		}
		if state := domain.StateOf(p); state != domain.StateAwaitingStep1 {
			return apperrors.NewInvalidStateError("record already has an analysis").
				With("state", string(state))
		}
		return writePayload(rec, domain.NewStep1Payload(step1, s.now()))
	})
	return err
}

// ConfirmStep1 persists the user's confirmation immediately and then starts
// the nutrition pass in the background.
func (s *DishService) ConfirmStep1(ctx context.Context, userID, id uint, dishName string, components []domain.ConfirmedComponent) error {
	if err := domain.ValidateConfirmation(dishName, components); err != nil {
		return err
	}
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}

	rec, err := s.store.Mutate(ctx, id, func(rec *database.DishImageQuery) error {
		p, err := readPayload(rec)
		if err != nil {
			return err
		}
		if err := p.ConfirmStep1(dishName, components); err != nil {
			return err
		}
		return writePayload(rec, p)
	})
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeInvalidState) {
			logger.Warn("Step 1 confirmation rejected", "record_id", id, "error", err)
		}
		return err
	}

	url := rec.ImageURL
	comps := append([]domain.ConfirmedComponent(nil), components...)
	s.runner.Go(ctx, "step2", func(ctx context.Context) error {
		return s.runStep2(ctx, id, url, dishName, comps)
	}, "record_id", id, "step", 2)
	return nil
}

// RecordStep2Result merges the nutrition result. A record or payload that has
// disappeared meanwhile is logged and skipped.
func (s *DishService) RecordStep2Result(ctx context.Context, id uint, step2 domain.Document) error {
	_, err := s.store.Mutate(ctx, id, func(rec *database.DishImageQuery) error {
		p, err := readPayload(rec)
		if err != nil {
			return err
		}
		if p == nil {
			return errNoChange
		}
		if err := p.ApplyStep2(step2); err != nil {
			return err
		}
		return writePayload(rec, p)
	})
	switch {
	case errors.Is(err, errNoChange):
		logger.Warn("Step 2 result dropped, record has no payload", "record_id", id, "step", 2)
		return nil
	case apperrors.IsType(err, apperrors.ErrorTypeNotFound):
		logger.Warn("Step 2 result dropped, record is gone", "record_id", id, "step", 2)
		return nil
	}
	return err
}

// Reanalyze validates the correction and schedules a fresh analysis that is
// appended as a new iteration.
func (s *DishService) Reanalyze(ctx context.Context, userID, id uint, u domain.MetadataUpdate) error {
	if err := u.Validate(); err != nil {
		return err
	}
	rec, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}

	url := rec.ImageURL
	s.runner.Go(ctx, "reanalyze", func(ctx context.Context) error {
		result, err := s.analyze(ctx, s.primary, url, ReanalysisPrompt(u))
		if err != nil {
			return err
		}
		_, err = s.AppendIteration(ctx, id, result, u.Metadata())
		return err
	}, "record_id", id, "step", "reanalyze")
	return nil
}

// Delete removes a record owned by userID. The image is removed on a best
// effort basis.
func (s *DishService) Delete(ctx context.Context, userID, id uint) error {
	rec, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.images.Delete(ctx, rec.ImageURL); err != nil {
		logger.Warn("Failed to delete image", "record_id", id, "url", rec.ImageURL, "error", err)
	}
	return nil
}

func (s *DishService) analyze(ctx context.Context, a Analyzer, url, prompt string) (domain.Document, error) {
	image, err := s.images.Load(ctx, url)
	if err != nil {
		return nil, err
	}
	return a.Analyze(ctx, AnalysisRequest{
		Image:    image,
		MIMEType: http.DetectContentType(image),
		Prompt:   prompt,
	})
}

func (s *DishService) runStep1(ctx context.Context, id uint, url string) error {
	result, err := s.analyze(ctx, s.primary, url, Step1Prompt())
	if err != nil {
		return err
	}
	if err := s.RecordStep1Result(ctx, id, result); err != nil {
		return err
	}
	logger.Info("Step 1 analysis stored", "record_id", id)
	return nil
}

func (s *DishService) runStep2(ctx context.Context, id uint, url, dishName string, components []domain.ConfirmedComponent) error {
	result, err := s.analyze(ctx, s.primary, url, Step2Prompt(dishName, components))
	if err != nil {
		return err
	}
	if err := s.RecordStep2Result(ctx, id, result); err != nil {
		return err
	}
	logger.Info("Step 2 analysis stored", "record_id", id)
	return nil
}

func (s *DishService) runSecondary(ctx context.Context, id uint, url string) error {
	result, err := s.analyze(ctx, s.secondary, url, FullAnalysisPrompt())
	if err != nil {
		return err
	}
	data, err := json.Marshal(domain.Initialize(result, nil, s.now()))
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return s.store.UpdateResults(ctx, id, nil, data)
}
