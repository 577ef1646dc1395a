package services

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vladimiradmaev/dish-journal/internal/config"
	"github.com/vladimiradmaev/dish-journal/internal/database"
	"github.com/vladimiradmaev/dish-journal/internal/domain"
	apperrors "github.com/vladimiradmaev/dish-journal/internal/errors"
	"github.com/vladimiradmaev/dish-journal/internal/repository"
	"github.com/vladimiradmaev/dish-journal/internal/storage"
	"gorm.io/datatypes"
)

type fakeAnalyzer struct {
	mu      sync.Mutex
	results []domain.Document
	err     error
	prompts []string
}

func (f *fakeAnalyzer) Analyze(_ context.Context, req AnalysisRequest) (domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, req.Prompt)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) == 0 {
		return domain.Document{"dish_name": "Soup"}, nil
	}
	r := f.results[0]
	f.results = f.results[1:]
	return r.Clone(), nil
}

var clock = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

type dishFixture struct {
	svc     *DishService
	repo    *repository.RecordRepository
	images  *storage.LocalStore
	primary *fakeAnalyzer
	runner  *InlineRunner
}

func newDishFixture(t *testing.T) *dishFixture {
	t.Helper()
	db, err := database.Open(config.DBConfig{Driver: "sqlite", SQLitePath: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	images, err := storage.NewLocalStore(t.TempDir(), "/images")
	require.NoError(t, err)

	f := &dishFixture{
		repo:    repository.NewRecordRepository(db),
		images:  images,
		primary: &fakeAnalyzer{},
		runner:  &InlineRunner{},
	}
	f.svc = NewDishService(f.repo, images, f.primary, nil, f.runner)
	f.svc.now = func() time.Time { return clock }
	return f
}

func (f *dishFixture) payload(t *testing.T, id uint) *domain.Payload {
	t.Helper()
	rec, err := f.repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	p, err := rec.Payload()
	require.NoError(t, err)
	return p
}

// legacyRecord stores an image and a record whose payload predates iterations.
func (f *dishFixture) legacyRecord(t *testing.T, user uint) *database.DishImageQuery {
	t.Helper()
	ctx := context.Background()
	url, err := f.images.Save(ctx, "legacy.jpg", []byte("jpeg"), "image/jpeg")
	require.NoError(t, err)
	rec := &database.DishImageQuery{
		UserID:       user,
		ImageURL:     url,
		ResultGemini: datatypes.JSON(`{"dish_name":"Pasta","calories_kcal":500}`),
		CreatedAt:    time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, f.repo.Create(ctx, rec))
	return rec
}

func identification() domain.Document {
	return domain.Document{
		"dish_predictions": []any{map[string]any{"name": "Fried rice"}},
		"components": []any{
			map[string]any{"component_name": "rice", "serving_sizes": []any{"1 cup"}},
		},
	}
}

func nutrition() domain.Document {
	return domain.Document{"dish_name": "Fried rice", "calories_kcal": 520}
}

var rice = []domain.ConfirmedComponent{{ComponentName: "rice", SelectedServingSize: "1 cup", NumberOfServings: 1}}

func TestTwoStepFlow(t *testing.T) {
	f := newDishFixture(t)
	f.primary.results = []domain.Document{identification(), nutrition()}
	ctx := context.Background()

	rec, err := f.svc.Upload(ctx, 1, time.Date(2024, 3, 14, 18, 30, 0, 0, time.UTC), 2, []byte("jpeg"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC), rec.TargetDate.UTC())
	assert.Equal(t, 2, rec.Position())
	assert.True(t, strings.HasPrefix(rec.ImageURL, "/images/240315_120000_dish2_"))

	p := f.payload(t, rec.ID)
	require.NotNil(t, p)
	assert.Equal(t, domain.StateStep1Done, domain.StateOf(p))
	assert.Equal(t, identification(), p.TwoStep.Step1Data)

	require.NoError(t, f.svc.ConfirmStep1(ctx, 1, rec.ID, "Fried rice", rice))
	assert.Empty(t, f.runner.Errors)

	p = f.payload(t, rec.ID)
	assert.Equal(t, domain.StateStep2Done, domain.StateOf(p))
	assert.Equal(t, "Fried rice", p.TwoStep.ConfirmedDishName)
	require.Len(t, p.Iterations, 1)

	cur := p.Current()
	require.NotNil(t, cur)
	assert.Equal(t, 2, cur.Step)
	assert.Equal(t, "Fried rice", cur.Metadata.ConfirmedDishName())
	assert.EqualValues(t, 520, mustFloat(t, cur.Step2Data["calories_kcal"]))

	require.Len(t, f.primary.prompts, 2)
	assert.Contains(t, f.primary.prompts[1], `"Fried rice"`)
	assert.Contains(t, f.primary.prompts[1], "rice: 1 x 1 cup")
}

func mustFloat(t *testing.T, v any) float64 {
	t.Helper()
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case interface{ Float64() (float64, error) }:
		x, err := n.Float64()
		require.NoError(t, err)
		return x
	}
	t.Fatalf("not a number: %#v", v)
	return 0
}

func TestConfirmStep1Twice(t *testing.T) {
	f := newDishFixture(t)
	f.primary.results = []domain.Document{identification(), nutrition()}
	ctx := context.Background()

	rec, err := f.svc.Upload(ctx, 1, clock, 1, []byte("jpeg"), "image/jpeg")
	require.NoError(t, err)
	require.NoError(t, f.svc.ConfirmStep1(ctx, 1, rec.ID, "Fried rice", rice))

	err = f.svc.ConfirmStep1(ctx, 1, rec.ID, "Fried rice", rice)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidState))
}

func TestConfirmStep1Validation(t *testing.T) {
	f := newDishFixture(t)
	f.primary.results = []domain.Document{identification()}
	ctx := context.Background()

	rec, err := f.svc.Upload(ctx, 1, clock, 1, []byte("jpeg"), "image/jpeg")
	require.NoError(t, err)

	err = f.svc.ConfirmStep1(ctx, 1, rec.ID, "", rice)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	assert.Equal(t, domain.StateStep1Done, domain.StateOf(f.payload(t, rec.ID)))
}

func TestStep1ProviderFailureLeavesRecordUnanalyzed(t *testing.T) {
	f := newDishFixture(t)
	f.primary.err = apperrors.NewExternalAPIError(errors.New("quota"), "gemini")
	ctx := context.Background()

	rec, err := f.svc.Upload(ctx, 1, clock, 1, []byte("jpeg"), "image/jpeg")
	require.NoError(t, err, "provider failures never reach the uploader")
	require.Len(t, f.runner.Errors, 1)
	assert.True(t, apperrors.IsType(f.runner.Errors[0], apperrors.ErrorTypeExternal))
	assert.Nil(t, f.payload(t, rec.ID))

	err = f.svc.ConfirmStep1(ctx, 1, rec.ID, "Fried rice", rice)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidState))
}

func TestStep2ProviderFailureStaysConfirmed(t *testing.T) {
	f := newDishFixture(t)
	f.primary.results = []domain.Document{identification()}
	ctx := context.Background()

	rec, err := f.svc.Upload(ctx, 1, clock, 1, []byte("jpeg"), "image/jpeg")
	require.NoError(t, err)

	f.primary.err = errors.New("timeout")
	require.NoError(t, f.svc.ConfirmStep1(ctx, 1, rec.ID, "Fried rice", rice))
	require.Len(t, f.runner.Errors, 1)

	p := f.payload(t, rec.ID)
	assert.Equal(t, domain.StateStep1Confirmed, domain.StateOf(p))
	assert.Nil(t, p.TwoStep.Step2Data)
}

func TestUploadRejectsBadPosition(t *testing.T) {
	f := newDishFixture(t)

	for _, pos := range []int{0, 6} {
		_, err := f.svc.Upload(context.Background(), 1, clock, pos, []byte("jpeg"), "image/jpeg")
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation), pos)
	}
	entries, err := os.ReadDir(f.images.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestForeignRecordsLookMissing(t *testing.T) {
	f := newDishFixture(t)
	rec := f.legacyRecord(t, 1)
	ctx := context.Background()
	u := domain.MetadataUpdate{SelectedDish: "Pasta", SelectedServingSize: "1 plate", NumberOfServings: 1}

	_, err := f.svc.Get(ctx, 2, rec.ID)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
	_, err = f.svc.Get(ctx, 2, 9999)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))

	_, err = f.svc.UpdateMetadata(ctx, 2, rec.ID, u)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
	assert.True(t, apperrors.IsType(f.svc.ConfirmStep1(ctx, 2, rec.ID, "Pasta", rice), apperrors.ErrorTypeNotFound))
	assert.True(t, apperrors.IsType(f.svc.Reanalyze(ctx, 2, rec.ID, u), apperrors.ErrorTypeNotFound))
	assert.True(t, apperrors.IsType(f.svc.Delete(ctx, 2, rec.ID), apperrors.ErrorTypeNotFound))

	_, err = f.svc.Get(ctx, 1, rec.ID)
	assert.NoError(t, err)
}

func TestUpdateMetadataUpgradesLegacyInPlace(t *testing.T) {
	f := newDishFixture(t)
	rec := f.legacyRecord(t, 1)
	ctx := context.Background()
	u := domain.MetadataUpdate{SelectedDish: "Penne", SelectedServingSize: "1 plate", NumberOfServings: 1.5}

	ok, err := f.svc.UpdateMetadata(ctx, 1, rec.ID, u)
	require.NoError(t, err)
	assert.True(t, ok)

	first, err := f.repo.GetByID(ctx, rec.ID)
	require.NoError(t, err)

	p := f.payload(t, rec.ID)
	assert.Equal(t, domain.FormatVersioned, p.Format)
	require.Len(t, p.Iterations, 1)
	md := p.Current().Metadata
	assert.Equal(t, "Penne", md.SelectedDish())
	assert.Equal(t, 1.5, md.NumberOfServings())
	assert.True(t, md.Modified())
	assert.Equal(t, "Pasta", p.Current().Analysis["dish_name"])
	assert.True(t, p.Current().CreatedAt.Equal(clock))

	ok, err = f.svc.UpdateMetadata(ctx, 1, rec.ID, u)
	require.NoError(t, err)
	assert.True(t, ok)
	second, err := f.repo.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.JSONEq(t, string(first.ResultGemini), string(second.ResultGemini))
}

func TestUpdateMetadataWithoutPayload(t *testing.T) {
	f := newDishFixture(t)
	f.primary.err = errors.New("down")
	ctx := context.Background()

	rec, err := f.svc.Upload(ctx, 1, clock, 1, []byte("jpeg"), "image/jpeg")
	require.NoError(t, err)

	ok, err := f.svc.UpdateMetadata(ctx, 1, rec.ID, domain.MetadataUpdate{SelectedDish: "Soup", SelectedServingSize: "1 bowl", NumberOfServings: 1})
	require.NoError(t, err)
	assert.False(t, ok)

	for _, n := range []float64{11, math.NaN()} {
		_, err = f.svc.UpdateMetadata(ctx, 1, rec.ID, domain.MetadataUpdate{SelectedDish: "Soup", SelectedServingSize: "1 bowl", NumberOfServings: n})
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation), n)
	}
}

func TestReanalyzeAppendsIteration(t *testing.T) {
	f := newDishFixture(t)
	rec := f.legacyRecord(t, 1)
	f.primary.results = []domain.Document{{"dish_name": "Penne arrabbiata", "calories_kcal": 610}}
	ctx := context.Background()
	u := domain.MetadataUpdate{SelectedDish: "Penne arrabbiata", SelectedServingSize: "1 plate", NumberOfServings: 2}

	require.NoError(t, f.svc.Reanalyze(ctx, 1, rec.ID, u))
	assert.Empty(t, f.runner.Errors)
	assert.Contains(t, f.primary.prompts[0], `"Penne arrabbiata"`)

	p := f.payload(t, rec.ID)
	require.Len(t, p.Iterations, 2)
	assert.Equal(t, 2, p.CurrentIteration)
	assert.Equal(t, "Pasta", p.Iterations[0].Analysis["dish_name"], "legacy analysis is kept as iteration 1")
	cur := p.Current()
	assert.Equal(t, "Penne arrabbiata", cur.Analysis["dish_name"])
	assert.Equal(t, 2.0, cur.Metadata.NumberOfServings())
	assert.True(t, cur.Metadata.Modified())

	recent, err := f.svc.ListRecent(ctx, 1, rec.ID, 0)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, 2, recent[0].Number)
	assert.Equal(t, 1, recent[1].Number)
}

func TestReanalyzeValidatesBeforeScheduling(t *testing.T) {
	f := newDishFixture(t)
	rec := f.legacyRecord(t, 1)

	err := f.svc.Reanalyze(context.Background(), 1, rec.ID, domain.MetadataUpdate{SelectedDish: "Pasta", NumberOfServings: 1})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	assert.Empty(t, f.primary.prompts)
}

func TestAppendIterationOnEmptyPayload(t *testing.T) {
	f := newDishFixture(t)
	ctx := context.Background()
	rec := &database.DishImageQuery{UserID: 1, ImageURL: "/images/x.jpg", CreatedAt: clock}
	require.NoError(t, f.repo.Create(ctx, rec))

	_, err := f.svc.AppendIteration(ctx, rec.ID, domain.Document{"dish_name": "Soup"}, domain.Metadata{"selected_dish": "Soup"})
	require.NoError(t, err)

	p := f.payload(t, rec.ID)
	require.Len(t, p.Iterations, 2)
	assert.Equal(t, 2, p.CurrentIteration)

	_, err = f.svc.AppendIteration(ctx, 9999, domain.Document{}, nil)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}

func TestRecordStep1ResultOnlyOnce(t *testing.T) {
	f := newDishFixture(t)
	f.primary.results = []domain.Document{identification()}
	ctx := context.Background()

	rec, err := f.svc.Upload(ctx, 1, clock, 1, []byte("jpeg"), "image/jpeg")
	require.NoError(t, err)

	err = f.svc.RecordStep1Result(ctx, rec.ID, identification())
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidState))
}

func TestRecordStep2ResultMissingRecordIsNoop(t *testing.T) {
	f := newDishFixture(t)
	ctx := context.Background()

	assert.NoError(t, f.svc.RecordStep2Result(ctx, 9999, nutrition()))

	rec := &database.DishImageQuery{UserID: 1, ImageURL: "/images/x.jpg", CreatedAt: clock}
	require.NoError(t, f.repo.Create(ctx, rec))
	assert.NoError(t, f.svc.RecordStep2Result(ctx, rec.ID, nutrition()))
	assert.Nil(t, f.payload(t, rec.ID))
}

func TestDeleteRemovesImage(t *testing.T) {
	f := newDishFixture(t)
	rec := f.legacyRecord(t, 1)
	ctx := context.Background()

	require.NoError(t, f.svc.Delete(ctx, 1, rec.ID))
	_, err := f.repo.GetByID(ctx, rec.ID)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
	_, err = os.Stat(filepath.Join(f.images.Dir(), "legacy.jpg"))
	assert.True(t, os.IsNotExist(err))
}

func TestSecondaryAnalyzerFillsOpenAIResult(t *testing.T) {
	f := newDishFixture(t)
	f.primary.results = []domain.Document{identification()}
	secondary := &fakeAnalyzer{results: []domain.Document{{"dish_name": "Fried rice", "model": "gpt-4o"}}}
	f.svc.secondary = secondary
	ctx := context.Background()

	rec, err := f.svc.Upload(ctx, 1, clock, 1, []byte("jpeg"), "image/jpeg")
	require.NoError(t, err)

	stored, err := f.repo.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	p, err := domain.ParsePayload(stored.ResultOpenAI, stored.CreatedAt)
	require.NoError(t, err)
	require.NotNil(t, p.Current())
	assert.Equal(t, "Fried rice", p.Current().Metadata.SelectedDish())
	assert.Equal(t, FullAnalysisPrompt(), secondary.prompts[0])
	assert.Equal(t, domain.StateStep1Done, domain.StateOf(f.payload(t, rec.ID)), "secondary result never touches the primary payload")
}
