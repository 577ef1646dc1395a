package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vladimiradmaev/dish-journal/internal/config"
	"github.com/vladimiradmaev/dish-journal/internal/domain"
)

func TestOpenSQLiteMemory(t *testing.T) {
	db, err := Open(config.DBConfig{Driver: "sqlite", SQLitePath: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	m := db.Migrator()
	assert.True(t, m.HasTable(&User{}))
	assert.True(t, m.HasTable("dish_image_query"))
	assert.True(t, m.HasColumn(&DishImageQuery{}, "dish_position"))

	require.NoError(t, Migrate(db), "migrating twice must be a no-op")
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(config.DBConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestDishImageQueryPayloadRoundTrip(t *testing.T) {
	db, err := Open(config.DBConfig{Driver: "sqlite", SQLitePath: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	created := time.Date(2024, 3, 6, 8, 0, 0, 0, time.UTC)
	raw, err := domain.Initialize(domain.Document{"dish_name": "Pho"}, nil, created).MarshalJSON()
	require.NoError(t, err)

	pos := 2
	rec := DishImageQuery{UserID: 1, ImageURL: "/images/x.jpg", ResultGemini: raw, DishPosition: &pos, CreatedAt: created}
	require.NoError(t, db.Create(&rec).Error)

	var loaded DishImageQuery
	require.NoError(t, db.First(&loaded, rec.ID).Error)
	p, err := loaded.Payload()
	require.NoError(t, err)
	require.NotNil(t, p.Current())
	assert.Equal(t, "Pho", p.Current().Metadata.SelectedDish())
	assert.Equal(t, 2, loaded.Position())
	assert.True(t, loaded.LogicalDate().Equal(created))
}

func TestLogicalDatePrefersTargetDate(t *testing.T) {
	t.Parallel()

	created := time.Date(2024, 3, 6, 8, 0, 0, 0, time.UTC)
	target := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, target, (&DishImageQuery{CreatedAt: created, TargetDate: &target}).LogicalDate())
	assert.Equal(t, created, (&DishImageQuery{CreatedAt: created}).LogicalDate())
	assert.Equal(t, 0, (&DishImageQuery{}).Position())
}
