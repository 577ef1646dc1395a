package migrations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openLegacyDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Exec(`CREATE TABLE dish_image_query (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		image_url TEXT NOT NULL,
		result_gemini JSON,
		result_openai JSON,
		meal_type VARCHAR(32),
		created_at DATETIME,
		target_date DATETIME
	)`).Error)
	require.NoError(t, db.Exec(
		`INSERT INTO dish_image_query (user_id, image_url, meal_type, created_at) VALUES (1, '/images/a.jpg', 'lunch', '2024-03-05 12:00:00')`).Error)
	return db
}

func TestDishPositionMigrationDropsMealType(t *testing.T) {
	db := openLegacyDB(t)

	require.NoError(t, RunMigrations(db))

	m := db.Migrator()
	assert.True(t, m.HasColumn(dishTable, "dish_position"))
	assert.False(t, m.HasColumn(dishTable, "meal_type"))

	var row struct {
		ImageURL     string
		DishPosition *int
	}
	require.NoError(t, db.Table(dishTable).Select("image_url, dish_position").Take(&row).Error)
	assert.Equal(t, "/images/a.jpg", row.ImageURL)
	assert.Nil(t, row.DishPosition)

	var count int64
	require.NoError(t, db.Model(&MigrationRecord{}).Where("id = ?", "20251107_dish_position").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRunMigrationsSkipsExecuted(t *testing.T) {
	db := openLegacyDB(t)

	require.NoError(t, RunMigrations(db))
	require.NoError(t, RunMigrations(db))

	var count int64
	require.NoError(t, db.Model(&MigrationRecord{}).Count(&count).Error)
	assert.Equal(t, int64(len(registered())), count)
}

func TestLoadSQLMigrationsRegistersEmbeddedFiles(t *testing.T) {
	db := openLegacyDB(t)

	require.NoError(t, LoadSQLMigrations(SQLFiles, "sql"))
	require.NoError(t, RunMigrations(db))

	assert.True(t, db.Migrator().HasIndex(dishTable, "idx_dish_query_user_dates"))
}

func TestDishPositionMigrationWithoutTable(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	assert.NoError(t, upDishPosition(db))
	assert.NoError(t, downDishPosition(db))
}
