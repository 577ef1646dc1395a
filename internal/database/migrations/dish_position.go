package migrations

import "gorm.io/gorm"

const dishTable = "dish_image_query"

// Records from the meal-type era are kept; they simply have no position slot.
func init() {
	Register("20251107_dish_position", upDishPosition, downDishPosition)
}

func upDishPosition(db *gorm.DB) error {
	m := db.Migrator()
	if !m.HasTable(dishTable) {
		return nil
	}
	if !m.HasColumn(dishTable, "dish_position") {
		if err := db.Exec("ALTER TABLE " + dishTable + " ADD COLUMN dish_position INTEGER").Error; err != nil {
			return err
		}
	}
	if m.HasColumn(dishTable, "meal_type") {
		return db.Exec("ALTER TABLE " + dishTable + " DROP COLUMN meal_type").Error
	}
	return nil
}

func downDishPosition(db *gorm.DB) error {
	m := db.Migrator()
	if !m.HasTable(dishTable) || m.HasColumn(dishTable, "meal_type") {
		return nil
	}
	return db.Exec("ALTER TABLE " + dishTable + " ADD COLUMN meal_type VARCHAR(32)").Error
}
