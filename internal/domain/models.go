package domain

import "fmt"

// DishSlot is one position of a day view.
type DishSlot struct {
	HasData  bool    `json:"has_data"`
	RecordID *uint   `json:"record_id"`
	ImageURL *string `json:"image_url"`
}

// DayView lists the position slots of one logical date.
type DayView struct {
	TargetDate    string              `json:"target_date"`
	FormattedDate string              `json:"formatted_date"`
	DishData      map[string]DishSlot `json:"dish_data"`
	MaxDishes     int                 `json:"max_dishes"`
	Year          int                 `json:"year"`
	Month         int                 `json:"month"`
	Day           int                 `json:"day"`
}

// SlotKey is the dish_data key of a position.
func SlotKey(position int) string {
	return fmt.Sprintf("dish_%d", position)
}

// Slot returns the slot at position.
func (v *DayView) Slot(position int) DishSlot {
	return v.DishData[SlotKey(position)]
}

// FreePosition returns the first unused position, or 0 when the day is full.
func (v *DayView) FreePosition() int {
	for p := 1; p <= v.MaxDishes; p++ {
		if !v.Slot(p).HasData {
			return p
		}
	}
	return 0
}

// CalendarDay is a cell of the month grid. Day is 0 for padding cells.
type CalendarDay struct {
	Day            int  `json:"day"`
	Count          int  `json:"count"`
	IsCurrentMonth bool `json:"is_current_month"`
	IsToday        bool `json:"is_today"`
}

// MonthView is a Monday first calendar of one month with record counts.
type MonthView struct {
	CalendarData [][]CalendarDay `json:"calendar_data"`
	MonthName    string          `json:"month_name"`
	DisplayYear  int             `json:"display_year"`
	DisplayMonth int             `json:"display_month"`
	PrevYear     int             `json:"prev_year"`
	PrevMonth    int             `json:"prev_month"`
	NextYear     int             `json:"next_year"`
	NextMonth    int             `json:"next_month"`
	Weekdays     []string        `json:"weekdays"`
}

// Weekdays are the grid column labels.
var Weekdays = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}
