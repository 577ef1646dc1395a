package services

import (
	"context"
	"time"

	"github.com/vladimiradmaev/dish-journal/internal/database"
	"github.com/vladimiradmaev/dish-journal/internal/domain"
	"github.com/vladimiradmaev/dish-journal/internal/utils"
)

const minCalendarYear = 2020

// CalendarService builds the day and month views.
type CalendarService struct {
	store RecordStore
	now   func() time.Time
}

func NewCalendarService(store RecordStore) *CalendarService {
	return &CalendarService{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// RecordsForDay returns the records of a logical date in slot order.
func (s *CalendarService) RecordsForDay(ctx context.Context, userID uint, date time.Time) ([]database.DishImageQuery, error) {
	return s.store.GetByUserAndDate(ctx, userID, date)
}

// MonthCounts returns record counts per YYYY-MM-DD within a month.
func (s *CalendarService) MonthCounts(ctx context.Context, userID uint, year int, month time.Month) (map[string]int, error) {
	return s.store.MonthCounts(ctx, userID, year, month)
}

// DayView fills the five position slots of a date. When several records share
// a slot the first in query order wins.
func (s *CalendarService) DayView(ctx context.Context, userID uint, date time.Time) (*domain.DayView, error) {
	recs, err := s.store.GetByUserAndDate(ctx, userID, date)
	if err != nil {
		return nil, err
	}

	d := utils.StartOfDay(date)
	view := &domain.DayView{
		TargetDate:    d.Format(utils.DateLayout),
		FormattedDate: d.Format("January 02, 2006"),
		DishData:      make(map[string]domain.DishSlot, database.MaxDishesPerDate),
		MaxDishes:     database.MaxDishesPerDate,
		Year:          d.Year(),
		Month:         int(d.Month()),
		Day:           d.Day(),
	}
	for p := 1; p <= database.MaxDishesPerDate; p++ {
		view.DishData[domain.SlotKey(p)] = domain.DishSlot{}
	}
	for i := range recs {
		rec := &recs[i]
		p := rec.Position()
		if p < 1 || p > database.MaxDishesPerDate || view.Slot(p).HasData {
			continue
		}
		id, url := rec.ID, rec.ImageURL
		view.DishData[domain.SlotKey(p)] = domain.DishSlot{HasData: true, RecordID: &id, ImageURL: &url}
	}
	return view, nil
}

// MonthView builds the calendar grid. An invalid month or a year outside the
// supported range falls back to the current one.
func (s *CalendarService) MonthView(ctx context.Context, userID uint, year, month int) (*domain.MonthView, error) {
	now := s.now()
	if month < 1 || month > 12 {
		month = int(now.Month())
	}
	if year < minCalendarYear || year > now.Year()+1 {
		year = now.Year()
	}

	counts, err := s.store.MonthCounts(ctx, userID, year, time.Month(month))
	if err != nil {
		return nil, err
	}

	first, next := utils.MonthBounds(year, time.Month(month))
	prev := first.AddDate(0, -1, 0)
	today := utils.DateKey(now)

	// Monday first: Go's Sunday is 0.
	lead := (int(first.Weekday()) + 6) % 7
	var weeks [][]domain.CalendarDay
	week := make([]domain.CalendarDay, 0, 7)
	for i := 0; i < lead; i++ {
		week = append(week, domain.CalendarDay{})
	}
	for d := first; d.Before(next); d = d.AddDate(0, 0, 1) {
		key := utils.DateKey(d)
		week = append(week, domain.CalendarDay{
			Day:            d.Day(),
			Count:          counts[key],
			IsCurrentMonth: true,
			IsToday:        key == today,
		})
		if len(week) == 7 {
			weeks = append(weeks, week)
			week = make([]domain.CalendarDay, 0, 7)
		}
	}
	if len(week) > 0 {
		for len(week) < 7 {
			week = append(week, domain.CalendarDay{})
		}
		weeks = append(weeks, week)
	}

	return &domain.MonthView{
		CalendarData: weeks,
		MonthName:    first.Month().String(),
		DisplayYear:  year,
		DisplayMonth: month,
		PrevYear:     prev.Year(),
		PrevMonth:    int(prev.Month()),
		NextYear:     next.Year(),
		NextMonth:    int(next.Month()),
		Weekdays:     domain.Weekdays,
	}, nil
}
