package service

import (
	"context"
	"time"

	"task-calendar/internal/model"
	"task-calendar/internal/repository"
)

// CalendarCells is the fixed size of a month grid: six weeks of seven days.
const CalendarCells = 42

// HolidayProvider is the part of HolidayService the calendar needs.
type HolidayProvider interface {
	Holidays(ctx context.Context, year int) []model.Holiday
}

// CalendarDay is one cell of the month grid.
type CalendarDay struct {
	Date           string       `json:"date"`
	Day            int          `json:"day"`
	IsCurrentMonth bool         `json:"isCurrentMonth"`
	IsToday        bool         `json:"isToday"`
	IsHoliday      bool         `json:"isHoliday"`
	HolidayName    string       `json:"holidayName,omitempty"`
	HolidayType    string       `json:"holidayType,omitempty"`
	Tasks          []model.Task `json:"tasks"`
}

// CalendarMonth is the grid plus the holidays of the month.
type CalendarMonth struct {
	Year     int             `json:"year"`
	Month    int             `json:"month"`
	Days     []CalendarDay   `json:"days"`
	Holidays []model.Holiday `json:"holidays"`
}

// CalendarService builds month views with holidays and the caller's tasks.
type CalendarService struct {
	holidays HolidayProvider
	tasks    repository.TaskStore
	now      func() time.Time
	loc      *time.Location
}

func NewCalendarService(holidays HolidayProvider, tasks repository.TaskStore, loc *time.Location) *CalendarService {
	if loc == nil {
		loc = time.Local
	}
	return &CalendarService{holidays: holidays, tasks: tasks, now: time.Now, loc: loc}
}

func (s *CalendarService) SetClock(now func() time.Time) {
	s.now = now
}

// Month returns the grid for year/month. Tasks are attached by due date.
func (s *CalendarService) Month(ctx context.Context, userID string, year int, month time.Month) (*CalendarMonth, error) {
	if month < time.January || month > time.December {
		return nil, invalid("month", "must be between 1 and 12")
	}
	if year < 1 || year > 9999 {
		return nil, invalid("year", "is out of range")
	}

	yearHolidays := s.holidays.Holidays(ctx, year)
	days := BuildMonthGrid(year, month, s.now().In(s.loc), yearHolidays)

	gridStart, _ := time.ParseInLocation("2006-01-02", days[0].Date, s.loc)
	gridEnd := gridStart.AddDate(0, 0, CalendarCells)
	from, to := gridStart.UTC(), gridEnd.UTC()
	tasks, err := s.tasks.List(ctx, repository.TaskFilter{UserID: userID, DueFrom: &from, DueBefore: &to})
	if err != nil {
		return nil, err
	}

	index := make(map[string]int, len(days))
	for i, d := range days {
		index[d.Date] = i
	}
	for _, task := range tasks {
		if task.DueDate == nil {
			continue
		}
		if i, ok := index[task.DueDate.In(s.loc).Format("2006-01-02")]; ok {
			days[i].Tasks = append(days[i].Tasks, task)
		}
	}

	prefix := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
	monthHolidays := []model.Holiday{}
	for _, h := range yearHolidays {
		if len(h.Date) >= 7 && h.Date[:7] == prefix {
			monthHolidays = append(monthHolidays, h)
		}
	}

	return &CalendarMonth{Year: year, Month: int(month), Days: days, Holidays: monthHolidays}, nil
}

// BuildMonthGrid lays out 42 days starting on the Sunday on or before the
// first of the month. Holidays are matched on current-month days only.
func BuildMonthGrid(year int, month time.Month, today time.Time, holidays []model.Holiday) []CalendarDay {
	byDate := make(map[string]model.Holiday, len(holidays))
	for _, h := range holidays {
		byDate[h.Date] = h
	}

	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	start := first.AddDate(0, 0, -int(first.Weekday()))
	todayKey := today.Format("2006-01-02")

	days := make([]CalendarDay, 0, CalendarCells)
	for i := 0; i < CalendarCells; i++ {
		date := start.AddDate(0, 0, i)
		key := date.Format("2006-01-02")
		day := CalendarDay{
			Date:           key,
			Day:            date.Day(),
			IsCurrentMonth: date.Month() == month,
			IsToday:        key == todayKey,
			Tasks:          []model.Task{},
		}
		if day.IsCurrentMonth {
			if h, ok := byDate[key]; ok {
				day.IsHoliday = true
				day.HolidayName = h.Name
				day.HolidayType = h.Type
			}
		}
		days = append(days, day)
	}
	return days
}
