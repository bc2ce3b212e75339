package service

import (
	"context"
	"testing"
	"time"

	"task-calendar/internal/model"
)

type staticHolidays []model.Holiday

func (h staticHolidays) Holidays(context.Context, int) []model.Holiday { return h }

func TestBuildMonthGrid(t *testing.T) {
	today := time.Date(2024, 2, 14, 9, 0, 0, 0, time.UTC)
	days := BuildMonthGrid(2024, time.February, today, DefaultHolidays(2024))

	if len(days) != CalendarCells {
		t.Fatalf("expected %d cells, got %d", CalendarCells, len(days))
	}
	// 2024-02-01 is a Thursday, so the grid starts on Sunday 2024-01-28.
	if days[0].Date != "2024-01-28" || days[0].IsCurrentMonth {
		t.Fatalf("unexpected first cell: %+v", days[0])
	}
	if days[4].Date != "2024-02-01" || !days[4].IsCurrentMonth {
		t.Fatalf("unexpected first of month: %+v", days[4])
	}
	if last := days[len(days)-1]; last.Date != "2024-03-09" || last.IsCurrentMonth {
		t.Fatalf("unexpected last cell: %+v", last)
	}

	var holidays, todays int
	for _, d := range days {
		if d.IsHoliday {
			holidays++
			if d.Date != "2024-02-13" || d.HolidayName != "Carnaval" {
				t.Fatalf("unexpected holiday cell: %+v", d)
			}
		}
		if d.IsToday {
			todays++
			if d.Date != "2024-02-14" {
				t.Fatalf("wrong today: %s", d.Date)
			}
		}
	}
	if holidays != 1 || todays != 1 {
		t.Fatalf("holidays=%d todays=%d", holidays, todays)
	}
}

func TestBuildMonthGridStartsOnSunday(t *testing.T) {
	// 2024-09-01 is a Sunday: no leading days from August.
	days := BuildMonthGrid(2024, time.September, time.Time{}, nil)
	if days[0].Date != "2024-09-01" || !days[0].IsCurrentMonth {
		t.Fatalf("unexpected first cell: %+v", days[0])
	}
}

func TestCalendarMonthAttachesTasks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	project := env.project(t, "u1")

	inMonth := time.Date(2024, 2, 20, 10, 0, 0, 0, time.UTC)
	trailing := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
	outside := time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC)
	for title, due := range map[string]time.Time{"In month": inMonth, "Trailing": trailing, "Outside": outside} {
		due := due
		if _, err := env.taskSvc.CreateTask(ctx, "u1", TaskInput{ProjectID: project.ID, Title: title, DueDate: &due}); err != nil {
			t.Fatalf("create %s: %v", title, err)
		}
	}

	holidays := staticHolidays{{Date: "2024-02-13", Name: "Carnaval", Type: HolidayNational}, {Date: "2024-05-01", Name: "Labour"}}
	svc := NewCalendarService(holidays, env.tasks, time.UTC)
	svc.SetClock(func() time.Time { return inMonth })

	month, err := svc.Month(ctx, "u1", 2024, time.February)
	if err != nil {
		t.Fatalf("month: %v", err)
	}
	counts := map[string]int{}
	for _, d := range month.Days {
		if len(d.Tasks) > 0 {
			counts[d.Date] = len(d.Tasks)
		}
	}
	if len(counts) != 2 || counts["2024-02-20"] != 1 || counts["2024-03-02"] != 1 {
		t.Fatalf("unexpected task placement: %v", counts)
	}
	if len(month.Holidays) != 1 || month.Holidays[0].Name != "Carnaval" {
		t.Fatalf("unexpected month holidays: %+v", month.Holidays)
	}

	if _, err := svc.Month(ctx, "u1", 2024, 13); err == nil {
		t.Fatalf("expected error for month 13")
	}
}
