package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestEasterSunday(t *testing.T) {
	cases := map[int]string{
		2019: "2019-04-21",
		2024: "2024-03-31",
		2025: "2025-04-20",
		2038: "2038-04-25",
	}
	for year, want := range cases {
		if got := EasterSunday(year).Format("2006-01-02"); got != want {
			t.Fatalf("easter %d: got %s, want %s", year, got, want)
		}
	}
}

func TestDefaultHolidays(t *testing.T) {
	holidays := DefaultHolidays(2024)
	if len(holidays) != 11 {
		t.Fatalf("expected 11 holidays, got %d", len(holidays))
	}
	byDate := map[string]string{}
	for i, h := range holidays {
		byDate[h.Date] = h.Name
		if i > 0 && holidays[i-1].Date > h.Date {
			t.Fatalf("holidays not sorted at %d", i)
		}
		if !h.IsNational || h.Year != 2024 {
			t.Fatalf("unexpected flags: %+v", h)
		}
	}
	for date, name := range map[string]string{
		"2024-02-13": "Carnaval",
		"2024-03-29": "Sexta-feira Santa",
		"2024-03-31": "Páscoa",
		"2024-12-25": "Natal",
	} {
		if byDate[date] != name {
			t.Fatalf("%s: got %q, want %q", date, byDate[date], name)
		}
	}
}

func TestHolidaysFromAPIAreCached(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.URL.Path != "/2024/" || r.URL.Query().Get("token") != "abc" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"data":"2024-07-09","nome":"Revolução Constitucionalista","tipo":"estadual"},
			{"date":"2024-01-01","name":"New Year","type":"nacional","description":"first day"}
		]`))
	}))
	defer srv.Close()

	svc := NewHolidayService(HolidayConfig{APIURL: srv.URL + "/", Token: "abc", Timeout: time.Second})
	ctx := context.Background()

	holidays := svc.Holidays(ctx, 2024)
	if len(holidays) != 2 {
		t.Fatalf("expected 2 holidays, got %d", len(holidays))
	}
	if holidays[0].Date != "2024-01-01" || holidays[0].Description != "first day" {
		t.Fatalf("unexpected first holiday: %+v", holidays[0])
	}
	if !holidays[1].IsState || holidays[1].Name != "Revolução Constitucionalista" {
		t.Fatalf("portuguese keys not mapped: %+v", holidays[1])
	}

	svc.Holidays(ctx, 2024)
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected cached second call, api hit %d times", got)
	}
	if stats := svc.CacheStats(); stats.Size != 1 || stats.Years[0] != 2024 {
		t.Fatalf("cache stats: %+v", stats)
	}

	if h := svc.IsHoliday(ctx, time.Date(2024, 7, 9, 18, 0, 0, 0, time.UTC)); h == nil || h.Type != HolidayState {
		t.Fatalf("expected state holiday, got %+v", h)
	}
	if h := svc.IsHoliday(ctx, time.Date(2024, 7, 10, 0, 0, 0, 0, time.UTC)); h != nil {
		t.Fatalf("expected no holiday, got %+v", h)
	}

	svc.ClearCache()
	if stats := svc.CacheStats(); stats.Size != 0 {
		t.Fatalf("cache not cleared: %+v", stats)
	}
}

func TestCachedHolidaysAreNotShared(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"date":"2024-01-01","name":"New Year","type":"nacional"}]`))
	}))
	defer srv.Close()

	svc := NewHolidayService(HolidayConfig{APIURL: srv.URL, Token: "abc", Timeout: time.Second})
	ctx := context.Background()

	fresh := svc.Holidays(ctx, 2024)
	fresh[0].Name = "changed by caller"
	hit := svc.Holidays(ctx, 2024)
	if hit[0].Name != "New Year" {
		t.Fatalf("caller edit leaked into cache: %q", hit[0].Name)
	}
	hit[0].Name = "changed again"
	if again := svc.Holidays(ctx, 2024); again[0].Name != "New Year" {
		t.Fatalf("cache hit returned shared slice: %q", again[0].Name)
	}
}

func TestHolidaysFallBackOnAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	svc := NewHolidayService(HolidayConfig{APIURL: srv.URL, Token: "abc"})
	holidays := svc.Holidays(context.Background(), 2025)
	if len(holidays) != len(DefaultHolidays(2025)) {
		t.Fatalf("expected fallback list, got %d entries", len(holidays))
	}
	if stats := svc.CacheStats(); stats.Size != 0 {
		t.Fatalf("fallback must not be cached: %+v", stats)
	}
}

func TestHolidaysWithoutTokenSkipAPI(t *testing.T) {
	svc := NewHolidayService(HolidayConfig{APIURL: "http://127.0.0.1:1"})
	if got := svc.Holidays(context.Background(), 2024); len(got) != 11 {
		t.Fatalf("expected built-in list, got %d", len(got))
	}
}
