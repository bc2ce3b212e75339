package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"task-calendar/internal/service"
)

func (s *Server) calendarMonth(w http.ResponseWriter, r *http.Request) {
	now := s.now().In(s.Location)
	year, month := now.Year(), int(now.Month())

	q := r.URL.Query()
	if raw := q.Get("year"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, service.ValidationErrors{{Field: "year", Message: "must be a number"}})
			return
		}
		year = v
	}
	if raw := q.Get("month"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, service.ValidationErrors{{Field: "month", Message: "must be a number"}})
			return
		}
		month = v
	}

	grid, err := s.Calendar.Month(r.Context(), userID(r), year, time.Month(month))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, grid)
}

func (s *Server) holidays(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(mux.Vars(r)["year"])
	if err != nil {
		writeError(w, r, service.ValidationErrors{{Field: "year", Message: "must be a number"}})
		return
	}
	list := s.Holidays.Holidays(r.Context(), year)
	writeData(w, http.StatusOK, map[string]any{
		"year":     year,
		"count":    len(list),
		"holidays": list,
	})
}

func (s *Server) holidayCacheStats(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, s.Holidays.CacheStats())
}

func (s *Server) clearHolidayCache(w http.ResponseWriter, r *http.Request) {
	s.Holidays.ClearCache()
	writeMessage(w, http.StatusOK, true, "holiday cache cleared")
}
