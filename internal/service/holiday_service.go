package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sony/gobreaker"

	"task-calendar/internal/logging"
	"task-calendar/internal/model"
)

// Holiday types as reported by the upstream API.
const (
	HolidayNational  = "nacional"
	HolidayState     = "estadual"
	HolidayMunicipal = "municipal"
)

// HolidayConfig configures the upstream API and the cache.
type HolidayConfig struct {
	APIURL   string
	Token    string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// HolidayCacheStats describes the cached years.
type HolidayCacheStats struct {
	Size  int   `json:"size"`
	Years []int `json:"years"`
}

// HolidayService resolves public holidays per year from a remote API, with a
// cache and a computed fallback list when the API is unavailable.
type HolidayService struct {
	apiURL  string
	token   string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	cache   *expirable.LRU[int, []model.Holiday]
}

func NewHolidayService(cfg HolidayConfig) *HolidayService {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 24 * time.Hour
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "HolidaysAPI",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Logger.Warnf("Event ID: CIRCUIT_BREAKER_STATE_CHANGE, Description: %s changed from %s to %s", name, from, to)
		},
	})

	return &HolidayService{
		apiURL:  strings.TrimRight(cfg.APIURL, "/"),
		token:   cfg.Token,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: breaker,
		cache:   expirable.NewLRU[int, []model.Holiday](32, nil, cfg.CacheTTL),
	}
}

// Holidays returns the holidays of year sorted by date. It never fails: API
// errors fall back to DefaultHolidays, which are not cached. The result is
// the caller's own copy.
func (s *HolidayService) Holidays(ctx context.Context, year int) []model.Holiday {
	if cached, ok := s.cache.Get(year); ok {
		return slices.Clone(cached)
	}

	if s.apiURL == "" || s.token == "" {
		return DefaultHolidays(year)
	}

	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.fetch(ctx, year)
	})
	if err != nil {
		logging.Logger.Warnf("Event ID: HOLIDAYS_FALLBACK, Description: using built-in holidays for %d: %v", year, err)
		return DefaultHolidays(year)
	}

	holidays := result.([]model.Holiday)
	s.cache.Add(year, holidays)
	logging.Logger.Infof("Event ID: HOLIDAYS_LOADED, Description: %d holidays loaded for %d", len(holidays), year)
	return slices.Clone(holidays)
}

type apiHoliday struct {
	Date        string `json:"date"`
	Data        string `json:"data"`
	Name        string `json:"name"`
	Nome        string `json:"nome"`
	Type        string `json:"type"`
	Tipo        string `json:"tipo"`
	Description string `json:"description"`
	Descricao   string `json:"descricao"`
}

func (s *HolidayService) fetch(ctx context.Context, year int) ([]model.Holiday, error) {
	endpoint := fmt.Sprintf("%s/%d/?token=%s", s.apiURL, year, url.QueryEscape(s.token))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build holidays request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch holidays: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch holidays: unexpected status %d", resp.StatusCode)
	}

	var raw []apiHoliday
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode holidays: %w", err)
	}

	holidays := make([]model.Holiday, 0, len(raw))
	for _, h := range raw {
		holidays = append(holidays, newHoliday(
			firstNonEmpty(h.Date, h.Data),
			firstNonEmpty(h.Name, h.Nome),
			firstNonEmpty(h.Type, h.Tipo, HolidayNational),
			firstNonEmpty(h.Description, h.Descricao),
			year,
		))
	}
	sortHolidays(holidays)
	return holidays, nil
}

// IsHoliday returns the holiday on date's calendar day, or nil.
func (s *HolidayService) IsHoliday(ctx context.Context, date time.Time) *model.Holiday {
	key := date.Format("2006-01-02")
	for _, h := range s.Holidays(ctx, date.Year()) {
		if h.Date == key {
			found := h
			return &found
		}
	}
	return nil
}

func (s *HolidayService) ClearCache() {
	s.cache.Purge()
	logging.Logger.Info("Event ID: HOLIDAYS_CACHE_CLEARED, Description: holiday cache cleared")
}

func (s *HolidayService) CacheStats() HolidayCacheStats {
	years := s.cache.Keys()
	sort.Ints(years)
	return HolidayCacheStats{Size: len(years), Years: years}
}

// DefaultHolidays lists the fixed Brazilian national holidays of year plus
// Carnival, Good Friday and Easter.
func DefaultHolidays(year int) []model.Holiday {
	fixed := []struct {
		month time.Month
		day   int
		name  string
	}{
		{time.January, 1, "Confraternização Universal"},
		{time.April, 21, "Tiradentes"},
		{time.May, 1, "Dia do Trabalhador"},
		{time.September, 7, "Independência do Brasil"},
		{time.October, 12, "Nossa Senhora Aparecida"},
		{time.November, 2, "Finados"},
		{time.November, 15, "Proclamação da República"},
		{time.December, 25, "Natal"},
	}

	holidays := make([]model.Holiday, 0, len(fixed)+3)
	for _, f := range fixed {
		date := time.Date(year, f.month, f.day, 0, 0, 0, 0, time.UTC)
		holidays = append(holidays, newHoliday(date.Format("2006-01-02"), f.name, HolidayNational, "", year))
	}

	easter := EasterSunday(year)
	holidays = append(holidays,
		newHoliday(easter.Format("2006-01-02"), "Páscoa", HolidayNational, "", year),
		newHoliday(easter.AddDate(0, 0, -47).Format("2006-01-02"), "Carnaval", HolidayNational, "", year),
		newHoliday(easter.AddDate(0, 0, -2).Format("2006-01-02"), "Sexta-feira Santa", HolidayNational, "", year),
	)
	sortHolidays(holidays)
	return holidays
}

// EasterSunday computes Western Easter with the anonymous Gregorian algorithm.
func EasterSunday(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

func newHoliday(date, name, kind, description string, year int) model.Holiday {
	return model.Holiday{
		Date:        date,
		Name:        name,
		Type:        kind,
		Description: description,
		Year:        year,
		IsNational:  kind == HolidayNational,
		IsState:     kind == HolidayState,
		IsMunicipal: kind == HolidayMunicipal,
	}
}

func sortHolidays(holidays []model.Holiday) {
	sort.SliceStable(holidays, func(i, j int) bool {
		return holidays[i].Date < holidays[j].Date
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
