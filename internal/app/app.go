package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"task-calendar/internal/api"
	"task-calendar/internal/bot"
	"task-calendar/internal/config"
	"task-calendar/internal/logging"
	"task-calendar/internal/repository"
	"task-calendar/internal/repository/mongostore"
	"task-calendar/internal/service"
)

// holidayWarmupTime is when the next year's holidays are prefetched.
const holidayWarmupTime = "00:05"

// App is the dependency injection container for all application components.
type App struct {
	Config   config.Config
	Location *time.Location

	Users    repository.UserStore
	Projects repository.ProjectStore
	Tasks    repository.TaskStore

	AuthService     *service.AuthService
	ProjectService  *service.ProjectService
	TaskService     *service.TaskService
	HolidayService  *service.HolidayService
	CalendarService *service.CalendarService
	ReminderService *service.ReminderService
	Scheduler       *service.SchedulerService

	closeStore func(ctx context.Context) error
}

// New opens the configured store and builds every service on top of it.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Location: loc}
	if err := a.openStore(ctx); err != nil {
		return nil, err
	}

	a.HolidayService = service.NewHolidayService(service.HolidayConfig{
		APIURL:   cfg.Holidays.APIURL,
		Token:    cfg.Holidays.APIToken,
		Timeout:  cfg.HolidaysTimeout(),
		CacheTTL: cfg.HolidaysCacheTTL(),
	})
	a.AuthService = service.NewAuthService(a.Users, cfg.JWTSecret, cfg.TokenTTL())
	a.ProjectService = service.NewProjectService(a.Projects, a.Tasks)
	a.TaskService = service.NewTaskService(a.Tasks, a.Projects)
	a.TaskService.SetLocation(loc)
	a.CalendarService = service.NewCalendarService(a.HolidayService, a.Tasks, loc)
	a.ReminderService = service.NewReminderService(a.Tasks, a.Projects, a.HolidayService)
	a.Scheduler = service.NewSchedulerService(loc)

	return a, nil
}

func (a *App) openStore(ctx context.Context) error {
	switch a.Config.StorageDriver {
	case config.DriverMongo:
		store, err := mongostore.Open(ctx, a.Config.MongoURI, a.Config.MongoDBName)
		if err != nil {
			return fmt.Errorf("open mongo: %w", err)
		}
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = store.Close(ctx)
			return fmt.Errorf("mongo indexes: %w", err)
		}
		a.Users, a.Projects, a.Tasks = store.Users(), store.Projects(), store.Tasks()
		a.closeStore = store.Close
	default:
		db, err := repository.NewDB(a.Config.DatabaseURL)
		if err != nil {
			return fmt.Errorf("open sqlite: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("sqlite handle: %w", err)
		}
		a.Users = repository.NewUserRepository(db)
		a.Projects = repository.NewProjectRepository(db)
		a.Tasks = repository.NewTaskRepository(db)
		a.closeStore = func(context.Context) error { return sqlDB.Close() }
	}
	logging.Logger.Infof("Event ID: STORE_OPENED, Description: using %s storage", a.Config.StorageDriver)
	return nil
}

// Handler returns the HTTP API.
func (a *App) Handler() http.Handler {
	return api.NewServer(api.Deps{
		Auth:       a.AuthService,
		Projects:   a.ProjectService,
		Tasks:      a.TaskService,
		Calendar:   a.CalendarService,
		Holidays:   a.HolidayService,
		CORSOrigin: a.Config.CORSOrigin,
		Location:   a.Location,
	}).Routes()
}

// NewBot connects to Telegram. It returns nil when no token is configured.
func (a *App) NewBot() (*bot.Bot, error) {
	if a.Config.TelegramToken == "" {
		return nil, nil
	}
	return bot.New(a.Config.TelegramToken, bot.Services{
		Auth:      a.AuthService,
		Tasks:     a.TaskService,
		Projects:  a.ProjectService,
		Reminders: a.ReminderService,
	}, a.Location)
}

// ScheduleJobs registers the holiday warm-up and, with a bot, the daily report.
func (a *App) ScheduleJobs(telegramBot *bot.Bot) error {
	if _, err := a.Scheduler.ScheduleDaily("holiday-warmup", holidayWarmupTime, a.warmHolidays); err != nil {
		return err
	}
	if telegramBot == nil {
		return nil
	}
	_, err := a.Scheduler.ScheduleDaily("daily-report", a.Config.ReportTime, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := telegramBot.SendDailyReports(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logging.Logger.Errorf("Event ID: DAILY_REPORT_FAILED, Description: %v", err)
		}
	})
	return err
}

func (a *App) warmHolidays() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	year := time.Now().In(a.Location).Year()
	for _, y := range []int{year, year + 1} {
		list := a.HolidayService.Holidays(ctx, y)
		logging.Logger.Debugf("Event ID: HOLIDAYS_WARMED, Description: %d holidays for %d", len(list), y)
	}
}

// Close stops the scheduler and releases the store.
func (a *App) Close(ctx context.Context) error {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.closeStore != nil {
		return a.closeStore(ctx)
	}
	return nil
}
