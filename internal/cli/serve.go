package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"task-calendar/internal/app"
	"task-calendar/internal/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, scheduler and Telegram bot",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func serve(ctx context.Context) error {
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			logging.Logger.Errorf("Event ID: SHUTDOWN_FAILED, Description: close store: %v", err)
		}
	}()

	telegramBot, err := a.NewBot()
	if err != nil {
		return err
	}
	if err := a.ScheduleJobs(telegramBot); err != nil {
		return err
	}
	a.Scheduler.Start()

	if telegramBot != nil {
		go func() {
			if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logging.Logger.Errorf("Event ID: BOT_STOPPED, Description: %v", err)
			}
		}()
	} else {
		logging.Logger.Warn("Event ID: BOT_DISABLED, Description: TELEGRAM_BOT_TOKEN not set, daily reports are off")
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logging.Logger.Infof("Event ID: SERVER_STARTED, Description: listening on %s", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	logging.Logger.Info("Event ID: SERVER_STOPPING, Description: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
