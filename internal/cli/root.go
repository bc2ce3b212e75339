package cli

import (
	"github.com/spf13/cobra"

	"task-calendar/internal/config"
	"task-calendar/internal/logging"
)

var (
	configPath string
	cfg        config.Config
)

var rootCmd = &cobra.Command{
	Use:   "taskcalendar",
	Short: "Task and calendar manager with change history",
	Long: `taskcalendar serves the task/calendar HTTP API, runs the daily Telegram
summary and keeps an audit trail of every task change.

Settings come from an optional YAML file, then .env, then the environment.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		logging.InitLogger(logging.Options{File: cfg.LogFile, Level: cfg.LogLevel})
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(holidaysCmd)
}
