package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"task-calendar/internal/service"
)

var holidaysCmd = &cobra.Command{
	Use:   "holidays [year]",
	Short: "Print the holidays of a year",
	Long: `Print the holidays of a year, fetched from the configured holiday API or,
without an API token, from the built-in national list.

Examples:
  taskcalendar holidays          # current year
  taskcalendar holidays 2025`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		year := time.Now().Year()
		if len(args) == 1 {
			v, err := strconv.Atoi(args[0])
			if err != nil || v < 1 || v > 9999 {
				return fmt.Errorf("invalid year %q", args[0])
			}
			year = v
		}

		holidays := service.NewHolidayService(service.HolidayConfig{
			APIURL:   cfg.Holidays.APIURL,
			Token:    cfg.Holidays.APIToken,
			Timeout:  cfg.HolidaysTimeout(),
			CacheTTL: cfg.HolidaysCacheTTL(),
		})
		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.HolidaysTimeout()+5*time.Second)
		defer cancel()

		out := cmd.OutOrStdout()
		for _, h := range holidays.Holidays(ctx, year) {
			fmt.Fprintf(out, "%s  %-10s %s\n", h.Date, h.Type, h.Name)
		}
		return nil
	},
}
