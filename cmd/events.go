package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bnema/presence-board/internal/auth"
	"github.com/bnema/presence-board/internal/logger"
	"github.com/bnema/presence-board/internal/notifier"
)

var notifyUpcoming bool

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Sync today's calendar events and output Waybar format",
	Long: `Fetch today's events from Google Calendar, cache them locally, optionally
send reminders for upcoming events and print the agenda for Waybar.

Meant for an interval module next to the board:

  "custom/agenda": {
      "exec": "presence-board events",
      "return-type": "json",
      "interval": 60
  }

Examples:
  presence-board events                    # Basic sync and output
  presence-board events --format=text     # Output as plain text
  presence-board events --notify-upcoming # Send reminders for upcoming events`,
	RunE: runEvents,
}

func init() {
	eventsCmd.Flags().StringVar(&formatFlag, "format", "json", "output format (json/text)")
	eventsCmd.Flags().BoolVar(&notifyUpcoming, "notify-upcoming", false, "send notifications for upcoming events")
	eventsCmd.Flags().BoolVar(&noTooltipFlag, "no-tooltip", false, "remove tooltip field from JSON output")
}

func runEvents(cmd *cobra.Command, args []string) error {
	if noTooltipFlag && formatFlag != "json" {
		return fmt.Errorf("--no-tooltip flag can only be used with --format=json")
	}

	manager, err := newAuthManager()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), agendaTimeout)
	defer cancel()

	eventCache := loadCache()
	n := notifier.New(notifyUpcoming || cfg.Notifications.Enabled)
	now := time.Now()

	agenda, err := syncAgenda(ctx, manager, eventCache, n, now)
	if err != nil {
		if auth.NeedsInteractive(err) && eventCache.EventCount() == 0 {
			return fmt.Errorf("%s: %w", authHint, err)
		}
		logger.Warn("showing cached events", "error", err)
	}

	return printOutput(cmd.OutOrStdout(), newFormatter().FormatAgenda(agenda, now))
}
