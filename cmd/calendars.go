package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bnema/presence-board/internal/auth"
	"github.com/bnema/presence-board/internal/calendar"
	"github.com/bnema/presence-board/internal/nerdfonts"
)

var calendarsCmd = &cobra.Command{
	Use:   "calendars",
	Short: "List available calendars",
	Long: `List all calendars accessible with your Google account.

The IDs can be added to calendars.calendar_ids in config.toml to choose which
calendars feed the agenda shown next to the board.

Example:
  presence-board calendars`,
	RunE: runCalendars,
}

func runCalendars(cmd *cobra.Command, args []string) error {
	manager, err := newAuthManager()
	if err != nil {
		return err
	}
	if _, err := manager.Token(cmd.Context()); err != nil {
		if auth.NeedsInteractive(err) {
			return errors.New(authHint)
		}
		return err
	}

	ctx := cmd.Context()
	client, err := calendar.NewClient(ctx, manager.Client(ctx), cfg.Calendars)
	if err != nil {
		return fmt.Errorf("failed to initialize calendar client: %w", err)
	}

	calendars, err := client.ListCalendars(ctx)
	if err != nil {
		return fmt.Errorf("failed to list calendars: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "=== Available Calendars ===")
	for _, cal := range calendars {
		icon := nerdfonts.Calendar
		if cal.Primary {
			icon = nerdfonts.CheckCircle + " " + nerdfonts.Calendar
		}

		fmt.Fprintf(out, "%s %s\n", icon, cal.Summary)
		fmt.Fprintf(out, "  ID: %s\n", cal.Id)
		if cal.Description != "" {
			fmt.Fprintf(out, "  Description: %s\n", cal.Description)
		}
		fmt.Fprintf(out, "  Access Role: %s\n", cal.AccessRole)
		fmt.Fprintln(out)
	}

	fmt.Fprintf(out, "Total calendars: %d\n", len(calendars))
	if path := cfg.Path(); path != "" {
		fmt.Fprintf(out, "\nTo use specific calendars, add their IDs to %s\n", path)
	}
	return nil
}
