package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/bnema/presence-board/internal/auth"
	"github.com/bnema/presence-board/internal/cache"
	"github.com/bnema/presence-board/internal/calendar"
	"github.com/bnema/presence-board/internal/logger"
	"github.com/bnema/presence-board/internal/notifier"
	"github.com/bnema/presence-board/internal/presence"
	"github.com/bnema/presence-board/internal/security"
	"github.com/bnema/presence-board/internal/sheets"
	"github.com/bnema/presence-board/internal/waybar"
)

const authHint = "authentication required. Run 'presence-board auth' first"

func newAuthManager() (*auth.Manager, error) {
	secrets, err := auth.LoadClientSecrets(clientSecretsPath)
	if err != nil {
		return nil, err
	}
	manager, err := auth.NewManager(cacheDir, secrets,
		auth.WithHTTPClient(security.NewHTTPClient(security.GoogleHosts...)))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize auth manager: %w", err)
	}
	return manager, nil
}

func newAdapter() (*sheets.Adapter, error) {
	if err := cfg.ValidateRoster(); err != nil {
		return nil, err
	}
	client := security.NewHTTPClient(security.GoogleHosts...)
	return sheets.NewAdapter(cfg.Roster.SpreadsheetID, cfg.Roster.Range, cfg.Codec(),
		sheets.WithTransport(client.Transport))
}

// openSession wires the sheet adapter and the token manager into a running
// roster session.
func openSession(manager *auth.Manager) (*presence.Session, error) {
	adapter, err := newAdapter()
	if err != nil {
		return nil, err
	}
	return presence.NewSession(adapter, manager, presence.Options{
		Members:           cfg.RosterMembers(),
		PollInterval:      cfg.Roster.PollInterval,
		HighlightDuration: cfg.Roster.HighlightDuration,
		Debounce:          cfg.Roster.Debounce,
	})
}

func newFormatter() *waybar.OutputFormatter {
	formatter := waybar.NewOutputFormatter()
	formatter.SetMaxTooltipEvents(cfg.Display.MaxTooltipEvents)
	formatter.SetShowEndTime(cfg.Display.ShowEndTime)
	if !formatter.SetTheme(cfg.Display.Theme) {
		logger.Warn("unknown theme, using default", "theme", cfg.Display.Theme, "available", waybar.ThemeNames())
	}
	return formatter
}

func loadCache() *cache.Cache {
	c := cache.New(cacheDir)
	if err := c.Load(); err != nil {
		logger.Warn("failed to load cache", "error", err)
	}
	return c
}

// syncAgenda fetches today's events into the cache and fires the configured
// reminders. A failed fetch keeps whatever the cache already holds.
func syncAgenda(ctx context.Context, manager *auth.Manager, c *cache.Cache, n *notifier.Notifier, now time.Time) (calendar.Agenda, error) {
	client, err := calendar.NewClient(ctx, manager.Client(ctx), cfg.Calendars)
	if err != nil {
		return calendar.NewAgenda(c.TodaysEvents(now)), err
	}

	events, fetchErr := client.TodaysEvents(ctx, now)
	if fetchErr == nil {
		if fresh := c.UpdateEvents(events, now); len(fresh) > 0 {
			logger.Info("found new events", "count", len(fresh))
		}
	} else {
		logger.Warn("failed to fetch events, using cached data", "error", fetchErr)
	}

	if n.IsEnabled() {
		sendReminders(c, n, now)
	}
	if err := c.Save(); err != nil {
		logger.Warn("failed to save cache", "error", err)
	}
	return calendar.NewAgenda(c.TodaysEvents(now)), fetchErr
}

func sendReminders(c *cache.Cache, n *notifier.Notifier, now time.Time) {
	remind := func(kind string, minutes int) {
		due := c.EventsNeedingNotification(kind, now)
		if len(due) == 0 {
			return
		}
		if err := n.SendBulkEventReminder(due, minutes); err != nil {
			logger.Warn("failed to send reminder", "kind", kind, "error", err)
			return
		}
		for _, entry := range due {
			c.MarkAsNotified(entry, kind)
		}
	}

	for _, minutes := range cfg.Notifications.ReminderTimes {
		remind(cache.ReminderKind(minutes), minutes)
	}
	remind(cache.ReminderStart, 0)
}
