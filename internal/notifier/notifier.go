package notifier

import (
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/gen2brain/beeep"

	"github.com/bnema/presence-board/internal/cache"
	"github.com/bnema/presence-board/internal/logger"
	"github.com/bnema/presence-board/internal/nerdfonts"
	"github.com/bnema/presence-board/internal/roster"
)

const appName = "Presence Board"

// Sender delivers one desktop notification.
type Sender func(title, message, urgency string) error

type Notifier struct {
	enabled bool
	send    Sender
}

func New(enabled bool) *Notifier {
	return &Notifier{
		enabled: enabled,
		send:    sendDesktop,
	}
}

// WithSender replaces the delivery mechanism.
func (n *Notifier) WithSender(send Sender) *Notifier {
	n.send = send
	return n
}

// SendRosterChanges announces members whose status was changed by someone
// else.
func (n *Notifier) SendRosterChanges(changed []roster.Member, state roster.State) error {
	if !n.enabled || len(changed) == 0 {
		return nil
	}

	var title string
	if len(changed) == 1 {
		title = fmt.Sprintf("%s %s updated the board", nerdfonts.Users, changed[0])
	} else {
		title = fmt.Sprintf("%s %d members updated the board", nerdfonts.Users, len(changed))
	}

	lines := make([]string, 0, len(changed))
	for _, m := range changed {
		lines = append(lines, formatMember(m, state[m]))
	}
	return n.send(title, strings.Join(lines, "\n"), "low")
}

func formatMember(m roster.Member, st roster.Status) string {
	symbol, label := nerdfonts.Circle, "away"
	if st.Present {
		symbol, label = nerdfonts.CheckCircle, "in"
	}
	line := fmt.Sprintf("%s %s is %s", symbol, m, label)
	if st.Comment != "" {
		line += fmt.Sprintf(" (%s)", truncate(strings.Join(strings.Fields(st.Comment), " "), 60))
	}
	return line
}

// SendAuthRequired tells the user that silent token refresh failed.
func (n *Notifier) SendAuthRequired() error {
	if !n.enabled {
		return nil
	}
	title := fmt.Sprintf("%s Sign-in required", nerdfonts.ExclamationTriangle)
	return n.send(title, "Run `presence-board auth` to reconnect to the shared board.", "critical")
}

func (n *Notifier) SendEventReminder(event cache.CacheEntry, minutesBefore int) error {
	if !n.enabled {
		return nil
	}

	e := event.ToEvent()
	var title string
	if minutesBefore <= 0 {
		title = fmt.Sprintf("%s %s starting now", nerdfonts.CalendarDay, e.GetShortSummary())
	} else {
		title = fmt.Sprintf("%s %s in %d minutes", nerdfonts.CalendarClock, e.GetShortSummary(), minutesBefore)
	}

	var parts []string
	parts = append(parts, fmt.Sprintf("%s %s", nerdfonts.Clock, e.GetTimeString()))
	if e.Location != "" {
		parts = append(parts, fmt.Sprintf("%s %s", nerdfonts.MapPin, e.Location))
	}
	if d := e.Duration(); d >= 2*time.Hour {
		parts = append(parts, fmt.Sprintf("%s %s", nerdfonts.Hourglass, formatDuration(d)))
	}

	return n.send(title, strings.Join(parts, "\n"), getUrgency(minutesBefore))
}

func (n *Notifier) SendBulkEventReminder(events []cache.CacheEntry, minutesBefore int) error {
	if !n.enabled || len(events) == 0 {
		return nil
	}
	if len(events) == 1 {
		return n.SendEventReminder(events[0], minutesBefore)
	}

	var title string
	if minutesBefore <= 0 {
		title = fmt.Sprintf("%s %d events starting now", nerdfonts.CalendarDay, len(events))
	} else {
		title = fmt.Sprintf("%s %d events in %d minutes", nerdfonts.CalendarClock, len(events), minutesBefore)
	}

	var lines []string
	for i, entry := range events {
		if i == 5 {
			lines = append(lines, fmt.Sprintf("... and %d more events", len(events)-5))
			break
		}
		e := entry.ToEvent()
		line := fmt.Sprintf("%s %s %s", nerdfonts.Clock, e.StartLabel(), e.GetShortSummary())
		if e.Location != "" {
			line += fmt.Sprintf(" (%s %s)", nerdfonts.MapPin, e.Location)
		}
		lines = append(lines, line)
	}

	return n.send(title, strings.Join(lines, "\n"), getUrgency(minutesBefore))
}

func formatDuration(duration time.Duration) string {
	hours := duration.Hours()
	if hours < 24 {
		if hours == float64(int(hours)) {
			return fmt.Sprintf("%.0fh", hours)
		}
		return fmt.Sprintf("%.1fh", hours)
	}
	return fmt.Sprintf("%.1fd", hours/24)
}

func getUrgency(minutesBefore int) string {
	switch {
	case minutesBefore <= 0:
		return "critical"
	case minutesBefore <= 5:
		return "normal"
	default:
		return "low"
	}
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-1]) + "…"
}

// sendDesktop prefers notify-send for urgency support and falls back to
// beeep where it is not installed.
func sendDesktop(title, message, urgency string) error {
	if path, err := exec.LookPath("notify-send"); err == nil {
		cmd := exec.Command(path, "--app-name="+appName, "--urgency="+urgency, title, message)
		output, err := cmd.CombinedOutput()
		if err == nil {
			return nil
		}
		logger.Debug("notify-send failed, falling back", "error", err, "output", string(output))
	}
	if err := beeep.Notify(title, message, ""); err != nil {
		return fmt.Errorf("desktop notification failed: %w", err)
	}
	return nil
}

func (n *Notifier) IsEnabled() bool {
	return n.enabled
}

func (n *Notifier) SetEnabled(enabled bool) {
	n.enabled = enabled
}

func (n *Notifier) TestNotification() error {
	if !n.enabled {
		return fmt.Errorf("notifications are disabled")
	}

	title := fmt.Sprintf("%s Test Notification", nerdfonts.Users)
	message := fmt.Sprintf("%s This is a test notification from presence-board", nerdfonts.InfoCircle)
	return n.send(title, message, "low")
}
