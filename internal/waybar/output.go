package waybar

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/bnema/presence-board/internal/calendar"
	"github.com/bnema/presence-board/internal/nerdfonts"
	"github.com/bnema/presence-board/internal/presence"
	"github.com/bnema/presence-board/internal/roster"
)

type WaybarOutput struct {
	Text    string   `json:"text"`
	Tooltip string   `json:"tooltip"`
	Class   []string `json:"class"`
}

// Board is what one line of output describes: the roster as currently known
// plus the session health.
type Board struct {
	Members     []roster.Member
	State       roster.State
	Highlighted roster.MemberSet
	Status      presence.Status
	// Stale is set when State comes from the local snapshot instead of the sheet.
	Stale bool
}

type OutputFormatter struct {
	maxTooltipEvents int
	showEndTime      bool
	theme            Theme
}

func NewOutputFormatter() *OutputFormatter {
	theme, _ := LookupTheme(DefaultTheme)
	return &OutputFormatter{
		maxTooltipEvents: 10,
		showEndTime:      true,
		theme:            theme,
	}
}

func (of *OutputFormatter) SetMaxTooltipEvents(max int) {
	of.maxTooltipEvents = max
}

func (of *OutputFormatter) SetShowEndTime(show bool) {
	of.showEndTime = show
}

// SetTheme switches theme by name and reports whether the name was known.
func (of *OutputFormatter) SetTheme(name string) bool {
	theme, ok := LookupTheme(name)
	of.theme = theme
	return ok
}

// FormatBoard renders the roster as the module text and the roster followed
// by today's agenda as the tooltip.
func (of *OutputFormatter) FormatBoard(board Board, agenda calendar.Agenda, now time.Time) WaybarOutput {
	var tooltip []string
	tooltip = append(tooltip, of.rosterTooltip(board, now)...)
	if agenda.Len() > 0 {
		tooltip = append(tooltip, "")
		tooltip = append(tooltip, of.agendaTooltip(agenda, now)...)
	}

	return WaybarOutput{
		Text:    of.rosterText(board),
		Tooltip: strings.Join(tooltip, "\n"),
		Class:   of.rosterClasses(board),
	}
}

// FormatAgenda renders today's agenda alone.
func (of *OutputFormatter) FormatAgenda(agenda calendar.Agenda, now time.Time) WaybarOutput {
	current := agenda.Current(now)
	upcoming := agenda.Upcoming(now)

	return WaybarOutput{
		Text:    of.agendaText(agenda, current, upcoming),
		Tooltip: strings.Join(of.agendaTooltip(agenda, now), "\n"),
		Class:   []string{of.theme.Class, agendaClass(current, upcoming, now)},
	}
}

func presentCount(board Board) int {
	n := 0
	for _, m := range board.Members {
		if board.State[m].Present {
			n++
		}
	}
	return n
}

func (of *OutputFormatter) rosterText(board Board) string {
	switch {
	case board.Status.NeedsReauth:
		return fmt.Sprintf("%s sign in required", nerdfonts.ExclamationTriangle)
	case board.Status.Phase == presence.PhaseLoading && !board.Stale:
		return fmt.Sprintf("%s …", nerdfonts.Users)
	}
	text := fmt.Sprintf("%s %d/%d", nerdfonts.Users, presentCount(board), len(board.Members))
	if len(board.Highlighted) > 0 {
		text += " " + of.theme.Updated
	}
	return text
}

func (of *OutputFormatter) rosterClasses(board Board) []string {
	classes := []string{of.theme.Class}
	switch {
	case board.Status.NeedsReauth:
		classes = append(classes, "reauth")
	case board.Status.LastError != nil:
		classes = append(classes, "error")
	case board.Status.Phase == presence.PhaseLoading:
		classes = append(classes, "loading")
	default:
		classes = append(classes, "ready")
	}
	if board.Stale {
		classes = append(classes, "stale")
	}
	if len(board.Highlighted) > 0 {
		classes = append(classes, "updated")
	}
	return classes
}

func (of *OutputFormatter) rosterTooltip(board Board, now time.Time) []string {
	header := fmt.Sprintf("Presence (%d/%d)", presentCount(board), len(board.Members))
	lines := []string{header, strings.Repeat(of.theme.Separator, len([]rune(header)))}

	width := 0
	for _, m := range board.Members {
		width = max(width, len([]rune(string(m))))
	}

	for _, m := range board.Members {
		st := board.State[m]
		symbol := of.theme.Absent
		if st.Present {
			symbol = of.theme.Present
		}
		name := string(m) + strings.Repeat(" ", width-len([]rune(string(m))))
		line := fmt.Sprintf("%s %s", symbol, name)
		if st.Comment != "" {
			line += fmt.Sprintf("  %s %s", of.theme.Comment, oneLine(st.Comment))
		}
		if board.Highlighted.Has(m) {
			line += " " + of.theme.Updated
		}
		lines = append(lines, line)
	}

	lines = append(lines, "")
	if board.Stale {
		lines = append(lines, fmt.Sprintf("%s offline copy from %s", nerdfonts.ExclamationTriangle, humanize.RelTime(board.Status.LastSync, now, "ago", "from now")))
	} else if !board.Status.LastSync.IsZero() {
		lines = append(lines, fmt.Sprintf("%s synced %s", nerdfonts.Clock, humanize.RelTime(board.Status.LastSync, now, "ago", "from now")))
	}
	if board.Status.NeedsReauth {
		lines = append(lines, fmt.Sprintf("%s run `presence-board auth` to sign in again", nerdfonts.ExclamationCircle))
	} else if board.Status.LastError != nil {
		lines = append(lines, fmt.Sprintf("%s %s", nerdfonts.ExclamationCircle, board.Status.LastError))
	}

	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// oneLine keeps multi-line comments on a single tooltip row.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func (of *OutputFormatter) agendaText(agenda calendar.Agenda, current, upcoming []calendar.Event) string {
	if len(current) > 0 {
		event := current[0]
		if len(current) > 1 {
			return fmt.Sprintf("%s %s (+%d)", nerdfonts.CircleDot, event.GetShortSummary(), len(current)-1)
		}
		return fmt.Sprintf("%s %s", nerdfonts.CircleDot, event.GetShortSummary())
	}
	if len(upcoming) > 0 {
		return fmt.Sprintf("%s %d", nerdfonts.Calendar, len(upcoming))
	}
	if len(agenda.Timed) > 0 {
		return fmt.Sprintf("%s %s", nerdfonts.CheckCircle, "Done")
	}
	return nerdfonts.Calendar
}

func (of *OutputFormatter) agendaTooltip(agenda calendar.Agenda, now time.Time) []string {
	header := fmt.Sprintf("Today's Calendar (%s)", now.Format("Monday, Jan 2"))
	lines := []string{header, strings.Repeat(of.theme.Separator, len([]rune(header)))}

	if agenda.Len() == 0 {
		return append(lines, fmt.Sprintf("%s No events today", nerdfonts.Calendar))
	}

	for _, event := range agenda.AllDay {
		lines = append(lines, fmt.Sprintf("%s %s", nerdfonts.CalendarDay, event.Summary))
	}

	events := agenda.Timed
	if of.maxTooltipEvents > 0 && len(events) > of.maxTooltipEvents {
		events = events[:of.maxTooltipEvents]
	}
	for _, event := range events {
		lines = append(lines, of.formatEventForTooltip(event, now))
	}
	if remaining := len(agenda.Timed) - len(events); remaining > 0 {
		lines = append(lines, fmt.Sprintf("... and %d more events", remaining))
	}
	return lines
}

func (of *OutputFormatter) formatEventForTooltip(event calendar.Event, now time.Time) string {
	timeStr := event.StartLabel()
	if of.showEndTime {
		timeStr += "-" + event.EndLabel()
	}

	var symbol string
	switch event.PhaseAt(now) {
	case calendar.Current:
		symbol = nerdfonts.CircleDot
		timeStr = fmt.Sprintf("%s (%s left)", timeStr, formatDuration(event.EndTime.Sub(now)))
	case calendar.Upcoming:
		symbol = nerdfonts.Clock
	default:
		symbol = nerdfonts.CheckCircle
	}

	line := fmt.Sprintf("%s %s  %s", symbol, timeStr, event.Summary)
	if event.Location != "" {
		line += fmt.Sprintf("  %s %s", nerdfonts.MapPin, event.Location)
	}
	return line
}

func agendaClass(current, upcoming []calendar.Event, now time.Time) string {
	if len(current) > 0 {
		return "active"
	}
	for _, event := range upcoming {
		if event.MinutesUntilStart(now) <= 15 {
			return "urgent"
		}
	}
	if len(upcoming) > 0 {
		return "upcoming"
	}
	return "idle"
}

func formatDuration(duration time.Duration) string {
	if duration < 0 {
		return "0m"
	}

	if duration < time.Hour {
		return fmt.Sprintf("%dm", int(duration.Minutes()))
	}

	hours := int(duration.Hours())
	minutes := int(duration.Minutes()) % 60
	if minutes == 0 {
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dh%dm", hours, minutes)
}

// FormatJSONOutput outputs the WaybarOutput as JSON string
func FormatJSONOutput(output WaybarOutput) (string, error) {
	data, err := json.Marshal(output)
	if err != nil {
		return "", fmt.Errorf("failed to marshal waybar output: %w", err)
	}
	return string(data), nil
}

// FormatTextOutput outputs a simple text representation
func FormatTextOutput(output WaybarOutput) string {
	return output.Text
}
