package waybar

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/presence-board/internal/calendar"
	"github.com/bnema/presence-board/internal/nerdfonts"
	"github.com/bnema/presence-board/internal/presence"
	"github.com/bnema/presence-board/internal/roster"
)

var now = time.Date(2024, 7, 27, 12, 0, 0, 0, time.UTC)

func testBoard() Board {
	members := []roster.Member{"田中", "越川", "佐藤"}
	state := roster.NewState(members)
	state["田中"] = roster.Status{Present: true}
	state["越川"] = roster.Status{Present: true, Comment: "14時戻り\n会議室B"}
	return Board{
		Members: members,
		State:   state,
		Status:  presence.Status{Phase: presence.PhaseReady, LastSync: now.Add(-3 * time.Second)},
	}
}

func TestFormatBoardReady(t *testing.T) {
	of := NewOutputFormatter()
	out := of.FormatBoard(testBoard(), calendar.Agenda{}, now)

	assert.Equal(t, nerdfonts.Users+" 2/3", out.Text)
	assert.Equal(t, []string{"theme-light", "ready"}, out.Class)

	lines := strings.Split(out.Tooltip, "\n")
	require.GreaterOrEqual(t, len(lines), 5)
	assert.Equal(t, "Presence (2/3)", lines[0])
	assert.Equal(t, nerdfonts.CheckCircle+" 田中", lines[2])
	assert.Equal(t, nerdfonts.CheckCircle+" 越川  "+nerdfonts.InfoCircle+" 14時戻り 会議室B", lines[3])
	assert.Equal(t, nerdfonts.Circle+" 佐藤", lines[4])
	assert.Contains(t, out.Tooltip, "synced 3 seconds ago")
}

func TestFormatBoardHighlight(t *testing.T) {
	of := NewOutputFormatter()
	board := testBoard()
	board.Highlighted = roster.MemberSet{"佐藤": {}}

	out := of.FormatBoard(board, calendar.Agenda{}, now)
	assert.Equal(t, nerdfonts.Users+" 2/3 "+nerdfonts.Bell, out.Text)
	assert.Contains(t, out.Class, "updated")
	assert.Contains(t, out.Tooltip, nerdfonts.Circle+" 佐藤 "+nerdfonts.Bell)
}

func TestFormatBoardStates(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Board)
		text   string
		class  string
	}{
		{"loading", func(b *Board) { b.Status = presence.Status{Phase: presence.PhaseLoading} }, nerdfonts.Users + " …", "loading"},
		{"reauth", func(b *Board) {
			b.Status.NeedsReauth = true
			b.Status.LastError = errors.New("401")
		}, nerdfonts.ExclamationTriangle + " sign in required", "reauth"},
		{"error", func(b *Board) { b.Status.LastError = errors.New("backend says no") }, nerdfonts.Users + " 2/3", "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			board := testBoard()
			tt.mutate(&board)
			out := NewOutputFormatter().FormatBoard(board, calendar.Agenda{}, now)
			assert.Equal(t, tt.text, out.Text)
			assert.Contains(t, out.Class, tt.class)
		})
	}
}

func TestFormatBoardStale(t *testing.T) {
	board := testBoard()
	board.Stale = true
	board.Status = presence.Status{Phase: presence.PhaseLoading, LastSync: now.Add(-2 * time.Hour), LastError: errors.New("offline")}

	out := NewOutputFormatter().FormatBoard(board, calendar.Agenda{}, now)
	assert.Equal(t, nerdfonts.Users+" 2/3", out.Text)
	assert.Contains(t, out.Class, "stale")
	assert.Contains(t, out.Tooltip, "offline copy from 2 hours ago")
}

func TestThemes(t *testing.T) {
	of := NewOutputFormatter()
	assert.True(t, of.SetTheme("Contrast"))

	out := of.FormatBoard(testBoard(), calendar.Agenda{}, now)
	assert.Equal(t, "theme-contrast", out.Class[0])
	assert.Contains(t, out.Tooltip, "[x] 田中")
	assert.Contains(t, out.Tooltip, "[ ] 佐藤")

	assert.False(t, of.SetTheme("solarized"))
	out = of.FormatBoard(testBoard(), calendar.Agenda{}, now)
	assert.Equal(t, "theme-light", out.Class[0])

	assert.Equal(t, []string{"contrast", "dark", "light"}, ThemeNames())
}

func agendaFixture() calendar.Agenda {
	return calendar.NewAgenda([]calendar.Event{
		{ID: "h", Summary: "Holiday", IsAllDay: true, StartTime: now.Truncate(24 * time.Hour), EndTime: now.Truncate(24 * time.Hour).AddDate(0, 0, 1)},
		{ID: "p", Summary: "Standup", StartTime: now.Add(-3 * time.Hour), EndTime: now.Add(-150 * time.Minute)},
		{ID: "c", Summary: "Review", Location: "Room 2", StartTime: now.Add(-30 * time.Minute), EndTime: now.Add(90 * time.Minute)},
		{ID: "u", Summary: "Retro", StartTime: now.Add(10 * time.Minute), EndTime: now.Add(40 * time.Minute)},
	})
}

func TestFormatAgenda(t *testing.T) {
	of := NewOutputFormatter()
	out := of.FormatAgenda(agendaFixture(), now)

	assert.Equal(t, nerdfonts.CircleDot+" Review", out.Text)
	assert.Equal(t, []string{"theme-light", "active"}, out.Class)

	lines := strings.Split(out.Tooltip, "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, nerdfonts.CalendarDay+" Holiday", lines[2])
	assert.Equal(t, nerdfonts.CheckCircle+" 09:00-09:30  Standup", lines[3])
	assert.Equal(t, nerdfonts.CircleDot+" 11:30-13:30 (1h30m left)  Review  "+nerdfonts.MapPin+" Room 2", lines[4])
	assert.Equal(t, nerdfonts.Clock+" 12:10-12:40  Retro", lines[5])
}

func TestFormatAgendaOptions(t *testing.T) {
	of := NewOutputFormatter()
	of.SetShowEndTime(false)
	of.SetMaxTooltipEvents(1)

	out := of.FormatAgenda(agendaFixture(), now)
	assert.Contains(t, out.Tooltip, nerdfonts.CheckCircle+" 09:00  Standup")
	assert.Contains(t, out.Tooltip, "... and 2 more events")
	assert.NotContains(t, out.Tooltip, "Retro")
}

func TestAgendaClasses(t *testing.T) {
	of := NewOutputFormatter()

	soon := calendar.NewAgenda([]calendar.Event{{Summary: "Retro", StartTime: now.Add(10 * time.Minute), EndTime: now.Add(time.Hour)}})
	assert.Equal(t, "urgent", of.FormatAgenda(soon, now).Class[1])

	later := calendar.NewAgenda([]calendar.Event{{Summary: "Retro", StartTime: now.Add(2 * time.Hour), EndTime: now.Add(3 * time.Hour)}})
	out := of.FormatAgenda(later, now)
	assert.Equal(t, "upcoming", out.Class[1])
	assert.Equal(t, nerdfonts.Calendar+" 1", out.Text)

	done := calendar.NewAgenda([]calendar.Event{{Summary: "Retro", StartTime: now.Add(-2 * time.Hour), EndTime: now.Add(-time.Hour)}})
	out = of.FormatAgenda(done, now)
	assert.Equal(t, "idle", out.Class[1])
	assert.Equal(t, nerdfonts.CheckCircle+" Done", out.Text)

	empty := of.FormatAgenda(calendar.Agenda{}, now)
	assert.Equal(t, nerdfonts.Calendar, empty.Text)
	assert.Contains(t, empty.Tooltip, "No events today")
}

func TestFormatBoardWithAgenda(t *testing.T) {
	out := NewOutputFormatter().FormatBoard(testBoard(), agendaFixture(), now)
	assert.Contains(t, out.Tooltip, "Presence (2/3)")
	assert.Contains(t, out.Tooltip, "Today's Calendar (Saturday, Jul 27)")
}

func TestFormatJSONOutput(t *testing.T) {
	out := WaybarOutput{Text: "x", Tooltip: "y", Class: []string{"theme-dark", "ready"}}
	s, err := FormatJSONOutput(out)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &decoded))
	assert.Equal(t, "x", decoded["text"])
	assert.Equal(t, []any{"theme-dark", "ready"}, decoded["class"])
	assert.Equal(t, "x", FormatTextOutput(out))
}
