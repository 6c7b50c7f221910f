package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/presence-board/internal/calendar"
	"github.com/bnema/presence-board/internal/roster"
)

var base = time.Date(2024, 7, 27, 9, 0, 0, 0, time.UTC)

func meeting(id string, start time.Time) calendar.Event {
	return calendar.Event{
		ID:         id,
		CalendarID: "primary",
		Summary:    "Meeting " + id,
		StartTime:  start,
		EndTime:    start.Add(30 * time.Minute),
		Status:     "confirmed",
		IsBusy:     true,
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	c := New(dir)

	c.UpdateEvents([]calendar.Event{meeting("a", base.Add(time.Hour))}, base)
	members := []roster.Member{"田中", "越川"}
	state := roster.NewState(members)
	state["越川"] = roster.Status{Present: true, Comment: "会議室A"}
	c.SetRoster("sheet-1", members, state, base)

	require.NoError(t, c.Save())
	assert.FileExists(t, filepath.Join(dir, "board.json"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are cleaned up")

	loaded := New(dir)
	require.NoError(t, loaded.Load())
	assert.Equal(t, 1, loaded.EventCount())
	assert.True(t, loaded.LastSync.Equal(base))

	got, savedAt, ok := loaded.LastRoster("sheet-1", members)
	require.True(t, ok)
	assert.True(t, savedAt.Equal(base))
	assert.Equal(t, state, got)
}

func TestLoadMissingFile(t *testing.T) {
	c := New(t.TempDir())
	require.NoError(t, c.Load())
	assert.Zero(t, c.EventCount())
}

func TestLoadCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "board.json"), []byte("{"), 0600))
	assert.Error(t, New(dir).Load())
}

func TestLastRosterOtherSheet(t *testing.T) {
	c := New(t.TempDir())
	members := []roster.Member{"田中"}
	c.SetRoster("sheet-1", members, roster.NewState(members), base)

	_, _, ok := c.LastRoster("sheet-2", members)
	assert.False(t, ok)
}

func TestLastRosterCompletesMembers(t *testing.T) {
	c := New(t.TempDir())
	old := []roster.Member{"田中"}
	state := roster.NewState(old)
	state["田中"] = roster.Status{Present: true}
	c.SetRoster("sheet-1", old, state, base)

	got, _, ok := c.LastRoster("sheet-1", []roster.Member{"田中", "佐藤"})
	require.True(t, ok)
	assert.Equal(t, roster.Status{Present: true}, got["田中"])
	assert.Equal(t, roster.Status{}, got["佐藤"])
}

func TestUpdateEventsKeepsReminderMarks(t *testing.T) {
	c := New(t.TempDir())

	fresh := c.UpdateEvents([]calendar.Event{meeting("a", base.Add(14*time.Minute)), meeting("b", base.Add(2*time.Hour))}, base)
	assert.Len(t, fresh, 2)

	due := c.EventsNeedingNotification(ReminderKind(15), base)
	require.Len(t, due, 1)
	assert.Equal(t, "a", due[0].EventID)
	c.MarkAsNotified(due[0], ReminderKind(15))

	fresh = c.UpdateEvents([]calendar.Event{meeting("a", base.Add(14*time.Minute)), meeting("b", base.Add(2*time.Hour))}, base.Add(time.Minute))
	assert.Empty(t, fresh)
	assert.Empty(t, c.EventsNeedingNotification(ReminderKind(15), base.Add(time.Minute)))

	// Moving the event re-arms its reminders.
	c.UpdateEvents([]calendar.Event{meeting("a", base.Add(15*time.Minute))}, base.Add(time.Minute))
	assert.Len(t, c.EventsNeedingNotification(ReminderKind(15), base.Add(time.Minute)), 1)
}

func TestUpdateEventsDropsOldEvents(t *testing.T) {
	c := New(t.TempDir())
	c.UpdateEvents([]calendar.Event{meeting("old", base.Add(-48 * time.Hour)), meeting("new", base)}, base)
	assert.Equal(t, 1, c.EventCount())
}

func TestTodaysEvents(t *testing.T) {
	c := New(t.TempDir())
	c.UpdateEvents([]calendar.Event{
		meeting("later", base.Add(3*time.Hour)),
		meeting("tomorrow", base.Add(24*time.Hour)),
		meeting("soon", base.Add(time.Hour)),
	}, base)

	events := c.TodaysEvents(base)
	require.Len(t, events, 2)
	assert.Equal(t, "soon", events[0].ID)
	assert.Equal(t, "later", events[1].ID)
}

func TestShouldNotify(t *testing.T) {
	start := base.Add(time.Hour)
	entry := NewCacheEntry(meeting("a", start), base)

	tests := []struct {
		name string
		kind string
		now  time.Time
		want bool
	}{
		{"15min inside window", ReminderKind(15), start.Add(-14 * time.Minute), true},
		{"15min too early", ReminderKind(15), start.Add(-16 * time.Minute), false},
		{"15min window passed", ReminderKind(15), start.Add(-12 * time.Minute), false},
		{"5min inside window", ReminderKind(5), start.Add(-4 * time.Minute), true},
		{"start at start", ReminderStart, start, true},
		{"start after a minute", ReminderStart, start.Add(2 * time.Minute), false},
		{"already started", ReminderKind(5), start.Add(time.Minute), false},
		{"unknown kind", "soon", start.Add(-time.Minute), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, entry.ShouldNotify(tt.kind, tt.now))
		})
	}

	allDay := entry
	allDay.IsAllDay = true
	assert.False(t, allDay.ShouldNotify(ReminderStart, start))

	free := entry
	free.IsBusy = false
	assert.False(t, free.ShouldNotify(ReminderStart, start))

	notified := entry
	notified.AddNotification(ReminderStart)
	assert.False(t, notified.ShouldNotify(ReminderStart, start))
}
