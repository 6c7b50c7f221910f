package cache

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/bnema/presence-board/internal/calendar"
)

// ReminderStart is the reminder sent when an event begins.
const ReminderStart = "start"

// ReminderKind names the reminder sent minutes before an event.
func ReminderKind(minutes int) string {
	if minutes <= 0 {
		return ReminderStart
	}
	return fmt.Sprintf("%dmin", minutes)
}

type CacheEntry struct {
	EventID    string    `json:"event_id"`
	CalendarID string    `json:"calendar_id"`
	Summary    string    `json:"summary"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	Location   string    `json:"location"`
	IsAllDay   bool      `json:"is_all_day"`
	Status     string    `json:"status"`
	IsBusy     bool      `json:"is_busy"`
	NotifiedAt []string  `json:"notified_at"` // ["15min", "5min", "start"]
	LastSeen   time.Time `json:"last_seen"`
}

func entryKey(calendarID, eventID string) string {
	return calendarID + "/" + eventID
}

func (ce *CacheEntry) key() string {
	return entryKey(ce.CalendarID, ce.EventID)
}

func NewCacheEntry(event calendar.Event, now time.Time) CacheEntry {
	return CacheEntry{
		EventID:    event.ID,
		CalendarID: event.CalendarID,
		Summary:    event.Summary,
		StartTime:  event.StartTime,
		EndTime:    event.EndTime,
		Location:   event.Location,
		IsAllDay:   event.IsAllDay,
		Status:     event.Status,
		IsBusy:     event.IsBusy,
		LastSeen:   now,
	}
}

func (ce *CacheEntry) ToEvent() calendar.Event {
	return calendar.Event{
		ID:         ce.EventID,
		CalendarID: ce.CalendarID,
		Summary:    ce.Summary,
		StartTime:  ce.StartTime,
		EndTime:    ce.EndTime,
		Location:   ce.Location,
		IsAllDay:   ce.IsAllDay,
		Status:     ce.Status,
		IsBusy:     ce.IsBusy,
	}
}

func (ce *CacheEntry) HasBeenNotifiedFor(kind string) bool {
	return slices.Contains(ce.NotifiedAt, kind)
}

func (ce *CacheEntry) AddNotification(kind string) {
	if !ce.HasBeenNotifiedFor(kind) {
		ce.NotifiedAt = append(ce.NotifiedAt, kind)
	}
}

func (ce *CacheEntry) ShouldNotify(kind string, now time.Time) bool {
	if ce.HasBeenNotifiedFor(kind) {
		return false
	}
	event := ce.ToEvent()
	if !event.ShouldNotify() {
		return false
	}

	timeUntil := ce.StartTime.Sub(now)
	if kind == ReminderStart {
		return timeUntil <= time.Minute && timeUntil >= -time.Minute
	}
	if timeUntil < 0 {
		return false
	}

	minutes, err := strconv.Atoi(strings.TrimSuffix(kind, "min"))
	if err != nil || !strings.HasSuffix(kind, "min") {
		return false
	}
	windowStart := time.Duration(minutes) * time.Minute
	windowEnd := max(time.Duration(minutes-3)*time.Minute, 0) // 3-minute window
	return timeUntil <= windowStart && timeUntil > windowEnd
}

func (ce *CacheEntry) UpdateFromEvent(event calendar.Event, now time.Time) {
	// A moved event gets its reminders again.
	if !ce.StartTime.Equal(event.StartTime) {
		ce.NotifiedAt = nil
	}

	ce.Summary = event.Summary
	ce.StartTime = event.StartTime
	ce.EndTime = event.EndTime
	ce.Location = event.Location
	ce.IsAllDay = event.IsAllDay
	ce.Status = event.Status
	ce.IsBusy = event.IsBusy
	ce.LastSeen = now
}
