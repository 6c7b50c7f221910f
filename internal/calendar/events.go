package calendar

import (
	"fmt"
	"sort"
	"strings"
	"time"

	gcal "google.golang.org/api/calendar/v3"
)

// UntitledSummary labels events without a title.
const UntitledSummary = "（タイトルなし）"

type Event struct {
	ID         string
	CalendarID string
	Summary    string
	StartTime  time.Time
	EndTime    time.Time
	Location   string
	IsAllDay   bool
	Status     string // confirmed, tentative, cancelled
	IsBusy     bool
}

// Phase places an event relative to a point in time.
type Phase int

const (
	Upcoming Phase = iota
	Current
	Past
)

func (p Phase) String() string {
	switch p {
	case Current:
		return "current"
	case Past:
		return "past"
	default:
		return "upcoming"
	}
}

func convertToEvent(item *gcal.Event, loc *time.Location) (Event, error) {
	event := Event{
		ID:       item.Id,
		Summary:  strings.TrimSpace(item.Summary),
		Location: item.Location,
		Status:   item.Status,
		IsBusy:   item.Transparency != "transparent",
	}
	if event.Summary == "" {
		event.Summary = UntitledSummary
	}

	if item.Start == nil {
		return event, fmt.Errorf("event has no start time or date")
	}

	var err error
	switch {
	case item.Start.DateTime != "":
		event.StartTime, err = time.Parse(time.RFC3339, item.Start.DateTime)
		if err != nil {
			return event, fmt.Errorf("failed to parse start time: %w", err)
		}
	case item.Start.Date != "":
		event.StartTime, err = time.ParseInLocation(time.DateOnly, item.Start.Date, loc)
		if err != nil {
			return event, fmt.Errorf("failed to parse start date: %w", err)
		}
		event.IsAllDay = true
	default:
		return event, fmt.Errorf("event has no start time or date")
	}

	switch {
	case item.End != nil && item.End.DateTime != "":
		event.EndTime, err = time.Parse(time.RFC3339, item.End.DateTime)
		if err != nil {
			return event, fmt.Errorf("failed to parse end time: %w", err)
		}
	case item.End != nil && item.End.Date != "":
		event.EndTime, err = time.ParseInLocation(time.DateOnly, item.End.Date, loc)
		if err != nil {
			return event, fmt.Errorf("failed to parse end date: %w", err)
		}
	case event.IsAllDay:
		event.EndTime = event.StartTime.AddDate(0, 0, 1)
	default:
		event.EndTime = event.StartTime.Add(time.Hour)
	}

	return event, nil
}

// StartLabel is the HH:MM start, 00:00 for all-day events.
func (e *Event) StartLabel() string {
	if e.IsAllDay {
		return "00:00"
	}
	return e.StartTime.Format("15:04")
}

// EndLabel is the HH:MM end, 24:00 for all-day events.
func (e *Event) EndLabel() string {
	if e.IsAllDay {
		return "24:00"
	}
	return e.EndTime.Format("15:04")
}

func (e *Event) GetTimeString() string {
	if e.IsAllDay {
		return "All day"
	}
	return e.StartLabel() + "-" + e.EndLabel()
}

func (e *Event) PhaseAt(t time.Time) Phase {
	switch {
	case !t.Before(e.EndTime):
		return Past
	case !t.Before(e.StartTime):
		return Current
	default:
		return Upcoming
	}
}

func (e *Event) MinutesUntilStart(t time.Time) int {
	if e.StartTime.Before(t) {
		return 0
	}
	return int(e.StartTime.Sub(t).Minutes())
}

func (e *Event) Duration() time.Duration {
	return e.EndTime.Sub(e.StartTime)
}

func (e *Event) IsCancelled() bool {
	return e.Status == "cancelled"
}

func (e *Event) ShouldNotify() bool {
	// Don't notify for all-day events, cancelled events, or transparent events
	return !e.IsAllDay && !e.IsCancelled() && e.IsBusy
}

func (e *Event) GetShortSummary() string {
	r := []rune(e.Summary)
	if len(r) <= 30 {
		return e.Summary
	}
	return string(r[:27]) + "..."
}

// SortEvents orders events by start time with all-day events first. Events
// from different calendars starting together keep their fetch order.
func SortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].IsAllDay != events[j].IsAllDay {
			return events[i].IsAllDay
		}
		return events[i].StartTime.Before(events[j].StartTime)
	})
}

// Agenda splits today's events into the banner of all-day events and the
// timed timeline.
type Agenda struct {
	AllDay []Event
	Timed  []Event
}

func NewAgenda(events []Event) Agenda {
	var a Agenda
	for _, e := range events {
		if e.IsCancelled() {
			continue
		}
		if e.IsAllDay {
			a.AllDay = append(a.AllDay, e)
		} else {
			a.Timed = append(a.Timed, e)
		}
	}
	SortEvents(a.Timed)
	return a
}

// Current returns the timed events in progress at t.
func (a Agenda) Current(t time.Time) []Event {
	return a.filter(t, Current)
}

// Upcoming returns the timed events that have not started at t.
func (a Agenda) Upcoming(t time.Time) []Event {
	return a.filter(t, Upcoming)
}

func (a Agenda) filter(t time.Time, phase Phase) []Event {
	var out []Event
	for _, e := range a.Timed {
		if e.PhaseAt(t) == phase {
			out = append(out, e)
		}
	}
	return out
}

// Len counts every event in the agenda.
func (a Agenda) Len() int {
	return len(a.AllDay) + len(a.Timed)
}
