package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gcal "google.golang.org/api/calendar/v3"
)

func at(hour, minute int) time.Time {
	return time.Date(2024, 7, 27, hour, minute, 0, 0, tokyo)
}

func TestConvertToEvent(t *testing.T) {
	tests := []struct {
		name    string
		item    *gcal.Event
		want    Event
		wantErr bool
	}{
		{
			name: "timed",
			item: &gcal.Event{
				Id: "1", Summary: " Standup ",
				Start: &gcal.EventDateTime{DateTime: "2024-07-27T10:00:00+09:00"},
				End:   &gcal.EventDateTime{DateTime: "2024-07-27T10:15:00+09:00"},
			},
			want: Event{ID: "1", Summary: "Standup", StartTime: at(10, 0), EndTime: at(10, 15), IsBusy: true},
		},
		{
			name: "all day in local zone",
			item: &gcal.Event{
				Id: "2", Summary: "Holiday", Transparency: "transparent",
				Start: &gcal.EventDateTime{Date: "2024-07-27"},
				End:   &gcal.EventDateTime{Date: "2024-07-28"},
			},
			want: Event{ID: "2", Summary: "Holiday", StartTime: at(0, 0), EndTime: at(0, 0).AddDate(0, 0, 1), IsAllDay: true},
		},
		{
			name: "missing end defaults to one hour",
			item: &gcal.Event{Id: "3", Start: &gcal.EventDateTime{DateTime: "2024-07-27T15:00:00+09:00"}},
			want: Event{ID: "3", Summary: UntitledSummary, StartTime: at(15, 0), EndTime: at(16, 0), IsBusy: true},
		},
		{
			name:    "no start",
			item:    &gcal.Event{Id: "4", Start: &gcal.EventDateTime{}},
			wantErr: true,
		},
		{
			name:    "bad timestamp",
			item:    &gcal.Event{Id: "5", Start: &gcal.EventDateTime{DateTime: "tomorrow"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := convertToEvent(tt.item, tokyo)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.ID, got.ID)
			assert.Equal(t, tt.want.Summary, got.Summary)
			assert.Equal(t, tt.want.IsAllDay, got.IsAllDay)
			assert.Equal(t, tt.want.IsBusy, got.IsBusy)
			assert.True(t, tt.want.StartTime.Equal(got.StartTime), "start %v != %v", tt.want.StartTime, got.StartTime)
			assert.True(t, tt.want.EndTime.Equal(got.EndTime), "end %v != %v", tt.want.EndTime, got.EndTime)
		})
	}
}

func TestPhaseAt(t *testing.T) {
	e := Event{StartTime: at(10, 0), EndTime: at(11, 0)}

	assert.Equal(t, Upcoming, e.PhaseAt(at(9, 59)))
	assert.Equal(t, Current, e.PhaseAt(at(10, 0)))
	assert.Equal(t, Current, e.PhaseAt(at(10, 59)))
	assert.Equal(t, Past, e.PhaseAt(at(11, 0)))
	assert.Equal(t, 30, e.MinutesUntilStart(at(9, 30)))
	assert.Equal(t, 0, e.MinutesUntilStart(at(10, 30)))
}

func TestAgenda(t *testing.T) {
	events := []Event{
		{ID: "late", StartTime: at(16, 0), EndTime: at(17, 0)},
		{ID: "allday", IsAllDay: true, StartTime: at(0, 0), EndTime: at(0, 0).AddDate(0, 0, 1)},
		{ID: "now", StartTime: at(11, 30), EndTime: at(12, 30)},
		{ID: "cancelled", Status: "cancelled", StartTime: at(13, 0), EndTime: at(14, 0)},
		{ID: "done", StartTime: at(9, 0), EndTime: at(10, 0)},
	}

	agenda := NewAgenda(events)
	assert.Equal(t, 4, agenda.Len())
	require.Len(t, agenda.AllDay, 1)
	assert.Equal(t, "allday", agenda.AllDay[0].ID)

	var timed []string
	for _, e := range agenda.Timed {
		timed = append(timed, e.ID)
	}
	assert.Equal(t, []string{"done", "now", "late"}, timed)

	noon := at(12, 0)
	require.Len(t, agenda.Current(noon), 1)
	assert.Equal(t, "now", agenda.Current(noon)[0].ID)
	require.Len(t, agenda.Upcoming(noon), 1)
	assert.Equal(t, "late", agenda.Upcoming(noon)[0].ID)
}

func TestShortSummaryCountsRunes(t *testing.T) {
	e := Event{Summary: "定例ミーティング（開発チーム・デザインチーム・営業チーム・経理チーム合同）"}
	short := e.GetShortSummary()
	assert.Equal(t, 30, len([]rune(short)))
	assert.Contains(t, short, "...")

	e.Summary = "短い"
	assert.Equal(t, "短い", e.GetShortSummary())
}
