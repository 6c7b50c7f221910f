package cache

import (
	"time"

	"github.com/bnema/presence-board/internal/roster"
)

// RosterSnapshot is the last roster successfully read from a sheet. It is
// shown when the sheet cannot be reached.
type RosterSnapshot struct {
	SpreadsheetID string                `json:"spreadsheet_id"`
	SavedAt       time.Time             `json:"saved_at"`
	Members       []string              `json:"members"`
	Statuses      map[string]RosterCell `json:"statuses"`
}

type RosterCell struct {
	Present bool   `json:"present"`
	Comment string `json:"comment,omitempty"`
}

// SetRoster records state as the last known roster of spreadsheetID.
func (c *Cache) SetRoster(spreadsheetID string, members []roster.Member, state roster.State, now time.Time) {
	snap := &RosterSnapshot{
		SpreadsheetID: spreadsheetID,
		SavedAt:       now,
		Members:       make([]string, len(members)),
		Statuses:      make(map[string]RosterCell, len(members)),
	}
	for i, m := range members {
		st := state[m]
		snap.Members[i] = string(m)
		snap.Statuses[string(m)] = RosterCell{Present: st.Present, Comment: st.Comment}
	}

	c.mu.Lock()
	c.Roster = snap
	c.mu.Unlock()
}

// LastRoster returns the stored roster for spreadsheetID completed for
// members. ok is false when nothing was stored for that sheet.
func (c *Cache) LastRoster(spreadsheetID string, members []roster.Member) (state roster.State, savedAt time.Time, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Roster == nil || c.Roster.SpreadsheetID != spreadsheetID {
		return nil, time.Time{}, false
	}

	state = roster.NewState(members)
	for _, m := range members {
		if cell, found := c.Roster.Statuses[string(m)]; found {
			state[m] = roster.Status{Present: cell.Present, Comment: cell.Comment}
		}
	}
	return state, c.Roster.SavedAt, true
}
