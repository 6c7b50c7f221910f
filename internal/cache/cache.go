// Package cache persists the last known board on disk: today's agenda with
// the reminders already sent, and the last roster read from the sheet.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bnema/presence-board/internal/calendar"
)

const fileName = "board.json"

type Cache struct {
	Events   []CacheEntry    `json:"events"`
	LastSync time.Time       `json:"last_sync"`
	Roster   *RosterSnapshot `json:"roster,omitempty"`

	mu       sync.Mutex
	cacheDir string
	filePath string
}

func New(cacheDir string) *Cache {
	if cacheDir == "" {
		if defaultDir, err := GetDefaultCacheDir(); err == nil {
			cacheDir = defaultDir
		} else {
			cacheDir = filepath.Join(os.TempDir(), "presence-board")
		}
	}

	return &Cache{
		Events:   []CacheEntry{},
		cacheDir: cacheDir,
		filePath: filepath.Join(cacheDir, fileName),
	}
}

func (c *Cache) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read cache file: %w", err)
	}

	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to unmarshal cache: %w", err)
	}

	return nil
}

// Save writes the cache atomically so a crash never leaves half a file.
func (c *Cache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.cacheDir, 0750); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache: %w", err)
	}

	tmp, err := os.CreateTemp(c.cacheDir, fileName+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.filePath); err != nil {
		return fmt.Errorf("failed to replace cache file: %w", err)
	}

	return nil
}

// UpdateEvents merges freshly fetched events, keeping the reminder marks of
// events already known, and returns the events seen for the first time.
func (c *Cache) UpdateEvents(events []calendar.Event, now time.Time) []CacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.LastSync = now

	existingEvents := make(map[string]*CacheEntry, len(c.Events))
	for i := range c.Events {
		existingEvents[c.Events[i].key()] = &c.Events[i]
	}

	var newEvents []CacheEntry
	updatedEvents := make([]CacheEntry, 0, len(events))

	for _, event := range events {
		if existing, found := existingEvents[entryKey(event.CalendarID, event.ID)]; found {
			existing.UpdateFromEvent(event, now)
			updatedEvents = append(updatedEvents, *existing)
		} else {
			newEntry := NewCacheEntry(event, now)
			updatedEvents = append(updatedEvents, newEntry)
			newEvents = append(newEvents, newEntry)
		}
	}

	// Keep only events that are not too old (within last 24 hours) or future events
	cutoff := now.Add(-24 * time.Hour)
	filtered := updatedEvents[:0]
	for _, event := range updatedEvents {
		if event.EndTime.After(cutoff) {
			filtered = append(filtered, event)
		}
	}

	c.Events = filtered
	return newEvents
}

// TodaysEvents returns the cached events overlapping the day of now.
func (c *Cache) TodaysEvents(now time.Time) []calendar.Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	endOfDay := startOfDay.AddDate(0, 0, 1)

	var events []calendar.Event
	for _, entry := range c.Events {
		if entry.StartTime.Before(endOfDay) && entry.EndTime.After(startOfDay) {
			events = append(events, entry.ToEvent())
		}
	}
	calendar.SortEvents(events)
	return events
}

// EventsNeedingNotification returns the events due a reminder of the given
// kind, see ReminderKind.
func (c *Cache) EventsNeedingNotification(kind string, now time.Time) []CacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	var due []CacheEntry
	for i := range c.Events {
		if c.Events[i].ShouldNotify(kind, now) {
			due = append(due, c.Events[i])
		}
	}
	return due
}

func (c *Cache) MarkAsNotified(entry CacheEntry, kind string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.Events {
		if c.Events[i].key() == entry.key() {
			c.Events[i].AddNotification(kind)
			return
		}
	}
}

func (c *Cache) EventCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Events)
}

func (c *Cache) GetFilePath() string {
	return c.filePath
}

func GetDefaultCacheDir() (string, error) {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "presence-board"), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".cache", "presence-board"), nil
}
