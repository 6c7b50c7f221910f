// Package calendar reads today's agenda from Google Calendar.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/bnema/presence-board/internal/config"
	"github.com/bnema/presence-board/internal/logger"
)

// ErrNotAuthorized is returned when Google rejects the credentials.
var ErrNotAuthorized = errors.New("calendar: not authorized")

// maxParallel bounds concurrent calendar requests.
const maxParallel = 4

type Client struct {
	service  *gcal.Service
	config   config.CalendarConfig
	location *time.Location
}

// NewClient creates a calendar client sending requests through httpClient,
// which is expected to add the OAuth credentials.
func NewClient(ctx context.Context, httpClient *http.Client, cfg config.CalendarConfig, opts ...option.ClientOption) (*Client, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	srv, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	return &Client{
		service:  srv,
		config:   cfg,
		location: time.Local,
	}, nil
}

// SetLocation sets the zone used for day boundaries and all-day dates.
func (c *Client) SetLocation(loc *time.Location) {
	c.location = loc
}

// ListCalendars retrieves all calendars accessible by the authenticated user
func (c *Client) ListCalendars(ctx context.Context) ([]*gcal.CalendarListEntry, error) {
	calendarList, err := c.service.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve calendar list: %w", classify(err))
	}
	return calendarList.Items, nil
}

// TodaysEvents fetches the events of the day containing now from every
// configured calendar, sorted by start time.
func (c *Client) TodaysEvents(ctx context.Context, now time.Time) ([]Event, error) {
	now = now.In(c.location)
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, c.location)
	endOfDay := startOfDay.AddDate(0, 0, 1).Add(-time.Nanosecond)

	calendarIDs, err := c.calendarIDs(ctx)
	if err != nil {
		return nil, err
	}

	logger.Info("fetching today's events", "calendar_count", len(calendarIDs))
	events, err := c.EventsInRange(ctx, startOfDay, endOfDay, calendarIDs)
	if err != nil {
		return nil, err
	}
	SortEvents(events)
	return events, nil
}

func (c *Client) calendarIDs(ctx context.Context) ([]string, error) {
	if c.config.PrimaryOnly {
		return []string{"primary"}, nil
	}
	if len(c.config.CalendarIDs) > 0 {
		return c.config.CalendarIDs, nil
	}

	// Auto-discover all calendars
	calendars, err := c.ListCalendars(ctx)
	if err != nil {
		if errors.Is(err, ErrNotAuthorized) {
			return nil, err
		}
		logger.Warn("failed to list calendars, falling back to primary", "error", err)
		return []string{"primary"}, nil
	}
	ids := make([]string, 0, len(calendars))
	for _, cal := range calendars {
		ids = append(ids, cal.Id)
		logger.Debug("discovered calendar", "id", cal.Id, "summary", cal.Summary)
	}
	return ids, nil
}

// EventsInRange fetches the calendars in parallel. A calendar that cannot be
// read is skipped unless the credentials were rejected or every calendar
// failed.
func (c *Client) EventsInRange(ctx context.Context, timeMin, timeMax time.Time, calendarIDs []string) ([]Event, error) {
	if len(calendarIDs) == 0 {
		calendarIDs = []string{"primary"}
	}

	results := make([][]Event, len(calendarIDs))
	var (
		mu       sync.Mutex
		failures []error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)
	for i, calID := range calendarIDs {
		i, calID := i, calID
		g.Go(func() error {
			events, err := c.fetch(gctx, calID, timeMin, timeMax)
			if err != nil {
				if errors.Is(err, ErrNotAuthorized) {
					return err
				}
				logger.Warn("failed to fetch events from calendar", "calendar_id", calID, "error", err)
				mu.Lock()
				failures = append(failures, err)
				mu.Unlock()
				return nil
			}
			results[i] = events
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(failures) == len(calendarIDs) {
		return nil, errors.Join(failures...)
	}

	var all []Event
	for _, events := range results {
		all = append(all, events...)
	}
	logger.Info("total events fetched", "total_count", len(all), "calendar_count", len(calendarIDs))
	return all, nil
}

func (c *Client) fetch(ctx context.Context, calID string, timeMin, timeMax time.Time) ([]Event, error) {
	logger.Debug("fetching events from calendar", "calendar_id", calID, "time_min", timeMin, "time_max", timeMax)

	resp, err := c.service.Events.List(calID).
		TimeMin(timeMin.Format(time.RFC3339)).
		TimeMax(timeMax.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("calendar %q: %w", calID, classify(err))
	}

	events := make([]Event, 0, len(resp.Items))
	for _, item := range resp.Items {
		event, err := convertToEvent(item, c.location)
		if err != nil {
			logger.Debug("skipping invalid event", "event_id", item.Id, "error", err)
			continue
		}
		event.CalendarID = calID
		events = append(events, event)
	}
	return events, nil
}

func classify(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusUnauthorized {
		return fmt.Errorf("%w: %s", ErrNotAuthorized, apiErr.Message)
	}
	return err
}
