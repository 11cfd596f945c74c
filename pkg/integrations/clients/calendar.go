package clients

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

const CalendarAPIBase = "https://www.googleapis.com/calendar/v3"

// EventQuery filters a calendar event listing.
type EventQuery struct {
	TimeMin    string
	TimeMax    string
	MaxResults int
	Query      string
}

// CalendarClient wraps the Google Calendar v3 REST API.
type CalendarClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewCalendarClient() *CalendarClient {
	return &CalendarClient{BaseURL: CalendarAPIBase, HTTPClient: newHTTPClient()}
}

func (c *CalendarClient) request(ctx context.Context, token, method, path string, query url.Values, body, out any) error {
	return doJSON(ctx, c.HTTPClient, "calendar", method, c.BaseURL+path, query, body, bearer(token), out)
}

func eventsPath(calendarID string) string {
	if calendarID == "" {
		calendarID = "primary"
	}
	return "/calendars/" + url.PathEscape(calendarID) + "/events"
}

// ListEvents returns single (expanded) events ordered by start time.
func (c *CalendarClient) ListEvents(ctx context.Context, token, calendarID string, q EventQuery) ([]map[string]any, error) {
	params := url.Values{}
	params.Set("singleEvents", "true")
	params.Set("orderBy", "startTime")
	if q.MaxResults > 0 {
		params.Set("maxResults", strconv.Itoa(q.MaxResults))
	}
	if q.TimeMin != "" {
		params.Set("timeMin", q.TimeMin)
	}
	if q.TimeMax != "" {
		params.Set("timeMax", q.TimeMax)
	}
	if q.Query != "" {
		params.Set("q", q.Query)
	}

	var result map[string]any
	if err := c.request(ctx, token, http.MethodGet, eventsPath(calendarID), params, nil, &result); err != nil {
		return nil, err
	}
	return getSlice(result, "items"), nil
}

func (c *CalendarClient) GetEvent(ctx context.Context, token, calendarID, eventID string) (map[string]any, error) {
	var result map[string]any
	err := c.request(ctx, token, http.MethodGet, eventsPath(calendarID)+"/"+url.PathEscape(eventID), nil, nil, &result)
	return result, err
}

func (c *CalendarClient) InsertEvent(ctx context.Context, token, calendarID string, event map[string]any) (map[string]any, error) {
	var result map[string]any
	err := c.request(ctx, token, http.MethodPost, eventsPath(calendarID), nil, event, &result)
	return result, err
}

// PatchEvent updates only the fields present in patch.
func (c *CalendarClient) PatchEvent(ctx context.Context, token, calendarID, eventID string, patch map[string]any) (map[string]any, error) {
	var result map[string]any
	err := c.request(ctx, token, http.MethodPatch, eventsPath(calendarID)+"/"+url.PathEscape(eventID), nil, patch, &result)
	return result, err
}

func (c *CalendarClient) DeleteEvent(ctx context.Context, token, calendarID, eventID string) error {
	return c.request(ctx, token, http.MethodDelete, eventsPath(calendarID)+"/"+url.PathEscape(eventID), nil, nil, nil)
}

// FreeBusy returns the busy intervals of one calendar.
func (c *CalendarClient) FreeBusy(ctx context.Context, token, calendarID, timeMin, timeMax string) ([]map[string]any, error) {
	if calendarID == "" {
		calendarID = "primary"
	}
	body := map[string]any{
		"timeMin": timeMin,
		"timeMax": timeMax,
		"items":   []map[string]string{{"id": calendarID}},
	}
	var result map[string]any
	if err := c.request(ctx, token, http.MethodPost, "/freeBusy", nil, body, &result); err != nil {
		return nil, err
	}
	cal := getMap(getMap(result, "calendars"), calendarID)
	if cal == nil {
		return []map[string]any{}, nil
	}
	return getSlice(cal, "busy"), nil
}
