package integrations

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Gabiro3/blimp2/pkg/integrations/clients"
	"github.com/Gabiro3/blimp2/pkg/types"
)

type calendarListParams struct {
	CalendarID string `param:"calendar_id"`
	TimeMin    string `param:"time_min"`
	TimeMax    string `param:"time_max"`
	MaxResults int    `param:"max_results" validate:"gte=0,lte=250"`
	Query      string `param:"query"`
}

func (p *calendarListParams) setDefaults() { p.CalendarID = "primary"; p.MaxResults = 10 }

type calendarCreateParams struct {
	CalendarID  string   `param:"calendar_id"`
	Summary     string   `param:"summary" validate:"required"`
	StartTime   string   `param:"start_time" validate:"required"`
	EndTime     string   `param:"end_time" validate:"required"`
	Description string   `param:"description"`
	Location    string   `param:"location"`
	Attendees   []string `param:"attendees"`
	Timezone    string   `param:"timezone"`
}

func (p *calendarCreateParams) setDefaults() { p.CalendarID = "primary"; p.Timezone = "UTC" }

type calendarUpdateParams struct {
	EventID     string   `param:"event_id" validate:"required"`
	CalendarID  string   `param:"calendar_id"`
	Summary     string   `param:"summary"`
	StartTime   string   `param:"start_time"`
	EndTime     string   `param:"end_time"`
	Description string   `param:"description"`
	Location    string   `param:"location"`
	Attendees   []string `param:"attendees"`
	Timezone    string   `param:"timezone"`
}

func (p *calendarUpdateParams) setDefaults() { p.CalendarID = "primary"; p.Timezone = "UTC" }

type calendarIDParams struct {
	EventID    string `param:"event_id" validate:"required"`
	CalendarID string `param:"calendar_id"`
}

func (p *calendarIDParams) setDefaults() { p.CalendarID = "primary" }

// eventFields is the writable subset of an event.
type eventFields struct {
	Summary, StartTime, EndTime, Description, Location, Timezone string
	Attendees                                                    []string
}

type calendarWindowParams struct {
	Days       int    `param:"days" validate:"gte=0,lte=365"`
	MaxResults int    `param:"max_results" validate:"gte=0,lte=250"`
	CalendarID string `param:"calendar_id"`
}

func (p *calendarWindowParams) setDefaults() { p.Days = 7; p.MaxResults = 20; p.CalendarID = "primary" }

type calendarHandlers struct {
	client *clients.CalendarClient
	now    func() time.Time
}

func registerCalendar(r *Registry, client *clients.CalendarClient, now func() time.Time) {
	h := &calendarHandlers{client: client, now: now}
	r.Handle(types.AppGoogleCalendar, "list_events", Typed(h.listEvents))
	r.Handle(types.AppGoogleCalendar, "create_event", Typed(h.createEvent))
	r.Handle(types.AppGoogleCalendar, "get_event", Typed(h.getEvent))
	r.Handle(types.AppGoogleCalendar, "update_event", Typed(h.updateEvent))
	r.Handle(types.AppGoogleCalendar, "delete_event", Typed(h.deleteEvent))
	r.Handle(types.AppGoogleCalendar, "get_upcoming_events", Typed(h.upcomingEvents))
	r.Handle(types.AppGoogleCalendar, "summarize_weekly_schedule", Typed(h.weeklySchedule))
	r.Handle(types.AppGoogleCalendar, "get_recent_meetings", Typed(h.recentMeetings))
	r.Handle(types.AppGoogleCalendar, "get_free_busy_times", Typed(h.freeBusy))
}

func (h *calendarHandlers) listEvents(ctx context.Context, call Call, p *calendarListParams) (Payload, error) {
	events, err := h.client.ListEvents(ctx, call.Token(), p.CalendarID, clients.EventQuery{
		TimeMin: p.TimeMin, TimeMax: p.TimeMax, MaxResults: p.MaxResults, Query: p.Query,
	})
	if err != nil {
		return nil, err
	}
	return Payload{"events": items(eventItems(events)), "count": len(events)}, nil
}

func (h *calendarHandlers) createEvent(ctx context.Context, call Call, p *calendarCreateParams) (Payload, error) {
	created, err := h.client.InsertEvent(ctx, call.Token(), p.CalendarID, eventBody(eventFields{
		Summary: p.Summary, StartTime: p.StartTime, EndTime: p.EndTime, Description: p.Description,
		Location: p.Location, Timezone: p.Timezone, Attendees: p.Attendees,
	}))
	if err != nil {
		return nil, err
	}
	return Payload{"event": eventItem(created)}, nil
}

func (h *calendarHandlers) getEvent(ctx context.Context, call Call, p *calendarIDParams) (Payload, error) {
	event, err := h.client.GetEvent(ctx, call.Token(), p.CalendarID, p.EventID)
	if err != nil {
		return nil, err
	}
	return Payload{"event": eventItem(event)}, nil
}

func (h *calendarHandlers) updateEvent(ctx context.Context, call Call, p *calendarUpdateParams) (Payload, error) {
	patch := eventBody(eventFields{
		Summary: p.Summary, StartTime: p.StartTime, EndTime: p.EndTime, Description: p.Description,
		Location: p.Location, Timezone: p.Timezone, Attendees: p.Attendees,
	})
	if len(patch) == 0 {
		return nil, &types.MissingParameterError{App: call.App, Function: call.Function, Params: []string{"summary|start_time|end_time|description|location|attendees"}}
	}
	updated, err := h.client.PatchEvent(ctx, call.Token(), p.CalendarID, p.EventID, patch)
	if err != nil {
		return nil, err
	}
	return Payload{"event": eventItem(updated)}, nil
}

func (h *calendarHandlers) deleteEvent(ctx context.Context, call Call, p *calendarIDParams) (Payload, error) {
	if err := h.client.DeleteEvent(ctx, call.Token(), p.CalendarID, p.EventID); err != nil {
		return nil, err
	}
	return Payload{"event_id": p.EventID}, nil
}

func (h *calendarHandlers) upcomingEvents(ctx context.Context, call Call, p *calendarWindowParams) (Payload, error) {
	now := h.now()
	events, err := h.client.ListEvents(ctx, call.Token(), p.CalendarID, clients.EventQuery{
		TimeMin:    rfc3339(now),
		TimeMax:    rfc3339(now.AddDate(0, 0, p.Days)),
		MaxResults: p.MaxResults,
	})
	if err != nil {
		return nil, err
	}
	return Payload{"upcoming_events": items(eventItems(events)), "count": len(events), "days_ahead": p.Days}, nil
}

// weeklySchedule returns the next seven days of events, each tagged with
// its day, plus per-day counts.
func (h *calendarHandlers) weeklySchedule(ctx context.Context, call Call, p *calendarWindowParams) (Payload, error) {
	now := h.now()
	events, err := h.client.ListEvents(ctx, call.Token(), p.CalendarID, clients.EventQuery{
		TimeMin:    rfc3339(now),
		TimeMax:    rfc3339(now.AddDate(0, 0, 7)),
		MaxResults: 100,
	})
	if err != nil {
		return nil, err
	}

	perDay := map[string]int{}
	schedule := make([]map[string]any, 0, len(events))
	for _, e := range events {
		item := eventItem(e)
		start, _ := item["start"].(string)
		if start == "" {
			continue
		}
		day, _, _ := strings.Cut(start, "T")
		item["day"] = day
		perDay[day]++
		schedule = append(schedule, item)
	}

	days := make([]string, 0, len(perDay))
	for d := range perDay {
		days = append(days, d)
	}
	sort.Strings(days)
	summary := make([]any, 0, len(days))
	for _, d := range days {
		summary = append(summary, map[string]any{"day": d, "events": perDay[d]})
	}

	return Payload{
		"weekly_schedule":  items(schedule),
		"days":             summary,
		"total_events":     len(events),
		"days_with_events": len(days),
	}, nil
}

// recentMeetings returns past events that had attendees.
func (h *calendarHandlers) recentMeetings(ctx context.Context, call Call, p *calendarWindowParams) (Payload, error) {
	now := h.now()
	events, err := h.client.ListEvents(ctx, call.Token(), p.CalendarID, clients.EventQuery{
		TimeMin:    rfc3339(now.AddDate(0, 0, -p.Days)),
		TimeMax:    rfc3339(now),
		MaxResults: p.MaxResults,
	})
	if err != nil {
		return nil, err
	}

	meetings := make([]map[string]any, 0, len(events))
	for _, e := range events {
		if len(list(e, "attendees")) == 0 {
			continue
		}
		meetings = append(meetings, eventItem(e))
	}
	return Payload{"recent_meetings": items(meetings), "count": len(meetings), "days_back": p.Days}, nil
}

func (h *calendarHandlers) freeBusy(ctx context.Context, call Call, p *calendarWindowParams) (Payload, error) {
	now := h.now()
	timeMin, timeMax := rfc3339(now), rfc3339(now.AddDate(0, 0, p.Days))
	busy, err := h.client.FreeBusy(ctx, call.Token(), p.CalendarID, timeMin, timeMax)
	if err != nil {
		return nil, err
	}

	slots := make([]map[string]any, 0, len(busy))
	for i, b := range busy {
		slots = append(slots, map[string]any{
			"id":      fmt.Sprintf("busy_%d", i+1),
			"summary": "Busy",
			"start":   str(b, "start"),
			"end":     str(b, "end"),
		})
	}
	return Payload{
		"busy_times": items(slots),
		"time_min":   timeMin,
		"time_max":   timeMax,
		"busy_count": len(slots),
	}, nil
}

func eventBody(p eventFields) map[string]any {
	body := map[string]any{}
	if p.Summary != "" {
		body["summary"] = p.Summary
	}
	if p.StartTime != "" {
		body["start"] = map[string]any{"dateTime": p.StartTime, "timeZone": p.Timezone}
	}
	if p.EndTime != "" {
		body["end"] = map[string]any{"dateTime": p.EndTime, "timeZone": p.Timezone}
	}
	if p.Description != "" {
		body["description"] = p.Description
	}
	if p.Location != "" {
		body["location"] = p.Location
	}
	if len(p.Attendees) > 0 {
		attendees := make([]map[string]string, 0, len(p.Attendees))
		for _, a := range p.Attendees {
			attendees = append(attendees, map[string]string{"email": strings.TrimSpace(a)})
		}
		body["attendees"] = attendees
	}
	return body
}

func eventItems(events []map[string]any) []map[string]any {
	out := make([]map[string]any, 0, len(events))
	for _, e := range events {
		out = append(out, eventItem(e))
	}
	return out
}

// eventItem flattens an API event; all-day events use the date field.
func eventItem(e map[string]any) map[string]any {
	attendees := make([]any, 0)
	for _, a := range list(e, "attendees") {
		if email := str(a, "email"); email != "" {
			attendees = append(attendees, email)
		}
	}
	return map[string]any{
		"id":          str(e, "id"),
		"summary":     firstNonEmpty(str(e, "summary"), "No Title"),
		"description": str(e, "description"),
		"location":    str(e, "location"),
		"start":       firstNonEmpty(str(sub(e, "start"), "dateTime"), str(sub(e, "start"), "date")),
		"end":         firstNonEmpty(str(sub(e, "end"), "dateTime"), str(sub(e, "end"), "date")),
		"attendees":   attendees,
		"organizer":   str(sub(e, "organizer"), "email"),
		"status":      str(e, "status"),
		"html_link":   str(e, "htmlLink"),
	}
}
