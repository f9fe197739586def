package engine

import (
	"slices"
	"strings"
	"time"

	"trackx/backend/internal/docstore"
	"trackx/backend/internal/model"
)

// EventsOn returns the events whose date falls on day in loc, ordered by
// time of day. It is a linear scan.
func EventsOn(events []model.Event, day model.Date, loc *time.Location) []model.Event {
	matched := make([]model.Event, 0)
	for _, e := range events {
		if model.DateOf(e.Date.In(loc)) == day {
			matched = append(matched, e)
		}
	}
	slices.SortStableFunc(matched, func(a, b model.Event) int {
		return strings.Compare(a.Time, b.Time)
	})
	return matched
}

type EventStats struct {
	TotalEvents int           `json:"totalEvents"`
	Today       []model.Event `json:"today"`
	Skipped     int           `json:"skipped"`
}

func ReduceEventSnapshot(docs []model.Document, now time.Time, loc *time.Location) EventStats {
	events, skipped := DecodeEvents(docs)
	return EventStats{
		TotalEvents: len(docs),
		Today:       EventsOn(events, model.DateOf(now.In(loc)), loc),
		Skipped:     skipped,
	}
}

// DecodeEvents decodes docs, dropping the ones that are malformed.
func DecodeEvents(docs []model.Document) ([]model.Event, int) {
	events := make([]model.Event, 0, len(docs))
	skipped := 0
	for _, doc := range docs {
		e, err := model.DecodeEvent(doc)
		if err != nil {
			skipped++
			continue
		}
		events = append(events, e)
	}
	return events, skipped
}

type EventInput struct {
	Title       string
	Date        string
	Time        string
	Location    string
	Description string
}

// NewEvent validates input. Date is a calendar date in loc; it is stored as
// the instant of midnight there.
func NewEvent(input EventInput, loc *time.Location) (model.Fields, error) {
	fields, err := eventFields(input, loc)
	if err != nil {
		return nil, err
	}
	fields["createdAt"] = docstore.ServerTimestamp
	return fields, nil
}

func EditEvent(input EventInput, loc *time.Location) (model.Fields, error) {
	return eventFields(input, loc)
}

func eventFields(input EventInput, loc *time.Location) (model.Fields, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, invalid("title", "title is required")
	}
	date, err := model.ParseDate(strings.TrimSpace(input.Date))
	if err != nil {
		return nil, invalid("date", err.Error())
	}
	if date.IsZero() {
		return nil, invalid("date", "date is required")
	}
	midnight, err := date.Time(loc)
	if err != nil {
		return nil, invalid("date", err.Error())
	}
	clock := strings.TrimSpace(input.Time)
	if clock != "" {
		if err := model.ValidateClock(clock); err != nil {
			return nil, invalid("time", err.Error())
		}
	}

	return model.Fields{
		"title":       title,
		"date":        midnight.UTC().Format(time.RFC3339Nano),
		"time":        clock,
		"location":    strings.TrimSpace(input.Location),
		"description": input.Description,
	}, nil
}
