package model

import (
	"fmt"
	"time"
)

const ClockLayout = "15:04"

type Event struct {
	ID          string     `mapstructure:"-" json:"id"`
	Title       string     `mapstructure:"title" json:"title"`
	Date        time.Time  `mapstructure:"date" json:"date"`
	Time        string     `mapstructure:"time" json:"time"`
	Location    string     `mapstructure:"location" json:"location,omitempty"`
	Description string     `mapstructure:"description" json:"description,omitempty"`
	CreatedAt   *time.Time `mapstructure:"createdAt" json:"createdAt,omitempty"`
}

func ValidateClock(raw string) error {
	if _, err := time.Parse(ClockLayout, raw); err != nil {
		return fmt.Errorf("time must be HH:MM")
	}
	return nil
}

func DecodeEvent(doc Document) (Event, error) {
	var e Event
	if err := decodeFields(doc.Fields, &e); err != nil {
		return Event{}, fmt.Errorf("decode event %s: %w", doc.ID, err)
	}
	e.ID = doc.ID
	if e.Date.IsZero() {
		return Event{}, fmt.Errorf("decode event %s: date is required", doc.ID)
	}
	return e, nil
}
