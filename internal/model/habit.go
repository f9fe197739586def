package model

import (
	"fmt"
	"time"
)

type Frequency string

const (
	FrequencyDaily  Frequency = "daily"
	FrequencyWeekly Frequency = "weekly"
	FrequencyCustom Frequency = "custom"
)

func ParseFrequency(raw string) (Frequency, error) {
	switch f := Frequency(raw); f {
	case FrequencyDaily, FrequencyWeekly, FrequencyCustom:
		return f, nil
	default:
		return "", fmt.Errorf("frequency must be one of daily, weekly, custom")
	}
}

type HabitStatus string

const (
	HabitActive   HabitStatus = "active"
	HabitInactive HabitStatus = "inactive"
)

func ParseHabitStatus(raw string) (HabitStatus, error) {
	switch s := HabitStatus(raw); s {
	case HabitActive, HabitInactive:
		return s, nil
	default:
		return "", fmt.Errorf("status must be one of active, inactive")
	}
}

type Habit struct {
	ID             string      `mapstructure:"-" json:"id"`
	Name           string      `mapstructure:"name" json:"name"`
	Goal           string      `mapstructure:"goal" json:"goal"`
	Frequency      Frequency   `mapstructure:"frequency" json:"frequency"`
	Status         HabitStatus `mapstructure:"status" json:"status"`
	Streak         int         `mapstructure:"streak" json:"streak"`
	LongestStreak  int         `mapstructure:"longestStreak" json:"longestStreak"`
	LastMarkedDate Date        `mapstructure:"lastMarkedDate" json:"lastMarkedDate,omitempty"`
	StartDate      Date        `mapstructure:"startDate" json:"startDate,omitempty"`
	CreatedAt      *time.Time  `mapstructure:"createdAt" json:"createdAt,omitempty"`
}

func (h Habit) Active() bool {
	return h.Status == HabitActive
}

// DecodeHabit reads a habit document, rejecting unknown enum values.
func DecodeHabit(doc Document) (Habit, error) {
	var h Habit
	if err := decodeFields(doc.Fields, &h); err != nil {
		return Habit{}, fmt.Errorf("decode habit %s: %w", doc.ID, err)
	}
	h.ID = doc.ID

	status, err := ParseHabitStatus(string(h.Status))
	if err != nil {
		return Habit{}, fmt.Errorf("decode habit %s: %w", doc.ID, err)
	}
	h.Status = status

	if h.Frequency == "" {
		h.Frequency = FrequencyDaily
	}
	if h.Frequency, err = ParseFrequency(string(h.Frequency)); err != nil {
		return Habit{}, fmt.Errorf("decode habit %s: %w", doc.ID, err)
	}

	if h.Streak < 0 {
		h.Streak = 0
	}
	if h.LastMarkedDate, err = ParseDate(string(h.LastMarkedDate)); err != nil {
		return Habit{}, fmt.Errorf("decode habit %s: %w", doc.ID, err)
	}
	return h, nil
}
