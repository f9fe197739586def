package engine

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"trackx/backend/internal/docstore"
	apperrors "trackx/backend/internal/errors"
	"trackx/backend/internal/model"
)

const (
	// DefaultGoal is used when a habit's goal carries no usable number.
	DefaultGoal = 30

	maxProgressHabits = 5
	maxProgressName   = 15
)

// StreakPolicy decides what happens to a streak after missed periods.
type StreakPolicy struct {
	// ResetOnGap restarts the streak at 1 when a daily habit skipped a day
	// or a weekly habit skipped a week. Custom habits are never reset.
	ResetOnGap bool
}

type Outcome string

const (
	OutcomeMarked      Outcome = "marked"
	OutcomeAlreadyDone Outcome = "already_done"
	OutcomeFailed      Outcome = "failed"
	OutcomeNoChange    Outcome = "no_change"
)

// Decision is the result of a habit transition. Patch is nil when nothing
// should be written.
type Decision struct {
	Outcome Outcome
	Patch   model.Fields
}

func (d Decision) Changed() bool {
	return d.Patch != nil
}

// MarkDone advances the streak once per calendar date. A today that is not
// after the last marked date counts as already done, which makes repeated
// calls and retries harmless.
func MarkDone(h model.Habit, today model.Date, policy StreakPolicy) (Decision, error) {
	if today.IsZero() {
		return Decision{}, invalid("today", "today is required")
	}
	if _, err := model.ParseDate(string(today)); err != nil {
		return Decision{}, invalid("today", err.Error())
	}
	if !h.Active() {
		return Decision{}, ErrHabitInactive
	}
	if !h.LastMarkedDate.IsZero() && string(today) <= string(h.LastMarkedDate) {
		return Decision{Outcome: OutcomeAlreadyDone}, nil
	}

	next := h.Streak + 1
	if policy.ResetOnGap && !h.LastMarkedDate.IsZero() {
		gap, err := DaysBetween(h.LastMarkedDate, today)
		if err != nil {
			return Decision{}, err
		}
		if gap > allowedGap(h.Frequency) {
			next = 1
		}
	}

	longest := max(h.LongestStreak, h.Streak, next)
	return Decision{
		Outcome: OutcomeMarked,
		Patch: model.Fields{
			"streak":         next,
			"longestStreak":  longest,
			"lastMarkedDate": string(today),
		},
	}, nil
}

func allowedGap(frequency model.Frequency) int {
	switch frequency {
	case model.FrequencyDaily:
		return 1
	case model.FrequencyWeekly:
		return 7
	default:
		return math.MaxInt
	}
}

// Fail moves an active habit to inactive. The streak is left as it was.
func Fail(h model.Habit) Decision {
	if !h.Active() {
		return Decision{Outcome: OutcomeNoChange}
	}
	return Decision{
		Outcome: OutcomeFailed,
		Patch:   model.Fields{"status": string(model.HabitInactive)},
	}
}

type HabitInput struct {
	Name      string
	Goal      string
	Frequency string
	StartDate string
}

// NewHabit validates input and returns the fields of a fresh habit.
func NewHabit(input HabitInput) (model.Fields, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, invalid("name", "name is required")
	}
	frequency, err := parseFrequency(input.Frequency)
	if err != nil {
		return nil, err
	}
	start, err := model.ParseDate(strings.TrimSpace(input.StartDate))
	if err != nil {
		return nil, invalid("startDate", err.Error())
	}

	fields := model.Fields{
		"name":          name,
		"goal":          strings.TrimSpace(input.Goal),
		"frequency":     string(frequency),
		"status":        string(model.HabitActive),
		"streak":        0,
		"longestStreak": 0,
		"createdAt":     docstore.ServerTimestamp,
	}
	if !start.IsZero() {
		fields["startDate"] = string(start)
	}
	return fields, nil
}

// EditHabit returns the patch for a name, goal or frequency change. Streak
// fields are never touched here.
func EditHabit(h model.Habit, input HabitInput) (model.Fields, error) {
	if !h.Active() {
		return nil, ErrHabitInactive
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, invalid("name", "name is required")
	}
	frequency, err := parseFrequency(input.Frequency)
	if err != nil {
		return nil, err
	}
	return model.Fields{
		"name":      name,
		"goal":      strings.TrimSpace(input.Goal),
		"frequency": string(frequency),
	}, nil
}

func parseFrequency(raw string) (model.Frequency, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return model.FrequencyDaily, nil
	}
	frequency, err := model.ParseFrequency(raw)
	if err != nil {
		return "", invalid("frequency", err.Error())
	}
	return frequency, nil
}

// ParseGoal reads the leading integer of a free-text goal such as
// "30 days". Text without a number yields DefaultGoal and a ParseError;
// zero or negative numbers yield DefaultGoal.
func ParseGoal(raw string) (int, error) {
	text := strings.TrimLeftFunc(raw, unicode.IsSpace)

	end := 0
	if end < len(text) && (text[end] == '+' || text[end] == '-') {
		end++
	}
	digitsStart := end
	for end < len(text) && text[end] >= '0' && text[end] <= '9' {
		end++
	}
	if end == digitsStart {
		return DefaultGoal, &apperrors.ParseError{Field: "goal", Value: raw}
	}

	goal, err := strconv.Atoi(text[:end])
	if err != nil {
		return DefaultGoal, &apperrors.ParseError{Field: "goal", Value: raw, Err: err}
	}
	if goal <= 0 {
		return DefaultGoal, nil
	}
	return goal, nil
}

type HabitProgress struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Streak int    `json:"streak"`
	Goal   int    `json:"goal"`
}

type HabitSummary struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Frequency      model.Frequency `json:"frequency"`
	Streak         int             `json:"streak"`
	LastMarkedDate model.Date      `json:"lastMarkedDate,omitempty"`
}

type HabitStats struct {
	TotalHabits     int             `json:"totalHabits"`
	ActiveHabits    int             `json:"activeHabits"`
	CurrentStreak   int             `json:"currentStreak"`
	LongestStreak   int             `json:"longestStreak"`
	PerHabitSuccess []HabitProgress `json:"perHabitSuccess"`
	ActiveList      []HabitSummary  `json:"activeList"`
	Skipped         int             `json:"skipped"`
}

// ReduceHabitSnapshot computes habit statistics from a full collection in
// arrival order. Documents that do not decode count towards TotalHabits
// and Skipped only.
func ReduceHabitSnapshot(docs []model.Document) HabitStats {
	stats := HabitStats{
		TotalHabits:     len(docs),
		PerHabitSuccess: []HabitProgress{},
		ActiveList:      []HabitSummary{},
	}

	for _, doc := range docs {
		h, err := model.DecodeHabit(doc)
		if err != nil {
			stats.Skipped++
			continue
		}

		stats.LongestStreak = max(stats.LongestStreak, h.LongestStreak, h.Streak)
		if !h.Active() {
			continue
		}

		stats.ActiveHabits++
		stats.CurrentStreak = max(stats.CurrentStreak, h.Streak)
		stats.ActiveList = append(stats.ActiveList, HabitSummary{
			ID:             h.ID,
			Name:           h.Name,
			Frequency:      h.Frequency,
			Streak:         h.Streak,
			LastMarkedDate: h.LastMarkedDate,
		})

		if len(stats.PerHabitSuccess) < maxProgressHabits {
			goal, _ := ParseGoal(h.Goal)
			stats.PerHabitSuccess = append(stats.PerHabitSuccess, HabitProgress{
				ID:     h.ID,
				Name:   truncate(h.Name, maxProgressName),
				Streak: h.Streak,
				Goal:   goal,
			})
		}
	}
	return stats
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
