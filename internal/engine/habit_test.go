package engine

import (
	"errors"
	"reflect"
	"testing"

	apperrors "trackx/backend/internal/errors"
	"trackx/backend/internal/model"
)

func activeHabit(streak int, last model.Date) model.Habit {
	return model.Habit{
		ID:             "h1",
		Name:           "Read",
		Frequency:      model.FrequencyDaily,
		Status:         model.HabitActive,
		Streak:         streak,
		LongestStreak:  streak,
		LastMarkedDate: last,
	}
}

// applyHabit folds a decision patch back into the habit, as a store round
// trip would.
func applyHabit(h model.Habit, d Decision) model.Habit {
	if v, ok := d.Patch["streak"].(int); ok {
		h.Streak = v
	}
	if v, ok := d.Patch["longestStreak"].(int); ok {
		h.LongestStreak = v
	}
	if v, ok := d.Patch["lastMarkedDate"].(string); ok {
		h.LastMarkedDate = model.Date(v)
	}
	if v, ok := d.Patch["status"].(string); ok {
		h.Status = model.HabitStatus(v)
	}
	return h
}

func TestMarkDoneScenario(t *testing.T) {
	h := activeHabit(4, "2024-03-01")
	keep := StreakPolicy{}

	same, err := MarkDone(h, "2024-03-01", keep)
	if err != nil {
		t.Fatalf("mark done: %v", err)
	}
	if same.Outcome != OutcomeAlreadyDone || same.Changed() {
		t.Fatalf("expected already done without patch, got %+v", same)
	}

	next, err := MarkDone(h, "2024-03-02", keep)
	if err != nil {
		t.Fatalf("mark done: %v", err)
	}
	if next.Outcome != OutcomeMarked {
		t.Fatalf("expected marked, got %s", next.Outcome)
	}
	h = applyHabit(h, next)
	if h.Streak != 5 || h.LastMarkedDate != "2024-03-02" {
		t.Fatalf("expected streak 5 on 2024-03-02, got %d on %s", h.Streak, h.LastMarkedDate)
	}
}

func TestMarkDoneIsIdempotentPerDay(t *testing.T) {
	h := activeHabit(0, "")
	for i := 0; i < 3; i++ {
		d, err := MarkDone(h, "2024-05-10", StreakPolicy{ResetOnGap: true})
		if err != nil {
			t.Fatalf("mark done: %v", err)
		}
		h = applyHabit(h, d)
	}
	if h.Streak != 1 {
		t.Fatalf("expected streak 1 after repeated calls, got %d", h.Streak)
	}
}

func TestMarkDoneGapPolicy(t *testing.T) {
	tests := []struct {
		name       string
		frequency  model.Frequency
		last       model.Date
		today      model.Date
		policy     StreakPolicy
		wantStreak int
	}{
		{name: "daily consecutive", frequency: model.FrequencyDaily, last: "2024-03-01", today: "2024-03-02", policy: StreakPolicy{ResetOnGap: true}, wantStreak: 5},
		{name: "daily gap resets", frequency: model.FrequencyDaily, last: "2024-03-01", today: "2024-03-10", policy: StreakPolicy{ResetOnGap: true}, wantStreak: 1},
		{name: "daily gap kept", frequency: model.FrequencyDaily, last: "2024-03-01", today: "2024-03-10", policy: StreakPolicy{}, wantStreak: 5},
		{name: "weekly within week", frequency: model.FrequencyWeekly, last: "2024-03-01", today: "2024-03-08", policy: StreakPolicy{ResetOnGap: true}, wantStreak: 5},
		{name: "weekly gap resets", frequency: model.FrequencyWeekly, last: "2024-03-01", today: "2024-03-09", policy: StreakPolicy{ResetOnGap: true}, wantStreak: 1},
		{name: "custom never resets", frequency: model.FrequencyCustom, last: "2023-01-01", today: "2024-03-09", policy: StreakPolicy{ResetOnGap: true}, wantStreak: 5},
		{name: "across month end", frequency: model.FrequencyDaily, last: "2024-02-29", today: "2024-03-01", policy: StreakPolicy{ResetOnGap: true}, wantStreak: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := activeHabit(4, tt.last)
			h.Frequency = tt.frequency
			d, err := MarkDone(h, tt.today, tt.policy)
			if err != nil {
				t.Fatalf("mark done: %v", err)
			}
			if got := d.Patch["streak"]; got != tt.wantStreak {
				t.Fatalf("expected streak %d, got %v", tt.wantStreak, got)
			}
		})
	}
}

func TestLongestStreakNeverDecreases(t *testing.T) {
	h := activeHabit(9, "2024-03-01")
	h.LongestStreak = 12

	d, err := MarkDone(h, "2024-03-20", StreakPolicy{ResetOnGap: true})
	if err != nil {
		t.Fatalf("mark done: %v", err)
	}
	h = applyHabit(h, d)
	if h.Streak != 1 || h.LongestStreak != 12 {
		t.Fatalf("expected streak 1 longest 12, got %d/%d", h.Streak, h.LongestStreak)
	}

	h = activeHabit(12, "2024-03-01")
	h.LongestStreak = 12
	d, _ = MarkDone(h, "2024-03-02", StreakPolicy{ResetOnGap: true})
	h = applyHabit(h, d)
	if h.LongestStreak != 13 {
		t.Fatalf("expected longest 13, got %d", h.LongestStreak)
	}
}

func TestMarkDoneRejects(t *testing.T) {
	inactive := activeHabit(3, "2024-03-01")
	inactive.Status = model.HabitInactive
	if _, err := MarkDone(inactive, "2024-03-02", StreakPolicy{}); !errors.Is(err, ErrHabitInactive) {
		t.Fatalf("expected ErrHabitInactive, got %v", err)
	}

	var validation *ValidationError
	if _, err := MarkDone(activeHabit(0, ""), "03/02/2024", StreakPolicy{}); !errors.As(err, &validation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	past, err := MarkDone(activeHabit(3, "2024-03-05"), "2024-03-04", StreakPolicy{})
	if err != nil || past.Outcome != OutcomeAlreadyDone {
		t.Fatalf("expected earlier date to count as done, got %+v %v", past, err)
	}
}

func TestFail(t *testing.T) {
	h := activeHabit(7, "2024-03-01")
	d := Fail(h)
	if d.Outcome != OutcomeFailed || d.Patch["status"] != "inactive" {
		t.Fatalf("unexpected fail decision %+v", d)
	}
	if _, ok := d.Patch["streak"]; ok {
		t.Fatal("fail must not touch streak")
	}

	h = applyHabit(h, d)
	again := Fail(h)
	if again.Outcome != OutcomeNoChange || again.Changed() {
		t.Fatalf("expected no-op on inactive habit, got %+v", again)
	}
	if _, err := EditHabit(h, HabitInput{Name: "x"}); !errors.Is(err, ErrHabitInactive) {
		t.Fatalf("expected edit to be rejected, got %v", err)
	}
}

func TestParseGoal(t *testing.T) {
	tests := []struct {
		raw       string
		want      int
		wantError bool
	}{
		{raw: "30 days", want: 30},
		{raw: "  12", want: 12},
		{raw: "100 pages a week", want: 100},
		{raw: "+5", want: 5},
		{raw: "0", want: DefaultGoal},
		{raw: "-3", want: DefaultGoal},
		{raw: "every day", want: DefaultGoal, wantError: true},
		{raw: "", want: DefaultGoal, wantError: true},
		{raw: "99999999999999999999999", want: DefaultGoal, wantError: true},
	}

	for _, tt := range tests {
		got, err := ParseGoal(tt.raw)
		if got != tt.want {
			t.Errorf("ParseGoal(%q) = %d, want %d", tt.raw, got, tt.want)
		}
		var parseErr *apperrors.ParseError
		if tt.wantError != errors.As(err, &parseErr) {
			t.Errorf("ParseGoal(%q) error = %v, wantError %v", tt.raw, err, tt.wantError)
		}
	}
}

func habitDoc(id string, fields model.Fields) model.Document {
	return model.Document{ID: id, Path: "habits/u1/userHabits/" + id, Fields: fields}
}

func TestReduceHabitSnapshotEmpty(t *testing.T) {
	stats := ReduceHabitSnapshot(nil)
	want := HabitStats{PerHabitSuccess: []HabitProgress{}, ActiveList: []HabitSummary{}}
	if !reflect.DeepEqual(stats, want) {
		t.Fatalf("expected %+v, got %+v", want, stats)
	}
}

func TestReduceHabitSnapshot(t *testing.T) {
	docs := []model.Document{
		habitDoc("a", model.Fields{"name": "Meditation every morning", "goal": "60 days", "status": "active", "streak": float64(3)}),
		habitDoc("b", model.Fields{"name": "Run", "goal": "often", "status": "inactive", "streak": float64(20), "longestStreak": float64(25)}),
		habitDoc("c", model.Fields{"name": "Read", "goal": "10", "status": "active", "streak": float64(8)}),
		habitDoc("d", model.Fields{"name": "Broken", "status": "paused"}),
		habitDoc("e", model.Fields{"name": "Water", "status": "active", "streak": float64(1), "frequency": "weekly"}),
		habitDoc("f", model.Fields{"name": "Stretch", "status": "active"}),
		habitDoc("g", model.Fields{"name": "Journal", "status": "active", "streak": float64(2)}),
		habitDoc("h", model.Fields{"name": "Sixth", "status": "active", "streak": float64(30)}),
	}

	stats := ReduceHabitSnapshot(docs)
	if stats.TotalHabits != 8 || stats.ActiveHabits != 6 || stats.Skipped != 1 {
		t.Fatalf("unexpected counts %+v", stats)
	}
	if stats.CurrentStreak != 30 {
		t.Fatalf("expected current streak 30, got %d", stats.CurrentStreak)
	}
	if stats.LongestStreak != 30 {
		t.Fatalf("expected longest streak 30, got %d", stats.LongestStreak)
	}
	if len(stats.PerHabitSuccess) != 5 {
		t.Fatalf("expected 5 progress entries, got %d", len(stats.PerHabitSuccess))
	}

	wantIDs := []string{"a", "c", "e", "f", "g"}
	for i, id := range wantIDs {
		if stats.PerHabitSuccess[i].ID != id {
			t.Fatalf("expected arrival order %v, got %+v", wantIDs, stats.PerHabitSuccess)
		}
	}
	first := stats.PerHabitSuccess[0]
	if first.Name != "Meditation ever" || first.Goal != 60 {
		t.Fatalf("unexpected first entry %+v", first)
	}
	if stats.PerHabitSuccess[1].Goal != 10 || stats.PerHabitSuccess[2].Goal != DefaultGoal {
		t.Fatalf("unexpected goals %+v", stats.PerHabitSuccess)
	}
	if len(stats.ActiveList) != 6 {
		t.Fatalf("expected 6 active habits listed, got %d", len(stats.ActiveList))
	}
}

func TestReduceHabitSnapshotKeepsHistoricLongest(t *testing.T) {
	docs := []model.Document{
		habitDoc("a", model.Fields{"status": "active", "streak": float64(2), "longestStreak": float64(40)}),
	}
	stats := ReduceHabitSnapshot(docs)
	if stats.CurrentStreak != 2 || stats.LongestStreak != 40 {
		t.Fatalf("expected 2/40, got %d/%d", stats.CurrentStreak, stats.LongestStreak)
	}
}

func TestNewHabit(t *testing.T) {
	fields, err := NewHabit(HabitInput{Name: " Walk ", Goal: "30 days"})
	if err != nil {
		t.Fatalf("new habit: %v", err)
	}
	if fields["name"] != "Walk" || fields["status"] != "active" || fields["streak"] != 0 || fields["frequency"] != "daily" {
		t.Fatalf("unexpected fields %v", fields)
	}

	tests := []HabitInput{
		{Name: ""},
		{Name: "x", Frequency: "hourly"},
		{Name: "x", StartDate: "tomorrow"},
	}
	for _, input := range tests {
		var validation *ValidationError
		if _, err := NewHabit(input); !errors.As(err, &validation) {
			t.Errorf("NewHabit(%+v) expected validation error, got %v", input, err)
		}
	}
}
