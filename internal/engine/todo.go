package engine

import (
	"math"
	"strings"
	"time"

	"trackx/backend/internal/docstore"
	"trackx/backend/internal/model"
)

type TrendBucket struct {
	Label      string `json:"label"`
	OffsetDays int    `json:"offsetDays"`
	Completed  int    `json:"completed"`
}

type PriorityHistogram struct {
	High   int `json:"High"`
	Medium int `json:"Medium"`
	Low    int `json:"Low"`
}

type TodoStats struct {
	Total             int                    `json:"total"`
	Completed         int                    `json:"completed"`
	Pending           int                    `json:"pending"`
	CompletionRate    int                    `json:"completionRate"`
	WeeklyTrend       [TrendDays]TrendBucket `json:"weeklyTrend"`
	PriorityHistogram PriorityHistogram      `json:"priorityHistogram"`
	Skipped           int                    `json:"skipped"`
}

// ReduceTodoSnapshot computes todo statistics as of now. WeeklyTrend holds
// completions by whole days elapsed since completedAt, oldest bucket first.
func ReduceTodoSnapshot(docs []model.Document, now time.Time) TodoStats {
	stats := TodoStats{Total: len(docs)}
	for i := range stats.WeeklyTrend {
		offset := TrendDays - 1 - i
		stats.WeeklyTrend[i] = TrendBucket{Label: trendLabel(offset), OffsetDays: offset}
	}

	for _, doc := range docs {
		t, err := model.DecodeTodo(doc)
		if err != nil {
			stats.Skipped++
			continue
		}

		switch t.Priority {
		case model.PriorityHigh:
			stats.PriorityHistogram.High++
		case model.PriorityMedium:
			stats.PriorityHistogram.Medium++
		case model.PriorityLow:
			stats.PriorityHistogram.Low++
		}

		if !t.Completed {
			continue
		}
		stats.Completed++
		if t.CompletedAt == nil {
			continue
		}
		if offset := dayOffset(now, *t.CompletedAt); offset < TrendDays {
			stats.WeeklyTrend[TrendDays-1-offset].Completed++
		}
	}

	stats.Pending = stats.Total - stats.Completed
	stats.CompletionRate = completionRate(stats.Completed, stats.Total)
	return stats
}

func completionRate(completed, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}

// ToggleTodo returns the patch that moves t to the completed state target,
// or nil when t is already there. completedAt is set by the store clock on
// completion and removed on un-completion.
func ToggleTodo(t model.Todo, target bool) model.Fields {
	if t.Completed == target && (target == (t.CompletedAt != nil)) {
		return nil
	}
	if target {
		return model.Fields{"completed": true, "completedAt": docstore.ServerTimestamp}
	}
	return model.Fields{"completed": false, "completedAt": docstore.DeleteField}
}

type TodoInput struct {
	Title    string
	Deadline string
	Priority string
}

// NewTodo validates input for a new, incomplete todo. Priority defaults to
// Medium.
func NewTodo(input TodoInput) (model.Fields, error) {
	fields, err := todoFields(input)
	if err != nil {
		return nil, err
	}
	fields["completed"] = false
	fields["createdAt"] = docstore.ServerTimestamp
	return fields, nil
}

// EditTodo returns the patch for a title, deadline or priority change.
func EditTodo(input TodoInput) (model.Fields, error) {
	return todoFields(input)
}

func todoFields(input TodoInput) (model.Fields, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, invalid("title", "title is required")
	}
	deadline, err := model.ParseDate(strings.TrimSpace(input.Deadline))
	if err != nil {
		return nil, invalid("deadline", err.Error())
	}

	priority := model.PriorityMedium
	if raw := strings.TrimSpace(input.Priority); raw != "" {
		if priority, err = model.ParsePriority(raw); err != nil {
			return nil, invalid("priority", err.Error())
		}
	}

	fields := model.Fields{
		"title":    title,
		"priority": string(priority),
		"deadline": docstore.DeleteField,
	}
	if !deadline.IsZero() {
		fields["deadline"] = string(deadline)
	}
	return fields, nil
}
