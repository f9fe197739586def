package model

import (
	"fmt"
	"time"
)

type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

func ParsePriority(raw string) (Priority, error) {
	switch p := Priority(raw); p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return p, nil
	default:
		return "", fmt.Errorf("priority must be one of High, Medium, Low")
	}
}

type Todo struct {
	ID          string     `mapstructure:"-" json:"id"`
	Title       string     `mapstructure:"title" json:"title"`
	Deadline    Date       `mapstructure:"deadline" json:"deadline,omitempty"`
	Priority    Priority   `mapstructure:"priority" json:"priority,omitempty"`
	Completed   bool       `mapstructure:"completed" json:"completed"`
	CompletedAt *time.Time `mapstructure:"completedAt" json:"completedAt,omitempty"`
	CreatedAt   *time.Time `mapstructure:"createdAt" json:"createdAt,omitempty"`
}

// DecodeTodo reads a todo document. Priority is optional: a missing or
// unrecognized value decodes to the empty Priority.
func DecodeTodo(doc Document) (Todo, error) {
	var t Todo
	if err := decodeFields(doc.Fields, &t); err != nil {
		return Todo{}, fmt.Errorf("decode todo %s: %w", doc.ID, err)
	}
	t.ID = doc.ID

	if p, err := ParsePriority(string(t.Priority)); err == nil {
		t.Priority = p
	} else {
		t.Priority = ""
	}
	if !t.Completed {
		t.CompletedAt = nil
	}
	return t, nil
}
