package model

import (
	"fmt"
	"time"
)

type FocusMode string

const (
	FocusModeFocus FocusMode = "focus"
	FocusModeBreak FocusMode = "break"
)

func ParseFocusMode(raw string) (FocusMode, error) {
	switch m := FocusMode(raw); m {
	case FocusModeFocus, FocusModeBreak:
		return m, nil
	default:
		return "", fmt.Errorf("mode must be one of focus, break")
	}
}

// Other is the mode a finished countdown hands over to.
func (m FocusMode) Other() FocusMode {
	if m == FocusModeFocus {
		return FocusModeBreak
	}
	return FocusModeFocus
}

type TimerStatus string

const (
	TimerIdle    TimerStatus = "idle"
	TimerRunning TimerStatus = "running"
	TimerPaused  TimerStatus = "paused"
)

type FocusSessionStatus string

const (
	FocusSessionRunning   FocusSessionStatus = "running"
	FocusSessionCompleted FocusSessionStatus = "completed"
	FocusSessionCancelled FocusSessionStatus = "cancelled"
)

const (
	DefaultFocusSeconds = 25 * 60
	DefaultBreakSeconds = 5 * 60

	// FocusHistoryLimit caps the finished sessions kept on the timer.
	FocusHistoryLimit = 50
)

// FocusSession is one countdown from start until it completes or is
// abandoned by a reset, mode switch or adjustment to zero.
type FocusSession struct {
	ID             string             `mapstructure:"id" json:"id"`
	Mode           FocusMode          `mapstructure:"mode" json:"mode"`
	PlannedSeconds int                `mapstructure:"plannedSeconds" json:"plannedSeconds"`
	ActualSeconds  int                `mapstructure:"actualSeconds" json:"actualSeconds"`
	StartedAt      time.Time          `mapstructure:"startedAt" json:"startedAt"`
	EndedAt        *time.Time         `mapstructure:"endedAt" json:"endedAt,omitempty"`
	Status         FocusSessionStatus `mapstructure:"status" json:"status"`
}

// FocusTimer is the stored per-account countdown. While running,
// RemainingSeconds holds the value at StartedAt.
type FocusTimer struct {
	Mode             FocusMode      `mapstructure:"mode" json:"mode"`
	Status           TimerStatus    `mapstructure:"status" json:"status"`
	RemainingSeconds int            `mapstructure:"remainingSeconds" json:"remainingSeconds"`
	FocusSeconds     int            `mapstructure:"focusDurationSeconds" json:"focusDurationSeconds"`
	BreakSeconds     int            `mapstructure:"breakDurationSeconds" json:"breakDurationSeconds"`
	StartedAt        *time.Time     `mapstructure:"startedAt" json:"startedAt,omitempty"`
	Session          *FocusSession  `mapstructure:"session" json:"session,omitempty"`
	History          []FocusSession `mapstructure:"history" json:"history"`
	Version          int            `mapstructure:"version" json:"version"`
	UpdatedAt        *time.Time     `mapstructure:"updatedAt" json:"updatedAt,omitempty"`
}

func DefaultFocusTimer() FocusTimer {
	return FocusTimer{
		Mode:             FocusModeFocus,
		Status:           TimerIdle,
		RemainingSeconds: DefaultFocusSeconds,
		FocusSeconds:     DefaultFocusSeconds,
		BreakSeconds:     DefaultBreakSeconds,
		History:          []FocusSession{},
		Version:          1,
	}
}

// DurationFor returns the configured length of mode.
func (t FocusTimer) DurationFor(mode FocusMode) int {
	if mode == FocusModeBreak {
		return t.BreakSeconds
	}
	return t.FocusSeconds
}

// DecodeFocusTimer reads a timer document. Missing durations fall back to
// the defaults; an unknown mode or status is an error.
func DecodeFocusTimer(doc Document) (FocusTimer, error) {
	t := FocusTimer{}
	if err := decodeFields(doc.Fields, &t); err != nil {
		return FocusTimer{}, fmt.Errorf("decode focus timer %s: %w", doc.ID, err)
	}

	if t.Mode == "" {
		t.Mode = FocusModeFocus
	}
	if _, err := ParseFocusMode(string(t.Mode)); err != nil {
		return FocusTimer{}, fmt.Errorf("decode focus timer %s: %w", doc.ID, err)
	}
	switch t.Status {
	case "":
		t.Status = TimerIdle
	case TimerIdle, TimerRunning, TimerPaused:
	default:
		return FocusTimer{}, fmt.Errorf("decode focus timer %s: unknown status %q", doc.ID, t.Status)
	}
	if t.FocusSeconds <= 0 {
		t.FocusSeconds = DefaultFocusSeconds
	}
	if t.BreakSeconds <= 0 {
		t.BreakSeconds = DefaultBreakSeconds
	}
	if t.Status == TimerRunning && t.StartedAt == nil {
		t.Status = TimerPaused
	}
	if t.History == nil {
		t.History = []FocusSession{}
	}
	return t, nil
}
