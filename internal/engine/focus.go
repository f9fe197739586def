package engine

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"

	"trackx/backend/internal/docstore"
	"trackx/backend/internal/model"
)

// ErrTimerRunning rejects adjustments while the countdown is live.
var ErrTimerRunning = errors.New("timer is running")

const (
	// MaxAdjustMinutes bounds a single adjustment in either direction.
	MaxAdjustMinutes = 180
	// MinTimerSeconds and MaxTimerSeconds bound configured durations and the
	// remaining time.
	MinTimerSeconds = 60
	MaxTimerSeconds = 4 * 60 * 60
)

// VersionConflict is returned when a command was issued against an older
// version of the timer than the stored one.
type VersionConflict struct {
	Timer model.FocusTimer
}

func (e *VersionConflict) Error() string {
	return "timer changed on another device"
}

// FocusOp changes a settled timer and reports whether it did.
type FocusOp func(t model.FocusTimer, now time.Time) (model.FocusTimer, bool, error)

// ApplyFocus settles t as of now, checks baseVersion against it, and runs
// op. A baseVersion of 0 skips the check. Changed is true when anything,
// including settling, has to be written; the version then moves up by one.
func ApplyFocus(t model.FocusTimer, baseVersion int, op FocusOp, now time.Time) (model.FocusTimer, bool, error) {
	t, settled := SettleTimer(t, now)
	if baseVersion > 0 && baseVersion != t.Version {
		return model.FocusTimer{}, false, &VersionConflict{Timer: t}
	}

	next, changed, err := op(t, now)
	if err != nil {
		return model.FocusTimer{}, false, err
	}
	if !changed && !settled {
		return t, false, nil
	}
	next.Version = t.Version + 1
	at := now
	next.UpdatedAt = &at
	return next, true, nil
}

// RemainingAt returns the seconds left on t at now, never below zero.
func RemainingAt(t model.FocusTimer, now time.Time) int {
	remaining := t.RemainingSeconds
	if t.Status == model.TimerRunning && t.StartedAt != nil {
		remaining -= int(now.Sub(*t.StartedAt) / time.Second)
	}
	if remaining < 0 {
		return 0
	}
	return remaining
}

// SettleTimer completes a running countdown that has reached zero by now:
// the session is recorded as completed at the moment it ran out and the
// timer moves to the other mode, idle. It reports whether t changed.
func SettleTimer(t model.FocusTimer, now time.Time) (model.FocusTimer, bool) {
	if t.Status != model.TimerRunning || t.StartedAt == nil || RemainingAt(t, now) > 0 {
		return t, false
	}
	end := t.StartedAt.Add(time.Duration(t.RemainingSeconds) * time.Second)
	t = finishSession(t, 0, model.FocusSessionCompleted, end)
	return idleIn(t, t.Mode.Other()), true
}

func StartTimer(t model.FocusTimer, now time.Time) (model.FocusTimer, bool, error) {
	if t.Status == model.TimerRunning {
		return t, false, nil
	}
	if t.Session == nil {
		t.Session = &model.FocusSession{
			ID:             uuid.NewString(),
			Mode:           t.Mode,
			PlannedSeconds: t.RemainingSeconds,
			StartedAt:      now,
			Status:         model.FocusSessionRunning,
		}
	}
	at := now
	t.Status = model.TimerRunning
	t.StartedAt = &at
	return t, true, nil
}

func PauseTimer(t model.FocusTimer, now time.Time) (model.FocusTimer, bool, error) {
	if t.Status != model.TimerRunning {
		return t, false, nil
	}
	t.RemainingSeconds = RemainingAt(t, now)
	t.Status = model.TimerPaused
	t.StartedAt = nil
	return t, true, nil
}

// ResetTimer abandons the current session and refills the countdown for
// the current mode.
func ResetTimer(t model.FocusTimer, now time.Time) (model.FocusTimer, bool, error) {
	if t.Status == model.TimerIdle && t.Session == nil && t.RemainingSeconds == t.DurationFor(t.Mode) {
		return t, false, nil
	}
	t = finishSession(t, RemainingAt(t, now), model.FocusSessionCancelled, now)
	return idleIn(t, t.Mode), true, nil
}

// SwitchMode returns an op that abandons the current session and idles in
// mode with its full duration.
func SwitchMode(mode model.FocusMode) FocusOp {
	return func(t model.FocusTimer, now time.Time) (model.FocusTimer, bool, error) {
		if t.Mode == mode {
			return ResetTimer(t, now)
		}
		t = finishSession(t, RemainingAt(t, now), model.FocusSessionCancelled, now)
		return idleIn(t, mode), true, nil
	}
}

// AdjustTimer returns an op that moves the remaining time by minutes while
// the timer is not running. Reaching zero ends the countdown the way
// running out would, without counting it as completed.
func AdjustTimer(minutes int) FocusOp {
	return func(t model.FocusTimer, now time.Time) (model.FocusTimer, bool, error) {
		if minutes == 0 || minutes < -MaxAdjustMinutes || minutes > MaxAdjustMinutes {
			return t, false, invalid("minutes", "minutes must be a non-zero adjustment of at most 180")
		}
		if t.Status == model.TimerRunning {
			return t, false, ErrTimerRunning
		}

		remaining := t.RemainingSeconds + minutes*60
		switch {
		case remaining <= 0:
			t = finishSession(t, t.RemainingSeconds, model.FocusSessionCancelled, now)
			return idleIn(t, t.Mode.Other()), true, nil
		case remaining > MaxTimerSeconds:
			remaining = MaxTimerSeconds
		}
		if remaining == t.RemainingSeconds {
			return t, false, nil
		}
		t.RemainingSeconds = remaining
		return t, true, nil
	}
}

// UpdateFocusSettings returns an op that sets both durations. An idle
// timer picks up the new length straight away; a started one keeps its
// countdown.
func UpdateFocusSettings(focusSeconds, breakSeconds int) FocusOp {
	return func(t model.FocusTimer, now time.Time) (model.FocusTimer, bool, error) {
		if focusSeconds < MinTimerSeconds || focusSeconds > MaxTimerSeconds {
			return t, false, invalid("focus_duration", "focusDurationSeconds must be between 60 and 14400")
		}
		if breakSeconds < MinTimerSeconds || breakSeconds > MaxTimerSeconds {
			return t, false, invalid("break_duration", "breakDurationSeconds must be between 60 and 14400")
		}
		if t.FocusSeconds == focusSeconds && t.BreakSeconds == breakSeconds {
			return t, false, nil
		}
		t.FocusSeconds = focusSeconds
		t.BreakSeconds = breakSeconds
		if t.Status == model.TimerIdle {
			t.RemainingSeconds = t.DurationFor(t.Mode)
		}
		return t, true, nil
	}
}

func idleIn(t model.FocusTimer, mode model.FocusMode) model.FocusTimer {
	t.Mode = mode
	t.Status = model.TimerIdle
	t.StartedAt = nil
	t.RemainingSeconds = t.DurationFor(mode)
	return t
}

// finishSession closes the open session, if any, and appends it to the
// history. The history slice is copied, never appended in place.
func finishSession(t model.FocusTimer, remaining int, status model.FocusSessionStatus, end time.Time) model.FocusTimer {
	if t.Session == nil {
		return t
	}
	session := *t.Session
	actual := session.PlannedSeconds - remaining
	if actual < 0 {
		actual = 0
	}
	if actual > session.PlannedSeconds {
		actual = session.PlannedSeconds
	}
	at := end
	session.ActualSeconds = actual
	session.EndedAt = &at
	session.Status = status

	history := make([]model.FocusSession, 0, len(t.History)+1)
	history = append(history, t.History...)
	history = append(history, session)
	if len(history) > model.FocusHistoryLimit {
		history = history[len(history)-model.FocusHistoryLimit:]
	}
	t.History = history
	t.Session = nil
	return t
}

// FocusFields is the full stored form of t. Absent optional values are
// removed from the document.
func FocusFields(t model.FocusTimer) model.Fields {
	history := make([]any, 0, len(t.History))
	for _, s := range t.History {
		history = append(history, sessionFields(s))
	}
	fields := model.Fields{
		"mode":                 string(t.Mode),
		"status":               string(t.Status),
		"remainingSeconds":     t.RemainingSeconds,
		"focusDurationSeconds": t.FocusSeconds,
		"breakDurationSeconds": t.BreakSeconds,
		"history":              history,
		"version":              t.Version,
		"startedAt":            docstore.DeleteField,
		"session":              docstore.DeleteField,
		"updatedAt":            docstore.ServerTimestamp,
	}
	if t.StartedAt != nil {
		fields["startedAt"] = formatTimestamp(*t.StartedAt)
	}
	if t.Session != nil {
		fields["session"] = sessionFields(*t.Session)
	}
	return fields
}

func sessionFields(s model.FocusSession) map[string]any {
	fields := map[string]any{
		"id":             s.ID,
		"mode":           string(s.Mode),
		"plannedSeconds": s.PlannedSeconds,
		"actualSeconds":  s.ActualSeconds,
		"startedAt":      formatTimestamp(s.StartedAt),
		"status":         string(s.Status),
	}
	if s.EndedAt != nil {
		fields["endedAt"] = formatTimestamp(*s.EndedAt)
	}
	return fields
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// FocusView is a timer as a client renders it at ServerTime.
type FocusView struct {
	Mode                 model.FocusMode   `json:"mode"`
	Status               model.TimerStatus `json:"status"`
	RemainingSeconds     int               `json:"remainingSeconds"`
	DurationSeconds      int               `json:"durationSeconds"`
	FocusDurationSeconds int               `json:"focusDurationSeconds"`
	BreakDurationSeconds int               `json:"breakDurationSeconds"`
	Progress             int               `json:"progress"`
	SessionID            string            `json:"sessionId,omitempty"`
	EndsAt               *time.Time        `json:"endsAt,omitempty"`
	Version              int               `json:"version"`
	UpdatedAt            *time.Time        `json:"updatedAt,omitempty"`
	ServerTime           time.Time         `json:"serverTime"`
}

// FocusViewAt renders t at now. A countdown that has run out is shown
// settled, with the version it had when it was read.
func FocusViewAt(t model.FocusTimer, now time.Time) FocusView {
	version := t.Version
	t, _ = SettleTimer(t, now)

	remaining := RemainingAt(t, now)
	duration := t.DurationFor(t.Mode)
	view := FocusView{
		Mode:                 t.Mode,
		Status:               t.Status,
		RemainingSeconds:     remaining,
		DurationSeconds:      duration,
		FocusDurationSeconds: t.FocusSeconds,
		BreakDurationSeconds: t.BreakSeconds,
		Progress:             progress(duration, remaining),
		Version:              version,
		UpdatedAt:            t.UpdatedAt,
		ServerTime:           now,
	}
	if t.Session != nil {
		view.SessionID = t.Session.ID
	}
	if t.Status == model.TimerRunning {
		end := now.Add(time.Duration(remaining) * time.Second)
		view.EndsAt = &end
	}
	return view
}

// progress is the elapsed share of duration in percent, within 0..100.
func progress(duration, remaining int) int {
	if duration <= 0 {
		return 0
	}
	p := int(math.Round(float64(duration-remaining) / float64(duration) * 100))
	return max(0, min(100, p))
}

type FocusStats struct {
	Timer             FocusView `json:"timer"`
	CompletedToday    int       `json:"completedToday"`
	FocusMinutesToday int       `json:"focusMinutesToday"`
	TotalCompleted    int       `json:"totalCompleted"`
	Skipped           int       `json:"skipped"`
}

// ReduceFocusSnapshot summarizes the focus collection of one account. A
// missing or malformed timer reads as the default one.
func ReduceFocusSnapshot(docs []model.Document, now time.Time, loc *time.Location) FocusStats {
	timer := model.DefaultFocusTimer()
	stats := FocusStats{}
	for _, doc := range docs {
		if doc.ID != docstore.FocusTimerID {
			continue
		}
		decoded, err := model.DecodeFocusTimer(doc)
		if err != nil {
			stats.Skipped++
			continue
		}
		timer = decoded
	}

	stats.Timer = FocusViewAt(timer, now)
	settled, _ := SettleTimer(timer, now)
	today := model.DateOf(now.In(loc))
	focusSeconds := 0
	for _, s := range settled.History {
		if s.Status != model.FocusSessionCompleted || s.Mode != model.FocusModeFocus {
			continue
		}
		stats.TotalCompleted++
		if s.EndedAt != nil && model.DateOf(s.EndedAt.In(loc)) == today {
			stats.CompletedToday++
			focusSeconds += s.ActualSeconds
		}
	}
	stats.FocusMinutesToday = focusSeconds / 60
	return stats
}
