package router_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"trackx/backend/internal/dashboard"
	"trackx/backend/internal/db"
	"trackx/backend/internal/docstore"
	"trackx/backend/internal/engine"
	"trackx/backend/internal/handler"
	"trackx/backend/internal/logger"
	"trackx/backend/internal/repository"
	"trackx/backend/internal/retry"
	"trackx/backend/internal/router"
	"trackx/backend/internal/service"
	"trackx/backend/internal/session"
)

type authResponse struct {
	Token string `json:"token"`
	User  struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

type habitEnvelope struct {
	Habit struct {
		ID             string `json:"id"`
		Status         string `json:"status"`
		Streak         int    `json:"streak"`
		LongestStreak  int    `json:"longestStreak"`
		LastMarkedDate string `json:"lastMarkedDate"`
	} `json:"habit"`
	Outcome string `json:"outcome"`
}

type todoEnvelope struct {
	Todo struct {
		ID          string  `json:"id"`
		Completed   bool    `json:"completed"`
		CompletedAt *string `json:"completedAt"`
		Priority    string  `json:"priority"`
	} `json:"todo"`
}

type statsEnvelope struct {
	Dashboard dashboard.State `json:"dashboard"`
}

type focusEnvelope struct {
	State engine.FocusView `json:"state"`
}

type focusConflictEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Details struct {
			State engine.FocusView `json:"state"`
		} `json:"details"`
	} `json:"error"`
}

type apiErrorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func TestHabitLifecycle(t *testing.T) {
	app := setupTestEngine(t)
	user := registerUser(t, app, "habits@example.com", "123456")

	status, body := requestJSON(t, app, http.MethodPost, "/api/habits", user.Token, map[string]string{
		"name":      "Read",
		"goal":      "20 pages",
		"frequency": "daily",
	})
	if status != http.StatusCreated {
		t.Fatalf("expected 201 on create, got %d: %s", status, body)
	}
	created := decodeHabit(t, body)
	if created.Habit.Streak != 0 || created.Habit.Status != "active" {
		t.Fatalf("unexpected new habit %+v", created.Habit)
	}
	donePath := "/api/habits/" + created.Habit.ID + "/done"

	steps := []struct {
		today       string
		wantOutcome string
		wantStreak  int
	}{
		{today: "2024-03-01", wantOutcome: "marked", wantStreak: 1},
		{today: "2024-03-01", wantOutcome: "already_done", wantStreak: 1},
		{today: "2024-03-02", wantOutcome: "marked", wantStreak: 2},
	}
	for _, step := range steps {
		status, body = requestJSON(t, app, http.MethodPost, donePath, user.Token, map[string]string{"today": step.today})
		if status != http.StatusOK {
			t.Fatalf("expected 200 on done, got %d: %s", status, body)
		}
		result := decodeHabit(t, body)
		if result.Outcome != step.wantOutcome || result.Habit.Streak != step.wantStreak {
			t.Fatalf("done %s: expected %s/%d, got %s/%d", step.today, step.wantOutcome, step.wantStreak, result.Outcome, result.Habit.Streak)
		}
	}

	failPath := "/api/habits/" + created.Habit.ID + "/fail"
	status, body = requestJSON(t, app, http.MethodPost, failPath, user.Token, nil)
	if status != http.StatusOK || decodeHabit(t, body).Outcome != "failed" {
		t.Fatalf("expected failed outcome, got %d: %s", status, body)
	}
	status, body = requestJSON(t, app, http.MethodPost, failPath, user.Token, nil)
	if status != http.StatusOK || decodeHabit(t, body).Outcome != "no_change" {
		t.Fatalf("expected no_change on second fail, got %d: %s", status, body)
	}

	status, body = requestJSON(t, app, http.MethodPost, donePath, user.Token, map[string]string{"today": "2024-03-03"})
	if status != http.StatusConflict || decodeError(t, body).Error.Code != "habit_inactive" {
		t.Fatalf("expected 409 habit_inactive, got %d: %s", status, body)
	}

	stats := getStats(t, app, user.Token)
	if stats.Habits.TotalHabits != 1 || stats.Habits.ActiveHabits != 0 {
		t.Fatalf("unexpected habit stats %+v", stats.Habits)
	}
	if stats.Habits.CurrentStreak != 0 || stats.Habits.LongestStreak != 2 {
		t.Fatalf("expected current 0 longest 2, got %d/%d", stats.Habits.CurrentStreak, stats.Habits.LongestStreak)
	}
}

func TestHabitValidationAndNotFound(t *testing.T) {
	app := setupTestEngine(t)
	user := registerUser(t, app, "invalid@example.com", "123456")

	status, body := requestJSON(t, app, http.MethodPost, "/api/habits", user.Token, map[string]string{
		"name":      "Run",
		"frequency": "hourly",
	})
	if status != http.StatusBadRequest || decodeError(t, body).Error.Code != "invalid_frequency" {
		t.Fatalf("expected 400 invalid_frequency, got %d: %s", status, body)
	}

	status, body = requestJSON(t, app, http.MethodPost, "/api/habits/missing/done", user.Token, nil)
	if status != http.StatusNotFound || decodeError(t, body).Error.Code != "habit_not_found" {
		t.Fatalf("expected 404 habit_not_found, got %d: %s", status, body)
	}
}

func TestTodoToggleAndStats(t *testing.T) {
	app := setupTestEngine(t)
	user := registerUser(t, app, "todos@example.com", "123456")
	other := registerUser(t, app, "other@example.com", "123456")

	ids := make([]string, 0, 3)
	for _, priority := range []string{"High", "Low", ""} {
		status, body := requestJSON(t, app, http.MethodPost, "/api/todos", user.Token, map[string]string{
			"title":    "task " + priority,
			"priority": priority,
		})
		if status != http.StatusCreated {
			t.Fatalf("expected 201 on create todo, got %d: %s", status, body)
		}
		ids = append(ids, decodeTodo(t, body).Todo.ID)
	}

	togglePath := "/api/todos/" + ids[0] + "/toggle"
	status, body := requestJSON(t, app, http.MethodPost, togglePath, user.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 on toggle, got %d: %s", status, body)
	}
	toggled := decodeTodo(t, body)
	if !toggled.Todo.Completed || toggled.Todo.CompletedAt == nil {
		t.Fatalf("expected completed todo with timestamp, got %+v", toggled.Todo)
	}

	stats := getStats(t, app, user.Token)
	if stats.Todos.Total != 3 || stats.Todos.Completed != 1 || stats.Todos.CompletionRate != 33 {
		t.Fatalf("unexpected todo stats %+v", stats.Todos)
	}
	if stats.Todos.PriorityHistogram != (engine.PriorityHistogram{High: 1, Medium: 1, Low: 1}) {
		t.Fatalf("unexpected histogram %+v", stats.Todos.PriorityHistogram)
	}
	if stats.Todos.WeeklyTrend[6].Label != "Today" || stats.Todos.WeeklyTrend[6].Completed != 1 {
		t.Fatalf("expected one completion today, got %+v", stats.Todos.WeeklyTrend[6])
	}

	status, body = requestJSON(t, app, http.MethodPost, togglePath, user.Token, map[string]bool{"completed": false})
	if status != http.StatusOK {
		t.Fatalf("expected 200 on untoggle, got %d: %s", status, body)
	}
	untoggled := decodeTodo(t, body)
	if untoggled.Todo.Completed || untoggled.Todo.CompletedAt != nil {
		t.Fatalf("expected completedAt cleared, got %+v", untoggled.Todo)
	}

	otherStats := getStats(t, app, other.Token)
	if otherStats.Todos.Total != 0 {
		t.Fatalf("expected other user to see no todos, got %d", otherStats.Todos.Total)
	}
	status, _ = requestJSON(t, app, http.MethodPost, togglePath, other.Token, nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 toggling another user's todo, got %d", status)
	}

	status, _ = requestJSON(t, app, http.MethodDelete, "/api/todos/"+ids[1], user.Token, nil)
	if status != http.StatusNoContent {
		t.Fatalf("expected 204 on delete, got %d", status)
	}
	if getStats(t, app, user.Token).Todos.Total != 2 {
		t.Fatal("expected 2 todos after delete")
	}
}

func TestFocusTimerFlow(t *testing.T) {
	app := setupTestEngine(t)
	user := registerUser(t, app, "focus@example.com", "123456")

	status, body := requestJSON(t, app, http.MethodGet, "/api/focus", user.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 on focus state, got %d: %s", status, body)
	}
	state := decodeFocus(t, body).State
	if state.Mode != "focus" || state.Status != "idle" || state.RemainingSeconds != 25*60 || state.Version != 1 {
		t.Fatalf("unexpected initial timer %+v", state)
	}

	status, body = requestJSON(t, app, http.MethodPost, "/api/focus/adjust", user.Token, map[string]int{"minutes": 5, "baseVersion": 1})
	if status != http.StatusOK {
		t.Fatalf("expected 200 on adjust, got %d: %s", status, body)
	}
	state = decodeFocus(t, body).State
	if state.RemainingSeconds != 30*60 || state.Version != 2 {
		t.Fatalf("expected 30 minutes at version 2, got %+v", state)
	}

	status, body = requestJSON(t, app, http.MethodPost, "/api/focus/start", user.Token, map[string]int{"baseVersion": 2})
	if status != http.StatusOK {
		t.Fatalf("expected 200 on start, got %d: %s", status, body)
	}
	state = decodeFocus(t, body).State
	if state.Status != "running" || state.SessionID == "" || state.EndsAt == nil {
		t.Fatalf("expected running timer, got %+v", state)
	}

	status, body = requestJSON(t, app, http.MethodPost, "/api/focus/adjust", user.Token, map[string]int{"minutes": -5})
	if status != http.StatusConflict || decodeError(t, body).Error.Code != "timer_running" {
		t.Fatalf("expected 409 timer_running, got %d: %s", status, body)
	}

	// A command issued against version 2 from another device.
	status, body = requestJSON(t, app, http.MethodPost, "/api/focus/pause", user.Token, map[string]int{"baseVersion": 2})
	if status != http.StatusConflict {
		t.Fatalf("expected 409 on stale pause, got %d: %s", status, body)
	}
	conflict := decodeFocusConflict(t, body)
	if conflict.Error.Code != "state_conflict" || conflict.Error.Details.State.Version != 3 || conflict.Error.Details.State.Status != "running" {
		t.Fatalf("expected conflict carrying the running timer, got %+v", conflict.Error)
	}

	status, body = requestJSON(t, app, http.MethodPost, "/api/focus/mode", user.Token, map[string]interface{}{"mode": "break", "baseVersion": 3})
	if status != http.StatusOK {
		t.Fatalf("expected 200 on switch mode, got %d: %s", status, body)
	}
	state = decodeFocus(t, body).State
	if state.Mode != "break" || state.Status != "idle" || state.RemainingSeconds != 5*60 {
		t.Fatalf("expected idle break timer, got %+v", state)
	}

	status, body = requestJSON(t, app, http.MethodPost, "/api/focus/mode", user.Token, map[string]string{"mode": "nap"})
	if status != http.StatusBadRequest || decodeError(t, body).Error.Code != "invalid_mode" {
		t.Fatalf("expected 400 invalid_mode, got %d: %s", status, body)
	}

	status, body = requestJSON(t, app, http.MethodPut, "/api/focus/settings", user.Token, map[string]int{
		"focusDurationSeconds": 50 * 60,
		"breakDurationSeconds": 10 * 60,
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200 on settings, got %d: %s", status, body)
	}
	if state = decodeFocus(t, body).State; state.RemainingSeconds != 10*60 || state.FocusDurationSeconds != 50*60 {
		t.Fatalf("expected idle timer to take the new break length, got %+v", state)
	}

	status, body = requestJSON(t, app, http.MethodGet, "/api/focus/history", user.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 on history, got %d: %s", status, body)
	}
	var history struct {
		Sessions []struct {
			Mode           string `json:"mode"`
			Status         string `json:"status"`
			PlannedSeconds int    `json:"plannedSeconds"`
		} `json:"sessions"`
	}
	if err := json.Unmarshal(body, &history); err != nil {
		t.Fatalf("unmarshal history: %v", err)
	}
	if len(history.Sessions) != 1 || history.Sessions[0].Status != "cancelled" || history.Sessions[0].PlannedSeconds != 30*60 {
		t.Fatalf("expected one cancelled 30 minute session, got %+v", history.Sessions)
	}

	stats := getStats(t, app, user.Token)
	if stats.Focus == nil || stats.Focus.Timer.Mode != "break" || stats.Focus.CompletedToday != 0 {
		t.Fatalf("unexpected focus stats %+v", stats.Focus)
	}
}

func TestNotesEventsAndProfile(t *testing.T) {
	app := setupTestEngine(t)
	user := registerUser(t, app, "notes@example.com", "123456")

	if stats := getStats(t, app, user.Token); stats.Notes.LatestNoteTitle != "No notes yet" {
		t.Fatalf("expected placeholder title, got %q", stats.Notes.LatestNoteTitle)
	}

	status, body := requestJSON(t, app, http.MethodPost, "/api/notes", user.Token, map[string]string{
		"title":    "Ideas",
		"content":  "<p>hello</p>",
		"category": "Ideas",
	})
	if status != http.StatusCreated {
		t.Fatalf("expected 201 on create note, got %d: %s", status, body)
	}
	status, body = requestJSON(t, app, http.MethodPost, "/api/notes", user.Token, map[string]string{
		"title":    "x",
		"category": "Shopping",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown category, got %d: %s", status, body)
	}

	for _, event := range []map[string]string{
		{"title": "Dinner", "date": "2024-03-10", "time": "19:00"},
		{"title": "Standup", "date": "2024-03-10", "time": "09:30"},
		{"title": "Dentist", "date": "2024-03-11", "time": "08:00"},
	} {
		status, body = requestJSON(t, app, http.MethodPost, "/api/events", user.Token, event)
		if status != http.StatusCreated {
			t.Fatalf("expected 201 on create event, got %d: %s", status, body)
		}
	}

	status, body = requestJSON(t, app, http.MethodGet, "/api/events/day?date=2024-03-10", user.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 on day lookup, got %d: %s", status, body)
	}
	var day struct {
		Events []struct {
			Title string `json:"title"`
		} `json:"events"`
	}
	if err := json.Unmarshal(body, &day); err != nil {
		t.Fatalf("unmarshal events: %v", err)
	}
	if len(day.Events) != 2 || day.Events[0].Title != "Standup" || day.Events[1].Title != "Dinner" {
		t.Fatalf("unexpected events for day %+v", day.Events)
	}

	status, body = requestJSON(t, app, http.MethodPut, "/api/profile", user.Token, map[string]string{
		"displayName": "Ana",
		"bio":         "likes streaks",
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200 on profile update, got %d: %s", status, body)
	}
	status, body = requestJSON(t, app, http.MethodGet, "/api/auth/me", user.Token, nil)
	if status != http.StatusOK || !strings.Contains(string(body), `"displayName":"Ana"`) {
		t.Fatalf("expected updated display name, got %d: %s", status, body)
	}

	stats := getStats(t, app, user.Token)
	if stats.Notes.TotalNotes != 1 || stats.Notes.LatestNoteTitle != "Ideas" {
		t.Fatalf("unexpected note stats %+v", stats.Notes)
	}
	if stats.Events.TotalEvents != 3 {
		t.Fatalf("expected 3 events, got %d", stats.Events.TotalEvents)
	}
}

func TestAuthErrorsAndLogout(t *testing.T) {
	app := setupTestEngine(t)
	user := registerUser(t, app, "auth@example.com", "123456")

	status, body := requestJSON(t, app, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    "AUTH@example.com",
		"password": "123456",
	})
	if status != http.StatusConflict || decodeError(t, body).Error.Code != "auth_error" {
		t.Fatalf("expected 409 auth_error, got %d: %s", status, body)
	}

	status, body = requestJSON(t, app, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "auth@example.com",
		"password": "wrong-password",
	})
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", status)
	}
	if msg := decodeError(t, body).Error.Message; msg != "Invalid email or password." {
		t.Fatalf("unexpected message %q", msg)
	}

	status, _ = requestJSON(t, app, http.MethodPost, "/api/auth/logout", user.Token, nil)
	if status != http.StatusNoContent {
		t.Fatalf("expected 204 on logout, got %d", status)
	}
	status, _ = requestJSON(t, app, http.MethodGet, "/api/auth/me", user.Token, nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected revoked token to be rejected, got %d", status)
	}
	status, _ = requestJSON(t, app, http.MethodGet, "/api/todos", "", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", status)
	}
}

func TestStatsStream(t *testing.T) {
	app := setupTestEngine(t)
	server := httptest.NewServer(app)
	defer server.Close()

	user := registerUser(t, app, "stream@example.com", "123456")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/api/stats/stream?access_token="+user.Token, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := server.Client().Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on stream, got %d", resp.StatusCode)
	}

	events := readDashboardEvents(resp.Body)

	first := nextState(t, events)
	if first.User == nil || first.Todos == nil || first.Todos.Total != 0 {
		t.Fatalf("unexpected first state %+v", first)
	}

	status, body := requestJSON(t, app, http.MethodPost, "/api/todos", user.Token, map[string]string{"title": "live"})
	if status != http.StatusCreated {
		t.Fatalf("expected 201 on create, got %d: %s", status, body)
	}
	for {
		state := nextState(t, events)
		if state.Todos != nil && state.Todos.Total == 1 {
			break
		}
	}

	status, _ = requestJSON(t, app, http.MethodPost, "/api/auth/logout", user.Token, nil)
	if status != http.StatusNoContent {
		t.Fatalf("expected 204 on logout, got %d", status)
	}
	for {
		state, ok := <-events
		if !ok {
			t.Fatal("stream ended without a signed-out state")
		}
		if state.User == nil {
			break
		}
	}
	if _, ok := <-events; ok {
		t.Fatal("expected stream to end after sign-out")
	}
}

func TestCORSPreflight(t *testing.T) {
	app := setupTestEngine(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/todos/abc", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "DELETE")
	recorder := httptest.NewRecorder()

	app.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", recorder.Code)
	}
	if recorder.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Fatalf("unexpected allow-origin header: %s", recorder.Header().Get("Access-Control-Allow-Origin"))
	}
	if !strings.Contains(recorder.Header().Get("Access-Control-Allow-Methods"), "DELETE") {
		t.Fatalf("expected DELETE to be allowed, got %s", recorder.Header().Get("Access-Control-Allow-Methods"))
	}
}

func setupTestEngine(t *testing.T) http.Handler {
	t.Helper()

	database, err := db.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	migrations, err := db.Migrations("")
	if err != nil {
		t.Fatalf("load migrations: %v", err)
	}
	if err := db.RunMigrations(database, db.SQLite, migrations); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	log := logger.Discard()
	loc := time.UTC
	userRepo := repository.NewUserRepository(database, db.SQLite)
	store := docstore.NewClient(repository.NewDocumentRepository(database, db.SQLite), log)
	sessions := session.NewHub()
	retrier := retry.New(log, time.Second)

	authService := service.NewAuthService(userRepo, sessions, "test-secret", 24*time.Hour, log)
	live := dashboard.New(store, loc, log)

	handlers := router.Handlers{
		Auth:    handler.NewAuthHandler(authService),
		Habits:  handler.NewHabitHandler(service.NewHabitService(store, retrier, engine.StreakPolicy{ResetOnGap: true}, loc, log)),
		Todos:   handler.NewTodoHandler(service.NewTodoService(store, retrier, log)),
		Notes:   handler.NewNoteHandler(service.NewNoteService(store, log)),
		Events:  handler.NewEventHandler(service.NewEventService(store, loc, log)),
		Focus:   handler.NewFocusHandler(service.NewFocusService(store, retrier, log)),
		Profile: handler.NewProfileHandler(service.NewProfileService(userRepo, store, sessions, log)),
		Stats:   handler.NewStatsHandler(service.NewStatsService(store, authService, live, loc, log)),
	}
	return router.New(authService, handlers, []string{"http://localhost:5173"}, log)
}

func registerUser(t *testing.T, server http.Handler, email, password string) authResponse {
	t.Helper()
	status, body := requestJSON(t, server, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    email,
		"password": password,
	})
	if status != http.StatusCreated {
		t.Fatalf("register %s failed with status %d: %s", email, status, string(body))
	}
	var resp authResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal register response: %v", err)
	}
	if resp.Token == "" {
		t.Fatalf("empty token for user %s", email)
	}
	return resp
}

func getStats(t *testing.T, server http.Handler, token string) dashboard.State {
	t.Helper()
	status, body := requestJSON(t, server, http.MethodGet, "/api/stats", token, nil)
	if status != http.StatusOK {
		t.Fatalf("get stats failed with status %d: %s", status, string(body))
	}
	var resp statsEnvelope
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal stats response: %v", err)
	}
	if !resp.Dashboard.Ready() {
		t.Fatalf("incomplete stats response: %s", body)
	}
	return resp.Dashboard
}

func decodeHabit(t *testing.T, body []byte) habitEnvelope {
	t.Helper()
	var resp habitEnvelope
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal habit response: %v", err)
	}
	return resp
}

func decodeTodo(t *testing.T, body []byte) todoEnvelope {
	t.Helper()
	var resp todoEnvelope
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal todo response: %v", err)
	}
	return resp
}

func decodeFocus(t *testing.T, body []byte) focusEnvelope {
	t.Helper()
	var resp focusEnvelope
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal focus response: %v", err)
	}
	return resp
}

func decodeFocusConflict(t *testing.T, body []byte) focusConflictEnvelope {
	t.Helper()
	var resp focusConflictEnvelope
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal conflict response: %v", err)
	}
	return resp
}

func decodeError(t *testing.T, body []byte) apiErrorEnvelope {
	t.Helper()
	var resp apiErrorEnvelope
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal error response: %v", err)
	}
	return resp
}

// readDashboardEvents parses "dashboard" server-sent events from body.
func readDashboardEvents(body io.Reader) <-chan dashboard.State {
	out := make(chan dashboard.State, 16)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		event := ""
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "event:"):
				event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			case strings.HasPrefix(line, "data:") && event == "dashboard":
				var state dashboard.State
				if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data:")), &state); err == nil {
					out <- state
				}
			}
		}
	}()
	return out
}

func nextState(t *testing.T, events <-chan dashboard.State) dashboard.State {
	t.Helper()
	select {
	case state, ok := <-events:
		if !ok {
			t.Fatal("stream closed")
		}
		return state
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for dashboard event")
	}
	return dashboard.State{}
}

func requestJSON(
	t *testing.T,
	server http.Handler,
	method, path, token string,
	body interface{},
) (int, []byte) {
	t.Helper()

	var payload []byte
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		payload = raw
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	recorder := httptest.NewRecorder()
	server.ServeHTTP(recorder, req)
	return recorder.Code, recorder.Body.Bytes()
}
