// Package dashboard keeps derived statistics for the signed-in account up
// to date from live collection snapshots.
package dashboard

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"trackx/backend/internal/docstore"
	"trackx/backend/internal/engine"
	"trackx/backend/internal/model"
)

// Source opens live collection subscriptions.
type Source interface {
	Subscribe(ctx context.Context, collection string) (*docstore.Subscription, error)
}

// State is the derived dashboard for one account. A section stays nil
// until its first snapshot arrives; User is nil when signed out.
type State struct {
	User      *model.CurrentUser `json:"user"`
	Todos     *engine.TodoStats  `json:"todos,omitempty"`
	Habits    *engine.HabitStats `json:"habits,omitempty"`
	Notes     *engine.NoteStats  `json:"notes,omitempty"`
	Events    *engine.EventStats `json:"events,omitempty"`
	Focus     *engine.FocusStats `json:"focus,omitempty"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// Ready reports whether every section has been computed.
func (s State) Ready() bool {
	return s.Todos != nil && s.Habits != nil && s.Notes != nil && s.Events != nil && s.Focus != nil
}

type Dashboard struct {
	source Source
	loc    *time.Location
	now    func() time.Time
	logger *log.Logger
}

type Option func(*Dashboard)

func WithClock(now func() time.Time) Option {
	return func(d *Dashboard) {
		d.now = now
	}
}

func New(source Source, loc *time.Location, logger *log.Logger, opts ...Option) *Dashboard {
	d := &Dashboard{
		source: source,
		loc:    loc,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// scope is the set of subscriptions for one account.
type scope struct {
	cancel context.CancelFunc
	subs   []*docstore.Subscription
	todos  <-chan docstore.Snapshot
	habits <-chan docstore.Snapshot
	notes  <-chan docstore.Snapshot
	events <-chan docstore.Snapshot
	focus  <-chan docstore.Snapshot
}

func (s *scope) close() {
	if s == nil {
		return
	}
	for _, sub := range s.subs {
		sub.Cancel()
	}
	s.cancel()
}

// Run follows users and emits a new State after every user change and
// every snapshot. Subscriptions for an account are cancelled before the
// next account's are opened. The returned channel keeps only the newest
// State and is closed when ctx ends or users is closed.
func (d *Dashboard) Run(ctx context.Context, users <-chan *model.CurrentUser) <-chan State {
	out := make(chan State, 1)
	go d.loop(ctx, users, out)
	return out
}

func (d *Dashboard) loop(ctx context.Context, users <-chan *model.CurrentUser, out chan State) {
	defer close(out)

	var current *scope
	defer func() {
		current.close()
	}()

	var state State
	emit := func() {
		state.UpdatedAt = d.now()
		publish(out, state)
	}

	for {
		var todos, habits, notes, events, focus <-chan docstore.Snapshot
		if current != nil {
			todos, habits, notes, events = current.todos, current.habits, current.notes, current.events
			focus = current.focus
		}

		select {
		case <-ctx.Done():
			return

		case user, ok := <-users:
			if !ok {
				return
			}
			current.close()
			current = nil
			state = State{User: user}
			if user != nil {
				opened, err := d.open(ctx, user.UID)
				if err != nil {
					d.logger.Error("open dashboard subscriptions", "uid", user.UID, "error", err)
				} else {
					current = opened
				}
			}
			emit()

		case snapshot, ok := <-todos:
			if !ok {
				current.todos = nil
				continue
			}
			stats := engine.ReduceTodoSnapshot(snapshot.Documents(), d.now())
			state.Todos = &stats
			emit()

		case snapshot, ok := <-habits:
			if !ok {
				current.habits = nil
				continue
			}
			stats := engine.ReduceHabitSnapshot(snapshot.Documents())
			state.Habits = &stats
			emit()

		case snapshot, ok := <-notes:
			if !ok {
				current.notes = nil
				continue
			}
			stats := engine.ReduceNoteSnapshot(snapshot.Documents())
			state.Notes = &stats
			emit()

		case snapshot, ok := <-events:
			if !ok {
				current.events = nil
				continue
			}
			stats := engine.ReduceEventSnapshot(snapshot.Documents(), d.now(), d.loc)
			state.Events = &stats
			emit()

		case snapshot, ok := <-focus:
			if !ok {
				current.focus = nil
				continue
			}
			stats := engine.ReduceFocusSnapshot(snapshot.Documents(), d.now(), d.loc)
			state.Focus = &stats
			emit()
		}
	}
}

func (d *Dashboard) open(ctx context.Context, uid string) (*scope, error) {
	scopeCtx, cancel := context.WithCancel(ctx)
	s := &scope{cancel: cancel}

	subscribe := func(collection string) (<-chan docstore.Snapshot, error) {
		sub, err := d.source.Subscribe(scopeCtx, collection)
		if err != nil {
			return nil, err
		}
		s.subs = append(s.subs, sub)
		return sub.Snapshots(), nil
	}

	var err error
	if s.todos, err = subscribe(docstore.UserTodos(uid)); err != nil {
		s.close()
		return nil, err
	}
	if s.habits, err = subscribe(docstore.UserHabits(uid)); err != nil {
		s.close()
		return nil, err
	}
	if s.notes, err = subscribe(docstore.UserNotes(uid)); err != nil {
		s.close()
		return nil, err
	}
	if s.events, err = subscribe(docstore.UserEvents(uid)); err != nil {
		s.close()
		return nil, err
	}
	if s.focus, err = subscribe(docstore.UserFocus(uid)); err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

// Compute builds a State from one read of each collection.
func Compute(
	user *model.CurrentUser,
	todos, habits, notes, events, focus []model.Document,
	now time.Time,
	loc *time.Location,
) State {
	todoStats := engine.ReduceTodoSnapshot(todos, now)
	habitStats := engine.ReduceHabitSnapshot(habits)
	noteStats := engine.ReduceNoteSnapshot(notes)
	eventStats := engine.ReduceEventSnapshot(events, now, loc)
	focusStats := engine.ReduceFocusSnapshot(focus, now, loc)
	return State{
		User:      user,
		Todos:     &todoStats,
		Habits:    &habitStats,
		Notes:     &noteStats,
		Events:    &eventStats,
		Focus:     &focusStats,
		UpdatedAt: now,
	}
}

func publish(ch chan State, state State) {
	select {
	case ch <- state:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- state:
	default:
	}
}
