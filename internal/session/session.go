// Package session tracks signed-in sessions and lets callers observe the
// account behind one.
package session

import (
	"context"
	"sync"
	"time"

	"trackx/backend/internal/model"
)

// Hub holds one entry per live session token. An entry leaves the hub on
// sign-out, once its token has expired, or when its last observer goes
// away. Lock order is Hub.mu before session.mu.
type Hub struct {
	mu       sync.Mutex
	sessions map[string]*session
	now      func() time.Time
}

type session struct {
	mu        sync.Mutex
	current   model.CurrentUser
	expiresAt time.Time
	watchers  map[chan *model.CurrentUser]struct{}
	ended     bool
}

type Option func(*Hub)

// WithClock overrides the clock used to expire sessions.
func WithClock(now func() time.Time) Option {
	return func(h *Hub) {
		h.now = now
	}
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{sessions: map[string]*session{}, now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Attach registers tokenID for user unless it is already known. A zero
// expiresAt never expires. Expired entries are swept on the way.
func (h *Hub) Attach(tokenID string, user model.CurrentUser, expiresAt time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sweepLocked()
	if _, ok := h.sessions[tokenID]; ok {
		return
	}
	h.sessions[tokenID] = &session{
		current:   user,
		expiresAt: expiresAt,
		watchers:  map[chan *model.CurrentUser]struct{}{},
	}
}

// Observe streams the account behind tokenID: the current value first,
// then every change. A nil value means signed out, after which the
// channel is closed. The channel is also closed when ctx ends.
func (h *Hub) Observe(ctx context.Context, tokenID string) <-chan *model.CurrentUser {
	ch := make(chan *model.CurrentUser, 1)

	h.mu.Lock()
	defer h.mu.Unlock()

	s := h.sessions[tokenID]
	if s != nil && s.expired(h.now()) {
		delete(h.sessions, tokenID)
		s.mu.Lock()
		s.end()
		s.mu.Unlock()
		s = nil
	}
	if s == nil {
		ch <- nil
		close(ch)
		return ch
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		ch <- nil
		close(ch)
		return ch
	}
	current := s.current
	ch <- &current
	s.watchers[ch] = struct{}{}

	context.AfterFunc(ctx, func() {
		h.leave(tokenID, s, ch)
	})
	return ch
}

// SignOut ends the session and tells its observers.
func (h *Hub) SignOut(tokenID string) {
	h.mu.Lock()
	s := h.sessions[tokenID]
	delete(h.sessions, tokenID)
	h.mu.Unlock()
	if s == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.end()
}

// Update replaces the account details of every session of user.UID.
func (h *Hub) Update(user model.CurrentUser) {
	h.mu.Lock()
	matched := make([]*session, 0)
	for _, s := range h.sessions {
		s.mu.Lock()
		if s.current.UID == user.UID {
			matched = append(matched, s)
		}
		s.mu.Unlock()
	}
	h.mu.Unlock()

	for _, s := range matched {
		s.mu.Lock()
		if !s.ended {
			s.current = user
			for ch := range s.watchers {
				value := user
				publish(ch, &value)
			}
		}
		s.mu.Unlock()
	}
}

// Active reports whether tokenID has a live session.
func (h *Hub) Active(tokenID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[tokenID]
	return ok && !s.expired(h.now())
}

// Len reports how many sessions the hub holds.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// leave drops ch from s and evicts s once nobody is watching it.
func (h *Hub) leave(tokenID string, s *session, ch chan *model.CurrentUser) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.watchers[ch]; !ok {
		return
	}
	delete(s.watchers, ch)
	if len(s.watchers) == 0 && h.sessions[tokenID] == s {
		delete(h.sessions, tokenID)
	}
	close(ch)
}

// sweepLocked ends every expired session. h.mu must be held.
func (h *Hub) sweepLocked() {
	now := h.now()
	for tokenID, s := range h.sessions {
		if !s.expired(now) {
			continue
		}
		delete(h.sessions, tokenID)
		s.mu.Lock()
		s.end()
		s.mu.Unlock()
	}
}

func (s *session) expired(now time.Time) bool {
	return !s.expiresAt.IsZero() && !now.Before(s.expiresAt)
}

// end tells every watcher the session is over. s.mu must be held.
func (s *session) end() {
	if s.ended {
		return
	}
	s.ended = true
	for ch := range s.watchers {
		publish(ch, nil)
		close(ch)
	}
	s.watchers = nil
}

// publish keeps only the newest value in ch.
func publish(ch chan *model.CurrentUser, user *model.CurrentUser) {
	select {
	case ch <- user:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- user:
	default:
	}
}
