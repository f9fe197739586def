package service

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"trackx/backend/internal/docstore"
	"trackx/backend/internal/engine"
	apperrors "trackx/backend/internal/errors"
	"trackx/backend/internal/model"
	"trackx/backend/internal/retry"
)

type HabitService struct {
	store  DocumentStore
	retry  *retry.Retrier
	policy engine.StreakPolicy
	loc    *time.Location
	now    func() time.Time
	logger *log.Logger
}

func NewHabitService(
	store DocumentStore,
	retrier *retry.Retrier,
	policy engine.StreakPolicy,
	loc *time.Location,
	logger *log.Logger,
) *HabitService {
	return &HabitService{
		store:  store,
		retry:  retrier,
		policy: policy,
		loc:    loc,
		now:    time.Now,
		logger: logger,
	}
}

type HabitResult struct {
	Outcome engine.Outcome `json:"outcome"`
	Habit   model.Habit    `json:"habit"`
}

var errHabitNotFound = apperrors.NotFound("habit_not_found", "habit not found")

func (s *HabitService) List(ctx context.Context, userID string) ([]model.Habit, *apperrors.APIError) {
	snapshot, err := s.store.List(ctx, docstore.UserHabits(userID))
	if err != nil {
		return nil, toAPIError(s.logger, "list habits", err, errHabitNotFound)
	}
	return decodeAll(s.logger, snapshot.Documents(), model.DecodeHabit), nil
}

func (s *HabitService) Create(ctx context.Context, userID string, input engine.HabitInput) (*model.Habit, *apperrors.APIError) {
	fields, err := engine.NewHabit(input)
	if err != nil {
		return nil, toAPIError(s.logger, "create habit", err, errHabitNotFound)
	}
	doc, err := s.store.Create(ctx, docstore.UserHabits(userID), fields)
	if err != nil {
		return nil, toAPIError(s.logger, "create habit", err, errHabitNotFound)
	}
	return s.decode(doc)
}

func (s *HabitService) Edit(ctx context.Context, userID, habitID string, input engine.HabitInput) (*model.Habit, *apperrors.APIError) {
	doc, _, err := s.store.Transform(ctx, s.path(userID, habitID), func(current model.Document) (model.Fields, error) {
		h, err := model.DecodeHabit(current)
		if err != nil {
			return nil, err
		}
		return engine.EditHabit(h, input)
	})
	if err != nil {
		return nil, toAPIError(s.logger, "edit habit", err, errHabitNotFound)
	}
	return s.decode(doc)
}

// MarkDone records a completion for today, a YYYY-MM-DD date in the
// caller's timezone. An empty today uses the server's configured zone.
func (s *HabitService) MarkDone(ctx context.Context, userID, habitID string, today model.Date) (*HabitResult, *apperrors.APIError) {
	if today.IsZero() {
		today = model.DateOf(s.now().In(s.loc))
	}
	return s.transition(ctx, "mark done", s.path(userID, habitID), func(h model.Habit) (engine.Decision, error) {
		return engine.MarkDone(h, today, s.policy)
	})
}

// Fail marks a habit inactive. Failing an inactive habit changes nothing.
func (s *HabitService) Fail(ctx context.Context, userID, habitID string) (*HabitResult, *apperrors.APIError) {
	return s.transition(ctx, "fail habit", s.path(userID, habitID), func(h model.Habit) (engine.Decision, error) {
		return engine.Fail(h), nil
	})
}

func (s *HabitService) Delete(ctx context.Context, userID, habitID string) *apperrors.APIError {
	if err := s.store.Delete(ctx, s.path(userID, habitID)); err != nil {
		return toAPIError(s.logger, "delete habit", err, errHabitNotFound)
	}
	return nil
}

// transition applies decide inside one store transaction, retrying store
// failures. Repeating a decision is safe because MarkDone and Fail both
// turn into no-ops once applied.
func (s *HabitService) transition(
	ctx context.Context,
	op, path string,
	decide func(model.Habit) (engine.Decision, error),
) (*HabitResult, *apperrors.APIError) {
	var outcome engine.Outcome
	var doc model.Document
	err := s.retry.Do(ctx, op, func(ctx context.Context) error {
		var err error
		doc, _, err = s.store.Transform(ctx, path, func(current model.Document) (model.Fields, error) {
			h, err := model.DecodeHabit(current)
			if err != nil {
				return nil, err
			}
			decision, err := decide(h)
			if err != nil {
				return nil, err
			}
			outcome = decision.Outcome
			return decision.Patch, nil
		})
		return err
	})
	if err != nil {
		return nil, toAPIError(s.logger, op, err, errHabitNotFound)
	}

	h, apiErr := s.decode(doc)
	if apiErr != nil {
		return nil, apiErr
	}
	s.logger.Debug("habit transition", "op", op, "path", path, "outcome", outcome, "streak", h.Streak)
	return &HabitResult{Outcome: outcome, Habit: *h}, nil
}

func (s *HabitService) decode(doc model.Document) (*model.Habit, *apperrors.APIError) {
	h, err := model.DecodeHabit(doc)
	if err != nil {
		s.logger.Error("decode habit", "path", doc.Path, "error", err)
		return nil, apperrors.Internal("stored habit is malformed")
	}
	return &h, nil
}

func (s *HabitService) path(userID, habitID string) string {
	return docstore.Doc(docstore.UserHabits(userID), habitID)
}
