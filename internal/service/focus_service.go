package service

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	"trackx/backend/internal/docstore"
	"trackx/backend/internal/engine"
	apperrors "trackx/backend/internal/errors"
	"trackx/backend/internal/model"
	"trackx/backend/internal/retry"
)

const defaultHistoryLimit = 50

type FocusService struct {
	store  DocumentStore
	retry  *retry.Retrier
	now    func() time.Time
	logger *log.Logger
}

func NewFocusService(store DocumentStore, retrier *retry.Retrier, logger *log.Logger) *FocusService {
	return &FocusService{
		store:  store,
		retry:  retrier,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

type FocusSettingsInput struct {
	BaseVersion          int
	FocusDurationSeconds int
	BreakDurationSeconds int
}

var errFocusNotFound = apperrors.NotFound("focus_timer_not_found", "focus timer not found")

// State returns the timer, creating it on first use. A countdown that ran
// out since the last write is completed and stored here.
func (s *FocusService) State(ctx context.Context, userID string) (*engine.FocusView, *apperrors.APIError) {
	return s.write(ctx, userID, "focus state", 0, unchanged, true)
}

func (s *FocusService) Start(ctx context.Context, userID string, baseVersion int) (*engine.FocusView, *apperrors.APIError) {
	return s.write(ctx, userID, "focus start", baseVersion, engine.StartTimer, true)
}

func (s *FocusService) Pause(ctx context.Context, userID string, baseVersion int) (*engine.FocusView, *apperrors.APIError) {
	return s.write(ctx, userID, "focus pause", baseVersion, engine.PauseTimer, true)
}

func (s *FocusService) Reset(ctx context.Context, userID string, baseVersion int) (*engine.FocusView, *apperrors.APIError) {
	return s.write(ctx, userID, "focus reset", baseVersion, engine.ResetTimer, true)
}

func (s *FocusService) SwitchMode(ctx context.Context, userID, rawMode string, baseVersion int) (*engine.FocusView, *apperrors.APIError) {
	mode, err := model.ParseFocusMode(rawMode)
	if err != nil {
		return nil, apperrors.BadRequest("invalid_mode", err.Error())
	}
	return s.write(ctx, userID, "focus switch mode", baseVersion, engine.SwitchMode(mode), true)
}

// Adjust is applied once; repeating it after an ambiguous failure could
// move the countdown twice.
func (s *FocusService) Adjust(ctx context.Context, userID string, minutes, baseVersion int) (*engine.FocusView, *apperrors.APIError) {
	return s.write(ctx, userID, "focus adjust", baseVersion, engine.AdjustTimer(minutes), false)
}

func (s *FocusService) UpdateSettings(ctx context.Context, userID string, input FocusSettingsInput) (*engine.FocusView, *apperrors.APIError) {
	op := engine.UpdateFocusSettings(input.FocusDurationSeconds, input.BreakDurationSeconds)
	return s.write(ctx, userID, "focus settings", input.BaseVersion, op, true)
}

// History lists finished sessions, newest first.
func (s *FocusService) History(ctx context.Context, userID string, limit int) ([]model.FocusSession, *apperrors.APIError) {
	if limit <= 0 || limit > model.FocusHistoryLimit {
		limit = defaultHistoryLimit
	}

	doc, err := s.store.Get(ctx, s.path(userID))
	if errors.Is(err, docstore.ErrNotFound) {
		return []model.FocusSession{}, nil
	}
	if err != nil {
		return nil, s.fail("focus history", err)
	}
	timer, err := model.DecodeFocusTimer(doc)
	if err != nil {
		return nil, s.fail("focus history", err)
	}
	timer, _ = engine.SettleTimer(timer, s.now())

	sessions := slices.Clone(timer.History)
	slices.Reverse(sessions)
	if len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions, nil
}

// write runs op against the stored timer. The version check only applies
// to the first attempt: a retry may be looking at its own earlier write.
func (s *FocusService) write(
	ctx context.Context,
	userID, op string,
	baseVersion int,
	fn engine.FocusOp,
	retryable bool,
) (*engine.FocusView, *apperrors.APIError) {
	path := s.path(userID)
	attempt := 0
	var view engine.FocusView

	apply := func(ctx context.Context) error {
		attempt++
		base := baseVersion
		if attempt > 1 {
			base = 0
		}

		if _, _, err := s.store.Ensure(ctx, path, engine.FocusFields(model.DefaultFocusTimer())); err != nil {
			return err
		}
		now := s.now()
		doc, _, err := s.store.Transform(ctx, path, func(current model.Document) (model.Fields, error) {
			timer, err := model.DecodeFocusTimer(current)
			if err != nil {
				return nil, err
			}
			next, changed, err := engine.ApplyFocus(timer, base, fn, now)
			if err != nil || !changed {
				return nil, err
			}
			return engine.FocusFields(next), nil
		})
		if err != nil {
			return err
		}
		timer, err := model.DecodeFocusTimer(doc)
		if err != nil {
			return err
		}
		view = engine.FocusViewAt(timer, now)
		return nil
	}

	var err error
	if retryable {
		err = s.retry.Do(ctx, op, apply)
	} else {
		err = apply(ctx)
	}
	if err != nil {
		return nil, s.fail(op, err)
	}
	return &view, nil
}

func (s *FocusService) fail(op string, err error) *apperrors.APIError {
	var conflict *engine.VersionConflict
	if errors.As(err, &conflict) {
		return apperrors.Conflict("state_conflict", conflict.Error(), map[string]interface{}{
			"state": engine.FocusViewAt(conflict.Timer, s.now()),
		})
	}
	return toAPIError(s.logger, op, err, errFocusNotFound)
}

func (s *FocusService) path(userID string) string {
	return docstore.Doc(docstore.UserFocus(userID), docstore.FocusTimerID)
}

func unchanged(t model.FocusTimer, _ time.Time) (model.FocusTimer, bool, error) {
	return t, false, nil
}
