package service

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"

	"trackx/backend/internal/docstore"
	"trackx/backend/internal/engine"
	apperrors "trackx/backend/internal/errors"
	"trackx/backend/internal/model"
)

// DocumentStore is the part of the document store the services use.
type DocumentStore interface {
	Create(ctx context.Context, collection string, fields model.Fields) (model.Document, error)
	Set(ctx context.Context, path string, fields model.Fields, merge bool) (model.Document, error)
	Ensure(ctx context.Context, path string, fields model.Fields) (model.Document, bool, error)
	Transform(ctx context.Context, path string, fn func(model.Document) (model.Fields, error)) (model.Document, bool, error)
	Delete(ctx context.Context, path string) error
	Get(ctx context.Context, path string) (model.Document, error)
	List(ctx context.Context, collection string) (docstore.Snapshot, error)
}

// toAPIError maps store and engine failures onto API errors. notFound is
// returned for missing documents.
func toAPIError(logger *log.Logger, op string, err error, notFound *apperrors.APIError) *apperrors.APIError {
	var validation *engine.ValidationError
	var writeErr *apperrors.WriteError
	switch {
	case errors.As(err, &validation):
		return apperrors.BadRequest("invalid_"+validation.Field, validation.Message)
	case errors.Is(err, engine.ErrHabitInactive):
		return apperrors.Conflict("habit_inactive", "habit is no longer active", nil)
	case errors.Is(err, engine.ErrTimerRunning):
		return apperrors.Conflict("timer_running", "pause the timer before adjusting it", nil)
	case errors.Is(err, docstore.ErrNotFound):
		return notFound
	case errors.As(err, &writeErr):
		logger.Error("write failed", "op", op, "path", writeErr.Path, "error", writeErr.Err)
		return apperrors.WriteFailed("")
	default:
		logger.Error("store operation failed", "op", op, "error", err)
		return apperrors.Internal("")
	}
}

// decodeAll decodes docs in order, logging and dropping the malformed ones.
func decodeAll[T any](logger *log.Logger, docs []model.Document, decode func(model.Document) (T, error)) []T {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		item, err := decode(doc)
		if err != nil {
			logger.Warn("skipping malformed document", "path", doc.Path, "error", err)
			continue
		}
		out = append(out, item)
	}
	return out
}
