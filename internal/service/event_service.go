package service

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"trackx/backend/internal/docstore"
	"trackx/backend/internal/engine"
	apperrors "trackx/backend/internal/errors"
	"trackx/backend/internal/model"
)

type EventService struct {
	store  DocumentStore
	loc    *time.Location
	logger *log.Logger
}

func NewEventService(store DocumentStore, loc *time.Location, logger *log.Logger) *EventService {
	return &EventService{store: store, loc: loc, logger: logger}
}

var errEventNotFound = apperrors.NotFound("event_not_found", "event not found")

func (s *EventService) List(ctx context.Context, userID string) ([]model.Event, *apperrors.APIError) {
	snapshot, err := s.store.List(ctx, docstore.UserEvents(userID))
	if err != nil {
		return nil, toAPIError(s.logger, "list events", err, errEventNotFound)
	}
	return decodeAll(s.logger, snapshot.Documents(), model.DecodeEvent), nil
}

// Day returns the events on a calendar date, ordered by time of day.
func (s *EventService) Day(ctx context.Context, userID, date string) ([]model.Event, *apperrors.APIError) {
	day, err := model.ParseDate(date)
	if err != nil || day.IsZero() {
		return nil, apperrors.BadRequest("invalid_date", "date must be YYYY-MM-DD")
	}
	events, apiErr := s.List(ctx, userID)
	if apiErr != nil {
		return nil, apiErr
	}
	return engine.EventsOn(events, day, s.loc), nil
}

func (s *EventService) Create(ctx context.Context, userID string, input engine.EventInput) (*model.Event, *apperrors.APIError) {
	fields, err := engine.NewEvent(input, s.loc)
	if err != nil {
		return nil, toAPIError(s.logger, "create event", err, errEventNotFound)
	}
	doc, err := s.store.Create(ctx, docstore.UserEvents(userID), fields)
	if err != nil {
		return nil, toAPIError(s.logger, "create event", err, errEventNotFound)
	}
	return s.decode(doc)
}

func (s *EventService) Edit(ctx context.Context, userID, eventID string, input engine.EventInput) (*model.Event, *apperrors.APIError) {
	patch, err := engine.EditEvent(input, s.loc)
	if err != nil {
		return nil, toAPIError(s.logger, "edit event", err, errEventNotFound)
	}
	doc, _, err := s.store.Transform(ctx, s.path(userID, eventID), func(model.Document) (model.Fields, error) {
		return patch, nil
	})
	if err != nil {
		return nil, toAPIError(s.logger, "edit event", err, errEventNotFound)
	}
	return s.decode(doc)
}

func (s *EventService) Delete(ctx context.Context, userID, eventID string) *apperrors.APIError {
	if err := s.store.Delete(ctx, s.path(userID, eventID)); err != nil {
		return toAPIError(s.logger, "delete event", err, errEventNotFound)
	}
	return nil
}

func (s *EventService) decode(doc model.Document) (*model.Event, *apperrors.APIError) {
	event, err := model.DecodeEvent(doc)
	if err != nil {
		s.logger.Error("decode event", "path", doc.Path, "error", err)
		return nil, apperrors.Internal("stored event is malformed")
	}
	return &event, nil
}

func (s *EventService) path(userID, eventID string) string {
	return docstore.Doc(docstore.UserEvents(userID), eventID)
}
