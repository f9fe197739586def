package service

import (
	"context"

	"github.com/charmbracelet/log"

	"trackx/backend/internal/docstore"
	"trackx/backend/internal/engine"
	apperrors "trackx/backend/internal/errors"
	"trackx/backend/internal/model"
)

type NoteService struct {
	store  DocumentStore
	logger *log.Logger
}

func NewNoteService(store DocumentStore, logger *log.Logger) *NoteService {
	return &NoteService{store: store, logger: logger}
}

var errNoteNotFound = apperrors.NotFound("note_not_found", "note not found")

func (s *NoteService) List(ctx context.Context, userID string) ([]model.Note, *apperrors.APIError) {
	snapshot, err := s.store.List(ctx, docstore.UserNotes(userID))
	if err != nil {
		return nil, toAPIError(s.logger, "list notes", err, errNoteNotFound)
	}
	return decodeAll(s.logger, snapshot.Documents(), model.DecodeNote), nil
}

func (s *NoteService) Create(ctx context.Context, userID string, input engine.NoteInput) (*model.Note, *apperrors.APIError) {
	fields, err := engine.NewNote(input)
	if err != nil {
		return nil, toAPIError(s.logger, "create note", err, errNoteNotFound)
	}
	doc, err := s.store.Create(ctx, docstore.UserNotes(userID), fields)
	if err != nil {
		return nil, toAPIError(s.logger, "create note", err, errNoteNotFound)
	}
	return s.decode(doc)
}

func (s *NoteService) Edit(ctx context.Context, userID, noteID string, input engine.NoteInput) (*model.Note, *apperrors.APIError) {
	patch, err := engine.EditNote(input)
	if err != nil {
		return nil, toAPIError(s.logger, "edit note", err, errNoteNotFound)
	}
	doc, _, err := s.store.Transform(ctx, s.path(userID, noteID), func(model.Document) (model.Fields, error) {
		return patch, nil
	})
	if err != nil {
		return nil, toAPIError(s.logger, "edit note", err, errNoteNotFound)
	}
	return s.decode(doc)
}

func (s *NoteService) Delete(ctx context.Context, userID, noteID string) *apperrors.APIError {
	if err := s.store.Delete(ctx, s.path(userID, noteID)); err != nil {
		return toAPIError(s.logger, "delete note", err, errNoteNotFound)
	}
	return nil
}

func (s *NoteService) decode(doc model.Document) (*model.Note, *apperrors.APIError) {
	note, err := model.DecodeNote(doc)
	if err != nil {
		s.logger.Error("decode note", "path", doc.Path, "error", err)
		return nil, apperrors.Internal("stored note is malformed")
	}
	return &note, nil
}

func (s *NoteService) path(userID, noteID string) string {
	return docstore.Doc(docstore.UserNotes(userID), noteID)
}
