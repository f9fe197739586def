package service

import (
	"context"

	"github.com/charmbracelet/log"

	"trackx/backend/internal/docstore"
	"trackx/backend/internal/engine"
	apperrors "trackx/backend/internal/errors"
	"trackx/backend/internal/model"
	"trackx/backend/internal/retry"
)

type TodoService struct {
	store  DocumentStore
	retry  *retry.Retrier
	logger *log.Logger
}

func NewTodoService(store DocumentStore, retrier *retry.Retrier, logger *log.Logger) *TodoService {
	return &TodoService{store: store, retry: retrier, logger: logger}
}

var errTodoNotFound = apperrors.NotFound("todo_not_found", "todo not found")

func (s *TodoService) List(ctx context.Context, userID string) ([]model.Todo, *apperrors.APIError) {
	snapshot, err := s.store.List(ctx, docstore.UserTodos(userID))
	if err != nil {
		return nil, toAPIError(s.logger, "list todos", err, errTodoNotFound)
	}
	return decodeAll(s.logger, snapshot.Documents(), model.DecodeTodo), nil
}

func (s *TodoService) Create(ctx context.Context, userID string, input engine.TodoInput) (*model.Todo, *apperrors.APIError) {
	fields, err := engine.NewTodo(input)
	if err != nil {
		return nil, toAPIError(s.logger, "create todo", err, errTodoNotFound)
	}
	doc, err := s.store.Create(ctx, docstore.UserTodos(userID), fields)
	if err != nil {
		return nil, toAPIError(s.logger, "create todo", err, errTodoNotFound)
	}
	return s.decode(doc)
}

func (s *TodoService) Edit(ctx context.Context, userID, todoID string, input engine.TodoInput) (*model.Todo, *apperrors.APIError) {
	patch, err := engine.EditTodo(input)
	if err != nil {
		return nil, toAPIError(s.logger, "edit todo", err, errTodoNotFound)
	}
	doc, _, err := s.store.Transform(ctx, s.path(userID, todoID), func(model.Document) (model.Fields, error) {
		return patch, nil
	})
	if err != nil {
		return nil, toAPIError(s.logger, "edit todo", err, errTodoNotFound)
	}
	return s.decode(doc)
}

// Toggle sets the completed state of a todo. A nil completed flips the
// current state; the target is fixed before any retry so a repeated write
// lands on the same value.
func (s *TodoService) Toggle(ctx context.Context, userID, todoID string, completed *bool) (*model.Todo, *apperrors.APIError) {
	path := s.path(userID, todoID)

	var target bool
	if completed != nil {
		target = *completed
	} else {
		current, err := s.store.Get(ctx, path)
		if err != nil {
			return nil, toAPIError(s.logger, "toggle todo", err, errTodoNotFound)
		}
		todo, apiErr := s.decode(current)
		if apiErr != nil {
			return nil, apiErr
		}
		target = !todo.Completed
	}

	var doc model.Document
	err := s.retry.Do(ctx, "toggle todo", func(ctx context.Context) error {
		var err error
		doc, _, err = s.store.Transform(ctx, path, func(current model.Document) (model.Fields, error) {
			todo, err := model.DecodeTodo(current)
			if err != nil {
				return nil, err
			}
			return engine.ToggleTodo(todo, target), nil
		})
		return err
	})
	if err != nil {
		return nil, toAPIError(s.logger, "toggle todo", err, errTodoNotFound)
	}
	return s.decode(doc)
}

func (s *TodoService) Delete(ctx context.Context, userID, todoID string) *apperrors.APIError {
	if err := s.store.Delete(ctx, s.path(userID, todoID)); err != nil {
		return toAPIError(s.logger, "delete todo", err, errTodoNotFound)
	}
	return nil
}

func (s *TodoService) decode(doc model.Document) (*model.Todo, *apperrors.APIError) {
	todo, err := model.DecodeTodo(doc)
	if err != nil {
		s.logger.Error("decode todo", "path", doc.Path, "error", err)
		return nil, apperrors.Internal("stored todo is malformed")
	}
	return &todo, nil
}

func (s *TodoService) path(userID, todoID string) string {
	return docstore.Doc(docstore.UserTodos(userID), todoID)
}
