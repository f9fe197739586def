package docstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	apperrors "trackx/backend/internal/errors"
	"trackx/backend/internal/model"
	"trackx/backend/internal/repository"
)

var ErrNotFound = repository.ErrNotFound

// Client is the document store: CRUD on slash-addressed documents plus
// live collection subscriptions.
type Client struct {
	repo   *repository.DocumentRepository
	hub    *hub
	logger *log.Logger
	now    func() time.Time
}

type Option func(*Client)

// WithClock overrides the store clock used for ServerTimestamp.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

func NewClient(repo *repository.DocumentRepository, logger *log.Logger, opts ...Option) *Client {
	c := &Client{
		repo:   repo,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(c)
	}
	c.hub = newHub(repo.ListCollection)
	return c
}

// Create adds a document with a generated id to collection.
func (c *Client) Create(ctx context.Context, collection string, fields model.Fields) (model.Document, error) {
	if err := ValidateCollection(collection); err != nil {
		return model.Document{}, err
	}

	id := uuid.NewString()
	now := c.now()
	doc := model.Document{
		ID:        id,
		Path:      Doc(collection, id),
		Fields:    apply(nil, fields, now),
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := c.inTx(ctx, "create", doc.Path, func(tx *sql.Tx) error {
		return c.repo.InsertTx(ctx, tx, collection, &doc)
	})
	if err != nil {
		return model.Document{}, err
	}

	c.publish(ctx, collection)
	return doc, nil
}

// Set writes the document at path, creating it when missing. With merge
// the given fields are applied over the existing ones; otherwise they
// replace them.
func (c *Client) Set(ctx context.Context, path string, fields model.Fields, merge bool) (model.Document, error) {
	collection, id, err := SplitDocument(path)
	if err != nil {
		return model.Document{}, err
	}

	var doc model.Document
	err = c.inTx(ctx, "set", path, func(tx *sql.Tx) error {
		now := c.now()
		existing, getErr := c.repo.GetTx(ctx, tx, path)
		if errors.Is(getErr, repository.ErrNotFound) {
			doc = model.Document{
				ID:        id,
				Path:      path,
				Fields:    apply(nil, fields, now),
				CreatedAt: now,
				UpdatedAt: now,
			}
			return c.repo.InsertTx(ctx, tx, collection, &doc)
		}
		if getErr != nil {
			return getErr
		}

		base := existing.Fields
		if !merge {
			base = nil
		}
		doc = *existing
		doc.Fields = apply(base, fields, now)
		doc.UpdatedAt = now
		return c.repo.UpdateTx(ctx, tx, &doc)
	})
	if err != nil {
		return model.Document{}, err
	}

	c.publish(ctx, collection)
	return doc, nil
}

// Ensure returns the document at path, first creating it from fields when
// it is missing. created reports whether this call wrote it.
func (c *Client) Ensure(ctx context.Context, path string, fields model.Fields) (model.Document, bool, error) {
	collection, id, err := SplitDocument(path)
	if err != nil {
		return model.Document{}, false, err
	}

	var doc model.Document
	created := false
	err = c.inTx(ctx, "ensure", path, func(tx *sql.Tx) error {
		existing, getErr := c.repo.GetTx(ctx, tx, path)
		if getErr == nil {
			doc = *existing
			return nil
		}
		if !errors.Is(getErr, repository.ErrNotFound) {
			return getErr
		}

		now := c.now()
		doc = model.Document{
			ID:        id,
			Path:      path,
			Fields:    apply(nil, fields, now),
			CreatedAt: now,
			UpdatedAt: now,
		}
		created = true
		return c.repo.InsertTx(ctx, tx, collection, &doc)
	})
	if err != nil {
		return model.Document{}, false, err
	}

	if created {
		c.publish(ctx, collection)
	}
	return doc, created, nil
}

// Update applies patch to an existing document.
func (c *Client) Update(ctx context.Context, path string, patch model.Fields) (model.Document, error) {
	doc, _, err := c.Transform(ctx, path, func(model.Document) (model.Fields, error) {
		return patch, nil
	})
	return doc, err
}

// Transform runs fn against the current document and applies the patch it
// returns, all in one transaction. A nil patch leaves the document
// untouched and reports changed=false. Errors from fn are returned as is.
func (c *Client) Transform(
	ctx context.Context,
	path string,
	fn func(current model.Document) (model.Fields, error),
) (model.Document, bool, error) {
	collection, _, err := SplitDocument(path)
	if err != nil {
		return model.Document{}, false, err
	}

	var doc model.Document
	changed := false
	var fnErr error
	err = c.inTx(ctx, "update", path, func(tx *sql.Tx) error {
		current, getErr := c.repo.GetTx(ctx, tx, path)
		if getErr != nil {
			return getErr
		}
		doc = *current

		patch, err := fn(*current)
		if err != nil {
			fnErr = err
			return err
		}
		if patch == nil {
			return nil
		}

		now := c.now()
		doc.Fields = apply(current.Fields, patch, now)
		doc.UpdatedAt = now
		changed = true
		return c.repo.UpdateTx(ctx, tx, &doc)
	})
	if fnErr != nil {
		return model.Document{}, false, fnErr
	}
	if err != nil {
		return model.Document{}, false, err
	}

	if changed {
		c.publish(ctx, collection)
	}
	return doc, changed, nil
}

// Delete removes the document at path. Deleting a missing document is not
// an error.
func (c *Client) Delete(ctx context.Context, path string) error {
	collection, _, err := SplitDocument(path)
	if err != nil {
		return err
	}

	deleted, err := c.repo.Delete(ctx, path)
	if err != nil {
		return &apperrors.WriteError{Op: "delete", Path: path, Err: err}
	}
	if deleted {
		c.publish(ctx, collection)
	}
	return nil
}

func (c *Client) Get(ctx context.Context, path string) (model.Document, error) {
	if _, _, err := SplitDocument(path); err != nil {
		return model.Document{}, err
	}
	doc, err := c.repo.Get(ctx, path)
	if err != nil {
		return model.Document{}, err
	}
	return *doc, nil
}

// List reads the collection once.
func (c *Client) List(ctx context.Context, collection string) (Snapshot, error) {
	if err := ValidateCollection(collection); err != nil {
		return Snapshot{}, err
	}
	docs, err := c.repo.ListCollection(ctx, collection)
	if err != nil {
		return Snapshot{}, err
	}
	return NewSnapshot(collection, 0, docs), nil
}

// Subscribe delivers the current snapshot of collection immediately and a
// new one after every change. The subscription ends when ctx is done or
// Cancel is called.
func (c *Client) Subscribe(ctx context.Context, collection string) (*Subscription, error) {
	if err := ValidateCollection(collection); err != nil {
		return nil, err
	}
	return c.hub.subscribe(ctx, collection)
}

func (c *Client) publish(ctx context.Context, collection string) {
	if err := c.hub.publish(context.WithoutCancel(ctx), collection); err != nil {
		c.logger.Warn("publish snapshot failed", "collection", collection, "error", err)
	}
}

func (c *Client) inTx(ctx context.Context, op, path string, fn func(tx *sql.Tx) error) error {
	tx, err := c.repo.BeginTx(ctx)
	if err != nil {
		return &apperrors.WriteError{Op: op, Path: path, Err: err}
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return err
		}
		return &apperrors.WriteError{Op: op, Path: path, Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &apperrors.WriteError{Op: op, Path: path, Err: err}
	}
	return nil
}
