package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"trackx/backend/internal/db"
	"trackx/backend/internal/model"
)

type DocumentRepository struct {
	db      *sql.DB
	dialect db.Dialect
}

func NewDocumentRepository(database *sql.DB, dialect db.Dialect) *DocumentRepository {
	return &DocumentRepository{db: database, dialect: dialect}
}

func (r *DocumentRepository) BeginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return tx, nil
}

func (r *DocumentRepository) Get(ctx context.Context, path string) (*model.Document, error) {
	row := r.db.QueryRowContext(
		ctx,
		r.dialect.Rebind(`SELECT path, doc_id, seq, fields, created_at, updated_at
		 FROM documents WHERE path = ?`),
		path,
	)
	return scanDocument(row)
}

// GetTx reads the document at path and locks it until tx ends.
func (r *DocumentRepository) GetTx(ctx context.Context, tx *sql.Tx, path string) (*model.Document, error) {
	row := tx.QueryRowContext(
		ctx,
		r.dialect.Rebind(r.dialect.ForUpdate(`SELECT path, doc_id, seq, fields, created_at, updated_at
		 FROM documents WHERE path = ?`)),
		path,
	)
	return scanDocument(row)
}

// InsertTx stores a new document at the end of its collection's arrival
// order. The per-collection counter row stays locked until tx ends, so
// concurrent inserts never share a seq.
func (r *DocumentRepository) InsertTx(ctx context.Context, tx *sql.Tx, collection string, doc *model.Document) error {
	if err := tx.QueryRowContext(
		ctx,
		r.dialect.Rebind(`INSERT INTO document_sequences (collection, seq) VALUES (?, 1)
		 ON CONFLICT (collection) DO UPDATE SET seq = document_sequences.seq + 1
		 RETURNING seq`),
		collection,
	).Scan(&doc.Seq); err != nil {
		return fmt.Errorf("next seq: %w", err)
	}

	encoded, err := encodeFields(doc.Fields)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(
		ctx,
		r.dialect.Rebind(`INSERT INTO documents (path, collection, doc_id, seq, fields, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`),
		doc.Path,
		collection,
		doc.ID,
		doc.Seq,
		encoded,
		formatTime(doc.CreatedAt),
		formatTime(doc.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) UpdateTx(ctx context.Context, tx *sql.Tx, doc *model.Document) error {
	encoded, err := encodeFields(doc.Fields)
	if err != nil {
		return err
	}

	result, err := tx.ExecContext(
		ctx,
		r.dialect.Rebind(`UPDATE documents
		 SET fields = ?,
		     updated_at = ?
		 WHERE path = ?`),
		encoded,
		formatTime(doc.UpdatedAt),
		doc.Path,
	)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *DocumentRepository) Delete(ctx context.Context, path string) (bool, error) {
	result, err := r.db.ExecContext(
		ctx,
		r.dialect.Rebind(`DELETE FROM documents WHERE path = ?`),
		path,
	)
	if err != nil {
		return false, fmt.Errorf("delete document: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete document: %w", err)
	}
	return affected > 0, nil
}

func (r *DocumentRepository) ListCollection(ctx context.Context, collection string) ([]model.Document, error) {
	rows, err := r.db.QueryContext(
		ctx,
		r.dialect.Rebind(`SELECT path, doc_id, seq, fields, created_at, updated_at
		 FROM documents
		 WHERE collection = ?
		 ORDER BY seq ASC`),
		collection,
	)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	docs := make([]model.Document, 0)
	for rows.Next() {
		doc, scanErr := scanDocument(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		docs = append(docs, *doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(s scanner) (*model.Document, error) {
	doc := model.Document{}
	var fields string
	var createdAt string
	var updatedAt string
	err := s.Scan(
		&doc.Path,
		&doc.ID,
		&doc.Seq,
		&fields,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}

	doc.Fields = model.Fields{}
	if err := json.Unmarshal([]byte(fields), &doc.Fields); err != nil {
		return nil, fmt.Errorf("decode document %s fields: %w", doc.Path, err)
	}

	if doc.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse document created_at: %w", err)
	}
	if doc.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse document updated_at: %w", err)
	}
	return &doc, nil
}

func encodeFields(fields model.Fields) (string, error) {
	if fields == nil {
		fields = model.Fields{}
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("encode fields: %w", err)
	}
	return string(raw), nil
}
