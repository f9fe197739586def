package engine

import (
	"strings"
	"time"

	"trackx/backend/internal/docstore"
	"trackx/backend/internal/model"
)

const (
	NoNotesTitle  = "No notes yet"
	UntitledTitle = "Untitled Note"
)

type NoteStats struct {
	TotalNotes      int    `json:"totalNotes"`
	LatestNoteTitle string `json:"latestNoteTitle"`
}

// ReduceNoteSnapshot counts notes and finds the most recently created one.
// Ties go to the earlier document in arrival order.
func ReduceNoteSnapshot(docs []model.Document) NoteStats {
	stats := NoteStats{TotalNotes: len(docs), LatestNoteTitle: NoNotesTitle}
	if len(docs) == 0 {
		return stats
	}

	var latest time.Time
	title := ""
	found := false
	for _, doc := range docs {
		n, err := model.DecodeNote(doc)
		if err != nil {
			continue
		}
		created := doc.CreatedAt
		if n.CreatedAt != nil {
			created = *n.CreatedAt
		}
		if !found || created.After(latest) {
			latest = created
			title = n.Title
			found = true
		}
	}

	if !found {
		return stats
	}
	if strings.TrimSpace(title) == "" {
		stats.LatestNoteTitle = UntitledTitle
	} else {
		stats.LatestNoteTitle = title
	}
	return stats
}

type NoteInput struct {
	Title    string
	Content  string
	Category string
}

func NewNote(input NoteInput) (model.Fields, error) {
	fields, err := noteFields(input)
	if err != nil {
		return nil, err
	}
	fields["createdAt"] = docstore.ServerTimestamp
	return fields, nil
}

func EditNote(input NoteInput) (model.Fields, error) {
	return noteFields(input)
}

func noteFields(input NoteInput) (model.Fields, error) {
	category := model.CategoryGeneral
	if raw := strings.TrimSpace(input.Category); raw != "" {
		var err error
		if category, err = model.ParseCategory(raw); err != nil {
			return nil, invalid("category", err.Error())
		}
	}
	return model.Fields{
		"title":     strings.TrimSpace(input.Title),
		"content":   input.Content,
		"category":  string(category),
		"updatedAt": docstore.ServerTimestamp,
	}, nil
}
