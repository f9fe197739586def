package model

import (
	"fmt"
	"time"
)

type Category string

const (
	CategoryGeneral  Category = "General"
	CategoryPersonal Category = "Personal"
	CategoryWork     Category = "Work"
	CategoryIdeas    Category = "Ideas"
)

func ParseCategory(raw string) (Category, error) {
	switch c := Category(raw); c {
	case CategoryGeneral, CategoryPersonal, CategoryWork, CategoryIdeas:
		return c, nil
	default:
		return "", fmt.Errorf("category must be one of General, Personal, Work, Ideas")
	}
}

type Note struct {
	ID        string     `mapstructure:"-" json:"id"`
	Title     string     `mapstructure:"title" json:"title"`
	Content   string     `mapstructure:"content" json:"content"`
	Category  Category   `mapstructure:"category" json:"category"`
	CreatedAt *time.Time `mapstructure:"createdAt" json:"createdAt,omitempty"`
	UpdatedAt *time.Time `mapstructure:"updatedAt" json:"updatedAt,omitempty"`
}

func DecodeNote(doc Document) (Note, error) {
	var n Note
	if err := decodeFields(doc.Fields, &n); err != nil {
		return Note{}, fmt.Errorf("decode note %s: %w", doc.ID, err)
	}
	n.ID = doc.ID

	if n.Category == "" {
		n.Category = CategoryGeneral
	}
	category, err := ParseCategory(string(n.Category))
	if err != nil {
		return Note{}, fmt.Errorf("decode note %s: %w", doc.ID, err)
	}
	n.Category = category
	return n, nil
}
