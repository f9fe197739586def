package model

import (
	"fmt"
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Fields holds the raw, loosely typed content of a stored document.
type Fields map[string]any

// Document is one stored record. Fields must be treated as read-only once
// the document is part of a snapshot.
type Document struct {
	ID        string
	Path      string
	Seq       int64
	Fields    Fields
	CreatedAt time.Time
	UpdatedAt time.Time
}

// decodeFields maps raw fields onto a record using mapstructure tags.
// Timestamps arrive as RFC3339 strings after a storage round trip.
func decodeFields(fields Fields, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			stringToTimeHook,
		),
		WeaklyTypedInput: true,
		Result:           target,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(map[string]any(fields))
}

func stringToTimeHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(time.Time{}) {
		return data, nil
	}
	switch value := data.(type) {
	case time.Time:
		return value, nil
	case string:
		if value == "" {
			return time.Time{}, nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, value)
		if err != nil {
			return nil, fmt.Errorf("parse timestamp %q: %w", value, err)
		}
		return parsed.UTC(), nil
	default:
		return data, nil
	}
}
