package docstore

import (
	"time"

	"trackx/backend/internal/model"
)

type marker int

const (
	serverTimestamp marker = iota + 1
	deleteField
)

var (
	// ServerTimestamp is replaced by the store's clock when a write is
	// applied, so ordering never depends on a client clock.
	ServerTimestamp any = serverTimestamp
	// DeleteField removes the key from the stored document.
	DeleteField any = deleteField
)

// apply merges patch into base, resolving markers against now. Timestamps
// are stored in their RFC3339 text form. base is not modified.
func apply(base, patch model.Fields, now time.Time) model.Fields {
	merged := make(model.Fields, len(base)+len(patch))
	for key, value := range base {
		merged[key] = value
	}
	for key, value := range patch {
		m, ok := value.(marker)
		switch {
		case ok && m == serverTimestamp:
			merged[key] = now.UTC().Format(time.RFC3339Nano)
		case ok && m == deleteField:
			delete(merged, key)
		default:
			merged[key] = value
		}
	}
	return merged
}
