package docstore

import "trackx/backend/internal/model"

// Snapshot is a complete, point-in-time view of a collection, in arrival
// order. Snapshots are immutable; callers must not modify document fields.
type Snapshot struct {
	collection string
	version    uint64
	docs       []model.Document
}

func NewSnapshot(collection string, version uint64, docs []model.Document) Snapshot {
	owned := make([]model.Document, len(docs))
	copy(owned, docs)
	return Snapshot{collection: collection, version: version, docs: owned}
}

func (s Snapshot) Collection() string { return s.collection }

// Version increases strictly with every snapshot a subscription delivers.
func (s Snapshot) Version() uint64 { return s.version }

func (s Snapshot) Len() int { return len(s.docs) }

func (s Snapshot) Empty() bool { return len(s.docs) == 0 }

// Documents returns a copy of the document list.
func (s Snapshot) Documents() []model.Document {
	out := make([]model.Document, len(s.docs))
	copy(out, s.docs)
	return out
}
