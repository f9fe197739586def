package docstore

import (
	"fmt"
	"strings"
)

// Collection roots of the per-user layout.
const (
	TodosRoot  = "todos"
	HabitsRoot = "habits"
	NotesRoot  = "notes"
	EventsRoot = "events"
	FocusRoot  = "focus"
	UsersRoot  = "users"
)

// FocusTimerID is the id of the single timer document in UserFocus.
const FocusTimerID = "timer"

func UserTodos(uid string) string  { return uid2(TodosRoot, uid, "userTodos") }
func UserHabits(uid string) string { return uid2(HabitsRoot, uid, "userHabits") }
func UserNotes(uid string) string  { return uid2(NotesRoot, uid, "userNotes") }
func UserEvents(uid string) string { return uid2(EventsRoot, uid, "userEvents") }
func UserFocus(uid string) string  { return uid2(FocusRoot, uid, "userFocus") }

// UserProfile is the document path of a user's profile settings.
func UserProfile(uid string) string {
	return UsersRoot + "/" + uid
}

// Doc joins a collection path and a document id.
func Doc(collection, id string) string {
	return collection + "/" + id
}

func uid2(root, uid, sub string) string {
	return root + "/" + uid + "/" + sub
}

// ValidateCollection checks that path names a collection: an odd number of
// non-empty segments.
func ValidateCollection(path string) error {
	segments, err := split(path)
	if err != nil {
		return err
	}
	if len(segments)%2 != 1 {
		return fmt.Errorf("%q is not a collection path", path)
	}
	return nil
}

// SplitDocument validates a document path and returns its parent collection
// and id.
func SplitDocument(path string) (collection, id string, err error) {
	segments, err := split(path)
	if err != nil {
		return "", "", err
	}
	if len(segments)%2 != 0 {
		return "", "", fmt.Errorf("%q is not a document path", path)
	}
	last := len(segments) - 1
	return strings.Join(segments[:last], "/"), segments[last], nil
}

func split(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("empty path")
	}
	segments := strings.Split(path, "/")
	for _, segment := range segments {
		if segment == "" {
			return nil, fmt.Errorf("invalid path %q", path)
		}
	}
	return segments, nil
}
