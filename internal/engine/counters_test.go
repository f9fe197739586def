package engine

import (
	"testing"
	"time"

	"trackx/backend/internal/model"
)

func noteDoc(id, title string, created time.Time) model.Document {
	return model.Document{
		ID:     id,
		Path:   "notes/u1/userNotes/" + id,
		Fields: model.Fields{"title": title, "createdAt": created.Format(time.RFC3339Nano)},
	}
}

func TestReduceNoteSnapshot(t *testing.T) {
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		docs []model.Document
		want NoteStats
	}{
		{name: "empty", docs: nil, want: NoteStats{TotalNotes: 0, LatestNoteTitle: NoNotesTitle}},
		{
			name: "latest by createdAt",
			docs: []model.Document{
				noteDoc("a", "old", base),
				noteDoc("b", "newest", base.Add(2*time.Hour)),
				noteDoc("c", "middle", base.Add(time.Hour)),
			},
			want: NoteStats{TotalNotes: 3, LatestNoteTitle: "newest"},
		},
		{
			name: "tie keeps first",
			docs: []model.Document{
				noteDoc("a", "first", base),
				noteDoc("b", "second", base),
			},
			want: NoteStats{TotalNotes: 2, LatestNoteTitle: "first"},
		},
		{
			name: "untitled latest",
			docs: []model.Document{
				noteDoc("a", "old", base),
				noteDoc("b", "", base.Add(time.Minute)),
			},
			want: NoteStats{TotalNotes: 2, LatestNoteTitle: UntitledTitle},
		},
		{
			name: "nothing decodes",
			docs: []model.Document{
				{ID: "a", Fields: model.Fields{"title": "broken", "category": "bogus"}},
			},
			want: NoteStats{TotalNotes: 1, LatestNoteTitle: NoNotesTitle},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ReduceNoteSnapshot(tt.docs); got != tt.want {
				t.Fatalf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestEventsOn(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	day := time.Date(2024, 3, 10, 0, 0, 0, 0, loc)

	events := []model.Event{
		{ID: "late", Date: day, Time: "18:30"},
		{ID: "early", Date: day, Time: "08:00"},
		{ID: "other", Date: day.AddDate(0, 0, 1), Time: "07:00"},
		// 03:00 UTC on the 11th is still the 10th in loc.
		{ID: "evening", Date: time.Date(2024, 3, 11, 3, 0, 0, 0, time.UTC), Time: "12:00"},
	}

	got := EventsOn(events, "2024-03-10", loc)
	want := []string{"early", "evening", "late"}
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("expected order %v, got %+v", want, got)
		}
	}

	if none := EventsOn(events, "2024-01-01", loc); len(none) != 0 {
		t.Fatalf("expected no events, got %d", len(none))
	}
}

func TestReduceEventSnapshot(t *testing.T) {
	fields, err := NewEvent(EventInput{Title: "Standup", Date: "2024-03-10", Time: "09:15"}, time.UTC)
	if err != nil {
		t.Fatalf("new event: %v", err)
	}
	delete(fields, "createdAt")

	docs := []model.Document{
		{ID: "a", Fields: fields},
		{ID: "b", Fields: model.Fields{"title": "no date"}},
	}
	stats := ReduceEventSnapshot(docs, time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC), time.UTC)
	if stats.TotalEvents != 2 || stats.Skipped != 1 || len(stats.Today) != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.Today[0].Title != "Standup" {
		t.Fatalf("unexpected event %+v", stats.Today[0])
	}
}

func TestNewEventValidation(t *testing.T) {
	tests := []EventInput{
		{Title: "", Date: "2024-03-10"},
		{Title: "x"},
		{Title: "x", Date: "2024-03-10", Time: "25:00"},
	}
	for _, input := range tests {
		if _, err := NewEvent(input, time.UTC); err == nil {
			t.Errorf("NewEvent(%+v) expected error", input)
		}
	}
}

func TestDaysBetween(t *testing.T) {
	tests := []struct {
		a, b model.Date
		want int
	}{
		{a: "2024-03-01", b: "2024-03-01", want: 0},
		{a: "2024-02-28", b: "2024-03-01", want: 2},
		{a: "2024-03-10", b: "2024-03-09", want: -1},
		{a: "2023-12-31", b: "2024-01-01", want: 1},
	}
	for _, tt := range tests {
		got, err := DaysBetween(tt.a, tt.b)
		if err != nil {
			t.Fatalf("days between: %v", err)
		}
		if got != tt.want {
			t.Errorf("DaysBetween(%s, %s) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
