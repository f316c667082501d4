package store

import (
	"context"
	"errors"
	"testing"

	"github.com/54b3r/courseai-go/internal/docparse"
)

// openTestStore opens an in-memory SQLiteStore for use in tests.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleCourse() *docparse.Course {
	return &docparse.Course{
		Title:      "Intro to Testing",
		Instructor: "Alex Rivera",
		Link:       "https://example.com/testing",
		Lessons: []docparse.Lesson{
			{Number: 1, Title: "Basics", Link: "https://example.com/testing/1"},
			{Number: 2, Title: "Doubles"},
			{Number: 4, Title: "Integration", Link: "https://example.com/testing/4"},
		},
	}
}

func Test_Store_UpsertAndLoad(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.UpsertCourse(ctx, sampleCourse()); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.Course(ctx, "Intro to Testing")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Instructor != "Alex Rivera" || got.Link != "https://example.com/testing" {
		t.Errorf("course metadata: got %+v", got)
	}
	if len(got.Lessons) != 3 {
		t.Fatalf("want 3 lessons, got %d", len(got.Lessons))
	}
	if got.Lessons[2].Number != 4 || got.Lessons[2].Title != "Integration" {
		t.Errorf("lesson ordering: got %+v", got.Lessons)
	}
	if got.Lessons[1].Link != "" {
		t.Errorf("lesson 2 link: want empty, got %q", got.Lessons[1].Link)
	}
}

func Test_Store_ReUpsertReplacesLessons(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.UpsertCourse(ctx, sampleCourse()); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	shorter := &docparse.Course{
		Title:      "Intro to Testing",
		Instructor: "New Instructor",
		Lessons:    []docparse.Lesson{{Number: 1, Title: "Only Lesson"}},
	}
	if err := s.UpsertCourse(ctx, shorter); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := s.Course(ctx, "Intro to Testing")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Instructor != "New Instructor" {
		t.Errorf("instructor not updated: got %q", got.Instructor)
	}
	if len(got.Lessons) != 1 || got.Lessons[0].Title != "Only Lesson" {
		t.Errorf("stale lessons survived re-upsert: got %+v", got.Lessons)
	}
}

func Test_Store_CourseNotFound(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	_, err := s.Course(context.Background(), "No Such Course")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}

func Test_Store_TitlesSorted(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	for _, title := range []string{"Zebra Patterns", "Alpha Course", "Mid Course"} {
		if err := s.UpsertCourse(ctx, &docparse.Course{Title: title}); err != nil {
			t.Fatalf("upsert %q: %v", title, err)
		}
	}

	titles, err := s.Titles(ctx)
	if err != nil {
		t.Fatalf("titles: %v", err)
	}
	want := []string{"Alpha Course", "Mid Course", "Zebra Patterns"}
	if len(titles) != len(want) {
		t.Fatalf("want %d titles, got %d", len(want), len(titles))
	}
	for i := range want {
		if titles[i] != want[i] {
			t.Errorf("titles[%d]: got %q, want %q", i, titles[i], want[i])
		}
	}
}

func Test_Store_DeleteAll(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.UpsertCourse(ctx, sampleCourse()); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.DeleteAll(ctx); err != nil {
		t.Fatalf("delete all: %v", err)
	}

	titles, err := s.Titles(ctx)
	if err != nil {
		t.Fatalf("titles: %v", err)
	}
	if len(titles) != 0 {
		t.Errorf("want empty catalog, got %v", titles)
	}
	if _, err := s.Course(ctx, "Intro to Testing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("want ErrNotFound after delete, got %v", err)
	}
}
