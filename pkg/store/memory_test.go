package store

import (
	"context"
	"testing"
	"time"

	"github.com/textcritica/collate/pkg/errors"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	defer s.Close(ctx)

	// Missing project
	if _, err := s.Get(ctx, "nope"); !errors.Is(err, errors.ErrCodeProjectNotFound) {
		t.Errorf("Get(missing) error = %v, want PROJECT_NOT_FOUND", err)
	}

	// Round trip
	p := &Project{
		ID:   "p1",
		Name: "iliad",
		Witnesses: []WitnessInput{
			{ID: "W1", Text: "the cat sat"},
		},
		CreatedAt: time.Now(),
	}
	if err := s.Put(ctx, p); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, err := s.Get(ctx, "p1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != "iliad" || len(got.Witnesses) != 1 {
		t.Errorf("Get() = %+v, want stored project", got)
	}

	// Stored copies are isolated from caller mutation.
	p.Name = "odyssey"
	got, _ = s.Get(ctx, "p1")
	if got.Name != "iliad" {
		t.Errorf("stored project mutated through caller reference: %q", got.Name)
	}

	// Put without ID
	if err := s.Put(ctx, &Project{}); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("Put(no ID) error = %v, want INVALID_INPUT", err)
	}

	// Delete then miss
	if err := s.Delete(ctx, "p1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Get(ctx, "p1"); !errors.Is(err, errors.ErrCodeProjectNotFound) {
		t.Errorf("Get(deleted) error = %v, want PROJECT_NOT_FOUND", err)
	}
	if err := s.Delete(ctx, "p1"); err != nil {
		t.Errorf("Delete(missing) error = %v", err)
	}
}

func TestMemoryStoreList(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	defer s.Close(ctx)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"p3", "p1", "p2"} {
		err := s.Put(ctx, &Project{ID: id, CreatedAt: base.Add(time.Duration(i) * time.Hour)})
		if err != nil {
			t.Fatalf("Put(%s) error = %v", id, err)
		}
	}

	got, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("List() returned %d projects, want 3", len(got))
	}
	// Ordered by creation time, not ID.
	for i, want := range []string{"p3", "p1", "p2"} {
		if got[i].ID != want {
			t.Errorf("List()[%d] = %s, want %s", i, got[i].ID, want)
		}
	}
}
