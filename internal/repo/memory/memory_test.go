package memory

import (
	"context"
	"testing"

	"github.com/hamed0406/pingmonitor/internal/repo"
)

func TestMemoryStore_EmptyLoad(t *testing.T) {
	st, err := New().Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(st.Records) != 0 || st.IntervalSeconds != 0 {
		t.Fatalf("expected empty state, got %+v", st)
	}
}

func TestMemoryStore_SaveLoadCopies(t *testing.T) {
	ctx := context.Background()
	s := New()

	in := repo.State{Records: []string{`{"id":"a","active":true,"history":[]}`}, IntervalSeconds: 5}
	if err := s.Save(ctx, in); err != nil {
		t.Fatalf("Save: %v", err)
	}
	in.Records[0] = "mutated"

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.IntervalSeconds != 5 || len(got.Records) != 1 || got.Records[0] == "mutated" {
		t.Fatalf("unexpected state: %+v", got)
	}
	if s.Saves() != 1 {
		t.Fatalf("want 1 save, got %d", s.Saves())
	}
}
