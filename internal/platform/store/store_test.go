package store

import (
	"context"
	"testing"
)

func TestZeroStoreIsSafe(t *testing.T) {
	t.Parallel()

	var s Store
	if err := s.Guard(context.Background()); err != nil {
		t.Fatalf("Guard on zero store = %v", err)
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Close on zero store = %v", err)
	}
}

func TestOpenDisabledBackends(t *testing.T) {
	t.Parallel()

	s, err := Open(context.Background(), Config{})
	if err != nil {
		t.Fatalf("Open with no backends = %v", err)
	}
	if s.PG != nil {
		t.Fatalf("PG should stay nil when disabled")
	}
}

func TestGuardNilStore(t *testing.T) {
	t.Parallel()

	var s *Store
	if err := s.Guard(context.Background()); err == nil {
		t.Fatalf("Guard on nil store should error")
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Close on nil store = %v", err)
	}
}
