package conversation

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestGetOrCreateStability(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "map.json"))

	calls := 0
	create := func() (string, error) {
		calls++
		return fmt.Sprintf("conv-%d", calls), nil
	}

	first, err := s.GetOrCreate("003abc", create)
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v, want nil", err)
	}
	second, err := s.GetOrCreate("003abc", create)
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v, want nil", err)
	}
	if first != second {
		t.Errorf("GetOrCreate() returned %q then %q, want stable identifier", first, second)
	}
	if calls != 1 {
		t.Errorf("create invoked %d times, want 1", calls)
	}
}

func TestGetOrCreateDistinctContacts(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "map.json"))

	a, err := s.GetOrCreate("a", func() (string, error) { return "conv-a", nil })
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.GetOrCreate("b", func() (string, error) { return "conv-b", nil })
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Errorf("distinct contacts share conversation %q", a)
	}
}

func TestGetOrCreatePersistsAcrossStores(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.json")

	if _, err := NewStore(path).GetOrCreate("003abc", func() (string, error) { return "conv-1", nil }); err != nil {
		t.Fatal(err)
	}

	got, err := NewStore(path).GetOrCreate("003abc", func() (string, error) {
		t.Error("create invoked for an already persisted binding")
		return "conv-2", nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if got != "conv-1" {
		t.Errorf("GetOrCreate() after restart = %q, want %q", got, "conv-1")
	}
}

func TestGetOrCreateCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.json")
	if err := os.WriteFile(path, []byte("][("), 0600); err != nil {
		t.Fatal(err)
	}

	got, err := NewStore(path).GetOrCreate("x", func() (string, error) { return "conv-x", nil })
	if err != nil {
		t.Fatalf("GetOrCreate() on corrupt file error = %v, want nil", err)
	}
	if got != "conv-x" {
		t.Errorf("GetOrCreate() = %q, want %q", got, "conv-x")
	}
}

func TestGetOrCreateCreateFailureLeavesNoBinding(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "map.json"))

	if _, err := s.GetOrCreate("003abc", func() (string, error) {
		return "", fmt.Errorf("provider down")
	}); err == nil {
		t.Fatal("GetOrCreate() = nil error, want create failure")
	}

	// A later call retries the creation.
	got, err := s.GetOrCreate("003abc", func() (string, error) { return "conv-retry", nil })
	if err != nil {
		t.Fatalf("GetOrCreate() retry error = %v, want nil", err)
	}
	if got != "conv-retry" {
		t.Errorf("GetOrCreate() retry = %q, want %q", got, "conv-retry")
	}
}
