package memory

import (
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T, runID string) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "memory.db"), runID)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestWriteRead(t *testing.T) {
	store := newTestStore(t, "run-a")

	created, err := store.Write("task_status", "in_progress")
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !created {
		t.Error("expected first write to report created")
	}

	value, found, err := store.Read("task_status")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !found {
		t.Fatal("expected key to be found")
	}
	if value != "in_progress" {
		t.Errorf("got %q, want %q", value, "in_progress")
	}
}

func TestReadMissing(t *testing.T) {
	store := newTestStore(t, "run-a")

	_, found, err := store.Read("nope")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if found {
		t.Error("expected missing key to report not found")
	}
}

func TestOverwriteIsIdempotent(t *testing.T) {
	store := newTestStore(t, "run-a")

	if _, err := store.Write("k", "v1"); err != nil {
		t.Fatalf("Write v1: %v", err)
	}
	created, err := store.Write("k", "v2")
	if err != nil {
		t.Fatalf("Write v2: %v", err)
	}
	if created {
		t.Error("expected overwrite to report not created")
	}

	value, _, err := store.Read("k")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if value != "v2" {
		t.Errorf("got %q, want %q", value, "v2")
	}

	keys, err := store.Keys()
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 1 {
		t.Errorf("expected exactly one entry, got %d", len(keys))
	}
}

func TestRunIsolation(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "memory.db")

	storeA, err := NewStore(dbPath, "run-a")
	if err != nil {
		t.Fatalf("NewStore A: %v", err)
	}
	defer storeA.Close()

	storeB, err := NewStoreWithDB(storeA.db, "run-b")
	if err != nil {
		t.Fatalf("NewStoreWithDB B: %v", err)
	}

	if _, err := storeA.Write("k", "secret"); err != nil {
		t.Fatalf("Write: %v", err)
	}

	_, found, err := storeB.Read("k")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if found {
		t.Error("run-b must not observe run-a's entries")
	}

	keys, err := storeB.Keys()
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("run-b should list no keys, got %v", keys)
	}

	if _, err := storeB.Delete("k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if value, _, _ := storeA.Read("k"); value != "secret" {
		t.Error("run-b delete must not affect run-a")
	}
}

func TestKeysInsertionOrder(t *testing.T) {
	store := newTestStore(t, "run-a")

	for _, k := range []string{"zebra", "alpha", "middle"} {
		if _, err := store.Write(k, "v"); err != nil {
			t.Fatalf("Write %s: %v", k, err)
		}
	}

	keys, err := store.Keys()
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	want := []string{"zebra", "alpha", "middle"}
	if len(keys) != len(want) {
		t.Fatalf("got %d keys, want %d", len(keys), len(want))
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("key %d: got %q, want %q", i, keys[i], want[i])
		}
	}
}

func TestDelete(t *testing.T) {
	store := newTestStore(t, "run-a")

	if _, err := store.Write("k", "v"); err != nil {
		t.Fatalf("Write: %v", err)
	}

	existed, err := store.Delete("k")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !existed {
		t.Error("expected delete of present key to report existed")
	}

	existed, err = store.Delete("k")
	if err != nil {
		t.Fatalf("Delete again: %v", err)
	}
	if existed {
		t.Error("expected delete of absent key to report not existed")
	}
}

func TestSearchKeys(t *testing.T) {
	store := newTestStore(t, "run-a")

	for _, k := range []string{"goal_main", "goal_backup", "status", "100%_done"} {
		if _, err := store.Write(k, "v"); err != nil {
			t.Fatalf("Write %s: %v", k, err)
		}
	}

	tests := []struct {
		substring string
		want      []string
	}{
		{"goal", []string{"goal_main", "goal_backup"}},
		{"status", []string{"status"}},
		{"missing", nil},
		// LIKE metacharacters must match literally.
		{"%", []string{"100%_done"}},
		{"_", []string{"goal_main", "goal_backup", "100%_done"}},
	}

	for _, tt := range tests {
		got, err := store.SearchKeys(tt.substring)
		if err != nil {
			t.Fatalf("SearchKeys(%q): %v", tt.substring, err)
		}
		if len(got) != len(tt.want) {
			t.Errorf("SearchKeys(%q): got %v, want %v", tt.substring, got, tt.want)
			continue
		}
		for i := range tt.want {
			if got[i] != tt.want[i] {
				t.Errorf("SearchKeys(%q)[%d]: got %q, want %q", tt.substring, i, got[i], tt.want[i])
			}
		}
	}
}
