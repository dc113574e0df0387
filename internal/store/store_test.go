package store

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type record struct {
	Name string    `json:"name"`
	At   time.Time `json:"at"`
}

func TestJSONFile_MissingFile(t *testing.T) {
	s := NewJSONFile(filepath.Join(t.TempDir(), "nested", "state.json"))

	var got []record
	ok, err := s.Get("installedTemplates", &got)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() on missing file should report absent")
	}
}

func TestJSONFile_SetAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	s := NewJSONFile(path)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	want := []record{{Name: "a", At: now}, {Name: "b", At: now}}
	if err := s.Set("installedTemplates", want); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := s.Set("lastSyncedAt", now); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("state file not created: %v", err)
	}

	// A fresh instance sees both keys
	reloaded := NewJSONFile(path)
	var got []record
	ok, err := reloaded.Get("installedTemplates", &got)
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v", ok, err)
	}
	if len(got) != 2 || got[1].Name != "b" || !got[1].At.Equal(now) {
		t.Errorf("Get() = %+v, want %+v", got, want)
	}
	var at time.Time
	if ok, _ := reloaded.Get("lastSyncedAt", &at); !ok || !at.Equal(now) {
		t.Errorf("lastSyncedAt = %v, want %v", at, now)
	}

	// No temp files left behind
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("expected only state.json, found %d entries", len(entries))
	}
}

func TestJSONFile_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	var v any
	if _, err := NewJSONFile(path).Get("k", &v); err == nil {
		t.Error("expected error for corrupt state")
	}
}

func TestJSONFile_ConcurrentWrites(t *testing.T) {
	s := NewJSONFile(filepath.Join(t.TempDir(), "state.json"))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := s.Set("counter", i); err != nil {
				t.Errorf("Set() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	var n int
	if ok, err := s.Get("counter", &n); !ok || err != nil {
		t.Fatalf("Get() = %v, %v", ok, err)
	}
	if n < 0 || n >= 20 {
		t.Errorf("counter = %d, out of range", n)
	}
}

func TestMemory(t *testing.T) {
	var s Store = NewMemory()

	var missing string
	if ok, _ := s.Get("x", &missing); ok {
		t.Error("empty store should report absent")
	}
	if err := s.Set("x", map[string]int{"a": 1}); err != nil {
		t.Fatal(err)
	}
	var got map[string]int
	if ok, err := s.Get("x", &got); !ok || err != nil || got["a"] != 1 {
		t.Errorf("Get() = %v, %v, %v", got, ok, err)
	}
}
