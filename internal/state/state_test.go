package state

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/tsukumogami/nativedep/internal/acquire"
)

func TestStore_LoadMissing(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "state.json"))

	rec, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}
	if rec != nil {
		t.Fatalf("Load() = %+v, want nil", rec)
	}
}

func TestStore_SaveAndLoad(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "home", "state.json"))
	key := Key{
		Profile:    "linux/x86_64",
		Strategies: []acquire.Name{acquire.System, acquire.Archive},
		Repo:       "Z3Prover/z3",
		IncludeDir: "/usr/local/include",
		LibDir:     "/usr/local/lib",
		Header:     "z3.h",
		Library:    "z3",
	}
	want := &Record{
		Key: key,
		Result: acquire.Result{
			HeaderPath:  "/usr/local/include/z3.h",
			LibraryDir:  "/usr/local/lib",
			LibraryFile: "/usr/local/lib/libz3.so",
			Strategy:    acquire.Archive,
			Version:     "z3-4.12.2",
			Source:      "z3-4.12.2-x64-glibc-2.31.zip",
		},
		InstalledAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}

	if err := s.Save(want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := os.Stat(s.Path() + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file left behind: %v", err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Result != want.Result {
		t.Errorf("Result = %+v, want %+v", got.Result, want.Result)
	}
	if !got.InstalledAt.Equal(want.InstalledAt) {
		t.Errorf("InstalledAt = %v, want %v", got.InstalledAt, want.InstalledAt)
	}
	if !got.Matches(key) {
		t.Errorf("Matches() = false for the saved key %+v, loaded %+v", key, got.Key)
	}
}

func TestStore_LoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewStore(path).Load(); err == nil {
		t.Fatal("Load() error = nil, want parse error")
	}
}

func TestStore_Clear(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "state.json"))
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear() on missing file: %v", err)
	}
	if err := s.Save(&Record{Key: Key{Profile: "linux/x86_64"}}); err != nil {
		t.Fatal(err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if rec, _ := s.Load(); rec != nil {
		t.Errorf("Load() after Clear() = %+v, want nil", rec)
	}
}

func TestRecord_Matches(t *testing.T) {
	base := Key{
		Profile:    "linux/x86_64",
		Strategies: []acquire.Name{acquire.System, acquire.Wheel},
		Repo:       "Z3Prover/z3",
		IncludeDir: "/usr/local/include",
		LibDir:     "/usr/local/lib",
		Header:     "z3.h",
		Library:    "z3",
	}
	rec := &Record{Key: base}

	tests := []struct {
		name   string
		change func(k *Key)
		want   bool
	}{
		{"same", func(k *Key) {}, true},
		{"other arch", func(k *Key) { k.Profile = "linux/aarch64" }, false},
		{"reordered", func(k *Key) { k.Strategies = []acquire.Name{acquire.Wheel, acquire.System} }, false},
		{"subset", func(k *Key) { k.Strategies = []acquire.Name{acquire.System} }, false},
		{"other repo", func(k *Key) { k.Repo = "example/z3-fork" }, false},
		{"other include dir", func(k *Key) { k.IncludeDir = "/opt/z3/include" }, false},
		{"other lib dir", func(k *Key) { k.LibDir = "/opt/z3/lib" }, false},
		{"other header", func(k *Key) { k.Header = "z3++.h" }, false},
		{"other library", func(k *Key) { k.Library = "z3-4.12" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := base
			k.Strategies = slices.Clone(base.Strategies)
			tt.change(&k)
			if got := rec.Matches(k); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}
