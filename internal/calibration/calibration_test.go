package calibration

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"uireplay/internal/script"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir())
	p := Profile{
		Name:       "lab",
		Anchor:     script.Point{X: 100, Y: 100},
		Size:       script.Size{Width: 1280, Height: 720},
		CapturedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := store.Save(p, false); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load("lab")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, p) {
		t.Errorf("Load = %+v, want %+v", got, p)
	}
}

func TestOverwriteRequiresConfirmation(t *testing.T) {
	store := NewStore(t.TempDir())
	p := Profile{Name: "lab", Anchor: script.Point{X: 1, Y: 2}}
	if err := store.Save(p, false); err != nil {
		t.Fatalf("Save: %v", err)
	}

	p.Anchor = script.Point{X: 9, Y: 9}
	if err := store.Save(p, false); !errors.Is(err, ErrProfileExists) {
		t.Fatalf("expected ErrProfileExists, got %v", err)
	}
	if err := store.Save(p, true); err != nil {
		t.Fatalf("Save with overwrite: %v", err)
	}

	got, err := store.Load("lab")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Anchor != (script.Point{X: 9, Y: 9}) {
		t.Errorf("anchor after overwrite = %v", got.Anchor)
	}
}

func TestLoadMissingProfile(t *testing.T) {
	store := NewStore(t.TempDir())
	if _, err := store.Load("nope"); !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
}

func TestListSorted(t *testing.T) {
	store := NewStore(t.TempDir())
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := store.Save(Profile{Name: name}, false); err != nil {
			t.Fatalf("Save %s: %v", name, err)
		}
	}
	names, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"alpha", "mid", "zeta"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("List = %v, want %v", names, want)
	}
}

func TestCaptureUsesAnchorFunc(t *testing.T) {
	store := NewStore(t.TempDir())
	anchor := func() (script.Point, script.Size, error) {
		return script.Point{X: 300, Y: 250}, script.Size{Width: 1024, Height: 768}, nil
	}

	p, err := store.Capture("bench", anchor, false)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if p.Anchor != (script.Point{X: 300, Y: 250}) {
		t.Errorf("anchor = %v", p.Anchor)
	}
	if p.CapturedAt.IsZero() {
		t.Error("captured_at should be set")
	}

	loaded, err := store.Load("bench")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Size != (script.Size{Width: 1024, Height: 768}) {
		t.Errorf("size = %v", loaded.Size)
	}
}
