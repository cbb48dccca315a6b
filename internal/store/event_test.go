package store

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestEventRepository_CreateAndList(t *testing.T) {
	s := newTestStore(t)
	repo := s.Events()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	events := []*Event{
		{ID: "e1", SessionID: "s1", Gesture: "up", TimestampMs: 1000, CreatedAt: base},
		{ID: "e2", SessionID: "s1", Gesture: "down", TimestampMs: 2500, CreatedAt: base.Add(time.Second), Ambiguous: true},
		{ID: "e3", SessionID: "s2", Gesture: "up", TimestampMs: 700, CreatedAt: base.Add(2 * time.Second)},
	}
	for _, e := range events {
		if err := repo.Create(e); err != nil {
			t.Fatalf("failed to create event %s: %v", e.ID, err)
		}
	}

	all, err := repo.List("", 0)
	if err != nil {
		t.Fatalf("failed to list events: %v", err)
	}
	if len(all) != 3 || all[0].ID != "e3" || all[2].ID != "e1" {
		t.Fatalf("List(all) = %v, want newest first", ids(all))
	}

	s1, err := repo.List("s1", 10)
	if err != nil {
		t.Fatalf("failed to list session events: %v", err)
	}
	if len(s1) != 2 || s1[0].ID != "e2" {
		t.Fatalf("List(s1) = %v", ids(s1))
	}
	if !s1[0].Ambiguous || s1[0].Gesture != "down" || s1[0].TimestampMs != 2500 {
		t.Errorf("event fields not persisted: %+v", s1[0])
	}

	limited, err := repo.List("", 1)
	if err != nil {
		t.Fatalf("failed to list events: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("limit 1 returned %d events", len(limited))
	}

	n, err := repo.Count("s1")
	if err != nil || n != 2 {
		t.Errorf("Count(s1) = %d, %v; want 2", n, err)
	}
	n, err = repo.Count("")
	if err != nil || n != 3 {
		t.Errorf("Count() = %d, %v; want 3", n, err)
	}
}

func TestEventRepository_RejectsUnknownGesture(t *testing.T) {
	s := newTestStore(t)

	err := s.Events().Create(&Event{ID: "bad", SessionID: "s", Gesture: "sideways"})
	if err == nil {
		t.Error("schema should reject gestures other than up and down")
	}
}

func TestSettingsRepository(t *testing.T) {
	s := newTestStore(t)
	repo := s.Settings()

	if _, err := repo.Get(SettingActiveProfile); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get on empty settings error = %v, want ErrNotFound", err)
	}

	for i := 0; i < 2; i++ {
		want := fmt.Sprintf("profile-%d", i)
		if err := repo.Set(SettingActiveProfile, want); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		got, err := repo.Get(SettingActiveProfile)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got != want {
			t.Errorf("Get() = %q, want %q", got, want)
		}
	}

	if err := repo.Delete(SettingActiveProfile); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := repo.Delete(SettingActiveProfile); err != nil {
		t.Errorf("second Delete() error = %v", err)
	}
	if _, err := repo.Get(SettingActiveProfile); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete error = %v, want ErrNotFound", err)
	}
}

func ids(events []*Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.ID
	}
	return out
}
