package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

func TestManager_Lifecycle(t *testing.T) {
	m := NewManager(Deps{}, testSettings(newClock()), time.Minute)
	s := m.Create()
	if _, err := uuid.Parse(s.ID()); err != nil {
		t.Fatalf("session id %q is not a uuid: %v", s.ID(), err)
	}
	if !s.Snapshot().PanelOpen {
		t.Fatalf("created session should have its panel open")
	}
	got, err := m.Get(s.ID())
	if err != nil || got != s {
		t.Fatalf("Get: %v", err)
	}
	if m.Len() != 1 {
		t.Fatalf("len=%d", m.Len())
	}
	if err := m.Delete(s.ID()); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := m.Get(s.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Get after delete: err=%v", err)
	}
	if err := m.Delete(s.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("second Delete: err=%v", err)
	}
	if s.Snapshot().PanelOpen {
		t.Fatalf("deleted session should be closed")
	}
}

func TestManager_SweepExpiresIdleSessions(t *testing.T) {
	c := newClock()
	m := NewManager(Deps{}, testSettings(c), 10*time.Minute)
	old := m.Create()
	c.Advance(6 * time.Minute)
	fresh := m.Create()
	c.Advance(5 * time.Minute)

	if n := m.Sweep(); n != 1 {
		t.Fatalf("swept=%d want 1", n)
	}
	if _, err := m.Get(old.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("old session should be gone")
	}
	if _, err := m.Get(fresh.ID()); err != nil {
		t.Fatalf("fresh session should survive: %v", err)
	}

	// activity resets the idle timer
	c.Advance(4 * time.Minute)
	if _, err := fresh.RecordClick(orb.Point{-79.38, 43.65}); err != nil {
		t.Fatalf("RecordClick: %v", err)
	}
	c.Advance(9 * time.Minute)
	if n := m.Sweep(); n != 0 {
		t.Fatalf("recently used session swept")
	}
}

func TestManager_Close(t *testing.T) {
	m := NewManager(Deps{}, testSettings(newClock()), 0)
	a, b := m.Create(), m.Create()
	m.Close()
	if m.Len() != 0 || a.Snapshot().PanelOpen || b.Snapshot().PanelOpen {
		t.Fatalf("Close should end every session")
	}
	if m.Sweep() != 0 {
		t.Fatalf("zero ttl never sweeps")
	}
}
