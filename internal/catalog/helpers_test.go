package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.Local)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// memSnapshotter keeps the last saved snapshot and can be told to fail.
type memSnapshotter struct {
	mu    sync.Mutex
	last  *Snapshot
	saves int
	fail  error
}

func (m *memSnapshotter) Save(_ context.Context, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.fail != nil {
		return m.fail
	}
	m.last = &snap
	return nil
}

func (m *memSnapshotter) Load(context.Context) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		return Snapshot{}, ErrNoSnapshot
	}
	return *m.last, nil
}

func (m *memSnapshotter) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// recordingLogger captures error messages for assertions.
type recordingLogger struct {
	noopLogger
	mu     sync.Mutex
	errors []string
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

var errDiskFull = errors.New("disk full")

func newTestStore(t *testing.T) (*Store, *fakeClock, *memSnapshotter) {
	t.Helper()
	snap := &memSnapshotter{}
	clock := newFakeClock()
	s := NewStore(snap)
	s.SetClock(clock.Now)
	return s, clock, snap
}

func deviceDoc(id int64, name string) Document {
	return Document{
		"id":                id,
		"name":              name,
		"endpoints":         []any{"MQTT"},
		"endpoints_details": []any{map[string]any{"topic": "greenhouse/1/" + name}},
		"greenhouse":        "1",
		"resources":         []any{"temperature", "humidity"},
	}
}

func serviceDoc(id int64, name string) Document {
	return Document{
		"id":                id,
		"name":              name,
		"endpoints":         []any{"REST"},
		"endpoints_details": []any{map[string]any{"ip": "10.0.0.5", "port": 8081}},
	}
}

func mustCreate(t *testing.T, s *Store, c Collection, doc Document) {
	t.Helper()
	if _, err := s.Create(c, doc); err != nil {
		t.Fatalf("Create(%s) error = %v", c, err)
	}
}

func mustWriteSlot(t *testing.T, s *Store, slot Slot, doc Document) {
	t.Helper()
	if err := s.WriteSingleton(slot, doc, ModeCreate); err != nil {
		t.Fatalf("WriteSingleton(%s) error = %v", slot, err)
	}
}
