package catalog

import (
	"context"
	"errors"
	"time"
)

// Snapshot is the full persisted state of a Store.
type Snapshot struct {
	Collections map[Collection][]Record `json:"collections"`
	Slots       map[Slot]Singleton      `json:"slots"`
	NextIDs     map[Collection]int64    `json:"next_ids"`
	SavedAt     time.Time               `json:"saved_at"`
}

// Snapshotter persists snapshots. Save is called with the store's write
// lock held and must not retain snap after returning.
type Snapshotter interface {
	Save(ctx context.Context, snap Snapshot) error
	Load(ctx context.Context) (Snapshot, error)
}

// NopSnapshotter discards every snapshot.
type NopSnapshotter struct{}

// Save does nothing.
func (NopSnapshotter) Save(context.Context, Snapshot) error { return nil }

// Load always reports ErrNoSnapshot.
func (NopSnapshotter) Load(context.Context) (Snapshot, error) { return Snapshot{}, ErrNoSnapshot }

func isNoSnapshot(err error) bool {
	return errors.Is(err, ErrNoSnapshot)
}
