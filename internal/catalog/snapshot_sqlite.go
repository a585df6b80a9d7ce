package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Section keys in the catalog_snapshot table.
const (
	sectionCollection = "collection:"
	sectionSlot       = "slot:"
	sectionNextIDs    = "next_ids"
	sectionSavedAt    = "saved_at"
)

// SQLiteSnapshotter stores snapshots in the catalog_snapshot table, one row
// per collection, per slot and one for the id counters. Every save replaces
// all rows inside a single transaction.
type SQLiteSnapshotter struct {
	db *sql.DB
}

// NewSQLiteSnapshotter creates a snapshotter over an open, migrated database.
func NewSQLiteSnapshotter(db *sql.DB) *SQLiteSnapshotter {
	return &SQLiteSnapshotter{db: db}
}

// Save replaces the stored snapshot with snap.
func (s *SQLiteSnapshotter) Save(ctx context.Context, snap Snapshot) error {
	rows := make(map[string]any, len(snap.Collections)+len(snap.Slots)+2)
	for c, recs := range snap.Collections {
		if recs == nil {
			recs = []Record{}
		}
		rows[sectionCollection+string(c)] = recs
	}
	for slot, sl := range snap.Slots {
		rows[sectionSlot+string(slot)] = sl
	}
	rows[sectionNextIDs] = snap.NextIDs
	rows[sectionSavedAt] = snap.SavedAt

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting snapshot transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM catalog_snapshot"); err != nil {
		return fmt.Errorf("clearing snapshot: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for section, v := range rows {
		payload, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encoding snapshot section %s: %w", section, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO catalog_snapshot (section, payload, updated_at) VALUES (?, ?, ?)",
			section, string(payload), now,
		); err != nil {
			return fmt.Errorf("writing snapshot section %s: %w", section, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing snapshot: %w", err)
	}
	return nil
}

// Load rebuilds the snapshot from the table. An empty table yields ErrNoSnapshot.
func (s *SQLiteSnapshotter) Load(ctx context.Context) (Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT section, payload FROM catalog_snapshot")
	if err != nil {
		return Snapshot{}, fmt.Errorf("querying snapshot: %w", err)
	}
	defer rows.Close()

	snap := Snapshot{
		Collections: make(map[Collection][]Record),
		Slots:       make(map[Slot]Singleton),
		NextIDs:     make(map[Collection]int64),
	}
	n := 0
	for rows.Next() {
		var section, payload string
		if err := rows.Scan(&section, &payload); err != nil {
			return Snapshot{}, fmt.Errorf("scanning snapshot row: %w", err)
		}
		n++
		if err := decodeSection(&snap, section, []byte(payload)); err != nil {
			return Snapshot{}, err
		}
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("iterating snapshot: %w", err)
	}
	if n == 0 {
		return Snapshot{}, ErrNoSnapshot
	}
	return snap, nil
}

func decodeSection(snap *Snapshot, section string, payload []byte) error {
	var err error
	switch {
	case strings.HasPrefix(section, sectionCollection):
		var recs []Record
		err = json.Unmarshal(payload, &recs)
		snap.Collections[Collection(strings.TrimPrefix(section, sectionCollection))] = recs
	case strings.HasPrefix(section, sectionSlot):
		var sl Singleton
		err = json.Unmarshal(payload, &sl)
		snap.Slots[Slot(strings.TrimPrefix(section, sectionSlot))] = sl
	case section == sectionNextIDs:
		err = json.Unmarshal(payload, &snap.NextIDs)
	case section == sectionSavedAt:
		err = json.Unmarshal(payload, &snap.SavedAt)
	}
	if err != nil {
		return fmt.Errorf("decoding snapshot section %s: %w", section, err)
	}
	return nil
}
