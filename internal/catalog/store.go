package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// flushTimeout bounds a single snapshot save.
const flushTimeout = 5 * time.Second

// Logger defines the logging interface used by the store and reaper.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Store is the in-memory record store.
//
// One RWMutex guards everything: every mutation (create, update, singleton
// write, id allocation, removal, reaper sweep) holds the write lock for its
// whole duration including the snapshot flush; reads hold the read lock.
// Records handed out are deep copies.
type Store struct {
	mu          sync.RWMutex
	collections map[Collection][]Record
	slots       map[Slot]Singleton
	nextID      map[Collection]int64
	idBase      int64

	clock  Clock
	snap   Snapshotter
	logger Logger
}

// NewStore creates an empty store that flushes to snap after every mutation.
// A nil snap disables persistence.
func NewStore(snap Snapshotter) *Store {
	if snap == nil {
		snap = NopSnapshotter{}
	}
	s := &Store{
		slots:  make(map[Slot]Singleton),
		nextID: make(map[Collection]int64),
		idBase: 1,
		clock:  time.Now,
		snap:   snap,
		logger: noopLogger{},
	}
	s.collections = make(map[Collection][]Record, len(requiredFields))
	for _, c := range AllCollections() {
		s.collections[c] = nil
	}
	return s
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	s.logger = logger
}

// SetClock replaces the time source. Used by tests to simulate ageing.
func (s *Store) SetClock(clock Clock) {
	s.mu.Lock()
	s.clock = clock
	s.mu.Unlock()
}

// SetIDBase sets the first identifier AllocateID hands out in a fresh namespace.
func (s *Store) SetIDBase(base int64) {
	s.mu.Lock()
	s.idBase = base
	s.mu.Unlock()
}

// Create stores a new record in c and returns its id.
//
// Rejects with ErrMissingField or ErrInvalidID when doc is malformed and
// ErrRecordExists when the id is taken. Only required fields are kept.
func (s *Store) Create(c Collection, doc Document) (int64, error) {
	id, fields, err := validate(c, doc)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(c, id) >= 0 {
		return 0, fmt.Errorf("%w: %s %d", ErrRecordExists, c.Item(), id)
	}

	s.collections[c] = append(s.collections[c], Record{
		ID:         id,
		Fields:     fields,
		LastUpdate: s.stamp(time.Time{}),
	})
	s.flush("create")
	return id, nil
}

// Update replaces the required fields of an existing record and refreshes
// its last_update. Rejects with ErrRecordNotFound when the id is unknown.
func (s *Store) Update(c Collection, doc Document) (int64, error) {
	id, fields, err := validate(c, doc)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.lastIndexOf(c, id)
	if i < 0 {
		return 0, fmt.Errorf("%w: %s %d", ErrRecordNotFound, c.Item(), id)
	}

	rec := &s.collections[c][i]
	rec.Fields = fields
	rec.LastUpdate = s.stamp(rec.LastUpdate)
	s.flush("update")
	return id, nil
}

// Find returns the record of c whose field equals value. The scan does not
// assume ids are unique: when several records match, the last one wins.
func (s *Store) Find(c Collection, field Field, value string) (Record, bool, error) {
	if !c.Valid() {
		return Record{}, false, fmt.Errorf("%w: %q", ErrUnknownCollection, c)
	}
	field, err := ParseField(c, string(field))
	if err != nil {
		return Record{}, false, err
	}
	if field == FieldID {
		id, err := ParseID(value)
		if err != nil {
			return Record{}, false, fmt.Errorf("%w: id %q", ErrInvalidValue, value)
		}
		value = fmt.Sprint(id)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		found Record
		ok    bool
	)
	for _, rec := range s.collections[c] {
		if rec.String(string(field)) == value {
			found, ok = rec, true
		}
	}
	if !ok {
		return Record{}, false, nil
	}
	return found.Clone(), true, nil
}

// List returns copies of every record in c in insertion order.
func (s *Store) List(c Collection) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, 0, len(s.collections[c]))
	for _, rec := range s.collections[c] {
		out = append(out, rec.Clone())
	}
	return out
}

// ReadSingleton returns the content of slot, which may be empty.
func (s *Store) ReadSingleton(slot Slot) Singleton {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.slots[slot].Clone()
}

// WriteSingleton stores doc in slot. ModeCreate fails with ErrSlotOccupied
// when the slot holds a record; ModeUpdate fails with ErrSlotEmpty when it
// does not.
func (s *Store) WriteSingleton(slot Slot, doc Document, mode Mode) error {
	if !slot.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownCollection, slot)
	}
	fields, err := pick(slot.RequiredFields(), doc)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.slots[slot]
	switch {
	case mode == ModeCreate && cur.Present:
		return fmt.Errorf("%w: %s", ErrSlotOccupied, slot)
	case mode == ModeUpdate && !cur.Present:
		return fmt.Errorf("%w: %s", ErrSlotEmpty, slot)
	}

	s.slots[slot] = Singleton{
		Present: true,
		Record:  Record{Fields: fields, LastUpdate: s.stamp(cur.Record.LastUpdate)},
	}
	s.flush("write " + string(slot))
	return nil
}

// AllocateID returns an identifier never handed out before in the namespace
// of c, regardless of what the collection currently holds.
func (s *Store) AllocateID(c Collection) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, ok := s.nextID[c]
	if !ok || next < s.idBase {
		next = s.idBase
	}
	s.nextID[c] = next + 1
	s.flush("allocate id")
	return next
}

// Remove deletes every record of c with the given id and reports whether
// anything was removed. It is not reachable from the registry boundary;
// tools and tests use it to simulate a catalog that forgot a peer.
func (s *Store) Remove(c Collection, id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.collections[c][:0]
	removed := false
	for _, rec := range s.collections[c] {
		if rec.ID == id {
			removed = true
			continue
		}
		kept = append(kept, rec)
	}
	s.collections[c] = kept
	if removed {
		s.flush("remove")
	}
	return removed
}

// Stats returns the number of records per collection and the number of
// occupied slots under the key "slots".
func (s *Store) Stats() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]int, len(s.collections)+1)
	for c, recs := range s.collections {
		out[string(c)] = len(recs)
	}
	occupied := 0
	for _, sl := range s.slots {
		if sl.Present {
			occupied++
		}
	}
	out["slots"] = occupied
	return out
}

// Restore replaces the in-memory state with the last saved snapshot.
// A missing snapshot leaves the store empty and is not an error.
func (s *Store) Restore(ctx context.Context) error {
	snap, err := s.snap.Load(ctx)
	if err != nil {
		if isNoSnapshot(err) {
			s.logger.Info("no catalog snapshot found, starting empty")
			return nil
		}
		return fmt.Errorf("loading snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range AllCollections() {
		s.collections[c] = sanitise(c, snap.Collections[c])
	}
	s.slots = make(map[Slot]Singleton)
	for _, slot := range AllSlots() {
		if sl, ok := snap.Slots[slot]; ok && sl.Present {
			s.slots[slot] = sl.Clone()
		}
	}
	s.nextID = make(map[Collection]int64)
	for c, n := range snap.NextIDs {
		if c.Valid() {
			s.nextID[c] = n
		}
	}

	s.logger.Info("catalog restored from snapshot",
		"devices", len(s.collections[Devices]),
		"users", len(s.collections[Users]),
		"greenhouses", len(s.collections[Greenhouses]),
		"services", len(s.collections[Services]),
		"saved_at", snap.SavedAt,
	)
	return nil
}

// sweep removes expired records and clears expired slots. It returns the
// removals per collection and the cleared slots.
func (s *Store) sweep(timeouts Timeouts) (map[Collection]int, []Slot, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	removed := make(map[Collection]int)
	for _, c := range AllCollections() {
		ttl, ok := timeouts.Collections[c]
		if !ok || ttl <= 0 {
			continue
		}
		kept := s.collections[c][:0]
		for _, rec := range s.collections[c] {
			if now.Sub(rec.LastUpdate) > ttl {
				removed[c]++
				s.logger.Debug("record expired", "collection", c, "id", rec.ID, "last_update", rec.LastUpdate)
				continue
			}
			kept = append(kept, rec)
		}
		s.collections[c] = kept
	}

	var cleared []Slot
	for _, slot := range AllSlots() {
		ttl, ok := timeouts.Slots[slot]
		sl := s.slots[slot]
		if !ok || ttl <= 0 || !sl.Present {
			continue
		}
		if now.Sub(sl.Record.LastUpdate) > ttl {
			delete(s.slots, slot)
			cleared = append(cleared, slot)
		}
	}

	if len(removed) > 0 || len(cleared) > 0 {
		s.flush("sweep")
	}
	return removed, cleared, now
}

// stamp returns the current time, forced strictly after prev so that every
// accepted write moves last_update forward even within one clock tick.
// Must be called with the write lock held.
func (s *Store) stamp(prev time.Time) time.Time {
	now := s.clock().Round(0)
	if !now.After(prev) {
		now = prev.Add(time.Nanosecond)
	}
	return now
}

func (s *Store) indexOf(c Collection, id int64) int {
	for i, rec := range s.collections[c] {
		if rec.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) lastIndexOf(c Collection, id int64) int {
	recs := s.collections[c]
	for i := len(recs) - 1; i >= 0; i-- {
		if recs[i].ID == id {
			return i
		}
	}
	return -1
}

// flush saves a snapshot. Failures are logged and never undo the mutation.
// Must be called with the write lock held.
func (s *Store) flush(op string) {
	snap := Snapshot{
		Collections: make(map[Collection][]Record, len(s.collections)),
		Slots:       make(map[Slot]Singleton, len(s.slots)),
		NextIDs:     make(map[Collection]int64, len(s.nextID)),
		SavedAt:     s.clock(),
	}
	for c, recs := range s.collections {
		cp := make([]Record, len(recs))
		for i := range recs {
			cp[i] = recs[i].Clone()
		}
		snap.Collections[c] = cp
	}
	for slot, sl := range s.slots {
		snap.Slots[slot] = sl.Clone()
	}
	for c, n := range s.nextID {
		snap.NextIDs[c] = n
	}

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := s.snap.Save(ctx, snap); err != nil {
		s.logger.Error("snapshot flush failed",
			"op", op,
			"error", fmt.Errorf("%w: %w", ErrPersistence, err),
		)
	}
}

// validate checks doc against the required fields of c and returns the
// parsed id and the fields to store (without "id").
func validate(c Collection, doc Document) (int64, map[string]any, error) {
	if !c.Valid() {
		return 0, nil, fmt.Errorf("%w: %q", ErrUnknownCollection, c)
	}
	fields, err := pick(c.RequiredFields(), doc)
	if err != nil {
		return 0, nil, err
	}
	id, err := ParseID(fields[keyID])
	if err != nil {
		return 0, nil, err
	}
	delete(fields, keyID)
	return id, fields, nil
}

// pick copies the required keys out of doc and drops everything else.
func pick(required []string, doc Document) (map[string]any, error) {
	fields := make(map[string]any, len(required))
	for _, key := range required {
		v, ok := doc[key]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingField, key)
		}
		fields[key] = cloneValue(v)
	}
	return fields, nil
}

// sanitise applies the store invariants to records read back from a
// snapshot: required fields only, one record per id (last wins).
func sanitise(c Collection, recs []Record) []Record {
	required := c.RequiredFields()[1:]
	pos := make(map[int64]int, len(recs))
	out := make([]Record, 0, len(recs))
	for _, rec := range recs {
		fields := make(map[string]any, len(required))
		for _, key := range required {
			if v, ok := rec.Fields[key]; ok {
				fields[key] = cloneValue(v)
			}
		}
		clean := Record{ID: rec.ID, Fields: fields, LastUpdate: rec.LastUpdate}
		if i, dup := pos[rec.ID]; dup {
			out[i] = clean
			continue
		}
		pos[rec.ID] = len(out)
		out = append(out, clean)
	}
	return out
}
