package registrar

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/greenhouse-catalog/internal/catalog"
	"github.com/nerrad567/greenhouse-catalog/internal/catalogclient"
	"github.com/nerrad567/greenhouse-catalog/internal/retry"
)

// maxSteps bounds the transitions one Register call may take, so that a
// catalog bouncing between "exists" and "unknown" cannot loop forever.
const maxSteps = 8

// Catalog is the subset of the catalog client the registrar uses.
type Catalog interface {
	AllocateID(ctx context.Context, col catalog.Collection) (int64, error)
	Create(ctx context.Context, col catalog.Collection, doc catalog.Document) (*catalogclient.Response, error)
	Update(ctx context.Context, col catalog.Collection, doc catalog.Document) (*catalogclient.Response, error)
	WriteSingleton(ctx context.Context, slot catalog.Slot, doc catalog.Document, mode catalog.Mode) (*catalogclient.Response, error)
}

var _ Catalog = (*catalogclient.Client)(nil)

// Logger defines the logging interface used by the registrar.
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

// Target is what the registrar keeps alive: a record in a collection or
// the content of a singleton slot.
type Target struct {
	Collection catalog.Collection
	Slot       catalog.Slot
}

// CollectionTarget registers a record in c.
func CollectionTarget(c catalog.Collection) Target {
	return Target{Collection: c}
}

// SlotTarget registers the content of slot.
func SlotTarget(slot catalog.Slot) Target {
	return Target{Slot: slot}
}

func (t Target) String() string {
	if t.Slot != "" {
		return string(t.Slot)
	}
	return string(t.Collection)
}

func (t Target) valid() bool {
	if t.Slot != "" {
		return t.Collection == "" && t.Slot.Valid()
	}
	return t.Collection.Valid()
}

// Config configures a Registrar.
type Config struct {
	Target Target
	// Record is the peer's own record. A missing "id" is allocated on the
	// first registration (collections only).
	Record catalog.Document
	// Retry is the budget of each state within one cycle.
	Retry retry.Policy
	// IdentityFile, when set, receives Record with its allocated id.
	IdentityFile string
}

// Registrar keeps one peer registered with the catalog.
//
// It is driven by the peer's own loop: Register once, then Heartbeat
// periodically (or use Run). Calls are serialised; a Heartbeat never runs
// concurrently with a Register.
type Registrar struct {
	mu     sync.Mutex
	client Catalog
	target Target
	record catalog.Document
	id     int64
	hasID  bool
	policy retry.Policy
	idFile string

	state         State
	lastHeartbeat time.Time
	now           func() time.Time
	logger        Logger
}

// New creates a registrar for cfg.Target using client.
func New(client Catalog, cfg Config) (*Registrar, error) {
	if !cfg.Target.valid() {
		return nil, fmt.Errorf("%w: %+v", ErrInvalidTarget, cfg.Target)
	}
	if len(cfg.Record) == 0 {
		return nil, ErrNoRecord
	}

	r := &Registrar{
		client: client,
		target: cfg.Target,
		record: copyDocument(cfg.Record),
		policy: cfg.Retry,
		idFile: cfg.IdentityFile,
		state:  StateUnidentified,
		now:    time.Now,
		logger: noopLogger{},
	}

	if cfg.Target.Slot == "" {
		if raw, ok := cfg.Record["id"]; ok {
			id, err := catalog.ParseID(raw)
			if err != nil {
				return nil, err
			}
			r.id, r.hasID = id, true
			r.record["id"] = id
		}
	}
	return r, nil
}

// SetLogger sets the logger for the registrar.
func (r *Registrar) SetLogger(logger Logger) {
	r.mu.Lock()
	r.logger = logger
	r.mu.Unlock()
}

// SetRecord replaces the fields published on the next create or update.
// The identifier already held by the registrar is kept.
func (r *Registrar) SetRecord(doc catalog.Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record = copyDocument(doc)
	if r.hasID {
		r.record["id"] = r.id
	}
}

// State returns the current state.
func (r *Registrar) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// ID returns the peer's identifier and whether it has one.
func (r *Registrar) ID() (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.id, r.hasID
}

// LastHeartbeat returns when the catalog last accepted the record.
func (r *Registrar) LastHeartbeat() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastHeartbeat
}

// Register drives the registrar to StateRegistered.
//
// It returns nil when registered and an error wrapping ErrUnreachable when
// a state ran out of retries; the registrar is then StateUnreachable and
// the next call starts a fresh cycle.
func (r *Registrar) Register(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.register(ctx)
}

// Heartbeat refreshes the record. A registrar that is not registered runs
// Register instead. A 400 means the catalog forgot the record: the
// registrar moves to StateRecovering and recreates it in the same call.
func (r *Registrar) Heartbeat(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateRegistered {
		return r.register(ctx)
	}

	status, err := r.write(ctx, catalog.ModeUpdate)
	if err != nil {
		// Stay registered: the record may still be fresh in the catalog.
		r.logger.Warn("heartbeat failed", "target", r.target, "error", err)
		return fmt.Errorf("%w: heartbeat: %w", ErrUnreachable, err)
	}

	switch status {
	case http.StatusOK:
		r.apply(eventUpdated)
		r.lastHeartbeat = r.now()
		return nil
	default:
		r.apply(eventForgotten)
		return r.register(ctx)
	}
}

// Run registers, then heartbeats every interval until ctx is done.
// Unreachable cycles are logged and retried on the next tick.
func (r *Registrar) Run(ctx context.Context, interval time.Duration) {
	if err := r.Register(ctx); err != nil && ctx.Err() == nil {
		r.logger.Warn("initial registration failed, will retry", "target", r.target, "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Heartbeat(ctx); err != nil && ctx.Err() == nil {
				r.logger.Warn("registration cycle failed, will retry", "target", r.target, "error", err)
			}
		}
	}
}

// register runs the state machine until it reaches StateRegistered or
// StateUnreachable. Must be called with mu held.
func (r *Registrar) register(ctx context.Context) error {
	if r.state == StateUnreachable {
		r.apply(eventRestart)
	}

	for step := 0; step < maxSteps; step++ {
		switch r.state {
		case StateRegistered:
			return nil

		case StateUnidentified:
			if err := r.identify(ctx); err != nil {
				return r.exhausted("allocate id", err)
			}
			r.apply(eventIDAllocated)

		case StateRegistering, StateRecovering:
			status, err := r.write(ctx, catalog.ModeCreate)
			if err != nil {
				return r.exhausted("create", err)
			}
			if status == http.StatusCreated {
				r.apply(eventCreated)
				r.lastHeartbeat = r.now()
				continue
			}

			recovering := r.state == StateRecovering
			r.apply(eventConflict)
			if recovering {
				// Back in registering: the next step creates again, then updates.
				continue
			}

			status, err = r.write(ctx, catalog.ModeUpdate)
			if err != nil {
				return r.exhausted("update", err)
			}
			if status == http.StatusOK {
				r.apply(eventUpdated)
				r.lastHeartbeat = r.now()
				continue
			}
			r.apply(eventForgotten)

		default:
			return fmt.Errorf("registrar: unexpected state %s", r.state)
		}
	}

	if r.state == StateRegistered {
		return nil
	}
	return r.exhausted("register", fmt.Errorf("no progress after %d steps", maxSteps))
}

// identify makes sure the registrar holds an identifier, allocating one
// when needed. Must be called with mu held.
func (r *Registrar) identify(ctx context.Context) error {
	if r.target.Slot != "" || r.hasID {
		return nil
	}

	var id int64
	err := retry.Do(ctx, r.policy, func(ctx context.Context) error {
		var err error
		id, err = r.client.AllocateID(ctx, r.target.Collection)
		return err
	})
	if err != nil {
		return err
	}

	r.id, r.hasID = id, true
	r.record["id"] = id
	r.logger.Info("identifier allocated", "target", r.target, "id", id)

	if r.idFile != "" {
		if err := SaveIdentity(r.idFile, r.record); err != nil {
			r.logger.Error("saving identity failed", "path", r.idFile, "error", err)
		}
	}
	return nil
}

// write sends the record as a create or an update under the retry budget.
// It returns the decisive status (2xx or 400); anything else is retried.
// Must be called with mu held.
func (r *Registrar) write(ctx context.Context, mode catalog.Mode) (int, error) {
	var status int
	err := retry.Do(ctx, r.policy, func(ctx context.Context) error {
		resp, err := r.send(ctx, mode)
		if err != nil {
			return err
		}
		switch resp.StatusCode {
		case http.StatusOK, http.StatusCreated, http.StatusBadRequest:
			status = resp.StatusCode
			return nil
		default:
			return fmt.Errorf("%w: %d", catalogclient.ErrUnexpectedStatus, resp.StatusCode)
		}
	})
	return status, err
}

func (r *Registrar) send(ctx context.Context, mode catalog.Mode) (*catalogclient.Response, error) {
	doc := copyDocument(r.record)
	if r.target.Slot != "" {
		return r.client.WriteSingleton(ctx, r.target.Slot, doc, mode)
	}
	if mode == catalog.ModeCreate {
		return r.client.Create(ctx, r.target.Collection, doc)
	}
	return r.client.Update(ctx, r.target.Collection, doc)
}

// exhausted moves to StateUnreachable and builds the error for the caller.
func (r *Registrar) exhausted(op string, err error) error {
	from := r.state
	r.apply(eventExhausted)
	r.logger.Warn("catalog unreachable",
		"target", r.target,
		"op", op,
		"from", from.String(),
		"error", err,
	)
	return fmt.Errorf("%w: %s: %w", ErrUnreachable, op, err)
}

// apply feeds e to the state machine and logs the move.
func (r *Registrar) apply(e event) {
	next, ok := transition(r.state, e)
	if !ok {
		r.logger.Debug("event ignored", "state", r.state.String(), "event", e.String())
		return
	}
	if next != r.state {
		r.logger.Info("registration state changed",
			"target", r.target,
			"from", r.state.String(),
			"to", next.String(),
			"event", e.String(),
		)
	}
	r.state = next
}

func copyDocument(doc catalog.Document) catalog.Document {
	out := make(catalog.Document, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}
