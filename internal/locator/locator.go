package locator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/nerrad567/greenhouse-catalog/internal/catalog"
	"github.com/nerrad567/greenhouse-catalog/internal/catalogclient"
	"github.com/nerrad567/greenhouse-catalog/internal/retry"
)

// DefaultTTL is how long a resolved address is trusted when Config.TTL is not set.
const DefaultTTL = 5 * time.Minute

// errNotRegistered means the catalog answered but knows no such target.
var errNotRegistered = errors.New("locator: target not registered")

// Catalog is the subset of the catalog client the locator reads through.
type Catalog interface {
	ReadSingleton(ctx context.Context, slot catalog.Slot) (catalog.Singleton, error)
	Get(ctx context.Context, col catalog.Collection, field catalog.Field, value string) (*catalogclient.Response, error)
}

var _ Catalog = (*catalogclient.Client)(nil)

// Logger defines the logging interface used by the locator.
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

// Target names something the locator can resolve.
type Target struct {
	// Slot is set for the broker and device catalog pointers.
	Slot catalog.Slot
	// Service is the name of a record in the services collection.
	Service string
}

// Well-known targets.
var (
	BrokerTarget        = Target{Slot: catalog.Broker}
	DeviceCatalogTarget = Target{Slot: catalog.DeviceCatalog}
)

// ServiceTarget names a generic service by its registered name.
func ServiceTarget(name string) Target {
	return Target{Service: name}
}

// Key is the cache key of the target.
func (t Target) Key() string {
	if t.Slot != "" {
		return string(t.Slot)
	}
	return "service:" + t.Service
}

// Entry is one cached resolution.
type Entry struct {
	Address   Address
	FetchedAt time.Time
}

// Config configures a Locator.
type Config struct {
	// TTL is the staleness window of a cached address. It is independent of
	// the catalog's own record timeouts.
	TTL time.Duration
	// Retry bounds each lookup against the catalog.
	Retry retry.Policy
}

// Locator resolves broker, device catalog and service addresses through
// the catalog and caches them for TTL.
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
type Locator struct {
	client Catalog
	cache  *gocache.Cache
	ttl    time.Duration
	policy retry.Policy
	logger Logger
}

// New creates a locator reading through client.
func New(client Catalog, cfg Config) *Locator {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Locator{
		client: client,
		cache:  gocache.New(ttl, 2*ttl),
		ttl:    ttl,
		policy: cfg.Retry,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the locator.
func (l *Locator) SetLogger(logger Logger) {
	l.logger = logger
}

// ResolveBroker returns the message broker address.
func (l *Locator) ResolveBroker(ctx context.Context) (Address, bool) {
	return l.Resolve(ctx, BrokerTarget)
}

// ResolveDeviceCatalog returns the device catalog address.
func (l *Locator) ResolveDeviceCatalog(ctx context.Context) (Address, bool) {
	return l.Resolve(ctx, DeviceCatalogTarget)
}

// ResolveService returns the address of the service registered as name.
func (l *Locator) ResolveService(ctx context.Context, name string) (Address, bool) {
	return l.Resolve(ctx, ServiceTarget(name))
}

// Resolve returns the address of t.
//
// A cached entry younger than the TTL is returned without contacting the
// catalog. Otherwise the catalog is read under the retry budget. A miss,
// an empty slot or an unreachable catalog returns false and caches
// nothing: the caller defers whatever needed the address.
func (l *Locator) Resolve(ctx context.Context, t Target) (Address, bool) {
	if e, ok := l.Cached(t); ok {
		return e.Address, true
	}

	var addr Address
	err := retry.Do(ctx, l.policy, func(ctx context.Context) error {
		var err error
		addr, err = l.fetch(ctx, t)
		return err
	})
	if err != nil {
		if errors.Is(err, errNotRegistered) || errors.Is(err, errNoAddress) {
			l.logger.Debug("address unknown", "target", t.Key(), "reason", err)
		} else {
			l.logger.Warn("address lookup failed", "target", t.Key(), "error", err)
		}
		return Address{}, false
	}

	l.cache.Set(t.Key(), Entry{Address: addr, FetchedAt: time.Now()}, l.ttl)
	l.logger.Debug("address resolved", "target", t.Key(), "address", addr.String())
	return addr, true
}

// Cached returns the cached entry for t if it is still fresh.
func (l *Locator) Cached(t Target) (Entry, bool) {
	v, ok := l.cache.Get(t.Key())
	if !ok {
		return Entry{}, false
	}
	e, ok := v.(Entry)
	return e, ok
}

// Invalidate drops the cached address of t, for callers that found it dead.
func (l *Locator) Invalidate(t Target) {
	l.cache.Delete(t.Key())
}

// fetch reads t from the catalog once. Answers that cannot change on a
// retry are marked permanent.
func (l *Locator) fetch(ctx context.Context, t Target) (Address, error) {
	if t.Slot != "" {
		sl, err := l.client.ReadSingleton(ctx, t.Slot)
		if err != nil {
			return Address{}, err
		}
		if !sl.Present {
			return Address{}, retry.Permanent(fmt.Errorf("%w: %s is empty", errNotRegistered, t.Slot))
		}
		portKey := "port"
		if t.Slot == catalog.Broker {
			portKey = "port_n"
		}
		addr, err := addressFromFields(sl.Record.Fields, portKey)
		if err != nil {
			return Address{}, retry.Permanent(err)
		}
		return addr, nil
	}

	resp, err := l.client.Get(ctx, catalog.Services, catalog.FieldName, t.Service)
	if err != nil {
		return Address{}, err
	}
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusBadRequest:
		return Address{}, retry.Permanent(fmt.Errorf("%w: service %q", errNotRegistered, t.Service))
	default:
		return Address{}, fmt.Errorf("%w: %d", catalogclient.ErrUnexpectedStatus, resp.StatusCode)
	}

	rec, err := resp.Record()
	if err != nil {
		return Address{}, retry.Permanent(err)
	}
	addr, err := serviceAddress(rec)
	if err != nil {
		return Address{}, retry.Permanent(err)
	}
	return addr, nil
}
