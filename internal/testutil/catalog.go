// Package testutil starts real catalog registries for peer-side tests.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nerrad567/greenhouse-catalog/internal/api"
	"github.com/nerrad567/greenhouse-catalog/internal/catalog"
	"github.com/nerrad567/greenhouse-catalog/internal/infrastructure/config"
	"github.com/nerrad567/greenhouse-catalog/internal/infrastructure/logging"
)

// Clock is a settable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the fake time forward.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Catalog is a running registry backed by an in-memory store.
type Catalog struct {
	Server *httptest.Server
	Store  *catalog.Store
	Clock  *Clock

	requests atomic.Int64
	failNext atomic.Int64
}

// NewCatalog starts a registry on a loopback port. It is closed when t ends.
func NewCatalog(t *testing.T) *Catalog {
	t.Helper()

	c := &Catalog{
		Store: catalog.NewStore(nil),
		Clock: &Clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.Local)},
	}
	c.Store.SetClock(c.Clock.Now)

	srv, err := api.New(api.Deps{
		Config:  config.APIConfig{Host: "127.0.0.1"},
		Logger:  logging.Discard(),
		Store:   c.Store,
		Version: "test",
	})
	require.NoError(t, err)

	handler := srv.Handler()
	c.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.requests.Add(1)
		if c.failNext.Load() > 0 {
			c.failNext.Add(-1)
			dropConnection(w)
			return
		}
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(c.Server.Close)

	return c
}

// URL returns the registry base URL.
func (c *Catalog) URL() string {
	return c.Server.URL
}

// Requests returns how many requests reached the registry, including dropped ones.
func (c *Catalog) Requests() int64 {
	return c.requests.Load()
}

// FailNext makes the next n requests fail at the transport level.
func (c *Catalog) FailNext(n int) {
	c.failNext.Store(int64(n))
}

// dropConnection closes the connection without answering.
func dropConnection(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		return
	}
	conn.Close()
}
