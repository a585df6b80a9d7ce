package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/greenhouse-catalog/internal/catalog"
	"github.com/nerrad567/greenhouse-catalog/internal/infrastructure/config"
	"github.com/nerrad567/greenhouse-catalog/internal/infrastructure/logging"
)

// testClock is a settable time source shared by the store and the reaper.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// testServer creates a Server backed by an in-memory store with a fake clock.
func testServer(t *testing.T) (*Server, *catalog.Store, *testClock) {
	t.Helper()

	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.Local)}
	store := catalog.NewStore(nil)
	store.SetClock(clock.Now)

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 0,
		},
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  5 * time.Second,
		Logger:       logging.Discard(),
		Store:        store,
		Version:      "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return srv, store, clock
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeMap(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
	return out
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal envelope %q: %v", w.Body.String(), err)
	}
	return env
}

const device7 = `{
	"id": 7,
	"name": "greenhouse-A",
	"endpoints": ["MQTT"],
	"endpoints_details": [{"topic": "greenhouse/1/7"}],
	"greenhouse": "1",
	"resources": ["temperature", "humidity"]
}`

const device7Renamed = `{
	"id": 7,
	"name": "greenhouse-A-north",
	"endpoints": ["MQTT"],
	"endpoints_details": [{"topic": "greenhouse/1/7"}],
	"greenhouse": "1",
	"resources": ["temperature", "humidity"]
}`

// ─── Lifecycle Tests ───────────────────────────────────────────────

func TestNew_RequiresDeps(t *testing.T) {
	store := catalog.NewStore(nil)
	log := logging.Discard()

	if _, err := New(Deps{Store: store}); err == nil {
		t.Error("New() without logger should fail")
	}
	if _, err := New(Deps{Logger: log}); err == nil {
		t.Error("New() without store should fail")
	}
}

func TestStartClose(t *testing.T) {
	srv, _, _ := testServer(t)

	if err := srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start should fail")
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	t.Cleanup(func() { srv.Close() })

	if err := srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error: %v", err)
	}

	resp, err := http.Get("http://" + srv.Addr().String() + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	if err := srv.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}

func TestStart_ListenerTimeouts(t *testing.T) {
	tests := []struct {
		name                          string
		read, write, idle             time.Duration
		wantRead, wantWrite, wantIdle time.Duration
	}{
		{
			name: "from deps",
			read: 7 * time.Second, write: 8 * time.Second, idle: 9 * time.Second,
			wantRead: 7 * time.Second, wantWrite: 8 * time.Second, wantIdle: 9 * time.Second,
		},
		{
			name:     "zero uses defaults",
			wantRead: defaultReadTimeout, wantWrite: defaultWriteTimeout, wantIdle: defaultIdleTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, err := New(Deps{
				Config:       config.APIConfig{Host: "127.0.0.1", Port: 0},
				ReadTimeout:  tt.read,
				WriteTimeout: tt.write,
				IdleTimeout:  tt.idle,
				Logger:       logging.Discard(),
				Store:        catalog.NewStore(nil),
			})
			if err != nil {
				t.Fatalf("New() error: %v", err)
			}
			if err := srv.Start(context.Background()); err != nil {
				t.Fatalf("Start() error: %v", err)
			}
			t.Cleanup(func() { srv.Close() })

			if srv.server.ReadTimeout != tt.wantRead || srv.server.ReadHeaderTimeout != tt.wantRead {
				t.Errorf("read timeouts = %v/%v, want %v", srv.server.ReadTimeout, srv.server.ReadHeaderTimeout, tt.wantRead)
			}
			if srv.server.WriteTimeout != tt.wantWrite {
				t.Errorf("WriteTimeout = %v, want %v", srv.server.WriteTimeout, tt.wantWrite)
			}
			if srv.server.IdleTimeout != tt.wantIdle {
				t.Errorf("IdleTimeout = %v, want %v", srv.server.IdleTimeout, tt.wantIdle)
			}
		})
	}
}

// ─── Ambient Endpoint Tests ────────────────────────────────────────

func TestHealth(t *testing.T) {
	srv, _, _ := testServer(t)
	w := do(t, srv.buildRouter(), http.MethodGet, "/health", "")

	if w.Code != http.StatusOK {
		t.Errorf("health status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	resp := decodeMap(t, w)
	if resp["status"] != "ok" {
		t.Errorf("status = %v, want ok", resp["status"])
	}
	if resp["version"] != "test" {
		t.Errorf("version = %v, want test", resp["version"])
	}
}

func TestIndex(t *testing.T) {
	srv, _, _ := testServer(t)
	w := do(t, srv.buildRouter(), http.MethodGet, "/", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp struct {
		Commands []Command `json:"commands"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := len(catalog.AllCollections())*5 + len(catalog.AllSlots())*3
	if len(resp.Commands) != want {
		t.Errorf("commands = %d, want %d", len(resp.Commands), want)
	}
}

func TestMetrics(t *testing.T) {
	srv, _, _ := testServer(t)
	router := srv.buildRouter()

	if w := do(t, router, http.MethodPost, "/device", device7); w.Code != http.StatusCreated {
		t.Fatalf("create status = %d", w.Code)
	}

	w := do(t, router, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var m SystemMetrics
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m.Records["devices"] != 1 {
		t.Errorf("records[devices] = %d, want 1", m.Records["devices"])
	}
	if m.MQTT.Enabled {
		t.Error("mqtt should be reported disabled without a client")
	}
	if m.Runtime.Goroutines == 0 {
		t.Error("goroutines should be reported")
	}
}

// ─── Middleware Tests ──────────────────────────────────────────────

func TestRequestID_Generated(t *testing.T) {
	srv, _, _ := testServer(t)
	w := do(t, srv.buildRouter(), http.MethodGet, "/health", "")

	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header to be set")
	}
}

func TestRequestID_PreservesClient(t *testing.T) {
	srv, _, _ := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "client-123")
	w := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q, want %q", got, "client-123")
	}
}

func TestBodySizeLimit(t *testing.T) {
	srv, _, _ := testServer(t)
	big := `{"id": 1, "name": "` + strings.Repeat("x", maxRequestBodySize) + `"}`

	w := do(t, srv.buildRouter(), http.MethodPost, "/service", big)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want %d", w.Code, http.StatusRequestEntityTooLarge)
	}
}

func TestRecovery(t *testing.T) {
	srv, _, _ := testServer(t)
	h := srv.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := do(t, h, http.MethodGet, "/", "")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if env := decodeEnvelope(t, w); env.Status != StatusFailure {
		t.Errorf("envelope status = %q, want %q", env.Status, StatusFailure)
	}
}

func TestUnknownRoute(t *testing.T) {
	srv, _, _ := testServer(t)
	router := srv.buildRouter()

	if w := do(t, router, http.MethodGet, "/sensor?id=1", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if w := do(t, router, http.MethodDelete, "/device", ""); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("DELETE status = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
}

// ─── Record Contract Tests ─────────────────────────────────────────

// TestDeviceLifecycle walks a device through create, duplicate create,
// refresh and expiry against the registry contract.
func TestDeviceLifecycle(t *testing.T) {
	srv, store, clock := testServer(t)
	router := srv.buildRouter()

	// Create on an empty collection.
	w := do(t, router, http.MethodPost, "/device", device7)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want %d; body: %s", w.Code, http.StatusCreated, w.Body.String())
	}
	if env := decodeEnvelope(t, w); env.Status != StatusSuccess {
		t.Errorf("create envelope = %+v", env)
	}

	w = do(t, router, http.MethodGet, "/device?id=7", "")
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d, want %d", w.Code, http.StatusOK)
	}
	first := decodeMap(t, w)
	if first["name"] != "greenhouse-A" {
		t.Errorf("name = %v, want greenhouse-A", first["name"])
	}
	firstUpdate, _ := first["last_update"].(string)
	if firstUpdate == "" {
		t.Fatal("last_update should be set")
	}

	// Duplicate create is rejected and changes nothing.
	w = do(t, router, http.MethodPost, "/device", device7Renamed)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("duplicate status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if env := decodeEnvelope(t, w); env.Status != StatusFailure {
		t.Errorf("duplicate envelope = %+v", env)
	}
	if got := decodeMap(t, do(t, router, http.MethodGet, "/device?id=7", "")); got["name"] != "greenhouse-A" {
		t.Errorf("after duplicate name = %v, want greenhouse-A", got["name"])
	}

	// Update changes the field and moves last_update forward.
	clock.Advance(2 * time.Second)
	w = do(t, router, http.MethodPut, "/device", device7Renamed)
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, want %d", w.Code, http.StatusOK)
	}
	updated := decodeMap(t, do(t, router, http.MethodGet, "/device?id=7", ""))
	if updated["name"] != "greenhouse-A-north" {
		t.Errorf("updated name = %v", updated["name"])
	}
	if u, _ := updated["last_update"].(string); u <= firstUpdate {
		t.Errorf("last_update %q should be after %q", u, firstUpdate)
	}

	// Past the timeout with no writes, one sweep expires it.
	reaper := catalog.NewReaper(store, catalog.UniformTimeouts(120*time.Second), time.Minute)
	clock.Advance(121 * time.Second)
	reaper.Sweep()

	if w := do(t, router, http.MethodGet, "/device?id=7", ""); w.Code != http.StatusNotFound {
		t.Errorf("after sweep status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestFindRecord_BadLookups(t *testing.T) {
	srv, _, _ := testServer(t)
	router := srv.buildRouter()
	do(t, router, http.MethodPost, "/device", device7)

	tests := []struct {
		name   string
		target string
		want   int
	}{
		{"by id", "/device?id=7", http.StatusOK},
		{"by upper-case ID", "/device?ID=7", http.StatusOK},
		{"by name", "/device?name=greenhouse-A", http.StatusOK},
		{"by greenhouse", "/device?greenhouse=1", http.StatusOK},
		{"miss", "/device?id=8", http.StatusNotFound},
		{"unknown field", "/device?colour=red", http.StatusBadRequest},
		{"non-numeric id", "/device?id=seven", http.StatusBadRequest},
		{"no parameter", "/device", http.StatusBadRequest},
		{"two parameters", "/device?id=7&name=greenhouse-A", http.StatusBadRequest},
		{"field of another collection", "/device?plant_id=3", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := do(t, router, http.MethodGet, tt.target, ""); w.Code != tt.want {
				t.Errorf("GET %s = %d, want %d; body: %s", tt.target, w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestWriteRejections(t *testing.T) {
	srv, _, _ := testServer(t)
	router := srv.buildRouter()

	tests := []struct {
		name   string
		method string
		target string
		body   string
	}{
		{"malformed json", http.MethodPost, "/device", `{"id": 7,`},
		{"not an object", http.MethodPost, "/device", `[1, 2]`},
		{"missing field", http.MethodPost, "/service", `{"id": 1, "name": "x"}`},
		{"bad id", http.MethodPost, "/service", `{"id": "abc", "name": "x", "endpoints": [], "endpoints_details": []}`},
		{"negative id", http.MethodPost, "/service", `{"id": -1, "name": "x", "endpoints": [], "endpoints_details": []}`},
		{"update unknown", http.MethodPut, "/device", device7},
		{"trailing garbage", http.MethodPost, "/device", device7 + " GARBAGE"},
		{"two objects", http.MethodPost, "/device", device7 + device7Renamed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, tt.method, tt.target, tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusBadRequest, w.Body.String())
			}
			if env := decodeEnvelope(t, w); env.Status != StatusFailure || env.Msg == "" {
				t.Errorf("envelope = %+v", env)
			}
		})
	}

	var list []map[string]any
	w := do(t, router, http.MethodGet, "/services", "")
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("rejected writes left %d services", len(list))
	}

	w = do(t, router, http.MethodGet, "/devices", "")
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("rejected writes left %d devices", len(list))
	}
}

func TestCreate_DropsExtraFields(t *testing.T) {
	srv, _, _ := testServer(t)
	router := srv.buildRouter()

	body := `{"id": 3, "name": "influx_adaptor", "endpoints": ["REST"], "endpoints_details": [], "owner": "ops"}`
	if w := do(t, router, http.MethodPost, "/service", body); w.Code != http.StatusCreated {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}

	got := decodeMap(t, do(t, router, http.MethodGet, "/service?name=influx_adaptor", ""))
	if _, ok := got["owner"]; ok {
		t.Error("extra field should be dropped")
	}
	if got["id"] != float64(3) {
		t.Errorf("id = %v, want 3", got["id"])
	}
}

func TestListCollections(t *testing.T) {
	srv, _, _ := testServer(t)
	router := srv.buildRouter()
	do(t, router, http.MethodPost, "/device", device7)

	for _, c := range catalog.AllCollections() {
		w := do(t, router, http.MethodGet, "/"+string(c), "")
		if w.Code != http.StatusOK {
			t.Errorf("GET /%s = %d", c, w.Code)
			continue
		}
		var list []map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
			t.Fatalf("GET /%s unmarshal: %v", c, err)
		}
		want := 0
		if c == catalog.Devices {
			want = 1
		}
		if len(list) != want {
			t.Errorf("GET /%s returned %d records, want %d", c, len(list), want)
		}
	}
}

func TestAllocateID(t *testing.T) {
	srv, _, _ := testServer(t)
	router := srv.buildRouter()

	next := func(path string) int64 {
		t.Helper()
		w := do(t, router, http.MethodGet, path, "")
		if w.Code != http.StatusOK {
			t.Fatalf("GET %s = %d", path, w.Code)
		}
		var resp struct {
			ID int64 `json:"id"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return resp.ID
	}

	a := next("/new_device_id")
	b := next("/new_device_id")
	if b <= a {
		t.Errorf("ids not increasing: %d then %d", a, b)
	}

	s1 := next("/new_service_id")
	s2 := next("/new_serv_id")
	if s2 <= s1 {
		t.Errorf("service alias shares no namespace: %d then %d", s1, s2)
	}
	if u := next("/new_user_id"); u != 1 {
		t.Errorf("first user id = %d, want 1", u)
	}
}

// ─── Singleton Tests ───────────────────────────────────────────────

func TestSingletons(t *testing.T) {
	srv, _, clock := testServer(t)
	router := srv.buildRouter()

	w := do(t, router, http.MethodGet, "/broker", "")
	if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != "{}" {
		t.Fatalf("empty broker = %d %q, want 200 {}", w.Code, w.Body.String())
	}

	if w := do(t, router, http.MethodPut, "/broker", `{"ip": "10.0.0.2", "port_n": 1883}`); w.Code != http.StatusBadRequest {
		t.Errorf("PUT on empty slot = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if w := do(t, router, http.MethodPost, "/broker", `{"ip": "10.0.0.2"}`); w.Code != http.StatusBadRequest {
		t.Errorf("POST missing port_n = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if w := do(t, router, http.MethodPost, "/broker", `{"ip": "10.0.0.2", "port_n": 1883}`); w.Code != http.StatusCreated {
		t.Fatalf("POST broker = %d, want %d", w.Code, http.StatusCreated)
	}
	if w := do(t, router, http.MethodPost, "/broker", `{"ip": "10.0.0.3", "port_n": 1883}`); w.Code != http.StatusBadRequest {
		t.Errorf("second POST = %d, want %d", w.Code, http.StatusBadRequest)
	}

	got := decodeMap(t, do(t, router, http.MethodGet, "/broker", ""))
	if got["ip"] != "10.0.0.2" || got["port_n"] != float64(1883) {
		t.Errorf("broker = %v", got)
	}
	if _, ok := got["id"]; ok {
		t.Error("singleton should carry no id")
	}
	before, _ := got["last_update"].(string)

	clock.Advance(2 * time.Second)
	if w := do(t, router, http.MethodPut, "/broker", `{"ip": "10.0.0.9", "port_n": 8883}`); w.Code != http.StatusOK {
		t.Fatalf("PUT broker = %d, want %d", w.Code, http.StatusOK)
	}
	got = decodeMap(t, do(t, router, http.MethodGet, "/broker", ""))
	if got["ip"] != "10.0.0.9" {
		t.Errorf("ip = %v, want 10.0.0.9", got["ip"])
	}
	if after, _ := got["last_update"].(string); after <= before {
		t.Errorf("last_update %q should be after %q", after, before)
	}

	if w := do(t, router, http.MethodGet, "/device_catalog", ""); strings.TrimSpace(w.Body.String()) != "{}" {
		t.Errorf("device_catalog = %q, want {}", w.Body.String())
	}
}
