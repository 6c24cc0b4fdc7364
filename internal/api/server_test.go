package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nerrad567/input-dock-core/internal/auth"
	"github.com/nerrad567/input-dock-core/internal/controller"
	"github.com/nerrad567/input-dock-core/internal/eventbus"
	"github.com/nerrad567/input-dock-core/internal/focus"
	"github.com/nerrad567/input-dock-core/internal/infrastructure/config"
	"github.com/nerrad567/input-dock-core/internal/infrastructure/logging"
	"github.com/nerrad567/input-dock-core/internal/journal"
)

const testJWTSecret = "test-secret-key-at-least-32-characters-long"

// stubProvider satisfies the discovery provider interface with canned data.
type stubProvider struct {
	devices         []controller.RawDevice
	keyboard        bool
	discoveryCalled bool
}

func (p *stubProvider) EnumerateConnected() []controller.RawDevice { return p.devices }
func (p *stubProvider) KeyboardPresent() bool                      { return p.keyboard }
func (p *stubProvider) Subscribe(controller.DiscoveryObserver)     {}
func (p *stubProvider) Unsubscribe()                               {}
func (p *stubProvider) StopWirelessDiscovery()                     {}

func (p *stubProvider) StartWirelessDiscovery(completion func()) {
	p.discoveryCalled = true
	if completion != nil {
		completion()
	}
}

// stubEnvironment reports a fixed focus signal for every surface.
type stubEnvironment struct {
	foreground bool
	raw        bool
	supported  bool
}

func (e *stubEnvironment) ForegroundActive(string) bool { return e.foreground }
func (e *stubEnvironment) MultiWindowMode(string) bool  { return false }
func (e *stubEnvironment) RawFocus(string) (bool, bool) { return e.raw, e.supported }

// testServer creates a Server with a manager fed by a stub provider.
func testServer(t *testing.T) (*Server, *controller.Manager, *stubProvider) {
	t.Helper()

	bus := eventbus.New()
	provider := &stubProvider{}
	manager := controller.NewManager(provider, bus)
	tracker := focus.NewTracker(bus, &stubEnvironment{foreground: true}, time.Millisecond)

	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 0,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		WS: config.WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logger:  log,
		Manager: manager,
		Tracker: tracker,
		Bus:     bus,
		Version: "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	return srv, manager, provider
}

// setupJournalDB creates an in-memory SQLite database with the journal schema.
func setupJournalDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE device_journal (
			id          TEXT PRIMARY KEY,
			device_id   TEXT NOT NULL,
			device_name TEXT NOT NULL DEFAULT '',
			kind        TEXT NOT NULL,
			slot        INTEGER NOT NULL DEFAULT -1,
			action      TEXT NOT NULL CHECK (action IN ('connect', 'disconnect')),
			created_at  TEXT NOT NULL
		);`

	if _, execErr := db.Exec(schema); execErr != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", execErr)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// ─── Health Endpoint Tests ─────────────────────────────────────────

func TestHealth(t *testing.T) {
	srv, _, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("health status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if resp["status"] != "ok" {
		t.Errorf("status = %v, want ok", resp["status"])
	}
	if resp["version"] != "test" {
		t.Errorf("version = %v, want test", resp["version"])
	}
}

func TestHealth_ContentType(t *testing.T) {
	srv, _, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}
}

// ─── Middleware Tests ──────────────────────────────────────────────

func TestRequestID_Generated(t *testing.T) {
	srv, _, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header to be set")
	}
}

func TestRequestID_PreservesClient(t *testing.T) {
	srv, _, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q, want %q", got, "client-123")
	}
}

func TestCORS_Preflight(t *testing.T) {
	srv, _, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("ACAO = %q, want %q", got, "http://localhost:3000")
	}
}

// ─── Device Endpoint Tests ─────────────────────────────────────────

func TestListDevices_Empty(t *testing.T) {
	srv, _, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if count, _ := resp["count"].(float64); count != 0 {
		t.Errorf("count = %v, want 0", resp["count"])
	}
}

func TestListDevices_Connected(t *testing.T) {
	srv, manager, _ := testServer(t)
	router := srv.buildRouter()

	manager.HandleConnect(controller.RawDevice{ID: "/dev/hidraw0#SN-1", Name: "Pad A", Kind: controller.KindGamepad})
	manager.HandleConnect(controller.RawDevice{ID: "/dev/hidraw1#SN-2", Name: "Pad B", Kind: controller.KindGamepad})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp struct {
		Devices []controller.Device `json:"devices"`
		Count   int                 `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if resp.Count != 2 {
		t.Fatalf("count = %d, want 2", resp.Count)
	}
	if resp.Devices[0].Name != "Pad A" || resp.Devices[0].Slot != 0 {
		t.Errorf("first device = %+v, want Pad A in slot 0", resp.Devices[0])
	}
}

func TestGetDevice(t *testing.T) {
	srv, manager, _ := testServer(t)
	router := srv.buildRouter()

	manager.HandleConnect(controller.RawDevice{ID: "/dev/hidraw0#SN-1", Name: "Pad A", Kind: controller.KindGamepad})

	path := "/api/v1/devices/" + url.PathEscape("/dev/hidraw0#SN-1")
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var dev controller.Device
	if err := json.Unmarshal(w.Body.Bytes(), &dev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if dev.ID != "/dev/hidraw0#SN-1" {
		t.Errorf("id = %q, want /dev/hidraw0#SN-1", dev.ID)
	}
}

func TestGetDevice_NotFound(t *testing.T) {
	srv, _, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices/nope", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestDeviceStats(t *testing.T) {
	srv, manager, _ := testServer(t)
	router := srv.buildRouter()

	manager.HandleConnect(controller.RawDevice{ID: "g1", Name: "Pad", Kind: controller.KindGamepad})
	manager.HandleKeyboardPresenceChanged(true)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices/stats", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var stats controller.Stats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if stats.Total != 2 || stats.Gamepads != 1 || stats.Keyboards != 1 {
		t.Errorf("stats = %+v, want 2 total, 1 gamepad, 1 keyboard", stats)
	}
}

func TestSetDeviceSlot(t *testing.T) {
	srv, manager, _ := testServer(t)
	router := srv.buildRouter()

	manager.SetAutoAssignSlots(false)
	manager.HandleConnect(controller.RawDevice{ID: "g1", Name: "Pad", Kind: controller.KindGamepad})

	body := strings.NewReader(`{"slot": 3}`)
	req := httptest.NewRequest(http.MethodPut, "/api/v1/devices/g1/slot", body)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}

	dev, ok := manager.GetDevice("g1")
	if !ok || dev.Slot != 3 {
		t.Errorf("device slot = %+v, want slot 3", dev)
	}
}

func TestSetDeviceSlot_InvalidSlot(t *testing.T) {
	srv, manager, _ := testServer(t)
	router := srv.buildRouter()

	manager.HandleConnect(controller.RawDevice{ID: "g1", Name: "Pad", Kind: controller.KindGamepad})

	body := strings.NewReader(`{"slot": -5}`)
	req := httptest.NewRequest(http.MethodPut, "/api/v1/devices/g1/slot", body)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestSetDeviceSlot_NotFound(t *testing.T) {
	srv, _, _ := testServer(t)
	router := srv.buildRouter()

	body := strings.NewReader(`{"slot": 0}`)
	req := httptest.NewRequest(http.MethodPut, "/api/v1/devices/nope/slot", body)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestWirelessDiscovery(t *testing.T) {
	srv, _, provider := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/discovery/wireless", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusAccepted)
	}
	if !provider.discoveryCalled {
		t.Error("expected discovery to be started on the provider")
	}
}

// ─── Journal Endpoint Tests ────────────────────────────────────────

func TestListJournal(t *testing.T) {
	srv, _, _ := testServer(t)
	repo := journal.NewSQLiteRepository(setupJournalDB(t))
	srv.journalRepo = repo
	router := srv.buildRouter()

	entry := &journal.Entry{
		DeviceID:   "g1",
		DeviceName: "Pad A",
		Kind:       controller.KindGamepad,
		Slot:       0,
		Action:     journal.ActionConnect,
	}
	if err := repo.Create(context.Background(), entry); err != nil {
		t.Fatalf("Create: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/journal?device_id=g1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var result journal.ListResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if result.Total != 1 || len(result.Entries) != 1 {
		t.Fatalf("result = %+v, want one entry", result)
	}
	if result.Entries[0].DeviceID != "g1" {
		t.Errorf("device_id = %q, want g1", result.Entries[0].DeviceID)
	}
}

func TestListJournal_InvalidAction(t *testing.T) {
	srv, _, _ := testServer(t)
	srv.journalRepo = journal.NewSQLiteRepository(setupJournalDB(t))
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/journal?action=bogus", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestListJournal_NotConfigured(t *testing.T) {
	srv, _, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/journal", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

// ─── Focus Endpoint Tests ──────────────────────────────────────────

func TestGetFocus_Untracked(t *testing.T) {
	srv, _, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/focus/display-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["has_focus"] != true {
		t.Errorf("has_focus = %v, want true for untracked surface", resp["has_focus"])
	}
	if resp["tracked"] != false {
		t.Errorf("tracked = %v, want false", resp["tracked"])
	}
}

func TestGetFocus_Tracked(t *testing.T) {
	srv, _, _ := testServer(t)
	router := srv.buildRouter()

	srv.tracker.StartTracking("display-1")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/focus/display-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["tracked"] != true {
		t.Errorf("tracked = %v, want true", resp["tracked"])
	}
}

func TestSetEnvironment_PublishesBusEvents(t *testing.T) {
	srv, _, _ := testServer(t)
	router := srv.buildRouter()

	var entered, exited int
	srv.bus.Subscribe(focus.EventEnvironmentEntered, "display-1", func(string, any) { entered++ })
	srv.bus.Subscribe(focus.EventEnvironmentExited, "display-1", func(string, any) { exited++ })

	req := httptest.NewRequest(http.MethodPost, "/api/v1/focus/display-1/environment",
		strings.NewReader(`{"entered": true}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if entered != 1 || exited != 0 {
		t.Errorf("events = %d entered / %d exited, want 1/0", entered, exited)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/focus/display-1/environment",
		strings.NewReader(`{"entered": false}`))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if exited != 1 {
		t.Errorf("exited events = %d, want 1", exited)
	}
}

func TestSetEnvironment_InvalidBody(t *testing.T) {
	srv, _, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/focus/display-1/environment",
		strings.NewReader("not json"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// ─── Metrics Endpoint Tests ────────────────────────────────────────

func TestMetrics(t *testing.T) {
	srv, manager, _ := testServer(t)
	router := srv.buildRouter()

	manager.HandleConnect(controller.RawDevice{ID: "g1", Name: "Pad", Kind: controller.KindGamepad})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var metrics SystemMetrics
	if err := json.Unmarshal(w.Body.Bytes(), &metrics); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if metrics.Version != "test" {
		t.Errorf("version = %q, want test", metrics.Version)
	}
	if metrics.Devices.Total != 1 || metrics.Devices.Gamepads != 1 {
		t.Errorf("devices = %+v, want 1 gamepad", metrics.Devices)
	}
	if metrics.Runtime.Goroutines <= 0 {
		t.Errorf("goroutines = %d, want > 0", metrics.Runtime.Goroutines)
	}
}

// ─── Auth Middleware Tests ─────────────────────────────────────────

func authServer(t *testing.T) (*Server, *controller.Manager) {
	t.Helper()

	srv, manager, _ := testServer(t)
	srv.secCfg = config.SecurityConfig{
		JWT: config.JWTConfig{
			Enabled: true,
			Secret:  testJWTSecret,
		},
	}
	return srv, manager
}

func TestAuth_MissingToken(t *testing.T) {
	srv, _ := authServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestAuth_ValidToken(t *testing.T) {
	srv, _ := authServer(t)
	router := srv.buildRouter()

	token, err := auth.GenerateAccessToken("monitor", auth.RoleReader, testJWTSecret, 15)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
}

func TestAuth_InvalidToken(t *testing.T) {
	srv, _ := authServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestAuth_ReaderCannotAssignSlot(t *testing.T) {
	srv, manager := authServer(t)
	router := srv.buildRouter()

	manager.HandleConnect(controller.RawDevice{ID: "g1", Name: "Pad", Kind: controller.KindGamepad})

	token, err := auth.GenerateAccessToken("monitor", auth.RoleReader, testJWTSecret, 15)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	body := strings.NewReader(`{"slot": 2}`)
	req := httptest.NewRequest(http.MethodPut, "/api/v1/devices/g1/slot", body)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

func TestAuth_OperatorCanAssignSlot(t *testing.T) {
	srv, manager := authServer(t)
	router := srv.buildRouter()

	manager.HandleConnect(controller.RawDevice{ID: "g1", Name: "Pad", Kind: controller.KindGamepad})

	token, err := auth.GenerateAccessToken("admin", auth.RoleOperator, testJWTSecret, 15)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	body := strings.NewReader(`{"slot": 2}`)
	req := httptest.NewRequest(http.MethodPut, "/api/v1/devices/g1/slot", body)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
}

// ─── WebSocket Ticket Tests ────────────────────────────────────────

func TestWSTicket_SingleUse(t *testing.T) {
	srv, _, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/ws-ticket", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	ticket, ok := resp["ticket"].(string)
	if !ok || ticket == "" {
		t.Fatal("expected ticket to be a non-empty string")
	}

	if !srv.tickets.redeem(ticket) {
		t.Error("ticket should be valid on first use")
	}
	if srv.tickets.redeem(ticket) {
		t.Error("ticket should not be valid on second use")
	}
}

func TestWSTicket_Expiry(t *testing.T) {
	store := newTicketStore()
	ticket := store.issue()

	store.mu.Lock()
	store.pending[ticket] = time.Now().Add(-1 * time.Second)
	store.mu.Unlock()

	if store.redeem(ticket) {
		t.Error("expired ticket should not be valid")
	}
}

func TestWSTicket_PerServerStore(t *testing.T) {
	a, _, _ := testServer(t)
	b, _, _ := testServer(t)

	ticket := a.tickets.issue()
	if b.tickets.redeem(ticket) {
		t.Error("ticket issued by one server should not redeem on another")
	}
	if !a.tickets.redeem(ticket) {
		t.Error("ticket should redeem on the issuing server")
	}
}

func TestWSTicket_SweepDropsExpired(t *testing.T) {
	store := newTicketStore()
	live := store.issue()
	stale := store.issue()

	store.mu.Lock()
	store.pending[stale] = time.Now().Add(-1 * time.Second)
	store.mu.Unlock()

	store.sweep()

	store.mu.Lock()
	_, staleLeft := store.pending[stale]
	_, liveLeft := store.pending[live]
	store.mu.Unlock()

	if staleLeft {
		t.Error("sweep should remove expired tickets")
	}
	if !liveLeft {
		t.Error("sweep should keep unexpired tickets")
	}
}

// ─── Bus Relay Tests ───────────────────────────────────────────────

func TestSubscribeBusEvents(t *testing.T) {
	srv, _, _ := testServer(t)
	srv.hub = NewHub(srv.wsCfg, srv.logger)

	srv.subscribeBusEvents()
	if got := len(srv.busSubs); got != 3 {
		t.Fatalf("bus subscriptions = %d, want 3", got)
	}

	if n := srv.bus.SubscriberCount(controller.EventDeviceConnected, ""); n != 1 {
		t.Errorf("device.connected subscribers = %d, want 1", n)
	}
	if n := srv.bus.SubscriberCount(focus.EventFocusChanged, ""); n != 1 {
		t.Errorf("focus.changed subscribers = %d, want 1", n)
	}

	for _, sub := range srv.busSubs {
		sub.Cancel()
	}
	if n := srv.bus.SubscriberCount(controller.EventDeviceConnected, ""); n != 0 {
		t.Errorf("device.connected subscribers after cancel = %d, want 0", n)
	}
}
