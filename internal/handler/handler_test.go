package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"serial-bridge/internal/config"
	"serial-bridge/internal/discovery"
	"serial-bridge/internal/event"
	"serial-bridge/internal/model"
	"serial-bridge/internal/utils"
)

type fakeController struct {
	mu          sync.Mutex
	state       model.ConnectionState
	starts      int
	shutdowns   int
	shutdownErr error
	writeErr    error
	written     []string
	listeners   map[uuid.UUID]event.Listener
}

func newFakeController() *fakeController {
	return &fakeController{
		state:     model.StateUninitialized,
		listeners: make(map[uuid.UUID]event.Listener),
	}
}

func (f *fakeController) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	f.state = model.StateDiscovering
}

func (f *fakeController) Shutdown(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shutdowns++
	if f.shutdownErr != nil {
		return f.shutdownErr
	}
	f.state = model.StateClosed
	return nil
}

func (f *fakeController) Write(ctx context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.written = append(f.written, text)
	return nil
}

func (f *fakeController) State() model.ConnectionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeController) Status() model.ConnectionStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return model.ConnectionStatus{State: f.state, PortConfig: model.DefaultPortConfig()}
}

func (f *fakeController) Subscribe(listener event.Listener) uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New()
	f.listeners[id] = listener
	return id
}

func (f *fakeController) Unsubscribe(id uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.listeners, id)
}

func (f *fakeController) emit(e model.Event) {
	f.mu.Lock()
	listeners := make([]event.Listener, 0, len(f.listeners))
	for _, l := range f.listeners {
		listeners = append(listeners, l)
	}
	f.mu.Unlock()
	for _, l := range listeners {
		l(e)
	}
}

func (f *fakeController) setState(state model.ConnectionState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = state
}

type fakeScanner struct {
	devices []model.DriverBinding
	err     error
}

func (s *fakeScanner) Scan(ctx context.Context) ([]model.DriverBinding, error) {
	return s.devices, s.err
}

type fakeCatalog struct{}

func (fakeCatalog) SupportedAdapters() []discovery.SupportedAdapter {
	return []discovery.SupportedAdapter{{VendorID: 0x0403, ProductID: 0x6001, Model: "FT232R", Driver: model.DriverFTDI, Ports: 1}}
}

func newTestRouter(controller *fakeController, scanner *fakeScanner) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	logger := zap.NewNop()

	NewHealthHandler(controller, config.Default(), logger).RegisterRoutes(router)
	api := router.Group("/api/v1")
	NewConnectionHandler(controller, time.Second, logger).RegisterRoutes(api)
	NewDiscoveryHandler(scanner, fakeCatalog{}, logger).RegisterRoutes(api)
	return router
}

func doRequest(router http.Handler, method, path string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) utils.APIResponse {
	t.Helper()
	var resp utils.APIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return resp
}

func TestConnectionRoutes(t *testing.T) {
	controller := newFakeController()
	router := newTestRouter(controller, &fakeScanner{})

	w := doRequest(router, http.MethodPost, "/api/v1/connection/start", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("start status = %d", w.Code)
	}
	if controller.starts != 1 {
		t.Errorf("starts = %d, want 1", controller.starts)
	}

	w = doRequest(router, http.MethodGet, "/api/v1/connection", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"state":"DISCOVERING"`) {
		t.Errorf("status = %d %s", w.Code, w.Body.String())
	}

	w = doRequest(router, http.MethodPost, "/api/v1/connection/shutdown", "")
	if w.Code != http.StatusOK || controller.State() != model.StateClosed {
		t.Errorf("shutdown = %d, state %s", w.Code, controller.State())
	}
}

func TestShutdownTimeout(t *testing.T) {
	controller := newFakeController()
	controller.shutdownErr = context.DeadlineExceeded
	router := newTestRouter(controller, &fakeScanner{})

	w := doRequest(router, http.MethodPost, "/api/v1/connection/shutdown", "")
	if w.Code != http.StatusGatewayTimeout {
		t.Errorf("status = %d, want 504", w.Code)
	}
}

func TestWriteRoute(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		writeErr error
		want     int
		wantCode string
	}{
		{"ok", `{"text":"hello"}`, nil, http.StatusOK, ""},
		{"empty text is a bare terminator", `{"text":""}`, nil, http.StatusOK, ""},
		{"missing text", `{}`, nil, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"malformed", `{"text":`, nil, http.StatusBadRequest, "BAD_REQUEST"},
		{"not connected", `{"text":"x"}`, &model.WriteError{Reason: model.WriteNotConnected}, http.StatusConflict, "WRITE_NOT_CONNECTED"},
		{"timeout", `{"text":"x"}`, &model.WriteError{Reason: model.WriteTimeout, Err: errors.New("slow")}, http.StatusGatewayTimeout, "WRITE_TIMEOUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			controller := newFakeController()
			controller.writeErr = tt.writeErr
			router := newTestRouter(controller, &fakeScanner{})

			w := doRequest(router, http.MethodPost, "/api/v1/connection/write", tt.body)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
			resp := decode(t, w)
			if tt.wantCode != "" && (resp.Error == nil || resp.Error.Code != tt.wantCode) {
				t.Errorf("error = %+v, want code %s", resp.Error, tt.wantCode)
			}
		})
	}
}

func TestWriteValidationErrorNamesField(t *testing.T) {
	router := newTestRouter(newFakeController(), &fakeScanner{})

	w := doRequest(router, http.MethodPost, "/api/v1/connection/write", `{"text":null}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}

	var resp struct {
		Data struct {
			ValidationErrors map[string]string `json:"validation_errors"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := resp.Data.ValidationErrors["text"]; got != "required" {
		t.Errorf("validation_errors = %v, want text: required", resp.Data.ValidationErrors)
	}
}

func TestDiscoveryRoutes(t *testing.T) {
	scanner := &fakeScanner{devices: []model.DriverBinding{{
		Driver: model.DriverFTDI,
		Ports:  []model.PortHandle{{Name: "/dev/ttyUSB0"}},
	}}}
	router := newTestRouter(newFakeController(), scanner)

	w := doRequest(router, http.MethodGet, "/api/v1/discovery/devices", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"devices_found":1`) {
		t.Errorf("devices = %d %s", w.Code, w.Body.String())
	}

	scanner.err = &model.DiscoveryError{Op: "list drivers", Err: model.ErrPlatformUnsupported}
	w = doRequest(router, http.MethodGet, "/api/v1/discovery/devices", "")
	if w.Code != http.StatusNotImplemented {
		t.Errorf("unsupported platform status = %d, want 501", w.Code)
	}

	w = doRequest(router, http.MethodGet, "/api/v1/discovery/supported", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "FT232R") {
		t.Errorf("supported = %d %s", w.Code, w.Body.String())
	}
}

func TestHealthRoutes(t *testing.T) {
	controller := newFakeController()
	router := newTestRouter(controller, &fakeScanner{})

	tests := []struct {
		state      model.ConnectionState
		readyCode  int
		healthCode int
	}{
		{model.StateAwaitingPermission, http.StatusServiceUnavailable, http.StatusOK},
		{model.StateConnected, http.StatusOK, http.StatusOK},
		{model.StateFailed, http.StatusServiceUnavailable, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			controller.setState(tt.state)
			if w := doRequest(router, http.MethodGet, "/ready", ""); w.Code != tt.readyCode {
				t.Errorf("/ready = %d, want %d", w.Code, tt.readyCode)
			}
			if w := doRequest(router, http.MethodGet, "/health", ""); w.Code != tt.healthCode {
				t.Errorf("/health = %d, want %d", w.Code, tt.healthCode)
			}
			if w := doRequest(router, http.MethodGet, "/live", ""); w.Code != http.StatusOK {
				t.Errorf("/live = %d", w.Code)
			}
		})
	}
}

func readMessage(t *testing.T, conn *websocket.Conn, wantType string) WebSocketMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var msg WebSocketMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %s: %v", wantType, err)
		}
		if msg.Type == wantType {
			return msg
		}
	}
}

func TestWebSocketEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	controller := newFakeController()
	ws := NewWebSocketHandler(controller, []string{"*"}, zap.NewNop())
	defer ws.Close()

	router := gin.New()
	ws.RegisterRoutes(router.Group("/ws"))
	server := httptest.NewServer(router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	readMessage(t, conn, "initial_status")

	controller.emit(model.NewEvent(model.EventDataReceived, "ping\n"))
	msg := readMessage(t, conn, "event")
	data, _ := msg.Data.(map[string]interface{})
	if data["type"] != string(model.EventDataReceived) || data["data"] != "ping\n" {
		t.Errorf("event = %+v", msg.Data)
	}

	if err := conn.WriteJSON(WebSocketMessage{Type: "write", Data: map[string]string{"text": "hello"}, RequestID: "r1"}); err != nil {
		t.Fatal(err)
	}
	result := readMessage(t, conn, "write_result")
	if result.RequestID != "r1" {
		t.Errorf("request id = %q", result.RequestID)
	}
	if data, _ := result.Data.(map[string]interface{}); data["success"] != true {
		t.Errorf("write result = %+v", result.Data)
	}
	controller.mu.Lock()
	written := append([]string(nil), controller.written...)
	controller.mu.Unlock()
	if len(written) != 1 || written[0] != "hello" {
		t.Errorf("written = %v", written)
	}

	if err := conn.WriteJSON(WebSocketMessage{Type: "ping"}); err != nil {
		t.Fatal(err)
	}
	readMessage(t, conn, "pong")

	if err := conn.WriteJSON(WebSocketMessage{Type: "write", Data: map[string]string{}}); err != nil {
		t.Fatal(err)
	}
	readMessage(t, conn, "error")
}

func TestWebSocketWriteNotConnected(t *testing.T) {
	gin.SetMode(gin.TestMode)
	controller := newFakeController()
	controller.writeErr = &model.WriteError{Reason: model.WriteNotConnected}
	ws := NewWebSocketHandler(controller, nil, zap.NewNop())
	defer ws.Close()

	router := gin.New()
	ws.RegisterRoutes(router.Group("/ws"))
	server := httptest.NewServer(router)
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/ws/events", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(WebSocketMessage{Type: "write", Data: map[string]string{"text": "x"}}); err != nil {
		t.Fatal(err)
	}
	result := readMessage(t, conn, "write_result")
	data, _ := result.Data.(map[string]interface{})
	if data["success"] != false || data["reason"] != string(model.WriteNotConnected) {
		t.Errorf("write result = %+v", result.Data)
	}
}

func TestCheckOrigin(t *testing.T) {
	h := &WebSocketHandler{allowedOrigins: []string{"http://ui.local"}}

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://ui.local", true},
		{"http://evil.example", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/ws/events", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		if got := h.checkOrigin(r); got != tt.want {
			t.Errorf("checkOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}
