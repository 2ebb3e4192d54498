package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqttpkg "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"serial-bridge/internal/model"
)

type mockToken struct{ err error }

func (t *mockToken) Wait() bool                       { return true }
func (t *mockToken) WaitTimeout(_ time.Duration) bool { return true }
func (t *mockToken) Done() <-chan struct{}            { ch := make(chan struct{}); close(ch); return ch }
func (t *mockToken) Error() error                     { return t.err }

type published struct {
	topic    string
	retained bool
	payload  []byte
}

type mockClient struct {
	messages     []published
	err          error
	disconnected bool
}

func (m *mockClient) IsConnected() bool      { return true }
func (m *mockClient) IsConnectionOpen() bool { return true }
func (m *mockClient) Connect() mqttpkg.Token { return &mockToken{} }
func (m *mockClient) Disconnect(uint)        { m.disconnected = true }
func (m *mockClient) Subscribe(string, byte, mqttpkg.MessageHandler) mqttpkg.Token {
	return &mockToken{}
}
func (m *mockClient) SubscribeMultiple(map[string]byte, mqttpkg.MessageHandler) mqttpkg.Token {
	return &mockToken{}
}
func (m *mockClient) Unsubscribe(...string) mqttpkg.Token     { return &mockToken{} }
func (m *mockClient) AddRoute(string, mqttpkg.MessageHandler) {}
func (m *mockClient) OptionsReader() mqttpkg.ClientOptionsReader {
	opts := mqttpkg.NewClientOptions()
	return mqttpkg.NewOptionsReader(opts)
}
func (m *mockClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqttpkg.Token {
	var b []byte
	switch v := payload.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	}
	m.messages = append(m.messages, published{topic: topic, retained: retained, payload: b})
	return &mockToken{err: m.err}
}

func TestPublishRoutesByType(t *testing.T) {
	mc := &mockClient{}
	p := NewPublisherWithClient(mc, "bridge/events/", zap.NewNop())

	p.Handle(model.NewEvent(model.EventDataReceived, "ping\n"))
	p.Handle(model.NewStateEvent(model.StateConnected, ""))

	if len(mc.messages) != 2 {
		t.Fatalf("publish calls = %d, want 2", len(mc.messages))
	}

	data := mc.messages[0]
	if data.topic != "bridge/events/data_received" || data.retained {
		t.Errorf("data message = %+v", data)
	}
	var e model.Event
	if err := json.Unmarshal(data.payload, &e); err != nil {
		t.Fatal(err)
	}
	if e.Type != model.EventDataReceived || e.Data != "ping\n" {
		t.Errorf("payload = %+v", e)
	}

	state := mc.messages[1]
	if state.topic != "bridge/events/state_changed" || !state.retained {
		t.Errorf("state message = %+v", state)
	}
}

func TestPublishError(t *testing.T) {
	mc := &mockClient{err: errors.New("broker gone")}
	p := NewPublisherWithClient(mc, "bridge", zap.NewNop())

	if err := p.Publish(model.NewEvent(model.EventError, "x")); err == nil {
		t.Fatal("expected an error")
	}
	// Handle logs and swallows the failure
	p.Handle(model.NewEvent(model.EventError, "x"))
}

func TestClose(t *testing.T) {
	mc := &mockClient{}
	NewPublisherWithClient(mc, "bridge", zap.NewNop()).Close()
	if !mc.disconnected {
		t.Error("Close should disconnect")
	}
}
