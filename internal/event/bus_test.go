package event

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"serial-bridge/internal/model"
)

type recorder struct {
	mu     sync.Mutex
	events []model.Event
}

func (r *recorder) listen(e model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) snapshot() []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Event, len(r.events))
	copy(out, r.events)
	return out
}

func TestBusPreservesEmissionOrder(t *testing.T) {
	bus := NewBus(zap.NewNop())
	rec := &recorder{}
	bus.Subscribe(rec.listen)

	for i := 0; i < 100; i++ {
		bus.Publish(model.NewEvent(model.EventDataReceived, fmt.Sprintf("%d", i)))
	}
	bus.Close()

	events := rec.snapshot()
	if len(events) != 100 {
		t.Fatalf("expected 100 events, got %d", len(events))
	}
	for i, e := range events {
		if e.Data != fmt.Sprintf("%d", i) {
			t.Fatalf("event %d out of order: got %q", i, e.Data)
		}
	}
}

func TestBusFansOutToAllListeners(t *testing.T) {
	bus := NewBus(zap.NewNop())
	first, second := &recorder{}, &recorder{}
	bus.Subscribe(first.listen)
	bus.Subscribe(second.listen)

	bus.Publish(model.NewEvent(model.EventConnected, ""))
	bus.Close()

	if len(first.snapshot()) != 1 || len(second.snapshot()) != 1 {
		t.Errorf("expected each listener to receive 1 event, got %d and %d",
			len(first.snapshot()), len(second.snapshot()))
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus(zap.NewNop())
	rec := &recorder{}
	id := bus.Subscribe(rec.listen)
	bus.Unsubscribe(id)
	bus.Unsubscribe(id)

	bus.Publish(model.NewEvent(model.EventError, "ignored"))
	bus.Close()

	if n := len(rec.snapshot()); n != 0 {
		t.Errorf("expected no events after unsubscribe, got %d", n)
	}
}

func TestBusSurvivesListenerPanic(t *testing.T) {
	bus := NewBus(zap.NewNop())
	rec := &recorder{}
	bus.Subscribe(func(model.Event) { panic("boom") })
	bus.Subscribe(rec.listen)

	bus.Publish(model.NewEvent(model.EventError, "one"))
	bus.Publish(model.NewEvent(model.EventError, "two"))
	bus.Close()

	if n := len(rec.snapshot()); n != 2 {
		t.Errorf("expected 2 events despite panicking listener, got %d", n)
	}
}

func TestBusPublishAfterCloseIsIgnored(t *testing.T) {
	bus := NewBus(zap.NewNop())
	rec := &recorder{}
	bus.Subscribe(rec.listen)
	bus.Close()
	bus.Close()

	bus.Publish(model.NewEvent(model.EventError, "late"))
	if n := len(rec.snapshot()); n != 0 {
		t.Errorf("expected no delivery after close, got %d", n)
	}
}

func TestSubscribeChan(t *testing.T) {
	bus := NewBus(zap.NewNop())
	defer bus.Close()

	_, ch := bus.SubscribeChan(4)
	bus.Publish(model.NewEvent(model.EventDataReceived, "hello"))

	select {
	case e := <-ch:
		if e.Data != "hello" {
			t.Errorf("got %q, want %q", e.Data, "hello")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestHandlersDispatch(t *testing.T) {
	var got []string
	h := Handlers{
		OnDataReceived: func(data string) { got = append(got, "data:"+data) },
		OnError:        func(msg string) { got = append(got, "error:"+msg) },
		OnConnected:    func() { got = append(got, "connected") },
	}
	l := h.Listener()
	l(model.NewEvent(model.EventConnected, ""))
	l(model.NewEvent(model.EventDataReceived, "x"))
	l(model.NewEvent(model.EventError, "y"))
	l(model.NewStateEvent(model.StateClosed, ""))

	want := []string{"connected", "data:x", "error:y"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}
