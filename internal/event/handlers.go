package event

import "serial-bridge/internal/model"

// Handlers adapts per-kind callbacks to a Listener. Nil callbacks are skipped.
type Handlers struct {
	OnDataReceived func(data string)
	OnError        func(message string)
	OnConnected    func()
	OnStateChanged func(state model.ConnectionState, reason string)
}

// Listener returns the bus listener dispatching to h
func (h Handlers) Listener() Listener {
	return func(e model.Event) {
		switch e.Type {
		case model.EventDataReceived:
			if h.OnDataReceived != nil {
				h.OnDataReceived(e.Data)
			}
		case model.EventError:
			if h.OnError != nil {
				h.OnError(e.Data)
			}
		case model.EventConnected:
			if h.OnConnected != nil {
				h.OnConnected()
			}
		case model.EventStateChanged:
			if h.OnStateChanged != nil {
				h.OnStateChanged(e.State, e.Data)
			}
		}
	}
}
