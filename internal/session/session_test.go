package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"serial-bridge/internal/model"
	"serial-bridge/internal/protocol"
)

type fakeConn struct {
	mu         sync.Mutex
	paramsErr  error
	writeErr   error
	written    []byte
	closeCalls int
	closeErr   error
}

func (c *fakeConn) SetParameters(model.PortConfig) error { return c.paramsErr }

func (c *fakeConn) Read(p []byte, timeout time.Duration) (int, error) { return 0, nil }

func (c *fakeConn) Write(p []byte, timeout time.Duration) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	c.written = append(c.written, p...)
	return len(p), nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeCalls++
	return c.closeErr
}

type fakeTransport struct {
	conn    *fakeConn
	openErr error
	opened  []model.PortHandle
}

func (t *fakeTransport) Open(ctx context.Context, port model.PortHandle) (protocol.Connection, error) {
	t.opened = append(t.opened, port)
	if t.openErr != nil {
		return nil, t.openErr
	}
	return t.conn, nil
}

func testBinding() model.DriverBinding {
	return model.DriverBinding{
		Driver: model.DriverFTDI,
		Ports: []model.PortHandle{
			{Name: "/dev/ttyUSB0", Index: 0},
			{Name: "/dev/ttyUSB1", Index: 1},
		},
	}
}

func openErrorReason(t *testing.T, err error) model.OpenReason {
	t.Helper()
	var openErr *model.OpenError
	if !errors.As(err, &openErr) {
		t.Fatalf("expected *model.OpenError, got %T: %v", err, err)
	}
	return openErr.Reason
}

func TestOpenSelectsPortZero(t *testing.T) {
	tr := &fakeTransport{conn: &fakeConn{}}
	s, err := Open(context.Background(), tr, testBinding(), model.DefaultPortConfig(), zap.NewNop())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	if len(tr.opened) != 1 || tr.opened[0].Name != "/dev/ttyUSB0" {
		t.Errorf("opened %v, want only /dev/ttyUSB0", tr.opened)
	}
	if !s.IsOpen() {
		t.Error("session should be open")
	}
}

func TestOpenConnectionRefused(t *testing.T) {
	tr := &fakeTransport{openErr: protocol.ErrPortBusy}
	_, err := Open(context.Background(), tr, testBinding(), model.DefaultPortConfig(), zap.NewNop())
	if got := openErrorReason(t, err); got != model.OpenConnectionRefused {
		t.Errorf("reason = %s, want %s", got, model.OpenConnectionRefused)
	}
}

func TestOpenNoPorts(t *testing.T) {
	tr := &fakeTransport{conn: &fakeConn{}}
	_, err := Open(context.Background(), tr, model.DriverBinding{}, model.DefaultPortConfig(), zap.NewNop())
	if got := openErrorReason(t, err); got != model.OpenConnectionRefused {
		t.Errorf("reason = %s, want %s", got, model.OpenConnectionRefused)
	}
	if len(tr.opened) != 0 {
		t.Errorf("transport should not be touched")
	}
}

func TestOpenConfigurationRejectedClosesConnection(t *testing.T) {
	conn := &fakeConn{paramsErr: protocol.ErrInvalidSettings}
	tr := &fakeTransport{conn: conn}

	_, err := Open(context.Background(), tr, testBinding(), model.DefaultPortConfig(), zap.NewNop())
	if got := openErrorReason(t, err); got != model.OpenConfigurationRejected {
		t.Errorf("reason = %s, want %s", got, model.OpenConfigurationRejected)
	}
	if conn.closeCalls != 1 {
		t.Errorf("half-open connection closed %d times, want 1", conn.closeCalls)
	}
}

func TestOpenInvalidConfig(t *testing.T) {
	tr := &fakeTransport{conn: &fakeConn{}}
	cfg := model.DefaultPortConfig()
	cfg.BaudRate = 0

	_, err := Open(context.Background(), tr, testBinding(), cfg, zap.NewNop())
	if got := openErrorReason(t, err); got != model.OpenConfigurationRejected {
		t.Errorf("reason = %s, want %s", got, model.OpenConfigurationRejected)
	}
}

func TestWrite(t *testing.T) {
	conn := &fakeConn{}
	s, err := Open(context.Background(), &fakeTransport{conn: conn}, testBinding(), model.DefaultPortConfig(), zap.NewNop())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	if err := s.Write(context.Background(), []byte("hello\n"), DefaultWriteTimeout); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if string(conn.written) != "hello\n" {
		t.Errorf("written = %q", conn.written)
	}
	if st := s.Stats(); st.BytesWritten != 6 || st.WriteCount != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestWriteErrors(t *testing.T) {
	tests := []struct {
		name     string
		writeErr error
		want     model.WriteReason
	}{
		{"timeout", protocol.ErrWriteTimeout, model.WriteTimeout},
		{"io failure", errors.New("device gone"), model.WriteIoFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &fakeConn{writeErr: tt.writeErr}
			s, err := Open(context.Background(), &fakeTransport{conn: conn}, testBinding(), model.DefaultPortConfig(), zap.NewNop())
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			defer s.Close()

			err = s.Write(context.Background(), []byte("x"), DefaultWriteTimeout)
			if got := model.WriteErrorReason(err); got != tt.want {
				t.Errorf("reason = %q, want %q (err %v)", got, tt.want, err)
			}
		})
	}
}

func TestWriteAfterCloseIsNotConnected(t *testing.T) {
	conn := &fakeConn{}
	s, err := Open(context.Background(), &fakeTransport{conn: conn}, testBinding(), model.DefaultPortConfig(), zap.NewNop())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	s.Close()

	err = s.Write(context.Background(), []byte("x"), DefaultWriteTimeout)
	if !errors.Is(err, model.ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
	if len(conn.written) != 0 {
		t.Errorf("no transport I/O expected after close")
	}
	if _, err := s.Read(make([]byte, 4), time.Millisecond); !errors.Is(err, model.ErrNotConnected) {
		t.Errorf("Read after close: expected ErrNotConnected, got %v", err)
	}
}

func TestCloseIsIdempotentAndSwallowsErrors(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	conn := &fakeConn{closeErr: errors.New("driver exploded")}
	s, err := Open(context.Background(), &fakeTransport{conn: conn}, testBinding(), model.DefaultPortConfig(), zap.New(core))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	s.Close()
	s.Close()

	if conn.closeCalls != 1 {
		t.Errorf("Close reached driver %d times, want 1", conn.closeCalls)
	}
	if s.IsOpen() {
		t.Error("session should report closed")
	}

	entries := logs.FilterMessage("Error during closing the connection").All()
	if len(entries) != 1 {
		t.Fatalf("got %d close error logs, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["port"]; got != "/dev/ttyUSB0" {
		t.Errorf("log port field = %v, want /dev/ttyUSB0", got)
	}
}
