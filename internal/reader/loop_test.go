package reader

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"serial-bridge/internal/model"
)

// scriptedSource returns its chunks in order, then err (if set), then idles.
// With block set, Read closes entered and waits for block instead.
type scriptedSource struct {
	mu      sync.Mutex
	chunks  [][]byte
	err     error
	reads   int
	block   chan struct{}
	entered chan struct{}
	once    sync.Once
}

func (s *scriptedSource) Read(p []byte, timeout time.Duration) (int, error) {
	if s.block != nil {
		s.once.Do(func() { close(s.entered) })
		<-s.block
		return 0, errors.New("port closed")
	}

	s.mu.Lock()
	s.reads++
	if len(s.chunks) > 0 {
		n := copy(p, s.chunks[0])
		s.chunks = s.chunks[1:]
		s.mu.Unlock()
		return n, nil
	}
	err := s.err
	s.mu.Unlock()

	if err != nil {
		return 0, err
	}
	time.Sleep(timeout)
	return 0, nil
}

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnData: func(text string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events = append(r.events, "data:"+text)
		},
		OnError: func(err error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events = append(r.events, "error:"+err.Error())
		},
	}
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func waitDone(t *testing.T, r *Reader) {
	t.Helper()
	select {
	case <-r.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("reader did not terminate")
	}
}

func TestReaderDataThenIOError(t *testing.T) {
	src := &scriptedSource{
		chunks: [][]byte{[]byte("ping\n")},
		err:    errors.New("device detached"),
	}
	rec := &recorder{}
	r := New(src, rec.callbacks(), Options{PollInterval: 5 * time.Millisecond})
	r.Start()
	waitDone(t, r)

	// anything emitted late would show up here
	time.Sleep(20 * time.Millisecond)

	got := rec.snapshot()
	if len(got) != 2 {
		t.Fatalf("events = %q, want data then one error", got)
	}
	if got[0] != "data:ping\n" {
		t.Errorf("first event = %q", got[0])
	}
	if !strings.HasPrefix(got[1], "error:I/O Error: ") || !strings.Contains(got[1], "device detached") {
		t.Errorf("second event = %q", got[1])
	}
	if r.Running() {
		t.Error("reader should not be running after termination")
	}
}

func TestReaderReportsTruncatedSequenceBeforeIOError(t *testing.T) {
	src := &scriptedSource{
		chunks: [][]byte{{'o', 'k', 0xe2, 0x82}},
		err:    errors.New("unplugged"),
	}

	var mu sync.Mutex
	var data []string
	var errs []error
	r := New(src, Callbacks{
		OnData: func(text string) {
			mu.Lock()
			data = append(data, text)
			mu.Unlock()
		},
		OnError: func(err error) {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		},
	}, Options{PollInterval: 5 * time.Millisecond})
	r.Start()
	waitDone(t, r)

	mu.Lock()
	defer mu.Unlock()
	if len(data) != 1 || data[0] != "ok" {
		t.Errorf("data = %q, want [ok]", data)
	}
	if len(errs) != 2 {
		t.Fatalf("errors = %v, want invalid sequence then read failure", errs)
	}
	if !errors.Is(errs[0], model.ErrInvalidUTF8) || !strings.Contains(errs[0].Error(), "2 byte(s)") {
		t.Errorf("first error = %v, want ErrInvalidUTF8 for 2 bytes", errs[0])
	}
	var readErr *model.ReaderError
	if !errors.As(errs[1], &readErr) {
		t.Errorf("second error = %T %v, want *model.ReaderError", errs[1], errs[1])
	}
}

func TestReaderCarriesSplitRunes(t *testing.T) {
	euro := []byte("€") // 3 bytes
	src := &scriptedSource{
		chunks: [][]byte{
			append([]byte("a"), euro[:1]...),
			euro[1:],
		},
	}
	rec := &recorder{}
	r := New(src, rec.callbacks(), Options{PollInterval: 5 * time.Millisecond})
	r.Start()
	defer r.Stop(time.Second)

	deadline := time.Now().Add(time.Second)
	for len(rec.snapshot()) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	got := rec.snapshot()
	want := []string{"data:a", "data:€"}
	if len(got) != len(want) {
		t.Fatalf("events = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestReaderInvalidUTF8KeepsRunning(t *testing.T) {
	src := &scriptedSource{
		chunks: [][]byte{
			{'o', 'k', 0xff, 0xfe},
			[]byte("more"),
		},
	}

	var mu sync.Mutex
	var data []string
	var errs []error
	r := New(src, Callbacks{
		OnData: func(text string) {
			mu.Lock()
			data = append(data, text)
			mu.Unlock()
		},
		OnError: func(err error) {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		},
	}, Options{PollInterval: 5 * time.Millisecond})
	r.Start()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(data)
		mu.Unlock()
		if n >= 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := r.Stop(time.Second); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(data) != 2 || data[0] != "ok" || data[1] != "more" {
		t.Errorf("data = %q", data)
	}
	if len(errs) != 1 || !errors.Is(errs[0], model.ErrInvalidUTF8) {
		t.Errorf("errors = %v, want one ErrInvalidUTF8", errs)
	}
}

func TestReaderStopSuppressesLateEvents(t *testing.T) {
	src := &scriptedSource{block: make(chan struct{}), entered: make(chan struct{})}
	rec := &recorder{}
	r := New(src, rec.callbacks(), Options{PollInterval: 5 * time.Millisecond})
	r.Start()

	select {
	case <-src.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("reader never reached Read")
	}

	if err := r.Stop(20 * time.Millisecond); !errors.Is(err, ErrStopTimeout) {
		t.Fatalf("Stop = %v, want ErrStopTimeout", err)
	}

	// closing the port unblocks the read with an error that must not surface
	close(src.block)
	waitDone(t, r)

	if got := rec.snapshot(); len(got) != 0 {
		t.Errorf("events after stop: %q", got)
	}
}

func TestReaderStopWithoutStart(t *testing.T) {
	r := New(&scriptedSource{}, Callbacks{}, Options{})
	if err := r.Stop(10 * time.Millisecond); err != nil {
		t.Errorf("Stop = %v", err)
	}
	r.Start()
	if r.Running() {
		t.Error("Start after Stop should not launch the loop")
	}
}
