// internal/reader/loop.go
package reader

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"serial-bridge/internal/model"
)

const (
	DefaultPollInterval = 100 * time.Millisecond
	DefaultBufferSize   = 4096
)

// ErrStopTimeout is returned by Stop when the loop did not exit within the
// grace period.
var ErrStopTimeout = errors.New("reader did not stop within grace period")

// Source is what the loop reads from. Read returns (0, nil) when nothing
// arrived within timeout.
type Source interface {
	Read(p []byte, timeout time.Duration) (int, error)
}

// Callbacks receive the loop's output. They are invoked from the loop
// goroutine, one at a time, and never after Stop has returned.
type Callbacks struct {
	OnData  func(text string)
	OnError func(err error)
}

// Options tunes the loop
type Options struct {
	PollInterval time.Duration
	BufferSize   int
	Logger       *zap.Logger
}

// Reader drains a Source in a dedicated goroutine
type Reader struct {
	source    Source
	callbacks Callbacks
	opts      Options
	logger    *zap.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}

	// emitMutex makes "stopped" and the act of emitting mutually exclusive
	emitMutex sync.Mutex
	stopped   bool

	mutex   sync.RWMutex
	running bool
}

// New creates a reader bound to source. It does not start reading.
func New(source Source, callbacks Callbacks, opts Options) *Reader {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Reader{
		source:    source,
		callbacks: callbacks,
		opts:      opts,
		logger:    opts.Logger.With(zap.String("component", "reader")),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the loop. Subsequent calls are no-ops.
func (r *Reader) Start() {
	r.startOnce.Do(func() {
		r.mutex.Lock()
		r.running = true
		r.mutex.Unlock()

		go r.run()
		r.logger.Info("Reader loop started",
			zap.Duration("poll_interval", r.opts.PollInterval),
			zap.Int("buffer_size", r.opts.BufferSize),
		)
	})
}

// Stop signals the loop to exit and waits up to grace for it to do so. No
// callback runs after Stop returns, even when the grace period expires.
func (r *Reader) Stop(grace time.Duration) error {
	r.stopOnce.Do(func() {
		r.emitMutex.Lock()
		r.stopped = true
		r.emitMutex.Unlock()
		close(r.stop)
	})

	// a reader that was never started has nothing to wait for
	r.startOnce.Do(func() { close(r.done) })

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-r.done:
		return nil
	case <-timer.C:
		r.logger.Warn("Reader loop still blocked after grace period", zap.Duration("grace", grace))
		return ErrStopTimeout
	}
}

// Done is closed once the loop goroutine has exited
func (r *Reader) Done() <-chan struct{} {
	return r.done
}

// Running reports whether the loop goroutine is still alive
func (r *Reader) Running() bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.running
}

func (r *Reader) run() {
	defer func() {
		r.mutex.Lock()
		r.running = false
		r.mutex.Unlock()
		close(r.done)
		r.logger.Info("Reader loop terminated")
	}()

	buf := make([]byte, r.opts.BufferSize)
	var pending []byte

	for {
		select {
		case <-r.stop:
			return
		default:
		}

		n, err := r.source.Read(buf, r.opts.PollInterval)
		if n > 0 {
			pending = r.decode(append(pending, buf[:n]...))
		}

		if err != nil {
			select {
			case <-r.stop:
				// the port was closed underneath us during shutdown
				return
			default:
			}
			if len(pending) > 0 {
				r.emitError(fmt.Errorf("%w: dropped %d byte(s) of an incomplete sequence", model.ErrInvalidUTF8, len(pending)))
			}
			r.logger.Error("Serial read failed", zap.Error(err))
			r.emitError(&model.ReaderError{Err: err})
			return
		}
	}
}

// decode delivers the valid text in data and returns an incomplete trailing
// sequence to be completed by the next read. Invalid bytes are dropped and
// reported once per read. An incomplete sequence still pending when the
// source fails is reported as invalid before the read error.
func (r *Reader) decode(data []byte) []byte {
	var text strings.Builder
	invalid := 0

	i := 0
	for i < len(data) {
		c, size := utf8.DecodeRune(data[i:])
		if c == utf8.RuneError && size <= 1 {
			if !utf8.FullRune(data[i:]) {
				break
			}
			invalid++
			i++
			continue
		}
		text.Write(data[i : i+size])
		i += size
	}

	if text.Len() > 0 {
		r.logger.Debug("Data received", zap.String("data", text.String()))
		r.emitData(text.String())
	}
	if invalid > 0 {
		r.emitError(fmt.Errorf("%w: dropped %d byte(s)", model.ErrInvalidUTF8, invalid))
	}

	if i == len(data) {
		return nil
	}
	rest := make([]byte, len(data)-i)
	copy(rest, data[i:])
	return rest
}

func (r *Reader) emitData(text string) {
	r.emitMutex.Lock()
	defer r.emitMutex.Unlock()
	if r.stopped || r.callbacks.OnData == nil {
		return
	}
	r.callbacks.OnData(text)
}

func (r *Reader) emitError(err error) {
	r.emitMutex.Lock()
	defer r.emitMutex.Unlock()
	if r.stopped || r.callbacks.OnError == nil {
		return
	}
	r.callbacks.OnError(err)
}
