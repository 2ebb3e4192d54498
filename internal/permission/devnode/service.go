// internal/permission/devnode/service.go
package devnode

import (
	"errors"
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"serial-bridge/internal/model"
	"serial-bridge/internal/permission"
)

var _ permission.Service = (*Service)(nil)

// Service treats read/write access to the device's access node, the tty the
// session opens, as the permission. A request watches the node and reports a
// grant as soon as an attribute change (udev rule, chmod, group change) makes
// it accessible.
type Service struct {
	logger *zap.Logger
	access func(path string) bool

	mutex    sync.Mutex
	watchers map[string]*watch
}

type watch struct {
	path     string
	watcher  *fsnotify.Watcher
	done     chan struct{}
	mutex    sync.Mutex
	onResult func(bool)
}

// NewService creates a device node permission service
func NewService(logger *zap.Logger) *Service {
	return &Service{
		logger:   logger.With(zap.String("component", "devnode")),
		access:   canReadWrite,
		watchers: make(map[string]*watch),
	}
}

// HasPermission checks read/write access to the device node
func (s *Service) HasPermission(device model.DeviceHandle) bool {
	if device.Path == "" {
		return false
	}
	return s.access(device.Path)
}

// RequestPermission registers a watcher on the device node. A request for a
// device that is already watched only replaces the result callback.
func (s *Service) RequestPermission(device model.DeviceHandle, onResult func(granted bool)) error {
	if device.Path == "" {
		return errors.New("device has no access node")
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if w, ok := s.watchers[device.Path]; ok {
		w.setCallback(onResult)
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(device.Path); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", device.Path, err)
	}

	w := &watch{
		path:     device.Path,
		watcher:  watcher,
		done:     make(chan struct{}),
		onResult: onResult,
	}
	s.watchers[device.Path] = w
	go s.watchLoop(w)

	s.logger.Warn("No access to serial device, waiting for permission",
		zap.String("device", device.String()),
		zap.String("path", device.Path),
		zap.String("hint", fmt.Sprintf(
			`join the group owning %s (usually dialout) or add a udev rule such as SUBSYSTEM=="tty", ATTRS{idVendor}=="%s", ATTRS{idProduct}=="%s", MODE="0660", GROUP="dialout"`,
			device.Path, device.VendorID, device.ProductID)),
	)
	return nil
}

// Unregister closes the watcher for device, if any
func (s *Service) Unregister(device model.DeviceHandle) {
	s.unregister(device.Path)
}

// Close unregisters every outstanding listener
func (s *Service) Close() {
	s.mutex.Lock()
	keys := make([]string, 0, len(s.watchers))
	for key := range s.watchers {
		keys = append(keys, key)
	}
	s.mutex.Unlock()

	for _, key := range keys {
		s.unregister(key)
	}
}

func (s *Service) unregister(key string) {
	s.mutex.Lock()
	w, ok := s.watchers[key]
	delete(s.watchers, key)
	s.mutex.Unlock()

	if !ok {
		return
	}
	if err := w.watcher.Close(); err != nil {
		s.logger.Warn("Failed to close watcher", zap.String("path", w.path), zap.Error(err))
	}
	<-w.done
	s.logger.Debug("Permission listener unregistered", zap.String("path", w.path))
}

// Watching reports how many devices have a listener registered
func (s *Service) Watching() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.watchers)
}

func (s *Service) watchLoop(w *watch) {
	defer close(w.done)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Remove) {
				s.logger.Warn("Device node removed", zap.String("path", w.path))
				continue
			}
			if !event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Create) {
				continue
			}
			if s.access(w.path) {
				s.logger.Info("Device node became accessible", zap.String("path", w.path))
				w.notify(true)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Error("Watcher error", zap.String("path", w.path), zap.Error(err))
		}
	}
}

func (w *watch) setCallback(onResult func(bool)) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	w.onResult = onResult
}

func (w *watch) notify(granted bool) {
	w.mutex.Lock()
	cb := w.onResult
	w.mutex.Unlock()
	if cb != nil {
		cb(granted)
	}
}

func canReadWrite(path string) bool {
	return unix.Access(path, unix.R_OK|unix.W_OK) == nil
}
