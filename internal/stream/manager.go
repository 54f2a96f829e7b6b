package stream

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Device is one registered virtual camera: a key for addressing, a display
// name, and the stream doing the work.
type Device struct {
	Key       string
	Name      string
	Stream    *Stream
	CreatedAt time.Time
}

// Manager tracks the daemon's devices, providing create/get/remove/list
// operations used by the ingest and API layers.
type Manager struct {
	log     *slog.Logger
	mu      sync.RWMutex
	devices map[string]*Device
}

// NewManager creates a device manager. If log is nil, slog.Default() is used.
func NewManager(log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		log:     log.With("component", "device-manager"),
		devices: make(map[string]*Device),
	}
}

// Create registers a device around an existing stream. Returns the device
// and true if created, or nil and false if the key is already taken.
func (m *Manager) Create(key, name string, s *Stream) (*Device, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.devices[key]; ok {
		m.log.Warn("device already exists, rejecting duplicate", "key", key)
		return nil, false
	}

	d := &Device{
		Key:       key,
		Name:      name,
		Stream:    s,
		CreatedAt: time.Now(),
	}

	m.devices[key] = d
	m.log.Info("device created", "key", key, "name", name)
	return d, true
}

// Get returns the device for key, or nil and false.
func (m *Manager) Get(key string) (*Device, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.devices[key]
	return d, ok
}

// Remove stops a device's stream and drops it from the registry.
func (m *Manager) Remove(key string) {
	m.mu.Lock()
	d, ok := m.devices[key]
	if ok {
		delete(m.devices, key)
	}
	m.mu.Unlock()

	if ok {
		d.Stream.Stop()
		m.log.Info("device removed", "key", key)
	}
}

// List returns all devices sorted by key.
func (m *Manager) List() []*Device {
	m.mu.RLock()
	defer m.mu.RUnlock()

	devices := make([]*Device, 0, len(m.devices))
	for _, d := range m.devices {
		devices = append(devices, d)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].Key < devices[j].Key })
	return devices
}

// Shutdown stops every device's stream. The registry is left intact so late
// API reads still resolve keys during teardown.
func (m *Manager) Shutdown() {
	for _, d := range m.List() {
		d.Stream.Stop()
	}
	m.log.Info("all devices stopped")
}
