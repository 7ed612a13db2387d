// Package sensors is the external owner of sensor entities. Links only
// reference sensors by their scoped names.
package sensors

import (
	"log/slog"
	"sync"

	"github.com/rigsim/rigsim/internal/config"
	"github.com/rigsim/rigsim/internal/control"
)

// Sensor is one registered sensor instance.
type Sensor struct {
	Name     string // scoped name
	Type     string
	Throttle *control.Throttle
}

// Manager registers sensors declared by links and owns their lifecycle.
type Manager struct {
	log *slog.Logger

	mu      sync.Mutex
	sensors map[string]*Sensor
}

// NewManager creates an empty manager.
func NewManager(log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{log: log, sensors: make(map[string]*Sensor)}
}

// Load registers one sensor under its parent's scope and returns the
// scoped name the parent should remember.
func (m *Manager) Load(cfg config.Sensor, parentScope string) string {
	scoped := parentScope + "::" + cfg.Name
	s := &Sensor{
		Name:     scoped,
		Type:     cfg.Type,
		Throttle: control.NewThrottle(cfg.UpdateRate),
	}
	m.mu.Lock()
	m.sensors[scoped] = s
	m.mu.Unlock()
	m.log.Debug("sensor registered", "sensor", scoped, "type", cfg.Type)
	return scoped
}

// Get returns a sensor by scoped name.
func (m *Manager) Get(scoped string) (*Sensor, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sensors[scoped]
	return s, ok
}

// Unload removes a sensor by scoped name.
func (m *Manager) Unload(scoped string) {
	m.mu.Lock()
	delete(m.sensors, scoped)
	m.mu.Unlock()
}

// Count returns the number of registered sensors.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sensors)
}
