package shell

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

var ErrDuplicatePlugin = errors.New("plugin already registered")

// PluginStatus is the lifecycle state of a registered plugin
type PluginStatus string

const (
	StatusRegistered PluginStatus = "registered"
	StatusRunning    PluginStatus = "running"
	StatusError      PluginStatus = "error"
	StatusStopped    PluginStatus = "stopped"
)

// PluginInfo describes a plugin for the front end
type PluginInfo struct {
	Name   string       `json:"name"`
	Status PluginStatus `json:"status"`
	Error  string       `json:"error,omitempty"`
}

type registeredPlugin struct {
	plugin Plugin
	status PluginStatus
	err    string
}

// Manager owns plugin lifecycle: registration, startup in order, shutdown in reverse
type Manager struct {
	plugins []*registeredPlugin
	byName  map[string]*registeredPlugin
	emitter Emitter
	log     zerolog.Logger
	mu      sync.RWMutex
}

// NewManager creates an empty plugin manager
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{
		byName:  make(map[string]*registeredPlugin),
		emitter: nopEmitter{},
		log:     log.With().Str("component", "plugins").Logger(),
	}
}

// Register adds p; names must be unique
func (m *Manager) Register(p Plugin) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := p.Name()
	if _, ok := m.byName[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicatePlugin, name)
	}
	rp := &registeredPlugin{plugin: p, status: StatusRegistered}
	m.plugins = append(m.plugins, rp)
	m.byName[name] = rp
	return nil
}

// Plugins returns the registered plugins in registration order
func (m *Manager) Plugins() []Plugin {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Plugin, 0, len(m.plugins))
	for _, rp := range m.plugins {
		out = append(out, rp.plugin)
	}
	return out
}

// Bindings collects every plugin's front-end bindings
func (m *Manager) Bindings() []interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []interface{}
	for _, rp := range m.plugins {
		out = append(out, rp.plugin.Bindings()...)
	}
	return out
}

// SetEmitter swaps the event sink (the real one only exists once the run loop has started)
func (m *Manager) SetEmitter(e Emitter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e == nil {
		e = nopEmitter{}
	}
	m.emitter = e
}

// Emit forwards a plugin event to the front end
func (m *Manager) Emit(event string, data ...interface{}) {
	m.mu.RLock()
	e := m.emitter
	m.mu.RUnlock()
	e.Emit(event, data...)
}

// Initialize starts every plugin in registration order.
// The first failure stops the already-started plugins and is returned.
func (m *Manager) Initialize(ctx context.Context, rc *Context, configDir string, perms *Permissions) error {
	m.mu.RLock()
	plugins := make([]*registeredPlugin, len(m.plugins))
	copy(plugins, m.plugins)
	m.mu.RUnlock()

	for i, rp := range plugins {
		name := rp.plugin.Name()
		pc := &PluginContext{
			Ctx:         ctx,
			Name:        name,
			Config:      rc.PluginConfig(name),
			ConfigDir:   configDir,
			Permissions: perms,
			Emitter:     m,
			Logger:      m.log.With().Str("plugin", name).Logger(),
		}

		if err := rp.plugin.Initialize(pc); err != nil {
			m.setStatus(rp, StatusError, err.Error())
			m.log.Error().Err(err).Str("plugin", name).Msg("plugin initialization failed")
			m.stop(plugins[:i])
			return fmt.Errorf("failed to initialize plugin %s: %w", name, err)
		}
		m.setStatus(rp, StatusRunning, "")
		m.log.Debug().Str("plugin", name).Msg("plugin initialized")
	}
	return nil
}

// Shutdown stops all running plugins in reverse order
func (m *Manager) Shutdown() {
	m.mu.RLock()
	plugins := make([]*registeredPlugin, len(m.plugins))
	copy(plugins, m.plugins)
	m.mu.RUnlock()

	m.stop(plugins)
}

func (m *Manager) stop(plugins []*registeredPlugin) {
	for i := len(plugins) - 1; i >= 0; i-- {
		rp := plugins[i]
		m.mu.RLock()
		running := rp.status == StatusRunning
		m.mu.RUnlock()
		if !running {
			continue
		}
		rp.plugin.Shutdown()
		m.setStatus(rp, StatusStopped, "")
		m.log.Debug().Str("plugin", rp.plugin.Name()).Msg("plugin stopped")
	}
}

func (m *Manager) setStatus(rp *registeredPlugin, status PluginStatus, errMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rp.status = status
	rp.err = errMsg
}

// GetPlugins reports every plugin and its lifecycle state
func (m *Manager) GetPlugins() []PluginInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]PluginInfo, 0, len(m.plugins))
	for _, rp := range m.plugins {
		infos = append(infos, PluginInfo{
			Name:   rp.plugin.Name(),
			Status: rp.status,
			Error:  rp.err,
		})
	}
	return infos
}
