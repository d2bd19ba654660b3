package shell

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

var (
	ErrAlreadyRun = errors.New("application has already run")
	ErrNoContext  = errors.New("run context is nil")
)

// SetupFunc runs after every plugin has been initialized
type SetupFunc func(app *App) error

// Builder assembles the host application: plugins, setup hooks, logger and run loop
type Builder struct {
	plugins []Plugin
	setup   []SetupFunc
	logger  *zerolog.Logger
	runner  Runner
	ran     bool
	mu      sync.Mutex
}

// Default returns a builder that runs the Wails event loop
func Default() *Builder {
	return &Builder{runner: WailsRunner{}}
}

// Plugin attaches p. Plugins are initialized in the order they are attached.
func (b *Builder) Plugin(p Plugin) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.plugins = append(b.plugins, p)
	return b
}

// Setup registers a hook that runs once plugins are up
func (b *Builder) Setup(fn SetupFunc) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setup = append(b.setup, fn)
	return b
}

// Logger overrides the logger derived from the run context
func (b *Builder) Logger(l zerolog.Logger) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logger = &l
	return b
}

// Runner overrides the run loop
func (b *Builder) Runner(r Runner) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.runner = r
	return b
}

// Run builds the application from rc and blocks in the run loop until the app exits.
// A builder can only run once.
func (b *Builder) Run(rc *Context) error {
	b.mu.Lock()
	if b.ran {
		b.mu.Unlock()
		return ErrAlreadyRun
	}
	b.ran = true
	plugins := b.plugins
	setup := b.setup
	runner := b.runner
	override := b.logger
	b.mu.Unlock()

	if rc == nil || rc.Config == nil {
		return ErrNoContext
	}

	log := NewLogger(rc.Dev())
	if override != nil {
		log = *override
	}

	manager := NewManager(log)
	for _, p := range plugins {
		if err := manager.Register(p); err != nil {
			return err
		}
	}

	app := newApp(rc, manager, setup, log)
	log.Info().
		Str("product", rc.Config.ProductName).
		Str("version", rc.Config.Version).
		Int("plugins", len(plugins)).
		Msg("starting application")

	if err := runner.Run(app); err != nil {
		return fmt.Errorf("run loop failed: %w", err)
	}
	return nil
}
