package shell

import (
	"context"
	"fmt"
	"io/fs"
	"sync"

	"github.com/rs/zerolog"
)

// App is a built application handed to the Runner
type App struct {
	rc       *Context
	plugins  *Manager
	setup    []SetupFunc
	log      zerolog.Logger
	host     *Host
	ctx      context.Context
	startErr error
	mu       sync.Mutex
}

func newApp(rc *Context, plugins *Manager, setup []SetupFunc, log zerolog.Logger) *App {
	a := &App{
		rc:      rc,
		plugins: plugins,
		setup:   setup,
		log:     log,
	}
	a.host = &Host{app: a}
	return a
}

// Startup is called by the run loop once the native window exists.
// The returned error is also kept for StartupErr.
func (a *App) Startup(ctx context.Context, emitter Emitter) error {
	a.mu.Lock()
	a.ctx = ctx
	a.mu.Unlock()

	err := a.startup(ctx, emitter)
	if err != nil {
		a.log.Error().Err(err).Msg("startup failed")
		a.mu.Lock()
		a.startErr = err
		a.mu.Unlock()
	}
	return err
}

func (a *App) startup(ctx context.Context, emitter Emitter) error {
	a.plugins.SetEmitter(emitter)

	configDir, err := AppConfigDir(a.rc.Config.Identifier)
	if err != nil {
		return fmt.Errorf("failed to resolve config directory: %w", err)
	}
	a.log.Debug().Str("dir", configDir).Msg("using config directory")

	window := a.rc.Config.MainWindow().Label
	perms := resolvePermissions(a.rc.Config.App.Security.Capabilities, window, a.plugins.Plugins())

	if err := a.plugins.Initialize(ctx, a.rc, configDir, perms); err != nil {
		return err
	}

	for _, fn := range a.setup {
		if err := fn(a); err != nil {
			a.plugins.Shutdown()
			return fmt.Errorf("setup hook failed: %w", err)
		}
	}

	a.plugins.Emit("app:startup")
	return nil
}

// Shutdown is called by the run loop when the app is closing
func (a *App) Shutdown(ctx context.Context) {
	a.plugins.Shutdown()
	a.log.Info().Msg("application stopped")
}

// StartupErr returns the error from Startup, if any
func (a *App) StartupErr() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.startErr
}

// Bindings returns every struct exposed to the front end
func (a *App) Bindings() []interface{} {
	return append([]interface{}{a.host}, a.plugins.Bindings()...)
}

// Config returns the parsed manifest
func (a *App) Config() *Config {
	return a.rc.Config
}

// Assets returns the front-end bundle
func (a *App) Assets() fs.FS {
	return a.rc.Assets
}

// Dev reports development mode
func (a *App) Dev() bool {
	return a.rc.Dev()
}

// Logger returns the app logger
func (a *App) Logger() zerolog.Logger {
	return a.log
}

// Plugins returns the plugin manager
func (a *App) Plugins() *Manager {
	return a.plugins
}
