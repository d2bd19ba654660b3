package shell

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/logger"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/runtime"
)

// Runner drives the native event loop for a built App
type Runner interface {
	Run(app *App) error
}

// WailsRunner runs the app inside a Wails webview window
type WailsRunner struct{}

// Run blocks until every window is closed.
// A failed startup quits the event loop and is returned once it unwinds.
func (WailsRunner) Run(app *App) error {
	if err := wails.Run(buildOptions(app)); err != nil {
		return err
	}
	if err := app.StartupErr(); err != nil {
		return fmt.Errorf("startup failed: %w", err)
	}
	return nil
}

func buildOptions(app *App) *options.App {
	w := app.Config().MainWindow()
	dev := app.Dev()

	level := logger.INFO
	if dev {
		level = logger.DEBUG
	}
	if l := app.Logger().GetLevel(); l < zerolog.NoLevel && wailsLogLevel(l) > level {
		level = wailsLogLevel(l)
	}

	return &options.App{
		Title:            w.Title,
		Width:            w.Width,
		Height:           w.Height,
		MinWidth:         w.MinWidth,
		MinHeight:        w.MinHeight,
		MaxWidth:         w.MaxWidth,
		MaxHeight:        w.MaxHeight,
		DisableResize:    !w.IsResizable(),
		Fullscreen:       w.Fullscreen,
		BackgroundColour: w.Background(),
		AssetServer: &assetserver.Options{
			Assets: app.Assets(),
		},
		OnStartup: func(ctx context.Context) {
			if err := app.Startup(ctx, NewWailsEmitter(ctx)); err != nil {
				runtime.Quit(ctx)
			}
		},
		OnShutdown:         app.Shutdown,
		Bind:               app.Bindings(),
		Logger:             NewWailsLogger(app.Logger()),
		LogLevel:           level,
		LogLevelProduction: logger.ERROR,
		Debug: options.Debug{
			OpenInspectorOnStartup: dev,
		},
	}
}
