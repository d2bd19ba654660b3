package shell

import (
	"context"

	"github.com/wailsapp/wails/v2/pkg/runtime"
)

// Emitter sends events to the front end
type Emitter interface {
	Emit(event string, data ...interface{})
}

// EmitterFunc adapts a function to Emitter
type EmitterFunc func(event string, data ...interface{})

func (f EmitterFunc) Emit(event string, data ...interface{}) {
	f(event, data...)
}

// nopEmitter drops events emitted before the run loop has started
type nopEmitter struct{}

func (nopEmitter) Emit(string, ...interface{}) {}

// wailsEmitter forwards events over the Wails IPC bridge
type wailsEmitter struct {
	ctx context.Context
}

// NewWailsEmitter returns an Emitter bound to the context passed to OnStartup
func NewWailsEmitter(ctx context.Context) Emitter {
	return &wailsEmitter{ctx: ctx}
}

func (e *wailsEmitter) Emit(event string, data ...interface{}) {
	runtime.EventsEmit(e.ctx, event, data...)
}
