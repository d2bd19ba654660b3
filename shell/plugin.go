package shell

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Plugin is a capability attached to the host before Run
type Plugin interface {
	// Name is the plugin's unique identifier, also the permission prefix ("sql" -> "sql:allow-load")
	Name() string
	// Initialize is called once on startup, in registration order
	Initialize(pc *PluginContext) error
	// Bindings are the structs whose exported methods are exposed to the front end
	Bindings() []interface{}
	// Shutdown is called once when the host exits, in reverse registration order
	Shutdown()
}

// PluginContext is what the host hands a plugin during Initialize
type PluginContext struct {
	Ctx         context.Context
	Name        string
	Config      *viper.Viper // plugins.<name> section of the manifest, never nil
	ConfigDir   string       // per-user app config directory
	Permissions *Permissions
	Emitter     Emitter
	Logger      zerolog.Logger
}

// Require checks that the main window was granted "<plugin>:<perm>"
func (pc *PluginContext) Require(perm string) error {
	return pc.Permissions.Require(pc.Name + ":" + perm)
}
