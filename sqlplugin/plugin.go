// Package sqlplugin gives the front end SQL access to SQLite, PostgreSQL and MySQL databases.
//
// Databases are addressed by connection URL ("sqlite:budget.db", "postgres://...",
// "mysql://..."); the URL passed to Load is the handle for every later command.
package sqlplugin

import (
	"fmt"

	"budgeting-desktop/shell"
)

// PluginName is the plugin identifier and permission prefix
const PluginName = "sql"

// Builder configures the SQL plugin
type Builder struct {
	migrations map[string][]Migration
}

// NewBuilder returns a builder with the default configuration: no migrations
func NewBuilder() *Builder {
	return &Builder{migrations: make(map[string][]Migration)}
}

// AddMigrations registers migrations to run when dbURL is loaded
func (b *Builder) AddMigrations(dbURL string, migrations []Migration) *Builder {
	b.migrations[dbURL] = append(b.migrations[dbURL], migrations...)
	return b
}

// Build returns the plugin ready to attach to a shell.Builder
func (b *Builder) Build() *Plugin {
	migrations := make(map[string][]Migration, len(b.migrations))
	for url, ms := range b.migrations {
		migrations[url] = append([]Migration(nil), ms...)
	}
	return &Plugin{svc: newSQL(migrations)}
}

// Plugin is the shell.Plugin implementation
type Plugin struct {
	svc *SQL
}

var (
	_ shell.Plugin                    = (*Plugin)(nil)
	_ shell.DefaultPermissionProvider = (*Plugin)(nil)
)

func (p *Plugin) Name() string {
	return PluginName
}

// DefaultPermissions is what "sql:default" grants. Execute must be allowed explicitly.
func (p *Plugin) DefaultPermissions() []string {
	return []string{
		PluginName + ":allow-load",
		PluginName + ":allow-select",
		PluginName + ":allow-close",
	}
}

// Initialize attaches the host and opens every database listed under plugins.sql.preload
func (p *Plugin) Initialize(pc *shell.PluginContext) error {
	driver := pc.Config.GetString("sqliteDriver")
	if driver == "" {
		driver = DriverSQLite3
	}
	if driver != DriverSQLite3 && driver != DriverSQLitePure {
		return fmt.Errorf("unsupported sqliteDriver %q", driver)
	}

	p.svc.attach(pc, driver)

	for _, url := range pc.Config.GetStringSlice("preload") {
		if _, err := p.svc.load(pc.Ctx, url); err != nil {
			return fmt.Errorf("failed to preload %s: %w", redact(url), err)
		}
	}
	return nil
}

// Bindings exposes the SQL service to the front end
func (p *Plugin) Bindings() []interface{} {
	return []interface{}{p.svc}
}

// Shutdown closes every open database
func (p *Plugin) Shutdown() {
	p.svc.closeAll()
}

// Service returns the bound SQL service
func (p *Plugin) Service() *SQL {
	return p.svc
}
