package shell

// Host exposes application metadata to the front end.
// This is a separate struct so plugin bindings don't share a namespace with it.
type Host struct {
	app *App
}

// AppInfo describes the running application
type AppInfo struct {
	ProductName string `json:"productName"`
	Version     string `json:"version"`
	Identifier  string `json:"identifier"`
	Dev         bool   `json:"dev"`
}

// GetAppInfo returns product name, version and identifier from the manifest
func (h *Host) GetAppInfo() AppInfo {
	cfg := h.app.Config()
	return AppInfo{
		ProductName: cfg.ProductName,
		Version:     cfg.Version,
		Identifier:  cfg.Identifier,
		Dev:         h.app.Dev(),
	}
}

// GetPlugins returns all plugins and their state
func (h *Host) GetPlugins() []PluginInfo {
	return h.app.Plugins().GetPlugins()
}
