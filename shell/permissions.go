package shell

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrPermissionDenied = errors.New("permission denied")

// DefaultPermissionProvider is implemented by plugins that expand "<name>:default"
type DefaultPermissionProvider interface {
	DefaultPermissions() []string
}

// Permissions is the set of permission identifiers granted to a window
type Permissions struct {
	granted map[string]struct{}
}

// NewPermissions builds a permission set from raw identifiers
func NewPermissions(ids ...string) *Permissions {
	p := &Permissions{granted: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		p.granted[id] = struct{}{}
	}
	return p
}

// resolvePermissions collects the permissions every capability grants to window,
// expanding "<plugin>:default" entries through the registered plugins
func resolvePermissions(caps []Capability, window string, plugins []Plugin) *Permissions {
	defaults := make(map[string][]string)
	for _, pl := range plugins {
		if dp, ok := pl.(DefaultPermissionProvider); ok {
			defaults[pl.Name()] = dp.DefaultPermissions()
		}
	}

	p := NewPermissions()
	for _, c := range caps {
		if !appliesTo(c, window) {
			continue
		}
		for _, id := range c.Permissions {
			name, perm, ok := strings.Cut(id, ":")
			if ok && perm == "default" {
				for _, d := range defaults[name] {
					p.granted[d] = struct{}{}
				}
				continue
			}
			p.granted[id] = struct{}{}
		}
	}
	return p
}

func appliesTo(c Capability, window string) bool {
	if len(c.Windows) == 0 {
		return true
	}
	for _, w := range c.Windows {
		if w == "*" || w == window {
			return true
		}
	}
	return false
}

// Has reports whether id was granted
func (p *Permissions) Has(id string) bool {
	if p == nil {
		return false
	}
	_, ok := p.granted[id]
	return ok
}

// Require returns ErrPermissionDenied unless id was granted
func (p *Permissions) Require(id string) error {
	if !p.Has(id) {
		return fmt.Errorf("%w: %s not allowed", ErrPermissionDenied, id)
	}
	return nil
}

// List returns the granted identifiers in sorted order
func (p *Permissions) List() []string {
	if p == nil {
		return []string{}
	}
	ids := make([]string, 0, len(p.granted))
	for id := range p.granted {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
