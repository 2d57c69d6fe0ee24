// Package module wires the guild registry service and exposes its ports
package module

import (
	"rolegate/internal/modkit"
	"rolegate/internal/services/guilds/domain"
	"rolegate/internal/services/guilds/service"
)

// Module defines the guilds module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs the guilds module with its ports
func New(deps modkit.Deps, overrides Options, source domain.SourcePort) *Module {
	opts := FromConfig(deps.Cfg)
	if overrides.SyncTTL != 0 {
		opts.SyncTTL = overrides.SyncTTL
	}

	svc := service.New(deps, service.Config{SyncTTL: opts.SyncTTL}, source)

	m := &Module{deps: deps}
	m.ports = Ports{Reader: svc, Registrar: svc}
	return m
}

// Name returns the module name
func (m *Module) Name() string { return "guilds" }

// Ports returns the module ports
func (m *Module) Ports() Ports { return m.ports }
