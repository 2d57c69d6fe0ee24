// Package module wires the gateway bot and exposes its runner
package module

import (
	"context"

	"rolegate/internal/modkit"
	"rolegate/internal/services/bot/service"
	gdomain "rolegate/internal/services/guilds/domain"
	recdomain "rolegate/internal/services/reconcile/domain"
)

// RunnerPort is the long-lived gateway loop
type RunnerPort interface {
	Run(ctx context.Context) error
}

// Ports are the surfaces this module exposes
type Ports struct {
	Runner RunnerPort
}

// Module defines the bot module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs the bot module with its ports
func New(
	deps modkit.Deps,
	session service.Session,
	engine recdomain.EnginePort,
	registrar gdomain.RegistrarPort,
) *Module {
	opts := FromConfig(deps.Cfg)

	svc := service.New(deps, service.Config{
		AppID:     opts.AppID,
		VerifyURL: opts.VerifyURL,
		JobPoll:   opts.JobPoll,
		JobWait:   opts.JobWait,
	}, session, engine, registrar)

	m := &Module{deps: deps}
	m.ports = Ports{Runner: svc}
	return m
}

// Name returns the module name
func (m *Module) Name() string { return "bot" }

// Ports returns the module ports
func (m *Module) Ports() Ports { return m.ports }
