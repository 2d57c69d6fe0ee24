// Package module wires the admin HTTP service and mounts its routes
package module

import (
	"rolegate/internal/modkit"
	"rolegate/internal/modkit/httpkit"
	"rolegate/internal/services/ops/service"
	recdomain "rolegate/internal/services/reconcile/domain"
	recmodule "rolegate/internal/services/reconcile/module"
)

// Module defines the ops module
type Module struct {
	deps modkit.Deps
	svc  *service.Service
}

// New constructs the ops module
func New(deps modkit.Deps, engine recdomain.EnginePort, jobs recmodule.JobReader, health service.HealthFunc) *Module {
	return &Module{
		deps: deps,
		svc:  service.New(deps, engine, jobs, health),
	}
}

// Name returns the module name
func (m *Module) Name() string { return "ops" }

// MountRoutes mounts the admin surface
func (m *Module) MountRoutes(r httpkit.Router) {
	httpkit.Get(r, "/healthz", m.svc.Health)
	r.Route("/guilds/{guild_id}", func(g httpkit.Router) {
		httpkit.Get(g, "/job", m.svc.Job)
		httpkit.PostJSON(g, "/reconcile", m.svc.StartReconcile)
		httpkit.Delete(g, "/job", m.svc.CancelJob)
	})
}
