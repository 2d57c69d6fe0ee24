package module

import (
	"context"

	"rolegate/internal/services/reconcile/domain"
	"rolegate/internal/services/reconcile/repo"
)

// JobReader reads audited batch runs
type JobReader interface {
	LastJob(ctx context.Context, guildID string) (repo.JobRecord, error)
}

// Ports are the surfaces this module exposes to other modules
type Ports struct {
	Engine domain.EnginePort
	Jobs   JobReader
}

// Upstreams are the adapter backed ports the engine drives
type Upstreams struct {
	Lookup domain.LookupPort
	Roles  domain.RolePort
	Roster domain.RosterPort
	Guilds domain.ConfigPort
}
