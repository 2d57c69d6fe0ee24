// Package module wires the reconciliation engine and exposes its ports
package module

import (
	"context"
	"encoding/json"

	"rolegate/internal/modkit"
	"rolegate/internal/modkit/repokit"
	"rolegate/internal/services/reconcile/domain"
	"rolegate/internal/services/reconcile/repo"
	"rolegate/internal/services/reconcile/service"
)

// Module defines the reconcile module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs the reconcile module with its ports
func New(deps modkit.Deps, overrides Options, up Upstreams) *Module {
	opts := FromConfig(deps.Cfg)
	if overrides.Concurrency != 0 {
		opts.Concurrency = overrides.Concurrency
	}

	ports := service.Ports{
		Lookup: up.Lookup,
		Roles:  up.Roles,
		Roster: up.Roster,
		Guilds: up.Guilds,
	}

	var jobs JobReader
	if deps.PG != nil {
		store := pgAudit{db: deps.PG, binder: repo.NewPG()}
		ports.Audit = store
		jobs = store
	}

	svc := service.New(deps, service.Config{Concurrency: opts.Concurrency}, ports)

	m := &Module{deps: deps}
	m.ports = Ports{Engine: svc, Jobs: jobs}
	return m
}

// Name returns the module name
func (m *Module) Name() string { return "reconcile" }

// Ports returns the module ports
func (m *Module) Ports() Ports { return m.ports }

// pgAudit persists terminal jobs and serves job reads
type pgAudit struct {
	db     repokit.TxRunner
	binder repokit.Binder[repo.Repo]
}

// RecordJob writes the audit row for a terminal job
func (a pgAudit) RecordJob(ctx context.Context, job *domain.Job) error {
	sum, err := json.Marshal(service.Summarize(job.Outcomes()))
	if err != nil {
		return err
	}
	rec := repo.JobRecord{
		JobID:      job.ID.String(),
		GuildID:    job.GuildID,
		Initiator:  job.Initiator,
		State:      job.State().String(),
		StartedAt:  job.StartedAt,
		FinishedAt: job.FinishedAt(),
		Summary:    sum,
	}
	return a.binder.Bind(a.db).RecordJob(ctx, rec)
}

// LastJob returns the most recent audit row for a guild
func (a pgAudit) LastJob(ctx context.Context, guildID string) (repo.JobRecord, error) {
	return a.binder.Bind(a.db).LastJob(ctx, guildID)
}
