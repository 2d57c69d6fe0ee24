// Package repo persists batch job audit rows
package repo

import (
	"context"
	stdsql "database/sql"
	"errors"
	"time"

	"rolegate/internal/modkit/repokit"
	perr "rolegate/internal/platform/errors"
)

// JobRecord is one audited batch run
type JobRecord struct {
	JobID      string
	GuildID    string
	Initiator  string
	State      string
	StartedAt  time.Time
	FinishedAt time.Time

	// Summary is the JSON encoded outcome tally
	Summary []byte
}

// Repo is the reconcile persistence surface
type Repo interface {
	RecordJob(ctx context.Context, rec JobRecord) error
	LastJob(ctx context.Context, guildID string) (JobRecord, error)
}

type (
	// PG is a Postgres implementation of the reconcile repo
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG returns a binder for the Postgres implementation
func NewPG() repokit.Binder[Repo] { return PG{} }

// Bind attaches a Queryer to the Postgres implementation
func (PG) Bind(q repokit.Queryer) Repo { return &queries{q: q} }

// RecordJob upserts the audit row for a terminal job
func (r *queries) RecordJob(ctx context.Context, rec JobRecord) error {
	const sql = `
		INSERT INTO reconcile_jobs (
			job_id, guild_id, initiator, state, started_at, finished_at, summary
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (job_id) DO UPDATE
		SET state       = EXCLUDED.state,
		    finished_at = EXCLUDED.finished_at,
		    summary     = EXCLUDED.summary
	`
	_, err := r.q.Exec(ctx, sql,
		rec.JobID, rec.GuildID, rec.Initiator, rec.State,
		rec.StartedAt, rec.FinishedAt, rec.Summary,
	)
	if err != nil {
		return perr.DBf("record job %s: %v", rec.JobID, err)
	}
	return nil
}

// LastJob returns the most recently started job for a guild
func (r *queries) LastJob(ctx context.Context, guildID string) (JobRecord, error) {
	const sql = `
		SELECT job_id::text, guild_id, initiator, state, started_at, finished_at, summary
		FROM reconcile_jobs
		WHERE guild_id = $1
		ORDER BY started_at DESC
		LIMIT 1
	`
	var rec JobRecord
	row := r.q.QueryRow(ctx, sql, guildID)
	if err := row.Scan(
		&rec.JobID, &rec.GuildID, &rec.Initiator, &rec.State,
		&rec.StartedAt, &rec.FinishedAt, &rec.Summary,
	); err != nil {
		if errors.Is(err, stdsql.ErrNoRows) {
			return JobRecord{}, perr.NotFoundf("no jobs recorded for guild %s", guildID)
		}
		return JobRecord{}, perr.DBf("last job for guild %s: %v", guildID, err)
	}
	return rec, nil
}
