// Package service implements the admin HTTP surface
package service

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"rolegate/internal/modkit"
	perr "rolegate/internal/platform/errors"
	"rolegate/internal/platform/logger"
	phttp "rolegate/internal/platform/net/http"
	recdomain "rolegate/internal/services/reconcile/domain"
	recmodule "rolegate/internal/services/reconcile/module"
	recsvc "rolegate/internal/services/reconcile/service"

	"github.com/go-chi/chi/v5"
)

// HealthFunc reports backend readiness
type HealthFunc func(ctx context.Context) error

// Service serves admin reads and batch triggers
type Service struct {
	log    logger.Logger
	engine recdomain.EnginePort
	jobs   recmodule.JobReader
	health HealthFunc
}

// New constructs the ops service
func New(deps modkit.Deps, engine recdomain.EnginePort, jobs recmodule.JobReader, health HealthFunc) *Service {
	return &Service{
		log:    deps.Log.With().Str("component", "ops").Logger(),
		engine: engine,
		jobs:   jobs,
		health: health,
	}
}

// JobView is the admin representation of a batch job
type JobView struct {
	JobID      string          `json:"job_id"`
	GuildID    string          `json:"guild_id"`
	Initiator  string          `json:"initiator"`
	State      string          `json:"state"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	Summary    json.RawMessage `json:"summary,omitempty"`
}

// StartRequest is the POST body for triggering a batch run
type StartRequest struct {
	Initiator string `json:"initiator" validate:"required,min=1,max=64"`
}

// Health reports readiness of the configured backends
func (s *Service) Health(r *http.Request) (any, error) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			return nil, perr.Unavailablef("not ready: %v", err)
		}
	}
	return map[string]string{"status": "ok"}, nil
}

// Job returns the running job for a guild, falling back to the last audited run
func (s *Service) Job(r *http.Request) (any, error) {
	guildID := chi.URLParam(r, "guild_id")
	if guildID == "" {
		return nil, perr.InvalidArgf("guild id required")
	}

	if job, ok := s.engine.ActiveJob(guildID); ok {
		return viewFromJob(job), nil
	}
	if s.jobs == nil {
		return nil, perr.NotFoundf("no jobs for guild %s", guildID)
	}

	rec, err := s.jobs.LastJob(r.Context(), guildID)
	if err != nil {
		return nil, err
	}
	finished := rec.FinishedAt
	return JobView{
		JobID:      rec.JobID,
		GuildID:    rec.GuildID,
		Initiator:  rec.Initiator,
		State:      rec.State,
		StartedAt:  rec.StartedAt,
		FinishedAt: &finished,
		Summary:    rec.Summary,
	}, nil
}

// StartReconcile launches a batch run and replies 202 with the job
func (s *Service) StartReconcile(r *http.Request, body StartRequest) (any, error) {
	guildID := chi.URLParam(r, "guild_id")
	if guildID == "" {
		return nil, perr.InvalidArgf("guild id required")
	}

	job, err := s.engine.Start(r.Context(), guildID, body.Initiator)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("guild_id", guildID).Str("job_id", job.ID.String()).Str("initiator", body.Initiator).Msg("batch run triggered")
	return phttp.Accepted(viewFromJob(job)), nil
}

// CancelJob requests the running job stop dispatching members
func (s *Service) CancelJob(r *http.Request) (any, error) {
	guildID := chi.URLParam(r, "guild_id")
	if guildID == "" {
		return nil, perr.InvalidArgf("guild id required")
	}

	job, ok := s.engine.ActiveJob(guildID)
	if !ok {
		return nil, perr.NotFoundf("no running job for guild %s", guildID)
	}
	job.Cancel()
	s.log.Info().Str("guild_id", guildID).Str("job_id", job.ID.String()).Msg("job cancel requested")
	return phttp.Accepted(viewFromJob(job)), nil
}

func viewFromJob(job *recdomain.Job) JobView {
	v := JobView{
		JobID:     job.ID.String(),
		GuildID:   job.GuildID,
		Initiator: job.Initiator,
		State:     job.State().String(),
		StartedAt: job.StartedAt,
	}
	if fin := job.FinishedAt(); !fin.IsZero() {
		v.FinishedAt = &fin
	}
	if sum, err := json.Marshal(recsvc.Summarize(job.Outcomes())); err == nil {
		v.Summary = sum
	}
	return v
}
