// Package service implements the reconciliation engine
package service

import (
	"context"
	"time"

	"rolegate/internal/modkit"
	perr "rolegate/internal/platform/errors"
	"rolegate/internal/platform/logger"
	"rolegate/internal/services/reconcile/domain"

	"golang.org/x/sync/errgroup"
)

// Config controls engine behavior
type Config struct {
	// Concurrency bounds how many members are reconciled at once
	Concurrency int
}

// Ports are the upstream surfaces the engine drives
type Ports struct {
	Lookup domain.LookupPort
	Roles  domain.RolePort
	Roster domain.RosterPort
	Guilds domain.ConfigPort

	// Audit is optional; terminal jobs are recorded when present
	Audit domain.AuditPort
}

// Service converges guild rosters against the verification source of truth
type Service struct {
	log      logger.Logger
	cfg      Config
	ports    Ports
	registry *Registry
	now      func() time.Time
}

// New constructs the engine
func New(deps modkit.Deps, cfg Config, ports Ports) *Service {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Service{
		log:      deps.Log.With().Str("component", "reconcile").Logger(),
		cfg:      cfg,
		ports:    ports,
		registry: NewRegistry(),
		now:      time.Now,
	}
}

// ReconcileOne converges a single member.
// Precondition failures (bad guild config, unknown member) come back as errors;
// lookup and mutation failures are encoded in the outcome so callers can report them
func (s *Service) ReconcileOne(ctx context.Context, guildID, userID string) (domain.MemberOutcome, error) {
	cfg, err := s.guildConfig(ctx, guildID)
	if err != nil {
		return domain.MemberOutcome{}, err
	}

	member, err := s.ports.Roster.Member(ctx, guildID, userID)
	if err != nil {
		return domain.MemberOutcome{}, err
	}

	out, _ := s.reconcileMember(ctx, cfg, member)
	s.logOutcome(guildID, out)
	return out, nil
}

// ReconcileAll runs a batch job to completion and returns the terminal job
func (s *Service) ReconcileAll(ctx context.Context, guildID, initiator string) (*domain.Job, error) {
	job, err := s.registry.Begin(guildID, initiator, s.now())
	if err != nil {
		return nil, err
	}
	s.run(ctx, job)
	return job, nil
}

// Start launches a batch job in the background and returns it immediately.
// The job keeps running if the caller's context is canceled
func (s *Service) Start(ctx context.Context, guildID, initiator string) (*domain.Job, error) {
	job, err := s.registry.Begin(guildID, initiator, s.now())
	if err != nil {
		return nil, err
	}
	go s.run(context.WithoutCancel(ctx), job)
	return job, nil
}

// ActiveJob returns the registered job for a guild when one exists
func (s *Service) ActiveJob(guildID string) (*domain.Job, bool) {
	return s.registry.Active(guildID)
}

// run drives one batch job from pending to a terminal state
func (s *Service) run(ctx context.Context, job *domain.Job) {
	defer s.registry.Remove(job.GuildID, job.ID)

	cfg, err := s.guildConfig(ctx, job.GuildID)
	if err != nil {
		s.log.Warn().Err(err).Str("guild_id", job.GuildID).Msg("batch aborted on guild config")
		s.finish(ctx, job, domain.JobAborted)
		return
	}

	members, err := s.ports.Roster.Members(ctx, job.GuildID)
	if err != nil {
		s.log.Warn().Err(err).Str("guild_id", job.GuildID).Msg("batch aborted on roster fetch")
		s.finish(ctx, job, domain.JobAborted)
		return
	}

	job.SetState(domain.JobRunning, s.now())
	s.log.Info().
		Str("guild_id", job.GuildID).
		Str("job_id", job.ID.String()).
		Str("initiator", job.Initiator).
		Int("members", len(members)).
		Msg("batch reconciliation started")

	g := new(errgroup.Group)
	g.SetLimit(s.cfg.Concurrency)

	for _, m := range members {
		if m.Bot || m.UserID == "" {
			continue
		}
		// a cancel request stops dispatch; in-flight members still finish
		if job.Canceled() {
			job.Append(domain.MemberOutcome{
				UserID:  m.UserID,
				Kind:    domain.OutcomeError,
				ErrKind: domain.ErrKindAborted,
				Err:     perr.Abortedf("job canceled before member was processed"),
			})
			continue
		}
		member := m
		g.Go(func() error {
			out, roleGone := s.reconcileMember(ctx, cfg, member)
			job.Append(out)
			s.logOutcome(job.GuildID, out)
			if roleGone {
				s.log.Warn().Str("guild_id", job.GuildID).Str("role_id", cfg.RoleID).Msg("verified role deleted mid run, aborting job")
				job.Cancel()
			}
			return nil
		})
	}
	_ = g.Wait()

	final := domain.JobCompleted
	if job.Canceled() {
		final = domain.JobAborted
	}
	s.finish(ctx, job, final)
}

func (s *Service) finish(ctx context.Context, job *domain.Job, state domain.JobState) {
	job.SetState(state, s.now())
	sum := Summarize(job.Outcomes())
	s.log.Info().
		Str("guild_id", job.GuildID).
		Str("job_id", job.ID.String()).
		Str("state", state.String()).
		Int("granted", sum.Granted).
		Int("revoked", sum.Revoked).
		Int("no_change", sum.NoChange).
		Int("errors", sum.Errors).
		Msg("batch reconciliation finished")

	if s.ports.Audit == nil {
		return
	}
	if err := s.ports.Audit.RecordJob(ctx, job); err != nil {
		s.log.Warn().Err(err).Str("job_id", job.ID.String()).Msg("job audit write failed")
	}
}

// reconcileMember converges one member and reports whether the verified role
// turned out to be deleted
func (s *Service) reconcileMember(ctx context.Context, cfg domain.GuildConfig, m domain.Member) (domain.MemberOutcome, bool) {
	out := domain.MemberOutcome{UserID: m.UserID}

	_, verified, err := s.ports.Lookup.IsVerified(ctx, m.UserID, cfg.GuildID)
	if err != nil {
		out.Kind = domain.OutcomeError
		out.ErrKind = classifyLookup(err)
		out.Err = err
		return out, false
	}
	out.Verified = verified

	hasRole := m.HasRole(cfg.RoleID)
	switch {
	case verified && !hasRole:
		err = s.ports.Roles.Grant(ctx, cfg.GuildID, m.UserID, cfg.RoleID)
		out.Kind = domain.OutcomeGranted
	case !verified && hasRole:
		err = s.ports.Roles.Revoke(ctx, cfg.GuildID, m.UserID, cfg.RoleID)
		out.Kind = domain.OutcomeRevoked
	default:
		out.Kind = domain.OutcomeNoChange
		return out, false
	}

	if err == nil {
		return out, false
	}

	out.Kind = domain.OutcomeError
	out.ErrKind = classifyAction(err)
	out.Err = err

	// a 404 on the mutation may mean the member left or the role itself is gone;
	// only a deleted role aborts the whole run
	if perr.IsCode(err, perr.ErrorCodeNotFound) {
		exists, rerr := s.ports.Roles.RoleExists(ctx, cfg.GuildID, cfg.RoleID)
		if rerr == nil && !exists {
			return out, true
		}
	}
	return out, false
}

func (s *Service) guildConfig(ctx context.Context, guildID string) (domain.GuildConfig, error) {
	cfg, err := s.ports.Guilds.Config(ctx, guildID)
	if err != nil {
		return domain.GuildConfig{}, err
	}
	if !cfg.Valid() {
		return domain.GuildConfig{}, perr.Validationf("guild %s is not configured for reconciliation", guildID)
	}
	return cfg, nil
}

func (s *Service) logOutcome(guildID string, out domain.MemberOutcome) {
	ev := s.log.Debug()
	if out.Kind == domain.OutcomeError {
		ev = s.log.Warn().Err(out.Err).Str("err_kind", out.ErrKind.String())
	}
	ev.Str("guild_id", guildID).Str("user_id", out.UserID).Str("outcome", out.Kind.String()).Msg("member reconciled")
}

// classifyLookup maps a verification-lookup error to the reporting kind.
// Anything that is not a rate limit counts as a lookup failure; the lookup
// produced no answer, whatever the underlying status was
func classifyLookup(err error) domain.ErrKind {
	if perr.IsCode(err, perr.ErrorCodeTooManyRequests) {
		return domain.ErrKindRateLimited
	}
	return domain.ErrKindLookup
}

// classifyAction maps a role-mutation error to the reporting kind.
// The lookup already succeeded here, so lookup_failed is never emitted;
// exhausted transient retries read as rate-limited, the rest as permanent
func classifyAction(err error) domain.ErrKind {
	switch {
	case perr.IsCode(err, perr.ErrorCodeTooManyRequests),
		perr.IsCode(err, perr.ErrorCodeUnavailable):
		return domain.ErrKindRateLimited
	case perr.IsCode(err, perr.ErrorCodeAborted):
		return domain.ErrKindAborted
	default:
		return domain.ErrKindPermanent
	}
}
