// Package service implements the guild registry with a fetch-through mirror
package service

import (
	"context"
	"time"

	"rolegate/internal/modkit"
	"rolegate/internal/modkit/repokit"
	perr "rolegate/internal/platform/errors"
	"rolegate/internal/platform/logger"
	"rolegate/internal/services/guilds/domain"
	"rolegate/internal/services/guilds/repo"
)

// Config controls mirror behavior
type Config struct {
	// SyncTTL bounds how long a mirrored row is served without an upstream check
	SyncTTL time.Duration
}

// Service resolves guild configs through a Postgres mirror of the upstream registry
type Service struct {
	log    logger.Logger
	cfg    Config
	db     repokit.TxRunner
	binder repokit.Binder[repo.Repo]
	source domain.SourcePort
	now    func() time.Time
}

// New constructs the guild service
func New(deps modkit.Deps, cfg Config, source domain.SourcePort) *Service {
	if cfg.SyncTTL <= 0 {
		cfg.SyncTTL = 5 * time.Minute
	}
	return &Service{
		log:    deps.Log.With().Str("component", "guilds").Logger(),
		cfg:    cfg,
		db:     deps.PG,
		binder: repo.NewPG(),
		source: source,
		now:    time.Now,
	}
}

// Resolve returns the guild config, refreshing the mirror when stale.
// An unreachable upstream falls back to the stale row so reconciliation
// keeps working through verification service outages
func (s *Service) Resolve(ctx context.Context, guildID string) (domain.Guild, error) {
	if guildID == "" {
		return domain.Guild{}, perr.InvalidArgf("guild id required")
	}

	var cached domain.Guild
	var haveCached bool
	if s.db != nil {
		g, err := s.binder.Bind(s.db).Get(ctx, guildID)
		if err == nil {
			if g.Fresh(s.now(), s.cfg.SyncTTL) {
				return g, nil
			}
			cached, haveCached = g, true
		} else if !perr.IsCode(err, perr.ErrorCodeNotFound) {
			return domain.Guild{}, err
		}
	}

	fresh, err := s.refresh(ctx, guildID)
	if err == nil {
		return fresh, nil
	}
	if haveCached && perr.IsRetryable(err) {
		s.log.Warn().Err(err).Str("guild_id", guildID).Msg("upstream unavailable, serving stale guild mirror")
		return cached, nil
	}
	return domain.Guild{}, err
}

// Register registers the guild upstream and primes the mirror
func (s *Service) Register(ctx context.Context, p domain.RegisterParams) error {
	if p.GuildID == "" {
		return perr.InvalidArgf("guild id required")
	}
	if err := s.source.RegisterGuild(ctx, p); err != nil {
		return err
	}
	if _, err := s.refresh(ctx, p.GuildID); err != nil {
		// registration succeeded; the mirror will fill on the next resolve
		s.log.Warn().Err(err).Str("guild_id", p.GuildID).Msg("mirror prime after register failed")
	}
	return nil
}

// refresh pulls the upstream record and rewrites the mirror row
func (s *Service) refresh(ctx context.Context, guildID string) (domain.Guild, error) {
	g, err := s.source.GuildRecord(ctx, guildID)
	if err != nil {
		return domain.Guild{}, err
	}
	g.GuildID = guildID
	g.SyncedAt = s.now()
	if s.db != nil {
		if err := s.binder.Bind(s.db).Upsert(ctx, g); err != nil {
			s.log.Warn().Err(err).Str("guild_id", guildID).Msg("guild mirror write failed")
		}
	}
	return g, nil
}
