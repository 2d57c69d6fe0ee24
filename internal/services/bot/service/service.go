// Package service implements the gateway-facing bot
package service

import (
	"context"
	"time"

	"rolegate/internal/modkit"
	perr "rolegate/internal/platform/errors"
	"rolegate/internal/platform/logger"
	gdomain "rolegate/internal/services/guilds/domain"
	recdomain "rolegate/internal/services/reconcile/domain"

	"github.com/bwmarrin/discordgo"
)

// Session is the slice of *discordgo.Session the bot depends on
type Session interface {
	Open() error
	Close() error
	AddHandler(handler any) func()
	ApplicationCommandCreate(appID, guildID string, cmd *discordgo.ApplicationCommand, options ...discordgo.RequestOption) (*discordgo.ApplicationCommand, error)
	InteractionRespond(i *discordgo.Interaction, r *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(i *discordgo.Interaction, nr *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Config controls bot behavior
type Config struct {
	// AppID overrides the application id used for command registration;
	// empty falls back to the ready payload's user id
	AppID string

	// VerifyURL is shown to unverified members
	VerifyURL string

	// JobPoll is how often a batch job is checked for completion
	JobPoll time.Duration

	// JobWait bounds how long the bot waits before giving up on a reply edit
	JobWait time.Duration
}

// Service owns the gateway handlers
type Service struct {
	log       logger.Logger
	cfg       Config
	session   Session
	engine    recdomain.EnginePort
	registrar gdomain.RegistrarPort
}

// New constructs the bot service
func New(deps modkit.Deps, cfg Config, session Session, engine recdomain.EnginePort, registrar gdomain.RegistrarPort) *Service {
	if cfg.JobPoll <= 0 {
		cfg.JobPoll = time.Second
	}
	if cfg.JobWait <= 0 {
		cfg.JobWait = 10 * time.Minute
	}
	return &Service{
		log:       deps.Log.With().Str("component", "bot").Logger(),
		cfg:       cfg,
		session:   session,
		engine:    engine,
		registrar: registrar,
	}
}

// Run opens the gateway and blocks until ctx is done
func (s *Service) Run(ctx context.Context) error {
	s.session.AddHandler(s.onReady)
	s.session.AddHandler(s.onInteraction)
	s.session.AddHandler(s.onMemberAdd)
	s.session.AddHandler(s.onGuildCreate)

	if err := s.session.Open(); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "gateway open failed")
	}
	s.log.Info().Msg("gateway connected")

	<-ctx.Done()
	s.log.Info().Msg("gateway closing")
	return s.session.Close()
}
