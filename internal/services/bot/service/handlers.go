package service

import (
	"context"
	"fmt"
	"time"

	perr "rolegate/internal/platform/errors"
	gdomain "rolegate/internal/services/guilds/domain"
	"rolegate/internal/services/reconcile/domain"
	recsvc "rolegate/internal/services/reconcile/service"

	"github.com/bwmarrin/discordgo"
)

const (
	cmdVerify   = "verify"
	cmdReverify = "reverify"
)

// onReady registers the slash commands once the gateway identifies
func (s *Service) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	appID := s.cfg.AppID
	if appID == "" && r.User != nil {
		appID = r.User.ID
	}

	manageRoles := int64(discordgo.PermissionManageRoles)
	commands := []*discordgo.ApplicationCommand{
		{
			Name:        cmdVerify,
			Description: "Check your verification status and claim the verified role",
		},
		{
			Name:                     cmdReverify,
			Description:              "Re-check every member of this server against the verification service",
			DefaultMemberPermissions: &manageRoles,
		},
	}
	for _, cmd := range commands {
		if _, err := s.session.ApplicationCommandCreate(appID, "", cmd); err != nil {
			s.log.Error().Err(err).Str("command", cmd.Name).Msg("command registration failed")
		}
	}
	s.log.Info().Str("app_id", appID).Msg("slash commands registered")
}

// onInteraction dispatches slash commands
func (s *Service) onInteraction(_ *discordgo.Session, ic *discordgo.InteractionCreate) {
	if ic.Type != discordgo.InteractionApplicationCommand {
		return
	}
	switch ic.ApplicationCommandData().Name {
	case cmdVerify:
		s.handleVerify(ic)
	case cmdReverify:
		s.handleReverify(ic)
	}
}

// handleVerify converges the calling member and replies ephemerally
func (s *Service) handleVerify(ic *discordgo.InteractionCreate) {
	if ic.Member == nil || ic.Member.User == nil {
		s.replyEphemeral(ic, "This command only works inside a server.")
		return
	}
	userID := ic.Member.User.ID

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	out, err := s.engine.ReconcileOne(ctx, ic.GuildID, userID)
	switch {
	case perr.IsCode(err, perr.ErrorCodeValidation), perr.IsCode(err, perr.ErrorCodeNotFound):
		s.replyEphemeral(ic, "This server is not set up for verification yet.")
		return
	case err != nil:
		s.log.Warn().Err(err).Str("guild_id", ic.GuildID).Str("user_id", userID).Msg("verify command failed")
		s.replyEphemeral(ic, "Something went wrong, please try again later.")
		return
	}

	s.replyEphemeral(ic, s.verifyMessage(out))
}

func (s *Service) verifyMessage(out domain.MemberOutcome) string {
	switch out.Kind {
	case domain.OutcomeGranted:
		return "You are verified. The verified role has been granted."
	case domain.OutcomeRevoked:
		return "Your verification has lapsed, so the verified role was removed."
	case domain.OutcomeError:
		if out.ErrKind == domain.ErrKindRateLimited {
			return "The service is busy right now, please try again in a minute."
		}
		return "The verification service is unavailable, please try again later."
	default:
		if out.Verified {
			return "You are already verified."
		}
		return fmt.Sprintf("You are not verified yet. Please verify yourself by going to %s", s.cfg.VerifyURL)
	}
}

// handleReverify starts a batch run and edits the reply when it finishes
func (s *Service) handleReverify(ic *discordgo.InteractionCreate) {
	if ic.Member == nil || ic.Member.User == nil {
		s.replyEphemeral(ic, "This command only works inside a server.")
		return
	}
	if ic.Member.Permissions&discordgo.PermissionManageRoles == 0 {
		s.replyEphemeral(ic, "You need the Manage Roles permission to run this.")
		return
	}

	job, err := s.engine.Start(context.Background(), ic.GuildID, ic.Member.User.ID)
	switch {
	case perr.IsCode(err, perr.ErrorCodeConflict):
		s.replyEphemeral(ic, "A reconciliation is already running for this server.")
		return
	case perr.IsCode(err, perr.ErrorCodeValidation), perr.IsCode(err, perr.ErrorCodeNotFound):
		s.replyEphemeral(ic, "This server is not set up for verification yet.")
		return
	case err != nil:
		s.log.Warn().Err(err).Str("guild_id", ic.GuildID).Msg("reverify command failed")
		s.replyEphemeral(ic, "Something went wrong, please try again later.")
		return
	}

	if err := s.session.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}); err != nil {
		s.log.Warn().Err(err).Msg("deferred reply failed")
		return
	}

	go s.reportWhenDone(ic, job)
}

// reportWhenDone polls the job and edits the deferred reply with the summary
func (s *Service) reportWhenDone(ic *discordgo.InteractionCreate, job *domain.Job) {
	deadline := time.Now().Add(s.cfg.JobWait)
	for !job.State().Terminal() {
		if time.Now().After(deadline) {
			s.editReply(ic, "Reconciliation is still running, check back later.")
			return
		}
		time.Sleep(s.cfg.JobPoll)
	}

	sum := recsvc.Summarize(job.Outcomes())
	msg := sum.Render()
	if job.State() == domain.JobAborted {
		msg += " (run aborted before finishing)"
	}
	s.editReply(ic, msg)
}

// onMemberAdd converges members the moment they join
func (s *Service) onMemberAdd(_ *discordgo.Session, e *discordgo.GuildMemberAdd) {
	if e.User == nil || e.User.Bot {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	out, err := s.engine.ReconcileOne(ctx, e.GuildID, e.User.ID)
	if err != nil {
		s.log.Warn().Err(err).Str("guild_id", e.GuildID).Str("user_id", e.User.ID).Msg("join reconcile failed")
		return
	}
	s.log.Info().
		Str("guild_id", e.GuildID).
		Str("user_id", e.User.ID).
		Str("outcome", out.Kind.String()).
		Msg("member reconciled on join")
}

// onGuildCreate registers newly joined guilds with the verification service
func (s *Service) onGuildCreate(_ *discordgo.Session, e *discordgo.GuildCreate) {
	if e.Guild == nil || e.Unavailable {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := s.registrar.Register(ctx, gdomain.RegisterParams{
		GuildID: e.ID,
		Name:    e.Name,
		OwnerID: e.OwnerID,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("guild_id", e.ID).Msg("guild registration failed")
		return
	}
	s.log.Info().Str("guild_id", e.ID).Str("name", e.Name).Msg("guild registered")
}

func (s *Service) replyEphemeral(ic *discordgo.InteractionCreate, msg string) {
	err := s.session.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: msg,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("interaction reply failed")
	}
}

func (s *Service) editReply(ic *discordgo.InteractionCreate, msg string) {
	if _, err := s.session.InteractionResponseEdit(ic.Interaction, &discordgo.WebhookEdit{Content: &msg}); err != nil {
		s.log.Warn().Err(err).Msg("interaction edit failed")
	}
}
