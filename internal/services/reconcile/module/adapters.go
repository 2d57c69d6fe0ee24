package module

import (
	"context"

	"rolegate/internal/adapters/discord"
	"rolegate/internal/adapters/verify"
	"rolegate/internal/services/reconcile/domain"
)

// verifyLookup adapts the verification API client to the LookupPort
type verifyLookup struct{ c *verify.Client }

// VerifyLookup wraps a verify client for the engine
func VerifyLookup(c *verify.Client) domain.LookupPort { return verifyLookup{c: c} }

func (a verifyLookup) IsVerified(ctx context.Context, userID, guildID string) (domain.Verification, bool, error) {
	v, ok, err := a.c.IsVerified(ctx, userID, guildID)
	if err != nil {
		return domain.Verification{}, false, err
	}
	return domain.Verification{Verified: v.Verified, RoleID: v.RoleID}, ok, nil
}

// discordRoster adapts the Discord client to the RosterPort
type discordRoster struct{ c *discord.Client }

// DiscordRoster wraps a discord client for roster reads
func DiscordRoster(c *discord.Client) domain.RosterPort { return discordRoster{c: c} }

func (a discordRoster) Member(ctx context.Context, guildID, userID string) (domain.Member, error) {
	m, err := a.c.Member(ctx, guildID, userID)
	if err != nil {
		return domain.Member{}, err
	}
	return fromAdapter(guildID, m), nil
}

func (a discordRoster) Members(ctx context.Context, guildID string) ([]domain.Member, error) {
	ms, err := a.c.Members(ctx, guildID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Member, 0, len(ms))
	for _, m := range ms {
		out = append(out, fromAdapter(guildID, m))
	}
	return out, nil
}

func fromAdapter(guildID string, m discord.Member) domain.Member {
	return domain.Member{
		GuildID: guildID,
		UserID:  m.UserID,
		Roles:   m.Roles,
		Bot:     m.Bot,
	}
}
