package module

import (
	"context"

	"rolegate/internal/adapters/verify"
	"rolegate/internal/services/guilds/domain"
	recdomain "rolegate/internal/services/reconcile/domain"
)

// Ports are the surfaces this module exposes to other modules
type Ports struct {
	Reader    domain.ReaderPort
	Registrar domain.RegistrarPort
}

// verifySource adapts the verification API client to the SourcePort
type verifySource struct{ c *verify.Client }

// VerifySource wraps a verify client as the upstream registry
func VerifySource(c *verify.Client) domain.SourcePort { return verifySource{c: c} }

func (s verifySource) GuildRecord(ctx context.Context, guildID string) (domain.Guild, error) {
	rec, err := s.c.GuildRecord(ctx, guildID)
	if err != nil {
		return domain.Guild{}, err
	}
	return domain.Guild{
		GuildID:  rec.GuildID,
		RoleID:   rec.RoleID,
		Name:     rec.Name,
		Approved: rec.Approved,
	}, nil
}

func (s verifySource) RegisterGuild(ctx context.Context, p domain.RegisterParams) error {
	return s.c.RegisterGuild(ctx, verify.RegisterParams{
		GuildID: p.GuildID,
		Name:    p.Name,
		OwnerID: p.OwnerID,
	})
}

// configAdapter exposes the guild reader as the reconciler's ConfigPort
type configAdapter struct{ reader domain.ReaderPort }

// ConfigPort adapts a guild reader for the reconciliation engine
func ConfigPort(reader domain.ReaderPort) recdomain.ConfigPort {
	return configAdapter{reader: reader}
}

func (a configAdapter) Config(ctx context.Context, guildID string) (recdomain.GuildConfig, error) {
	g, err := a.reader.Resolve(ctx, guildID)
	if err != nil {
		return recdomain.GuildConfig{}, err
	}
	return recdomain.GuildConfig{
		GuildID:  g.GuildID,
		RoleID:   g.RoleID,
		Name:     g.Name,
		Approved: g.Approved,
	}, nil
}
