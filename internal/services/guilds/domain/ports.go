package domain

import "context"

// SourcePort is the upstream registry held by the verification service
type SourcePort interface {
	GuildRecord(ctx context.Context, guildID string) (Guild, error)
	RegisterGuild(ctx context.Context, p RegisterParams) error
}

// ReaderPort resolves guild configs for the reconciler and the bot
type ReaderPort interface {
	Resolve(ctx context.Context, guildID string) (Guild, error)
}

// RegistrarPort registers newly joined guilds upstream
type RegistrarPort interface {
	Register(ctx context.Context, p RegisterParams) error
}
