// Package repo provides the guild mirror repository implementation
package repo

import (
	"context"
	stdsql "database/sql"
	"errors"

	"rolegate/internal/modkit/repokit"
	perr "rolegate/internal/platform/errors"
	"rolegate/internal/services/guilds/domain"
)

// Repo is the guild persistence surface used by the service layer
type Repo interface {
	Get(ctx context.Context, guildID string) (domain.Guild, error)
	Upsert(ctx context.Context, g domain.Guild) error
}

type (
	// PG is a Postgres implementation of the guild repo
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG returns a binder for the Postgres implementation
func NewPG() repokit.Binder[Repo] { return PG{} }

// Bind attaches a Queryer to the Postgres implementation
func (PG) Bind(q repokit.Queryer) Repo { return &queries{q: q} }

// Get returns the mirrored row for a guild
func (r *queries) Get(ctx context.Context, guildID string) (domain.Guild, error) {
	const sql = `
		SELECT guild_id, role_id, name, owner_id, approved, synced_at
		FROM guilds
		WHERE guild_id = $1
	`
	var g domain.Guild
	row := r.q.QueryRow(ctx, sql, guildID)
	if err := row.Scan(&g.GuildID, &g.RoleID, &g.Name, &g.OwnerID, &g.Approved, &g.SyncedAt); err != nil {
		if errors.Is(err, stdsql.ErrNoRows) {
			return domain.Guild{}, perr.NotFoundf("guild %s not mirrored", guildID)
		}
		return domain.Guild{}, perr.DBf("get guild %s: %v", guildID, err)
	}
	return g, nil
}

// Upsert refreshes the mirrored row from an upstream record
func (r *queries) Upsert(ctx context.Context, g domain.Guild) error {
	const sql = `
		INSERT INTO guilds (guild_id, role_id, name, owner_id, approved, synced_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (guild_id) DO UPDATE
		SET role_id   = EXCLUDED.role_id,
		    name      = EXCLUDED.name,
		    owner_id  = EXCLUDED.owner_id,
		    approved  = EXCLUDED.approved,
		    synced_at = EXCLUDED.synced_at
	`
	_, err := r.q.Exec(ctx, sql, g.GuildID, g.RoleID, g.Name, g.OwnerID, g.Approved, g.SyncedAt)
	if err != nil {
		return perr.DBf("upsert guild %s: %v", g.GuildID, err)
	}
	return nil
}
