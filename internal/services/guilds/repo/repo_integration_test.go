//go:build integration_pg
// +build integration_pg

package repo

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	perr "rolegate/internal/platform/errors"
	"rolegate/internal/platform/store"
	"rolegate/internal/services/guilds/domain"

	"github.com/rs/zerolog"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startPostgres launches a disposable Postgres and returns DSN + stop func
func startPostgres(t *testing.T) (dsn string, stop func()) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)

	req := tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "postgres",
			"POSTGRES_PASSWORD": "postgres",
			"POSTGRES_DB":       "postgres",
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("5432/tcp"),
			wait.ForLog("database system is ready to accept connections"),
		).WithDeadline(2 * time.Minute),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		cancel()
		t.Fatalf("failed to start postgres container: %v", err)
	}

	host, err := c.Host(ctx)
	if err != nil {
		_ = c.Terminate(context.Background())
		cancel()
		t.Fatalf("failed to get container host: %v", err)
	}
	mp, err := c.MappedPort(ctx, "5432/tcp")
	if err != nil {
		_ = c.Terminate(context.Background())
		cancel()
		t.Fatalf("failed to get mapped port: %v", err)
	}

	dsn = fmt.Sprintf("postgres://postgres:postgres@%s:%s/postgres?sslmode=disable", host, mp.Port())
	stop = func() {
		_ = c.Terminate(context.Background())
		cancel()
	}
	return dsn, stop
}

const guildsDDL = `
	CREATE TABLE IF NOT EXISTS guilds (
		guild_id  TEXT PRIMARY KEY,
		role_id   TEXT NOT NULL DEFAULT '',
		name      TEXT NOT NULL DEFAULT '',
		owner_id  TEXT NOT NULL DEFAULT '',
		approved  BOOLEAN NOT NULL DEFAULT FALSE,
		synced_at TIMESTAMPTZ NOT NULL
	)
`

func TestGuildRepo_Integration_UpsertGet(t *testing.T) {
	dsn, stop := startPostgres(t)
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	s, err := store.Open(ctx, store.Config{
		PG: store.PGConfig{Enabled: true, URL: dsn, MaxConns: 2},
	}, store.WithLogger(zerolog.New(io.Discard)))
	if err != nil {
		t.Fatalf("store open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })

	if _, err := s.PG.Exec(ctx, guildsDDL); err != nil {
		t.Fatalf("create table: %v", err)
	}

	r := NewPG().Bind(s.PG)

	if _, err := r.Get(ctx, "g1"); !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("empty table should be not found, got %v", err)
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	g := domain.Guild{
		GuildID: "g1", RoleID: "r1", Name: "guild one",
		OwnerID: "o1", Approved: true, SyncedAt: now,
	}
	if err := r.Upsert(ctx, g); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := r.Get(ctx, "g1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.RoleID != "r1" || !got.Approved || !got.SyncedAt.Equal(now) {
		t.Fatalf("got = %+v", got)
	}

	// second upsert overwrites the row
	g.RoleID = "r2"
	g.Approved = false
	if err := r.Upsert(ctx, g); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	got, err = r.Get(ctx, "g1")
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if got.RoleID != "r2" || got.Approved {
		t.Fatalf("update not applied, got = %+v", got)
	}
}
