package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rolegate/internal/adapters/discord"
	"rolegate/internal/adapters/verify"
	"rolegate/internal/modkit"
	"rolegate/internal/platform/config"
	"rolegate/internal/platform/logger"
	phttp "rolegate/internal/platform/net/http"
	"rolegate/internal/platform/retry"
	"rolegate/internal/platform/store"

	botmod "rolegate/internal/services/bot/module"
	guildsmod "rolegate/internal/services/guilds/module"
	opsmod "rolegate/internal/services/ops/module"
	recmod "rolegate/internal/services/reconcile/module"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()

	root := config.New()
	pgCfg := root.Prefix("SERVICE_PGSQL_")
	verifyCfg := root.Prefix("VERIFY_")
	discordCfg := root.Prefix("DISCORD_")
	adminCfg := root.Prefix("ADMIN_")

	l := logger.Get()

	st, err := store.Open(context.Background(), store.Config{
		PG: store.PGConfig{
			Enabled:     true,
			URL:         pgCfg.MustString("DBURL"),
			MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 4)),
			SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
		},
	}, store.WithLogger(*l))
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	verifyClient := verify.NewClient(verify.Options{
		BaseURL: verifyCfg.MustString("BASE_URL"),
		APIKey:  verifyCfg.MustString("API_KEY"),
		Timeout: verifyCfg.MayDuration("TIMEOUT", 10*time.Second),
		RPS:     verifyCfg.MayFloat64("RPS", 10),
		Burst:   verifyCfg.MayInt("BURST", 5),
		Retry: retry.Policy{
			Base:        verifyCfg.MayDuration("RETRY_BASE", 500*time.Millisecond),
			Cap:         verifyCfg.MayDuration("RETRY_CAP", 30*time.Second),
			MaxAttempts: verifyCfg.MayInt("RETRY_ATTEMPTS", 5),
		},
	})

	session, err := discordgo.New("Bot " + discordCfg.MustString("TOKEN"))
	if err != nil {
		l.Panic().Err(err).Msg("discord session failed")
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers

	discordClient := discord.NewClient(session, discord.Options{
		Retry: retry.Policy{
			Base:        discordCfg.MayDuration("RETRY_BASE", 500*time.Millisecond),
			Cap:         discordCfg.MayDuration("RETRY_CAP", 30*time.Second),
			MaxAttempts: discordCfg.MayInt("RETRY_ATTEMPTS", 5),
		},
	})

	deps := modkit.Deps{Cfg: root, Log: *l, PG: st.PG}

	guilds := guildsmod.New(deps, guildsmod.Options{}, guildsmod.VerifySource(verifyClient))
	rec := recmod.New(deps, recmod.Options{}, recmod.Upstreams{
		Lookup: recmod.VerifyLookup(verifyClient),
		Roles:  discordClient,
		Roster: recmod.DiscordRoster(discordClient),
		Guilds: guildsmod.ConfigPort(guilds.Ports().Reader),
	})
	bot := botmod.New(deps, session, rec.Ports().Engine, guilds.Ports().Registrar)

	// admin surface (reads ADMIN_PORT)
	srv := phttp.NewServer(adminCfg)
	opsmod.New(deps, rec.Ports().Engine, rec.Ports().Jobs, st.Guard).MountRoutes(srv.Router())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return bot.Ports().Runner.Run(ctx) })
	g.Go(func() error { return srv.Run(ctx) })
	g.Go(func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil {
		l.Fatal().Err(err).Msg("rolegate bot stopped")
	}
}
