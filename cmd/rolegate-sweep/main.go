package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"rolegate/internal/adapters/discord"
	"rolegate/internal/adapters/verify"
	"rolegate/internal/modkit"
	"rolegate/internal/platform/config"
	"rolegate/internal/platform/logger"
	"rolegate/internal/platform/retry"
	"rolegate/internal/platform/store"

	guildsmod "rolegate/internal/services/guilds/module"
	recdom "rolegate/internal/services/reconcile/domain"
	recmod "rolegate/internal/services/reconcile/module"
	recsvc "rolegate/internal/services/reconcile/service"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	root := config.New()
	pgCfg := root.Prefix("SERVICE_PGSQL_")
	verifyCfg := root.Prefix("VERIFY_")
	discordCfg := root.Prefix("DISCORD_")

	l := logger.Get()

	var (
		fGuild     = flag.String("guild", "", "guild id to reconcile (required)")
		fConc      = flag.Int("concurrency", 4, "member reconcile concurrency")
		fRPS       = flag.Float64("rps", 10, "verification API target requests/sec")
		fBurst     = flag.Int("burst", 5, "token-bucket burst for the verification API")
		fInitiator = flag.String("initiator", "sweep", "initiator recorded on the job")
	)
	flag.Parse()

	if *fGuild == "" {
		l.Panic().Msg("rolegate-sweep: -guild is required")
	}

	st, err := store.Open(context.Background(), store.Config{
		PG: store.PGConfig{
			Enabled:     true,
			URL:         pgCfg.MustString("DBURL"),
			MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 2)),
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
		RPS:     *fRPS,
		Burst:   *fBurst,
		Retry: retry.Policy{
			Base:        verifyCfg.MayDuration("RETRY_BASE", 500*time.Millisecond),
			Cap:         verifyCfg.MayDuration("RETRY_CAP", 30*time.Second),
			MaxAttempts: verifyCfg.MayInt("RETRY_ATTEMPTS", 5),
		},
	})

	// the sweep uses the REST surface only; the gateway is never opened
	session, err := discordgo.New("Bot " + discordCfg.MustString("TOKEN"))
	if err != nil {
		l.Panic().Err(err).Msg("discord session failed")
	}
	discordClient := discord.NewClient(session, discord.Options{Retry: retry.Default()})

	deps := modkit.Deps{Cfg: root, Log: *l, PG: st.PG}

	guilds := guildsmod.New(deps, guildsmod.Options{}, guildsmod.VerifySource(verifyClient))
	rec := recmod.New(deps, recmod.Options{Concurrency: *fConc}, recmod.Upstreams{
		Lookup: recmod.VerifyLookup(verifyClient),
		Roles:  discordClient,
		Roster: recmod.DiscordRoster(discordClient),
		Guilds: guildsmod.ConfigPort(guilds.Ports().Reader),
	})

	job, err := rec.Ports().Engine.ReconcileAll(context.Background(), *fGuild, *fInitiator)
	if err != nil {
		l.Fatal().Err(err).Str("guild_id", *fGuild).Msg("sweep failed to start")
	}

	sum := recsvc.Summarize(job.Outcomes())
	fmt.Println(sum.Render())
	for _, f := range sum.Failures {
		fmt.Printf("  %s: %s %s\n", f.UserID, f.Kind, f.Detail)
	}

	if job.State() == recdom.JobAborted {
		l.Error().Str("guild_id", *fGuild).Msg("sweep aborted before finishing")
		os.Exit(1)
	}
}
