package module

import (
	"time"

	"rolegate/internal/platform/config"
)

// Options controls guild mirror behavior. Values may also be read from env
type Options struct {
	SyncTTL time.Duration
}

// FromConfig reads options using GUILDS_ prefix
func FromConfig(cfg config.Conf) Options {
	gc := cfg.Prefix("GUILDS_")
	return Options{
		SyncTTL: gc.MayDuration("SYNC_TTL", 5*time.Minute),
	}
}
