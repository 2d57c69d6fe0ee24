package module

import "rolegate/internal/platform/config"

// Options controls engine behavior. Values may also be read from env
type Options struct {
	Concurrency int
}

// FromConfig reads options using RECONCILE_ prefix
func FromConfig(cfg config.Conf) Options {
	rc := cfg.Prefix("RECONCILE_")
	return Options{
		Concurrency: rc.MayInt("WORKER_CONCURRENCY", 4),
	}
}
