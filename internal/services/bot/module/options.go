package module

import (
	"time"

	"rolegate/internal/platform/config"
)

// Options controls bot behavior. Values may also be read from env
type Options struct {
	AppID     string
	VerifyURL string
	JobPoll   time.Duration
	JobWait   time.Duration
}

// FromConfig reads options using BOT_ prefix
func FromConfig(cfg config.Conf) Options {
	bc := cfg.Prefix("BOT_")
	return Options{
		AppID:     bc.MayString("APP_ID", ""),
		VerifyURL: bc.MustString("VERIFY_URL"),
		JobPoll:   bc.MayDuration("JOB_POLL", time.Second),
		JobWait:   bc.MayDuration("JOB_WAIT", 10*time.Minute),
	}
}
