// Package discord wraps the Discord REST surface the reconciler needs
// behind a narrow seam so tests can run without a gateway session
package discord

import (
	"context"
	"errors"
	"net/http"
	"time"

	perr "rolegate/internal/platform/errors"
	"rolegate/internal/platform/logger"
	"rolegate/internal/platform/retry"

	"github.com/bwmarrin/discordgo"
)

// API is the slice of *discordgo.Session the client depends on
type API interface {
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	GuildMembers(guildID, after string, limit int, options ...discordgo.RequestOption) ([]*discordgo.Member, error)
	GuildRole(guildID, roleID string, options ...discordgo.RequestOption) (*discordgo.Role, error)
}

// Options configures the Client
type Options struct {
	// Retry config for rate limited and transient failures
	Retry retry.Policy
}

// Client applies role mutations with quota aware retries
type Client struct {
	api   API
	opts  Options
	log   logger.Logger
	sleep func(time.Duration)
}

// NewClient wraps an API (usually a *discordgo.Session)
func NewClient(api API, o Options) *Client {
	return &Client{
		api:   api,
		opts:  o,
		log:   *logger.Named("discord"),
		sleep: time.Sleep,
	}
}

// Grant adds roleID to the member
func (c *Client) Grant(ctx context.Context, guildID, userID, roleID string) error {
	return c.mutate(ctx, "grant", guildID, userID, roleID, c.api.GuildMemberRoleAdd)
}

// Revoke removes roleID from the member
func (c *Client) Revoke(ctx context.Context, guildID, userID, roleID string) error {
	return c.mutate(ctx, "revoke", guildID, userID, roleID, c.api.GuildMemberRoleRemove)
}

type roleCall func(guildID, userID, roleID string, options ...discordgo.RequestOption) error

// mutate runs a role call, waiting out rate limits and retrying transient
// failures up to the policy ceiling. Permanent rejections return immediately
func (c *Client) mutate(ctx context.Context, op, guildID, userID, roleID string, call roleCall) error {
	attempts := 0
	for {
		select {
		case <-ctx.Done():
			return perr.Wrapf(ctx.Err(), perr.ErrorCodeUnavailable, "discord %s canceled", op)
		default:
		}

		err := call(guildID, userID, roleID, discordgo.WithContext(ctx))
		if err == nil {
			return nil
		}

		var rl *discordgo.RateLimitError
		if errors.As(err, &rl) {
			if !c.opts.Retry.ShouldRetry(attempts) {
				return perr.TooManyRequestsf("discord %s rate limited for %s/%s", op, guildID, userID)
			}
			c.log.Warn().
				Str("op", op).
				Str("guild_id", guildID).
				Dur("retry_after", rl.RetryAfter).
				Msg("discord rate limited waiting")
			c.sleep(rl.RetryAfter)
			attempts++
			continue
		}

		if code, ok := restStatus(err); ok {
			switch {
			case code == http.StatusForbidden:
				return perr.Forbiddenf("discord %s forbidden for %s/%s", op, guildID, userID)
			case code == http.StatusNotFound:
				return perr.NotFoundf("discord %s target missing for %s/%s", op, guildID, userID)
			case code >= 500:
				// transient, fall through to backoff
			default:
				return perr.Wrapf(err, perr.ErrorCodeUnknown, "discord %s failed", op)
			}
		}

		if !c.opts.Retry.ShouldRetry(attempts) {
			return perr.Wrapf(err, perr.ErrorCodeUnavailable, "discord %s failed after retries", op)
		}
		back := c.opts.Retry.Backoff(attempts)
		c.log.Warn().Str("op", op).Dur("retry_in", back).Int("attempt", attempts).Msg("discord transient error retrying")
		c.sleep(back)
		attempts++
	}
}

// RoleExists reports whether roleID still exists in the guild
func (c *Client) RoleExists(ctx context.Context, guildID, roleID string) (bool, error) {
	_, err := c.api.GuildRole(guildID, roleID, discordgo.WithContext(ctx))
	if err == nil {
		return true, nil
	}
	if code, ok := restStatus(err); ok && code == http.StatusNotFound {
		return false, nil
	}
	return false, perr.Wrapf(err, perr.ErrorCodeUnavailable, "discord role lookup failed")
}

func restStatus(err error) (int, bool) {
	var re *discordgo.RESTError
	if errors.As(err, &re) && re.Response != nil {
		return re.Response.StatusCode, true
	}
	return 0, false
}
