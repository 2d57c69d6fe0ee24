package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	perr "rolegate/internal/platform/errors"
)

// IsVerified looks up a member's verification status.
// A 404 from the API means the user has not verified; that is not an error
func (c *Client) IsVerified(ctx context.Context, userID, guildID string) (Verification, bool, error) {
	q := url.Values{}
	q.Set("userId", userID)
	q.Set("guildId", guildID)
	path := "/api/v1/verified?" + q.Encode()

	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return Verification{}, false, err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.log.Error().Err(cerr).Str("path", path).Msg("verify close body failed")
		}
	}()

	if resp.StatusCode == http.StatusNotFound {
		return Verification{}, false, nil
	}

	var out Verification
	if err := decode(resp.Body, &out); err != nil {
		return Verification{}, false, err
	}
	return out, out.Verified, nil
}

// GuildRecord fetches the registration record for a guild.
// 404 maps to a not found error since callers treat a missing guild as misconfiguration
func (c *Client) GuildRecord(ctx context.Context, guildID string) (GuildRecord, error) {
	path := fmt.Sprintf("/api/v1/guild/%s", url.PathEscape(guildID))

	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return GuildRecord{}, err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.log.Error().Err(cerr).Str("path", path).Msg("verify close body failed")
		}
	}()

	if resp.StatusCode == http.StatusNotFound {
		return GuildRecord{}, perr.NotFoundf("guild %s not registered", guildID)
	}

	var out GuildRecord
	if err := decode(resp.Body, &out); err != nil {
		return GuildRecord{}, err
	}
	return out, nil
}

// RegisterGuild registers a guild with the verification service.
// A 409 means the guild is already registered and is treated as success
func (c *Client) RegisterGuild(ctx context.Context, p RegisterParams) error {
	b, err := json.Marshal(p)
	if err != nil {
		return perr.JSONErrf("verify marshal register params: %v", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/api/v1/guild/register", b)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.log.Error().Err(cerr).Msg("verify close body failed")
		}
	}()

	if resp.StatusCode == http.StatusConflict {
		c.log.Debug().Str("guild_id", p.GuildID).Msg("guild already registered")
		return nil
	}
	if resp.StatusCode == http.StatusNotFound {
		return perr.NotFoundf("verify register endpoint missing")
	}
	return nil
}

func decode(r io.Reader, v any) error {
	b, err := io.ReadAll(io.LimitReader(r, 1<<20))
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "verify read body failed")
	}
	if err := json.Unmarshal(b, v); err != nil {
		return perr.JSONErrf("verify decode body: %v", err)
	}
	return nil
}
