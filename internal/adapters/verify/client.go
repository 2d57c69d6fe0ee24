// Package verify provides a resilient client for the identity verification API
package verify

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	perr "rolegate/internal/platform/errors"
	"rolegate/internal/platform/logger"
	"rolegate/internal/platform/retry"

	"golang.org/x/time/rate"
)

const (
	defaultTimeout = 10 * time.Second
	defaultUA      = "rolegate"
	defaultRPS     = 10
	defaultBurst   = 5
)

// Options configures the Client
type Options struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration

	// Client side throttle applied before every request
	RPS   float64
	Burst int

	// Retry config for transient and rate limited responses
	Retry retry.Policy
}

// tokenWaiter blocks until the throttle admits one request
type tokenWaiter interface {
	Wait(ctx context.Context) error
}

// Client is a minimal verification API client with throttling and retries
type Client struct {
	http    *http.Client
	opts    Options
	limiter tokenWaiter
	log     logger.Logger
	now     func() time.Time
	sleep   func(time.Duration)
}

// NewClient creates a new Client with sane defaults
func NewClient(o Options) *Client {
	o.BaseURL = strings.TrimRight(o.BaseURL, "/")
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.RPS <= 0 {
		o.RPS = defaultRPS
	}
	if o.Burst <= 0 {
		o.Burst = defaultBurst
	}
	return &Client{
		http:    &http.Client{Timeout: o.Timeout},
		opts:    o,
		limiter: rate.NewLimiter(rate.Limit(o.RPS), o.Burst),
		log:     *logger.Named("verify"),
		now:     time.Now,
		sleep:   time.Sleep,
	}
}

// do issues a request with auth headers, throttling, and retries
// 2xx, 404, and 409 responses are returned to the caller for endpoint level handling
// payload is re-read on every attempt so retries resend the full body
func (c *Client) do(ctx context.Context, method, path string, payload []byte) (*http.Response, error) {
	url := c.opts.BaseURL + path
	attempts := 0
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "verify throttle wait failed")
		}

		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, body)
		if err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "verify new request failed")
		}
		req.Header.Set("User-Agent", defaultUA)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.opts.APIKey != "" {
			req.Header.Set("Authorization", c.opts.APIKey)
		}

		start := c.now()
		resp, err := c.http.Do(req)
		lat := c.now().Sub(start)

		if err != nil {
			if ctx.Err() != nil {
				return nil, perr.Wrapf(ctx.Err(), perr.ErrorCodeUnavailable, "verify request canceled")
			}
			if !c.opts.Retry.ShouldRetry(attempts) {
				return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "verify do failed")
			}
			back := c.opts.Retry.Backoff(attempts)
			c.log.Warn().Dur("retry_in", back).Int("attempt", attempts).Msg("verify transport error retrying")
			c.sleep(back)
			attempts++
			continue
		}

		c.log.Debug().
			Str("method", method).
			Str("path", path).
			Int("status", resp.StatusCode).
			Int("attempt", attempts).
			Dur("latency", lat).
			Msg("verify http response")

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return resp, nil
		case resp.StatusCode == http.StatusNotFound:
			return resp, nil
		case resp.StatusCode == http.StatusConflict:
			return resp, nil
		case resp.StatusCode == http.StatusTooManyRequests:
			wait := retryAfter(resp.Header)
			if wait <= 0 {
				wait = c.opts.Retry.Backoff(attempts)
			}
			_ = drainAndClose(resp.Body)
			if !c.opts.Retry.ShouldRetry(attempts) {
				return nil, perr.TooManyRequestsf("verify rate limited")
			}
			c.log.Warn().Dur("sleep", wait).Msg("verify rate limited backing off")
			c.sleep(wait)
			attempts++
			continue
		case resp.StatusCode == http.StatusUnauthorized:
			_ = drainAndClose(resp.Body)
			return nil, perr.Unauthorizedf("verify rejected api key")
		case resp.StatusCode == http.StatusBadRequest:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			_ = resp.Body.Close()
			return nil, perr.InvalidArgf("verify bad request: %s", string(body))
		case resp.StatusCode >= 500:
			_ = drainAndClose(resp.Body)
			if !c.opts.Retry.ShouldRetry(attempts) {
				return nil, perr.Unavailablef("verify server error %d", resp.StatusCode)
			}
			back := c.opts.Retry.Backoff(attempts)
			c.log.Warn().Dur("retry_in", back).Int("attempt", attempts).Msg("verify transient error retrying")
			c.sleep(back)
			attempts++
			continue
		default:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			_ = resp.Body.Close()
			return nil, perr.Newf(perr.ErrorCodeUnknown, "verify unexpected status %d body %s", resp.StatusCode, string(body))
		}
	}
}

func retryAfter(h http.Header) time.Duration {
	s := h.Get("Retry-After")
	if s == "" {
		return 0
	}
	sec, err := strconv.Atoi(s)
	if err != nil || sec <= 0 {
		return 0
	}
	return time.Duration(sec) * time.Second
}

func drainAndClose(rc io.ReadCloser) error {
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, 512))
	return rc.Close()
}
