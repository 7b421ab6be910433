package eox

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// RetryConfig controls how 429 responses are honored. Nothing else is retried.
type RetryConfig struct {
	// MaxAttempts is the maximum number of requests including the first one.
	MaxAttempts int

	// DefaultWait is used when a 429 carries no usable Retry-After header.
	DefaultWait time.Duration

	// MaxWait caps the wait requested by the service.
	MaxWait time.Duration
}

// DefaultRetryConfig returns the default rate limit handling.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		DefaultWait: 2 * time.Second,
		MaxWait:     60 * time.Second,
	}
}

// parseRetryAfter reads Retry-After as delta-seconds or an HTTP date.
func parseRetryAfter(header http.Header, now time.Time, fallback, max time.Duration) time.Duration {
	value := header.Get("Retry-After")
	if value == "" {
		return fallback
	}

	var wait time.Duration
	if secs, err := strconv.Atoi(value); err == nil {
		wait = time.Duration(secs) * time.Second
	} else if at, err := http.ParseTime(value); err == nil {
		wait = at.Sub(now)
	} else {
		return fallback
	}

	if wait < 0 {
		wait = 0
	}
	if max > 0 && wait > max {
		wait = max
	}
	return wait
}

// doWithRateLimit sends the request built by newReq, waiting and resending
// while the service answers 429. The final response is returned unread;
// the caller owns its body.
func (c *Client) doWithRateLimit(ctx context.Context, newReq func() (*http.Request, error)) (*http.Response, error) {
	cfg := c.config.Retry
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	for attempt := 1; ; attempt++ {
		req, err := newReq()
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			if attempt > 1 {
				c.logger.Info().
					Int("attempt", attempt).
					Msg("Request succeeded after rate limit wait")
			}
			return resp, nil
		}

		resp.Body.Close()
		eoxRateLimitedTotal.Inc()

		if attempt >= cfg.MaxAttempts {
			c.logger.Warn().
				Int("max_attempts", cfg.MaxAttempts).
				Msg("Rate limit retries exhausted")
			return nil, &APIError{
				StatusCode: http.StatusTooManyRequests,
				ErrorClass: ErrorClassRateLimit,
				Message:    resp.Status,
				Err:        fmt.Errorf("%w after %d attempts", ErrRateLimitExhausted, cfg.MaxAttempts),
			}
		}

		wait := parseRetryAfter(resp.Header, time.Now(), cfg.DefaultWait, cfg.MaxWait)
		c.logger.Warn().
			Int("attempt", attempt).
			Dur("retry_after", wait).
			Msg("EoX rate limit hit, waiting as instructed")

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-time.After(wait):
		}
	}
}
