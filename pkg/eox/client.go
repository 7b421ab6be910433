// Package eox is a client for the EoX (end-of-life) lookup-by-serial API.
package eox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/eox-report/pkg/auth"
	"github.com/Sternrassler/eox-report/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for EoX client operations.
var (
	eoxRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eox_requests_total",
		Help: "Total EoX lookup requests by HTTP status",
	}, []string{"status"})

	eoxRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "eox_request_duration_seconds",
		Help:    "EoX lookup request duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})

	eoxErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eox_errors_total",
		Help: "Total EoX lookup errors by class",
	}, []string{"class"})

	eoxRateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eox_rate_limited_total",
		Help: "Total 429 responses received from the EoX API",
	})
)

// maxErrorBody bounds how much of an error response is kept for the error message.
const maxErrorBody = 512

// Config holds the client configuration.
type Config struct {
	// BaseURL is the EOXBySerialNumber endpoint without page index or serials.
	BaseURL string

	// Timeout per HTTP request.
	Timeout time.Duration

	// UserAgent header sent with every request (optional).
	UserAgent string

	// Retry controls 429 handling.
	Retry RetryConfig
}

// DefaultConfig returns a default configuration for the given endpoint.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:   baseURL,
		Timeout:   30 * time.Second,
		UserAgent: "eox-report/1.0",
		Retry:     DefaultRetryConfig(),
	}
}

// Client performs EoX lookups. It holds no per-run state.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// New creates a new EoX client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if !strings.HasPrefix(cfg.BaseURL, "http://") && !strings.HasPrefix(cfg.BaseURL, "https://") {
		return nil, fmt.Errorf("base url must be http(s) (got %q)", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		config: cfg,
		logger: logging.NewLogger("eox-client"),
	}, nil
}

// URL returns the request URL for one page of a serial lookup.
func (c *Client) URL(serials []string, page int) string {
	return c.config.BaseURL + "/" + strconv.Itoa(page) + "/" + strings.Join(serials, ",")
}

// Lookup fetches one result page for the given serials.
// Any non-2xx status, transport failure, or undecodable body is returned as *APIError.
func (c *Client) Lookup(ctx context.Context, token auth.Token, serials []string, page int) (*Response, error) {
	if len(serials) == 0 {
		return nil, ErrNoSerials
	}
	if page < 1 {
		page = 1
	}

	startTime := time.Now()
	defer func() {
		eoxRequestDuration.Observe(time.Since(startTime).Seconds())
	}()

	target := c.URL(serials, page)

	c.logger.Debug().
		Int("serials", len(serials)).
		Int("page", page).
		Msg("Executing EoX request")

	resp, err := c.doWithRateLimit(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", token.Header())
		req.Header.Set("Accept", "application/json")
		if c.config.UserAgent != "" {
			req.Header.Set("User-Agent", c.config.UserAgent)
		}
		return req, nil
	})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			eoxErrorsTotal.WithLabelValues(string(apiErr.ErrorClass)).Inc()
			eoxRequestsTotal.WithLabelValues(strconv.Itoa(apiErr.StatusCode)).Inc()
			return nil, apiErr
		}
		eoxErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		eoxRequestsTotal.WithLabelValues("network_error").Inc()
		c.logger.Error().Err(err).Int("page", page).Msg("HTTP request failed")
		return nil, &APIError{
			ErrorClass: ErrorClassNetwork,
			Message:    "request failed",
			Err:        err,
		}
	}
	defer resp.Body.Close()

	eoxRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	if class := classifyStatus(resp.StatusCode); class != "" {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		eoxErrorsTotal.WithLabelValues(string(class)).Inc()

		c.logger.Warn().
			Int("status_code", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("EoX request error")

		msg := resp.Status
		if trimmed := strings.TrimSpace(string(body)); trimmed != "" {
			msg = resp.Status + ": " + trimmed
		}
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: class,
			Message:    msg,
		}
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		eoxErrorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassDecode,
			Message:    "decode EoX response",
			Err:        err,
		}
	}

	c.logger.Debug().
		Int("page", page).
		Int("last_page", out.LastPage()).
		Int("records", len(out.Records)).
		Msg("EoX response decoded")

	return &out, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
