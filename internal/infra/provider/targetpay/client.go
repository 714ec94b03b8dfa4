package targetpay

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"webshop-payments/internal/domain"
	"webshop-payments/internal/infra/metrics"
)

// maxAttempts bounds transport-level retries. Retries cover connection
// errors only; a well-formed provider answer is never retried.
const maxAttempts = 3

// client issues the outbound start/check requests. Every request and its
// raw response (or error) is logged before the result propagates, so the
// audit trail is complete even when the caller errors out.
type client struct {
	http *http.Client
	log  *zerolog.Logger
	sub  string
}

func newClient(timeout time.Duration, submethod string, logger *zerolog.Logger) *client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &client{
		http: &http.Client{Timeout: timeout},
		log:  logger,
		sub:  submethod,
	}
}

// get performs an HTTP GET with URL-encoded parameters. Connection-level
// failures (timeout, refused, non-2xx) are retried up to maxAttempts with
// no backoff; exhausting them surfaces ErrRemoteUnavailable. No status is
// ever synthesized for an unreachable remote.
func (c *client) get(ctx context.Context, rawURL string, params url.Values) (string, error) {
	full := rawURL + "?" + params.Encode()
	trace := ulid.Make().String()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		c.log.Info().
			Str("trace_id", trace).
			Str("channel", "qry."+c.sub).
			Int("attempt", attempt).
			Msg(full)

		body, err := c.fetch(ctx, full)
		if err != nil {
			lastErr = err
			c.log.Warn().
				Str("trace_id", trace).
				Str("channel", "ret."+c.sub).
				Int("attempt", attempt).
				Err(err).
				Msg("connection error")
			if attempt < maxAttempts {
				metrics.IncRemoteCallRetry(c.sub)
			}
			continue
		}

		c.log.Info().
			Str("trace_id", trace).
			Str("channel", "ret."+c.sub).
			Msg(body)
		metrics.IncRemoteCall(c.sub, "ok")
		return body, nil
	}

	metrics.IncRemoteCall(c.sub, "unavailable")
	return "", fmt.Errorf("%w: %v", domain.ErrRemoteUnavailable, lastErr)
}

func (c *client) fetch(ctx context.Context, fullURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("http status %d", resp.StatusCode)
	}
	return string(body), nil
}
