// Package fetcher retrieves tender detail pages from the procurement portal.
package fetcher

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-resty/resty/v2"
	"github.com/timmy/tenderkg/internal/domain"
	"github.com/timmy/tenderkg/internal/logger"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL      = "https://web.pcc.gov.tw"
	DefaultPathTemplate = "/tps/QueryTender/query/searchTenderDetail?pkPmsMain={id}"
	DefaultTimeout      = 30 * time.Second
	DefaultUserAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	DefaultAccept       = "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8"
)

// DocumentFetcher is anything that can produce the raw page of a tender.
type DocumentFetcher interface {
	Fetch(ctx context.Context, id string) (*domain.RawDocument, error)
}

// Config holds configuration for the HTTP fetcher.
type Config struct {
	BaseURL      string
	PathTemplate string // {id} is replaced by the query-escaped identifier
	Timeout      time.Duration
	UserAgent    string
	Accept       string
	Policy       RetryPolicy
	Clock        Clock // nil uses SystemClock

	// RatePerSecond bounds requests across every caller sharing this fetcher.
	// Zero disables the limiter.
	RatePerSecond float64
	RateBurst     int
}

// Fetcher is an HTTP DocumentFetcher. One Fetcher owns one connection pool
// and is safe for concurrent use; call Close when done.
type Fetcher struct {
	client       *resty.Client
	baseURL      string
	pathTemplate string
	policy       RetryPolicy
	clock        Clock
	limiter      *rate.Limiter
}

// New creates a fetcher from cfg, filling unset fields with defaults.
func New(cfg *Config) *Fetcher {
	if cfg == nil {
		cfg = &Config{}
	}
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	pathTemplate := cfg.PathTemplate
	if pathTemplate == "" {
		pathTemplate = DefaultPathTemplate
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	accept := cfg.Accept
	if accept == "" {
		accept = DefaultAccept
	}
	policy := cfg.Policy
	if policy.MaxAttempts == 0 && policy.Backoff == nil && policy.Jitter == nil {
		policy = DefaultRetryPolicy()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock{}
	}

	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("User-Agent", userAgent)
	client.SetHeader("Accept", accept)
	client.SetHeader("Accept-Language", "zh-TW,zh;q=0.9,en;q=0.8")
	client.SetLogger(logger.GetDefault())

	f := &Fetcher{
		client:       client,
		baseURL:      baseURL,
		pathTemplate: pathTemplate,
		policy:       policy,
		clock:        clock,
	}
	if cfg.RatePerSecond > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return f
}

// URL returns the address of the tender page for id.
func (f *Fetcher) URL(id string) string {
	return f.baseURL + strings.ReplaceAll(f.pathTemplate, "{id}", url.QueryEscape(id))
}

// Close releases idle pooled connections.
func (f *Fetcher) Close() error {
	f.client.GetClient().CloseIdleConnections()
	return nil
}

// Fetch retrieves the page for id, retrying per the policy. A context error is
// returned as is; every other failure is a *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, id string) (*domain.RawDocument, error) {
	target := f.URL(id)
	log := logger.FromContext(ctx).WithField("url", target)

	maxAttempts := f.policy.attempts()
	var last *FetchError
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				// The next token would arrive after the deadline.
				return nil, &FetchError{Kind: KindTimeout, ID: id, URL: target, Attempts: attempt - 1, Err: err}
			}
		}

		doc, ferr := f.attempt(ctx, id, target)
		if ferr == nil {
			log.WithField(logger.FieldAttempt, attempt).Info("Fetched tender page")
			// Throttles the next request, not this one. The page is already in
			// hand, so a cancellation here is left to the caller's next step.
			_ = f.clock.Sleep(ctx, f.policy.jitter())
			return doc, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		last = ferr
		log.WithFields(logger.Fields{
			logger.FieldAttempt: attempt,
			"kind":              ferr.Kind,
			"status_code":       ferr.StatusCode,
		}).WithError(ferr.Err).Warn("Fetch attempt failed")

		if attempt < maxAttempts {
			if err := f.clock.Sleep(ctx, f.policy.backoff(attempt)); err != nil {
				return nil, err
			}
		}
	}

	return nil, &FetchError{
		Kind:       KindRetriesExhausted,
		ID:         id,
		URL:        target,
		StatusCode: last.StatusCode,
		Attempts:   maxAttempts,
		Err:        last,
	}
}

func (f *Fetcher) attempt(ctx context.Context, id, target string) (*domain.RawDocument, *FetchError) {
	resp, err := f.client.R().SetContext(ctx).Get(target)
	if err != nil {
		kind := KindNetwork
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			kind = KindTimeout
		}
		return nil, &FetchError{Kind: kind, ID: id, URL: target, Err: err}
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, &FetchError{
			Kind:       KindHTTPStatus,
			ID:         id,
			URL:        target,
			StatusCode: resp.StatusCode(),
			Err:        errors.Newf("HTTP %d: %s", resp.StatusCode(), http.StatusText(resp.StatusCode())),
		}
	}

	return &domain.RawDocument{
		ID:         id,
		URL:        target,
		Body:       resp.Body(),
		StatusCode: resp.StatusCode(),
		FetchedAt:  f.clock.Now(),
	}, nil
}
