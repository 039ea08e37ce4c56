// Package rates supplies statutory tax rates with a live -> cache -> default fallback chain.
package rates

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
)

// Source tags where a rate value came from.
type Source string

const (
	SourceLive     Source = "live"
	SourceCache    Source = "cache"
	SourceFallback Source = "fallback"
)

// Rate keys, shared with the live rate table.
const (
	KeyRnDOffset           = "rnd_offset_rate"
	KeyCorporateSmall      = "corporate_rate_small"
	KeyCorporateStandard   = "corporate_rate_standard"
	KeyDivision7ABenchmark = "division_7a_benchmark"
)

// Keys lists every rate the provider resolves.
var Keys = []string{KeyRnDOffset, KeyCorporateSmall, KeyCorporateStandard, KeyDivision7ABenchmark}

// Statutory defaults used when neither the live source nor the cache can answer.
var (
	DefaultRnDOffsetRate         = decimal.RequireFromString("0.435")
	DefaultCorporateRateSmall    = decimal.RequireFromString("0.25")
	DefaultCorporateRateStandard = decimal.RequireFromString("0.30")
	DefaultDivision7ABenchmark   = decimal.RequireFromString("0.0877")
)

// Rates is a consistent snapshot of current statutory rates.
type Rates struct {
	RnDOffsetRate         decimal.Decimal   `json:"rndOffsetRate"`
	CorporateRateSmall    decimal.Decimal   `json:"corporateRateSmall"`
	CorporateRateStandard decimal.Decimal   `json:"corporateRateStandard"`
	Division7ABenchmark   decimal.Decimal   `json:"division7aBenchmark"`
	Sources               map[string]Source `json:"sources"`
	// VerifiedAt is when the values were last confirmed by the live source.
	// Zero when every value is a statutory default.
	VerifiedAt time.Time `json:"verifiedAt"`
}

// Defaults returns the hardcoded statutory rates, all tagged as fallback.
func Defaults() Rates {
	sources := make(map[string]Source, len(Keys))
	for _, k := range Keys {
		sources[k] = SourceFallback
	}
	return Rates{
		RnDOffsetRate:         DefaultRnDOffsetRate,
		CorporateRateSmall:    DefaultCorporateRateSmall,
		CorporateRateStandard: DefaultCorporateRateStandard,
		Division7ABenchmark:   DefaultDivision7ABenchmark,
		Sources:               sources,
	}
}

func (r Rates) clone() Rates {
	r.Sources = maps.Clone(r.Sources)
	return r
}

// cached returns a copy with live values retagged as served from cache.
func (r Rates) cached() Rates {
	c := r.clone()
	for k, s := range c.Sources {
		if s == SourceLive {
			c.Sources[k] = SourceCache
		}
	}
	return c
}

func (r *Rates) set(key string, v decimal.Decimal) {
	switch key {
	case KeyRnDOffset:
		r.RnDOffsetRate = v
	case KeyCorporateSmall:
		r.CorporateRateSmall = v
	case KeyCorporateStandard:
		r.CorporateRateStandard = v
	case KeyDivision7ABenchmark:
		r.Division7ABenchmark = v
	}
}

// Reader is implemented by anything that can supply current rates.
// Implementations must never fail; degraded answers are tagged instead.
type Reader interface {
	GetCurrentRates(ctx context.Context) Rates
}

// Fixed is a Reader that always returns the same rates.
type Fixed Rates

// GetCurrentRates returns a copy of the fixed rates.
func (f Fixed) GetCurrentRates(_ context.Context) Rates {
	return Rates(f).clone()
}

// LiveSource fetches rates from an authoritative store. Missing keys are allowed.
type LiveSource interface {
	FetchRates(ctx context.Context) (map[string]decimal.Decimal, error)
}

// ErrNoLiveRates is returned by live sources that hold no rate rows.
var ErrNoLiveRates = errors.New("no live rates available")

const (
	freshKey     = "rates"
	lastKnownKey = "rates:last-known"
)

// Provider resolves rates through live source, TTL cache and statutory defaults.
// It is safe for concurrent use.
type Provider struct {
	live         LiveSource
	cache        *cache.Cache
	ttl          time.Duration
	timeout      time.Duration
	attempts     int
	initialDelay time.Duration
	now          func() time.Time
}

// Option configures a Provider.
type Option func(*Provider)

// WithTTL sets how long a live answer is served from cache.
func WithTTL(ttl time.Duration) Option {
	return func(p *Provider) { p.ttl = ttl }
}

// WithTimeout bounds each live fetch attempt.
func WithTimeout(timeout time.Duration) Option {
	return func(p *Provider) { p.timeout = timeout }
}

// WithRetries sets the attempt count and initial backoff delay for live fetches.
func WithRetries(attempts int, initialDelay time.Duration) Option {
	return func(p *Provider) {
		p.attempts = attempts
		p.initialDelay = initialDelay
	}
}

// WithClock overrides the time source used for VerifiedAt.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

// NewProvider creates a Provider. live may be nil, in which case only defaults are served.
func NewProvider(live LiveSource, opts ...Option) *Provider {
	p := &Provider{
		live:         live,
		ttl:          24 * time.Hour,
		timeout:      5 * time.Second,
		attempts:     3,
		initialDelay: 200 * time.Millisecond,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.cache = cache.New(p.ttl, 2*p.ttl)
	return p
}

// GetCurrentRates returns current rates and never fails.
func (p *Provider) GetCurrentRates(ctx context.Context) Rates {
	if v, ok := p.cache.Get(freshKey); ok {
		return v.(Rates).cached()
	}

	if p.live != nil {
		fetched, err := p.fetchWithRetry(ctx)
		if err == nil {
			r := p.merge(fetched)
			p.cache.Set(freshKey, r, p.ttl)
			p.cache.Set(lastKnownKey, r, cache.NoExpiration)
			return r.clone()
		}
		slog.Warn("live rate fetch failed", "error", err)
	}

	if v, ok := p.cache.Get(lastKnownKey); ok {
		stale := v.(Rates).cached()
		slog.Warn("serving last known rates from cache", "verified_at", stale.VerifiedAt.Format(time.RFC3339))
		return stale
	}

	slog.Warn("serving statutory default rates")
	return Defaults()
}

// Invalidate drops the fresh cache entry so the next call consults the live source.
// The last known value is kept for fallback.
func (p *Provider) Invalidate() {
	p.cache.Delete(freshKey)
}

func (p *Provider) merge(fetched map[string]decimal.Decimal) Rates {
	r := Defaults()
	for _, k := range Keys {
		v, ok := fetched[k]
		if !ok || !v.IsPositive() {
			continue
		}
		r.set(k, v)
		r.Sources[k] = SourceLive
	}
	r.VerifiedAt = p.now().UTC()
	return r
}

func (p *Provider) fetchWithRetry(ctx context.Context) (map[string]decimal.Decimal, error) {
	attempts := max(p.attempts, 1)
	delay := p.initialDelay

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		fetched, err := p.fetchOnce(ctx)
		if err == nil {
			return fetched, nil
		}
		lastErr = err
		if errors.Is(err, ErrNoLiveRates) || attempt == attempts {
			break
		}

		slog.Debug("retrying live rate fetch", "attempt", attempt, "max_attempts", attempts, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
			delay *= 2
		}
	}
	return nil, fmt.Errorf("failed to fetch live rates after %d attempts: %w", attempts, lastErr)
}

func (p *Provider) fetchOnce(ctx context.Context) (map[string]decimal.Decimal, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	fetched, err := p.live.FetchRates(fetchCtx)
	if err != nil {
		return nil, err
	}
	if len(fetched) == 0 {
		return nil, ErrNoLiveRates
	}
	return fetched, nil
}
