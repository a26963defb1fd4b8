// Package opendata downloads competitions, matches and events from the
// StatsBomb open-data repository, caching every document locally.
package opendata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/danielpatrickdp/xtpatterns/internal/events"
	"github.com/danielpatrickdp/xtpatterns/internal/metrics"
)

// #region config

// DefaultBaseURL is the raw-content root of the open-data repository.
const DefaultBaseURL = "https://raw.githubusercontent.com/statsbomb/open-data/master/data"

// Config controls the client.
type Config struct {
	BaseURL      string
	UserAgent    string
	Timeout      time.Duration
	Retries      int           // attempts per document
	Backoff      time.Duration // sleep before attempt i+1 is Backoff*(i+1)
	RequestsPerS float64       // 0 disables rate limiting
	Burst        int
	Workers      int // concurrent event downloads

	CompetitionPrefix string // case-insensitive prefix of competition_name
	SeasonPrefix      string // prefix of season_name
	FallbackComp      int
	FallbackSeason    int
}

// DefaultConfig targets the 2018 men's World Cup.
func DefaultConfig() Config {
	return Config{
		BaseURL:           DefaultBaseURL,
		UserAgent:         "xtpatterns/1.0",
		Timeout:           30 * time.Second,
		Retries:           5,
		Backoff:           time.Second,
		RequestsPerS:      8,
		Burst:             4,
		Workers:           4,
		CompetitionPrefix: "FIFA World Cup",
		SeasonPrefix:      "2018",
		FallbackComp:      43,
		FallbackSeason:    3,
	}
}

// #endregion config

// #region client

// Cache stores raw documents by relative path.
type Cache interface {
	Get(key string) ([]byte, bool, error)
	Put(key string, val []byte) error
}

// Client fetches open-data documents. Safe for concurrent use.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	cache   Cache
	logger  *slog.Logger
	metrics *metrics.Metrics
	sleep   func(ctx context.Context, d time.Duration) error
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

// WithCache enables the document cache.
func WithCache(cache Cache) Option { return func(c *Client) { c.cache = cache } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.logger = l } }

// WithMetrics records request outcomes and cache hits.
func WithMetrics(m *metrics.Metrics) Option { return func(c *Client) { c.metrics = m } }

// New builds a client.
func New(cfg Config, opts ...Option) *Client {
	c := &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: slog.Default(),
		sleep:  sleepCtx,
	}
	if cfg.RequestsPerS > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerS), max(cfg.Burst, 1))
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ErrUnavailable is wrapped when a document cannot be fetched after all retries.
var ErrUnavailable = errors.New("document unavailable")

// Document returns the raw JSON at path (relative to the base URL), from
// cache when present.
func (c *Client) Document(ctx context.Context, path string) ([]byte, error) {
	if c.cache != nil {
		body, ok, err := c.cache.Get(path)
		if err != nil {
			c.logger.Warn("cache read failed", "path", path, "error", err)
		} else if ok {
			c.metrics.CacheHit()
			return body, nil
		}
	}

	body, err := c.fetch(ctx, path)
	if err != nil {
		return nil, err
	}
	if c.cache != nil {
		if err := c.cache.Put(path, body); err != nil {
			c.logger.Warn("cache write failed", "path", path, "error", err)
		}
	}
	return body, nil
}

func (c *Client) fetch(ctx context.Context, path string) ([]byte, error) {
	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/" + path
	attempts := max(c.cfg.Retries, 1)

	var lastErr error
	for i := range attempts {
		body, err := c.get(ctx, url)
		if err == nil {
			c.metrics.Request(metrics.OutcomeOK)
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		c.metrics.Request(metrics.OutcomeRetry)
		c.logger.Debug("open-data attempt failed", "url", url, "attempt", i+1, "error", err)
		if err := c.sleep(ctx, c.cfg.Backoff*time.Duration(i+1)); err != nil {
			return nil, err
		}
	}
	c.metrics.Request(metrics.OutcomeError)
	return nil, fmt.Errorf("get %s: %w: %v", url, ErrUnavailable, lastErr)
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// #endregion client

// #region documents

func getJSON[T any](ctx context.Context, c *Client, path string) (T, error) {
	var out T
	body, err := c.Document(ctx, path)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, fmt.Errorf("decode %s: %w", path, err)
	}
	return out, nil
}

// Competitions lists every competition season.
func (c *Client) Competitions(ctx context.Context) ([]events.Competition, error) {
	return getJSON[[]events.Competition](ctx, c, "competitions.json")
}

// Matches lists the matches of one competition season.
func (c *Client) Matches(ctx context.Context, compID, seasonID int) ([]events.Match, error) {
	return getJSON[[]events.Match](ctx, c, fmt.Sprintf("matches/%d/%d.json", compID, seasonID))
}

// Events returns one match's events tagged with the match id.
func (c *Client) Events(ctx context.Context, matchID int) ([]events.Event, error) {
	evs, err := getJSON[[]events.Event](ctx, c, fmt.Sprintf("events/%d.json", matchID))
	if err != nil {
		return nil, err
	}
	events.Normalize(matchID, evs)
	return evs, nil
}

// SelectCompetition picks the first competition whose name starts with
// namePrefix (case-insensitive) and whose season starts with seasonPrefix,
// or the fallback ids when none match.
func SelectCompetition(comps []events.Competition, namePrefix, seasonPrefix string, fallbackComp, fallbackSeason int) (int, int) {
	namePrefix = strings.ToLower(namePrefix)
	for _, c := range comps {
		if strings.HasPrefix(strings.ToLower(c.CompetitionName), namePrefix) &&
			strings.HasPrefix(c.SeasonName, seasonPrefix) {
			return c.CompetitionID, c.SeasonID
		}
	}
	return fallbackComp, fallbackSeason
}

// #endregion documents

// #region season

// Season is one competition season with every match's events.
type Season struct {
	CompetitionID int
	SeasonID      int
	Matches       []events.Match
	Events        []events.Event // match order, then file order
}

// EventCount is len(Events).
func (s Season) EventCount() int { return len(s.Events) }

// LoadSeason resolves the configured competition, then downloads match
// events concurrently with at most Workers in flight.
func (c *Client) LoadSeason(ctx context.Context) (Season, error) {
	comps, err := c.Competitions(ctx)
	if err != nil {
		return Season{}, fmt.Errorf("competitions: %w", err)
	}
	compID, seasonID := SelectCompetition(comps, c.cfg.CompetitionPrefix, c.cfg.SeasonPrefix, c.cfg.FallbackComp, c.cfg.FallbackSeason)
	c.logger.Info("selected competition", "competition_id", compID, "season_id", seasonID)

	matches, err := c.Matches(ctx, compID, seasonID)
	if err != nil {
		return Season{}, fmt.Errorf("matches: %w", err)
	}

	perMatch := make([][]events.Event, len(matches))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(c.cfg.Workers, 1))
	for i, m := range matches {
		g.Go(func() error {
			evs, err := c.Events(gctx, m.MatchID)
			if err != nil {
				return fmt.Errorf("events for match %d: %w", m.MatchID, err)
			}
			perMatch[i] = evs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Season{}, err
	}

	s := Season{CompetitionID: compID, SeasonID: seasonID, Matches: matches}
	for _, evs := range perMatch {
		s.Events = append(s.Events, evs...)
	}
	c.logger.Info("loaded season", "matches", len(matches), "events", s.EventCount())
	return s, nil
}

// #endregion season
