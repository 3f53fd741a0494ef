package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Domenick1991/tailorbook/config"
	"github.com/Domenick1991/tailorbook/internal/domain"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrUnavailable is returned while the circuit breaker is open.
var ErrUnavailable = errors.New("geocoding service unavailable")

type Cache interface {
	GetPlace(ctx context.Context, key string) (*domain.Place, error)
	SetPlace(ctx context.Context, key string, place *domain.Place) error
}

type Client struct {
	baseURL       string
	userAgent     string
	countryCodes  string
	regionContext string
	httpClient    *http.Client
	limiter       *rate.Limiter
	breaker       *gobreaker.CircuitBreaker
	cache         Cache
	log           *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(g *Client) { g.httpClient = c }
}

func WithCache(c Cache) Option {
	return func(g *Client) { g.cache = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(g *Client) { g.log = l }
}

// WithLimiter replaces the per-second limiter built from the config.
func WithLimiter(l *rate.Limiter) Option {
	return func(g *Client) { g.limiter = l }
}

func New(cfg config.GeocodeConfig, opts ...Option) *Client {
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 1
	}
	g := &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:     cfg.UserAgent,
		countryCodes:  cfg.CountryCodes,
		regionContext: cfg.RegionContext,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		limiter:       rate.NewLimiter(rate.Limit(rps), 1),
		log:           zap.NewNop(),
	}
	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "nominatim",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.log.Warn("geocoder breaker state changed", zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type result struct {
	Lat         string   `json:"lat"`
	Lon         string   `json:"lon"`
	DisplayName string   `json:"display_name"`
	Importance  *float64 `json:"importance"`
}

func (r result) place() (*domain.Place, error) {
	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("parse lat %q: %w", r.Lat, err)
	}
	lng, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("parse lon %q: %w", r.Lon, err)
	}
	return &domain.Place{Lat: lat, Lng: lng, Name: r.DisplayName}, nil
}

// Forward resolves free text to a place. It returns nil, nil when no variant
// of the query matches anything.
func (g *Client) Forward(ctx context.Context, query string) (*domain.Place, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	key := "fwd:" + strings.ToLower(collapse(query))
	if place := g.cached(ctx, key); place != nil {
		return place, nil
	}

	var lastErr error
	for _, q := range QueryVariants(query, g.regionContext) {
		params := url.Values{
			"q":              {q},
			"format":         {"json"},
			"limit":          {"5"},
			"addressdetails": {"0"},
		}
		if g.countryCodes != "" {
			params.Set("countrycodes", g.countryCodes)
		}

		var items []result
		if err := g.get(ctx, "/search", params, &items); err != nil {
			if errors.Is(err, ErrUnavailable) || ctx.Err() != nil {
				return nil, err
			}
			g.log.Debug("geocode variant failed", zap.String("query", q), zap.Error(err))
			lastErr = err
			continue
		}

		best, ok := pickBest(items)
		if !ok {
			lastErr = nil
			continue
		}
		place, err := best.place()
		if err != nil {
			lastErr = err
			continue
		}
		g.store(ctx, key, place)
		return place, nil
	}
	return nil, lastErr
}

// Reverse names the place at lat/lng. It returns nil, nil when nothing is
// found there.
func (g *Client) Reverse(ctx context.Context, lat, lng float64) (*domain.Place, error) {
	key := fmt.Sprintf("rev:%.5f,%.5f", lat, lng)
	if place := g.cached(ctx, key); place != nil {
		return place, nil
	}

	params := url.Values{
		"lat":    {strconv.FormatFloat(lat, 'f', -1, 64)},
		"lon":    {strconv.FormatFloat(lng, 'f', -1, 64)},
		"format": {"json"},
	}
	var item struct {
		result
		Error string `json:"error"`
	}
	if err := g.get(ctx, "/reverse", params, &item); err != nil {
		return nil, err
	}
	if item.Error != "" || item.Lat == "" {
		return nil, nil
	}
	place, err := item.place()
	if err != nil {
		return nil, err
	}
	g.store(ctx, key, place)
	return place, nil
}

func (g *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}

	body, err := g.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path+"?"+params.Encode(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", g.userAgent)

		resp, err := g.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("geocoder answered %d", resp.StatusCode)
		}
		return data, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return ErrUnavailable
		}
		return err
	}
	return json.Unmarshal(body.([]byte), out)
}

func (g *Client) cached(ctx context.Context, key string) *domain.Place {
	if g.cache == nil {
		return nil
	}
	place, err := g.cache.GetPlace(ctx, key)
	if err != nil {
		g.log.Debug("geocode cache read failed", zap.Error(err))
		return nil
	}
	return place
}

func (g *Client) store(ctx context.Context, key string, place *domain.Place) {
	if g.cache == nil {
		return
	}
	if err := g.cache.SetPlace(ctx, key, place); err != nil {
		g.log.Debug("geocode cache write failed", zap.Error(err))
	}
}

// QueryVariants returns up to three distinct spellings of q to try in order:
// as typed, cleaned of dots and extra spaces, then with region appended.
func QueryVariants(q, region string) []string {
	original := strings.TrimSpace(q)
	cleaned := collapse(strings.ReplaceAll(original, ".", " "))

	candidates := []string{original, cleaned}
	if region != "" && !strings.Contains(strings.ToLower(cleaned), strings.ToLower(region)) {
		candidates = append(candidates, cleaned+", "+region)
	}

	seen := make(map[string]bool, len(candidates))
	variants := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		variants = append(variants, c)
	}
	return variants
}

// pickBest prefers the highest importance among scored results and falls
// back to the first one.
func pickBest(items []result) (result, bool) {
	if len(items) == 0 {
		return result{}, false
	}
	best, found := result{}, false
	for _, it := range items {
		if it.Importance == nil {
			continue
		}
		if !found || *it.Importance > *best.Importance {
			best, found = it, true
		}
	}
	if found {
		return best, true
	}
	return items[0], true
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
