// Package tmdb talks to The Movie Database API: poster lookups for chat
// recommendations plus the genre, search and detail views.
package tmdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/moodcine/backend/internal/config"
	"github.com/moodcine/backend/internal/logging"
	"github.com/moodcine/backend/internal/metrics"
	"github.com/moodcine/backend/internal/model/chat"
	"github.com/moodcine/backend/internal/model/movie"
	"github.com/moodcine/backend/internal/resilience"
)

var (
	ErrDisabled = errors.New("tmdb api key not configured")
	ErrNotFound = errors.New("tmdb resource not found")
)

const (
	genrePages      = 2
	searchPages     = 3
	genreLimit      = 10
	minVoteCount    = 50
	resolveParallel = 4
	maxBodySize     = 2 << 20
)

var parenthesized = regexp.MustCompile(`\(.*?\)`)

// CleanTitle drops parenthesised parts such as release years: "어바웃 타임 (2013)" → "어바웃 타임".
func CleanTitle(title string) string {
	return strings.TrimSpace(parenthesized.ReplaceAllString(title, ""))
}

// StatusError is a non-2xx TMDB answer.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tmdb status %d: %s", e.StatusCode, e.Body)
}

type response struct {
	status int
	body   []byte
}

// Client is safe for concurrent use.
type Client struct {
	cfg        config.TMDBConfig
	base       *url.URL
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[response]

	now     func() time.Time
	shuffle func([]movie.Movie)
}

// NewClient builds a client from cfg. httpClient may be nil.
func NewClient(cfg config.TMDBConfig, httpClient *http.Client) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse TMDB_BASE_URL: %w", err)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		cfg:        cfg,
		base:       base,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, burst),
		breaker:    resilience.NewBreaker[response]("tmdb", resilience.DefaultBreakerSettings()),
		now:        time.Now,
		shuffle: func(movies []movie.Movie) {
			rand.Shuffle(len(movies), func(i, j int) { movies[i], movies[j] = movies[j], movies[i] })
		},
	}, nil
}

// LookupPoster finds artwork for a recommended title. Only the first search result is
// considered; a title with no match, or whose first match has no poster, is a miss.
func (c *Client) LookupPoster(ctx context.Context, title string) (chat.Poster, bool, error) {
	query := strings.TrimSpace(title)
	if query == "" {
		return chat.Poster{}, false, nil
	}

	var page movie.Page
	if err := c.get(ctx, "poster", "search/movie", url.Values{"query": {query}}, &page); err != nil {
		return chat.Poster{}, false, err
	}

	if len(page.Results) == 0 || page.Results[0].PosterPath == "" {
		return chat.Poster{}, false, nil
	}
	return chat.Poster{Title: title, URL: c.ImageURL(page.Results[0].PosterPath)}, true, nil
}

// ImageURL expands a poster_path into a full image URL.
func (c *Client) ImageURL(path string) string {
	if path == "" {
		return ""
	}
	return strings.TrimRight(c.cfg.ImageBase, "/") + "/" + strings.TrimLeft(path, "/")
}

// MoviesByGenre returns up to ten popular movies released within the last year in any of
// the given genres, in random order.
func (c *Client) MoviesByGenre(ctx context.Context, genreIDs []int) ([]movie.Movie, error) {
	if len(genreIDs) == 0 {
		return nil, nil
	}

	now := c.now().UTC()
	params := make([]url.Values, 0, len(genreIDs)*genrePages)
	for _, id := range genreIDs {
		for page := 1; page <= genrePages; page++ {
			params = append(params, url.Values{
				"sort_by":                  {"popularity.desc"},
				"with_genres":              {strconv.Itoa(id)},
				"primary_release_date.gte": {now.AddDate(-1, 0, 0).Format(time.DateOnly)},
				"primary_release_date.lte": {now.Format(time.DateOnly)},
				"vote_count":               {strconv.Itoa(minVoteCount)},
				"page":                     {strconv.Itoa(page)},
			})
		}
	}

	movies, err := c.pages(ctx, "genre", "discover/movie", params)
	if err != nil {
		return nil, err
	}

	c.shuffle(movies)
	if len(movies) > genreLimit {
		movies = movies[:genreLimit]
	}
	return movies, nil
}

// Search returns the first three result pages for query, deduplicated.
func (c *Client) Search(ctx context.Context, query string) ([]movie.Movie, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	params := make([]url.Values, 0, searchPages)
	for page := 1; page <= searchPages; page++ {
		params = append(params, url.Values{"query": {query}, "page": {strconv.Itoa(page)}})
	}
	return c.pages(ctx, "search", "search/movie", params)
}

// Detail fetches a single movie.
func (c *Client) Detail(ctx context.Context, id int64) (movie.Detail, error) {
	var detail movie.Detail
	if err := c.get(ctx, "detail", "movie/"+strconv.FormatInt(id, 10), nil, &detail); err != nil {
		return movie.Detail{}, err
	}
	return detail, nil
}

// ResolveTitles searches each title and keeps the first hit, in input order. Titles
// without a match, or whose lookup fails, are left out.
func (c *Client) ResolveTitles(ctx context.Context, titles []string) ([]movie.Movie, error) {
	resolved := make([]*movie.Movie, len(titles))

	var g errgroup.Group
	g.SetLimit(resolveParallel)
	for i, title := range titles {
		query := CleanTitle(title)
		if query == "" {
			continue
		}
		g.Go(func() error {
			var page movie.Page
			if err := c.get(ctx, "resolve", "search/movie", url.Values{"query": {query}}, &page); err != nil {
				logging.Debug().Err(err).Str("title", title).Msg("[tmdb] title lookup failed")
				return nil
			}
			if len(page.Results) > 0 {
				resolved[i] = &page.Results[0]
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	movies := make([]movie.Movie, 0, len(titles))
	for _, m := range resolved {
		if m != nil {
			movies = append(movies, *m)
		}
	}
	return movies, nil
}

// pages fetches every request concurrently and merges the results in request order,
// keeping the first occurrence of each movie id. A failed page contributes nothing;
// an error is returned only when every page failed.
func (c *Client) pages(ctx context.Context, op, endpoint string, params []url.Values) ([]movie.Movie, error) {
	results := make([][]movie.Movie, len(params))
	errs := make([]error, len(params))

	var g errgroup.Group
	for i, p := range params {
		g.Go(func() error {
			var page movie.Page
			if err := c.get(ctx, op, endpoint, p, &page); err != nil {
				logging.Warn().Err(err).Str("endpoint", endpoint).Str("page", p.Get("page")).
					Msg("[tmdb] page fetch failed, skipping")
				errs[i] = err
				return nil
			}
			results[i] = page.Results
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	if failed == len(params) && failed > 0 {
		return nil, errors.Join(errs...)
	}

	seen := make(map[int64]struct{})
	merged := make([]movie.Movie, 0, len(params)*20)
	for _, batch := range results {
		for _, m := range batch {
			if _, dup := seen[m.ID]; dup {
				continue
			}
			seen[m.ID] = struct{}{}
			merged = append(merged, m)
		}
	}
	return merged, nil
}

func (c *Client) get(ctx context.Context, op, endpoint string, params url.Values, out any) error {
	if !c.cfg.Enabled() {
		return ErrDisabled
	}

	start := time.Now()
	defer func() {
		metrics.UpstreamDuration.WithLabelValues("tmdb", op).Observe(time.Since(start).Seconds())
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		metrics.UpstreamRequests.WithLabelValues("tmdb", op, "throttled").Inc()
		return fmt.Errorf("tmdb rate limiter: %w", err)
	}

	resp, err := c.breaker.Execute(func() (response, error) {
		return c.roundTrip(ctx, endpoint, params)
	})
	if err != nil {
		result := "transport"
		if resilience.IsRejection(err) {
			result = "rejected"
		}
		metrics.UpstreamRequests.WithLabelValues("tmdb", op, result).Inc()
		return fmt.Errorf("tmdb %s: %w", endpoint, err)
	}

	switch {
	case resp.status == http.StatusNotFound:
		metrics.UpstreamRequests.WithLabelValues("tmdb", op, "not_found").Inc()
		return ErrNotFound
	case resp.status < 200 || resp.status > 299:
		metrics.UpstreamRequests.WithLabelValues("tmdb", op, "status").Inc()
		return &StatusError{StatusCode: resp.status, Body: strings.TrimSpace(string(resp.body))}
	}

	if err := json.Unmarshal(resp.body, out); err != nil {
		metrics.UpstreamRequests.WithLabelValues("tmdb", op, "decode").Inc()
		return fmt.Errorf("decode tmdb %s: %w", endpoint, err)
	}
	metrics.UpstreamRequests.WithLabelValues("tmdb", op, "success").Inc()
	return nil
}

// roundTrip only fails the breaker on transport errors, throttling and 5xx; other
// statuses are answers, not outages.
func (c *Client) roundTrip(ctx context.Context, endpoint string, params url.Values) (response, error) {
	u := c.base.ResolveReference(&url.URL{Path: endpoint})
	query := url.Values{}
	for k, v := range params {
		query[k] = v
	}
	query.Set("api_key", c.cfg.APIKey)
	query.Set("language", c.cfg.Language)
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return response{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			err = fmt.Errorf("%w: %w", resilience.ErrCallerCanceled, err)
		}
		return response{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return response{}, err
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return response{}, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return response{status: resp.StatusCode, body: body}, nil
}
