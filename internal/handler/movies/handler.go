// Package movies exposes the TMDB-backed browsing endpoints and the recommendation rankings.
package movies

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/moodcine/backend/internal/logging"
	"github.com/moodcine/backend/internal/model/chat"
	"github.com/moodcine/backend/internal/model/movie"
	"github.com/moodcine/backend/internal/model/recommend"
	"github.com/moodcine/backend/internal/service/tmdb"
	"github.com/moodcine/backend/pkg/utils"
)

// Catalog is the movie metadata source.
type Catalog interface {
	MoviesByGenre(ctx context.Context, genreIDs []int) ([]movie.Movie, error)
	Search(ctx context.Context, query string) ([]movie.Movie, error)
	Detail(ctx context.Context, id int64) (movie.Detail, error)
	LookupPoster(ctx context.Context, title string) (chat.Poster, bool, error)
	ResolveTitles(ctx context.Context, titles []string) ([]movie.Movie, error)
}

// Rankings publishes what the classifier recommended so far.
type Rankings interface {
	Stats(ctx context.Context) ([]recommend.EmotionStat, error)
	Top10(ctx context.Context) ([]recommend.MovieStat, error)
}

// Handler serves /movies and /stats.
type Handler struct {
	catalog  Catalog
	rankings Rankings
}

// New creates the handler. catalog may be nil when no TMDB key is configured.
func New(catalog Catalog, rankings Rankings) *Handler {
	return &Handler{catalog: catalog, rankings: rankings}
}

// RegisterRoutes mounts the routes on an /api router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stats", h.handleStats)
	r.Route("/movies", func(r chi.Router) {
		r.Get("/genre", h.handleGenre)
		r.Get("/search", h.handleSearch)
		r.Get("/poster", h.handlePoster)
		r.Get("/top10", h.handleTop10)
		r.Get("/{movieID}", h.handleDetail)
	})
}

func (h *Handler) handleGenre(w http.ResponseWriter, r *http.Request) {
	if !h.requireCatalog(w) {
		return
	}

	ids, err := parseGenreIDs(r.URL.Query().Get("ids"))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	movies, err := h.catalog.MoviesByGenre(r.Context(), ids)
	if err != nil {
		respondUpstreamError(w, "genre", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"results": movies})
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	if !h.requireCatalog(w) {
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		utils.RespondError(w, http.StatusBadRequest, "q query parameter is required")
		return
	}

	movies, err := h.catalog.Search(r.Context(), query)
	if err != nil {
		respondUpstreamError(w, "search", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"query": query, "results": movies})
}

func (h *Handler) handlePoster(w http.ResponseWriter, r *http.Request) {
	if !h.requireCatalog(w) {
		return
	}

	title := strings.TrimSpace(r.URL.Query().Get("title"))
	if title == "" {
		utils.RespondError(w, http.StatusBadRequest, "title query parameter is required")
		return
	}

	poster, ok, err := h.catalog.LookupPoster(r.Context(), title)
	if err != nil {
		respondUpstreamError(w, "poster", err)
		return
	}
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "no poster for title")
		return
	}
	utils.RespondJSON(w, http.StatusOK, poster)
}

func (h *Handler) handleDetail(w http.ResponseWriter, r *http.Request) {
	if !h.requireCatalog(w) {
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "movieID"), 10, 64)
	if err != nil || id <= 0 {
		utils.RespondError(w, http.StatusBadRequest, "invalid movie id")
		return
	}

	detail, err := h.catalog.Detail(r.Context(), id)
	if err != nil {
		respondUpstreamError(w, "detail", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, detail)
}

// handleTop10 resolves the most recommended titles through TMDB, dropping those it cannot find.
func (h *Handler) handleTop10(w http.ResponseWriter, r *http.Request) {
	if !h.requireCatalog(w) {
		return
	}

	top, err := h.rankings.Top10(r.Context())
	if err != nil {
		respondUpstreamError(w, "top10", err)
		return
	}

	titles := make([]string, len(top))
	for i, entry := range top {
		titles[i] = entry.Movie
	}

	movies, err := h.catalog.ResolveTitles(r.Context(), titles)
	if err != nil {
		respondUpstreamError(w, "top10", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"ranking": top, "results": movies})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.rankings.Stats(r.Context())
	if err != nil {
		respondUpstreamError(w, "stats", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, stats)
}

func (h *Handler) requireCatalog(w http.ResponseWriter) bool {
	if h.catalog == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "movie catalog unavailable")
		return false
	}
	return true
}

func parseGenreIDs(raw string) ([]int, error) {
	parts := strings.Split(raw, ",")
	ids := make([]int, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil || id <= 0 {
			return nil, errors.New("ids must be comma separated genre ids")
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, errors.New("ids query parameter is required")
	}
	return ids, nil
}

func respondUpstreamError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, tmdb.ErrNotFound):
		utils.RespondError(w, http.StatusNotFound, "movie not found")
	case errors.Is(err, tmdb.ErrDisabled):
		utils.RespondError(w, http.StatusServiceUnavailable, "movie catalog unavailable")
	default:
		logging.Warn().Err(err).Str("op", op).Msg("[movies] upstream request failed")
		utils.RespondError(w, http.StatusBadGateway, "upstream request failed")
	}
}
