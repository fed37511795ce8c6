package chat

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/moodcine/backend/internal/logging"
	"github.com/moodcine/backend/internal/metrics"
	"github.com/moodcine/backend/internal/model/chat"
)

// resolvePosters looks titles up concurrently and returns the hits in title order.
// Lookup errors count as misses.
func (s *Session) resolvePosters(ctx context.Context, titles []string) []chat.Poster {
	if s.posters == nil || len(titles) == 0 {
		return nil
	}

	resolved := make([]*chat.Poster, len(titles))

	var g errgroup.Group
	g.SetLimit(s.opts.PosterConcurrency)
	for i, title := range titles {
		title = strings.TrimSpace(title)
		if title == "" {
			continue
		}
		g.Go(func() error {
			poster, ok, err := s.posters.LookupPoster(ctx, title)
			switch {
			case err != nil:
				metrics.PosterLookups.WithLabelValues("error").Inc()
				logging.Debug().Err(err).Str("title", title).Msg("[chat] poster lookup failed")
			case !ok:
				metrics.PosterLookups.WithLabelValues("miss").Inc()
			default:
				metrics.PosterLookups.WithLabelValues("hit").Inc()
				if poster.Title == "" {
					poster.Title = title
				}
				resolved[i] = &poster
			}
			return nil
		})
	}
	_ = g.Wait()

	posters := make([]chat.Poster, 0, len(titles))
	for _, p := range resolved {
		if p != nil {
			posters = append(posters, *p)
		}
	}
	return posters
}
