package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"realty_site/internal/adapters/observability"
	"realty_site/internal/domain"
	"realty_site/internal/shared"
)

// EnrichFields are the field groups read per listing when enriching search rows.
var EnrichFields = []string{"images", "documents", "agents", "advert_internet"}

type ListingOptions struct {
	PageSize      int
	MaxPages      int
	DefaultLimit  int
	MaxLimit      int
	Enrich        bool
	EnrichWorkers int
}

// ListingOptionsFrom picks the listing settings out of the app config.
func ListingOptionsFrom(cfg shared.Config) ListingOptions {
	return ListingOptions{
		PageSize:      cfg.ListingPageSize,
		MaxPages:      cfg.MaxListingPages,
		DefaultLimit:  cfg.DefaultLimit,
		MaxLimit:      cfg.MaxLimit,
		Enrich:        cfg.EnrichListings,
		EnrichWorkers: cfg.EnrichWorkers,
	}
}

type ListingService struct {
	src   domain.ListingSource
	retry *shared.Retrier
	opts  ListingOptions
}

func NewListingService(src domain.ListingSource, r *shared.Retrier, o ListingOptions) *ListingService {
	if o.PageSize <= 0 {
		o.PageSize = 100
	}
	if o.MaxPages <= 0 {
		o.MaxPages = 1
	}
	if o.EnrichWorkers <= 0 {
		o.EnrichWorkers = 1
	}
	return &ListingService{src: src, retry: r, opts: o}
}

// Search fetches every published listing, maps and filters them in memory, and returns
// the requested page with suburb facets.
func (s *ListingService) Search(ctx context.Context, q domain.ListingQuery) (domain.ListingPage, error) {
	rows, err := s.fetchAll(ctx)
	if err != nil {
		return domain.ListingPage{}, err
	}
	if s.opts.Enrich {
		rows = s.enrich(ctx, rows)
	}

	all := make([]domain.Listing, 0, len(rows))
	for _, raw := range rows {
		all = append(all, MapListing(raw))
	}
	filtered, facets := FilterListings(all, q)
	items, total, more := Paginate(filtered, q.Offset, s.limit(q.Limit))

	return domain.ListingPage{Items: items, Total: total, HasMore: more, Suburbs: facets}, nil
}

// Get reads one listing in full.
func (s *ListingService) Get(ctx context.Context, id string) (domain.Listing, error) {
	if id == "" {
		return domain.Listing{}, fmt.Errorf("listing id: %w", domain.ErrInvalidInput)
	}
	raw, err := shared.Do(ctx, s.retry, func(ctx context.Context) (map[string]any, error) {
		return s.src.ReadListing(ctx, id, nil)
	})
	if err != nil {
		return domain.Listing{}, fmt.Errorf("read listing %s: %w", id, err)
	}
	l := MapListing(raw)
	if l.ID == "" {
		l.ID = id
	}
	return l, nil
}

func (s *ListingService) limit(n int) int {
	if n <= 0 {
		n = s.opts.DefaultLimit
	}
	if s.opts.MaxLimit > 0 && n > s.opts.MaxLimit {
		n = s.opts.MaxLimit
	}
	return n
}

func (s *ListingService) fetchAll(ctx context.Context) ([]map[string]any, error) {
	size := s.opts.PageSize
	var rows []map[string]any
	for page := 0; page < s.opts.MaxPages; page++ {
		offset := page * size
		res, err := shared.Do(ctx, s.retry, func(ctx context.Context) (domain.ListingSearchResult, error) {
			return s.src.SearchListings(ctx, offset, size)
		})
		if err != nil {
			return nil, fmt.Errorf("search listings (offset %d): %w", offset, err)
		}
		rows = append(rows, res.Rows...)
		if len(res.Rows) < size || len(rows) >= res.Total {
			break
		}
	}
	return rows, nil
}

// enrich replaces each summary row with its full record. A failed read keeps the summary.
func (s *ListingService) enrich(ctx context.Context, rows []map[string]any) []map[string]any {
	out := make([]map[string]any, len(rows))
	copy(out, rows)

	sem := semaphore.NewWeighted(int64(s.opts.EnrichWorkers))
	var wg sync.WaitGroup
	for i, row := range rows {
		id := field(row, "id")
		if id == "" {
			continue
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Warn().Err(err).Msg("enrichment interrupted")
			break
		}
		wg.Add(1)
		go func(i int, id string, summary map[string]any) {
			defer wg.Done()
			defer sem.Release(1)

			full, err := shared.Do(ctx, s.retry, func(ctx context.Context) (map[string]any, error) {
				return s.src.ReadListing(ctx, id, EnrichFields)
			})
			if err != nil {
				observability.ObserveEnrichmentFailure()
				log.Warn().Str("listing_id", id).Err(err).Msg("enrich listing failed, using summary")
				return
			}
			out[i] = merge(summary, full)
		}(i, id, row)
	}
	wg.Wait()
	return out
}

// merge overlays the detail record on the summary so fields missing from the
// detail keep their summary value.
func merge(summary, detail map[string]any) map[string]any {
	m := make(map[string]any, len(summary)+len(detail))
	for k, v := range summary {
		m[k] = v
	}
	for k, v := range detail {
		if v != nil {
			m[k] = v
		}
	}
	return m
}
