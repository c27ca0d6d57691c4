package app

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"realty_site/internal/adapters/craft"
	"realty_site/internal/domain"
	"realty_site/internal/shared"
)

const excerptLen = 180

type ContentOptions struct {
	Folders map[domain.ContentKind]string
	TTL     time.Duration
	Workers int
}

// ContentOptionsFrom picks the content settings out of the app config.
func ContentOptionsFrom(cfg shared.Config) ContentOptions {
	return ContentOptions{
		Folders: map[domain.ContentKind]string{
			domain.KindBlog:   cfg.BlogFolderID,
			domain.KindGuides: cfg.GuidesFolderID,
		},
		TTL:     cfg.CacheTTL,
		Workers: cfg.ContentWorkers,
	}
}

type ContentService struct {
	src   domain.ContentSource
	cache domain.Cache
	retry *shared.Retrier
	opts  ContentOptions
}

func NewContentService(src domain.ContentSource, c domain.Cache, r *shared.Retrier, o ContentOptions) *ContentService {
	if o.Workers <= 0 {
		o.Workers = 1
	}
	return &ContentService{src: src, cache: c, retry: r, opts: o}
}

func listKey(kind domain.ContentKind) string { return fmt.Sprintf("content:%s:list", kind) }
func articleKey(kind domain.ContentKind, slug string) string {
	return fmt.Sprintf("content:%s:%s", kind, slug)
}

// Slugify lowercases s and collapses every run of non-alphanumerics into one "-".
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}

func (s *ContentService) folder(kind domain.ContentKind) (string, error) {
	id, ok := s.opts.Folders[kind]
	if !ok {
		return "", fmt.Errorf("content kind %q: %w", kind, domain.ErrNotFound)
	}
	if id == "" {
		return "", fmt.Errorf("%s folder: %w", kind, domain.ErrMisconfigured)
	}
	return id, nil
}

// List returns the article summaries of one kind, newest first.
func (s *ContentService) List(ctx context.Context, kind domain.ContentKind) ([]domain.ArticleSummary, error) {
	folderID, err := s.folder(kind)
	if err != nil {
		return nil, err
	}
	var out []domain.ArticleSummary
	if s.cacheGet(ctx, listKey(kind), &out) {
		return out, nil
	}

	docs, err := shared.Do(ctx, s.retry, func(ctx context.Context) ([]domain.ContentDoc, error) {
		return s.src.ListDocuments(ctx, folderID)
	})
	if err != nil {
		return nil, fmt.Errorf("list %s documents: %w", kind, err)
	}
	sort.SliceStable(docs, func(i, j int) bool { return docs[i].CreatedAt.After(docs[j].CreatedAt) })

	out = make([]domain.ArticleSummary, len(docs))
	seen := make(map[string]int, len(docs))
	for i, d := range docs {
		slug := Slugify(d.Title)
		if slug == "" {
			slug = Slugify(d.ID)
		}
		if n := seen[slug]; n > 0 {
			seen[slug] = n + 1
			slug = slug + "-" + strconv.Itoa(n+1)
		} else {
			seen[slug] = 1
		}
		out[i] = domain.ArticleSummary{
			ID: d.ID, Kind: kind, Slug: slug, Title: d.Title,
			CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt,
		}
	}
	s.summarize(ctx, out)

	s.cacheSet(ctx, listKey(kind), out)
	return out, nil
}

// summarize fills excerpts and cover images. A failed block fetch leaves them empty.
func (s *ContentService) summarize(ctx context.Context, items []domain.ArticleSummary) {
	sem := semaphore.NewWeighted(int64(s.opts.Workers))
	var wg sync.WaitGroup
	for i := range items {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(a *domain.ArticleSummary) {
			defer wg.Done()
			defer sem.Release(1)
			blocks, err := s.blocks(ctx, a.ID)
			if err != nil {
				log.Warn().Str("doc_id", a.ID).Err(err).Msg("content summary degraded")
				return
			}
			a.Excerpt = craft.Excerpt(blocks, excerptLen)
			a.CoverURL = craft.CoverImage(blocks)
		}(&items[i])
	}
	wg.Wait()
}

func (s *ContentService) blocks(ctx context.Context, docID string) ([]domain.Block, error) {
	return shared.Do(ctx, s.retry, func(ctx context.Context) ([]domain.Block, error) {
		return s.src.GetBlocks(ctx, docID)
	})
}

// Get returns one article rendered to markdown and HTML.
func (s *ContentService) Get(ctx context.Context, kind domain.ContentKind, slug string) (domain.Article, error) {
	slug = Slugify(slug)
	if slug == "" {
		return domain.Article{}, fmt.Errorf("slug: %w", domain.ErrInvalidInput)
	}
	var art domain.Article
	if s.cacheGet(ctx, articleKey(kind, slug), &art) {
		return art, nil
	}

	list, err := s.List(ctx, kind)
	if err != nil {
		return domain.Article{}, err
	}
	var sum *domain.ArticleSummary
	for i := range list {
		if list[i].Slug == slug {
			sum = &list[i]
			break
		}
	}
	if sum == nil {
		return domain.Article{}, fmt.Errorf("%s %q: %w", kind, slug, domain.ErrNotFound)
	}

	blocks, err := s.blocks(ctx, sum.ID)
	if err != nil {
		return domain.Article{}, fmt.Errorf("blocks of %s: %w", sum.ID, err)
	}
	md := craft.RenderMarkdown(blocks)
	html, err := craft.ToHTML(md)
	if err != nil {
		return domain.Article{}, fmt.Errorf("render %s: %w", sum.ID, err)
	}
	art = domain.Article{ArticleSummary: *sum, Markdown: md, HTML: html}

	s.cacheSet(ctx, articleKey(kind, slug), art)
	return art, nil
}

// Refresh drops the cached list of kind and rebuilds it.
func (s *ContentService) Refresh(ctx context.Context, kind domain.ContentKind) ([]domain.ArticleSummary, error) {
	s.cacheDel(ctx, listKey(kind))
	return s.List(ctx, kind)
}

// RefreshArticle drops one cached article and renders it again.
func (s *ContentService) RefreshArticle(ctx context.Context, kind domain.ContentKind, slug string) (domain.Article, error) {
	s.cacheDel(ctx, articleKey(kind, slug))
	return s.Get(ctx, kind, slug)
}

/********** cache-aside helpers; cache errors never fail a request **********/

func (s *ContentService) cacheGet(ctx context.Context, key string, dst any) bool {
	ok, err := s.cache.Get(ctx, key, dst)
	if err != nil {
		log.Warn().Str("key", key).Err(err).Msg("cache get failed")
		return false
	}
	return ok
}

func (s *ContentService) cacheSet(ctx context.Context, key string, v any) {
	if err := s.cache.Set(ctx, key, v, int(s.opts.TTL.Seconds())); err != nil {
		log.Warn().Str("key", key).Err(err).Msg("cache set failed")
	}
}

func (s *ContentService) cacheDel(ctx context.Context, key string) {
	if err := s.cache.Del(ctx, key); err != nil {
		log.Warn().Str("key", key).Err(err).Msg("cache del failed")
	}
}
