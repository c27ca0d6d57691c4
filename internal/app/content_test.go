package app_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"realty_site/internal/app"
	"realty_site/internal/domain"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Buying Your First Home":       "buying-your-first-home",
		"  5 tips -- for sellers!  ":   "5-tips-for-sellers",
		"What's an auction reserve?":   "what-s-an-auction-reserve",
		"already-a-slug":               "already-a-slug",
		"":                             "",
		"***":                          "",
		"Café Culture in Fitzroy 2024": "café-culture-in-fitzroy-2024",
	}
	for in, want := range cases {
		if got := app.Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func contentFixture() *fakeContent {
	day := func(d int) time.Time { return time.Date(2024, 6, d, 9, 0, 0, 0, time.UTC) }
	return &fakeContent{
		docs: []domain.ContentDoc{
			{ID: "doc-old", Title: "Selling in Winter", CreatedAt: day(1), UpdatedAt: day(2)},
			{ID: "doc-new", Title: "Buying Your First Home", CreatedAt: day(10), UpdatedAt: day(11)},
			{ID: "doc-dup", Title: "Selling in winter!", CreatedAt: day(5)},
		},
		blocks: map[string][]domain.Block{
			"doc-new": {
				{Type: "text", TextStyle: "title", Content: "Buying Your First Home"},
				{Type: "text", Content: "Start with a budget and a broker."},
				{Type: "image", URL: "https://img.example/cover.jpg", AltText: "keys"},
			},
			"doc-old": {{Type: "text", Content: "Winter buyers are serious buyers."}},
		},
	}
}

func newContent(src domain.ContentSource, c domain.Cache) *app.ContentService {
	r, _ := testRetrier()
	return app.NewContentService(src, c, r, app.ContentOptions{
		Folders: map[domain.ContentKind]string{domain.KindBlog: "folder-blog", domain.KindGuides: ""},
		TTL:     15 * time.Minute,
		Workers: 2,
	})
}

func TestContentService_ListOrdersAndSummarizes(t *testing.T) {
	src := contentFixture()
	cache := newFakeCache()
	svc := newContent(src, cache)

	list, err := svc.List(context.Background(), domain.KindBlog)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("len = %d", len(list))
	}
	if list[0].Slug != "buying-your-first-home" || list[1].Slug != "selling-in-winter" || list[2].Slug != "selling-in-winter-2" {
		t.Fatalf("slugs/order = %s, %s, %s", list[0].Slug, list[1].Slug, list[2].Slug)
	}
	if list[0].CoverURL != "https://img.example/cover.jpg" || !strings.Contains(list[0].Excerpt, "budget") {
		t.Fatalf("summary = %+v", list[0])
	}
	// doc-dup has no blocks: the summary degrades instead of failing the list
	if list[1].ID != "doc-dup" || list[1].Excerpt != "" {
		t.Fatalf("degraded summary = %+v", list[1])
	}
	if cache.ttls["content:blog:list"] != 900 {
		t.Fatalf("list ttl = %d", cache.ttls["content:blog:list"])
	}
}

func TestContentService_CacheHitAvoidsVendor(t *testing.T) {
	src := contentFixture()
	svc := newContent(src, newFakeCache())
	ctx := context.Background()

	art, err := svc.Get(ctx, domain.KindBlog, "buying-your-first-home")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !strings.HasPrefix(art.Markdown, "# Buying Your First Home") || !strings.Contains(art.HTML, "<h1>") {
		t.Fatalf("rendered article = %q / %q", art.Markdown, art.HTML)
	}
	lists, blocks := src.listCalls, src.blockCalls

	again, err := svc.Get(ctx, domain.KindBlog, "Buying Your First Home")
	if err != nil {
		t.Fatalf("cached get: %v", err)
	}
	if again.Markdown != art.Markdown || again.ID != "doc-new" {
		t.Fatalf("cached article differs: %+v", again)
	}
	if src.listCalls != lists || src.blockCalls != blocks {
		t.Fatalf("vendor called on cache hit: list %d->%d blocks %d->%d", lists, src.listCalls, blocks, src.blockCalls)
	}

	if _, err := svc.List(ctx, domain.KindBlog); err != nil || src.listCalls != lists {
		t.Fatalf("list should be cached: err=%v calls=%d", err, src.listCalls)
	}
}

func TestContentService_RefreshBypassesCache(t *testing.T) {
	src := contentFixture()
	svc := newContent(src, newFakeCache())
	ctx := context.Background()

	if _, err := svc.List(ctx, domain.KindBlog); err != nil {
		t.Fatal(err)
	}
	src.docs = src.docs[:1]
	list, err := svc.Refresh(ctx, domain.KindBlog)
	if err != nil || len(list) != 1 || src.listCalls != 2 {
		t.Fatalf("refresh: err=%v len=%d calls=%d", err, len(list), src.listCalls)
	}
}

func TestContentService_Errors(t *testing.T) {
	svc := newContent(contentFixture(), newFakeCache())
	ctx := context.Background()

	if _, err := svc.Get(ctx, domain.KindBlog, "no-such-post"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing slug: %v", err)
	}
	if _, err := svc.List(ctx, domain.KindGuides); !errors.Is(err, domain.ErrMisconfigured) {
		t.Fatalf("empty folder: %v", err)
	}
	if _, err := svc.List(ctx, domain.ContentKind("news")); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown kind: %v", err)
	}
	if _, err := svc.Get(ctx, domain.KindBlog, "!!!"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("empty slug: %v", err)
	}
}

func TestContentService_BrokenCacheIsNotFatal(t *testing.T) {
	svc := newContent(contentFixture(), brokenCache{})
	art, err := svc.Get(context.Background(), domain.KindBlog, "selling-in-winter-2")
	if err != nil {
		t.Fatalf("get with broken cache: %v", err)
	}
	if art.ID != "doc-old" {
		t.Fatalf("article = %+v", art)
	}
}
