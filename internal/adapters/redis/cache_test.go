package redisad_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	redisad "realty_site/internal/adapters/redis"
	"realty_site/internal/domain"
)

func TestCache_SetGetDelWithTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	c := redisad.New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()

	if err := c.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}

	var miss domain.ArticleSummary
	ok, err := c.Get(ctx, "content:blog:list", &miss)
	if err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	in := []domain.ArticleSummary{{ID: "d1", Kind: domain.KindBlog, Slug: "first-post", Title: "First post"}}
	if err := c.Set(ctx, "content:blog:list", in, 60); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !mr.Exists("realty:content:blog:list") {
		t.Fatalf("expected prefixed key in redis")
	}

	var out []domain.ArticleSummary
	ok, err = c.Get(ctx, "content:blog:list", &out)
	if err != nil || !ok || len(out) != 1 || out[0].Slug != "first-post" {
		t.Fatalf("unexpected hit: ok=%v err=%v out=%+v", ok, err, out)
	}

	mr.FastForward(61 * time.Second)
	ok, _ = c.Get(ctx, "content:blog:list", &out)
	if ok {
		t.Fatalf("expected expiry after TTL")
	}

	_ = c.Set(ctx, "k", "v", 60)
	if err := c.Del(ctx, "k"); err != nil {
		t.Fatalf("del: %v", err)
	}
	if mr.Exists("realty:k") {
		t.Fatalf("expected key deleted")
	}
}

func TestCache_CorruptValue(t *testing.T) {
	mr := miniredis.RunT(t)
	c := redisad.New(mr.Addr(), "", 0)
	_ = mr.Set("realty:bad", "{not json")

	var dst map[string]any
	ok, err := c.Get(context.Background(), "bad", &dst)
	if ok || err == nil {
		t.Fatalf("expected decode error, got ok=%v err=%v", ok, err)
	}
}
