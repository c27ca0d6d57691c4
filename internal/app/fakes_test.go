package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"realty_site/internal/domain"
	"realty_site/internal/shared"
)

// ---- retrier that records delays instead of sleeping ----

type recordedSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordedSleep) sleep(_ context.Context, d time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return true
}

func testRetrier() (*shared.Retrier, *recordedSleep) {
	rec := &recordedSleep{}
	r := shared.NewRetrier(3, time.Second)
	r.Sleep = rec.sleep
	return r, rec
}

var errRateLimited = &domain.VendorError{Service: "test", Status: 429, Message: "slow down"}

// ---- listing source ----

type fakeSource struct {
	mu       sync.Mutex
	rows     []map[string]any
	details  map[string]map[string]any
	readErr  map[string]error
	failures []error // returned by SearchListings before succeeding
	searches []int   // offsets requested
	reads    []string
	fields   [][]string
}

func (f *fakeSource) SearchListings(_ context.Context, offset, limit int) (domain.ListingSearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.failures) > 0 {
		err := f.failures[0]
		f.failures = f.failures[1:]
		return domain.ListingSearchResult{}, err
	}
	f.searches = append(f.searches, offset)
	if offset >= len(f.rows) {
		return domain.ListingSearchResult{Total: len(f.rows)}, nil
	}
	end := offset + limit
	if end > len(f.rows) {
		end = len(f.rows)
	}
	return domain.ListingSearchResult{Rows: f.rows[offset:end], Total: len(f.rows)}, nil
}

func (f *fakeSource) ReadListing(_ context.Context, id string, extra []string) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads = append(f.reads, id)
	f.fields = append(f.fields, extra)
	if err := f.readErr[id]; err != nil {
		return nil, err
	}
	d, ok := f.details[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return d, nil
}

// ---- content source ----

type fakeContent struct {
	mu         sync.Mutex
	docs       []domain.ContentDoc
	blocks     map[string][]domain.Block
	listCalls  int
	blockCalls int
}

func (f *fakeContent) ListDocuments(context.Context, string) ([]domain.ContentDoc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	return f.docs, nil
}

func (f *fakeContent) GetBlocks(_ context.Context, id string) ([]domain.Block, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blockCalls++
	b, ok := f.blocks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return b, nil
}

// ---- cache (round-trips through JSON like redis does) ----

type fakeCache struct {
	mu    sync.Mutex
	store map[string][]byte
	ttls  map[string]int
}

func newFakeCache() *fakeCache {
	return &fakeCache{store: map[string][]byte{}, ttls: map[string]int{}}
}

func (c *fakeCache) Get(_ context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *fakeCache) Set(_ context.Context, key string, v any, ttlSec int) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[key] = b
	c.ttls[key] = ttlSec
	return nil
}

func (c *fakeCache) Del(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	return nil
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, string, any) (bool, error) {
	return false, errors.New("connection refused")
}
func (brokenCache) Set(context.Context, string, any, int) error { return errors.New("connection refused") }
func (brokenCache) Del(context.Context, string) error           { return errors.New("connection refused") }

// ---- mailer ----

type fakeMailer struct {
	sent      []domain.Email
	contacts  []domain.Contact
	audiences []string
	sendErrs  []error
	upsertErr error
}

func (m *fakeMailer) Send(_ context.Context, e domain.Email) (string, error) {
	if len(m.sendErrs) > 0 {
		err := m.sendErrs[0]
		m.sendErrs = m.sendErrs[1:]
		if err != nil {
			return "", err
		}
	}
	m.sent = append(m.sent, e)
	return "msg_1", nil
}

func (m *fakeMailer) UpsertContact(_ context.Context, audienceID string, c domain.Contact) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.audiences = append(m.audiences, audienceID)
	m.contacts = append(m.contacts, c)
	return nil
}

// ---- lead log ----

type fakeLeads struct {
	saved []domain.Lead
	err   error
}

func (r *fakeLeads) SaveLead(_ context.Context, l domain.Lead) error {
	if r.err != nil {
		return r.err
	}
	r.saved = append(r.saved, l)
	return nil
}

func (r *fakeLeads) GetLead(_ context.Context, id string) (domain.Lead, error) {
	for _, l := range r.saved {
		if l.ID == id {
			return l, nil
		}
	}
	return domain.Lead{}, domain.ErrNotFound
}

// ---- chat ----

type fakeLLM struct {
	got   [][]domain.ChatMessage
	reply string
	errs  []error
}

func (f *fakeLLM) Complete(_ context.Context, msgs []domain.ChatMessage) (string, error) {
	f.got = append(f.got, msgs)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return "", err
	}
	return f.reply, nil
}

func ptr[T any](v T) *T { return &v }
