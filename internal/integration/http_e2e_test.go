//go:build integration || !unit

package integration

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	"realty_site/internal/adapters/craft"
	server "realty_site/internal/adapters/http_server"
	"realty_site/internal/adapters/llm"
	"realty_site/internal/adapters/mailer"
	redisad "realty_site/internal/adapters/redis"
	"realty_site/internal/adapters/rex"
	"realty_site/internal/app"
	"realty_site/internal/domain"
	"realty_site/internal/shared"
	mysqlrepo "realty_site/internal/storage/mysql"
)

// ---------- helpers ----------

func migrationsDir() string {
	if v := os.Getenv("MIGRATIONS_DIR"); v != "" {
		return v
	}
	return filepath.Join("..", "..", "migrations")
}

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	dir := migrationsDir()

	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir %s: %v", dir, err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		t.Fatalf("no .sql files in %s", dir)
	}
	sort.Strings(files)
	for _, f := range files {
		sqlBytes, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(sqlBytes)); err != nil {
			t.Fatalf("exec %s: %v", f, err)
		}
	}
}

func startMySQL(t *testing.T) *sql.DB {
	t.Helper()
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("dockertest: %v", err)
	}
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=root",
			"MYSQL_DATABASE=realty",
		},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	dsn := fmt.Sprintf("root:root@tcp(127.0.0.1:%s)/realty?parseTime=true&multiStatements=true&charset=utf8mb4,utf8&loc=UTC",
		resource.GetPort("3306/tcp"))

	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	applyMigrations(t, db)
	return db
}

// ---------- fake vendors ----------

// fakeRex serves the published-listings search endpoint from a fixed row set.
func fakeRex(t *testing.T, rows []map[string]any) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/published-listings/search", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer rex-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var body struct {
			Offset int `json:"offset"`
			Limit  int `json:"limit"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		end := body.Offset + body.Limit
		if end > len(rows) {
			end = len(rows)
		}
		page := []map[string]any{}
		if body.Offset < len(rows) {
			page = rows[body.Offset:end]
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{"rows": page, "total": len(rows)},
		})
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

// fakeMail accepts emails unless reject is set, in which case it answers like a
// vendor whose sender domain is unverified.
type fakeMail struct {
	mu     sync.Mutex
	sent   []domain.Email
	reject bool
}

func (f *fakeMail) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/emails", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.reject {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"message":"The realty.test domain is not verified."}`))
			return
		}
		var e domain.Email
		_ = json.NewDecoder(r.Body).Decode(&e)
		f.sent = append(f.sent, e)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": fmt.Sprintf("msg-%d", len(f.sent))})
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, v any) (*http.Response, map[string]any) {
	t.Helper()
	b, _ := json.Marshal(v)
	res, err := http.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer res.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
	return res, out
}

// ---------- the test ----------

func TestHTTP_EndToEnd_ListingsAndLeads(t *testing.T) {
	db := startMySQL(t)
	repo := mysqlrepo.New(db)

	rexTS := fakeRex(t, []map[string]any{
		{
			"id": "101", "system_listing_state": "current", "listing_category_id": "residential_sale",
			"price_advertise_as": "$850,000", "price_match": "850000",
			"property": map[string]any{"adr_street_number": "12", "adr_street_name": "Smith Street", "adr_suburb_or_town": "Fitzroy", "attr_bedrooms": "3"},
		},
		{
			"id": "102", "system_listing_state": "leased", "listing_category_id": "residential_rental",
			"price_advertise_as": "$650 per week",
			"property": map[string]any{"adr_street_number": "4", "adr_street_name": "Lygon", "adr_street_type": "St", "adr_suburb_or_town": "Carlton"},
		},
		{
			"id": "103", "system_listing_state": "sold", "listing_category_id": "residential_sale",
			"price_match": "1200000",
			"property": map[string]any{"adr_street_number": "9", "adr_street_name": "High Street", "adr_suburb_or_town": "Northcote", "attr_bedrooms": "4"},
		},
	})
	mail := &fakeMail{}
	mailTS := mail.server(t)

	retry := shared.NewRetrier(0, time.Millisecond)
	leads := app.NewLeadService(mailer.New(mailTS.URL, "mail-key"), repo, retry, app.LeadOptions{
		From:  "Realty <web@realty.test>",
		Inbox: "office@realty.test",
	})
	h := &server.Handlers{
		Listings: app.NewListingService(rex.New(rex.Options{Base: rexTS.URL, Token: "rex-token", RPS: 100}), retry,
			app.ListingOptions{PageSize: 2, MaxPages: 5, DefaultLimit: 10, MaxLimit: 50}),
		Content: app.NewContentService(craft.New("http://127.0.0.1:1", ""), redisad.Noop{}, retry, app.ContentOptions{}),
		Leads:   leads,
		Chat:    app.NewChatService(llm.New("http://127.0.0.1:1", "", "", 0), retry, app.ChatOptions{}),
	}
	srv := server.New(server.Options{FormRatePerMin: 100, ChatRatePerMin: 100})
	srv.MountHandlers(h)
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	t.Run("listings are paged across vendor pages and filtered", func(t *testing.T) {
		res, err := http.Get(ts.URL + "/api/listings?type=sale")
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		defer res.Body.Close()
		if res.StatusCode != http.StatusOK {
			t.Fatalf("status %d", res.StatusCode)
		}
		var page struct {
			Success  bool             `json:"success"`
			Listings []domain.Listing `json:"listings"`
			Total    int              `json:"total"`
			Suburbs  []string         `json:"suburbs"`
		}
		if err := json.NewDecoder(res.Body).Decode(&page); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !page.Success || page.Total != 2 || len(page.Listings) != 2 {
			t.Fatalf("unexpected page: %+v", page)
		}
		if page.Listings[0].Address != "12 Smith Street" || page.Listings[0].PriceValue != 850000 {
			t.Fatalf("mapping: %+v", page.Listings[0])
		}
		if page.Listings[1].Status != domain.StatusSold {
			t.Fatalf("status: want sold, got %s", page.Listings[1].Status)
		}
		if len(page.Suburbs) != 2 || page.Suburbs[0] != "Fitzroy" || page.Suburbs[1] != "Northcote" {
			t.Fatalf("suburbs: %v", page.Suburbs)
		}
	})

	t.Run("contact enquiry is emailed and logged", func(t *testing.T) {
		res, out := postJSON(t, ts.URL+"/api/contact", map[string]any{
			"name": "Jo Citizen", "email": "jo@example.com", "message": "Is it still available?", "listingId": "101",
		})
		if res.StatusCode != http.StatusOK || out["success"] != true {
			t.Fatalf("status %d body %v", res.StatusCode, out)
		}
		id, _ := out["id"].(string)

		mail.mu.Lock()
		n := len(mail.sent)
		var subject, replyTo string
		if n > 0 {
			subject, replyTo = mail.sent[0].Subject, mail.sent[0].ReplyTo
		}
		mail.mu.Unlock()
		if n != 1 || subject != "New enquiry from Jo Citizen (listing 101)" || replyTo != "jo@example.com" {
			t.Fatalf("sent=%d subject=%q replyTo=%q", n, subject, replyTo)
		}

		l, err := repo.GetLead(context.Background(), id)
		if err != nil {
			t.Fatalf("GetLead: %v", err)
		}
		if !l.Delivered || l.Kind != domain.LeadContact || l.Email != "jo@example.com" {
			t.Fatalf("lead: %+v", l)
		}
	})

	t.Run("invalid form never reaches the vendor", func(t *testing.T) {
		res, out := postJSON(t, ts.URL+"/api/contact", map[string]any{"name": "Jo", "email": "nope", "message": "hi"})
		if res.StatusCode != http.StatusBadRequest {
			t.Fatalf("status %d body %v", res.StatusCode, out)
		}
		if out["error"] != "email must be a valid email address" {
			t.Fatalf("error: %v", out["error"])
		}
	})

	t.Run("unverified sender domain is reported and logged as undelivered", func(t *testing.T) {
		mail.mu.Lock()
		mail.reject = true
		mail.mu.Unlock()

		res, out := postJSON(t, ts.URL+"/api/appraisal", map[string]any{
			"name": "Sam Owner", "email": "sam@example.com", "phone": "0400 000 000", "address": "7 Rose Lane",
		})
		if res.StatusCode != http.StatusInternalServerError {
			t.Fatalf("status %d body %v", res.StatusCode, out)
		}

		recent, err := repo.RecentLeads(context.Background(), domain.LeadAppraisal, 5)
		if err != nil {
			t.Fatalf("RecentLeads: %v", err)
		}
		if len(recent) != 1 || recent[0].Delivered || recent[0].Error == "" {
			t.Fatalf("recent: %+v", recent)
		}
	})
}
