package mailer_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"realty_site/internal/adapters/mailer"
	"realty_site/internal/domain"
)

func TestSend(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/emails" || r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("unexpected request %s %s", r.URL.Path, r.Header.Get("Authorization"))
		}
		var e domain.Email
		_ = json.NewDecoder(r.Body).Decode(&e)
		if e.ReplyTo != "jo@example.com" || len(e.To) != 1 || e.Subject == "" {
			t.Errorf("unexpected email %+v", e)
		}
		_, _ = w.Write([]byte(`{"id":"em_1"}`))
	}))
	defer ts.Close()

	cl := mailer.New(ts.URL, "key")
	id, err := cl.Send(context.Background(), domain.Email{
		From: "site@example.com", To: []string{"office@example.com"}, ReplyTo: "jo@example.com",
		Subject: "New enquiry", HTML: "<p>hi</p>", Text: "hi",
	})
	if err != nil || id != "em_1" {
		t.Fatalf("Send: id=%q err=%v", id, err)
	}
}

func TestSend_RetryReusesIdempotencyKey(t *testing.T) {
	var hits int32
	keys := make([]string, 0, 2)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keys = append(keys, r.Header.Get("Idempotency-Key"))
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"id":"em_2"}`))
	}))
	defer ts.Close()

	cl := mailer.New(ts.URL, "key")
	id, err := cl.Send(context.Background(), domain.Email{To: []string{"office@example.com"}, Subject: "s"})
	if err != nil || id != "em_2" {
		t.Fatalf("Send: id=%q err=%v", id, err)
	}
	if len(keys) != 2 || keys[0] == "" || keys[0] != keys[1] {
		t.Fatalf("idempotency keys = %q", keys)
	}

	// a new Send is a new message
	if _, err := cl.Send(context.Background(), domain.Email{To: []string{"office@example.com"}, Subject: "s"}); err != nil {
		t.Fatalf("second Send: %v", err)
	}
	if len(keys) != 3 || keys[2] == keys[0] {
		t.Fatalf("idempotency keys = %q", keys)
	}
}

func TestSend_DomainNotVerified(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"statusCode":403,"message":"The example.com domain is not verified.","name":"validation_error"}`))
	}))
	defer ts.Close()

	_, err := mailer.New(ts.URL, "key").Send(context.Background(), domain.Email{To: []string{"a@b.co"}})
	if !errors.Is(err, domain.ErrDomainNotVerified) {
		t.Fatalf("expected ErrDomainNotVerified, got %v", err)
	}
}

func TestUpsertContact_ConflictIsSuccess(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audiences/aud-1/contacts" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["email"] != "jo@example.com" {
			t.Errorf("email not normalised: %v", body["email"])
		}
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message":"Contact already exists"}`))
	}))
	defer ts.Close()

	err := mailer.New(ts.URL, "key").UpsertContact(context.Background(), "aud-1", domain.Contact{Email: " Jo@Example.com "})
	if err != nil {
		t.Fatalf("expected conflict to be treated as success, got %v", err)
	}
}

func TestUpsertContact_Failure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"invalid email"}`))
	}))
	defer ts.Close()

	err := mailer.New(ts.URL, "key").UpsertContact(context.Background(), "aud-1", domain.Contact{Email: "x"})
	var ve *domain.VendorError
	if !errors.As(err, &ve) || ve.Status != http.StatusBadRequest {
		t.Fatalf("expected 400 VendorError, got %v", err)
	}
}

func TestMissingKey(t *testing.T) {
	_, err := mailer.New("http://127.0.0.1:1", "").Send(context.Background(), domain.Email{})
	if !errors.Is(err, domain.ErrMisconfigured) {
		t.Fatalf("expected ErrMisconfigured, got %v", err)
	}
}
