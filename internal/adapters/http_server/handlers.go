package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/rs/zerolog/log"

	"realty_site/internal/app"
	"realty_site/internal/domain"
)

const maxBody = 64 << 10

type ListingFinder interface {
	Search(ctx context.Context, q domain.ListingQuery) (domain.ListingPage, error)
	Get(ctx context.Context, id string) (domain.Listing, error)
}

type ContentReader interface {
	List(ctx context.Context, kind domain.ContentKind) ([]domain.ArticleSummary, error)
	Get(ctx context.Context, kind domain.ContentKind, slug string) (domain.Article, error)
}

type LeadIntake interface {
	Contact(ctx context.Context, f domain.ContactForm) (string, error)
	RegisterBuyer(ctx context.Context, f domain.BuyerForm) (string, error)
	RequestAppraisal(ctx context.Context, f domain.AppraisalForm) (string, error)
	Subscribe(ctx context.Context, f domain.NewsletterForm) (string, error)
}

type ChatResponder interface {
	Reply(ctx context.Context, history []domain.ChatMessage) (string, error)
}

type Handlers struct {
	Listings ListingFinder
	Content  ContentReader
	Leads    LeadIntake
	Chat     ChatResponder
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]any{"success": true, "status": "ok"})
	})

	s.mux.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(Timeout(s.opts.RequestTimeout))
			r.Get("/listings", h.searchListings)
			r.Get("/listings/{id}", h.getListing)
			r.Get("/blog", h.listArticles(domain.KindBlog))
			r.Get("/blog/{slug}", h.getArticle(domain.KindBlog))
			r.Get("/guides", h.listArticles(domain.KindGuides))
			r.Get("/guides/{slug}", h.getArticle(domain.KindGuides))
		})
		r.Group(func(r chi.Router) {
			r.Use(Timeout(s.opts.RequestTimeout))
			r.Use(RateLimit(s.opts.FormRatePerMin))
			r.Post("/contact", h.contact)
			r.Post("/buyers", h.buyer)
			r.Post("/appraisal", h.appraisal)
			r.Post("/newsletter", h.newsletter)
		})
		r.Group(func(r chi.Router) {
			r.Use(Timeout(s.opts.ChatTimeout))
			r.Use(RateLimit(s.opts.ChatRatePerMin))
			r.Post("/chat", h.chat)
		})
	})
}

/********** envelopes **********/

type listingsResponse struct {
	Success bool `json:"success"`
	domain.ListingPage
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"error": msg})
}

// fail maps an application error onto a status and a message safe to show visitors.
// fallback is used for upstream failures that have no more specific meaning.
func fail(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status, msg := http.StatusBadGateway, fallback
	var ve *app.ValidationError
	switch {
	case errors.As(err, &ve):
		status, msg = http.StatusBadRequest, ve.Error()
	case errors.Is(err, domain.ErrInvalidInput):
		status, msg = http.StatusBadRequest, "invalid request"
	case errors.Is(err, domain.ErrNotFound):
		status, msg = http.StatusNotFound, "not found"
	case errors.Is(err, domain.ErrRateLimited):
		status, msg = http.StatusTooManyRequests, "the service is busy, please try again shortly"
	case errors.Is(err, domain.ErrMisconfigured):
		status, msg = http.StatusServiceUnavailable, "this service is not configured"
	case errors.Is(err, domain.ErrDomainNotVerified):
		status, msg = http.StatusInternalServerError, "email sending is misconfigured: sender domain not verified"
	case errors.Is(err, context.DeadlineExceeded):
		status, msg = http.StatusGatewayTimeout, "the request timed out"
	}

	ev := log.Warn()
	if status >= 500 {
		ev = log.Error()
	}
	ev.Err(err).
		Str("route", routeOf(r)).
		Str("request_id", chimw.GetReqID(r.Context())).
		Int("status", status).
		Msg("request failed")
	writeError(w, r, status, msg)
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	return `W/"` + hex.EncodeToString(sum[:]) + `"`, body
}

// writeCacheable answers 304 when the client already holds this version.
func writeCacheable(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if body == nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	w.Header().Set("ETag", etag)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write response body")
	}
}

/********** listings **********/

func (h *Handlers) searchListings(w http.ResponseWriter, r *http.Request) {
	q, err := parseListingQuery(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	page, err := h.Listings.Search(r.Context(), q)
	if err != nil {
		fail(w, r, err, "listings are temporarily unavailable")
		return
	}
	render.JSON(w, r, listingsResponse{Success: true, ListingPage: page})
}

func (h *Handlers) getListing(w http.ResponseWriter, r *http.Request) {
	l, err := h.Listings.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err, "listing is temporarily unavailable")
		return
	}
	writeCacheable(w, r, map[string]any{"success": true, "listing": l})
}

func parseListingQuery(r *http.Request) (domain.ListingQuery, error) {
	v := r.URL.Query()
	q := domain.ListingQuery{
		Status: strings.TrimSpace(v.Get("status")),
		Type:   strings.TrimSpace(v.Get("type")),
		Suburb: strings.TrimSpace(v.Get("suburb")),
	}
	var err error
	if q.MinPrice, err = optInt64(v.Get("minPrice"), "minPrice"); err != nil {
		return q, err
	}
	if q.MaxPrice, err = optInt64(v.Get("maxPrice"), "maxPrice"); err != nil {
		return q, err
	}
	for _, p := range []struct {
		name string
		dst  **int
	}{{"bedrooms", &q.Bedrooms}, {"bathrooms", &q.Bathrooms}, {"carSpaces", &q.CarSpaces}} {
		n, err := optInt64(v.Get(p.name), p.name)
		if err != nil {
			return q, err
		}
		if n != nil {
			i := int(*n)
			*p.dst = &i
		}
	}
	if q.Offset, err = intOr(v.Get("offset"), 0, "offset"); err != nil {
		return q, err
	}
	if q.Limit, err = intOr(v.Get("limit"), 0, "limit"); err != nil {
		return q, err
	}
	return q, nil
}

func optInt64(s, name string) (*int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return nil, fmt.Errorf("%s must be a non-negative whole number", name)
	}
	return &n, nil
}

func intOr(s string, def int, name string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s must be a whole number", name)
	}
	return n, nil
}

/********** content **********/

func (h *Handlers) listArticles(kind domain.ContentKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := h.Content.List(r.Context(), kind)
		if err != nil {
			fail(w, r, err, "articles are temporarily unavailable")
			return
		}
		if items == nil {
			items = []domain.ArticleSummary{}
		}
		writeCacheable(w, r, map[string]any{"success": true, "articles": items})
	}
}

func (h *Handlers) getArticle(kind domain.ContentKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := h.Content.Get(r.Context(), kind, chi.URLParam(r, "slug"))
		if err != nil {
			fail(w, r, err, "article is temporarily unavailable")
			return
		}
		writeCacheable(w, r, map[string]any{"success": true, "article": a})
	}
}

/********** forms **********/

const formFailed = "we could not send your message, please try again or call the office"

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := render.DecodeJSON(r.Body, dst); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func submitted(w http.ResponseWriter, r *http.Request, id, msg string) {
	render.JSON(w, r, map[string]any{"success": true, "id": id, "message": msg})
}

func (h *Handlers) contact(w http.ResponseWriter, r *http.Request) {
	var f domain.ContactForm
	if !decode(w, r, &f) {
		return
	}
	id, err := h.Leads.Contact(r.Context(), f)
	if err != nil {
		fail(w, r, err, formFailed)
		return
	}
	submitted(w, r, id, "Thanks, we'll be in touch shortly.")
}

func (h *Handlers) buyer(w http.ResponseWriter, r *http.Request) {
	var f domain.BuyerForm
	if !decode(w, r, &f) {
		return
	}
	id, err := h.Leads.RegisterBuyer(r.Context(), f)
	if err != nil {
		fail(w, r, err, formFailed)
		return
	}
	submitted(w, r, id, "Thanks for registering, we'll let you know about matching properties.")
}

func (h *Handlers) appraisal(w http.ResponseWriter, r *http.Request) {
	var f domain.AppraisalForm
	if !decode(w, r, &f) {
		return
	}
	id, err := h.Leads.RequestAppraisal(r.Context(), f)
	if err != nil {
		fail(w, r, err, formFailed)
		return
	}
	submitted(w, r, id, "Thanks, an agent will contact you to arrange your appraisal.")
}

func (h *Handlers) newsletter(w http.ResponseWriter, r *http.Request) {
	var f domain.NewsletterForm
	if !decode(w, r, &f) {
		return
	}
	id, err := h.Leads.Subscribe(r.Context(), f)
	if err != nil {
		fail(w, r, err, "we could not subscribe you right now, please try again later")
		return
	}
	submitted(w, r, id, "You're subscribed.")
}

/********** chat **********/

type chatRequest struct {
	Messages []domain.ChatMessage `json:"messages"`
}

func (h *Handlers) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, r, http.StatusBadRequest, "messages are required")
		return
	}
	reply, err := h.Chat.Reply(r.Context(), req.Messages)
	if err != nil {
		fail(w, r, err, "the assistant is unavailable right now")
		return
	}
	render.JSON(w, r, map[string]any{"success": true, "reply": reply})
}
