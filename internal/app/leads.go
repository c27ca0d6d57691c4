package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"realty_site/internal/adapters/observability"
	"realty_site/internal/domain"
	"realty_site/internal/shared"
)

// ValidationError names the first form field that failed validation.
type ValidationError struct {
	Field string
	Rule  string
}

func (e *ValidationError) Error() string {
	switch e.Rule {
	case "required":
		return e.Field + " is required"
	case "email":
		return e.Field + " must be a valid email address"
	}
	return e.Field + " is invalid"
}

func (e *ValidationError) Unwrap() error { return domain.ErrInvalidInput }

type LeadOptions struct {
	From       string
	Inbox      string
	AudienceID string
}

func LeadOptionsFrom(cfg shared.Config) LeadOptions {
	return LeadOptions{From: cfg.MailFrom, Inbox: cfg.LeadsInbox, AudienceID: cfg.AudienceID}
}

type LeadService struct {
	mail     domain.Mailer
	repo     domain.LeadRepository
	retry    *shared.Retrier
	opts     LeadOptions
	validate *validator.Validate
	newID    func() string
}

func NewLeadService(m domain.Mailer, repo domain.LeadRepository, r *shared.Retrier, o LeadOptions) *LeadService {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return &LeadService{mail: m, repo: repo, retry: r, opts: o, validate: v, newID: uuid.NewString}
}

func (s *LeadService) check(kind domain.LeadKind, form any) error {
	err := s.validate.Struct(form)
	if err == nil {
		return nil
	}
	observability.ObserveLead(string(kind), "invalid")
	var ves validator.ValidationErrors
	if errors.As(err, &ves) && len(ves) > 0 {
		return &ValidationError{Field: ves[0].Field(), Rule: ves[0].Tag()}
	}
	return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
}

// Contact forwards a general or listing enquiry to the office inbox.
func (s *LeadService) Contact(ctx context.Context, f domain.ContactForm) (string, error) {
	subject, data := contactEmail(f)
	return s.notify(ctx, domain.LeadContact, f, f.Name, f.Email, f.Phone, subject, data)
}

// RegisterBuyer forwards a buyer registration to the office inbox.
func (s *LeadService) RegisterBuyer(ctx context.Context, f domain.BuyerForm) (string, error) {
	subject, data := buyerEmail(f)
	return s.notify(ctx, domain.LeadBuyer, f, f.Name, f.Email, f.Phone, subject, data)
}

// RequestAppraisal forwards a sell appraisal request to the office inbox.
func (s *LeadService) RequestAppraisal(ctx context.Context, f domain.AppraisalForm) (string, error) {
	subject, data := appraisalEmail(f)
	return s.notify(ctx, domain.LeadAppraisal, f, f.Name, f.Email, f.Phone, subject, data)
}

// Subscribe adds the address to the newsletter audience. Re-subscribing is not an error.
func (s *LeadService) Subscribe(ctx context.Context, f domain.NewsletterForm) (string, error) {
	if err := s.check(domain.LeadNewsletter, f); err != nil {
		return "", err
	}
	name := joinNonEmpty(f.FirstName, f.LastName)
	return s.record(ctx, domain.LeadNewsletter, f, name, f.Email, "", func(ctx context.Context) error {
		if s.opts.AudienceID == "" {
			return fmt.Errorf("newsletter audience: %w", domain.ErrMisconfigured)
		}
		c := domain.Contact{
			Email:     strings.ToLower(strings.TrimSpace(f.Email)),
			FirstName: strings.TrimSpace(f.FirstName),
			LastName:  strings.TrimSpace(f.LastName),
		}
		_, err := shared.Do(ctx, s.retry, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.mail.UpsertContact(ctx, s.opts.AudienceID, c)
		})
		return err
	})
}

func (s *LeadService) notify(ctx context.Context, kind domain.LeadKind, form any, name, email, phone, subject string, data emailData) (string, error) {
	if err := s.check(kind, form); err != nil {
		return "", err
	}
	return s.record(ctx, kind, form, name, email, phone, func(ctx context.Context) error {
		if s.opts.From == "" || s.opts.Inbox == "" {
			return fmt.Errorf("lead inbox: %w", domain.ErrMisconfigured)
		}
		msg, err := renderLead(s.opts.From, s.opts.Inbox, email, oneLine(subject), data)
		if err != nil {
			return err
		}
		_, err = shared.Do(ctx, s.retry, func(ctx context.Context) (string, error) {
			return s.mail.Send(ctx, msg)
		})
		return err
	})
}

// record runs deliver and writes the outcome to the lead log. Log failures are not
// reported to the submitter.
func (s *LeadService) record(ctx context.Context, kind domain.LeadKind, form any, name, email, phone string, deliver func(context.Context) error) (string, error) {
	id := s.newID()
	payload, err := json.Marshal(form)
	if err != nil {
		log.Error().Str("lead_id", id).Str("kind", string(kind)).Err(err).Msg("lead payload encode failed")
		payload = nil
	}

	derr := deliver(ctx)

	lead := domain.Lead{
		ID: id, Kind: kind, Name: name, Email: email, Phone: phone,
		Payload: payload, Delivered: derr == nil,
	}
	if derr != nil {
		lead.Error = derr.Error()
	}
	if err := s.repo.SaveLead(ctx, lead); err != nil {
		log.Error().Str("lead_id", id).Str("kind", string(kind)).Err(err).Msg("lead log write failed")
	}

	if derr != nil {
		observability.ObserveLead(string(kind), "failed")
		log.Warn().Str("lead_id", id).Str("kind", string(kind)).Err(derr).Msg("lead delivery failed")
		return id, fmt.Errorf("deliver %s: %w", kind, derr)
	}
	observability.ObserveLead(string(kind), "delivered")
	log.Info().Str("lead_id", id).Str("kind", string(kind)).Msg("lead delivered")
	return id, nil
}

func oneLine(s string) string { return strings.Join(strings.Fields(s), " ") }
