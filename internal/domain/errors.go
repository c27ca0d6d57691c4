package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrRateLimited       = errors.New("rate limited")
	ErrMisconfigured     = errors.New("vendor credentials not configured")
	ErrDomainNotVerified = errors.New("sender domain not verified")
	ErrInvalidInput      = errors.New("invalid input")
)

// VendorError is a non-2xx answer from an external service.
type VendorError struct {
	Service string
	Status  int
	Message string
}

func (e *VendorError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", e.Service, e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Service, e.Status, e.Message)
}

// Unwrap maps the status onto the matching sentinel so callers can use errors.Is.
func (e *VendorError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}
	return nil
}
