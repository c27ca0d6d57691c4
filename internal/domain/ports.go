package domain

import "context"

// ListingSearchResult is one page of raw summary records from the CRM.
type ListingSearchResult struct {
	Rows  []map[string]any
	Total int
}

type ListingSource interface {
	SearchListings(ctx context.Context, offset, limit int) (ListingSearchResult, error)
	ReadListing(ctx context.Context, id string, extraFields []string) (map[string]any, error)
}

type ContentSource interface {
	ListDocuments(ctx context.Context, folderID string) ([]ContentDoc, error)
	GetBlocks(ctx context.Context, documentID string) ([]Block, error)
}

type Mailer interface {
	Send(ctx context.Context, e Email) (string, error)
	UpsertContact(ctx context.Context, audienceID string, c Contact) error
}

type ChatCompleter interface {
	Complete(ctx context.Context, messages []ChatMessage) (string, error)
}

type LeadRepository interface {
	SaveLead(ctx context.Context, l Lead) error
	GetLead(ctx context.Context, id string) (Lead, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}
