package domain

import "time"

type LeadKind string

const (
	LeadContact    LeadKind = "contact"
	LeadBuyer      LeadKind = "buyer"
	LeadAppraisal  LeadKind = "appraisal"
	LeadNewsletter LeadKind = "newsletter"
)

type ContactForm struct {
	Name      string `json:"name" validate:"required,min=2,max=100"`
	Email     string `json:"email" validate:"required,email,max=254"`
	Phone     string `json:"phone" validate:"omitempty,max=30"`
	Message   string `json:"message" validate:"required,max=5000"`
	ListingID string `json:"listingId" validate:"omitempty,max=64"`
}

type BuyerForm struct {
	Name         string   `json:"name" validate:"required,min=2,max=100"`
	Email        string   `json:"email" validate:"required,email,max=254"`
	Phone        string   `json:"phone" validate:"required,max=30"`
	Suburbs      []string `json:"suburbs" validate:"max=20,dive,max=80"`
	MinPrice     int64    `json:"minPrice" validate:"gte=0"`
	MaxPrice     int64    `json:"maxPrice" validate:"gte=0"`
	Bedrooms     int      `json:"bedrooms" validate:"gte=0,lte=20"`
	PropertyType string   `json:"propertyType" validate:"omitempty,max=50"`
	Message      string   `json:"message" validate:"max=5000"`
}

type AppraisalForm struct {
	Name         string `json:"name" validate:"required,min=2,max=100"`
	Email        string `json:"email" validate:"required,email,max=254"`
	Phone        string `json:"phone" validate:"required,max=30"`
	Address      string `json:"address" validate:"required,max=200"`
	Suburb       string `json:"suburb" validate:"omitempty,max=80"`
	PropertyType string `json:"propertyType" validate:"omitempty,max=50"`
	Timeframe    string `json:"timeframe" validate:"omitempty,max=50"`
	Message      string `json:"message" validate:"max=5000"`
}

type NewsletterForm struct {
	Email     string `json:"email" validate:"required,email,max=254"`
	FirstName string `json:"firstName" validate:"max=60"`
	LastName  string `json:"lastName" validate:"max=60"`
}

// Lead is the audit record of one form submission.
type Lead struct {
	ID        string
	Kind      LeadKind
	Name      string
	Email     string
	Phone     string
	Payload   []byte // submitted form as JSON
	Delivered bool
	Error     string
	CreatedAt time.Time
}

// Email is a single outbound message for the delivery vendor.
type Email struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	ReplyTo string   `json:"reply_to,omitempty"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text"`
}

type Contact struct {
	Email     string
	FirstName string
	LastName  string
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
