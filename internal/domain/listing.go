package domain

// Status is the closed display lifecycle of a listing.
type Status string

const (
	StatusAvailable Status = "available"
	StatusSold      Status = "sold"
	StatusRented    Status = "rented"
	StatusArchived  Status = "archived"
)

// Category is the listing category reported by the CRM.
type Category string

const (
	CategoryResidentialSale   Category = "residential_sale"
	CategoryResidentialRental Category = "residential_rental"
	CategoryCommercialSale    Category = "commercial_sale"
	CategoryCommercialRental  Category = "commercial_rental"
	CategoryRuralSale         Category = "rural_sale"
	CategoryLandSale          Category = "land_sale"
	CategoryHolidayRental     Category = "holiday_rental"
	CategoryBusinessSale      Category = "business_sale"
	CategoryOther             Category = "other"
)

type Listing struct {
	ID           string   `json:"id"`
	Address      string   `json:"address"`
	Suburb       string   `json:"suburb"`
	State        string   `json:"state"`
	Postcode     string   `json:"postcode"`
	DisplayPrice string   `json:"price"`
	PriceValue   int64    `json:"priceValue"`
	Bedrooms     int      `json:"bedrooms"`
	Bathrooms    int      `json:"bathrooms"`
	CarSpaces    int      `json:"carSpaces"`
	LandSize     string   `json:"landSize"`
	Category     Category `json:"category"`
	// CategoryLabel is the raw vendor label the category was inferred from.
	CategoryLabel string     `json:"categoryLabel,omitempty"`
	Status        Status     `json:"status"`
	Images        []string   `json:"images"`
	Headline      string     `json:"headline"`
	Description   string     `json:"description"`
	Documents     []Document `json:"documents,omitempty"`

	StatementOfInformationURL string `json:"statementOfInformationUrl,omitempty"`

	Agent     *Agent `json:"agent"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

type Document struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
	URL  string `json:"url"`
}

type Agent struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	ImageURL string `json:"imageUrl"`
}

// IsRental reports whether the listing belongs to a rental category.
func (l Listing) IsRental() bool {
	switch l.Category {
	case CategoryResidentialRental, CategoryCommercialRental, CategoryHolidayRental:
		return true
	}
	return false
}

// ListingQuery carries the optional constraints of a listing search.
// Nil pointers and empty strings impose no restriction.
type ListingQuery struct {
	Status    string
	Type      string
	MinPrice  *int64
	MaxPrice  *int64
	Bedrooms  *int
	Bathrooms *int
	CarSpaces *int
	Suburb    string
	Offset    int
	Limit     int
}

type ListingPage struct {
	Items   []Listing `json:"listings"`
	Total   int       `json:"total"`
	HasMore bool      `json:"hasMore"`
	Suburbs []string  `json:"suburbs"`
}
