package app

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"

	"realty_site/internal/domain"
)

/********** field registries (single source of truth) **********/

// Each field lists its candidate locations in priority order.
var listingFields = map[string][]string{
	"id":          {"id", "_id", "listing_id"},
	"unit":        {"property.adr_unit_number", "address.unit_number", "adr_unit_number"},
	"street_no":   {"property.adr_street_number", "address.street_number", "adr_street_number"},
	"street_name": {"property.adr_street_name", "address.street_name", "adr_street_name"},
	"street_type": {"property.adr_street_type", "address.street_type", "adr_street_type"},
	"suburb":      {"property.adr_suburb_or_town", "address.suburb", "adr_suburb_or_town", "suburb"},
	"state":       {"property.adr_state_or_region", "address.state", "adr_state_or_region", "state"},
	"postcode":    {"property.adr_postcode", "address.postcode", "adr_postcode", "postcode"},
	"price_text":  {"price_advertise_as", "price.text", "price", "display_price"},
	"price_raw":   {"price_match", "state_value_price", "price_advertise_as", "price.text", "price"},
	"bedrooms":    {"property.attr_bedrooms", "attr_bedrooms", "bedrooms"},
	"bathrooms":   {"property.attr_bathrooms", "attr_bathrooms", "bathrooms"},
	"car_spaces":  {"property.attr_total_car_accom", "attr_total_car_accom", "property.attr_garages", "car_spaces"},
	"land_size":   {"property.attr_land_area", "attr_land_area", "land_size"},
	"category":    {"listing_category_id", "listing_category.id", "listing_category.text", "listing_category", "category"},
	"status":      {"system_listing_state", "listing_state", "status"},
	"headline":    {"advert_internet.heading", "headline", "heading"},
	"description": {"advert_internet.body", "description", "body"},
	"created_at":  {"system_ctime", "created_at"},
	"updated_at":  {"system_modtime", "updated_at"},
	"primary_img": {"property_image.url", "property_image", "main_image.url"},
	"agent_name":  {"name", "full_name"},
	"agent_first": {"first_name"},
	"agent_last":  {"last_name"},
	"agent_email": {"email_address", "email"},
	"agent_phone": {"phone_mobile", "phone_direct", "phone"},
	"agent_image": {"profile_image.url", "profile_image", "image_url"},
	"img_url":     {"url", "uri", "src"},
	"img_rank":    {"priority", "order", "rank"},
	"doc_id":      {"id"},
	"doc_name":    {"description", "name", "title"},
	"doc_type":    {"type.id", "type", "document_type.id", "document_type"},
	"doc_url":     {"url", "uri"},
	"doc_privacy": {"privacy.id", "privacy", "privacy_level"},
}

var (
	imageSources    = []string{"images", "related.listing_images", "listing_images"}
	documentSources = []string{"related.listing_documents", "documents", "listing_documents"}
	agentSources    = []string{"listing_agent_1", "related.listing_agents.0", "agent"}
)

// VendorSchemes are URI schemes the CRM uses for hosted files; they are served over https.
var VendorSchemes = []string{"rex"}

const (
	soiDocType    = "statement_of_information"
	publicPrivacy = "public"
)

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths; numeric parts index into arrays.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		switch obj := cur.(type) {
		case map[string]any:
			v, ok := obj[part]
			if !ok {
				return nil
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(obj) {
				return nil
			}
			cur = obj[i]
		default:
			return nil
		}
	}
	return cur
}

// asString renders scalars as text; anything else is "".
func asString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	}
	return ""
}

// accessor reads one candidate value from a record.
type accessor func(map[string]any) string

func at(path string) accessor {
	return func(m map[string]any) string { return asString(lookupAny(m, path)) }
}

// firstOf returns the first non-empty result of the accessors, tried in order.
func firstOf(m map[string]any, accessors ...accessor) string {
	for _, a := range accessors {
		if v := a(m); v != "" {
			return v
		}
	}
	return ""
}

// field resolves a registry entry with firstOf.
func field(m map[string]any, key string) string {
	paths := listingFields[key]
	acc := make([]accessor, len(paths))
	for i, p := range paths {
		acc[i] = at(p)
	}
	return firstOf(m, acc...)
}

// count parses a non-negative whole number ("3", 3, "2.0"); anything else is 0.
func count(s string) int {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || f < 0 || f > math.MaxInt32 {
		return 0
	}
	return int(f)
}

// parsePrice keeps only the digits of the raw price text; unparsable input is 0.
func parsePrice(s string) int64 {
	if i := strings.IndexByte(s, '.'); i >= 0 && isNumeric(s) {
		s = s[:i] // 850000.00 is a number, not a digit string
	}
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	n, err := strconv.ParseInt(b.String(), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func isNumeric(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

func joinNonEmpty(parts ...string) string {
	var out []string
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return strings.Join(out, " ")
}

func normKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

/********** listing mapper **********/

// MapListing converts one raw CRM record into a Listing. It never fails: missing or
// malformed fields fall back to zero values.
func MapListing(raw map[string]any) domain.Listing {
	if raw == nil {
		raw = map[string]any{}
	}
	label := field(raw, "category")
	docs, soi := mapDocuments(raw)

	l := domain.Listing{
		ID:            field(raw, "id"),
		Address:       buildAddress(field(raw, "unit"), field(raw, "street_no"), field(raw, "street_name"), field(raw, "street_type")),
		Suburb:        field(raw, "suburb"),
		State:         field(raw, "state"),
		Postcode:      field(raw, "postcode"),
		DisplayPrice:  field(raw, "price_text"),
		PriceValue:    parsePrice(field(raw, "price_raw")),
		Bedrooms:      count(field(raw, "bedrooms")),
		Bathrooms:     count(field(raw, "bathrooms")),
		CarSpaces:     count(field(raw, "car_spaces")),
		LandSize:      field(raw, "land_size"),
		Category:      ClassifyCategory(label),
		CategoryLabel: label,
		Status:        ClassifyStatus(field(raw, "status")),
		Images:        mapImages(raw),
		Headline:      field(raw, "headline"),
		Description:   field(raw, "description"),
		Documents:     docs,
		Agent:         mapAgent(raw),
		CreatedAt:     field(raw, "created_at"),
		UpdatedAt:     field(raw, "updated_at"),

		StatementOfInformationURL: soi,
	}
	return l
}

// buildAddress renders "unit/number street"; the street type is appended only when the
// street name does not already contain it.
func buildAddress(unit, number, streetName, streetType string) string {
	street := strings.TrimSpace(streetName)
	if t := strings.TrimSpace(streetType); t != "" &&
		!strings.Contains(strings.ToLower(street), strings.ToLower(t)) {
		street = joinNonEmpty(street, t)
	}
	if unit != "" {
		if number != "" {
			number = unit + "/" + number
		} else {
			number = unit
		}
	}
	return joinNonEmpty(number, street)
}

// NormalizeImageURL completes protocol-relative URLs and rewrites vendor schemes to https.
func NormalizeImageURL(u string) string {
	u = strings.TrimSpace(u)
	if strings.HasPrefix(u, "//") {
		return "https:" + u
	}
	if i := strings.Index(u, "://"); i > 0 {
		scheme := strings.ToLower(u[:i])
		for _, s := range VendorSchemes {
			if scheme == s {
				return "https" + u[i:]
			}
		}
	}
	return u
}

func isAbsoluteURL(u string) bool {
	i := strings.Index(u, "://")
	return i > 0 && len(u) > i+3
}

type rankedImage struct {
	url  string
	rank float64
}

// mapImages takes the first non-empty image collection, orders it by rank and appends
// the primary image when it is not already present.
func mapImages(raw map[string]any) []string {
	var imgs []rankedImage
	for _, src := range imageSources {
		if imgs = collectImages(lookupAny(raw, src)); len(imgs) > 0 {
			break
		}
	}
	sort.SliceStable(imgs, func(i, j int) bool { return imgs[i].rank < imgs[j].rank })

	out := make([]string, 0, len(imgs)+1)
	seen := make(map[string]struct{}, len(imgs)+1)
	add := func(u string) {
		u = NormalizeImageURL(u)
		if !isAbsoluteURL(u) {
			return
		}
		if _, dup := seen[u]; dup {
			return
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	for _, im := range imgs {
		add(im.url)
	}
	add(field(raw, "primary_img"))
	return out
}

func collectImages(v any) []rankedImage {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]rankedImage, 0, len(items))
	for _, it := range items {
		switch t := it.(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				out = append(out, rankedImage{url: s})
			}
		case map[string]any:
			u := field(t, "img_url")
			if u == "" {
				continue
			}
			rank, _ := strconv.ParseFloat(field(t, "img_rank"), 64)
			out = append(out, rankedImage{url: u, rank: rank})
		}
	}
	return out
}

// mapDocuments returns the public documents and the statement of information URL.
func mapDocuments(raw map[string]any) ([]domain.Document, string) {
	var items []any
	for _, src := range documentSources {
		if v, ok := lookupAny(raw, src).([]any); ok && len(v) > 0 {
			items = v
			break
		}
	}
	var (
		docs []domain.Document
		soi  string
	)
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		if normKey(field(m, "doc_privacy")) != publicPrivacy {
			continue
		}
		u := NormalizeImageURL(field(m, "doc_url"))
		if u == "" {
			continue
		}
		d := domain.Document{
			ID:   field(m, "doc_id"),
			Name: field(m, "doc_name"),
			Type: field(m, "doc_type"),
			URL:  u,
		}
		docs = append(docs, d)
		if soi == "" && normKey(d.Type) == soiDocType {
			soi = d.URL
		}
	}
	return docs, soi
}

func mapAgent(raw map[string]any) *domain.Agent {
	var m map[string]any
	for _, src := range agentSources {
		if v, ok := lookupAny(raw, src).(map[string]any); ok && len(v) > 0 {
			m = v
			break
		}
	}
	if m == nil {
		return nil
	}
	name := field(m, "agent_name")
	if name == "" {
		name = joinNonEmpty(field(m, "agent_first"), field(m, "agent_last"))
	}
	a := domain.Agent{
		Name:     name,
		Email:    field(m, "agent_email"),
		Phone:    field(m, "agent_phone"),
		ImageURL: NormalizeImageURL(field(m, "agent_image")),
	}
	if a == (domain.Agent{}) {
		return nil
	}
	return &a
}
