package app

import (
	"sort"
	"strings"

	"realty_site/internal/domain"
)

// predicate is one independent constraint; a listing is kept when all of them hold.
type predicate func(domain.Listing) bool

func statusPredicate(status string) predicate {
	status = strings.ToLower(strings.TrimSpace(status))
	if status == "" || status == "all" {
		return nil
	}
	return func(l domain.Listing) bool { return string(l.Status) == status }
}

// typePredicate only understands rent/rental and sale; other values impose nothing.
func typePredicate(typ string) predicate {
	switch strings.ToLower(strings.TrimSpace(typ)) {
	case "rent", "rental":
		return func(l domain.Listing) bool { return l.IsRental() }
	case "sale":
		return func(l domain.Listing) bool { return !l.IsRental() }
	}
	return nil
}

func numericPredicates(q domain.ListingQuery) []predicate {
	var ps []predicate
	if q.MinPrice != nil {
		lo := *q.MinPrice
		ps = append(ps, func(l domain.Listing) bool { return l.PriceValue >= lo })
	}
	if q.MaxPrice != nil {
		hi := *q.MaxPrice
		ps = append(ps, func(l domain.Listing) bool { return l.PriceValue <= hi })
	}
	if q.Bedrooms != nil {
		n := *q.Bedrooms
		ps = append(ps, func(l domain.Listing) bool { return l.Bedrooms >= n })
	}
	if q.Bathrooms != nil {
		n := *q.Bathrooms
		ps = append(ps, func(l domain.Listing) bool { return l.Bathrooms >= n })
	}
	if q.CarSpaces != nil {
		n := *q.CarSpaces
		ps = append(ps, func(l domain.Listing) bool { return l.CarSpaces >= n })
	}
	return ps
}

func suburbPredicate(suburb string) predicate {
	needle := strings.ToLower(strings.TrimSpace(suburb))
	if needle == "" {
		return nil
	}
	return func(l domain.Listing) bool {
		return l.Suburb != "" && strings.Contains(strings.ToLower(l.Suburb), needle)
	}
}

func keep(in []domain.Listing, ps ...predicate) []domain.Listing {
	out := make([]domain.Listing, 0, len(in))
next:
	for _, l := range in {
		for _, p := range ps {
			if p != nil && !p(l) {
				continue next
			}
		}
		out = append(out, l)
	}
	return out
}

// FilterListings returns the listings matching every constraint in q, plus the suburb
// facets of the status/type-filtered set.
func FilterListings(in []domain.Listing, q domain.ListingQuery) ([]domain.Listing, []string) {
	scoped := keep(in, statusPredicate(q.Status), typePredicate(q.Type))
	facets := SuburbFacets(scoped)

	ps := append(numericPredicates(q), suburbPredicate(q.Suburb))
	return keep(scoped, ps...), facets
}

// SuburbFacets lists the distinct non-empty suburbs, sorted ascending.
func SuburbFacets(in []domain.Listing) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, l := range in {
		s := strings.TrimSpace(l.Suburb)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Paginate slices [offset, offset+limit) out of items. A negative offset is treated as 0.
func Paginate(items []domain.Listing, offset, limit int) ([]domain.Listing, int, bool) {
	total := len(items)
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}
	if offset >= total {
		return []domain.Listing{}, total, false
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return items[offset:end], total, total > offset+limit
}
