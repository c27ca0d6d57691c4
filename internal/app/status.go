package app

import (
	"strings"

	"realty_site/internal/domain"
)

var statusCodes = map[string]domain.Status{
	"sold":       domain.StatusSold,
	"exchanged":  domain.StatusSold,
	"leased":     domain.StatusRented,
	"withdrawn":  domain.StatusArchived,
	"off_market": domain.StatusArchived,
}

// ClassifyStatus maps a CRM lifecycle code to a display status. Unknown codes,
// including "current" and "under_offer", are available.
func ClassifyStatus(code string) domain.Status {
	if s, ok := statusCodes[strings.ToLower(strings.TrimSpace(code))]; ok {
		return s
	}
	return domain.StatusAvailable
}

var categoryIDs = map[string]domain.Category{
	string(domain.CategoryResidentialSale):   domain.CategoryResidentialSale,
	string(domain.CategoryResidentialRental): domain.CategoryResidentialRental,
	string(domain.CategoryCommercialSale):    domain.CategoryCommercialSale,
	string(domain.CategoryCommercialRental):  domain.CategoryCommercialRental,
	string(domain.CategoryRuralSale):         domain.CategoryRuralSale,
	string(domain.CategoryLandSale):          domain.CategoryLandSale,
	string(domain.CategoryHolidayRental):     domain.CategoryHolidayRental,
	string(domain.CategoryBusinessSale):      domain.CategoryBusinessSale,
}

// ClassifyCategory infers the category from the CRM's free-text label. A label that
// mentions renting or leasing is a rental.
func ClassifyCategory(label string) domain.Category {
	key := normKey(label)
	if c, ok := categoryIDs[key]; ok {
		return c
	}
	rental := strings.Contains(key, "rent") || strings.Contains(key, "lease")
	switch {
	case key == "":
		return domain.CategoryOther
	case strings.Contains(key, "holiday"):
		return domain.CategoryHolidayRental
	case strings.Contains(key, "commercial"):
		if rental {
			return domain.CategoryCommercialRental
		}
		return domain.CategoryCommercialSale
	case rental:
		return domain.CategoryResidentialRental
	case strings.Contains(key, "business"):
		return domain.CategoryBusinessSale
	case strings.Contains(key, "rural"):
		return domain.CategoryRuralSale
	case strings.Contains(key, "land"):
		return domain.CategoryLandSale
	case strings.Contains(key, "residential"), strings.Contains(key, "sale"):
		return domain.CategoryResidentialSale
	}
	return domain.CategoryOther
}
