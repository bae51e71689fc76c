// Package matching selects which leads a dealer or an administrator sees.
// Every function here is pure: the same inputs always give the same output
// and the input slice is never modified.
package matching

import (
	"errors"
	"strings"

	"automatch/internal/models"
)

type Scope string

const (
	ScopeLocal    Scope = "local"
	ScopeNational Scope = "national"
)

// UrgencyAll disables urgency filtering.
const UrgencyAll = "all"

const regionSeparator = " - "

var (
	ErrInvalidScope   = errors.New("invalid scope")
	ErrInvalidUrgency = errors.New("invalid urgency")
)

type Filter struct {
	Search  string
	Urgency string
	Scope   Scope
}

type AdminFilter struct {
	Brand  string
	Model  string
	Search string
}

func ParseScope(raw string) (Scope, error) {
	switch Scope(raw) {
	case "", ScopeNational:
		return ScopeNational, nil
	case ScopeLocal:
		return ScopeLocal, nil
	}
	return "", ErrInvalidScope
}

func ParseUrgency(raw string) (string, error) {
	if raw == "" || raw == UrgencyAll {
		return UrgencyAll, nil
	}
	if !models.Urgency(raw).Valid() {
		return "", ErrInvalidUrgency
	}
	return raw, nil
}

// RegionPrefix is the part of a region before the first " - ", e.g. the city
// in "Florianópolis - SC".
func RegionPrefix(region string) string {
	prefix, _, _ := strings.Cut(region, regionSeparator)
	return prefix
}

// ForDealer returns the leads visible to a dealer operating in region, in
// their original order.
func ForDealer(leads []models.Lead, region string, filter Filter) []models.Lead {
	search := strings.ToLower(filter.Search)
	prefix := RegionPrefix(region)
	out := make([]models.Lead, 0, len(leads))
	for _, lead := range leads {
		if !matchesSearch(lead, search) {
			continue
		}
		if filter.Urgency != "" && filter.Urgency != UrgencyAll && string(lead.Urgency) != filter.Urgency {
			continue
		}
		if filter.Scope == ScopeLocal && !isLocal(lead, prefix) {
			continue
		}
		out = append(out, lead)
	}
	return out
}

// ForAdmin applies the backoffice lead table filters: brand and model are
// case-insensitive substrings of any listed value, search looks at the buyer.
func ForAdmin(leads []models.Lead, filter AdminFilter) []models.Lead {
	brand := strings.ToLower(filter.Brand)
	model := strings.ToLower(filter.Model)
	search := strings.ToLower(filter.Search)
	out := make([]models.Lead, 0, len(leads))
	for _, lead := range leads {
		if brand != "" && !anyContains(lead.Brands, brand) {
			continue
		}
		if model != "" && !anyContains(lead.Models, model) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(lead.BuyerName), search) &&
			!strings.Contains(strings.ToLower(lead.BuyerEmail), search) {
			continue
		}
		out = append(out, lead)
	}
	return out
}

func matchesSearch(lead models.Lead, search string) bool {
	if search == "" {
		return true
	}
	return anyContains(lead.Brands, search) ||
		anyContains(lead.Models, search) ||
		strings.Contains(strings.ToLower(lead.Location), search)
}

// isLocal compares case-sensitively against the dealer's region prefix.
func isLocal(lead models.Lead, prefix string) bool {
	return strings.Contains(lead.Location, prefix) || lead.AcceptsRemoteProposals
}

func anyContains(values []string, needle string) bool {
	for _, value := range values {
		if strings.Contains(strings.ToLower(value), needle) {
			return true
		}
	}
	return false
}
