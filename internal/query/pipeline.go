package query

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/pazar-go-api/internal/models"
	"github.com/noah-isme/pazar-go-api/internal/taxonomy"
)

// noFilter reports whether a string filter value is absent. The legacy
// "all" sentinel is still honoured at this level so old callers degrade to
// a no-op instead of a zero-match filter.
func noFilter(value string) bool {
	trimmed := strings.TrimSpace(value)
	return trimmed == "" || strings.EqualFold(trimmed, "all")
}

// Apply runs filter stages 2-9 over the status-selected candidate set and
// returns the sorted result. The tree may be nil; ancestor checks then
// degrade to the structural path fallback.
func Apply(listings []models.Listing, tree *taxonomy.Tree, now time.Time, filters Filters) []models.Listing {
	results := listings

	results = filterCategory(results, tree, filters.Category)
	results = filterSubCategory(results, tree, filters.SubCategory)
	results = filterCity(results, filters.City)
	results = filterPrice(results, filters.MinPrice, filters.MaxPrice)
	results = filterAttributes(results, filters)
	results = filterFlags(results, filters)
	results = filterDateRange(results, now, filters.DateRange)
	results = filterSpecs(results, filters.Specs)

	SortListings(results, filters.Sort)
	return results
}

func filterCategory(listings []models.Listing, tree *taxonomy.Tree, category string) []models.Listing {
	if noFilter(category) {
		return listings
	}

	filter := strings.ToLower(strings.TrimSpace(category))
	return keep(listings, func(l models.Listing) bool {
		if l.Category == "" {
			return false
		}
		if strings.EqualFold(l.Category, filter) {
			return true
		}
		// A subcategory slug containing the filter marks a child category.
		if l.SubCategory != "" && strings.Contains(strings.ToLower(l.SubCategory), filter) {
			return true
		}
		return tree.IsAncestor(filter, l.Category) || tree.IsAncestor(filter, l.SubCategory)
	})
}

func filterSubCategory(listings []models.Listing, tree *taxonomy.Tree, subCategory string) []models.Listing {
	if noFilter(subCategory) {
		return listings
	}

	filter := strings.ToLower(strings.TrimSpace(subCategory))
	return keep(listings, func(l models.Listing) bool {
		if l.SubCategory == "" {
			return false
		}
		listingSub := strings.ToLower(l.SubCategory)

		// Rule order matters: the authoritative ancestor check runs before
		// the path heuristics, which can produce false positives.
		if listingSub == filter {
			return true
		}
		if tree.IsAncestor(filter, listingSub) {
			return true
		}
		if strings.HasPrefix(listingSub, filter+"/") {
			return true
		}
		if strings.HasPrefix(filter, listingSub+"/") {
			return true
		}
		return false
	})
}

func filterCity(listings []models.Listing, city string) []models.Listing {
	if noFilter(city) {
		return listings
	}
	return keep(listings, func(l models.Listing) bool {
		return strings.EqualFold(l.City, strings.TrimSpace(city))
	})
}

func filterPrice(listings []models.Listing, min, max *float64) []models.Listing {
	if min != nil {
		listings = keep(listings, func(l models.Listing) bool { return l.Price >= *min })
	}
	if max != nil {
		listings = keep(listings, func(l models.Listing) bool { return l.Price <= *max })
	}
	return listings
}

func filterAttributes(listings []models.Listing, filters Filters) []models.Listing {
	if userType := strings.TrimSpace(filters.UserType); userType != "" {
		listings = keep(listings, func(l models.Listing) bool { return l.UserType == userType })
	}
	if len(filters.AdType) > 0 {
		listings = keep(listings, func(l models.Listing) bool {
			return l.AdType != "" && containsFold(filters.AdType, l.AdType)
		})
	}
	if len(filters.Condition) > 0 {
		listings = keep(listings, func(l models.Listing) bool {
			return l.Condition != "" && containsFold(filters.Condition, l.Condition)
		})
	}
	return listings
}

func filterFlags(listings []models.Listing, filters Filters) []models.Listing {
	if filters.IsTradePossible != nil {
		listings = keep(listings, func(l models.Listing) bool { return l.IsTradePossible == *filters.IsTradePossible })
	}
	if filters.HasShipping != nil {
		listings = keep(listings, func(l models.Listing) bool { return l.HasShipping == *filters.HasShipping })
	}
	if filters.IsVatIncluded != nil {
		listings = keep(listings, func(l models.Listing) bool { return l.IsVatIncluded == *filters.IsVatIncluded })
	}
	if filters.IsAffordable != nil {
		listings = keep(listings, func(l models.Listing) bool { return l.IsAffordable == *filters.IsAffordable })
	}
	return listings
}

func filterDateRange(listings []models.Listing, now time.Time, dateRange string) []models.Listing {
	if noFilter(dateRange) {
		return listings
	}

	var window time.Duration
	switch dateRange {
	case DateRangeToday:
		window = 24 * time.Hour
	case DateRange3Days:
		window = 72 * time.Hour
	case DateRange7Days:
		window = 168 * time.Hour
	default:
		return listings
	}

	threshold := now.Add(-window)
	return keep(listings, func(l models.Listing) bool {
		return !l.CreatedAt.Before(threshold)
	})
}

func filterSpecs(listings []models.Listing, specs map[string]SpecFilter) []models.Listing {
	if len(specs) == 0 {
		return listings
	}

	return keep(listings, func(l models.Listing) bool {
		if len(l.Specifications) == 0 {
			return false
		}
		for key, filter := range specs {
			value, ok := l.Specifications[key]
			if !ok {
				return false
			}
			if !filter.matches(value) {
				return false
			}
		}
		return true
	})
}

func (f SpecFilter) matches(value interface{}) bool {
	switch f.Kind {
	case SpecRange:
		number, ok := toFloat(value)
		if !ok {
			return false
		}
		return number >= f.Min && number <= f.Max
	case SpecOneOf:
		for _, candidate := range f.Values {
			if looseEqual(candidate, value) {
				return true
			}
		}
		return false
	default:
		return looseEqual(f.Value, value)
	}
}

// SortListings orders the result set in place. Default order is newest
// first by effective posting time.
func SortListings(listings []models.Listing, order string) {
	switch order {
	case SortPriceAsc:
		sort.SliceStable(listings, func(i, j int) bool { return listings[i].Price < listings[j].Price })
	case SortPriceDesc:
		sort.SliceStable(listings, func(i, j int) bool { return listings[i].Price > listings[j].Price })
	case SortOldest:
		sort.SliceStable(listings, func(i, j int) bool {
			return listings[i].EffectivePostedAt().Before(listings[j].EffectivePostedAt())
		})
	default:
		sort.SliceStable(listings, func(i, j int) bool {
			return listings[i].EffectivePostedAt().After(listings[j].EffectivePostedAt())
		})
	}
}

func keep(listings []models.Listing, predicate func(models.Listing) bool) []models.Listing {
	filtered := listings[:0:0]
	for _, listing := range listings {
		if predicate(listing) {
			filtered = append(filtered, listing)
		}
	}
	return filtered
}

func containsFold(haystack []string, needle string) bool {
	for _, candidate := range haystack {
		if strings.EqualFold(strings.TrimSpace(candidate), needle) {
			return true
		}
	}
	return false
}

// looseEqual compares two scalars with numeric coercion so "5" matches 5.
// Non-numeric values compare as exact strings; booleans compare as
// "true"/"false".
func looseEqual(a, b interface{}) bool {
	aNum, aOK := toFloat(a)
	bNum, bOK := toFloat(b)
	if aOK && bOK {
		return aNum == bNum
	}
	return scalarString(a) == scalarString(b)
}

func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case json.Number:
		parsed, err := v.Float64()
		return parsed, err == nil
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return parsed, err == nil
	default:
		return 0, false
	}
}

func scalarString(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}
