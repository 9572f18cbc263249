// Package query implements the in-memory listing filter pipeline. The
// candidate set is read by status from storage; every later stage is a pure
// predicate over that set, applied in a fixed order.
package query

import (
	"encoding/json"
	"strings"
)

// Sort orders accepted by the pipeline.
const (
	SortNewest    = "newest"
	SortOldest    = "oldest"
	SortPriceAsc  = "price-asc"
	SortPriceDesc = "price-desc"
)

// Date windows accepted by the pipeline, relative to query time.
const (
	DateRangeToday = "today"
	DateRange3Days = "3days"
	DateRange7Days = "7days"
)

// SpecFilterKind discriminates the typed dynamic-specification filter.
type SpecFilterKind int

const (
	// SpecEquals matches with type-tolerant equality (numeric "5" == 5).
	SpecEquals SpecFilterKind = iota
	// SpecRange matches numeric values within an inclusive [min,max].
	SpecRange
	// SpecOneOf matches when the value equals any listed alternative.
	SpecOneOf
)

// SpecFilter is the tagged union for one dynamic-specification criterion.
type SpecFilter struct {
	Kind   SpecFilterKind
	Value  interface{}
	Min    float64
	Max    float64
	Values []interface{}
}

// Equals builds an equality spec filter.
func Equals(value interface{}) SpecFilter {
	return SpecFilter{Kind: SpecEquals, Value: value}
}

// Range builds an inclusive numeric range spec filter.
func Range(min, max float64) SpecFilter {
	return SpecFilter{Kind: SpecRange, Min: min, Max: max}
}

// OneOf builds an allow-list spec filter with OR semantics.
func OneOf(values ...interface{}) SpecFilter {
	return SpecFilter{Kind: SpecOneOf, Values: values}
}

// Filters is the typed filter set for a listing query. Zero values and nil
// pointers mean "no filter"; no string value is reserved as a sentinel.
type Filters struct {
	Status      string   `json:"status" validate:"omitempty,oneof=ALL ACTIVE PENDING_APPROVAL REJECTED SOLD EXPIRED"`
	Category    string   `json:"category"`
	SubCategory string   `json:"sub_category"`
	City        string   `json:"city"`
	MinPrice    *float64 `json:"min_price" validate:"omitempty,gte=0"`
	MaxPrice    *float64 `json:"max_price" validate:"omitempty,gte=0"`

	UserType  string   `json:"user_type"`
	AdType    []string `json:"ad_type"`
	Condition []string `json:"condition"`

	IsTradePossible *bool `json:"is_trade_possible"`
	HasShipping     *bool `json:"has_shipping"`
	IsVatIncluded   *bool `json:"is_vat_included"`
	IsAffordable    *bool `json:"is_affordable"`

	DateRange string `json:"date_range" validate:"omitempty,oneof=all today 3days 7days"`

	Specs map[string]SpecFilter `json:"-"`

	Sort string `json:"sort" validate:"omitempty,oneof=newest oldest price-asc price-desc"`
}

// ParseSpecFilters decodes the legacy JSON filter blob into typed spec
// filters. A two-element all-numeric array becomes a Range, any other array
// becomes a OneOf allow-list, and scalars become Equals. The ok result is
// false for unparseable input; callers skip the stage rather than fail the
// query.
func ParseSpecFilters(raw string) (map[string]SpecFilter, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}

	decoder := json.NewDecoder(strings.NewReader(raw))
	decoder.UseNumber()

	var decoded map[string]interface{}
	if err := decoder.Decode(&decoded); err != nil {
		return nil, false
	}

	filters := make(map[string]SpecFilter, len(decoded))
	for key, value := range decoded {
		filters[key] = specFilterFromJSON(value)
	}
	return filters, true
}

func specFilterFromJSON(value interface{}) SpecFilter {
	if list, ok := value.([]interface{}); ok {
		if len(list) == 2 {
			min, okMin := toFloat(list[0])
			max, okMax := toFloat(list[1])
			if okMin && okMax {
				return Range(min, max)
			}
		}
		return OneOf(list...)
	}
	return Equals(value)
}
