// Package quota holds the pure gate decisions for listing creation and
// renewal throttling. Persistence of the counters stays in the repository
// layer; everything here is a function of the user row and the clock.
package quota

import (
	"errors"
	"time"

	"github.com/noah-isme/pazar-go-api/internal/models"
)

// Defaults applied when the configuration leaves a limit unset.
const (
	DefaultListingLimit = 50
	DefaultMonthlyLimit = 15
)

var (
	// ErrListingLimitReached signals the lifetime posting cap was hit.
	ErrListingLimitReached = errors.New("listing limit reached")
	// ErrMonthlyRenewalLimit signals the per-month renewal cap was hit.
	ErrMonthlyRenewalLimit = errors.New("monthly renewal limit reached")
	// ErrDailyRenewalLimit signals a second renewal on the same calendar day.
	ErrDailyRenewalLimit = errors.New("daily renewal limit reached")
)

// MonthKey collapses a timestamp to a year-spanning month index so the
// monthly reset check survives year boundaries.
func MonthKey(t time.Time) int {
	return t.Year()*12 + int(t.Month()) - 1
}

// SameCalendarDay compares two timestamps by calendar date in the given
// location, not as a rolling 24h window.
func SameCalendarDay(a, b time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.UTC
	}
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

func bypassesLimits(role string) bool {
	return role == models.RoleAdmin
}

// CheckCreation gates a listing insert against the user's posting cap.
// Admins bypass the cap. A zero ListingLimit on the user means the
// configured default applies.
func CheckCreation(user models.User, defaultLimit int) error {
	if bypassesLimits(user.Role) {
		return nil
	}

	limit := user.ListingLimit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit <= 0 {
		limit = DefaultListingLimit
	}

	if user.ListingsPostedCount >= limit {
		return ErrListingLimitReached
	}
	return nil
}

// RenewalDecision carries the state a successful renewal must persist. The
// month rollover is applied to MonthlyUsed but only written back once the
// renewal itself succeeds.
type RenewalDecision struct {
	MonthlyUsed int
	MonthKey    int
	Remaining   int
}

// CheckRenewal evaluates the monthly cap and then the calendar-day rule.
// Admins bypass both; the returned decision still reflects the rolled-over
// counter so stats stay accurate.
func CheckRenewal(user models.User, now time.Time, loc *time.Location, monthlyLimit int) (RenewalDecision, error) {
	if loc == nil {
		loc = time.UTC
	}
	if monthlyLimit <= 0 {
		monthlyLimit = DefaultMonthlyLimit
	}

	key := MonthKey(now.In(loc))
	used := user.MonthlyRenewalsUsed
	if user.LastRenewalMonth != key {
		used = 0
	}

	decision := RenewalDecision{
		MonthlyUsed: used,
		MonthKey:    key,
		Remaining:   monthlyLimit - used - 1,
	}
	if decision.Remaining < 0 {
		decision.Remaining = 0
	}

	if bypassesLimits(user.Role) {
		return decision, nil
	}

	if used >= monthlyLimit {
		return RenewalDecision{}, ErrMonthlyRenewalLimit
	}

	if user.LastRenewalAt != nil && SameCalendarDay(*user.LastRenewalAt, now, loc) {
		return RenewalDecision{}, ErrDailyRenewalLimit
	}

	return decision, nil
}
