// Package finhorizon is a long-horizon personal-finance projection engine:
// given a user profile it produces a deterministic month-by-month
// simulation of the user's balance sheet and cash statement from the
// current month until the month the user turns 100, plus annual summaries.
//
// This file is the module's only public surface; everything else lives
// under internal/ and is implementation detail. The engine is pure: the
// same profile always produces the same result, with no I/O, no global
// state, and no network access.
package finhorizon

import (
	"go.uber.org/zap"

	"github.com/guido4f/finhorizon/internal/dateresolve"
	"github.com/guido4f/finhorizon/internal/debt"
	"github.com/guido4f/finhorizon/internal/engine"
	"github.com/guido4f/finhorizon/internal/month"
	"github.com/guido4f/finhorizon/internal/profile"
	"github.com/guido4f/finhorizon/internal/taxcalc"
)

// Re-exported types so callers never need to import internal/ packages
// directly.
type (
	Profile             = profile.Profile
	Account             = profile.Account
	CashFlow            = profile.CashFlow
	Debt                = profile.Debt
	LifeEvent           = profile.LifeEvent
	TaxJurisdiction     = profile.TaxJurisdiction
	TaxOption           = taxcalc.Option
	TaxBracket          = taxcalc.Bracket
	InflationAdjustment = taxcalc.InflationAdjustment
	DateSpec            = dateresolve.Spec
	Event               = dateresolve.Event
	Month               = month.Month
	Warning             = debt.Warning

	MonthlyProjection = engine.MonthlyProjection
	AnnualSummary     = engine.AnnualSummary
	ProjectionResult  = engine.ProjectionResult
)

// CalculateProjections runs the simulation for p against the wall-clock
// current month, up to the month p's owner turns 100. jurisdiction may be
// nil when the profile references no tax ids. logger may be nil; when
// non-nil it receives a diagnostic trail for degraded tax-id resolutions,
// mirroring the nil-safe *zap.Logger pattern used throughout this module.
//
// It returns the full ProjectionResult together with any non-fatal
// construction/validation warnings collected from the profile's debts. It
// never returns an error and always produces a complete N-month result —
// unresolvable dates and unaffordable debt payments degrade silently per
// this package's documented rules, not as failures.
func CalculateProjections(p Profile, jurisdiction *TaxJurisdiction, logger *zap.Logger) (ProjectionResult, []Warning) {
	return engine.CalculateProjections(p, jurisdiction, logger)
}

// CalculateProjectionsAt is CalculateProjections with an explicitly supplied
// "current month" reference instead of the wall clock, letting callers pin
// time deterministically (as this module's own test suite does, to
// January 2025).
func CalculateProjectionsAt(p Profile, jurisdiction *TaxJurisdiction, logger *zap.Logger, currentMonth Month) (ProjectionResult, []Warning) {
	return engine.CalculateProjectionsAt(p, jurisdiction, logger, currentMonth)
}

// ResolveDate resolves spec to a concrete Month given the profile owner's
// birth month and the set of life events it may reference. It returns
// (_, false) for an absent spec, an out-of-range age, a reference to a
// missing or dateless life event, or a cyclic life-event reference chain.
func ResolveDate(spec *DateSpec, birthMonth Month, events []Event) (Month, bool) {
	return dateresolve.Resolve(spec, birthMonth, events)
}

// TaxOn computes the tax owed on amount under option (flat or progressive
// brackets), optionally inflating the option's exemption threshold and
// bracket thresholds by adj. A nil option always returns 0.
func TaxOn(amount float64, option *TaxOption, adj *InflationAdjustment) float64 {
	return taxcalc.TaxOn(amount, option, adj)
}

// MonthlyIncomeTax annualizes a monthly amount before applying progressive
// brackets, then divides the resulting annual tax by 12, so progression
// sees the correct annual base.
func MonthlyIncomeTax(monthlyAmount float64, option *TaxOption, adj *InflationAdjustment) float64 {
	return taxcalc.MonthlyIncomeTax(monthlyAmount, option, adj)
}
