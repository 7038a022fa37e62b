// Package taxcalc computes tax owed on an amount under either a flat rate or
// a sequence of marginal brackets, with an optional inflation-indexed
// exemption threshold. It knows nothing about which tax option applies to
// which cash flow or account — that resolution policy lives in
// internal/profile; taxcalc only ever sees a concrete *Option or nil.
package taxcalc

import (
	"math"
	"sort"
)

// Kind distinguishes what the option taxes, mirroring spec.md's TaxOption.kind.
type Kind int

const (
	Income Kind = iota
	Wealth
	CapitalGains
)

// Bracket is one marginal tax band. Threshold is a lower bound: the bracket
// applies to the portion of taxable income in [Threshold, nextThreshold),
// with the highest bracket running to infinity.
type Bracket struct {
	Threshold float64
	RatePct   float64
}

// Option is a named rule mapping a gross amount to a tax amount. Exactly one
// of FlatRatePct/Brackets is meaningful, selected by IsFlat.
type Option struct {
	ID                 string
	Name               string
	Kind               Kind
	IsDefault          bool
	ExemptionThreshold *float64

	IsFlat      bool
	FlatRatePct float64
	Brackets    []Bracket
}

// InflationAdjustment describes how far a threshold should be inflated:
// months_since_ref / 12 years at rate RatePct (percent units), applied as
// (1 + RatePct/100)^years. A nil adjustment leaves thresholds unchanged.
type InflationAdjustment struct {
	RatePct        float64
	MonthsSinceRef int
}

func (a *InflationAdjustment) multiplier() float64 {
	if a == nil || a.RatePct == 0 {
		return 1
	}
	years := float64(a.MonthsSinceRef) / 12
	return math.Pow(1+a.RatePct/100, years)
}

// TaxOn computes the tax owed on amount under option, per spec.md §4.3:
//
//  1. amount <= 0 => 0.
//  2. an exemption threshold is inflated (when adj is non-nil) and
//     subtracted from amount, clipped at zero.
//  3. a flat option taxes the (post-exemption) taxable amount at FlatRatePct.
//  4. a bracketed option inflates every threshold identically, sorts
//     ascending, and sums the marginal tax across bands.
//
// A nil option means "no tax configured" and always returns 0.
func TaxOn(amount float64, option *Option, adj *InflationAdjustment) float64 {
	if option == nil || amount <= 0 {
		return 0
	}

	taxable := amount
	if option.ExemptionThreshold != nil {
		threshold := *option.ExemptionThreshold * adj.multiplier()
		taxable -= threshold
		if taxable < 0 {
			taxable = 0
		}
	}
	if taxable <= 0 {
		return 0
	}

	if option.IsFlat {
		return taxable * option.FlatRatePct / 100
	}
	return taxOnBrackets(taxable, option.Brackets, adj)
}

// MonthlyIncomeTax annualizes a monthly amount before applying progressive
// brackets, then divides the resulting annual tax by 12, so progression sees
// the correct annual base instead of under-taxing a monthly slice.
func MonthlyIncomeTax(monthlyAmount float64, option *Option, adj *InflationAdjustment) float64 {
	if option == nil || monthlyAmount <= 0 {
		return 0
	}
	annual := TaxOn(monthlyAmount*12, option, adj)
	return annual / 12
}

func taxOnBrackets(taxable float64, brackets []Bracket, adj *InflationAdjustment) float64 {
	if len(brackets) == 0 {
		return 0
	}

	mult := adj.multiplier()
	inflated := make([]Bracket, len(brackets))
	for i, b := range brackets {
		inflated[i] = Bracket{Threshold: b.Threshold * mult, RatePct: b.RatePct}
	}
	sort.Slice(inflated, func(i, j int) bool {
		return inflated[i].Threshold < inflated[j].Threshold
	})

	var total float64
	for i, b := range inflated {
		if taxable <= b.Threshold {
			continue
		}
		upper := math.Inf(1)
		if i+1 < len(inflated) {
			upper = inflated[i+1].Threshold
		}
		span := math.Min(taxable, upper) - b.Threshold
		if span > 0 {
			total += span * b.RatePct / 100
		}
	}
	return total
}
