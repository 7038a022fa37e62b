// Package debt implements the three repayment strategies spec.md §4.4
// describes, their per-month payment arithmetic, past-start catch-up, and
// construction-time validation warnings. Debt here holds already-resolved
// Month boundaries — resolving a Debt's DateSpec fields to concrete months
// is internal/dateresolve's job, done once by the engine before the monthly
// loop starts.
package debt

import (
	"fmt"
	"math"

	"github.com/guido4f/finhorizon/internal/month"
)

// StrategyKind selects which repayment variant a Strategy carries.
type StrategyKind int

const (
	Linear StrategyKind = iota
	Annuity
	InterestOnly
)

// Strategy is a tagged variant: exactly one field besides Kind is
// meaningful, mirroring spec.md's "strategy is one of exactly one set."
type Strategy struct {
	Kind StrategyKind

	// MonthlyPrincipalPayment is meaningful when Kind == Linear.
	MonthlyPrincipalPayment float64
	// MonthlyPayment is meaningful when Kind == Annuity.
	MonthlyPayment float64
	// FinalBalance is meaningful when Kind == InterestOnly.
	FinalBalance float64
}

// Debt is the immutable specification of one debt, with its DateSpec fields
// already resolved to concrete months (nil when unresolved or absent).
type Debt struct {
	ID              string
	Name            string
	Amount          float64
	AnnualRatePct   float64
	Strategy        Strategy
	Start           *month.Month
	RepaymentStart  *month.Month
	End             *month.Month
}

// EffectiveRepaymentStart returns RepaymentStart if set, else Start.
func (d Debt) EffectiveRepaymentStart() *month.Month {
	if d.RepaymentStart != nil {
		return d.RepaymentStart
	}
	return d.Start
}

// Exists reports whether the debt is active at month m: start <= m <= end,
// open-ended on either side when the bound is absent.
func (d Debt) Exists(m month.Month) bool {
	if d.Start != nil && m.Before(*d.Start) {
		return false
	}
	if d.End != nil && m.After(*d.End) {
		return false
	}
	return true
}

// InRepayment reports whether the debt exists at m and m is on or after its
// effective repayment start.
func (d Debt) InRepayment(m month.Month) bool {
	if !d.Exists(m) {
		return false
	}
	start := d.EffectiveRepaymentStart()
	if start == nil {
		return true
	}
	return !m.Before(*start)
}

// Payment is the result of one month's debt service, with Principal/Interest
// broken out for reporting. Total = Principal + Interest, except for an
// Annuity outside its final month, whose Total is always MonthlyPayment.
type Payment struct {
	Interest  float64
	Principal float64
	Total     float64
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// MonthlyInterest computes one month's interest on balance, never negative
// and never compounded within the month: balance * rate/100/12.
func (s Strategy) monthlyInterest(balance, annualRatePct float64) float64 {
	interest := balance * annualRatePct / 100 / 12
	if interest < 0 {
		return 0
	}
	return interest
}

// MonthlyInterest is the exported form of the same computation, used
// directly by callers that only need the interest component (e.g. the
// monthly-interest invariant in spec.md §8).
func MonthlyInterest(balance, annualRatePct float64) float64 {
	if balance <= 0 {
		return 0
	}
	return Strategy{}.monthlyInterest(balance, annualRatePct)
}

// Payment computes the strategy's payment for one month against the given
// balance, at the given annual rate, given the number of months remaining
// until the debt's resolved end month (nil when the debt has no end, or is
// not yet in its final month). monthsRemaining <= 1 triggers the
// end-of-term/balloon behavior described in spec.md §4.4-4.5: the payment
// pays down to either FinalBalance (InterestOnly) or the natural residual
// (Linear/Annuity).
func (s Strategy) Payment(balance, annualRatePct float64, monthsRemaining *int) Payment {
	interest := s.monthlyInterest(balance, annualRatePct)
	final := monthsRemaining != nil && *monthsRemaining <= 1

	switch s.Kind {
	case Linear:
		if final {
			principal := balance
			return Payment{Interest: interest, Principal: principal, Total: principal + interest}
		}
		principal := math.Min(s.MonthlyPrincipalPayment, balance)
		return Payment{Interest: interest, Principal: principal, Total: principal + interest}

	case Annuity:
		if final {
			principal := balance
			return Payment{Interest: interest, Principal: principal, Total: principal + interest}
		}
		principal := clamp(s.MonthlyPayment-interest, 0, balance)
		return Payment{Interest: interest, Principal: principal, Total: s.MonthlyPayment}

	case InterestOnly:
		if final {
			principal := math.Max(0, balance-s.FinalBalance)
			return Payment{Interest: interest, Principal: principal, Total: principal + interest}
		}
		return Payment{Interest: interest, Principal: 0, Total: interest}

	default:
		return Payment{}
	}
}

// CatchUp advances a debt's balance by monthsPassed calls to Payment, used
// when a debt's effective repayment start resolves to a month before the
// projection's first month (spec.md §4.4). InterestOnly debts leave the
// balance unchanged during catch-up — there is nothing to amortize until
// the balloon.
func CatchUp(initialBalance, annualRatePct float64, strategy Strategy, monthsPassed int) float64 {
	if strategy.Kind == InterestOnly {
		return initialBalance
	}
	balance := initialBalance
	for i := 0; i < monthsPassed && balance > 0; i++ {
		p := strategy.Payment(balance, annualRatePct, nil)
		balance -= p.Principal
		if balance < 0 {
			balance = 0
		}
	}
	return balance
}

// Warning is a non-fatal, advisory validation finding (spec.md §4.4, §7.2).
type Warning struct {
	DebtID  string
	Message string
}

// Validate returns the non-fatal warnings applicable to d: negative rates,
// zero-or-negative payments, an Annuity payment that can never amortize, an
// unbounded InterestOnly debt that never pays off, and a FinalBalance
// outside [0, Amount].
func Validate(d Debt) []Warning {
	var warnings []Warning
	add := func(format string, args ...any) {
		warnings = append(warnings, Warning{DebtID: d.ID, Message: fmt.Sprintf(format, args...)})
	}

	if d.AnnualRatePct < 0 {
		add("negative annual rate %.4f%%", d.AnnualRatePct)
	}

	switch d.Strategy.Kind {
	case Linear:
		if d.Strategy.MonthlyPrincipalPayment <= 0 {
			add("linear monthly principal payment must be positive, got %.2f", d.Strategy.MonthlyPrincipalPayment)
		}
	case Annuity:
		if d.Strategy.MonthlyPayment <= 0 {
			add("annuity monthly payment must be positive, got %.2f", d.Strategy.MonthlyPayment)
		} else {
			initialInterest := d.Strategy.monthlyInterest(d.Amount, d.AnnualRatePct)
			if d.Strategy.MonthlyPayment <= initialInterest {
				add("annuity payment %.2f does not exceed initial monthly interest %.2f, will never amortize", d.Strategy.MonthlyPayment, initialInterest)
			}
		}
	case InterestOnly:
		if d.Strategy.FinalBalance < 0 || d.Strategy.FinalBalance > d.Amount {
			add("final balance %.2f outside [0, %.2f]", d.Strategy.FinalBalance, d.Amount)
		}
		if d.End == nil && d.Strategy.FinalBalance < d.Amount {
			add("interest-only debt has no end date and will never be paid off")
		}
	}

	return warnings
}
