// Package engine implements the monthly projection loop (spec.md §4.5):
// it pre-resolves every DateSpec in a profile, pools liquid assets, tracks
// fixed assets and debts individually, steps forward one month at a time
// in the fixed order liquid growth -> fixed growth/liquidation -> debt
// service -> cash flows, and aggregates the resulting monthly snapshots
// into annual summaries.
package engine

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/guido4f/finhorizon/internal/dateresolve"
	"github.com/guido4f/finhorizon/internal/debt"
	"github.com/guido4f/finhorizon/internal/month"
	"github.com/guido4f/finhorizon/internal/profile"
	"github.com/guido4f/finhorizon/internal/taxcalc"
)

// MonthlyProjection is one month's balance-sheet and cash-statement
// snapshot (spec.md §3).
type MonthlyProjection struct {
	Month             month.Month
	AgeYears          int
	Liquid            float64
	FixedTotal        float64
	TotalDebt         float64
	NetWorth          float64
	Income            float64
	Expenses          float64
	DebtInterestPaid  float64
	DebtPrincipalPaid float64
}

// AnnualSummary aggregates one calendar year's monthly snapshots.
type AnnualSummary struct {
	Year     int
	AgeYears int

	StartLiquid     float64
	StartFixedTotal float64
	StartTotalDebt  float64
	StartNetWorth   float64

	EndLiquid     float64
	EndFixedTotal float64
	EndTotalDebt  float64
	EndNetWorth   float64

	TotalIncome            float64
	TotalExpenses          float64
	TotalDebtInterestPaid  float64
	TotalDebtPrincipalPaid float64
}

// ProjectionResult is the full output of one calculate_projections call.
type ProjectionResult struct {
	Monthly           []MonthlyProjection
	Annual            []AnnualSummary
	CalculationTimeMs float64
}

// CalculateProjections runs the simulation from the wall-clock current
// month to the month the profile's owner turns 100.
func CalculateProjections(p profile.Profile, jurisdiction *profile.TaxJurisdiction, logger *zap.Logger) (ProjectionResult, []debt.Warning) {
	return CalculateProjectionsAt(p, jurisdiction, logger, month.Clock{}.Current())
}

// CalculateProjectionsAt runs the simulation with an explicitly supplied
// "current month" reference, letting callers (principally tests) pin time
// deterministically instead of depending on the wall clock.
func CalculateProjectionsAt(p profile.Profile, jurisdiction *profile.TaxJurisdiction, logger *zap.Logger, projectionStart month.Month) (ProjectionResult, []debt.Warning) {
	if logger == nil {
		logger = zap.NewNop()
	}
	started := time.Now()

	events := make([]dateresolve.Event, len(p.LifeEvents))
	for i, e := range p.LifeEvents {
		events[i] = dateresolve.Event{ID: e.ID, Name: e.Name, Date: e.Date}
	}
	birth := p.BirthMonth

	resolve := func(spec *dateresolve.Spec) *month.Month {
		if spec == nil {
			return nil
		}
		m, ok := dateresolve.Resolve(spec, birth, events)
		if !ok {
			return nil
		}
		return &m
	}

	logDiagnostic := func(field string, diag *profile.Diagnostic) {
		if diag == nil {
			return
		}
		logger.Warn("tax id resolution degraded to no tax",
			zap.String("field", field),
			zap.String("tax_id", diag.TaxID),
			zap.String("reason", diag.Message),
		)
	}

	var liquid float64
	fixedStates := make([]*fixedState, 0, len(p.Accounts))
	for _, a := range p.Accounts {
		switch a.Kind {
		case profile.LiquidAsset:
			liquid += a.Amount
			_, wealthDiag := profile.ResolveTaxID(a.WealthTaxID, taxcalc.Wealth, jurisdiction)
			_, gainsDiag := profile.ResolveTaxID(a.CapitalGainsTaxID, taxcalc.CapitalGains, jurisdiction)
			logDiagnostic("account."+a.ID+".wealth_tax_id", wealthDiag)
			logDiagnostic("account."+a.ID+".capital_gains_tax_id", gainsDiag)
		case profile.FixedAsset:
			wealthOpt, wealthDiag := profile.ResolveTaxID(a.WealthTaxID, taxcalc.Wealth, jurisdiction)
			gainsOpt, gainsDiag := profile.ResolveTaxID(a.CapitalGainsTaxID, taxcalc.CapitalGains, jurisdiction)
			logDiagnostic("account."+a.ID+".wealth_tax_id", wealthDiag)
			logDiagnostic("account."+a.ID+".capital_gains_tax_id", gainsDiag)
			fixedStates = append(fixedStates, &fixedState{
				id:               a.ID,
				balance:          a.Amount,
				annualRatePct:    a.AnnualRatePct,
				liquidationMonth: resolve(a.LiquidationDate),
				wealthTaxOption:  wealthOpt,
				gainsTaxOption:   gainsOpt,
			})
		}
	}

	debtStates := make([]*debtState, 0, len(p.Debts))
	var warnings []debt.Warning
	for _, d := range p.Debts {
		resolved := debt.Debt{
			ID:             d.ID,
			Name:           d.Name,
			Amount:         d.Amount,
			AnnualRatePct:  d.AnnualRatePct,
			Strategy:       d.Strategy,
			Start:          resolve(d.StartDate),
			RepaymentStart: resolve(d.RepaymentStartDate),
			End:            resolve(d.EndDate),
		}
		warnings = append(warnings, debt.Validate(resolved)...)

		effectiveRepayment := resolved.EffectiveRepaymentStart()
		monthsPassed := 0
		if effectiveRepayment != nil {
			if passed := projectionStart.Diff(*effectiveRepayment); passed > 0 {
				monthsPassed = passed
			}
		}
		balance := debt.CatchUp(d.Amount, d.AnnualRatePct, d.Strategy, monthsPassed)

		debtStates = append(debtStates, &debtState{
			debt:    resolved,
			balance: balance,
		})
	}

	cashFlowStates := make([]*cashFlowState, 0, len(p.CashFlows))
	for _, cf := range p.CashFlows {
		_, diag := profile.ResolveTaxID(cf.IncomeTaxID, taxcalc.Income, jurisdiction)
		logDiagnostic("cash_flow."+cf.ID+".income_tax_id", diag)

		start := resolve(cf.StartDate)
		// A start_date that was specified but failed to resolve (e.g. a
		// life-event cycle) leaves the flow permanently inactive for
		// recurring flows, per spec.md §7 — distinct from no start_date
		// at all, which is an open lower bound (resolved_start_or_-inf).
		startUnresolvable := cf.StartDate != nil && start == nil

		cashFlowStates = append(cashFlowStates, &cashFlowState{
			cf:                cf,
			start:             start,
			end:               resolve(cf.EndDate),
			startUnresolvable: startUnresolvable,
		})
	}

	initialFixedTotal := sumFixed(fixedStates)
	initialTotalDebt := sumDebt(debtStates)
	initialLiquid := liquid
	initialNetWorth := initialLiquid + initialFixedTotal - initialTotalDebt

	endExclusive := birth.Add(1200)
	n := endExclusive.Diff(projectionStart)
	if n < 0 {
		n = 0
	}

	monthly := make([]MonthlyProjection, 0, n)

	for i := 0; i < n; i++ {
		m := projectionStart.Add(i)
		yearsElapsed := i / 12

		// 1. Liquid growth. Applies even to a negative balance, per
		// spec.md §9: a negative pool accrues more debt at the liquid
		// rate rather than being floored at zero.
		liquid *= 1 + p.LiquidRatePct/1200

		// 2. Fixed growth and liquidation.
		for _, fs := range fixedStates {
			if fs.balance != 0 {
				fs.balance *= 1 + fs.annualRatePct/1200
			}
			if fs.liquidationMonth != nil && !m.Before(*fs.liquidationMonth) && fs.balance > 0 {
				liquid += fs.balance
				fs.balance = 0
			}
		}

		// 3. Debt service, in input order.
		var monthInterest, monthPrincipal float64
		for _, ds := range debtStates {
			if ds.paid || ds.balance <= 0 {
				continue
			}

			var monthsRemaining *int
			active := false

			if ds.debt.End != nil && !m.Before(*ds.debt.End) {
				one := 1
				monthsRemaining = &one
				active = true
			} else if ds.debt.InRepayment(m) {
				active = true
			}
			if !active {
				continue
			}

			payment := ds.debt.Strategy.Payment(ds.balance, ds.debt.AnnualRatePct, monthsRemaining)
			if liquid >= payment.Total {
				liquid -= payment.Total
				ds.balance -= payment.Principal
				floor := 0.0
				if ds.debt.Strategy.Kind == debt.InterestOnly {
					floor = ds.debt.Strategy.FinalBalance
				}
				if ds.balance < floor {
					ds.balance = floor
				}
				monthInterest += payment.Interest
				monthPrincipal += payment.Principal
			}
			if monthsRemaining != nil {
				ds.paid = true
			}
		}

		// 4. Cash flows.
		var monthIncome, monthExpenses float64
		for _, cfs := range cashFlowStates {
			amount, applies := cfs.monthlyAmount(m)
			if !applies {
				continue
			}
			if cfs.cf.FollowsInflation && p.InflationRatePct != 0 {
				amount *= math.Pow(1+p.InflationRatePct/100, float64(yearsElapsed))
			}
			if cfs.cf.Type == profile.Income {
				monthIncome += amount
			} else {
				monthExpenses += amount
			}
		}

		// 5. Net flow.
		liquid += monthIncome - monthExpenses

		// 6. Snapshot.
		fixedTotal := sumFixed(fixedStates)
		totalDebt := sumDebt(debtStates)
		monthly = append(monthly, MonthlyProjection{
			Month:             m,
			AgeYears:          m.Diff(birth) / 12,
			Liquid:            liquid,
			FixedTotal:        fixedTotal,
			TotalDebt:         totalDebt,
			NetWorth:          liquid + fixedTotal - totalDebt,
			Income:            monthIncome,
			Expenses:          monthExpenses,
			DebtInterestPaid:  monthInterest,
			DebtPrincipalPaid: monthPrincipal,
		})
	}

	annual := aggregateAnnual(monthly, initialLiquid, initialFixedTotal, initialTotalDebt, initialNetWorth)

	return ProjectionResult{
		Monthly:           monthly,
		Annual:            annual,
		CalculationTimeMs: float64(time.Since(started)) / float64(time.Millisecond),
	}, warnings
}

type fixedState struct {
	id               string
	balance          float64
	annualRatePct    float64
	liquidationMonth *month.Month
	wealthTaxOption  *taxcalc.Option
	gainsTaxOption   *taxcalc.Option
}

type debtState struct {
	debt    debt.Debt
	balance float64
	paid    bool
}

type cashFlowState struct {
	cf                profile.CashFlow
	start             *month.Month
	end               *month.Month
	startUnresolvable bool
}

// monthlyAmount reports the amount this cash flow contributes at m, and
// whether it applies at all (spec.md §4.5 step 4).
func (c *cashFlowState) monthlyAmount(m month.Month) (float64, bool) {
	if c.cf.IsOneTime {
		if c.start != nil && m == *c.start {
			return c.cf.Amount, true
		}
		return 0, false
	}
	if c.startUnresolvable {
		return 0, false
	}
	if c.start != nil && m.Before(*c.start) {
		return 0, false
	}
	if c.end != nil && !m.Before(*c.end) {
		return 0, false
	}
	return c.cf.MonthlyAmount(), true
}

func sumFixed(states []*fixedState) float64 {
	var total float64
	for _, fs := range states {
		total += fs.balance
	}
	return total
}

func sumDebt(states []*debtState) float64 {
	var total float64
	for _, ds := range states {
		total += ds.balance
	}
	return total
}

func aggregateAnnual(monthly []MonthlyProjection, initialLiquid, initialFixedTotal, initialTotalDebt, initialNetWorth float64) []AnnualSummary {
	var annual []AnnualSummary
	var cur *AnnualSummary
	curYear := 0

	for idx, mp := range monthly {
		year := mp.Month.Year()
		if cur == nil || year != curYear {
			if cur != nil {
				annual = append(annual, *cur)
			}
			curYear = year

			var startLiquid, startFixed, startDebt, startNetWorth float64
			if idx == 0 {
				startLiquid, startFixed, startDebt, startNetWorth = initialLiquid, initialFixedTotal, initialTotalDebt, initialNetWorth
			} else {
				prev := monthly[idx-1]
				startLiquid, startFixed, startDebt, startNetWorth = prev.Liquid, prev.FixedTotal, prev.TotalDebt, prev.NetWorth
			}
			cur = &AnnualSummary{
				Year:            year,
				AgeYears:        mp.AgeYears,
				StartLiquid:     startLiquid,
				StartFixedTotal: startFixed,
				StartTotalDebt:  startDebt,
				StartNetWorth:   startNetWorth,
			}
		}

		cur.EndLiquid = mp.Liquid
		cur.EndFixedTotal = mp.FixedTotal
		cur.EndTotalDebt = mp.TotalDebt
		cur.EndNetWorth = mp.NetWorth
		cur.TotalIncome += mp.Income
		cur.TotalExpenses += mp.Expenses
		cur.TotalDebtInterestPaid += mp.DebtInterestPaid
		cur.TotalDebtPrincipalPaid += mp.DebtPrincipalPaid
	}
	if cur != nil {
		annual = append(annual, *cur)
	}
	return annual
}
