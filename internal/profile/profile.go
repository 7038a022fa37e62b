// Package profile defines the immutable input DTOs the engine consumes —
// accounts, cash flows, debts, life events, tax jurisdictions, and the
// Profile that bundles them — along with the construction-time validation
// spec.md §7 classifies as hard failures. Accounts and debts are tagged
// variants rather than inheritance chains, each with its own constructor.
// Each debt constructor takes exactly one strategy payload, so a Debt built
// through them never has more than one strategy field set; the structs are
// exported, and a literal built without a constructor is not checked for
// this at run time.
package profile

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/guido4f/finhorizon/internal/dateresolve"
	"github.com/guido4f/finhorizon/internal/debt"
	"github.com/guido4f/finhorizon/internal/month"
	"github.com/guido4f/finhorizon/internal/taxcalc"
)

// NewID mints a fresh, process-unique identifier for a profile entity.
// Callers are never required to use it — ids may also come from a stored
// profile — but it is the canonical way to assign one to a newly created
// account, cash flow, debt, or life event.
func NewID() string {
	return uuid.NewString()
}

// AccountKind tags which Account variant is populated.
type AccountKind int

const (
	LiquidAsset AccountKind = iota
	FixedAsset
)

// Account is a tagged variant over the two capital-holding kinds described
// in spec.md §3. AnnualRatePct and LiquidationDate are only meaningful when
// Kind == FixedAsset.
type Account struct {
	Kind              AccountKind
	ID                string
	Name              string
	Amount            float64
	WealthTaxID       *string
	CapitalGainsTaxID *string

	AnnualRatePct   float64
	LiquidationDate *dateresolve.Spec
}

func validateAccountBase(name string, amount float64) error {
	if name == "" {
		return errors.New("account name must not be empty")
	}
	if amount < 0 {
		return fmt.Errorf("account amount must be >= 0, got %.2f", amount)
	}
	return nil
}

// NewLiquidAsset constructs a pooled, interest-bearing liquid account.
func NewLiquidAsset(id, name string, amount float64, wealthTaxID, capitalGainsTaxID *string) (Account, error) {
	if err := validateAccountBase(name, amount); err != nil {
		return Account{}, err
	}
	return Account{
		Kind:              LiquidAsset,
		ID:                id,
		Name:              name,
		Amount:            amount,
		WealthTaxID:       wealthTaxID,
		CapitalGainsTaxID: capitalGainsTaxID,
	}, nil
}

// NewFixedAsset constructs an individually tracked, appreciating/depreciating
// account that converts to liquid at its (optional) liquidation date.
func NewFixedAsset(id, name string, amount, annualRatePct float64, liquidationDate *dateresolve.Spec, wealthTaxID, capitalGainsTaxID *string) (Account, error) {
	if err := validateAccountBase(name, amount); err != nil {
		return Account{}, err
	}
	return Account{
		Kind:              FixedAsset,
		ID:                id,
		Name:              name,
		Amount:            amount,
		AnnualRatePct:     annualRatePct,
		LiquidationDate:   liquidationDate,
		WealthTaxID:       wealthTaxID,
		CapitalGainsTaxID: capitalGainsTaxID,
	}, nil
}

// CashFlowType distinguishes money coming in from money going out.
type CashFlowType int

const (
	Income CashFlowType = iota
	Expense
)

// Frequency is the unit CashFlow.Amount is denominated in.
type Frequency int

const (
	Weekly Frequency = iota
	Monthly
	Annual
)

// CashFlow is a recurring or one-time income/expense, per spec.md §3.
type CashFlow struct {
	ID               string
	Name             string
	Amount           float64
	Type             CashFlowType
	Frequency        Frequency
	StartDate        *dateresolve.Spec
	EndDate          *dateresolve.Spec
	FollowsInflation bool
	IsOneTime        bool
	IncomeTaxID      *string
}

// NewCashFlow validates and constructs a CashFlow. A one-time flow without
// a start date is a construction error (spec.md §7): there would be no
// month at which it could ever fire.
func NewCashFlow(id, name string, amount float64, typ CashFlowType, freq Frequency, startDate, endDate *dateresolve.Spec, followsInflation, isOneTime bool, incomeTaxID *string) (CashFlow, error) {
	if name == "" {
		return CashFlow{}, errors.New("cash flow name must not be empty")
	}
	if amount < 0 {
		return CashFlow{}, fmt.Errorf("cash flow amount must be >= 0, got %.2f", amount)
	}
	if isOneTime && startDate == nil {
		return CashFlow{}, errors.New("one-time cash flow requires a start date")
	}
	return CashFlow{
		ID:               id,
		Name:             name,
		Amount:           amount,
		Type:             typ,
		Frequency:        freq,
		StartDate:        startDate,
		EndDate:          endDate,
		FollowsInflation: followsInflation,
		IsOneTime:        isOneTime,
		IncomeTaxID:      incomeTaxID,
	}, nil
}

// MonthlyAmount converts Amount to its monthly equivalent using the
// canonical frequency table from spec.md §3: monthly = weekly*52/12 =
// annual/12.
func (c CashFlow) MonthlyAmount() float64 {
	switch c.Frequency {
	case Weekly:
		return c.Amount * 52 / 12
	case Annual:
		return c.Amount / 12
	default:
		return c.Amount
	}
}

// Debt bundles a repayment strategy (internal/debt) with the DateSpecs that
// bound it, before they are resolved to concrete months.
type Debt struct {
	ID                 string
	Name               string
	Amount             float64
	AnnualRatePct      float64
	Strategy           debt.Strategy
	StartDate          *dateresolve.Spec
	RepaymentStartDate *dateresolve.Spec
	EndDate            *dateresolve.Spec
}

func validateDebtBase(name string, amount float64) error {
	if name == "" {
		return errors.New("debt name must not be empty")
	}
	if amount <= 0 {
		return fmt.Errorf("debt amount must be > 0, got %.2f", amount)
	}
	return nil
}

// NewLinearDebt constructs a Debt repaid with a fixed monthly principal.
func NewLinearDebt(id, name string, amount, annualRatePct, monthlyPrincipalPayment float64, startDate, repaymentStartDate, endDate *dateresolve.Spec) (Debt, error) {
	if err := validateDebtBase(name, amount); err != nil {
		return Debt{}, err
	}
	return Debt{
		ID: id, Name: name, Amount: amount, AnnualRatePct: annualRatePct,
		Strategy:           debt.Strategy{Kind: debt.Linear, MonthlyPrincipalPayment: monthlyPrincipalPayment},
		StartDate:          startDate,
		RepaymentStartDate: repaymentStartDate,
		EndDate:            endDate,
	}, nil
}

// NewAnnuityDebt constructs a Debt repaid with a fixed total monthly payment.
func NewAnnuityDebt(id, name string, amount, annualRatePct, monthlyPayment float64, startDate, repaymentStartDate, endDate *dateresolve.Spec) (Debt, error) {
	if err := validateDebtBase(name, amount); err != nil {
		return Debt{}, err
	}
	return Debt{
		ID: id, Name: name, Amount: amount, AnnualRatePct: annualRatePct,
		Strategy:           debt.Strategy{Kind: debt.Annuity, MonthlyPayment: monthlyPayment},
		StartDate:          startDate,
		RepaymentStartDate: repaymentStartDate,
		EndDate:            endDate,
	}, nil
}

// NewInterestOnlyDebt constructs a Debt that pays interest only until a
// balloon payment at its end date brings the balance to finalBalance.
func NewInterestOnlyDebt(id, name string, amount, annualRatePct, finalBalance float64, startDate, repaymentStartDate, endDate *dateresolve.Spec) (Debt, error) {
	if err := validateDebtBase(name, amount); err != nil {
		return Debt{}, err
	}
	return Debt{
		ID: id, Name: name, Amount: amount, AnnualRatePct: annualRatePct,
		Strategy:           debt.Strategy{Kind: debt.InterestOnly, FinalBalance: finalBalance},
		StartDate:          startDate,
		RepaymentStartDate: repaymentStartDate,
		EndDate:            endDate,
	}, nil
}

// LifeEvent is a named temporal anchor, per spec.md §3.
type LifeEvent struct {
	ID   string
	Name string
	Date *dateresolve.Spec
}

// TaxJurisdiction is one country's tax-jurisdiction file (spec.md §6):
// the three kind-segregated lists of options, plus their provenance.
type TaxJurisdiction struct {
	CountryCode       string
	CountryName       string
	IncomeTaxes       []taxcalc.Option
	WealthTaxes       []taxcalc.Option
	CapitalGainsTaxes []taxcalc.Option
	Sources           []string
}

func (j *TaxJurisdiction) listFor(kind taxcalc.Kind) []taxcalc.Option {
	if j == nil {
		return nil
	}
	switch kind {
	case taxcalc.Wealth:
		return j.WealthTaxes
	case taxcalc.CapitalGains:
		return j.CapitalGainsTaxes
	default:
		return j.IncomeTaxes
	}
}

// DefaultOption returns the option marked is_default for kind, or nil if
// the jurisdiction is absent or has none.
func (j *TaxJurisdiction) DefaultOption(kind taxcalc.Kind) *taxcalc.Option {
	list := j.listFor(kind)
	for i := range list {
		if list[i].IsDefault {
			return &list[i]
		}
	}
	return nil
}

// lookup finds an option by id across all three lists, reporting which
// kind it actually belongs to.
func (j *TaxJurisdiction) lookup(id string) (*taxcalc.Option, taxcalc.Kind, bool) {
	if j == nil {
		return nil, 0, false
	}
	for _, list := range [][]taxcalc.Option{j.IncomeTaxes, j.WealthTaxes, j.CapitalGainsTaxes} {
		for i := range list {
			if list[i].ID == id {
				return &list[i], list[i].Kind, true
			}
		}
	}
	return nil, 0, false
}

// Diagnostic is a non-fatal finding recorded while resolving a tax id,
// surfaced at the boundary per spec.md §4.3/§7 ("mismatches are not fatal
// ... a diagnostic is recorded").
type Diagnostic struct {
	TaxID   string
	Message string
}

// ResolveTaxID implements the tax-id resolution policy shared by cash
// flows and accounts (spec.md §4.3): "default" means the jurisdiction's
// default option of kind; "none" and "after-tax" both mean no tax; a nil
// id means no tax configured; anything else is looked up and rejected
// (degrading to no tax, with a Diagnostic) if its declared kind doesn't
// match. A nil result always means "no tax"; the Diagnostic is nil unless
// something unexpected happened.
func ResolveTaxID(id *string, kind taxcalc.Kind, jurisdiction *TaxJurisdiction) (*taxcalc.Option, *Diagnostic) {
	if id == nil {
		return nil, nil
	}
	switch *id {
	case "default":
		return jurisdiction.DefaultOption(kind), nil
	case "none", "after-tax":
		return nil, nil
	}

	opt, actualKind, found := jurisdiction.lookup(*id)
	if !found {
		return nil, &Diagnostic{TaxID: *id, Message: "unknown tax id, treating as no tax"}
	}
	if actualKind != kind {
		return nil, &Diagnostic{TaxID: *id, Message: "tax id kind mismatch, treating as no tax"}
	}
	return opt, nil
}

// Profile is the engine's entire immutable input for one
// calculate_projections call (spec.md §3).
type Profile struct {
	BirthMonth       month.Month
	LiquidRatePct    float64
	InflationRatePct float64
	TaxCountry       *string
	Accounts         []Account
	CashFlows        []CashFlow
	Debts            []Debt
	LifeEvents       []LifeEvent
}

// NewProfile validates cross-entity invariants not already enforced by the
// individual constructors — currently, life event id uniqueness — and
// returns the assembled Profile.
func NewProfile(birthMonth month.Month, liquidRatePct, inflationRatePct float64, taxCountry *string, accounts []Account, cashFlows []CashFlow, debts []Debt, lifeEvents []LifeEvent) (Profile, error) {
	seen := make(map[string]bool, len(lifeEvents))
	for _, e := range lifeEvents {
		if seen[e.ID] {
			return Profile{}, fmt.Errorf("duplicate life event id %q", e.ID)
		}
		seen[e.ID] = true
	}
	return Profile{
		BirthMonth:       birthMonth,
		LiquidRatePct:    liquidRatePct,
		InflationRatePct: inflationRatePct,
		TaxCountry:       taxCountry,
		Accounts:         accounts,
		CashFlows:        cashFlows,
		Debts:            debts,
		LifeEvents:       lifeEvents,
	}, nil
}
