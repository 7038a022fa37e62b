// Package configio is the adapter layer between the pure core and the
// filesystem: it round-trips a profile.Profile through YAML, the way the
// teacher's config.go round-trips its Config, and round-trips a
// profile.TaxJurisdiction through the JSON tax-jurisdiction file format
// described in spec.md §6. Neither the engine nor internal/profile ever
// touches a file directly — that boundary lives here.
package configio

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/guido4f/finhorizon/internal/dateresolve"
	"github.com/guido4f/finhorizon/internal/debt"
	"github.com/guido4f/finhorizon/internal/month"
	"github.com/guido4f/finhorizon/internal/profile"
	"github.com/guido4f/finhorizon/internal/taxcalc"
)

// --- DateSpec wire format -------------------------------------------------

// wireDateSpec decodes the three shapes spec.md §6 allows on the wire for a
// DateSpec: a bare integer Month, an ISO "YYYY-MM-DD" string, or the
// canonical {type, ...} object. Converting the legacy scalar shapes to the
// canonical object the core consumes is this adapter's job (spec.md §6, §9:
// "legacy string date inputs ... belong to the input adapter").
type wireDateSpec struct {
	Spec *dateresolve.Spec
}

func (w *wireDateSpec) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		spec, err := parseScalarDateSpec(value.Value)
		if err != nil {
			return err
		}
		w.Spec = spec
		return nil
	case yaml.MappingNode:
		var obj dateSpecObject
		if err := value.Decode(&obj); err != nil {
			return err
		}
		spec, err := obj.toSpec()
		if err != nil {
			return err
		}
		w.Spec = spec
		return nil
	default:
		return fmt.Errorf("date spec: unsupported YAML node kind %v", value.Kind)
	}
}

func (w wireDateSpec) MarshalYAML() (interface{}, error) {
	return dateSpecFromSpec(w.Spec), nil
}

type dateSpecObject struct {
	Type    string `yaml:"type" json:"type"`
	Month   *int   `yaml:"month,omitempty" json:"month,omitempty"`
	Years   *int   `yaml:"years,omitempty" json:"years,omitempty"`
	EventID string `yaml:"event_id,omitempty" json:"event_id,omitempty"`
}

func (o dateSpecObject) toSpec() (*dateresolve.Spec, error) {
	switch o.Type {
	case "absolute":
		if o.Month == nil {
			return nil, fmt.Errorf("date spec: absolute requires month")
		}
		s := dateresolve.Absolute(month.Month(*o.Month))
		return &s, nil
	case "age":
		if o.Years == nil {
			return nil, fmt.Errorf("date spec: age requires years")
		}
		s := dateresolve.Age(*o.Years)
		return &s, nil
	case "life_event":
		if o.EventID == "" {
			return nil, fmt.Errorf("date spec: life_event requires event_id")
		}
		s := dateresolve.LifeEvent(o.EventID)
		return &s, nil
	default:
		return nil, fmt.Errorf("date spec: unknown type %q", o.Type)
	}
}

func dateSpecFromSpec(spec *dateresolve.Spec) *dateSpecObject {
	if spec == nil {
		return nil
	}
	switch spec.Kind {
	case dateresolve.KindAbsolute:
		m := int(spec.Month)
		return &dateSpecObject{Type: "absolute", Month: &m}
	case dateresolve.KindAge:
		y := spec.Years
		return &dateSpecObject{Type: "age", Years: &y}
	case dateresolve.KindLifeEvent:
		return &dateSpecObject{Type: "life_event", EventID: spec.EventID}
	default:
		return nil
	}
}

// parseScalarDateSpec handles the two legacy scalar wire shapes: a bare
// integer Month, or an ISO "YYYY-MM-DD" string truncated to its containing
// Month.
func parseScalarDateSpec(raw string) (*dateresolve.Spec, error) {
	if m, err := strconv.Atoi(raw); err == nil {
		s := dateresolve.Absolute(month.Month(m))
		return &s, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, fmt.Errorf("date spec: unrecognized scalar %q", raw)
	}
	s := dateresolve.Absolute(month.FromTime(t))
	return &s, nil
}

func wireSpec(spec *dateresolve.Spec) *wireDateSpec {
	if spec == nil {
		return nil
	}
	return &wireDateSpec{Spec: spec}
}

func specOf(w *wireDateSpec) *dateresolve.Spec {
	if w == nil {
		return nil
	}
	return w.Spec
}

// --- Profile wire format --------------------------------------------------

type yamlAccount struct {
	Kind              string        `yaml:"kind"`
	ID                string        `yaml:"id"`
	Name              string        `yaml:"name"`
	Amount            float64       `yaml:"amount"`
	WealthTaxID       *string       `yaml:"wealth_tax_id,omitempty"`
	CapitalGainsTaxID *string       `yaml:"capital_gains_tax_id,omitempty"`
	AnnualRatePct     float64       `yaml:"annual_rate_pct,omitempty"`
	LiquidationDate   *wireDateSpec `yaml:"liquidation_date,omitempty"`
}

type yamlCashFlow struct {
	ID               string        `yaml:"id"`
	Name             string        `yaml:"name"`
	Amount           float64       `yaml:"amount"`
	Type             string        `yaml:"type"`
	Frequency        string        `yaml:"frequency"`
	StartDate        *wireDateSpec `yaml:"start_date,omitempty"`
	EndDate          *wireDateSpec `yaml:"end_date,omitempty"`
	FollowsInflation bool          `yaml:"follows_inflation"`
	IsOneTime        bool          `yaml:"is_one_time"`
	IncomeTaxID      *string       `yaml:"income_tax_id,omitempty"`
}

type yamlDebtStrategy struct {
	Kind                    string  `yaml:"kind"`
	MonthlyPrincipalPayment float64 `yaml:"monthly_principal_payment,omitempty"`
	MonthlyPayment          float64 `yaml:"monthly_payment,omitempty"`
	FinalBalance            float64 `yaml:"final_balance,omitempty"`
}

type yamlDebt struct {
	ID                 string           `yaml:"id"`
	Name               string           `yaml:"name"`
	Amount             float64          `yaml:"amount"`
	AnnualRatePct      float64          `yaml:"annual_rate_pct"`
	Strategy           yamlDebtStrategy `yaml:"strategy"`
	StartDate          *wireDateSpec    `yaml:"start_date,omitempty"`
	RepaymentStartDate *wireDateSpec    `yaml:"repayment_start_date,omitempty"`
	EndDate            *wireDateSpec    `yaml:"end_date,omitempty"`
}

type yamlLifeEvent struct {
	ID   string        `yaml:"id"`
	Name string        `yaml:"name"`
	Date *wireDateSpec `yaml:"date,omitempty"`
}

type yamlProfile struct {
	BirthMonth       int             `yaml:"birth_month"`
	LiquidRatePct    float64         `yaml:"liquid_rate_pct"`
	InflationRatePct float64         `yaml:"inflation_rate_pct"`
	TaxCountry       *string         `yaml:"tax_country,omitempty"`
	Accounts         []yamlAccount   `yaml:"accounts,omitempty"`
	CashFlows        []yamlCashFlow  `yaml:"cash_flows,omitempty"`
	Debts            []yamlDebt      `yaml:"debts,omitempty"`
	LifeEvents       []yamlLifeEvent `yaml:"life_events,omitempty"`
}

// LoadProfile reads and validates a profile.Profile from a YAML file,
// mirroring the teacher's LoadConfig. Validation stops at the first
// construction-time issue in the file; logger may be nil, and when non-nil
// it receives a warning for that issue before it is returned as the error.
func LoadProfile(path string, logger *zap.Logger) (profile.Profile, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return profile.Profile{}, err
	}

	var doc yamlProfile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return profile.Profile{}, fmt.Errorf("configio: parse %s: %w", path, err)
	}

	p, err := fromYAMLProfile(doc)
	if err != nil {
		logger.Warn("profile failed construction validation", zap.String("path", path), zap.Error(err))
		return profile.Profile{}, err
	}
	return p, nil
}

// SaveProfile writes p to path as YAML in the canonical wire shape,
// mirroring the teacher's SaveConfig.
func SaveProfile(path string, p profile.Profile) error {
	doc := toYAMLProfile(p)
	data, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func fromYAMLProfile(doc yamlProfile) (profile.Profile, error) {
	accounts := make([]profile.Account, 0, len(doc.Accounts))
	for _, a := range doc.Accounts {
		switch a.Kind {
		case "liquid":
			acc, err := profile.NewLiquidAsset(a.ID, a.Name, a.Amount, a.WealthTaxID, a.CapitalGainsTaxID)
			if err != nil {
				return profile.Profile{}, fmt.Errorf("account %q: %w", a.ID, err)
			}
			accounts = append(accounts, acc)
		case "fixed":
			acc, err := profile.NewFixedAsset(a.ID, a.Name, a.Amount, a.AnnualRatePct, specOf(a.LiquidationDate), a.WealthTaxID, a.CapitalGainsTaxID)
			if err != nil {
				return profile.Profile{}, fmt.Errorf("account %q: %w", a.ID, err)
			}
			accounts = append(accounts, acc)
		default:
			return profile.Profile{}, fmt.Errorf("account %q: unknown kind %q", a.ID, a.Kind)
		}
	}

	cashFlows := make([]profile.CashFlow, 0, len(doc.CashFlows))
	for _, c := range doc.CashFlows {
		typ, err := parseCashFlowType(c.Type)
		if err != nil {
			return profile.Profile{}, fmt.Errorf("cash flow %q: %w", c.ID, err)
		}
		freq, err := parseFrequency(c.Frequency)
		if err != nil {
			return profile.Profile{}, fmt.Errorf("cash flow %q: %w", c.ID, err)
		}
		cf, err := profile.NewCashFlow(c.ID, c.Name, c.Amount, typ, freq, specOf(c.StartDate), specOf(c.EndDate), c.FollowsInflation, c.IsOneTime, c.IncomeTaxID)
		if err != nil {
			return profile.Profile{}, fmt.Errorf("cash flow %q: %w", c.ID, err)
		}
		cashFlows = append(cashFlows, cf)
	}

	debts := make([]profile.Debt, 0, len(doc.Debts))
	for _, d := range doc.Debts {
		dd, err := fromYAMLDebt(d)
		if err != nil {
			return profile.Profile{}, fmt.Errorf("debt %q: %w", d.ID, err)
		}
		debts = append(debts, dd)
	}

	lifeEvents := make([]profile.LifeEvent, 0, len(doc.LifeEvents))
	for _, e := range doc.LifeEvents {
		lifeEvents = append(lifeEvents, profile.LifeEvent{ID: e.ID, Name: e.Name, Date: specOf(e.Date)})
	}

	return profile.NewProfile(month.Month(doc.BirthMonth), doc.LiquidRatePct, doc.InflationRatePct, doc.TaxCountry, accounts, cashFlows, debts, lifeEvents)
}

func fromYAMLDebt(d yamlDebt) (profile.Debt, error) {
	switch d.Strategy.Kind {
	case "linear":
		return profile.NewLinearDebt(d.ID, d.Name, d.Amount, d.AnnualRatePct, d.Strategy.MonthlyPrincipalPayment, specOf(d.StartDate), specOf(d.RepaymentStartDate), specOf(d.EndDate))
	case "annuity":
		return profile.NewAnnuityDebt(d.ID, d.Name, d.Amount, d.AnnualRatePct, d.Strategy.MonthlyPayment, specOf(d.StartDate), specOf(d.RepaymentStartDate), specOf(d.EndDate))
	case "interest_only":
		return profile.NewInterestOnlyDebt(d.ID, d.Name, d.Amount, d.AnnualRatePct, d.Strategy.FinalBalance, specOf(d.StartDate), specOf(d.RepaymentStartDate), specOf(d.EndDate))
	default:
		return profile.Debt{}, fmt.Errorf("unknown strategy kind %q", d.Strategy.Kind)
	}
}

func parseCashFlowType(s string) (profile.CashFlowType, error) {
	switch s {
	case "income":
		return profile.Income, nil
	case "expense":
		return profile.Expense, nil
	default:
		return 0, fmt.Errorf("unknown cash flow type %q", s)
	}
}

func parseFrequency(s string) (profile.Frequency, error) {
	switch s {
	case "weekly":
		return profile.Weekly, nil
	case "monthly":
		return profile.Monthly, nil
	case "annual":
		return profile.Annual, nil
	default:
		return 0, fmt.Errorf("unknown frequency %q", s)
	}
}

func toYAMLProfile(p profile.Profile) yamlProfile {
	doc := yamlProfile{
		BirthMonth:       int(p.BirthMonth),
		LiquidRatePct:    p.LiquidRatePct,
		InflationRatePct: p.InflationRatePct,
		TaxCountry:       p.TaxCountry,
	}
	for _, a := range p.Accounts {
		doc.Accounts = append(doc.Accounts, toYAMLAccount(a))
	}
	for _, c := range p.CashFlows {
		doc.CashFlows = append(doc.CashFlows, toYAMLCashFlow(c))
	}
	for _, d := range p.Debts {
		doc.Debts = append(doc.Debts, toYAMLDebt(d))
	}
	for _, e := range p.LifeEvents {
		doc.LifeEvents = append(doc.LifeEvents, yamlLifeEvent{ID: e.ID, Name: e.Name, Date: wireSpec(e.Date)})
	}
	return doc
}

func toYAMLAccount(a profile.Account) yamlAccount {
	out := yamlAccount{
		ID:                a.ID,
		Name:              a.Name,
		Amount:            a.Amount,
		WealthTaxID:       a.WealthTaxID,
		CapitalGainsTaxID: a.CapitalGainsTaxID,
	}
	switch a.Kind {
	case profile.LiquidAsset:
		out.Kind = "liquid"
	case profile.FixedAsset:
		out.Kind = "fixed"
		out.AnnualRatePct = a.AnnualRatePct
		out.LiquidationDate = wireSpec(a.LiquidationDate)
	}
	return out
}

func toYAMLCashFlow(c profile.CashFlow) yamlCashFlow {
	typ := "income"
	if c.Type == profile.Expense {
		typ = "expense"
	}
	freq := "monthly"
	switch c.Frequency {
	case profile.Weekly:
		freq = "weekly"
	case profile.Annual:
		freq = "annual"
	}
	return yamlCashFlow{
		ID:               c.ID,
		Name:             c.Name,
		Amount:           c.Amount,
		Type:             typ,
		Frequency:        freq,
		StartDate:        wireSpec(c.StartDate),
		EndDate:          wireSpec(c.EndDate),
		FollowsInflation: c.FollowsInflation,
		IsOneTime:        c.IsOneTime,
		IncomeTaxID:      c.IncomeTaxID,
	}
}

func toYAMLDebt(d profile.Debt) yamlDebt {
	strategy := yamlDebtStrategy{}
	switch d.Strategy.Kind {
	case debt.Linear:
		strategy.Kind = "linear"
		strategy.MonthlyPrincipalPayment = d.Strategy.MonthlyPrincipalPayment
	case debt.Annuity:
		strategy.Kind = "annuity"
		strategy.MonthlyPayment = d.Strategy.MonthlyPayment
	case debt.InterestOnly:
		strategy.Kind = "interest_only"
		strategy.FinalBalance = d.Strategy.FinalBalance
	}
	return yamlDebt{
		ID:                 d.ID,
		Name:               d.Name,
		Amount:             d.Amount,
		AnnualRatePct:      d.AnnualRatePct,
		Strategy:           strategy,
		StartDate:          wireSpec(d.StartDate),
		RepaymentStartDate: wireSpec(d.RepaymentStartDate),
		EndDate:            wireSpec(d.EndDate),
	}
}

// --- Tax-jurisdiction wire format (spec.md §6) -----------------------------

type jsonTaxOption struct {
	ID                 string        `json:"id"`
	Name               string        `json:"name"`
	IsDefault          bool          `json:"isDefault"`
	ExemptionThreshold *float64      `json:"exemptionThreshold,omitempty"`
	Rate               *float64      `json:"rate,omitempty"`
	Brackets           []jsonBracket `json:"brackets,omitempty"`
}

type jsonBracket struct {
	Threshold float64 `json:"threshold"`
	Rate      float64 `json:"rate"`
}

type jsonTaxJurisdiction struct {
	CountryCode       string          `json:"countryCode"`
	CountryName       string          `json:"countryName"`
	IncomeTaxes       []jsonTaxOption `json:"incomeTaxes"`
	WealthTaxes       []jsonTaxOption `json:"wealthTaxes"`
	CapitalGainsTaxes []jsonTaxOption `json:"capitalGainsTaxes"`
	Sources           []string        `json:"sources"`
}

// LoadTaxJurisdiction reads one country's tax-jurisdiction file (spec.md §6)
// from JSON. An option carrying neither rate nor brackets, or both, is a
// load-time error; every non-empty kind list must carry exactly one
// is_default option.
func LoadTaxJurisdiction(path string) (*profile.TaxJurisdiction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc jsonTaxJurisdiction
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("configio: parse %s: %w", path, err)
	}

	income, err := optionsFromJSON(doc.IncomeTaxes, taxcalc.Income)
	if err != nil {
		return nil, fmt.Errorf("incomeTaxes: %w", err)
	}
	wealth, err := optionsFromJSON(doc.WealthTaxes, taxcalc.Wealth)
	if err != nil {
		return nil, fmt.Errorf("wealthTaxes: %w", err)
	}
	gains, err := optionsFromJSON(doc.CapitalGainsTaxes, taxcalc.CapitalGains)
	if err != nil {
		return nil, fmt.Errorf("capitalGainsTaxes: %w", err)
	}

	for name, list := range map[string][]taxcalc.Option{"incomeTaxes": income, "wealthTaxes": wealth, "capitalGainsTaxes": gains} {
		if err := requireSingleDefault(name, list); err != nil {
			return nil, err
		}
	}

	return &profile.TaxJurisdiction{
		CountryCode:       doc.CountryCode,
		CountryName:       doc.CountryName,
		IncomeTaxes:       income,
		WealthTaxes:       wealth,
		CapitalGainsTaxes: gains,
		Sources:           doc.Sources,
	}, nil
}

// SaveTaxJurisdiction writes j to path in the §6 JSON format.
func SaveTaxJurisdiction(path string, j *profile.TaxJurisdiction) error {
	doc := jsonTaxJurisdiction{
		CountryCode:       j.CountryCode,
		CountryName:       j.CountryName,
		IncomeTaxes:       optionsToJSON(j.IncomeTaxes),
		WealthTaxes:       optionsToJSON(j.WealthTaxes),
		CapitalGainsTaxes: optionsToJSON(j.CapitalGainsTaxes),
		Sources:           j.Sources,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func optionsFromJSON(in []jsonTaxOption, kind taxcalc.Kind) ([]taxcalc.Option, error) {
	out := make([]taxcalc.Option, 0, len(in))
	for _, o := range in {
		hasRate := o.Rate != nil
		hasBrackets := len(o.Brackets) > 0
		if hasRate == hasBrackets {
			return nil, fmt.Errorf("option %q must carry exactly one of rate/brackets", o.ID)
		}
		opt := taxcalc.Option{
			ID:                 o.ID,
			Name:               o.Name,
			Kind:               kind,
			IsDefault:          o.IsDefault,
			ExemptionThreshold: o.ExemptionThreshold,
		}
		if hasRate {
			opt.IsFlat = true
			opt.FlatRatePct = *o.Rate
		} else {
			opt.Brackets = make([]taxcalc.Bracket, len(o.Brackets))
			for i, b := range o.Brackets {
				opt.Brackets[i] = taxcalc.Bracket{Threshold: b.Threshold, RatePct: b.Rate}
			}
		}
		out = append(out, opt)
	}
	return out, nil
}

func optionsToJSON(in []taxcalc.Option) []jsonTaxOption {
	out := make([]jsonTaxOption, 0, len(in))
	for _, o := range in {
		wire := jsonTaxOption{
			ID:                 o.ID,
			Name:               o.Name,
			IsDefault:          o.IsDefault,
			ExemptionThreshold: o.ExemptionThreshold,
		}
		if o.IsFlat {
			rate := o.FlatRatePct
			wire.Rate = &rate
		} else {
			wire.Brackets = make([]jsonBracket, len(o.Brackets))
			for i, b := range o.Brackets {
				wire.Brackets[i] = jsonBracket{Threshold: b.Threshold, Rate: b.RatePct}
			}
		}
		out = append(out, wire)
	}
	return out
}

func requireSingleDefault(name string, list []taxcalc.Option) error {
	if len(list) == 0 {
		return nil
	}
	count := 0
	for _, o := range list {
		if o.IsDefault {
			count++
		}
	}
	if count != 1 {
		return fmt.Errorf("%s: expected exactly one is_default option, found %d", name, count)
	}
	return nil
}
