package engine

import (
	"math"
	"testing"

	"github.com/guido4f/finhorizon/internal/dateresolve"
	"github.com/guido4f/finhorizon/internal/month"
	"github.com/guido4f/finhorizon/internal/profile"
)

const tolerance = 1.0

func assertMoneyEquals(t *testing.T, expected, actual float64, description string) {
	t.Helper()
	if math.Abs(expected-actual) > tolerance {
		t.Errorf("%s: expected %.2f, got %.2f (diff %.2f)", description, expected, actual, actual-expected)
	}
}

// refStart pins the "current month" reference to January 2025, matching
// spec.md §8's concrete end-to-end scenarios.
var refStart = month.Of(2025, 0)

func mustProfile(t *testing.T, p profile.Profile, err error) profile.Profile {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected construction error: %v", err)
	}
	return p
}

func annualByYear(result ProjectionResult, year int) *AnnualSummary {
	for i := range result.Annual {
		if result.Annual[i].Year == year {
			return &result.Annual[i]
		}
	}
	return nil
}

func TestFlatGrowth(t *testing.T) {
	liquid := mustProfile(t, profile.NewLiquidAsset("l1", "Savings", 100000, nil, nil))
	p := mustProfile(t, profile.NewProfile(month.Of(1995, 0), 5, 0, nil,
		[]profile.Account{liquid}, nil, nil, nil))

	result, warnings := CalculateProjectionsAt(p, nil, nil, refStart)
	if len(warnings) != 0 {
		t.Errorf("expected no warnings, got %v", warnings)
	}

	assertMoneyEquals(t, 105116.19, result.Monthly[11].Liquid, "liquid after 12 months")
	assertMoneyEquals(t, 164700.95, result.Monthly[119].Liquid, "liquid after 120 months")
}

func TestPartialYearExpense(t *testing.T) {
	liquid := mustProfile(t, profile.NewLiquidAsset("l1", "Savings", 50000, nil, nil))
	start := dateresolve.Absolute(month.Of(2025, 0))
	end := dateresolve.Absolute(month.Of(2030, 0))
	expense := mustProfile2(t, profile.NewCashFlow("e1", "Rent", 1000, profile.Expense, profile.Monthly, &start, &end, false, false, nil))

	p := mustProfile(t, profile.NewProfile(month.Of(2000, 0), 0, 0, nil,
		[]profile.Account{liquid}, []profile.CashFlow{expense}, nil, nil))

	result, _ := CalculateProjectionsAt(p, nil, nil, refStart)

	if s := annualByYear(result, 2040); s == nil || s.TotalExpenses != 0 {
		t.Errorf("2040 totalExpenses = %v, want 0", s)
	}
	if s := annualByYear(result, 2060); s == nil || s.TotalExpenses != 0 {
		t.Errorf("2060 totalExpenses = %v, want 0 (ended)", s)
	}
	s := annualByYear(result, 2029)
	if s == nil {
		t.Fatal("missing 2029 summary")
	}
	assertMoneyEquals(t, 12000, s.TotalExpenses, "2029 totalExpenses")
}

func mustProfile2(t *testing.T, cf profile.CashFlow, err error) profile.CashFlow {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected construction error: %v", err)
	}
	return cf
}

func TestAnnuityDebt(t *testing.T) {
	liquid := mustProfile(t, profile.NewLiquidAsset("l1", "Savings", 100000, nil, nil))
	start := dateresolve.Absolute(month.Of(2025, 0))
	d, err := profile.NewAnnuityDebt("d1", "Car loan", 20000, 6, 600, &start, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p := mustProfile(t, profile.NewProfile(month.Of(1995, 0), 5, 0, nil,
		[]profile.Account{liquid}, nil, []profile.Debt{d}, nil))

	result, _ := CalculateProjectionsAt(p, nil, nil, refStart)

	s := annualByYear(result, 2025)
	if s == nil {
		t.Fatal("missing 2025 summary")
	}
	assertMoneyEquals(t, 7200, s.TotalDebtPrincipalPaid+s.TotalDebtInterestPaid, "first year principal+interest")
	if s.EndTotalDebt >= 15000 {
		t.Errorf("ending debt %v, want < 15000", s.EndTotalDebt)
	}
}

func TestInterestOnlyBalloon(t *testing.T) {
	liquid := mustProfile(t, profile.NewLiquidAsset("l1", "Savings", 200000, nil, nil))
	start := dateresolve.Absolute(month.Of(2025, 0))
	end := dateresolve.Absolute(month.Of(2030, 0))
	d, err := profile.NewInterestOnlyDebt("d1", "Bridge loan", 100000, 4, 0, &start, nil, &end)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p := mustProfile(t, profile.NewProfile(month.Of(1995, 0), 0, 0, nil,
		[]profile.Account{liquid}, nil, []profile.Debt{d}, nil))

	result, _ := CalculateProjectionsAt(p, nil, nil, refStart)

	s2025 := annualByYear(result, 2025)
	if s2025 == nil {
		t.Fatal("missing 2025 summary")
	}
	assertMoneyEquals(t, 0, s2025.TotalDebtPrincipalPaid, "2025 principal")
	assertMoneyEquals(t, 4000, s2025.TotalDebtInterestPaid, "2025 interest")
	assertMoneyEquals(t, 100000, s2025.EndTotalDebt, "2025 ending debt")

	s2030 := annualByYear(result, 2030)
	if s2030 == nil {
		t.Fatal("missing 2030 summary")
	}
	assertMoneyEquals(t, 0, s2030.EndTotalDebt, "2030 ending debt")
	assertMoneyEquals(t, 100000, s2030.TotalDebtPrincipalPaid, "2030 balloon principal")
}

func TestOneTimeEvent(t *testing.T) {
	liquid := mustProfile(t, profile.NewLiquidAsset("l1", "Savings", 50000, nil, nil))
	start := dateresolve.Absolute(month.Of(2025, 5))
	income := mustProfile2(t, profile.NewCashFlow("i1", "Gift", 10000, profile.Income, profile.Monthly, &start, nil, false, true, nil))

	p := mustProfile(t, profile.NewProfile(month.Of(1990, 0), 0, 0, nil,
		[]profile.Account{liquid}, []profile.CashFlow{income}, nil, nil))

	result, _ := CalculateProjectionsAt(p, nil, nil, refStart)

	s2025 := annualByYear(result, 2025)
	s2026 := annualByYear(result, 2026)
	if s2025 == nil || s2026 == nil {
		t.Fatal("missing annual summaries")
	}
	assertMoneyEquals(t, 10000, s2025.TotalIncome, "first year income")
	assertMoneyEquals(t, 0, s2026.TotalIncome, "second year income")
}

func TestFixedAssetLiquidation(t *testing.T) {
	liquid := mustProfile(t, profile.NewLiquidAsset("l1", "Savings", 10000, nil, nil))
	liqDate := dateresolve.Absolute(month.Of(2025, 11))
	fixed, err := profile.NewFixedAsset("f1", "House", 100000, 6, &liqDate, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p := mustProfile(t, profile.NewProfile(month.Of(1990, 0), 0, 0, nil,
		[]profile.Account{liquid, fixed}, nil, nil, nil))

	result, _ := CalculateProjectionsAt(p, nil, nil, refStart)

	s2025 := annualByYear(result, 2025)
	if s2025 == nil {
		t.Fatal("missing 2025 summary")
	}
	assertMoneyEquals(t, 0, s2025.EndFixedTotal, "fixed total after liquidation")
	assertMoneyEquals(t, 116168, s2025.EndLiquid, "liquid after absorbing appreciated fixed asset")
}

func TestCycleSafety(t *testing.T) {
	liquid := mustProfile(t, profile.NewLiquidAsset("l1", "Savings", 10000, nil, nil))
	specA := dateresolve.LifeEvent("b")
	specB := dateresolve.LifeEvent("a")
	events := []profile.LifeEvent{
		{ID: "a", Name: "A", Date: &specA},
		{ID: "b", Name: "B", Date: &specB},
	}
	start := dateresolve.LifeEvent("a")
	cf := mustProfile2(t, profile.NewCashFlow("c1", "Depends on cycle", 1000, profile.Income, profile.Monthly, &start, nil, false, false, nil))

	p := mustProfile(t, profile.NewProfile(month.Of(1990, 0), 0, 0, nil,
		[]profile.Account{liquid}, []profile.CashFlow{cf}, nil, events))

	result, _ := CalculateProjectionsAt(p, nil, nil, refStart)

	if len(result.Monthly) == 0 {
		t.Fatal("engine did not complete normally")
	}
	for _, mp := range result.Monthly {
		if mp.Income != 0 {
			t.Fatalf("cash flow depending on a cyclic life event fired at %v", mp.Month)
		}
	}
}

func TestNetWorthInvariantHolds(t *testing.T) {
	liquid := mustProfile(t, profile.NewLiquidAsset("l1", "Savings", 20000, nil, nil))
	liqDate := dateresolve.Absolute(month.Of(2026, 5))
	fixed, err := profile.NewFixedAsset("f1", "House", 50000, 3, &liqDate, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	start := dateresolve.Absolute(month.Of(2025, 0))
	d, err := profile.NewLinearDebt("d1", "Loan", 5000, 4, 200, &start, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p := mustProfile(t, profile.NewProfile(month.Of(1985, 0), 3, 2, nil,
		[]profile.Account{liquid, fixed}, nil, []profile.Debt{d}, nil))

	result, _ := CalculateProjectionsAt(p, nil, nil, refStart)
	for _, mp := range result.Monthly {
		want := mp.Liquid + mp.FixedTotal - mp.TotalDebt
		assertMoneyEquals(t, want, mp.NetWorth, "net worth identity at "+mp.Month.String())
	}
}

func TestAnnualSummariesChain(t *testing.T) {
	liquid := mustProfile(t, profile.NewLiquidAsset("l1", "Savings", 30000, nil, nil))
	p := mustProfile(t, profile.NewProfile(month.Of(1990, 0), 4, 1, nil,
		[]profile.Account{liquid}, nil, nil, nil))

	result, _ := CalculateProjectionsAt(p, nil, nil, refStart)
	for i := 1; i < len(result.Annual); i++ {
		prev, cur := result.Annual[i-1], result.Annual[i]
		assertMoneyEquals(t, prev.EndLiquid, cur.StartLiquid, "year chain liquid")
		assertMoneyEquals(t, prev.EndFixedTotal, cur.StartFixedTotal, "year chain fixed")
		assertMoneyEquals(t, prev.EndTotalDebt, cur.StartTotalDebt, "year chain debt")
		assertMoneyEquals(t, prev.EndNetWorth, cur.StartNetWorth, "year chain net worth")
	}
}

func TestDebtEndMonthFloorsAtFinalBalance(t *testing.T) {
	liquid := mustProfile(t, profile.NewLiquidAsset("l1", "Savings", 300000, nil, nil))
	start := dateresolve.Absolute(month.Of(2025, 0))
	end := dateresolve.Absolute(month.Of(2027, 0))
	d, err := profile.NewInterestOnlyDebt("d1", "Balloon", 50000, 3, 10000, &start, nil, &end)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p := mustProfile(t, profile.NewProfile(month.Of(1995, 0), 0, 0, nil,
		[]profile.Account{liquid}, nil, []profile.Debt{d}, nil))

	result, _ := CalculateProjectionsAt(p, nil, nil, refStart)
	endMonth := month.Of(2027, 0)
	for _, mp := range result.Monthly {
		if mp.Month.After(endMonth) {
			assertMoneyEquals(t, 10000, mp.TotalDebt, "debt stays at final balance after end month")
		}
	}
}

func TestValidationWarningsSurfaced(t *testing.T) {
	liquid := mustProfile(t, profile.NewLiquidAsset("l1", "Savings", 10000, nil, nil))
	d, err := profile.NewAnnuityDebt("d1", "Underwater", 10000, 10, 50, nil, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p := mustProfile(t, profile.NewProfile(month.Of(1995, 0), 0, 0, nil,
		[]profile.Account{liquid}, nil, []profile.Debt{d}, nil))

	_, warnings := CalculateProjectionsAt(p, nil, nil, refStart)
	found := false
	for _, w := range warnings {
		if w.DebtID == "d1" {
			found = true
		}
	}
	if !found {
		t.Error("expected a non-amortizing annuity warning for debt d1")
	}
}

func TestInsufficientLiquidSkipsPaymentWithoutArrears(t *testing.T) {
	liquid := mustProfile(t, profile.NewLiquidAsset("l1", "Savings", 100, nil, nil))
	start := dateresolve.Absolute(month.Of(2025, 0))
	d, err := profile.NewLinearDebt("d1", "Loan", 10000, 5, 500, &start, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p := mustProfile(t, profile.NewProfile(month.Of(1995, 0), 0, 0, nil,
		[]profile.Account{liquid}, nil, []profile.Debt{d}, nil))

	result, _ := CalculateProjectionsAt(p, nil, nil, refStart)
	if result.Monthly[0].DebtPrincipalPaid != 0 || result.Monthly[0].DebtInterestPaid != 0 {
		t.Error("expected first month's payment to be skipped for insufficient liquid")
	}
	assertMoneyEquals(t, 10000, result.Monthly[0].TotalDebt, "debt balance unchanged, no arrears accrued")
}

func TestNegativeLiquidAccruesPenaltyInterest(t *testing.T) {
	liquid := mustProfile(t, profile.NewLiquidAsset("l1", "Overdraft", 0, nil, nil))
	start := dateresolve.Absolute(month.Of(2025, 0))
	expense := mustProfile2(t, profile.NewCashFlow("e1", "Bills", 1000, profile.Expense, profile.Monthly, &start, nil, false, false, nil))

	p := mustProfile(t, profile.NewProfile(month.Of(1990, 0), 12, 0, nil,
		[]profile.Account{liquid}, []profile.CashFlow{expense}, nil, nil))

	result, _ := CalculateProjectionsAt(p, nil, nil, refStart)
	// Month 0 ends at -1000; without interest month 1 would end at -2000.
	if result.Monthly[1].Liquid >= result.Monthly[0].Liquid-1000 {
		t.Errorf("expected growth to deepen a negative balance: month0=%v month1=%v", result.Monthly[0].Liquid, result.Monthly[1].Liquid)
	}
}

func TestCalculationTimeRecorded(t *testing.T) {
	liquid := mustProfile(t, profile.NewLiquidAsset("l1", "Savings", 1000, nil, nil))
	p := mustProfile(t, profile.NewProfile(month.Of(1990, 0), 3, 1, nil,
		[]profile.Account{liquid}, nil, nil, nil))

	result, _ := CalculateProjectionsAt(p, nil, nil, refStart)
	if result.CalculationTimeMs < 0 {
		t.Errorf("CalculationTimeMs = %v, want >= 0", result.CalculationTimeMs)
	}
	if len(result.Monthly) == 0 {
		t.Error("expected monthly snapshots")
	}
}
