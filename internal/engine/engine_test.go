package engine

import (
	"errors"
	"math"
	"strings"
	"testing"

	"boardroom/internal/catalog"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	deck, err := catalog.Builtin()
	if err != nil {
		t.Fatalf("builtin catalog: %v", err)
	}
	eng, err := New(deck, DefaultParams())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return eng
}

func closeEnough(got, want, relTol float64) bool {
	if want == 0 {
		return math.Abs(got) <= relTol
	}
	return math.Abs(got-want)/math.Abs(want) <= relTol
}

func TestProjectBaseline(t *testing.T) {
	eng := testEngine(t)
	proj, err := eng.Project(1, nil, nil, InitialSharePrice)
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	// Doing nothing holds the price roughly flat at the starting level.
	if !closeEnough(proj.SharePrice, 52.267331793274, 1e-9) {
		t.Fatalf("baseline price %v", proj.SharePrice)
	}
	if proj.SkippedSustainCount != 3 {
		t.Fatalf("expected 3 skipped sustain decisions, got %d", proj.SkippedSustainCount)
	}
	if !closeEnough(proj.CurrentRoundDecline, 0.003, 1e-12) {
		t.Fatalf("baseline decline %v", proj.CurrentRoundDecline)
	}
	if len(proj.Years) != catalog.HorizonYears {
		t.Fatalf("expected %d projected years, got %d", catalog.HorizonYears, len(proj.Years))
	}
}

func TestProjectReferencePrices(t *testing.T) {
	eng := testEngine(t)
	tests := []struct {
		name string
		ids  []int
		want float64
	}{
		{name: "capacity expansion", ids: []int{1}, want: 53.669695432765},
		{name: "balanced portfolio", ids: []int{1, 4, 7, 8, 9}, want: 59.718171474303},
		{name: "sustain only", ids: []int{7, 8, 9}, want: 55.208908405413},
	}
	for _, tc := range tests {
		proj, err := eng.Project(1, tc.ids, nil, InitialSharePrice)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if !closeEnough(proj.SharePrice, tc.want, 1e-9) {
			t.Fatalf("%s: price %v want %v", tc.name, proj.SharePrice, tc.want)
		}
	}
}

func TestProjectCapacityExpansionWorkbookFixture(t *testing.T) {
	eng := testEngine(t)
	proj, err := eng.Project(1, []int{1}, nil, InitialSharePrice)
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	// Facilitator workbook quotes 53.73 for the round-1 capacity expansion.
	if !closeEnough(proj.SharePrice, 53.73, 0.01) {
		t.Fatalf("price %v not within 1%% of 53.73", proj.SharePrice)
	}
}

func TestProjectDeterministic(t *testing.T) {
	eng := testEngine(t)
	a, err := eng.Project(2, []int{2, 5, 7}, []float64{0.002}, 54.1)
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	b, err := eng.Project(2, []int{7, 5, 2}, []float64{0.002}, 54.1)
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	if a.SharePrice != b.SharePrice || a.NPV10Year != b.NPV10Year {
		t.Fatalf("selection order changed the result: %v vs %v", a.SharePrice, b.SharePrice)
	}
}

func TestProjectPriorDeclineCarryOver(t *testing.T) {
	eng := testEngine(t)
	start, err := eng.Project(1, []int{1}, nil, InitialSharePrice)
	if err != nil {
		t.Fatalf("round 1: %v", err)
	}
	proj, err := eng.Project(2, []int{5}, []float64{start.CurrentRoundDecline}, start.SharePrice)
	if err != nil {
		t.Fatalf("round 2: %v", err)
	}
	if !closeEnough(proj.SharePrice, 52.880459953015, 1e-9) {
		t.Fatalf("round 2 price %v", proj.SharePrice)
	}

	// The same round 2 without the inherited decline must price higher.
	clean, err := eng.Project(2, []int{5}, []float64{0}, start.SharePrice)
	if err != nil {
		t.Fatalf("round 2 clean: %v", err)
	}
	if clean.SharePrice <= proj.SharePrice {
		t.Fatalf("inherited decline did not reduce the price: %v vs %v", clean.SharePrice, proj.SharePrice)
	}
}

func TestProjectDeclineLag(t *testing.T) {
	eng := testEngine(t)
	// A round-1 decline must leave fiscal years 0 and 1 untouched and only
	// bend growth from year index 2 on.
	with, err := eng.Project(1, nil, nil, InitialSharePrice)
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	without, err := eng.Project(1, []int{7, 8, 9}, nil, InitialSharePrice)
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	for y := 0; y < 2; y++ {
		if with.Years[y].RevenueBAU != without.Years[y].RevenueBAU {
			t.Fatalf("year %d baseline revenue moved: %v vs %v", y, with.Years[y].RevenueBAU, without.Years[y].RevenueBAU)
		}
	}
	if with.Years[2].RevenueBAU >= without.Years[2].RevenueBAU {
		t.Fatalf("year 2 baseline revenue did not decline: %v vs %v", with.Years[2].RevenueBAU, without.Years[2].RevenueBAU)
	}
}

func TestProjectSkipsUnknownDecisions(t *testing.T) {
	eng := testEngine(t)
	proj, err := eng.Project(1, []int{1, 999}, nil, InitialSharePrice)
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	known, err := eng.Project(1, []int{1}, nil, InitialSharePrice)
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	if proj.SharePrice != known.SharePrice {
		t.Fatalf("unknown id changed the valuation: %v vs %v", proj.SharePrice, known.SharePrice)
	}
	if len(proj.SkippedDecisionIDs) != 1 || proj.SkippedDecisionIDs[0] != 999 {
		t.Fatalf("skipped ids = %v", proj.SkippedDecisionIDs)
	}
}

func TestProjectInputValidation(t *testing.T) {
	eng := testEngine(t)
	if _, err := eng.Project(0, nil, nil, InitialSharePrice); err == nil {
		t.Fatalf("expected round 0 to fail")
	}
	if _, err := eng.Project(1, nil, nil, 0); err == nil {
		t.Fatalf("expected zero starting price to fail")
	}
}

func TestNewRejectsDegenerateParams(t *testing.T) {
	deck, err := catalog.Builtin()
	if err != nil {
		t.Fatalf("builtin catalog: %v", err)
	}
	p := DefaultParams()
	p.WACC = p.TerminalGrowth
	if _, err := New(deck, p); err == nil {
		t.Fatalf("expected wacc <= terminal growth to fail")
	}
	p = DefaultParams()
	p.SharesOutstanding = 0
	if _, err := New(deck, p); err == nil {
		t.Fatalf("expected zero shares to fail")
	}
}

func TestProjectTSRUsesForwardPrice(t *testing.T) {
	eng := testEngine(t)
	proj, err := eng.Project(1, []int{1}, nil, InitialSharePrice)
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	wantFwd := proj.SharePrice * (1 + eng.Params().CostOfEquity)
	if !closeEnough(proj.ForwardPrice, wantFwd, 1e-12) {
		t.Fatalf("forward price %v want %v", proj.ForwardPrice, wantFwd)
	}
	wantTSR := proj.ForwardPrice/InitialSharePrice - 1
	if !closeEnough(proj.TSR, wantTSR, 1e-12) {
		t.Fatalf("tsr %v want %v", proj.TSR, wantTSR)
	}
}

func TestProjectEBITDAConservation(t *testing.T) {
	eng := testEngine(t)
	// The acquisition carries synergies, so every component line is live.
	for _, ids := range [][]int{{2}, {1, 4, 7, 8, 9}, nil} {
		proj, err := eng.Project(1, ids, nil, InitialSharePrice)
		if err != nil {
			t.Fatalf("project %v: %v", ids, err)
		}
		for _, y := range proj.Years {
			want := y.RevenueTotal + y.COGSTotal + y.SGATotal + y.SGASavings + y.COGSSavings + y.MfgOHSavings + y.Synergies
			if y.EBITDA != want {
				t.Fatalf("ids %v FY%d: ebitda %v, components sum to %v", ids, y.FiscalYear, y.EBITDA, want)
			}
		}
	}
}

func testFlows(overrides map[catalog.LineItem][]float64) map[catalog.LineItem][]float64 {
	flows := make(map[catalog.LineItem][]float64, len(catalog.AllLineItems))
	for _, item := range catalog.AllLineItems {
		flows[item] = make([]float64, catalog.HorizonYears)
	}
	for item, v := range overrides {
		copy(flows[item], v)
	}
	return flows
}

func TestProjectRejectsNonPositiveTerminalRevenue(t *testing.T) {
	revenue := make([]float64, catalog.HorizonYears)
	revenue[catalog.HorizonYears-1] = -1e6
	deck, err := catalog.New([]catalog.Decision{{
		ID: 1, Name: "Full Divestiture", Category: catalog.CategoryGrow, Cost: 10, DurationYears: 10,
		CashFlows: testFlows(map[catalog.LineItem][]float64{catalog.LineRevenue: revenue}),
	}})
	if err != nil {
		t.Fatalf("new catalog: %v", err)
	}
	eng, err := New(deck, DefaultParams())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	_, err = eng.Project(1, []int{1}, nil, InitialSharePrice)
	var degenerate *DegenerateValuationError
	if !errors.As(err, &degenerate) {
		t.Fatalf("expected degenerate valuation, got %v", err)
	}
	if !strings.Contains(degenerate.Reason, "revenue") {
		t.Fatalf("expected terminal revenue to be named, got %q", degenerate.Reason)
	}
}
