// Package engine holds the consolidation and valuation model: it folds a
// team's selected decisions into the business-as-usual baseline, projects
// ten fiscal years, and discounts the cash flows into a single share price.
// Project is pure and deterministic; it performs no I/O and holds no state
// between calls.
package engine

import (
	"fmt"
	"math"
	"sort"

	"boardroom/internal/catalog"
)

// InitialSharePrice is the fixed round-1 starting price every team carries
// into the game.
const InitialSharePrice = 52.27

// Params are the fixed business constants of the scenario. They are not
// tunable inputs; they exist as a struct so tests can read them and so the
// degenerate combinations are validated once, at construction.
type Params struct {
	BaseGrowth               float64
	DeclinePerSkippedSustain float64
	COGSRatio                float64
	SGAGrowth                float64
	DepreciationRate         float64
	TaxRate                  float64
	WACC                     float64
	TerminalGrowth           float64
	CostOfEquity             float64

	PriorYearRevenue       float64
	PriorYearSGA           float64
	InitialInvestedCapital float64
	NetDebt                float64
	MinorityInterest       float64
	SharesOutstanding      float64

	BaseFiscalYear int
}

func DefaultParams() Params {
	return Params{
		BaseGrowth:               0.02,
		DeclinePerSkippedSustain: 0.001,
		COGSRatio:                0.45,
		SGAGrowth:                0.02,
		DepreciationRate:         0.04,
		TaxRate:                  0.25,
		WACC:                     0.08,
		TerminalGrowth:           0.02,
		CostOfEquity:             0.095,
		PriorYearRevenue:         1000.0,
		PriorYearSGA:             -280.0,
		InitialInvestedCapital:   900.0,
		NetDebt:                  270.0,
		MinorityInterest:         54.0,
		SharesOutstanding:        44.0,
		BaseFiscalYear:           2026,
	}
}

// DegenerateValuationError reports math that cannot produce a meaningful
// price. It must surface loudly, never default to zero or NaN.
type DegenerateValuationError struct {
	Reason string
}

func (e *DegenerateValuationError) Error() string {
	return "degenerate valuation: " + e.Reason
}

// YearLine is one projected fiscal year of the consolidated model.
type YearLine struct {
	FiscalYear int `json:"fiscal_year"`

	RevenueBAU       float64 `json:"revenue_bau"`
	RevenueDecisions float64 `json:"revenue_decisions"`
	GrowthDecisions  float64 `json:"growth_decisions"`
	RevenueTotal     float64 `json:"revenue_total"`

	COGSBAU       float64 `json:"cogs_bau"`
	COGSDecisions float64 `json:"cogs_decisions"`
	COGSTotal     float64 `json:"cogs_total"`

	SGABAU       float64 `json:"sga_bau"`
	SGADecisions float64 `json:"sga_decisions"`
	SGATotal     float64 `json:"sga_total"`

	SGASavings   float64 `json:"sga_savings"`
	COGSSavings  float64 `json:"cogs_savings"`
	MfgOHSavings float64 `json:"mfg_oh_savings"`
	Synergies    float64 `json:"synergies"`

	EBITDA           float64 `json:"ebitda"`
	Depreciation     float64 `json:"depreciation"`
	MaintenanceCapex float64 `json:"maintenance_capex"`
	EBIT             float64 `json:"ebit"`
	Implementation   float64 `json:"implementation_cost"`
	Taxes            float64 `json:"taxes"`
	NOPAT            float64 `json:"nopat"`

	ICBeginning   float64 `json:"ic_beginning"`
	ICEnding      float64 `json:"ic_ending"`
	NewInvestment float64 `json:"new_investment"`
	Premium       float64 `json:"premium"`

	FCF            float64 `json:"fcf"`
	DiscountFactor float64 `json:"discount_factor"`
	PresentValue   float64 `json:"present_value"`
}

// Projection is the immutable engine output for one team and one round.
type Projection struct {
	Round int        `json:"round"`
	Years []YearLine `json:"years"`

	NPV10Year       float64 `json:"npv_10_year"`
	TerminalValue   float64 `json:"terminal_value"`
	PVTerminalValue float64 `json:"pv_terminal_value"`
	EnterpriseValue float64 `json:"enterprise_value"`
	EquityValue     float64 `json:"equity_value"`
	SharePrice      float64 `json:"share_price"`
	ForwardPrice    float64 `json:"forward_price"`
	TSR             float64 `json:"tsr"`

	// CurrentRoundDecline is the growth decline this round contributes to
	// future projections (skipped sustain decisions x the per-skip rate).
	CurrentRoundDecline float64 `json:"current_round_decline"`
	SkippedSustainCount int     `json:"skipped_sustain_count"`

	// SkippedDecisionIDs lists selected ids not found in the catalog.
	// They contribute nothing; callers decide how loudly to complain.
	SkippedDecisionIDs []int `json:"skipped_decision_ids,omitempty"`
}

type Engine struct {
	catalog *catalog.Catalog
	params  Params
}

func New(c *catalog.Catalog, p Params) (*Engine, error) {
	if c == nil {
		return nil, fmt.Errorf("catalog is nil")
	}
	if p.WACC <= p.TerminalGrowth {
		return nil, &DegenerateValuationError{Reason: fmt.Sprintf("wacc %.4f must exceed terminal growth %.4f", p.WACC, p.TerminalGrowth)}
	}
	if p.SharesOutstanding <= 0 {
		return nil, &DegenerateValuationError{Reason: "shares outstanding must be positive"}
	}
	return &Engine{catalog: c, params: p}, nil
}

func (e *Engine) Params() Params {
	return e.params
}

// Project runs the full ten-year consolidation and DCF for one team.
// priorDeclines holds the growth declines contributed by rounds 1..round-1,
// in round order; the current round's decline is derived from the selected
// set. startingSharePrice is the team's price entering the round, used only
// for TSR.
func (e *Engine) Project(round int, selectedIDs []int, priorDeclines []float64, startingSharePrice float64) (*Projection, error) {
	if round < 1 {
		return nil, fmt.Errorf("round must be >= 1, got %d", round)
	}
	if startingSharePrice <= 0 {
		return nil, fmt.Errorf("starting share price must be positive, got %g", startingSharePrice)
	}
	p := e.params

	ids := append([]int(nil), selectedIDs...)
	sort.Ints(ids)

	selected := make([]catalog.Decision, 0, len(ids))
	var skipped []int
	for _, id := range ids {
		d, ok := e.catalog.Get(id)
		if !ok {
			skipped = append(skipped, id)
			continue
		}
		selected = append(selected, d)
	}

	skippedSustain := 0
	chosen := make(map[int]bool, len(selected))
	for _, d := range selected {
		chosen[d.ID] = true
	}
	for _, id := range e.catalog.SustainIDs() {
		if !chosen[id] {
			skippedSustain++
		}
	}
	currentDecline := float64(skippedSustain) * p.DeclinePerSkippedSustain

	// BAU baseline. Year 0 is locked to the base rate; declines from round
	// r only bite from yearIdx >= r+1, so a round never moves the year
	// immediately ahead of it.
	revenueBAU := make([]float64, catalog.HorizonYears)
	cogsBAU := make([]float64, catalog.HorizonYears)
	sgaBAU := make([]float64, catalog.HorizonYears)
	prevRev := p.PriorYearRevenue
	prevSGA := p.PriorYearSGA
	for y := 0; y < catalog.HorizonYears; y++ {
		g := p.BaseGrowth
		if y > 0 {
			cum := 0.0
			for i, d := range priorDeclines {
				if y >= (i + 1 + 1) {
					cum += d
				}
			}
			if y >= round+1 {
				cum += currentDecline
			}
			g = p.BaseGrowth - cum
		}
		rev := prevRev * (1 + g)
		revenueBAU[y] = rev
		cogsBAU[y] = -p.COGSRatio * rev
		sga := prevSGA * (1 + p.SGAGrowth)
		sgaBAU[y] = sga
		prevRev = rev
		prevSGA = sga
	}

	// BAU invested capital: flat to year 4, then capacity grows with
	// revenue at the turnover ratio anchored at year 4.
	icBAU := make([]float64, catalog.HorizonYears)
	bauNewInvestment := make([]float64, catalog.HorizonYears)
	prevIC := p.InitialInvestedCapital
	for y := 0; y < catalog.HorizonYears; y++ {
		if y < 5 {
			icBAU[y] = p.InitialInvestedCapital
		} else {
			turnover := revenueBAU[4] / p.InitialInvestedCapital
			icBAU[y] = revenueBAU[y] / turnover
		}
		bauNewInvestment[y] = -(icBAU[y] - prevIC)
		prevIC = icBAU[y]
	}

	years := make([]YearLine, 0, catalog.HorizonYears)
	npv := 0.0
	icBeginning := p.InitialInvestedCapital
	for y := 0; y < catalog.HorizonYears; y++ {
		var investment, implementation, acquisition, premium float64
		var revenueAdd, growthAdd, cogsAdd, sgaAdd float64
		var sgaSavings, cogsSavings, mfgOHSavings, synergies float64
		for _, d := range selected {
			investment += d.Flow(catalog.LineInvestment, y)
			implementation += d.Flow(catalog.LineImplementation, y)
			acquisition += d.Flow(catalog.LineAcquisition, y)
			premium += d.Flow(catalog.LinePremium, y)
			revenueAdd += d.Flow(catalog.LineRevenue, y)
			growthAdd += d.Flow(catalog.LineGrowth, y)
			cogsAdd += d.Flow(catalog.LineCOGS, y)
			sgaAdd += d.Flow(catalog.LineSGA, y)
			sgaSavings += d.Flow(catalog.LineSGASavings, y)
			cogsSavings += d.Flow(catalog.LineCOGSSavings, y)
			mfgOHSavings += d.Flow(catalog.LineMfgOHSavings, y)
			synergies += d.Flow(catalog.LineSynergies, y)
		}

		revenueTotal := revenueBAU[y] + revenueAdd + growthAdd
		cogsTotal := cogsBAU[y] + cogsAdd
		sgaTotal := sgaBAU[y] + sgaAdd
		ebitda := revenueTotal + cogsTotal + sgaTotal + sgaSavings + cogsSavings + mfgOHSavings + synergies

		depreciation := -p.DepreciationRate * revenueTotal
		ebit := ebitda + depreciation

		totalNewInvestment := investment + acquisition + bauNewInvestment[y]
		taxes := math.Min(0, -(ebit+implementation)*p.TaxRate)
		icEnding := icBeginning - totalNewInvestment

		// Acquisition flows through the IC change; premium bypasses IC and
		// hits FCF directly. Maintenance capex equals depreciation.
		fcf := ebitda + implementation + taxes + depreciation + totalNewInvestment + premium
		discount := math.Pow(1+p.WACC, float64(y+1))
		pv := fcf / discount
		npv += pv

		years = append(years, YearLine{
			FiscalYear:       p.BaseFiscalYear + y,
			RevenueBAU:       revenueBAU[y],
			RevenueDecisions: revenueAdd,
			GrowthDecisions:  growthAdd,
			RevenueTotal:     revenueTotal,
			COGSBAU:          cogsBAU[y],
			COGSDecisions:    cogsAdd,
			COGSTotal:        cogsTotal,
			SGABAU:           sgaBAU[y],
			SGADecisions:     sgaAdd,
			SGATotal:         sgaTotal,
			SGASavings:       sgaSavings,
			COGSSavings:      cogsSavings,
			MfgOHSavings:     mfgOHSavings,
			Synergies:        synergies,
			EBITDA:           ebitda,
			Depreciation:     depreciation,
			MaintenanceCapex: depreciation,
			EBIT:             ebit,
			Implementation:   implementation,
			Taxes:            taxes,
			NOPAT:            ebit + taxes,
			ICBeginning:      icBeginning,
			ICEnding:         icEnding,
			NewInvestment:    totalNewInvestment,
			Premium:          premium,
			FCF:              fcf,
			DiscountFactor:   discount,
			PresentValue:     pv,
		})
		icBeginning = icEnding
	}

	last := years[catalog.HorizonYears-1]
	if math.Abs(last.ICEnding) < 1e-9 {
		return nil, &DegenerateValuationError{Reason: "year-10 ending invested capital is zero"}
	}

	if last.RevenueTotal <= 0 {
		return nil, &DegenerateValuationError{Reason: fmt.Sprintf("year-10 revenue %.6f is not positive", last.RevenueTotal)}
	}

	// Continuing value: grow year-10 EBIT one more year, derive ROIC, and
	// charge the reinvestment needed to sustain terminal growth. A naive
	// Gordon growth on FCF would overstate the perpetuity.
	ebitNext := last.EBIT * (1 + p.TerminalGrowth)
	nopatNext := ebitNext * (1 - p.TaxRate)
	margin := last.EBITDA / last.RevenueTotal
	roic := (margin - p.DepreciationRate) * (1 - p.TaxRate) * last.RevenueTotal / last.ICEnding
	if roic <= 0 {
		return nil, &DegenerateValuationError{Reason: fmt.Sprintf("terminal roic %.6f is not positive", roic)}
	}
	reinvestment := p.TerminalGrowth / roic
	fcfPerpetuity := nopatNext * (1 - reinvestment)
	terminalValue := fcfPerpetuity / (p.WACC - p.TerminalGrowth)
	pvTerminal := terminalValue / math.Pow(1+p.WACC, float64(catalog.HorizonYears))

	enterpriseValue := npv + pvTerminal
	equityValue := enterpriseValue - p.NetDebt - p.MinorityInterest
	sharePrice := equityValue / p.SharesOutstanding
	forwardPrice := sharePrice * (1 + p.CostOfEquity)
	tsr := forwardPrice/startingSharePrice - 1

	return &Projection{
		Round:               round,
		Years:               years,
		NPV10Year:           npv,
		TerminalValue:       terminalValue,
		PVTerminalValue:     pvTerminal,
		EnterpriseValue:     enterpriseValue,
		EquityValue:         equityValue,
		SharePrice:          sharePrice,
		ForwardPrice:        forwardPrice,
		TSR:                 tsr,
		CurrentRoundDecline: currentDecline,
		SkippedSustainCount: skippedSustain,
		SkippedDecisionIDs:  skipped,
	}, nil
}
