package catalog

// Built-in decision content for the base scenario. Values are in millions
// of dollars; outflows are already negative. The content mirrors the
// facilitator workbook: three decisions per category, ids stable across
// rounds.

func flows(set map[LineItem][]float64) map[LineItem][]float64 {
	out := make(map[LineItem][]float64, len(AllLineItems))
	for _, item := range AllLineItems {
		if v, ok := set[item]; ok {
			out[item] = v
			continue
		}
		out[item] = make([]float64, HorizonYears)
	}
	return out
}

var builtinDecisions = []Decision{
	{
		ID:            1,
		Name:          "Northgate Capacity Expansion",
		Category:      CategoryGrow,
		Cost:          40,
		DurationYears: 2,
		CashFlows: flows(map[LineItem][]float64{
			LineInvestment:     {-20, -15, 0, 0, 0, 0, 0, 0, 0, 0},
			LineImplementation: {-3, -2, 0, 0, 0, 0, 0, 0, 0, 0},
			LineRevenue:        {0, 8, 15, 20, 22, 24, 25, 26, 27, 28},
			LineCOGS:           {0, -4, -7.5, -10, -11, -12, -12.5, -13, -13.5, -14},
			LineSGA:            {0, -1, -1.5, -1.5, -1.5, -1.5, -1.5, -1.5, -1.5, -1.5},
		}),
	},
	{
		ID:            2,
		Name:          "Meridian Bolt-On Acquisition",
		Category:      CategoryGrow,
		Cost:          131,
		DurationYears: 1,
		IsRisky:       true,
		CashFlows: flows(map[LineItem][]float64{
			LineAcquisition:    {-110, 0, 0, 0, 0, 0, 0, 0, 0, 0},
			LinePremium:        {-16, 0, 0, 0, 0, 0, 0, 0, 0, 0},
			LineImplementation: {-5, -3, 0, 0, 0, 0, 0, 0, 0, 0},
			LineRevenue:        {10, 24, 30, 33, 35, 36, 37, 38, 39, 40},
			LineCOGS:           {-5.5, -13, -16, -17.5, -18.5, -19, -19.5, -20, -20.5, -21},
			LineSGA:            {-2, -4, -4, -4, -4, -4, -4, -4, -4, -4},
			LineSynergies:      {0, 3, 6, 8, 8, 8, 8, 8, 8, 8},
		}),
	},
	{
		ID:            3,
		Name:          "Adjacent Product Line Launch",
		Category:      CategoryGrow,
		Cost:          44,
		DurationYears: 3,
		IsRisky:       true,
		CashFlows: flows(map[LineItem][]float64{
			LineInvestment:     {-18, -12, -6, 0, 0, 0, 0, 0, 0, 0},
			LineImplementation: {-4, -3, -1, 0, 0, 0, 0, 0, 0, 0},
			LineGrowth:         {0, 5, 12, 20, 26, 30, 33, 35, 36, 37},
			LineCOGS:           {0, -2.5, -6, -10, -13, -15, -16.5, -17.5, -18, -18.5},
			LineSGA:            {0, -2, -3, -3.5, -3.5, -3.5, -3.5, -3.5, -3.5, -3.5},
		}),
	},
	{
		ID:            4,
		Name:          "Lean Manufacturing Program",
		Category:      CategoryOptimize,
		Cost:          26,
		DurationYears: 2,
		CashFlows: flows(map[LineItem][]float64{
			LineInvestment:     {-12, -8, 0, 0, 0, 0, 0, 0, 0, 0},
			LineImplementation: {-4, -2, 0, 0, 0, 0, 0, 0, 0, 0},
			LineCOGSSavings:    {0, 4, 8, 11, 12, 13, 13, 13, 13, 13},
			LineMfgOHSavings:   {0, 2, 3, 4, 4, 4, 4, 4, 4, 4},
		}),
	},
	{
		ID:            5,
		Name:          "Shared Services Consolidation",
		Category:      CategoryOptimize,
		Cost:          9,
		DurationYears: 2,
		CashFlows: flows(map[LineItem][]float64{
			LineImplementation: {-6, -3, 0, 0, 0, 0, 0, 0, 0, 0},
			LineSGASavings:     {0, 5, 9, 11, 12, 12, 12, 12, 12, 12},
		}),
	},
	{
		ID:            6,
		Name:          "Procurement Digitization",
		Category:      CategoryOptimize,
		Cost:          19,
		DurationYears: 2,
		IsRisky:       true,
		CashFlows: flows(map[LineItem][]float64{
			LineInvestment:     {-10, -5, 0, 0, 0, 0, 0, 0, 0, 0},
			LineImplementation: {-3, -1, 0, 0, 0, 0, 0, 0, 0, 0},
			LineCOGSSavings:    {0, 3, 6, 8, 9, 9, 9, 9, 9, 9},
		}),
	},
	{
		ID:            7,
		Name:          "Asset Integrity Program",
		Category:      CategorySustain,
		Cost:          18,
		DurationYears: 3,
		CashFlows: flows(map[LineItem][]float64{
			LineInvestment:   {-8, -6, -4, 0, 0, 0, 0, 0, 0, 0},
			LineMfgOHSavings: {0, 1, 2, 2, 2, 2, 2, 2, 2, 2},
		}),
	},
	{
		ID:            8,
		Name:          "Brand And Customer Retention",
		Category:      CategorySustain,
		Cost:          12,
		DurationYears: 10,
		CashFlows: flows(map[LineItem][]float64{
			LineSGA:     {-5, -4, -3, -3, -3, -3, -3, -3, -3, -3},
			LineRevenue: {0, 3, 5, 6, 6, 6, 6, 6, 6, 6},
			LineCOGS:    {0, -1.5, -2.5, -3, -3, -3, -3, -3, -3, -3},
		}),
	},
	{
		ID:            9,
		Name:          "Workforce And Compliance Renewal",
		Category:      CategorySustain,
		Cost:          7,
		DurationYears: 2,
		CashFlows: flows(map[LineItem][]float64{
			LineImplementation: {-4, -3, 0, 0, 0, 0, 0, 0, 0, 0},
			LineSGASavings:     {0, 2, 3, 4, 4, 4, 4, 4, 4, 4},
		}),
	},
}

// Builtin returns the catalog compiled into the binary. It only fails if
// the built-in content itself is malformed, which is a programming error.
func Builtin() (*Catalog, error) {
	return New(builtinDecisions)
}
