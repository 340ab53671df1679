package catalog

import (
	"fmt"
	"sort"
)

// HorizonYears is the length of every cash-flow vector. Decision content
// is authored against a fixed 10-year projection horizon.
const HorizonYears = 10

type Category string

const (
	CategoryGrow     Category = "grow"
	CategoryOptimize Category = "optimize"
	CategorySustain  Category = "sustain"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryGrow, CategoryOptimize, CategorySustain:
		return true
	}
	return false
}

// LineItem is one of the 12 fixed consolidation rows a decision can
// contribute to. Outflow items are stored pre-signed (negative values);
// the engine never flips signs at projection time.
type LineItem string

const (
	LineInvestment     LineItem = "investment"
	LineImplementation LineItem = "implementation_cost"
	LineAcquisition    LineItem = "acquisition"
	LinePremium        LineItem = "premium"
	LineRevenue        LineItem = "revenue"
	LineGrowth         LineItem = "growth"
	LineCOGS           LineItem = "cogs"
	LineSGA            LineItem = "sga"
	LineSGASavings     LineItem = "sga_savings"
	LineCOGSSavings    LineItem = "cogs_savings"
	LineMfgOHSavings   LineItem = "mfg_oh_savings"
	LineSynergies      LineItem = "synergies"
)

var AllLineItems = []LineItem{
	LineInvestment,
	LineImplementation,
	LineAcquisition,
	LinePremium,
	LineRevenue,
	LineGrowth,
	LineCOGS,
	LineSGA,
	LineSGASavings,
	LineCOGSSavings,
	LineMfgOHSavings,
	LineSynergies,
}

type Decision struct {
	ID            int                    `json:"id"`
	Name          string                 `json:"name"`
	Category      Category               `json:"category"`
	Cost          float64                `json:"cost"`
	DurationYears int                    `json:"duration_years"`
	IsRisky       bool                   `json:"is_risky"`
	CashFlows     map[LineItem][]float64 `json:"-"`
}

// Flow returns the decision's contribution to a line item at the given
// year offset. Decisions loaded through New always carry complete vectors.
func (d Decision) Flow(item LineItem, yearIdx int) float64 {
	return d.CashFlows[item][yearIdx]
}

// Catalog is the immutable decision table. Loaded once at process start
// and shared read-only; never mutated afterwards.
type Catalog struct {
	byID  map[int]Decision
	order []int
}

func New(decisions []Decision) (*Catalog, error) {
	c := &Catalog{byID: make(map[int]Decision, len(decisions))}
	for _, d := range decisions {
		if err := validateDecision(d); err != nil {
			return nil, fmt.Errorf("decision %d (%s): %w", d.ID, d.Name, err)
		}
		if _, dup := c.byID[d.ID]; dup {
			return nil, fmt.Errorf("duplicate decision id %d", d.ID)
		}
		c.byID[d.ID] = d
		c.order = append(c.order, d.ID)
	}
	if len(c.order) == 0 {
		return nil, fmt.Errorf("catalog is empty")
	}
	sort.Ints(c.order)
	return c, nil
}

func validateDecision(d Decision) error {
	if d.ID <= 0 {
		return fmt.Errorf("id must be positive")
	}
	if d.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !d.Category.Valid() {
		return fmt.Errorf("unknown category %q", d.Category)
	}
	if d.Cost < 0 {
		return fmt.Errorf("cost must be >= 0")
	}
	if d.DurationYears <= 0 || d.DurationYears > HorizonYears {
		return fmt.Errorf("duration_years must be in [1,%d]", HorizonYears)
	}
	if len(d.CashFlows) != len(AllLineItems) {
		return fmt.Errorf("expected %d cash-flow vectors, got %d", len(AllLineItems), len(d.CashFlows))
	}
	for _, item := range AllLineItems {
		v, ok := d.CashFlows[item]
		if !ok {
			return fmt.Errorf("missing cash-flow vector %q", item)
		}
		if len(v) != HorizonYears {
			return fmt.Errorf("vector %q has %d entries, want %d", item, len(v), HorizonYears)
		}
	}
	return nil
}

func (c *Catalog) Get(id int) (Decision, bool) {
	d, ok := c.byID[id]
	return d, ok
}

// All returns decisions ordered by id.
func (c *Catalog) All() []Decision {
	out := make([]Decision, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

func (c *Catalog) Len() int {
	return len(c.order)
}

// SustainIDs returns the ids of every sustain-category decision. Skipping
// these is what degrades future BAU growth.
func (c *Catalog) SustainIDs() []int {
	out := make([]int, 0, 3)
	for _, id := range c.order {
		if c.byID[id].Category == CategorySustain {
			out = append(out, id)
		}
	}
	return out
}

// TotalCost sums the cost of the given decision ids. Unknown ids count as
// zero; affordability checks happen against known catalog content only.
func (c *Catalog) TotalCost(ids []int) float64 {
	total := 0.0
	for _, id := range ids {
		if d, ok := c.byID[id]; ok {
			total += d.Cost
		}
	}
	return total
}
