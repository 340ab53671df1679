package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is the static per-round market narrative shipped with the
// decision content. Budget is the capital each team may allocate that
// round; ExtraDecline is an additional market-wide growth decline the
// round contributes on top of skipped-sustain penalties (normally zero,
// raised by mid-round events such as a recession announcement).
type Scenario struct {
	Round        int     `yaml:"round" json:"round"`
	Headline     string  `yaml:"headline" json:"headline"`
	Narrative    string  `yaml:"narrative" json:"narrative"`
	Budget       float64 `yaml:"budget" json:"budget"`
	ExtraDecline float64 `yaml:"extra_decline" json:"extra_decline"`
}

// Content is the on-disk content shape (YAML). A content file replaces the
// built-in decisions and scenarios wholesale; there is no per-field merge.
type Content struct {
	Decisions []fileDecision `yaml:"decisions"`
	Scenarios []Scenario     `yaml:"scenarios"`
}

type fileDecision struct {
	ID            int                  `yaml:"id"`
	Name          string               `yaml:"name"`
	Category      string               `yaml:"category"`
	Cost          float64              `yaml:"cost"`
	DurationYears int                  `yaml:"duration_years"`
	IsRisky       bool                 `yaml:"is_risky"`
	CashFlows     map[string][]float64 `yaml:"cash_flows"`
}

// LoadFile reads decision and scenario content from a YAML file. Schema
// violations fail here, at startup, never at projection time.
func LoadFile(path string) (*Catalog, []Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	var content Content
	if err := yaml.Unmarshal(raw, &content); err != nil {
		return nil, nil, fmt.Errorf("parse content file: %w", err)
	}

	decisions := make([]Decision, 0, len(content.Decisions))
	for _, fd := range content.Decisions {
		d := Decision{
			ID:            fd.ID,
			Name:          fd.Name,
			Category:      Category(fd.Category),
			Cost:          fd.Cost,
			DurationYears: fd.DurationYears,
			IsRisky:       fd.IsRisky,
		}
		set := make(map[LineItem][]float64, len(fd.CashFlows))
		for key, vec := range fd.CashFlows {
			item := LineItem(key)
			if !knownLineItem(item) {
				return nil, nil, fmt.Errorf("decision %d: unknown line item %q", fd.ID, key)
			}
			set[item] = vec
		}
		// Line items a decision never touches may be omitted in the file.
		d.CashFlows = flows(set)
		decisions = append(decisions, d)
	}

	c, err := New(decisions)
	if err != nil {
		return nil, nil, err
	}
	if err := validateScenarios(content.Scenarios); err != nil {
		return nil, nil, err
	}
	return c, content.Scenarios, nil
}

func knownLineItem(item LineItem) bool {
	for _, known := range AllLineItems {
		if item == known {
			return true
		}
	}
	return false
}

func validateScenarios(scenarios []Scenario) error {
	seen := map[int]bool{}
	for _, sc := range scenarios {
		if sc.Round <= 0 {
			return fmt.Errorf("scenario round must be positive, got %d", sc.Round)
		}
		if seen[sc.Round] {
			return fmt.Errorf("duplicate scenario for round %d", sc.Round)
		}
		seen[sc.Round] = true
		if sc.Budget < 0 {
			return fmt.Errorf("scenario round %d: budget must be >= 0", sc.Round)
		}
	}
	return nil
}

// BuiltinScenarios returns the default five-round market narrative.
func BuiltinScenarios() []Scenario {
	return []Scenario{
		{Round: 1, Headline: "Steady Open", Narrative: "Stable demand and easy credit. Analysts expect disciplined reinvestment.", Budget: 200},
		{Round: 2, Headline: "Input Cost Squeeze", Narrative: "Raw material prices climb; efficiency programs are rewarded.", Budget: 150},
		{Round: 3, Headline: "Competitor Consolidation", Narrative: "A rival merger puts growth bets back on the table.", Budget: 200},
		{Round: 4, Headline: "Soft Demand", Narrative: "Order books thin out. The market punishes neglected fundamentals.", Budget: 150},
		{Round: 5, Headline: "Recovery Window", Narrative: "Demand rebounds. The final year decides the ranking.", Budget: 250},
	}
}
