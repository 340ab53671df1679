package catalog

import "testing"

func TestBuiltinCatalog(t *testing.T) {
	c, err := Builtin()
	if err != nil {
		t.Fatalf("builtin: %v", err)
	}
	if c.Len() != 9 {
		t.Fatalf("expected 9 decisions, got %d", c.Len())
	}
	sustain := c.SustainIDs()
	if len(sustain) != 3 {
		t.Fatalf("expected 3 sustain decisions, got %v", sustain)
	}
	for _, d := range c.All() {
		for _, item := range AllLineItems {
			if len(d.CashFlows[item]) != HorizonYears {
				t.Fatalf("decision %d: vector %q has %d entries", d.ID, item, len(d.CashFlows[item]))
			}
		}
	}
}

func TestNewRejectsMalformedDecisions(t *testing.T) {
	base := func() Decision {
		return Decision{
			ID:            1,
			Name:          "Test",
			Category:      CategoryGrow,
			Cost:          10,
			DurationYears: 1,
			CashFlows:     flows(nil),
		}
	}

	tests := []struct {
		name   string
		mutate func(*Decision)
	}{
		{"zero id", func(d *Decision) { d.ID = 0 }},
		{"empty name", func(d *Decision) { d.Name = "" }},
		{"bad category", func(d *Decision) { d.Category = "expand" }},
		{"negative cost", func(d *Decision) { d.Cost = -1 }},
		{"zero duration", func(d *Decision) { d.DurationYears = 0 }},
		{"short vector", func(d *Decision) { d.CashFlows[LineRevenue] = []float64{1, 2, 3} }},
		{"missing vector", func(d *Decision) { delete(d.CashFlows, LineSynergies) }},
	}
	for _, tc := range tests {
		d := base()
		tc.mutate(&d)
		if _, err := New([]Decision{d}); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestNewRejectsDuplicateIDs(t *testing.T) {
	d := Decision{ID: 1, Name: "A", Category: CategoryGrow, Cost: 1, DurationYears: 1, CashFlows: flows(nil)}
	if _, err := New([]Decision{d, d}); err == nil {
		t.Fatalf("expected duplicate id error")
	}
}

func TestTotalCost(t *testing.T) {
	c, err := Builtin()
	if err != nil {
		t.Fatalf("builtin: %v", err)
	}
	got := c.TotalCost([]int{1, 5, 9})
	want := 40.0 + 9.0 + 7.0
	if got != want {
		t.Fatalf("total cost %v want %v", got, want)
	}
	// Unknown ids contribute nothing.
	if c.TotalCost([]int{999}) != 0 {
		t.Fatalf("unknown id should cost nothing")
	}
}

func TestBuiltinScenarios(t *testing.T) {
	scenarios := BuiltinScenarios()
	if len(scenarios) != 5 {
		t.Fatalf("expected 5 scenarios, got %d", len(scenarios))
	}
	for i, sc := range scenarios {
		if sc.Round != i+1 {
			t.Fatalf("scenario %d has round %d", i, sc.Round)
		}
		if sc.Budget <= 0 {
			t.Fatalf("round %d has non-positive budget %v", sc.Round, sc.Budget)
		}
		if sc.Headline == "" {
			t.Fatalf("round %d has no headline", sc.Round)
		}
	}
}
