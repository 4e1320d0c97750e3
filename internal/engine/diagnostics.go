package engine

// QuantityChange records one size's movement within a single reducer step.
type QuantityChange struct {
	Before int  `json:"before"`
	Added  int  `json:"added"`
	After  int  `json:"after"`
	Rest   bool `json:"rest,omitempty"`
}

// Diagnostics records every size and color token a reducer step matched,
// plus any warnings. It feeds observability and the edit-replay audit
// trail; it never influences the resulting state.
type Diagnostics struct {
	ParsedSizes   []string                  `json:"parsed_sizes"`
	ParsedColors  []string                  `json:"parsed_colors"`
	Quantities    map[string]QuantityChange `json:"quantities,omitempty"`
	TargetVariant string                    `json:"target_variant,omitempty"`
	Warnings      []string                  `json:"warnings,omitempty"`
}

func newDiagnostics() Diagnostics {
	return Diagnostics{
		ParsedSizes:  []string{},
		ParsedColors: []string{},
		Quantities:   map[string]QuantityChange{},
	}
}

// recordAdd accumulates an additive quantity change for a size.
func (d *Diagnostics) recordAdd(size string, before, added int) {
	change, ok := d.Quantities[size]
	if !ok {
		change = QuantityChange{Before: before}
	}
	change.Added += added
	change.After = before + change.Added
	d.Quantities[size] = change
}

// recordRest records a "rest" assignment, which replaces rather than adds.
func (d *Diagnostics) recordRest(size string, before, value int) {
	d.Quantities[size] = QuantityChange{
		Before: before,
		Added:  value - before,
		After:  value,
		Rest:   true,
	}
}
