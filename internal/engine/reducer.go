package engine

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/textilio/intake/internal/catalog"
	"github.com/textilio/intake/internal/order"
	"github.com/textilio/intake/internal/textnorm"
)

// aliasPattern is a compiled word-boundary matcher for one vocabulary
// alias, carrying the canonical name it resolves to.
type aliasPattern struct {
	canonical string
	re        *regexp.Regexp
}

// sizeQtyPattern is one of the interchangeable size+quantity shapes.
// qtyFirst tells which capture group holds the number.
type sizeQtyPattern struct {
	re       *regexp.Regexp
	qtyFirst bool
}

// Reducer turns free-text chat messages into order state transitions.
// All matchers are compiled once from the catalog vocabulary; Apply is
// then a pure function safe for concurrent use.
type Reducer struct {
	cat *catalog.Catalog
	log *slog.Logger

	products      []aliasPattern
	sizeQty       []sizeQtyPattern
	rest          []*regexp.Regexp
	colorQty      []*regexp.Regexp
	colorBare     []*regexp.Regexp
	sizeToken     *regexp.Regexp
	bareInt       *regexp.Regexp
	budget        *regexp.Regexp
	techniques    []aliasPattern
	zones         []aliasPattern
	unlockPhrases []string
	disable       []string
}

// Option configures a Reducer.
type Option func(*Reducer)

// WithLogger sets the logger used for replay diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(r *Reducer) {
		r.log = log
	}
}

// NewReducer compiles the matchers for the given vocabulary.
func NewReducer(cat *catalog.Catalog, opts ...Option) (*Reducer, error) {
	r := &Reducer{
		cat:           cat,
		log:           slog.Default(),
		unlockPhrases: foldAll(cat.UnlockPhrases),
		disable:       foldAll(cat.DisablePhrases),
	}
	for _, opt := range opts {
		opt(r)
	}

	sizeAlt := sizeAlternation(cat.Sizes)
	prodAlt := productAlternation(cat.Products)

	var err error
	if r.products, err = compileProducts(cat.Products); err != nil {
		return nil, err
	}
	if r.sizeQty, err = compileSizeQty(sizeAlt); err != nil {
		return nil, err
	}
	if r.rest, err = compileRest(sizeAlt); err != nil {
		return nil, err
	}
	if r.colorQty, r.colorBare, err = compileColors(cat.Colors, prodAlt); err != nil {
		return nil, err
	}
	if r.sizeToken, err = regexp.Compile(`\b(` + sizeAlt + `)\b`); err != nil {
		return nil, fmt.Errorf("compile size token pattern: %w", err)
	}
	if r.bareInt, err = regexp.Compile(`^\d+$`); err != nil {
		return nil, fmt.Errorf("compile bare integer pattern: %w", err)
	}
	if r.budget, err = regexp.Compile(`\bbuget\s*(?:de\s*)?(\d+)`); err != nil {
		return nil, fmt.Errorf("compile budget pattern: %w", err)
	}
	if r.techniques, err = compileAliases(cat.Techniques); err != nil {
		return nil, err
	}
	if r.zones, err = compileAliases(cat.Zones); err != nil {
		return nil, err
	}

	return r, nil
}

// Apply interprets one user message against the accumulated state and
// returns the new state. The input state is never mutated.
//
// The only failing path is "rest" resolution against a variant with no
// remaining capacity; every other unmatched token is silently ignored.
// On failure the returned state is the zero value and must be discarded.
func (r *Reducer) Apply(st order.State, message string) (order.State, Diagnostics, error) {
	next := st.Clone()
	if next.Variants == nil {
		next.Variants = []order.Variant{}
	}
	folded := textnorm.Fold(message)
	diag := newDiagnostics()

	r.extractProductType(&next, folded)
	r.extractBudget(&next, folded)

	targetIdx := r.resolveTarget(&next, folded, &diag)

	r.extractSizeQuantities(&next, targetIdx, folded, &diag)

	if err := r.resolveRest(&next, targetIdx, folded, &diag); err != nil {
		return order.State{}, diag, err
	}

	r.detectVariants(&next, folded, &diag)

	r.resolveShortAnswer(&next, targetIdx, st.LastQuestion, message, &diag)

	r.extractPersonalization(&next, targetIdx, folded)

	r.recompute(&next)

	return next, diag, nil
}

// extractProductType sets the product type once; later mentions never
// overwrite it.
func (r *Reducer) extractProductType(st *order.State, folded string) {
	if st.ProductType != "" {
		return
	}
	for _, p := range r.products {
		if p.re.MatchString(folded) {
			st.ProductType = p.canonical
			return
		}
	}
}

// extractBudget sets the budget once, first-writer-wins like the product
// type.
func (r *Reducer) extractBudget(st *order.State, folded string) {
	if st.Budget != nil {
		return
	}
	m := r.budget.FindStringSubmatch(folded)
	if m == nil {
		return
	}
	amount, err := strconv.Atoi(m[1])
	if err != nil || amount <= 0 {
		return
	}
	st.Budget = &amount
}

// resolveTarget determines which variant subsequent size and quantity
// tokens attach to, and returns its index (-1 when no target exists).
//
// Explicitly mentioning a color activates and locks it, so a color being
// configured across several turns is not redirected by stray color
// chatter. The lock is cleared by an unlock phrase or by the variant
// completing.
func (r *Reducer) resolveTarget(st *order.State, folded string, diag *Diagnostics) int {
	for _, phrase := range r.unlockPhrases {
		if strings.Contains(folded, phrase) {
			if st.ActiveVariant != "" || st.ActiveVariantLocked {
				diag.Warnings = append(diag.Warnings, "active variant released by unlock phrase")
			}
			st.ActiveVariant = ""
			st.ActiveVariantLocked = false
			break
		}
	}

	mentioned := r.firstColorMention(folded)

	switch {
	case st.ActiveVariantLocked && st.ActiveVariant != "":
		// Locked: color mentions do not redirect routing.

	case mentioned != "":
		if st.VariantIndex(mentioned) == -1 {
			st.Variants = append(st.Variants, order.NewVariant(mentioned))
			diag.ParsedColors = append(diag.ParsedColors, mentioned)
		}
		st.ActiveVariant = mentioned
		st.ActiveVariantLocked = true

	case st.ActiveVariant != "":
		// Keep the current target.

	default:
		// Fall back to the first variant with nothing assigned yet.
		for i := range st.Variants {
			if len(st.Variants[i].QuantitiesPerSize) == 0 {
				st.ActiveVariant = st.Variants[i].Color
				break
			}
		}
	}

	if st.ActiveVariant == "" {
		return -1
	}
	idx := st.VariantIndex(st.ActiveVariant)
	if idx == -1 {
		// Should not happen (invariant I4); drop the dangling reference.
		st.ActiveVariant = ""
		return -1
	}
	diag.TargetVariant = st.Variants[idx].Color
	return idx
}

// firstColorMention returns the canonical color of the earliest color
// alias in the message, or "" when no color is mentioned.
func (r *Reducer) firstColorMention(folded string) string {
	best := -1
	alias := ""
	for _, re := range r.colorBare {
		loc := re.FindStringSubmatchIndex(folded)
		if loc == nil {
			continue
		}
		if best == -1 || loc[0] < best {
			best = loc[0]
			alias = folded[loc[2]:loc[3]]
		}
	}
	if alias == "" {
		return ""
	}
	canonical, _ := r.cat.CanonicalColor(alias)
	return canonical
}

// extractSizeQuantities applies the three interchangeable size+quantity
// shapes and adds every match to the active variant. Adding, never
// replacing, is what makes partial information across turns safe.
func (r *Reducer) extractSizeQuantities(st *order.State, targetIdx int, folded string, diag *Diagnostics) {
	if targetIdx < 0 {
		return
	}
	v := &st.Variants[targetIdx]

	// The shapes overlap on glued forms like "m10"; count each
	// occurrence once by its start offset.
	seen := map[int]bool{}

	for _, p := range r.sizeQty {
		for _, m := range p.re.FindAllStringSubmatchIndex(folded, -1) {
			if seen[m[0]] {
				continue
			}

			first := folded[m[2]:m[3]]
			second := folded[m[4]:m[5]]
			var qtyText, sizeText string
			if p.qtyFirst {
				qtyText, sizeText = first, second
			} else {
				sizeText, qtyText = first, second
			}

			size, ok := r.cat.CanonicalSize(sizeText)
			if !ok {
				continue
			}
			qty, err := strconv.Atoi(qtyText)
			if err != nil || qty <= 0 {
				continue
			}

			seen[m[0]] = true
			before := v.QuantitiesPerSize[size]
			v.QuantitiesPerSize[size] = before + qty
			diag.ParsedSizes = append(diag.ParsedSizes, size)
			diag.recordAdd(size, before, qty)
		}
	}
}

// resolveRest handles "restul L" / "L rest": assign whatever remains of
// the declared total to the named size. Only evaluated when the active
// variant has a declared total. A non-positive remainder means the order
// contradicts itself and the step fails.
func (r *Reducer) resolveRest(st *order.State, targetIdx int, folded string, diag *Diagnostics) error {
	if targetIdx < 0 {
		return nil
	}
	v := &st.Variants[targetIdx]
	if v.TotalQuantity == nil {
		return nil
	}

	for _, re := range r.rest {
		for _, m := range re.FindAllStringSubmatch(folded, -1) {
			size, ok := r.cat.CanonicalSize(m[1])
			if !ok {
				continue
			}

			assigned := v.AssignedTotal()
			remaining := *v.TotalQuantity - assigned
			if remaining <= 0 {
				v.Error = order.ErrOverCapacity
				diag.Warnings = append(diag.Warnings,
					fmt.Sprintf("cannot assign rest to %s: already at capacity", size))
				return newOverCapacityError(v.Color, size, assigned, *v.TotalQuantity)
			}

			before := v.QuantitiesPerSize[size]
			v.QuantitiesPerSize[size] = remaining
			diag.ParsedSizes = append(diag.ParsedSizes, size+" (rest)")
			diag.recordRest(size, before, remaining)
		}
	}

	return nil
}

// detectVariants scans for "<n> [de] [product] <color>" declarations and
// bare color mentions. Declarations set the color's total; bare mentions
// create placeholder variants awaiting configuration. A canonical color
// appears at most once in the variant list.
func (r *Reducer) detectVariants(st *order.State, folded string, diag *Diagnostics) {
	for _, re := range r.colorQty {
		for _, m := range re.FindAllStringSubmatch(folded, -1) {
			canonical, ok := r.cat.CanonicalColor(m[2])
			if !ok {
				continue
			}
			qty, err := strconv.Atoi(m[1])
			if err != nil || qty <= 0 {
				continue
			}

			if idx := st.VariantIndex(canonical); idx >= 0 {
				total := qty
				st.Variants[idx].TotalQuantity = &total
				continue
			}

			v := order.NewVariant(canonical)
			total := qty
			v.TotalQuantity = &total
			st.Variants = append(st.Variants, v)
			diag.ParsedColors = append(diag.ParsedColors, canonical)
		}
	}

	for _, re := range r.colorBare {
		m := re.FindStringSubmatch(folded)
		if m == nil {
			continue
		}
		canonical, ok := r.cat.CanonicalColor(m[1])
		if !ok || st.VariantIndex(canonical) != -1 {
			continue
		}
		st.Variants = append(st.Variants, order.NewVariant(canonical))
		diag.ParsedColors = append(diag.ParsedColors, canonical)
	}
}

// resolveShortAnswer routes a bare-number reply to the size the previous
// assistant question asked about. Size tokens in the question are matched
// on word boundaries so "mărimea" does not read as size M.
func (r *Reducer) resolveShortAnswer(st *order.State, targetIdx int, lastQuestion, message string, diag *Diagnostics) {
	trimmed := strings.TrimSpace(message)
	if targetIdx < 0 || lastQuestion == "" || !r.bareInt.MatchString(trimmed) {
		return
	}
	qty, err := strconv.Atoi(trimmed)
	if err != nil || qty <= 0 {
		return
	}

	v := &st.Variants[targetIdx]
	foldedQ := textnorm.Fold(lastQuestion)
	added := map[string]bool{}
	for _, token := range r.sizeToken.FindAllString(foldedQ, -1) {
		size, ok := r.cat.CanonicalSize(token)
		if !ok || added[size] {
			continue
		}
		added[size] = true
		before := v.QuantitiesPerSize[size]
		v.QuantitiesPerSize[size] = before + qty
		diag.ParsedSizes = append(diag.ParsedSizes, size+" (short answer)")
		diag.recordAdd(size, before, qty)
	}
}

// extractPersonalization fills the active variant's personalization from
// technique and zone mentions; a disable phrase clears it.
func (r *Reducer) extractPersonalization(st *order.State, targetIdx int, folded string) {
	if targetIdx < 0 {
		return
	}
	v := &st.Variants[targetIdx]

	for _, phrase := range r.disable {
		if strings.Contains(folded, phrase) {
			v.Personalization = order.Personalization{}
			return
		}
	}

	for _, ap := range r.techniques {
		if ap.re.MatchString(folded) {
			v.Personalization.Enabled = true
			v.Personalization.Technique = ap.canonical
			break
		}
	}
	for _, ap := range r.zones {
		if ap.re.MatchString(folded) {
			v.Personalization.Enabled = true
			v.Personalization.Zone = ap.canonical
			break
		}
	}
}

// recompute rederives isComplete/error/remaining for every variant from
// its quantities. Derived fields are never set anywhere else. A variant
// with assigned sizes but no declared total adopts the sum as its total
// the first time the sum is positive.
func (r *Reducer) recompute(st *order.State) {
	activeFolded := textnorm.Fold(st.ActiveVariant)

	for i := range st.Variants {
		v := &st.Variants[i]
		assigned := v.AssignedTotal()

		if assigned > 0 && v.TotalQuantity == nil {
			total := assigned
			v.TotalQuantity = &total
		}

		v.IsComplete = false
		v.Error = ""
		v.Remaining = 0

		if v.TotalQuantity == nil || assigned == 0 {
			continue
		}

		switch {
		case assigned == *v.TotalQuantity:
			v.IsComplete = true
			if textnorm.Fold(v.Color) == activeFolded {
				// The active color is fully configured; release routing
				// for the next color.
				st.ActiveVariantLocked = false
			}
		case assigned > *v.TotalQuantity:
			v.Error = order.ErrOverCapacity
		default:
			v.Remaining = *v.TotalQuantity - assigned
		}
	}
}

// sizeAlternation builds a regex alternation of folded size tokens,
// longest first so "xl" never shadows "xxl".
func sizeAlternation(sizes []string) string {
	folded := foldAll(sizes)
	sort.SliceStable(folded, func(i, j int) bool {
		return len(folded[i]) > len(folded[j])
	})
	quoted := make([]string, len(folded))
	for i, s := range folded {
		quoted[i] = regexp.QuoteMeta(s)
	}
	return strings.Join(quoted, "|")
}

// productAlternation builds a non-capturing alternation of all product
// patterns, used inside the color-quantity shape.
func productAlternation(products []catalog.Product) string {
	var quoted []string
	for _, p := range products {
		for _, pat := range p.Patterns {
			quoted = append(quoted, regexp.QuoteMeta(textnorm.Fold(pat)))
		}
	}
	sort.SliceStable(quoted, func(i, j int) bool {
		return len(quoted[i]) > len(quoted[j])
	})
	return strings.Join(quoted, "|")
}

func compileProducts(products []catalog.Product) ([]aliasPattern, error) {
	out := make([]aliasPattern, 0, len(products))
	for _, p := range products {
		quoted := make([]string, len(p.Patterns))
		for i, pat := range p.Patterns {
			quoted[i] = regexp.QuoteMeta(textnorm.Fold(pat))
		}
		sort.SliceStable(quoted, func(i, j int) bool {
			return len(quoted[i]) > len(quoted[j])
		})
		re, err := regexp.Compile(`\b(?:` + strings.Join(quoted, "|") + `)`)
		if err != nil {
			return nil, fmt.Errorf("compile product pattern for %s: %w", p.Name, err)
		}
		out = append(out, aliasPattern{canonical: p.Name, re: re})
	}
	return out, nil
}

func compileSizeQty(sizeAlt string) ([]sizeQtyPattern, error) {
	shapes := []struct {
		expr     string
		qtyFirst bool
	}{
		{`(\d+)\s*(` + sizeAlt + `)\b`, true},
		{`\b(` + sizeAlt + `)\s*:?\s*(\d+)`, false},
		{`\b(` + sizeAlt + `)(\d+)`, false},
	}

	out := make([]sizeQtyPattern, 0, len(shapes))
	for _, shape := range shapes {
		re, err := regexp.Compile(shape.expr)
		if err != nil {
			return nil, fmt.Errorf("compile size+quantity pattern %q: %w", shape.expr, err)
		}
		out = append(out, sizeQtyPattern{re: re, qtyFirst: shape.qtyFirst})
	}
	return out, nil
}

func compileRest(sizeAlt string) ([]*regexp.Regexp, error) {
	exprs := []string{
		`\b(?:restul|rest)\s+(` + sizeAlt + `)\b`,
		`\b(` + sizeAlt + `)\s+(?:restul|rest)\b`,
	}

	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, expr := range exprs {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("compile rest pattern %q: %w", expr, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// compileColors builds one pattern per alias with the alias itself
// captured; matches resolve to their canonical color through the
// catalog index.
func compileColors(colors []catalog.Alias, prodAlt string) (qty, bare []*regexp.Regexp, err error) {
	for _, color := range colors {
		for _, alias := range color.Aliases {
			quoted := regexp.QuoteMeta(textnorm.Fold(alias))

			qtyRe, err := regexp.Compile(`(\d+)\s*(?:de\s*)?(?:` + prodAlt + `)?\s*(` + quoted + `)\b`)
			if err != nil {
				return nil, nil, fmt.Errorf("compile color quantity pattern for %s: %w", alias, err)
			}
			qty = append(qty, qtyRe)

			bareRe, err := regexp.Compile(`\b(` + quoted + `)\b`)
			if err != nil {
				return nil, nil, fmt.Errorf("compile color pattern for %s: %w", alias, err)
			}
			bare = append(bare, bareRe)
		}
	}
	return qty, bare, nil
}

func compileAliases(aliases []catalog.Alias) ([]aliasPattern, error) {
	var out []aliasPattern
	for _, a := range aliases {
		for _, alias := range a.Aliases {
			re, err := regexp.Compile(`\b` + regexp.QuoteMeta(textnorm.Fold(alias)) + `\b`)
			if err != nil {
				return nil, fmt.Errorf("compile alias pattern for %s: %w", a.Name, err)
			}
			out = append(out, aliasPattern{canonical: a.Name, re: re})
		}
	}
	return out, nil
}

func foldAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = textnorm.Fold(s)
	}
	return out
}
