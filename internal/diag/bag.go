package diag

import (
	"cmp"
	"slices"
)

// Bag collects the diagnostics of one generation up to a limit.
type Bag struct {
	items []Diagnostic
	limit int
}

// NewBag returns a bag keeping at most limit diagnostics; limit <= 0 means
// 0xFFFF.
func NewBag(limit int) *Bag {
	if limit <= 0 || limit > 0xFFFF {
		limit = 0xFFFF
	}
	return &Bag{items: make([]Diagnostic, 0, min(limit, 16)), limit: limit}
}

// Add appends d and reports false once the limit is reached.
func (b *Bag) Add(d Diagnostic) bool {
	if len(b.items) >= b.limit {
		return false
	}
	b.items = append(b.items, d)
	return true
}

// HasErrors reports whether any diagnostic is an error.
func (b *Bag) HasErrors() bool {
	return slices.ContainsFunc(b.items, func(d Diagnostic) bool { return d.Severity >= SevError })
}

// HasID reports whether a diagnostic with the printed code id is present.
func (b *Bag) HasID(id string) bool {
	if b == nil {
		return false
	}
	return slices.ContainsFunc(b.items, func(d Diagnostic) bool { return d.Code.ID() == id })
}

func (b *Bag) Len() int { return len(b.items) }

// Items returns the diagnostics. The slice aliases the bag.
func (b *Bag) Items() []Diagnostic { return b.items }

// Sort orders diagnostics by symbol, position, descending severity and code.
func (b *Bag) Sort() {
	slices.SortStableFunc(b.items, func(x, y Diagnostic) int {
		return cmp.Or(
			cmp.Compare(x.Primary.Symbol, y.Primary.Symbol),
			cmp.Compare(x.Primary.Position, y.Primary.Position),
			cmp.Compare(y.Severity, x.Severity),
			cmp.Compare(x.Code, y.Code),
		)
	})
}
