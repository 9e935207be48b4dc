package symbols

import (
	"fmt"
	"slices"
)

// Compilation is the set of declarations edited in one generation together
// with what the target runtime provides.
type Compilation struct {
	symbols   map[string]*Symbol
	order     []string
	wellKnown map[string]bool
}

// NewCompilation indexes syms. wellKnown lists the attribute types whose
// constructors the target runtime exposes.
func NewCompilation(wellKnown []string, syms ...*Symbol) (*Compilation, error) {
	c := &Compilation{
		symbols:   make(map[string]*Symbol, len(syms)),
		wellKnown: make(map[string]bool, len(wellKnown)),
	}
	for _, name := range wellKnown {
		c.wellKnown[name] = true
	}
	for _, sym := range syms {
		if err := c.Add(sym); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Add declares one more symbol.
func (c *Compilation) Add(sym *Symbol) error {
	if sym == nil || sym.Key == "" {
		return fmt.Errorf("symbols: symbol without key")
	}
	if _, dup := c.symbols[sym.Key]; dup {
		return fmt.Errorf("symbols: duplicate symbol %q", sym.Key)
	}
	if sym.Kind.IsMember() && sym.Container == "" {
		return fmt.Errorf("symbols: %s %q has no containing type", sym.Kind, sym.Key)
	}
	c.symbols[sym.Key] = sym
	c.order = append(c.order, sym.Key)
	return nil
}

// Lookup finds a symbol by key.
func (c *Compilation) Lookup(key string) (*Symbol, bool) {
	sym, ok := c.symbols[key]
	return sym, ok
}

// Symbols lists symbols in declaration order.
func (c *Compilation) Symbols() []*Symbol {
	out := make([]*Symbol, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, c.symbols[key])
	}
	return out
}

// HasWellKnown reports whether the runtime exposes the attribute type.
func (c *Compilation) HasWellKnown(attribute string) bool { return c.wellKnown[attribute] }

// WellKnown lists the available attribute types in sorted order.
func (c *Compilation) WellKnown() []string {
	out := make([]string, 0, len(c.wellKnown))
	for name := range c.wellKnown {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}
