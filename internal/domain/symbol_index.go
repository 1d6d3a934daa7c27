package domain

// SymbolIndex maps symbols to their position in an ordered symbol list.
// It is built once per payload load so vectors and matrices are aligned by
// lookup rather than by assuming two lists happen to share an order.
type SymbolIndex struct {
	symbols []string
	pos     map[string]int
}

// NewSymbolIndex indexes symbols. On duplicates the first occurrence wins.
func NewSymbolIndex(symbols []string) *SymbolIndex {
	idx := &SymbolIndex{
		symbols: append([]string(nil), symbols...),
		pos:     make(map[string]int, len(symbols)),
	}
	for i, s := range symbols {
		if _, seen := idx.pos[s]; !seen {
			idx.pos[s] = i
		}
	}
	return idx
}

// Lookup returns the position of symbol.
func (x *SymbolIndex) Lookup(symbol string) (int, bool) {
	i, ok := x.pos[symbol]
	return i, ok
}

// Contains reports whether symbol is indexed.
func (x *SymbolIndex) Contains(symbol string) bool {
	_, ok := x.pos[symbol]
	return ok
}

// Len returns the number of indexed positions.
func (x *SymbolIndex) Len() int {
	return len(x.symbols)
}

// Symbols returns a copy of the ordered symbol list.
func (x *SymbolIndex) Symbols() []string {
	return append([]string(nil), x.symbols...)
}

// Align reorders values (keyed by symbol) into this index's order.
// Symbols without a value get 0.
func (x *SymbolIndex) Align(values map[string]float64) []float64 {
	out := make([]float64, len(x.symbols))
	for i, s := range x.symbols {
		out[i] = values[s]
	}
	return out
}
