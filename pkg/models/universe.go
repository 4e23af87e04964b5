package models

// Universe is the fixed, ordered set of tradable symbols considered each
// cycle. The slice order is canonical: it is the tie-break key everywhere
// ranks or scores collide.
var Universe = []string{
	"BTCUSD", "ETHUSD", "SOLUSD", "ADAUSD", "DOGEUSD", "AVAXUSD",
	"LINKUSD", "MATICUSD", "DOTUSD", "LTCUSD", "BCHUSD", "XLMUSD",
	"ALGOUSD", "UNIUSD", "AAVEUSD", "MKRUSD",
}

var universeIndex = buildUniverseIndex()

func buildUniverseIndex() map[string]int {
	idx := make(map[string]int, len(Universe))
	for i, symbol := range Universe {
		idx[symbol] = i
	}
	return idx
}

// UniverseSize returns the number of symbols in the universe.
func UniverseSize() int {
	return len(Universe)
}

// UniverseIndex returns the canonical position of symbol in the universe,
// or -1 if the symbol is not part of it.
func UniverseIndex(symbol string) int {
	if i, ok := universeIndex[symbol]; ok {
		return i
	}
	return -1
}

// InUniverse reports whether symbol belongs to the universe.
func InUniverse(symbol string) bool {
	_, ok := universeIndex[symbol]
	return ok
}
