package models

// Symbol maps a ticker to its display name
type Symbol struct {
	Ticker string
	Name   string
}

// Registry is the fixed, ordered set of symbols a process quotes
type Registry struct {
	symbols []Symbol
	names   map[string]string
}

func NewRegistry(symbols ...Symbol) *Registry {
	r := &Registry{
		symbols: make([]Symbol, 0, len(symbols)),
		names:   make(map[string]string, len(symbols)),
	}
	for _, s := range symbols {
		if _, dup := r.names[s.Ticker]; dup {
			continue
		}
		r.symbols = append(r.symbols, s)
		r.names[s.Ticker] = s.Name
	}
	return r
}

// DefaultRegistry returns the six demo symbols.
func DefaultRegistry() *Registry {
	return NewRegistry(
		Symbol{Ticker: "FB", Name: "Facebook"},
		Symbol{Ticker: "AMZN", Name: "Amazon"},
		Symbol{Ticker: "NFLX", Name: "Netflix"},
		Symbol{Ticker: "GOOGL", Name: "Google"},
		Symbol{Ticker: "MSFT", Name: "Microsoft"},
		Symbol{Ticker: "RHT", Name: "Red Hat"},
	)
}

func (r *Registry) Symbols() []Symbol {
	out := make([]Symbol, len(r.symbols))
	copy(out, r.symbols)
	return out
}

func (r *Registry) Tickers() []string {
	out := make([]string, len(r.symbols))
	for i, s := range r.symbols {
		out[i] = s.Ticker
	}
	return out
}

func (r *Registry) Name(ticker string) (string, bool) {
	name, ok := r.names[ticker]
	return name, ok
}

func (r *Registry) Contains(ticker string) bool {
	_, ok := r.names[ticker]
	return ok
}

func (r *Registry) Len() int { return len(r.symbols) }
