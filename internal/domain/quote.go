package domain

// Quote is a bid/ask pair for a single contract.
type Quote struct {
	Bid Points
	Ask Points
}

// Valid reports whether the quote can be priced from.
// A quote is invalid when bid or ask is zero or negative, or when the
// market is crossed (bid > ask).
func (q Quote) Valid() bool {
	return q.Bid > 0 && q.Ask > 0 && q.Ask >= q.Bid
}

// Mid returns the midpoint price. ok is false for invalid quotes: a mid is
// never fabricated from a zero or crossed market.
func (q Quote) Mid() (Points, bool) {
	if !q.Valid() {
		return 0, false
	}
	return (q.Bid + q.Ask) / 2, true
}

// Spread returns ask − bid. Only meaningful for valid quotes.
func (q Quote) Spread() Points {
	return q.Ask - q.Bid
}
