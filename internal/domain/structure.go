package domain

import "time"

// StructureKind tags a structure as opened for a net credit or a net debit.
// The tag is fixed at construction; the cashflow sign convention downstream
// derives from it and from nothing else.
type StructureKind string

const (
	Credit StructureKind = "credit"
	Debit  StructureKind = "debit"
)

// LegSide is the position taken in a single leg.
type LegSide string

const (
	Long  LegSide = "long"
	Short LegSide = "short"
)

// Leg is one contract position inside a structure.
type Leg struct {
	Contract OptionContract
	Side     LegSide
	Ratio    int // contracts of this leg per structure unit, always ≥ 1
}

// StructureType names the shape of a multi-leg structure.
type StructureType string

const (
	CreditSpread StructureType = "credit_spread"
	DebitSpread  StructureType = "debit_spread"
	IronCondor   StructureType = "iron_condor"
)

// Structure is a fully specified, priced multi-leg option structure.
// All economics are in price points; dollar figures exist only once a
// contract count is known (see the *Dollars accessors).
type Structure struct {
	Type   StructureType
	Kind   StructureKind
	Symbol string
	Legs   []Leg
	Expiry time.Time

	// EntryPrice is the net credit received (Kind==Credit) or net debit
	// paid (Kind==Debit), always positive, in points.
	EntryPrice Points
	Width      Points
	MaxLoss    Points
	MaxProfit  Points
	Breakevens []Points

	// Delta is the net structure delta per contract unit (share-equivalent
	// per multiplier), kept separate from any dollar risk figure.
	Delta float64
}

// MaxLossDollars is the defined-risk loss bound for a given contract count.
func (s Structure) MaxLossDollars(contracts int) Dollars {
	return s.MaxLoss.Dollars(contracts)
}

// MaxProfitDollars is the profit bound for a given contract count.
func (s Structure) MaxProfitDollars(contracts int) Dollars {
	return s.MaxProfit.Dollars(contracts)
}

// EntryCashflow is the signed entry cashflow in dollars for a contract
// count: positive for credit structures, negative for debit structures.
// This is the single source of truth for downstream PnL arithmetic.
func (s Structure) EntryCashflow(contracts int) Dollars {
	if s.Kind == Credit {
		return s.EntryPrice.Dollars(contracts)
	}
	return -s.EntryPrice.Dollars(contracts)
}

// DTE returns whole days to expiry from the given as-of date.
func (s Structure) DTE(asOf time.Time) int {
	return int(s.Expiry.Sub(asOf).Hours() / 24)
}
