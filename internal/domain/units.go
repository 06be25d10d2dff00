package domain

// ContractMultiplier is the equity-option contract multiplier.
const ContractMultiplier = 100

// Points is a price denominated in option price points (per contract, per
// share). It is deliberately a distinct type from Dollars so that the two
// can never be mixed without an explicit conversion.
type Points float64

// Dollars is a cash amount. Positive means money received, negative means
// money paid, wherever a cashflow direction applies.
type Dollars float64

// Dollars converts a point price into dollars for a given contract count.
// This is the only sanctioned points→dollars conversion.
func (p Points) Dollars(contracts int) Dollars {
	return Dollars(float64(p) * ContractMultiplier * float64(contracts))
}
