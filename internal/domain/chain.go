package domain

import (
	"sort"
	"time"
)

// OptionRight is the contract right: call or put.
type OptionRight string

const (
	Call OptionRight = "C"
	Put  OptionRight = "P"
)

// OptionContract is one listed contract inside a chain snapshot, with its
// quote as of the snapshot timestamp. The LastValid* fields carry the most
// recent mid observed while the quote was still valid, with the spot and
// date it was observed at; they are the only permitted fallback when the
// current quote is not valid.
type OptionContract struct {
	Symbol        string
	Strike        Points
	Expiry        time.Time
	Right         OptionRight
	Quote         Quote
	LastValidMid  Points    // 0 = never observed
	LastValidSpot Points    // spot when LastValidMid was observed
	LastValidAsOf time.Time // date when LastValidMid was observed
	Volume        int
	OpenInterest  int
}

// ChainSnapshot is an immutable option chain for one underlying at one
// historical timestamp. All strike and expiry enumeration goes through it;
// nothing downstream invents strikes.
type ChainSnapshot struct {
	Symbol    string
	AsOf      time.Time
	Spot      Points
	Contracts []OptionContract
}

// Expiries returns the distinct expiries in ascending order.
func (c ChainSnapshot) Expiries() []time.Time {
	seen := make(map[time.Time]bool)
	var out []time.Time
	for _, oc := range c.Contracts {
		if !seen[oc.Expiry] {
			seen[oc.Expiry] = true
			out = append(out, oc.Expiry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Strikes returns the distinct strikes listed for an expiry and right,
// ascending.
func (c ChainSnapshot) Strikes(expiry time.Time, right OptionRight) []Points {
	seen := make(map[Points]bool)
	var out []Points
	for _, oc := range c.Contracts {
		if oc.Right == right && oc.Expiry.Equal(expiry) && !seen[oc.Strike] {
			seen[oc.Strike] = true
			out = append(out, oc.Strike)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Contract looks up the contract for (expiry, strike, right). Strikes are
// matched by identity against the enumerated list, never by tolerance
// against a computed value.
func (c ChainSnapshot) Contract(expiry time.Time, strike Points, right OptionRight) (OptionContract, bool) {
	for _, oc := range c.Contracts {
		if oc.Right == right && oc.Strike == strike && oc.Expiry.Equal(expiry) {
			return oc, true
		}
	}
	return OptionContract{}, false
}
