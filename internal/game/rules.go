package game

// DefaultDealerStandsAt is the total at which the dealer stops drawing.
const DefaultDealerStandsAt = 16

// Rules are the house rules applied by the engine and at settlement.
type Rules struct {
	// DealerStandsAt: the dealer draws while its total is strictly below it.
	DealerStandsAt int
	// DealerBustLoses makes a busted dealer lose to any surviving hand. When
	// false a dealer total above every survivor wins even if it is over 21.
	DealerBustLoses bool
}

// DefaultRules returns the table's standard rules.
func DefaultRules() Rules {
	return Rules{DealerStandsAt: DefaultDealerStandsAt}
}

// withDefaults fills zero fields.
func (r Rules) withDefaults() Rules {
	if r.DealerStandsAt <= 0 {
		r.DealerStandsAt = DefaultDealerStandsAt
	}
	return r
}

// DealerWins decides the round between the dealer and the standings of the
// seated players. A tie on total goes to the dealer only when it used fewer
// cards than the tying hands.
func (r Rules) DealerWins(st Standings, dealerTotal, dealerCards int) bool {
	if !st.HasSurvivors() {
		return true
	}
	if r.DealerBustLoses && IsBust(dealerTotal) {
		return false
	}
	if st.MaxTotal < dealerTotal {
		return true
	}
	return st.MaxTotal == dealerTotal && dealerCards < st.MaxCardsTotal
}
