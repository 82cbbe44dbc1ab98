package split

import "github.com/shopspring/decimal"

// =============================================================================
// EQUAL SPLIT STRATEGY
// Divides the expense evenly; the last participant absorbs the rounding remainder
// =============================================================================

// EqualStrategy implements the Strategy interface for equal splits
type EqualStrategy struct{}

// Type returns the policy identifier
func (s *EqualStrategy) Type() Policy {
	return PolicyEqual
}

// Validate has no sum rule for equal splits: stored shares always come from AllocateEqual
func (s *EqualStrategy) Validate(amount decimal.Decimal, participants []Participant) error {
	if len(participants) == 0 {
		return ErrNoParticipants
	}
	return nil
}

// Normalize discards any submitted shares and recomputes them from the amount
func (s *EqualStrategy) Normalize(amount decimal.Decimal, participants []Participant) ([]Participant, error) {
	if err := validateParticipants(stripShares(participants)); err != nil {
		return nil, err
	}
	allocated, err := AllocateEqual(amount, MemberIDs(participants))
	if err != nil {
		return nil, err
	}
	if err := s.Validate(amount, allocated); err != nil {
		return nil, err
	}
	return allocated, nil
}

// AllocateEqual divides amount among memberIDs in list order. Every member
// receives round(amount/count, 2) except the last, who receives whatever is
// left so the shares sum to amount exactly.
func AllocateEqual(amount decimal.Decimal, memberIDs []string) ([]Participant, error) {
	if len(memberIDs) == 0 {
		return nil, ErrNoParticipants
	}
	if amount.IsNegative() {
		return nil, ErrNegativeAmount
	}

	amount = RoundMoney(amount)
	count := decimal.NewFromInt(int64(len(memberIDs)))
	others := decimal.NewFromInt(int64(len(memberIDs) - 1))

	base := RoundMoney(amount.Div(count))
	// Rounding up can leave nothing for the last member (1.00 over 40 people).
	if base.Mul(others).GreaterThan(amount) {
		base = amount.Div(count).RoundDown(2)
	}
	last := RoundMoney(amount.Sub(base.Mul(others)))

	shares := make([]Participant, len(memberIDs))
	for i, id := range memberIDs {
		shares[i] = Participant{MemberID: id, Share: base}
	}
	shares[len(shares)-1].Share = last

	return shares, nil
}

// stripShares zeroes submitted shares so that garbage values on an equal
// split never trip the non-negative check
func stripShares(participants []Participant) []Participant {
	out := cloneParticipants(participants)
	for i := range out {
		out[i].Share = decimal.Zero
	}
	return out
}
