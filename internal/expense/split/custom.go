package split

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CUSTOM SPLIT STRATEGY
// Each participant owes a specific amount; the amounts must sum to the total
// =============================================================================

// CustomStrategy implements the Strategy interface for custom amount splits
type CustomStrategy struct{}

// Type returns the policy identifier
func (s *CustomStrategy) Type() Policy {
	return PolicyCustom
}

// Validate checks that the shares sum to amount within one cent
func (s *CustomStrategy) Validate(amount decimal.Decimal, participants []Participant) error {
	if len(participants) == 0 {
		return ErrNoParticipants
	}

	total := sumShares(participants)
	if !within(total, amount, customTolerance) {
		return fmt.Errorf("%w (got %s, want %s)", ErrCustomSumMismatch, total.StringFixed(2), amount.StringFixed(2))
	}
	return nil
}

// Normalize rounds every share to cents, then validates the stored values
func (s *CustomStrategy) Normalize(amount decimal.Decimal, participants []Participant) ([]Participant, error) {
	if err := validateParticipants(participants); err != nil {
		return nil, err
	}
	out := cloneParticipants(participants)
	for i := range out {
		out[i].Share = RoundMoney(out[i].Share)
	}
	if err := s.Validate(amount, out); err != nil {
		return nil, err
	}
	return out, nil
}
