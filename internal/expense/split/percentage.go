package split

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PERCENTAGE SPLIT STRATEGY
// Each participant's share is a percentage; all of them must sum to 100
// =============================================================================

// PercentageStrategy implements the Strategy interface for percentage-based splits
type PercentageStrategy struct{}

// Type returns the policy identifier
func (s *PercentageStrategy) Type() Policy {
	return PolicyPercentage
}

// Validate checks that the percentages sum to 100 within 0.001
func (s *PercentageStrategy) Validate(amount decimal.Decimal, participants []Participant) error {
	if len(participants) == 0 {
		return ErrNoParticipants
	}

	total := sumShares(participants)
	if !within(total, hundred, percentageTolerance) {
		return fmt.Errorf("%w (got %s)", ErrPercentageSumMismatch, total.String())
	}
	return nil
}

// Normalize keeps the submitted percentages and validates them
func (s *PercentageStrategy) Normalize(amount decimal.Decimal, participants []Participant) ([]Participant, error) {
	if err := validateParticipants(participants); err != nil {
		return nil, err
	}
	out := cloneParticipants(participants)
	if err := s.Validate(amount, out); err != nil {
		return nil, err
	}
	return out, nil
}
