package split

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Policy defines how an expense total is divided among participants
type Policy string

const (
	PolicyEqual      Policy = "EQUAL"
	PolicyPercentage Policy = "PERCENTAGE"
	PolicyCustom     Policy = "CUSTOM"
)

// ParsePolicy converts a wire value into a Policy
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToUpper(strings.TrimSpace(s))); p {
	case PolicyEqual, PolicyPercentage, PolicyCustom:
		return p, nil
	default:
		return "", fmt.Errorf("%w: unknown split type %q", ErrInvalidInput, s)
	}
}

// Participant is one member's portion of an expense.
// Share is a percentage under PERCENTAGE and a money amount otherwise.
type Participant struct {
	MemberID string          `json:"userId"`
	Share    decimal.Decimal `json:"share"`
}

// Strategy is the interface that all split policies implement
type Strategy interface {
	// Type returns the policy this strategy handles
	Type() Policy

	// Normalize returns the participant list as it must be stored
	Normalize(amount decimal.Decimal, participants []Participant) ([]Participant, error)

	// Validate checks the aggregate invariant of the policy
	Validate(amount decimal.Decimal, participants []Participant) error
}

// Factory creates split strategies based on the requested policy
type Factory struct{}

// NewSplitStrategyFactory creates a new factory instance
func NewSplitStrategyFactory() *Factory {
	return &Factory{}
}

// Create returns the strategy implementation for the policy
func (f *Factory) Create(policy Policy) (Strategy, error) {
	switch policy {
	case PolicyEqual:
		return &EqualStrategy{}, nil
	case PolicyPercentage:
		return &PercentageStrategy{}, nil
	case PolicyCustom:
		return &CustomStrategy{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown split type %q", ErrInvalidInput, policy)
	}
}

var defaultFactory = NewSplitStrategyFactory()

// Normalize turns submitted participants into the authoritative stored list.
// EQUAL shares are always recomputed; the other policies are rounded and validated.
func Normalize(policy Policy, amount decimal.Decimal, participants []Participant) ([]Participant, error) {
	strategy, err := defaultFactory.Create(policy)
	if err != nil {
		return nil, err
	}
	if amount.IsNegative() {
		return nil, ErrNegativeAmount
	}
	return strategy.Normalize(RoundMoney(amount), participants)
}

// Validate checks participants against the policy. The first failing rule wins.
func Validate(policy Policy, amount decimal.Decimal, participants []Participant) error {
	strategy, err := defaultFactory.Create(policy)
	if err != nil {
		return err
	}
	if err := validateParticipants(participants); err != nil {
		return err
	}
	return strategy.Validate(amount, participants)
}

// MemberIDs returns the ids of participants in list order
func MemberIDs(participants []Participant) []string {
	ids := make([]string, len(participants))
	for i, p := range participants {
		ids[i] = p.MemberID
	}
	return ids
}

// validateParticipants applies the rules shared by every policy
func validateParticipants(participants []Participant) error {
	if len(participants) == 0 {
		return ErrNoParticipants
	}

	seen := make(map[string]struct{}, len(participants))
	for _, p := range participants {
		if strings.TrimSpace(p.MemberID) == "" {
			return fmt.Errorf("%w: participant id is required", ErrMissingFields)
		}
		if _, dup := seen[p.MemberID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateParticipant, p.MemberID)
		}
		seen[p.MemberID] = struct{}{}
	}

	for _, p := range participants {
		if p.Share.IsNegative() {
			return fmt.Errorf("%w: share of %s", ErrNegativeShare, p.MemberID)
		}
	}
	return nil
}

func cloneParticipants(participants []Participant) []Participant {
	out := make([]Participant, len(participants))
	copy(out, participants)
	return out
}

func sumShares(participants []Participant) decimal.Decimal {
	total := decimal.Zero
	for _, p := range participants {
		total = total.Add(p.Share)
	}
	return total
}
