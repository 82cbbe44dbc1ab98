package split

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Draft is an expense as it is being entered: the payer plus the shares
// typed in for everyone else
type Draft struct {
	Amount  decimal.Decimal
	Policy  Policy
	PayerID string
	Others  []Participant
}

// Line is one participant's share expressed both as money and as a
// percentage of the total
type Line struct {
	MemberID string          `json:"userId"`
	Amount   decimal.Decimal `json:"amount"`
	Percent  decimal.Decimal `json:"percent"`
}

// Preview is the provisional allocation shown before submission
type Preview struct {
	Policy       Policy          `json:"splitType"`
	Amount       decimal.Decimal `json:"amount"`
	PayerID      string          `json:"payerId"`
	PayerShare   decimal.Decimal `json:"payerShare"`
	Participants []Participant   `json:"participants"`
	Breakdown    []Line          `json:"breakdown"`
}

// Project computes the payer's implied share and the full participant list
// that would be submitted. The payer is always the rest: listed last, taking
// the equal-split remainder or the complement of the entered shares.
func Project(d Draft) (*Preview, error) {
	if strings.TrimSpace(d.PayerID) == "" {
		return nil, fmt.Errorf("%w: payer is required", ErrMissingFields)
	}
	if d.Amount.IsNegative() {
		return nil, ErrNegativeAmount
	}
	strategy, err := defaultFactory.Create(d.Policy)
	if err != nil {
		return nil, err
	}
	for _, p := range d.Others {
		if p.MemberID == d.PayerID {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateParticipant, p.MemberID)
		}
	}

	amount := RoundMoney(d.Amount)
	var participants []Participant

	switch d.Policy {
	case PolicyEqual:
		ids := append(MemberIDs(d.Others), d.PayerID)
		participants, err = AllocateEqual(amount, ids)
		if err != nil {
			return nil, err
		}

	case PolicyPercentage:
		others := cloneParticipants(d.Others)
		complement := hundred.Sub(sumShares(others))
		if complement.IsNegative() {
			return nil, fmt.Errorf("%w (got %s)", ErrPercentagesExceedHundred, hundred.Sub(complement).String())
		}
		participants = append(others, Participant{MemberID: d.PayerID, Share: complement})

	case PolicyCustom:
		others := roundShares(d.Others)
		complement := amount.Sub(sumShares(others))
		if complement.IsNegative() {
			return nil, fmt.Errorf("%w (entered %s of %s)", ErrSharesExceedAmount,
				amount.Sub(complement).StringFixed(2), amount.StringFixed(2))
		}
		participants = append(others, Participant{MemberID: d.PayerID, Share: complement})
	}

	if err := validateParticipants(participants); err != nil {
		return nil, err
	}
	if err := strategy.Validate(amount, participants); err != nil {
		return nil, err
	}

	return &Preview{
		Policy:       d.Policy,
		Amount:       amount,
		PayerID:      d.PayerID,
		PayerShare:   participants[len(participants)-1].Share,
		Participants: participants,
		Breakdown:    Breakdown(d.Policy, amount, participants),
	}, nil
}

// Breakdown expresses each share as money and as a percentage of amount.
// Under PERCENTAGE the money column always sums to amount: a leftover cent
// goes to the last line, an overshoot is taken back a cent at a time from the
// largest lines so no line drops below zero.
func Breakdown(policy Policy, amount decimal.Decimal, participants []Participant) []Line {
	if len(participants) == 0 {
		return []Line{}
	}
	amount = RoundMoney(amount)
	lines := make([]Line, len(participants))

	switch policy {
	case PolicyPercentage:
		allocated := decimal.Zero
		for i, p := range participants {
			money := RoundMoney(amount.Mul(p.Share).Div(hundred))
			allocated = allocated.Add(money)
			lines[i] = Line{MemberID: p.MemberID, Amount: money, Percent: p.Share}
		}
		remainder := amount.Sub(allocated)
		if remainder.IsPositive() {
			last := &lines[len(lines)-1]
			last.Amount = last.Amount.Add(remainder)
		}
		for ; remainder.IsNegative(); remainder = remainder.Add(cent) {
			i := largestLine(lines)
			lines[i].Amount = lines[i].Amount.Sub(cent)
		}

	default:
		for i, p := range participants {
			percent := decimal.Zero
			if !amount.IsZero() {
				percent = p.Share.Mul(hundred).Div(amount).Round(2)
			}
			lines[i] = Line{MemberID: p.MemberID, Amount: RoundMoney(p.Share), Percent: percent}
		}
	}

	return lines
}

// largestLine picks the line with the most money, the later one on ties
func largestLine(lines []Line) int {
	best := len(lines) - 1
	for i := len(lines) - 2; i >= 0; i-- {
		if lines[i].Amount.GreaterThan(lines[best].Amount) {
			best = i
		}
	}
	return best
}

func roundShares(participants []Participant) []Participant {
	out := make([]Participant, len(participants), len(participants)+1)
	for i, p := range participants {
		out[i] = Participant{MemberID: p.MemberID, Share: RoundMoney(p.Share)}
	}
	return out
}
