package expense

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fkhayef/splitledger/internal/expense/split"
)

const defaultCategory = "General"

// Expense represents a shared expense recorded against a group
type Expense struct {
	ID           string              `json:"id"`
	GroupID      string              `json:"groupId"`
	Title        string              `json:"title"`
	Amount       decimal.Decimal     `json:"amount"`
	PayerID      string              `json:"payerId"`
	Date         time.Time           `json:"date"`
	Category     string              `json:"category"`
	SplitType    split.Policy        `json:"splitType"`
	Participants []split.Participant `json:"participants"`
	Notes        string              `json:"notes"`
	Version      int                 `json:"version"`
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
}

// clone returns a copy that can be modified without touching e
func (e *Expense) clone() *Expense {
	c := *e
	c.Participants = make([]split.Participant, len(e.Participants))
	copy(c.Participants, e.Participants)
	return &c
}
