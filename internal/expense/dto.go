package expense

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fkhayef/splitledger/internal/expense/split"
)

// CreateExpenseRequest represents the request to create an expense
type CreateExpenseRequest struct {
	GroupID      string              `json:"groupId" validate:"required"`
	Title        string              `json:"title" validate:"required,min=1,max=200"`
	Amount       *decimal.Decimal    `json:"amount" swaggertype:"number" validate:"required"`
	PayerID      string              `json:"payerId" validate:"required"`
	SplitType    string              `json:"splitType" validate:"required,oneof=EQUAL PERCENTAGE CUSTOM"`
	Participants []split.Participant `json:"participants" validate:"required,min=1"`
	Category     string              `json:"category,omitempty"`
	Date         *time.Time          `json:"date,omitempty"`
	Notes        string              `json:"notes,omitempty"`
}

// UpdateExpenseRequest represents a partial update. Absent fields keep
// their stored values.
type UpdateExpenseRequest struct {
	Title        *string              `json:"title,omitempty"`
	Amount       *decimal.Decimal     `json:"amount,omitempty" swaggertype:"number"`
	PayerID      *string              `json:"payerId,omitempty"`
	SplitType    *string              `json:"splitType,omitempty"`
	Participants *[]split.Participant `json:"participants,omitempty"`
	Category     *string              `json:"category,omitempty"`
	Date         *time.Time           `json:"date,omitempty"`
	Notes        *string              `json:"notes,omitempty"`

	// Version, when sent, must match the stored revision
	Version *int `json:"version,omitempty"`
}

// touchesSplit reports whether the update carries a field that affects the split
func (r *UpdateExpenseRequest) touchesSplit() bool {
	return r.Amount != nil || r.SplitType != nil || r.Participants != nil
}

// PreviewRequest is an expense being entered: the payer and the shares of
// everyone else
type PreviewRequest struct {
	GroupID      string              `json:"groupId" validate:"required"`
	Amount       *decimal.Decimal    `json:"amount" swaggertype:"number" validate:"required"`
	PayerID      string              `json:"payerId" validate:"required"`
	SplitType    string              `json:"splitType" validate:"required"`
	Participants []split.Participant `json:"participants"`
}

// ExpenseResponse represents the response for an expense
type ExpenseResponse struct {
	ID           string              `json:"id"`
	GroupID      string              `json:"groupId"`
	Title        string              `json:"title"`
	Amount       decimal.Decimal     `json:"amount" swaggertype:"number"`
	PayerID      string              `json:"payerId"`
	Date         string              `json:"date"`
	Category     string              `json:"category"`
	SplitType    split.Policy        `json:"splitType"`
	Participants []split.Participant `json:"participants"`
	Breakdown    []split.Line        `json:"breakdown"`
	Notes        string              `json:"notes"`
	Version      int                 `json:"version"`
	CreatedAt    string              `json:"createdAt"`
	UpdatedAt    string              `json:"updatedAt"`
}

// ToResponse converts an Expense model to an ExpenseResponse DTO
func (e *Expense) ToResponse() *ExpenseResponse {
	return &ExpenseResponse{
		ID:           e.ID,
		GroupID:      e.GroupID,
		Title:        e.Title,
		Amount:       e.Amount,
		PayerID:      e.PayerID,
		Date:         e.Date.UTC().Format(time.RFC3339),
		Category:     e.Category,
		SplitType:    e.SplitType,
		Participants: e.Participants,
		Breakdown:    split.Breakdown(e.SplitType, e.Amount, e.Participants),
		Notes:        e.Notes,
		Version:      e.Version,
		CreatedAt:    e.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:    e.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
