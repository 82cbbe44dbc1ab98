package expense

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fkhayef/splitledger/internal/expense/split"
	"github.com/fkhayef/splitledger/internal/group"
)

// Common errors
var (
	ErrExpenseNotFound = errors.New("expense not found")
	ErrForbidden       = errors.New("not allowed to access this expense")
	ErrConflict        = errors.New("expense was changed by someone else, reload and try again")
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// Store is the persistence the expense service needs
type Store interface {
	Create(ctx context.Context, e *Expense) error
	GetByID(ctx context.Context, id string) (*Expense, error)
	ListByGroupID(ctx context.Context, groupID string, limit, offset int) ([]*Expense, int, error)
	// Update writes e only if the stored version still equals e.Version
	Update(ctx context.Context, e *Expense) error
	Delete(ctx context.Context, id string) error
}

// Groups answers group and membership questions
type Groups interface {
	GetGroup(ctx context.Context, id string) (*group.Group, error)
	IsMember(ctx context.Context, groupID, userID string) (bool, error)
}

// Service handles expense business logic
type Service struct {
	repo   Store
	groups Groups
	log    *logrus.Entry
	now    func() time.Time
}

// NewService creates a new expense service with dependencies injected
func NewService(repo Store, groups Groups, log *logrus.Entry) *Service {
	return &Service{
		repo:   repo,
		groups: groups,
		log:    log.WithField("component", "expense"),
		now:    time.Now,
	}
}

// Create records a new expense for a group the caller belongs to
func (s *Service) Create(ctx context.Context, callerID string, req *CreateExpenseRequest) (*Expense, error) {
	title := strings.TrimSpace(req.Title)
	if req.GroupID == "" || title == "" || req.Amount == nil || req.PayerID == "" || req.SplitType == "" {
		return nil, fmt.Errorf("%w: groupId, title, amount, payerId and splitType are required", split.ErrMissingFields)
	}
	if req.Amount.IsNegative() {
		return nil, split.ErrNegativeAmount
	}
	policy, err := split.ParsePolicy(req.SplitType)
	if err != nil {
		return nil, err
	}

	if _, err := s.requireMember(ctx, req.GroupID, callerID); err != nil {
		return nil, err
	}

	e := &Expense{
		ID:           uuid.NewString(),
		GroupID:      req.GroupID,
		Title:        title,
		Amount:       split.RoundMoney(*req.Amount),
		PayerID:      req.PayerID,
		Date:         s.now(),
		Category:     strings.TrimSpace(req.Category),
		SplitType:    policy,
		Participants: req.Participants,
		Notes:        req.Notes,
	}
	if req.Date != nil {
		e.Date = *req.Date
	}
	if e.Category == "" {
		e.Category = defaultCategory
	}

	if err := s.checkPayer(ctx, e); err != nil {
		return nil, err
	}
	if e.Participants, err = split.Normalize(e.SplitType, e.Amount, e.Participants); err != nil {
		return nil, err
	}
	if err := s.checkParticipants(ctx, e); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, e); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"expense_id": e.ID,
		"group_id":   e.GroupID,
		"split_type": e.SplitType,
	}).Info("expense created")
	return e, nil
}

// Modify applies a partial update. Only the group owner or the current payer
// may change an expense.
func (s *Service) Modify(ctx context.Context, callerID, id string, req *UpdateExpenseRequest) (*Expense, error) {
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireOwnerOrPayer(ctx, current, callerID); err != nil {
		return nil, err
	}
	if req.Version != nil && *req.Version != current.Version {
		return nil, ErrConflict
	}

	next := current.clone()
	if err := merge(next, req); err != nil {
		return nil, err
	}

	if err := s.checkPayer(ctx, next); err != nil {
		return nil, err
	}
	// EQUAL shares follow the amount and the id list on every write
	if next.SplitType == split.PolicyEqual || req.touchesSplit() {
		if next.Participants, err = split.Normalize(next.SplitType, next.Amount, next.Participants); err != nil {
			return nil, err
		}
	}
	if err := s.checkParticipants(ctx, next); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, next); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"expense_id": next.ID, "version": next.Version}).Info("expense modified")
	return next, nil
}

// Delete removes an expense permanently; group owner or payer only
func (s *Service) Delete(ctx context.Context, callerID, id string) error {
	current, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.requireOwnerOrPayer(ctx, current, callerID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.log.WithField("expense_id", id).Info("expense deleted")
	return nil
}

// Get retrieves an expense for a member of its group
func (s *Service) Get(ctx context.Context, callerID, id string) (*Expense, error) {
	e, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireMember(ctx, e.GroupID, callerID); err != nil {
		return nil, err
	}
	return e, nil
}

// Page is one slice of a group's expenses plus the paging it was cut with
type Page struct {
	Expenses []*Expense
	Page     int
	PerPage  int
	Total    int
}

// TotalPages is the number of pages at the page's size
func (p *Page) TotalPages() int {
	return (p.Total + p.PerPage - 1) / p.PerPage
}

// ListByGroup returns a page of a group's expenses, most recent date first.
// Out of range paging falls back to the first page of the default size.
func (s *Service) ListByGroup(ctx context.Context, callerID, groupID string, page, perPage int) (*Page, error) {
	if _, err := s.requireMember(ctx, groupID, callerID); err != nil {
		return nil, err
	}

	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > maxPerPage {
		perPage = defaultPerPage
	}

	expenses, total, err := s.repo.ListByGroupID(ctx, groupID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, err
	}
	return &Page{Expenses: expenses, Page: page, PerPage: perPage, Total: total}, nil
}

// Preview computes the payer's implied share before anything is saved. A
// successful preview submits cleanly as a Create with the same participants.
func (s *Service) Preview(ctx context.Context, callerID string, req *PreviewRequest) (*split.Preview, error) {
	if req.GroupID == "" || req.Amount == nil || req.PayerID == "" || req.SplitType == "" {
		return nil, fmt.Errorf("%w: groupId, amount, payerId and splitType are required", split.ErrMissingFields)
	}
	policy, err := split.ParsePolicy(req.SplitType)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireMember(ctx, req.GroupID, callerID); err != nil {
		return nil, err
	}

	preview, err := split.Project(split.Draft{
		Amount:  *req.Amount,
		Policy:  policy,
		PayerID: req.PayerID,
		Others:  req.Participants,
	})
	if err != nil {
		return nil, err
	}

	draft := &Expense{GroupID: req.GroupID, PayerID: req.PayerID, Participants: preview.Participants}
	if err := s.checkPayer(ctx, draft); err != nil {
		return nil, err
	}
	if err := s.checkParticipants(ctx, draft); err != nil {
		return nil, err
	}
	return preview, nil
}

// merge copies the supplied fields of req onto e
func merge(e *Expense, req *UpdateExpenseRequest) error {
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return fmt.Errorf("%w: title cannot be empty", split.ErrMissingFields)
		}
		e.Title = title
	}
	if req.Amount != nil {
		if req.Amount.IsNegative() {
			return split.ErrNegativeAmount
		}
		e.Amount = split.RoundMoney(*req.Amount)
	}
	if req.PayerID != nil {
		if *req.PayerID == "" {
			return fmt.Errorf("%w: payerId cannot be empty", split.ErrMissingFields)
		}
		e.PayerID = *req.PayerID
	}
	if req.SplitType != nil {
		policy, err := split.ParsePolicy(*req.SplitType)
		if err != nil {
			return err
		}
		e.SplitType = policy
	}
	if req.Participants != nil {
		e.Participants = *req.Participants
	}
	if req.Category != nil {
		e.Category = strings.TrimSpace(*req.Category)
		if e.Category == "" {
			e.Category = defaultCategory
		}
	}
	if req.Date != nil {
		e.Date = *req.Date
	}
	if req.Notes != nil {
		e.Notes = *req.Notes
	}
	return nil
}

func (s *Service) load(ctx context.Context, id string) (*Expense, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, ErrExpenseNotFound
	}
	return e, nil
}

func (s *Service) requireMember(ctx context.Context, groupID, callerID string) (*group.Group, error) {
	g, err := s.groups.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	ok, err := s.groups.IsMember(ctx, groupID, callerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrForbidden
	}
	return g, nil
}

// requireOwnerOrPayer authorizes against the stored record, never the proposed
// one. The caller must still belong to the group: a payer who has since been
// removed loses the right to change the expense.
func (s *Service) requireOwnerOrPayer(ctx context.Context, current *Expense, callerID string) error {
	g, err := s.requireMember(ctx, current.GroupID, callerID)
	if err != nil {
		return err
	}
	if !g.IsOwner(callerID) && current.PayerID != callerID {
		return ErrForbidden
	}
	return nil
}

func (s *Service) checkPayer(ctx context.Context, e *Expense) error {
	ok, err := s.groups.IsMember(ctx, e.GroupID, e.PayerID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", split.ErrPayerNotMember, e.PayerID)
	}
	return nil
}

func (s *Service) checkParticipants(ctx context.Context, e *Expense) error {
	for _, p := range e.Participants {
		ok, err := s.groups.IsMember(ctx, e.GroupID, p.MemberID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", split.ErrParticipantNotMember, p.MemberID)
		}
	}
	return nil
}
