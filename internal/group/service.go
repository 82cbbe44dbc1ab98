package group

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fkhayef/splitledger/internal/user"
)

// Common errors
var (
	ErrGroupNotFound       = errors.New("group not found")
	ErrMemberNotFound      = errors.New("member not found")
	ErrUserNotFound        = errors.New("user to add not found")
	ErrMemberAlreadyExists = errors.New("user is already a member of this group")
	ErrNotMember           = errors.New("not a member of this group")
	ErrNotOwner            = errors.New("only the group owner can perform this action")
	ErrCannotRemoveOwner   = errors.New("cannot remove the owner from the group")
	ErrInvalidGroup        = errors.New("group name is required")
	ErrInvalidRole         = errors.New("role must be admin or member")
)

const defaultCurrency = "INR"

// Store is the persistence the group service needs
type Store interface {
	Create(ctx context.Context, g *Group, owner *GroupMember) error
	GetByID(ctx context.Context, id string) (*Group, error)
	ListByUserID(ctx context.Context, userID string) ([]*Group, error)
	Update(ctx context.Context, id string, req *UpdateGroupRequest) (*Group, error)
	Delete(ctx context.Context, id string) error
	AddMember(ctx context.Context, m *GroupMember) (*GroupMember, error)
	GetMembers(ctx context.Context, groupID string) ([]*GroupMember, error)
	GetMember(ctx context.Context, groupID, userID string) (*GroupMember, error)
	UpdateMember(ctx context.Context, groupID, userID string, req *UpdateMemberRequest) (*GroupMember, error)
	RemoveMember(ctx context.Context, groupID, userID string) error
}

// UserDirectory resolves user accounts
type UserDirectory interface {
	GetByID(ctx context.Context, id string) (*user.User, error)
}

// Service handles group business logic
type Service struct {
	repo  Store
	users UserDirectory
	log   *logrus.Entry
}

// NewService creates a new group service
func NewService(repo Store, users UserDirectory, log *logrus.Entry) *Service {
	return &Service{repo: repo, users: users, log: log.WithField("component", "group")}
}

// Create creates a new group owned by the caller
func (s *Service) Create(ctx context.Context, callerID string, req *CreateGroupRequest) (*Group, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrInvalidGroup
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = defaultCurrency
	}

	displayName := strings.TrimSpace(req.DisplayName)
	if u, err := s.users.GetByID(ctx, callerID); err == nil && u != nil {
		displayName = u.Name
	} else if err != nil && !errors.Is(err, user.ErrUserNotFound) {
		return nil, err
	}
	if displayName == "" {
		displayName = "Owner"
	}

	g := &Group{
		ID:          uuid.NewString(),
		Name:        name,
		Description: req.Description,
		OwnerID:     callerID,
		Currency:    currency,
	}
	owner := &GroupMember{
		GroupID:     g.ID,
		UserID:      callerID,
		DisplayName: displayName,
		Role:        MemberRoleOwner,
	}
	if err := s.repo.Create(ctx, g, owner); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"group_id": g.ID, "owner_id": callerID}).Info("group created")
	return g, nil
}

// GetGroup retrieves a group by its ID without any authorization check
func (s *Service) GetGroup(ctx context.Context, id string) (*Group, error) {
	g, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, ErrGroupNotFound
	}
	return g, nil
}

// IsMember reports whether userID currently belongs to the group. It always
// reads the store so membership changes take effect immediately.
func (s *Service) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	m, err := s.repo.GetMember(ctx, groupID, userID)
	if err != nil {
		return false, err
	}
	return m != nil, nil
}

// GetWithMembers retrieves a group and its members for a member of the group
func (s *Service) GetWithMembers(ctx context.Context, callerID, id string) (*Group, []*GroupMember, error) {
	g, err := s.requireMember(ctx, callerID, id)
	if err != nil {
		return nil, nil, err
	}

	members, err := s.repo.GetMembers(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	return g, members, nil
}

// ListForUser retrieves all groups the caller belongs to
func (s *Service) ListForUser(ctx context.Context, callerID string) ([]*Group, error) {
	return s.repo.ListByUserID(ctx, callerID)
}

// Update modifies an existing group; owner only
func (s *Service) Update(ctx context.Context, callerID, id string, req *UpdateGroupRequest) (*Group, error) {
	if _, err := s.requireOwner(ctx, callerID, id); err != nil {
		return nil, err
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return nil, ErrInvalidGroup
	}

	g, err := s.repo.Update(ctx, id, req)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, ErrGroupNotFound
	}
	return g, nil
}

// Delete removes a group and cascades to its expenses; owner only
func (s *Service) Delete(ctx context.Context, callerID, id string) error {
	if _, err := s.requireOwner(ctx, callerID, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.log.WithField("group_id", id).Info("group deleted")
	return nil
}

// AddMember adds an existing user to a group; owner only
func (s *Service) AddMember(ctx context.Context, callerID, groupID string, req *AddMemberRequest) (*GroupMember, error) {
	if _, err := s.requireOwner(ctx, callerID, groupID); err != nil {
		return nil, err
	}

	role := req.Role
	if role == "" {
		role = MemberRoleMember
	}
	if !role.Valid() || role == MemberRoleOwner {
		return nil, ErrInvalidRole
	}

	u, err := s.users.GetByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	existing, err := s.repo.GetMember(ctx, groupID, req.UserID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrMemberAlreadyExists
	}

	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = u.Name
	}

	return s.repo.AddMember(ctx, &GroupMember{
		GroupID:     groupID,
		UserID:      req.UserID,
		DisplayName: displayName,
		Role:        role,
	})
}

// GetMembers retrieves all members of a group for a member of the group
func (s *Service) GetMembers(ctx context.Context, callerID, groupID string) ([]*GroupMember, error) {
	if _, err := s.requireMember(ctx, callerID, groupID); err != nil {
		return nil, err
	}
	return s.repo.GetMembers(ctx, groupID)
}

// UpdateMember changes a member's display name or role; owner only
func (s *Service) UpdateMember(ctx context.Context, callerID, groupID, userID string, req *UpdateMemberRequest) (*GroupMember, error) {
	g, err := s.requireOwner(ctx, callerID, groupID)
	if err != nil {
		return nil, err
	}
	if req.Role != nil {
		if !req.Role.Valid() || *req.Role == MemberRoleOwner || g.IsOwner(userID) {
			return nil, ErrInvalidRole
		}
	}

	m, err := s.repo.UpdateMember(ctx, groupID, userID, req)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrMemberNotFound
	}
	return m, nil
}

// RemoveMember removes a user from a group; owner only, and never the owner
func (s *Service) RemoveMember(ctx context.Context, callerID, groupID, userID string) error {
	g, err := s.requireOwner(ctx, callerID, groupID)
	if err != nil {
		return err
	}
	if g.IsOwner(userID) {
		return ErrCannotRemoveOwner
	}
	return s.repo.RemoveMember(ctx, groupID, userID)
}

func (s *Service) requireMember(ctx context.Context, callerID, groupID string) (*Group, error) {
	g, err := s.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	ok, err := s.IsMember(ctx, groupID, callerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotMember
	}
	return g, nil
}

func (s *Service) requireOwner(ctx context.Context, callerID, groupID string) (*Group, error) {
	g, err := s.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !g.IsOwner(callerID) {
		return nil, ErrNotOwner
	}
	return g, nil
}
