package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/raids-lab/capstone/dao/model"
)

type TeamStore interface {
	// Create inserts the team and its founding leader membership in one
	// transaction.
	Create(ctx context.Context, team *model.Team, leader *model.TeamMembership) error
	GetByID(ctx context.Context, id uint) (*model.Team, error)
	GetMembershipByID(ctx context.Context, id uint) (*model.TeamMembership, error)
	// ActiveMembershipForUser returns the user's accepted membership in a
	// forming or locked team, or nil when the user has none.
	ActiveMembershipForUser(ctx context.Context, userID uint) (*model.TeamMembership, error)
	PendingInvitationsForUser(ctx context.Context, userID uint) ([]model.TeamMembership, error)
	CreateMembership(ctx context.Context, m *model.TeamMembership) error
	// ResolveMembershipCAS moves a pending membership to the given status.
	// Returns false when the membership was already resolved.
	ResolveMembershipCAS(ctx context.Context, id uint, to model.MembershipStatus) (bool, error)
	// ReopenDeclined flips a declined membership back to pending so a
	// declined student can be invited again. Returns false when the row
	// is no longer declined.
	ReopenDeclined(ctx context.Context, id, invitedBy uint) (bool, error)
	CountAccepted(ctx context.Context, teamID uint) (int64, error)
	// TeamStatusCAS moves the team status. Returns false when the current
	// status is not `from`.
	TeamStatusCAS(ctx context.Context, id uint, from, to model.TeamStatus) (bool, error)
}

type teamStore struct {
	db *gorm.DB
}

func NewTeamStore(db *gorm.DB) TeamStore {
	return &teamStore{db: db}
}

func (s *teamStore) Create(ctx context.Context, team *model.Team, leader *model.TeamMembership) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(team).Error; err != nil {
			return err
		}
		leader.TeamID = team.ID
		return tx.Create(leader).Error
	})
}

func (s *teamStore) GetByID(ctx context.Context, id uint) (*model.Team, error) {
	var team model.Team
	err := s.db.WithContext(ctx).
		Preload("Memberships").
		Preload("Memberships.User").
		First(&team, id).Error
	if err != nil {
		return nil, err
	}
	return &team, nil
}

func (s *teamStore) GetMembershipByID(ctx context.Context, id uint) (*model.TeamMembership, error) {
	var m model.TeamMembership
	err := s.db.WithContext(ctx).
		Preload("Team").
		Preload("User").
		First(&m, id).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *teamStore) ActiveMembershipForUser(ctx context.Context, userID uint) (*model.TeamMembership, error) {
	var m model.TeamMembership
	err := s.db.WithContext(ctx).
		Joins("JOIN teams ON teams.id = team_memberships.team_id").
		Where("team_memberships.user_id = ?", userID).
		Where("team_memberships.status = ?", model.MembershipStatusAccepted).
		Where("teams.status IN ?", []model.TeamStatus{model.TeamStatusForming, model.TeamStatusLocked}).
		Preload("Team").
		First(&m).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *teamStore) PendingInvitationsForUser(ctx context.Context, userID uint) ([]model.TeamMembership, error) {
	var ms []model.TeamMembership
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, model.MembershipStatusPending).
		Preload("Team").
		Preload("Team.Leader").
		Order("created_at").
		Find(&ms).Error
	return ms, err
}

func (s *teamStore) CreateMembership(ctx context.Context, m *model.TeamMembership) error {
	return s.db.WithContext(ctx).Create(m).Error
}

func (s *teamStore) ResolveMembershipCAS(ctx context.Context, id uint, to model.MembershipStatus) (bool, error) {
	now := time.Now()
	res := s.db.WithContext(ctx).Model(&model.TeamMembership{}).
		Where("id = ? AND status = ?", id, model.MembershipStatusPending).
		Updates(map[string]any{"status": to, "responded_at": &now})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *teamStore) ReopenDeclined(ctx context.Context, id, invitedBy uint) (bool, error) {
	res := s.db.WithContext(ctx).Model(&model.TeamMembership{}).
		Where("id = ? AND status = ?", id, model.MembershipStatusDeclined).
		Updates(map[string]any{
			"status":        model.MembershipStatusPending,
			"invited_by_id": invitedBy,
			"responded_at":  nil,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *teamStore) CountAccepted(ctx context.Context, teamID uint) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&model.TeamMembership{}).
		Where("team_id = ? AND status = ?", teamID, model.MembershipStatusAccepted).
		Count(&n).Error
	return n, err
}

func (s *teamStore) TeamStatusCAS(ctx context.Context, id uint, from, to model.TeamStatus) (bool, error) {
	res := s.db.WithContext(ctx).Model(&model.Team{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
