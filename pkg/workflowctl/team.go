package workflowctl

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"k8s.io/klog/v2"

	"github.com/raids-lab/capstone/dao/model"
	"github.com/raids-lab/capstone/dao/store"
)

// minLockMembers is the smallest accepted-member count a team may lock
// with.
const minLockMembers = 2

// TeamController owns team formation: creation, invitations, and the
// irreversible lock that gates project creation.
type TeamController struct {
	teams store.TeamStore
}

func NewTeamController(teams store.TeamStore) *TeamController {
	return &TeamController{teams: teams}
}

// CreateTeam creates a forming team whose founder is its accepted
// leader. A student already holding an active membership cannot found
// another team.
func (ctl *TeamController) CreateTeam(ctx context.Context, name string, maxSize int,
	actor Actor) (*model.Team, error) {
	if actor.Role != model.RoleStudent {
		return nil, Errorf(ReasonUnauthorized, "only students create teams")
	}
	if maxSize < minLockMembers {
		return nil, Errorf(ReasonInvalidArgument, "maxSize must be at least %d, got %d", minLockMembers, maxSize)
	}
	active, err := ctl.teams.ActiveMembershipForUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, Errorf(ReasonAlreadyInTeam, "user %d already belongs to team %d", actor.ID, active.TeamID)
	}

	team := &model.Team{
		Name:     name,
		Status:   model.TeamStatusForming,
		LeaderID: actor.ID,
		MaxSize:  maxSize,
	}
	leader := &model.TeamMembership{
		UserID: actor.ID,
		Role:   model.MembershipRoleLeader,
		Status: model.MembershipStatusAccepted,
	}
	if err := ctl.teams.Create(ctx, team, leader); err != nil {
		return nil, err
	}
	klog.Infof("team %d created by user %d", team.ID, actor.ID)
	return team, nil
}

// Invite opens a pending membership for the invitee. Only the leader of
// a forming team may invite; a declined earlier invitation is reopened.
func (ctl *TeamController) Invite(ctx context.Context, teamID uint, invitee *model.User,
	actor Actor) (*model.TeamMembership, error) {
	team, err := ctl.getTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if team.LeaderID != actor.ID {
		return nil, Errorf(ReasonUnauthorized, "only the team leader invites members")
	}
	if team.Status != model.TeamStatusForming {
		return nil, Errorf(ReasonTeamNotForming, "team %d is %s", team.ID, team.Status)
	}
	if invitee.Role != model.RoleStudent {
		return nil, Errorf(ReasonInvalidArgument, "user %s is not a student", invitee.Name)
	}

	openSlots := 0
	var declined *model.TeamMembership
	for i := range team.Memberships {
		m := &team.Memberships[i]
		switch m.Status {
		case model.MembershipStatusPending, model.MembershipStatusAccepted:
			if m.UserID == invitee.ID {
				return nil, Errorf(ReasonAlreadyInvited,
					"user %s already has a %s membership in team %d", invitee.Name, m.Status, team.ID)
			}
			openSlots++
		case model.MembershipStatusDeclined:
			if m.UserID == invitee.ID {
				declined = m
			}
		}
	}
	if openSlots >= team.MaxSize {
		return nil, Errorf(ReasonTeamFull, "team %d has no open slots (max %d)", team.ID, team.MaxSize)
	}

	if declined != nil {
		ok, err := ctl.teams.ReopenDeclined(ctx, declined.ID, actor.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, Errorf(ReasonAlreadyInvited,
				"user %s already has a membership in team %d", invitee.Name, team.ID)
		}
		declined.Status = model.MembershipStatusPending
		declined.InvitedByID = actor.ID
		declined.Team = *team
		return declined, nil
	}

	m := &model.TeamMembership{
		TeamID:      team.ID,
		UserID:      invitee.ID,
		Role:        model.MembershipRoleMember,
		Status:      model.MembershipStatusPending,
		InvitedByID: actor.ID,
	}
	if err := ctl.teams.CreateMembership(ctx, m); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, Errorf(ReasonAlreadyInvited,
				"user %s already has a membership in team %d", invitee.Name, team.ID)
		}
		return nil, err
	}
	klog.Infof("team %d: user %d invited by leader %d", team.ID, invitee.ID, actor.ID)
	m.Team = *team
	return m, nil
}

// RespondInvitation resolves a pending invitation exactly once. A
// second responder observes AlreadyResolved; accepting while holding an
// active membership elsewhere is rejected to keep a user in at most one
// active team.
func (ctl *TeamController) RespondInvitation(ctx context.Context, invitationID uint,
	accept bool, actor Actor) (*model.TeamMembership, error) {
	m, err := ctl.getMembership(ctx, invitationID)
	if err != nil {
		return nil, err
	}
	if m.UserID != actor.ID {
		return nil, Errorf(ReasonUnauthorized, "invitation %d is not addressed to user %d", m.ID, actor.ID)
	}
	if m.Status != model.MembershipStatusPending {
		return nil, Errorf(ReasonAlreadyResolved, "invitation %d is already %s", m.ID, m.Status)
	}

	to := model.MembershipStatusDeclined
	if accept {
		if m.Team.Status != model.TeamStatusForming {
			return nil, Errorf(ReasonTeamNotForming, "team %d is %s", m.TeamID, m.Team.Status)
		}
		active, err := ctl.teams.ActiveMembershipForUser(ctx, actor.ID)
		if err != nil {
			return nil, err
		}
		if active != nil {
			return nil, Errorf(ReasonAlreadyInTeam,
				"user %d already belongs to team %d", actor.ID, active.TeamID)
		}
		accepted, err := ctl.teams.CountAccepted(ctx, m.TeamID)
		if err != nil {
			return nil, err
		}
		if accepted >= int64(m.Team.MaxSize) {
			return nil, Errorf(ReasonTeamFull, "team %d is full (max %d)", m.TeamID, m.Team.MaxSize)
		}
		to = model.MembershipStatusAccepted
	}

	ok, err := ctl.teams.ResolveMembershipCAS(ctx, m.ID, to)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, Errorf(ReasonAlreadyResolved, "invitation %d was resolved concurrently", m.ID)
	}
	klog.Infof("invitation %d resolved %s by user %d", m.ID, to, actor.ID)
	m.Status = to
	now := time.Now()
	m.RespondedAt = &now
	return m, nil
}

// LockTeam finalizes membership. Requires the leader and at least two
// accepted members; irreversible.
func (ctl *TeamController) LockTeam(ctx context.Context, teamID uint, actor Actor) (*model.Team, error) {
	team, err := ctl.getTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if team.LeaderID != actor.ID {
		return nil, Errorf(ReasonUnauthorized, "only the team leader locks the team")
	}
	if team.Status != model.TeamStatusForming {
		return nil, Errorf(ReasonTeamNotForming, "team %d is %s", team.ID, team.Status)
	}
	accepted, err := ctl.teams.CountAccepted(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if accepted < minLockMembers {
		return nil, Errorf(ReasonInsufficientMembers,
			"team %d has %d accepted members, needs at least %d", team.ID, accepted, minLockMembers)
	}

	ok, err := ctl.teams.TeamStatusCAS(ctx, team.ID, model.TeamStatusForming, model.TeamStatusLocked)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, Errorf(ReasonTeamNotForming, "team %d left forming state concurrently", team.ID)
	}
	klog.Infof("team %d locked by leader %d", team.ID, actor.ID)
	team.Status = model.TeamStatusLocked
	return team, nil
}

// DissolveTeam abandons a forming team. Leader only; membership rows
// are retained for audit.
func (ctl *TeamController) DissolveTeam(ctx context.Context, teamID uint, actor Actor) (*model.Team, error) {
	team, err := ctl.getTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if team.LeaderID != actor.ID {
		return nil, Errorf(ReasonUnauthorized, "only the team leader dissolves the team")
	}
	if team.Status != model.TeamStatusForming {
		return nil, Errorf(ReasonTeamNotForming, "team %d is %s", team.ID, team.Status)
	}
	ok, err := ctl.teams.TeamStatusCAS(ctx, team.ID, model.TeamStatusForming, model.TeamStatusDissolved)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, Errorf(ReasonTeamNotForming, "team %d left forming state concurrently", team.ID)
	}
	team.Status = model.TeamStatusDissolved
	return team, nil
}

// TeamOf returns the user's active team, or nil when the user has none.
func (ctl *TeamController) TeamOf(ctx context.Context, userID uint) (*model.Team, error) {
	active, err := ctl.teams.ActiveMembershipForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, nil
	}
	return ctl.getTeam(ctx, active.TeamID)
}

// InvitationsFor lists the user's open invitations.
func (ctl *TeamController) InvitationsFor(ctx context.Context, userID uint) ([]model.TeamMembership, error) {
	return ctl.teams.PendingInvitationsForUser(ctx, userID)
}

func (ctl *TeamController) getTeam(ctx context.Context, teamID uint) (*model.Team, error) {
	team, err := ctl.teams.GetByID(ctx, teamID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, Errorf(ReasonNotFound, "team %d not found", teamID)
	}
	if err != nil {
		return nil, err
	}
	return team, nil
}

func (ctl *TeamController) getMembership(ctx context.Context, id uint) (*model.TeamMembership, error) {
	m, err := ctl.teams.GetMembershipByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, Errorf(ReasonNotFound, "invitation %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}
