package workflowctl

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/raids-lab/capstone/dao/model"
)

func student(id uint) Actor {
	return Actor{ID: id, Name: "student", Role: model.RoleStudent}
}

func studentUser(id uint) *model.User {
	u := &model.User{Name: "student", Role: model.RoleStudent, Status: model.UserStatusActive}
	u.ID = id
	return u
}

func newTeamFixture(t *testing.T) (*TeamController, *fakeTeamStore) {
	t.Helper()
	teams := newFakeTeamStore()
	return NewTeamController(teams), teams
}

func TestCreateTeam(t *testing.T) {
	ctx := context.Background()
	ctl, _ := newTeamFixture(t)

	team, err := ctl.CreateTeam(ctx, "alpha", 4, student(1))
	require.NoError(t, err)
	require.Equal(t, model.TeamStatusForming, team.Status)
	require.Equal(t, uint(1), team.LeaderID)

	loaded, err := ctl.TeamOf(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, 1, loaded.AcceptedCount())
	require.Equal(t, model.MembershipRoleLeader, loaded.Memberships[0].Role)
}

func TestCreateTeamRejections(t *testing.T) {
	ctx := context.Background()
	ctl, _ := newTeamFixture(t)

	_, err := ctl.CreateTeam(ctx, "alpha", 4, Actor{ID: 9, Role: model.RoleAdviser})
	requireReason(t, err, ReasonUnauthorized)

	_, err = ctl.CreateTeam(ctx, "alpha", 1, student(1))
	requireReason(t, err, ReasonInvalidArgument)

	_, err = ctl.CreateTeam(ctx, "alpha", 4, student(1))
	require.NoError(t, err)

	// founding a second team while the first is active
	_, err = ctl.CreateTeam(ctx, "beta", 4, student(1))
	requireReason(t, err, ReasonAlreadyInTeam)
}

func requireReason(t *testing.T, err error, want Reason) {
	t.Helper()
	require.Error(t, err)
	got, ok := ReasonOf(err)
	require.True(t, ok, "expected a workflow error, got %v", err)
	require.Equal(t, want, got)
}

func TestInvite(t *testing.T) {
	ctx := context.Background()
	ctl, _ := newTeamFixture(t)
	team, err := ctl.CreateTeam(ctx, "alpha", 3, student(1))
	require.NoError(t, err)

	m, err := ctl.Invite(ctx, team.ID, studentUser(2), student(1))
	require.NoError(t, err)
	require.Equal(t, model.MembershipStatusPending, m.Status)
	require.Equal(t, uint(1), m.InvitedByID)

	// inviting again while pending
	_, err = ctl.Invite(ctx, team.ID, studentUser(2), student(1))
	requireReason(t, err, ReasonAlreadyInvited)

	// only the leader invites
	_, err = ctl.Invite(ctx, team.ID, studentUser(3), student(2))
	requireReason(t, err, ReasonUnauthorized)

	// a non-student cannot be invited
	adviser := studentUser(4)
	adviser.Role = model.RoleAdviser
	_, err = ctl.Invite(ctx, team.ID, adviser, student(1))
	requireReason(t, err, ReasonInvalidArgument)

	_, err = ctl.Invite(ctx, 999, studentUser(5), student(1))
	requireReason(t, err, ReasonNotFound)
}

func TestInviteCapacity(t *testing.T) {
	ctx := context.Background()
	ctl, _ := newTeamFixture(t)
	// leader plus two slots
	team, err := ctl.CreateTeam(ctx, "alpha", 3, student(1))
	require.NoError(t, err)

	_, err = ctl.Invite(ctx, team.ID, studentUser(2), student(1))
	require.NoError(t, err)
	_, err = ctl.Invite(ctx, team.ID, studentUser(3), student(1))
	require.NoError(t, err)

	// pending invitations count against capacity
	_, err = ctl.Invite(ctx, team.ID, studentUser(4), student(1))
	requireReason(t, err, ReasonTeamFull)
}

func TestInviteReopensDeclined(t *testing.T) {
	ctx := context.Background()
	ctl, _ := newTeamFixture(t)
	team, err := ctl.CreateTeam(ctx, "alpha", 3, student(1))
	require.NoError(t, err)

	m, err := ctl.Invite(ctx, team.ID, studentUser(2), student(1))
	require.NoError(t, err)
	_, err = ctl.RespondInvitation(ctx, m.ID, false, student(2))
	require.NoError(t, err)

	reopened, err := ctl.Invite(ctx, team.ID, studentUser(2), student(1))
	require.NoError(t, err)
	require.Equal(t, m.ID, reopened.ID)
	require.Equal(t, model.MembershipStatusPending, reopened.Status)

	// the reopened invitation can be accepted
	accepted, err := ctl.RespondInvitation(ctx, reopened.ID, true, student(2))
	require.NoError(t, err)
	require.Equal(t, model.MembershipStatusAccepted, accepted.Status)
}

func TestRespondInvitation(t *testing.T) {
	ctx := context.Background()
	ctl, _ := newTeamFixture(t)
	team, err := ctl.CreateTeam(ctx, "alpha", 3, student(1))
	require.NoError(t, err)
	m, err := ctl.Invite(ctx, team.ID, studentUser(2), student(1))
	require.NoError(t, err)

	// only the addressee resolves it
	_, err = ctl.RespondInvitation(ctx, m.ID, true, student(3))
	requireReason(t, err, ReasonUnauthorized)

	accepted, err := ctl.RespondInvitation(ctx, m.ID, true, student(2))
	require.NoError(t, err)
	require.Equal(t, model.MembershipStatusAccepted, accepted.Status)
	require.NotNil(t, accepted.RespondedAt)

	// resolving twice
	_, err = ctl.RespondInvitation(ctx, m.ID, true, student(2))
	requireReason(t, err, ReasonAlreadyResolved)
	_, err = ctl.RespondInvitation(ctx, m.ID, false, student(2))
	requireReason(t, err, ReasonAlreadyResolved)
}

func TestRespondInvitationSingleActiveTeam(t *testing.T) {
	ctx := context.Background()
	ctl, _ := newTeamFixture(t)
	alpha, err := ctl.CreateTeam(ctx, "alpha", 3, student(1))
	require.NoError(t, err)
	beta, err := ctl.CreateTeam(ctx, "beta", 3, student(2))
	require.NoError(t, err)

	am, err := ctl.Invite(ctx, alpha.ID, studentUser(3), student(1))
	require.NoError(t, err)
	bm, err := ctl.Invite(ctx, beta.ID, studentUser(3), student(2))
	require.NoError(t, err)

	_, err = ctl.RespondInvitation(ctx, am.ID, true, student(3))
	require.NoError(t, err)

	// accepting the second invitation while already in alpha
	_, err = ctl.RespondInvitation(ctx, bm.ID, true, student(3))
	requireReason(t, err, ReasonAlreadyInTeam)

	// declining it is still fine
	declined, err := ctl.RespondInvitation(ctx, bm.ID, false, student(3))
	require.NoError(t, err)
	require.Equal(t, model.MembershipStatusDeclined, declined.Status)
}

func TestRespondInvitationConcurrent(t *testing.T) {
	ctx := context.Background()
	ctl, _ := newTeamFixture(t)
	team, err := ctl.CreateTeam(ctx, "alpha", 5, student(1))
	require.NoError(t, err)
	m, err := ctl.Invite(ctx, team.ID, studentUser(2), student(1))
	require.NoError(t, err)

	const n = 8
	var wg sync.WaitGroup
	results := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = ctl.RespondInvitation(ctx, m.ID, true, student(2))
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
		} else {
			reason, ok := ReasonOf(err)
			require.True(t, ok)
			// losers observe an already-resolved or already-in-team
			// rejection depending on interleaving
			require.Contains(t, []Reason{ReasonAlreadyResolved, ReasonAlreadyInTeam}, reason)
		}
	}
	require.Equal(t, 1, wins)
}

func TestLockTeam(t *testing.T) {
	ctx := context.Background()
	ctl, _ := newTeamFixture(t)
	team, err := ctl.CreateTeam(ctx, "alpha", 3, student(1))
	require.NoError(t, err)

	// leader alone is not enough
	_, err = ctl.LockTeam(ctx, team.ID, student(1))
	requireReason(t, err, ReasonInsufficientMembers)

	m, err := ctl.Invite(ctx, team.ID, studentUser(2), student(1))
	require.NoError(t, err)
	_, err = ctl.RespondInvitation(ctx, m.ID, true, student(2))
	require.NoError(t, err)

	// only the leader locks
	_, err = ctl.LockTeam(ctx, team.ID, student(2))
	requireReason(t, err, ReasonUnauthorized)

	locked, err := ctl.LockTeam(ctx, team.ID, student(1))
	require.NoError(t, err)
	require.Equal(t, model.TeamStatusLocked, locked.Status)

	// the lock is irreversible
	_, err = ctl.LockTeam(ctx, team.ID, student(1))
	requireReason(t, err, ReasonTeamNotForming)
	_, err = ctl.DissolveTeam(ctx, team.ID, student(1))
	requireReason(t, err, ReasonTeamNotForming)

	// a locked team accepts no new invitations
	_, err = ctl.Invite(ctx, team.ID, studentUser(3), student(1))
	requireReason(t, err, ReasonTeamNotForming)
}

func TestDissolveTeam(t *testing.T) {
	ctx := context.Background()
	ctl, teams := newTeamFixture(t)
	team, err := ctl.CreateTeam(ctx, "alpha", 3, student(1))
	require.NoError(t, err)

	dissolved, err := ctl.DissolveTeam(ctx, team.ID, student(1))
	require.NoError(t, err)
	require.Equal(t, model.TeamStatusDissolved, dissolved.Status)

	// membership rows survive for audit
	stored, err := teams.GetByID(ctx, team.ID)
	require.NoError(t, err)
	require.Len(t, stored.Memberships, 1)

	// the founder is free to start over
	_, err = ctl.CreateTeam(ctx, "beta", 3, student(1))
	require.NoError(t, err)
}

func TestTeamOfNone(t *testing.T) {
	ctx := context.Background()
	ctl, _ := newTeamFixture(t)
	team, err := ctl.TeamOf(ctx, 42)
	require.NoError(t, err)
	require.Nil(t, team)

	_, err = ctl.LockTeam(ctx, 7, student(1))
	requireReason(t, err, ReasonNotFound)
	require.NotErrorIs(t, err, gorm.ErrRecordNotFound)
}
