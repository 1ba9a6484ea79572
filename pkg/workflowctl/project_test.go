package workflowctl

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/raids-lab/capstone/dao/model"
)

func adviserOf(id uint) Actor {
	return Actor{ID: id, Name: "adviser", Role: model.RoleAdviser}
}

func coordinatorOf(id uint) Actor {
	return Actor{ID: id, Name: "coordinator", Role: model.RoleCoordinator}
}

type engineFixture struct {
	teams    *fakeTeamStore
	projects *fakeProjectStore
	chapters *fakeChapterStore

	teamCtl    *TeamController
	projectCtl *ProjectController
	chapterCtl *ChapterController
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	teams := newFakeTeamStore()
	projects := newFakeProjectStore(teams)
	chapters := newFakeChapterStore()
	return &engineFixture{
		teams:      teams,
		projects:   projects,
		chapters:   chapters,
		teamCtl:    NewTeamController(teams),
		projectCtl: NewProjectController(projects, teams, chapters),
		chapterCtl: NewChapterController(chapters, projects),
	}
}

// lockedTeam forms and locks a two-member team led by leaderID.
func (f *engineFixture) lockedTeam(t *testing.T, leaderID, memberID uint) *model.Team {
	t.Helper()
	ctx := context.Background()
	team, err := f.teamCtl.CreateTeam(ctx, "alpha", 4, student(leaderID))
	require.NoError(t, err)
	m, err := f.teamCtl.Invite(ctx, team.ID, studentUser(memberID), student(leaderID))
	require.NoError(t, err)
	_, err = f.teamCtl.RespondInvitation(ctx, m.ID, true, student(memberID))
	require.NoError(t, err)
	team, err = f.teamCtl.LockTeam(ctx, team.ID, student(leaderID))
	require.NoError(t, err)
	return team
}

func (f *engineFixture) proposal() model.ProposalContent {
	return model.ProposalContent{
		Abstract:   "An inventory system for the university motor pool.",
		Objectives: []string{"track vehicles", "schedule maintenance"},
		Scope:      "motor pool operations only",
	}
}

func TestCreateProject(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	f.lockedTeam(t, 1, 2)

	p, err := f.projectCtl.Create(ctx, "Motor Pool Tracker", f.proposal(), student(1))
	require.NoError(t, err)
	require.Equal(t, model.ProjectStatusProposed, p.Status)
	require.Equal(t, 1, p.CapstonePhase)
	require.Len(t, p.Members, 2)

	// one project per team, regardless of which member retries
	_, err = f.projectCtl.Create(ctx, "Second Try", f.proposal(), student(2))
	requireReason(t, err, ReasonProjectExists)
}

func TestCreateProjectRequiresLockedTeam(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	// no team at all
	_, err := f.projectCtl.Create(ctx, "Tracker", f.proposal(), student(1))
	requireReason(t, err, ReasonTeamNotReady)

	// forming team
	_, err = f.teamCtl.CreateTeam(ctx, "alpha", 4, student(1))
	require.NoError(t, err)
	_, err = f.projectCtl.Create(ctx, "Tracker", f.proposal(), student(1))
	requireReason(t, err, ReasonTeamNotReady)

	// only students create projects
	_, err = f.projectCtl.Create(ctx, "Tracker", f.proposal(), adviserOf(50))
	requireReason(t, err, ReasonUnauthorized)
}

func (f *engineFixture) proposedProject(t *testing.T) *model.Project {
	t.Helper()
	ctx := context.Background()
	f.lockedTeam(t, 1, 2)
	p, err := f.projectCtl.Create(ctx, "Tracker", f.proposal(), student(1))
	require.NoError(t, err)
	require.NoError(t, f.projectCtl.AssignAdviser(ctx, p.ID, adviserUser(50), coordinatorOf(90)))
	return p
}

func adviserUser(id uint) *model.User {
	u := &model.User{Name: "adviser", Role: model.RoleAdviser, Status: model.UserStatusActive}
	u.ID = id
	return u
}

func TestProjectLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	p := f.proposedProject(t)

	steps := []struct {
		to    model.ProjectStatus
		actor Actor
	}{
		{model.ProjectStatusAdviserReview, student(1)},
		{model.ProjectStatusRevisionRequired, adviserOf(50)},
		{model.ProjectStatusAdviserReview, student(2)},
		{model.ProjectStatusApprovedForDefense, adviserOf(50)},
	}
	for _, step := range steps {
		var err error
		p, err = f.projectCtl.Transition(ctx, p.ID, step.to, step.actor)
		require.NoError(t, err, "to %s", step.to)
		require.Equal(t, step.to, p.Status)
	}

	entries, err := f.projectCtl.WorkflowLog(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, entries, len(steps))
	for i, step := range steps {
		require.Equal(t, step.to, entries[i].ToStatus)
		require.Equal(t, step.actor.ID, entries[i].ActorID)
		require.NotEmpty(t, entries[i].RequestID)
	}
	// consecutive entries chain: each from-status is the previous
	// to-status
	for i := 1; i < len(entries); i++ {
		require.Equal(t, entries[i-1].ToStatus, entries[i].FromStatus)
	}
}

func TestTransitionRejectionLeavesProjectUnchanged(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	p := f.proposedProject(t)

	_, err := f.projectCtl.Transition(ctx, p.ID, model.ProjectStatusArchived, coordinatorOf(90))
	requireReason(t, err, ReasonInvalidTransition)

	reloaded, err := f.projectCtl.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, model.ProjectStatusProposed, reloaded.Status)

	entries, err := f.projectCtl.WorkflowLog(ctx, p.ID)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestTransitionConcurrent(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	p := f.proposedProject(t)

	const n = 8
	var wg sync.WaitGroup
	results := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = f.projectCtl.Transition(ctx, p.ID, model.ProjectStatusAdviserReview, student(1))
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
		} else {
			requireReason(t, err, ReasonInvalidTransition)
		}
	}
	require.Equal(t, 1, wins)

	entries, err := f.projectCtl.WorkflowLog(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestSubmitFinalDocument(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	p := f.proposedProject(t)
	var err error
	p, err = f.projectCtl.Transition(ctx, p.ID, model.ProjectStatusAdviserReview, student(1))
	require.NoError(t, err)
	p, err = f.projectCtl.Transition(ctx, p.ID, model.ProjectStatusApprovedForDefense, adviserOf(50))
	require.NoError(t, err)

	// outsiders cannot upload
	_, err = f.projectCtl.SubmitFinalDocument(ctx, p.ID, FinalDocAcademic, "file-a", "", "", student(7))
	requireReason(t, err, ReasonUnauthorized)

	// academic version alone does not complete the stage
	p, err = f.projectCtl.SubmitFinalDocument(ctx, p.ID, FinalDocAcademic, "file-a", "link-a", "", student(1))
	require.NoError(t, err)
	require.Equal(t, model.ProjectStatusApprovedForDefense, p.Status)
	require.Equal(t, model.DefenseVerdictPending, p.Capstone4.Data().Verdict)

	// journal version completes it and the project auto-submits
	p, err = f.projectCtl.SubmitFinalDocument(ctx, p.ID, FinalDocJournal, "file-j", "link-j", "submitted to IEEE", student(2))
	require.NoError(t, err)
	require.Equal(t, model.ProjectStatusFinalSubmitted, p.Status)
	require.True(t, p.Capstone4.Data().Complete())
	require.Equal(t, "submitted to IEEE", p.Capstone4.Data().CredentialsNote)

	_, err = f.projectCtl.SubmitFinalDocument(ctx, p.ID, "poster", "file-p", "", "", student(1))
	requireReason(t, err, ReasonInvalidArgument)
	_, err = f.projectCtl.SubmitFinalDocument(ctx, p.ID, FinalDocAcademic, "", "", "", student(1))
	requireReason(t, err, ReasonInvalidArgument)
}

func TestSubmitFinalDocumentConcurrent(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	p := f.proposedProject(t)
	var err error
	p, err = f.projectCtl.Transition(ctx, p.ID, model.ProjectStatusAdviserReview, student(1))
	require.NoError(t, err)
	p, err = f.projectCtl.Transition(ctx, p.ID, model.ProjectStatusApprovedForDefense, adviserOf(50))
	require.NoError(t, err)

	// Two members upload the academic and journal versions at the same
	// time. Neither write may clobber the other, and the completed stage
	// must auto-submit exactly once.
	uploads := []struct {
		kind   FinalDocKind
		fileID string
		actor  Actor
	}{
		{FinalDocAcademic, "file-a", student(1)},
		{FinalDocJournal, "file-j", student(2)},
	}
	start := make(chan struct{})
	errs := make(chan error, len(uploads))
	var wg sync.WaitGroup
	for _, u := range uploads {
		wg.Add(1)
		go func(kind FinalDocKind, fileID string, actor Actor) {
			defer wg.Done()
			<-start
			_, err := f.projectCtl.SubmitFinalDocument(ctx, p.ID, kind, fileID, "", "", actor)
			errs <- err
		}(u.kind, u.fileID, u.actor)
	}
	close(start)
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := f.projectCtl.Get(ctx, p.ID)
	require.NoError(t, err)
	content := got.Capstone4.Data()
	require.Equal(t, "file-a", content.AcademicFileID)
	require.Equal(t, "file-j", content.JournalFileID)
	require.Equal(t, model.ProjectStatusFinalSubmitted, got.Status)

	entries, err := f.projectCtl.WorkflowLog(ctx, got.ID)
	require.NoError(t, err)
	autoSubmits := 0
	for _, e := range entries {
		if e.ToStatus == model.ProjectStatusFinalSubmitted {
			autoSubmits++
		}
	}
	require.Equal(t, 1, autoSubmits)
}

func TestSetDefenseVerdict(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	p := f.proposedProject(t)

	err := f.projectCtl.SetDefenseVerdict(ctx, p.ID, model.DefenseVerdictPassed, student(1))
	requireReason(t, err, ReasonUnauthorized)

	err = f.projectCtl.SetDefenseVerdict(ctx, p.ID, "acquitted",
		Actor{ID: 70, Role: model.RolePanelist})
	requireReason(t, err, ReasonInvalidArgument)

	err = f.projectCtl.SetDefenseVerdict(ctx, p.ID, model.DefenseVerdictPassed,
		Actor{ID: 70, Role: model.RolePanelist})
	require.NoError(t, err)

	reloaded, err := f.projectCtl.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, model.DefenseVerdictPassed, reloaded.Capstone4.Data().Verdict)
}

func TestAssignAdviser(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	f.lockedTeam(t, 1, 2)
	p, err := f.projectCtl.Create(ctx, "Tracker", f.proposal(), student(1))
	require.NoError(t, err)

	err = f.projectCtl.AssignAdviser(ctx, p.ID, adviserUser(50), student(1))
	requireReason(t, err, ReasonUnauthorized)

	err = f.projectCtl.AssignAdviser(ctx, p.ID, studentUser(3), coordinatorOf(90))
	requireReason(t, err, ReasonInvalidArgument)

	err = f.projectCtl.AssignAdviser(ctx, p.ID, adviserUser(50), coordinatorOf(90))
	require.NoError(t, err)

	reloaded, err := f.projectCtl.Get(ctx, p.ID)
	require.NoError(t, err)
	require.True(t, reloaded.IsAdviser(50))
}

func TestPlagiarismFlow(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	p := f.proposedProject(t)

	_, err := f.projectCtl.StartPlagiarismCheck(ctx, p.ID, student(1))
	requireReason(t, err, ReasonNoDocument)

	require.NoError(t, f.projectCtl.SetDocument(ctx, p.ID, "doc-1", "link-1", student(1)))

	_, err = f.projectCtl.StartPlagiarismCheck(ctx, p.ID, student(7))
	requireReason(t, err, ReasonUnauthorized)

	fileID, err := f.projectCtl.StartPlagiarismCheck(ctx, p.ID, student(1))
	require.NoError(t, err)
	require.Equal(t, "doc-1", fileID)

	reloaded, err := f.projectCtl.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, model.PlagiarismStatusPending, reloaded.PlagiarismStatus)

	score := 12.5
	require.NoError(t, f.projectCtl.RecordPlagiarismResult(ctx, p.ID, model.PlagiarismStatusCompleted, &score))
	reloaded, err = f.projectCtl.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, model.PlagiarismStatusCompleted, reloaded.PlagiarismStatus)
	require.NotNil(t, reloaded.PlagiarismScore)
	require.InDelta(t, 12.5, *reloaded.PlagiarismScore, 0.001)
	require.NotNil(t, reloaded.PlagiarismCheckedAt)
}

func TestListForActor(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	p := f.proposedProject(t)

	own, err := f.projectCtl.ListForActor(ctx, student(1))
	require.NoError(t, err)
	require.Len(t, own, 1)

	none, err := f.projectCtl.ListForActor(ctx, student(7))
	require.NoError(t, err)
	require.Empty(t, none)

	advised, err := f.projectCtl.ListForActor(ctx, adviserOf(50))
	require.NoError(t, err)
	require.Len(t, advised, 1)
	require.Equal(t, p.ID, advised[0].ID)

	all, err := f.projectCtl.ListForActor(ctx, coordinatorOf(90))
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestGetUnknownProject(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	_, err := f.projectCtl.Get(ctx, 404)
	requireReason(t, err, ReasonNotFound)
	_, err = f.projectCtl.WorkflowLog(ctx, 404)
	requireReason(t, err, ReasonNotFound)
}
