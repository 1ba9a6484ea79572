package workflowctl

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"k8s.io/klog/v2"

	"github.com/raids-lab/capstone/dao/model"
	"github.com/raids-lab/capstone/dao/store"
)

// finalCapstonePhase is the last phase; AdvancePhaseIfComplete never
// moves past it.
const finalCapstonePhase = 4

// ProjectController owns the project status state machine. Every
// mutation validates before it writes and commits through a CAS guard,
// so a failed attempt leaves the project observably unchanged.
type ProjectController struct {
	projects store.ProjectStore
	teams    store.TeamStore
	chapters store.ChapterStore
}

func NewProjectController(projects store.ProjectStore, teams store.TeamStore,
	chapters store.ChapterStore) *ProjectController {
	return &ProjectController{projects: projects, teams: teams, chapters: chapters}
}

// Create starts a new capstone project for the actor's team. The team
// must be locked; the lock check and the insert commit atomically so
// two members of a freshly locked team cannot both create.
func (ctl *ProjectController) Create(ctx context.Context, title string,
	proposal model.ProposalContent, actor Actor) (*model.Project, error) {
	if actor.Role != model.RoleStudent {
		return nil, Errorf(ReasonUnauthorized, "only students create projects")
	}
	membership, err := ctl.teams.ActiveMembershipForUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if membership == nil {
		return nil, Errorf(ReasonTeamNotReady, "user %d has no active team", actor.ID)
	}
	if membership.Team.Status != model.TeamStatusLocked {
		return nil, Errorf(ReasonTeamNotReady,
			"team %d is %s, must be locked before proposal", membership.TeamID, membership.Team.Status)
	}

	p := &model.Project{
		Title:            title,
		Status:           model.ProjectStatusProposed,
		CapstonePhase:    1,
		TeamID:           membership.TeamID,
		Proposal:         datatypes.NewJSONType(proposal),
		PlagiarismStatus: model.PlagiarismStatusNone,
	}
	if err := ctl.projects.CreateWithTeamLock(ctx, p); err != nil {
		switch {
		case errors.Is(err, store.ErrTeamNotLocked):
			return nil, Errorf(ReasonTeamNotReady, "team %d is not locked", membership.TeamID)
		case errors.Is(err, gorm.ErrDuplicatedKey):
			return nil, Errorf(ReasonProjectExists, "team %d already has a project", membership.TeamID)
		default:
			return nil, err
		}
	}
	klog.Infof("project %d created by user %d for team %d", p.ID, actor.ID, p.TeamID)
	return p, nil
}

// Transition moves the project to the requested status when the
// transition table allows it for this actor. An accepted transition
// appends exactly one workflow-log entry.
func (ctl *ProjectController) Transition(ctx context.Context, projectID uint,
	to model.ProjectStatus, actor Actor) (*model.Project, error) {
	p, err := ctl.get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if verr := validateTransition(p, to, actor); verr != nil {
		return nil, verr
	}

	entry := &model.WorkflowLog{ActorID: actor.ID, RequestID: uuid.NewString()}
	ok, err := ctl.projects.TransitionCAS(ctx, p.ID, p.Status, to, entry)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, Errorf(ReasonInvalidTransition,
			"project %d left %s concurrently, re-read and retry", p.ID, p.Status)
	}
	klog.Infof("project %d: %s -> %s by user %d", p.ID, p.Status, to, actor.ID)
	p.Status = to
	return p, nil
}

// AdvancePhaseIfComplete bumps the capstone phase once every chapter of
// the current phase is approved. The bump is CAS-guarded on the current
// phase, so concurrent reviewers advance it at most once.
func (ctl *ProjectController) AdvancePhaseIfComplete(ctx context.Context, projectID uint) (bool, error) {
	p, err := ctl.get(ctx, projectID)
	if err != nil {
		return false, err
	}
	if p.CapstonePhase >= finalCapstonePhase {
		return false, nil
	}
	chapters, err := ctl.chapters.ListByProject(ctx, projectID)
	if err != nil {
		return false, err
	}
	if !phaseComplete(chapters, p.CapstonePhase) {
		return false, nil
	}
	advanced, err := ctl.projects.AdvancePhaseCAS(ctx, p.ID, p.CapstonePhase)
	if err != nil {
		return false, err
	}
	if advanced {
		klog.Infof("project %d advanced to phase %d", p.ID, p.CapstonePhase+1)
	}
	return advanced, nil
}

// FinalDocKind selects which capstone 4 manuscript version an upload
// replaces.
type FinalDocKind string

const (
	FinalDocAcademic FinalDocKind = "academic"
	FinalDocJournal  FinalDocKind = "journal"
)

// SubmitFinalDocument records a final-stage manuscript version. Once
// both versions are present and the project is approved for defense,
// the project moves to FinalSubmitted on behalf of the uploader.
func (ctl *ProjectController) SubmitFinalDocument(ctx context.Context, projectID uint,
	kind FinalDocKind, fileID, webViewLink, credentialsNote string, actor Actor) (*model.Project, error) {
	if fileID == "" {
		return nil, Errorf(ReasonInvalidArgument, "fileId is required")
	}
	p, err := ctl.get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !p.HasMember(actor.ID) {
		return nil, Errorf(ReasonUnauthorized, "user %d is not a member of project %d", actor.ID, p.ID)
	}

	switch kind {
	case FinalDocAcademic, FinalDocJournal:
	default:
		return nil, Errorf(ReasonInvalidArgument, "unknown final document kind %q", kind)
	}

	// Merge under the store's row lock; a concurrent upload of the other
	// kind must not be overwritten by this one.
	content, err := ctl.projects.MutateCapstone4(ctx, p.ID, func(c *model.Capstone4Content) error {
		switch kind {
		case FinalDocAcademic:
			c.AcademicFileID = fileID
			c.AcademicWebViewLink = webViewLink
		case FinalDocJournal:
			c.JournalFileID = fileID
			c.JournalWebViewLink = webViewLink
		}
		if credentialsNote != "" {
			c.CredentialsNote = credentialsNote
		}
		if c.Verdict == "" {
			c.Verdict = model.DefenseVerdictPending
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	p.Capstone4 = datatypes.NewJSONType(*content)

	if content.Complete() && p.Status == model.ProjectStatusApprovedForDefense {
		entry := &model.WorkflowLog{ActorID: actor.ID, RequestID: uuid.NewString()}
		ok, err := ctl.projects.TransitionCAS(ctx, p.ID,
			model.ProjectStatusApprovedForDefense, model.ProjectStatusFinalSubmitted, entry)
		if err != nil {
			return nil, err
		}
		if ok {
			p.Status = model.ProjectStatusFinalSubmitted
			klog.Infof("project %d final-submitted on upload completion", p.ID)
		}
	}
	return p, nil
}

// SetDefenseVerdict records the defense outcome. Panelists and the
// coordinator may set it.
func (ctl *ProjectController) SetDefenseVerdict(ctx context.Context, projectID uint,
	verdict model.DefenseVerdict, actor Actor) error {
	if actor.Role != model.RolePanelist && actor.Role != model.RoleCoordinator {
		return Errorf(ReasonUnauthorized, "setting the defense verdict requires panelist or coordinator role")
	}
	switch verdict {
	case model.DefenseVerdictPassed, model.DefenseVerdictRedefense, model.DefenseVerdictFailed:
	default:
		return Errorf(ReasonInvalidArgument, "unknown defense verdict %q", verdict)
	}
	_, err := ctl.projects.MutateCapstone4(ctx, projectID, func(c *model.Capstone4Content) error {
		c.Verdict = verdict
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Errorf(ReasonNotFound, "project %d not found", projectID)
	}
	return err
}

// AssignAdviser sets the project's adviser; coordinator only.
func (ctl *ProjectController) AssignAdviser(ctx context.Context, projectID uint,
	adviser *model.User, actor Actor) error {
	if actor.Role != model.RoleCoordinator {
		return Errorf(ReasonUnauthorized, "assigning an adviser requires coordinator role")
	}
	if adviser.Role != model.RoleAdviser {
		return Errorf(ReasonInvalidArgument, "user %s does not hold the adviser role", adviser.Name)
	}
	if _, err := ctl.get(ctx, projectID); err != nil {
		return err
	}
	return ctl.projects.SetAdviser(ctx, projectID, adviser.ID)
}

// SetDocument updates the primary submission pointer.
func (ctl *ProjectController) SetDocument(ctx context.Context, projectID uint,
	fileID, webViewLink string, actor Actor) error {
	if fileID == "" {
		return Errorf(ReasonInvalidArgument, "fileId is required")
	}
	p, err := ctl.get(ctx, projectID)
	if err != nil {
		return err
	}
	if !p.HasMember(actor.ID) {
		return Errorf(ReasonUnauthorized, "user %d is not a member of project %d", actor.ID, p.ID)
	}
	return ctl.projects.UpdateDocument(ctx, projectID, fileID, webViewLink)
}

// StartPlagiarismCheck marks the similarity report pending and returns
// the document reference to hand to the external checker.
func (ctl *ProjectController) StartPlagiarismCheck(ctx context.Context, projectID uint,
	actor Actor) (string, error) {
	p, err := ctl.get(ctx, projectID)
	if err != nil {
		return "", err
	}
	if !p.HasMember(actor.ID) && !p.IsAdviser(actor.ID) && actor.Role != model.RoleCoordinator {
		return "", Errorf(ReasonUnauthorized, "user %d may not run a check on project %d", actor.ID, p.ID)
	}
	if p.DocumentFileID == "" {
		return "", Errorf(ReasonNoDocument, "project %d has no primary document", p.ID)
	}
	if err := ctl.projects.UpdatePlagiarism(ctx, p.ID, model.PlagiarismStatusPending, nil); err != nil {
		return "", err
	}
	return p.DocumentFileID, nil
}

// RecordPlagiarismResult writes the checker's result back.
func (ctl *ProjectController) RecordPlagiarismResult(ctx context.Context, projectID uint,
	status model.PlagiarismStatus, score *float64) error {
	return ctl.projects.UpdatePlagiarism(ctx, projectID, status, score)
}

// Get fetches one project; the gateway checks view rights.
func (ctl *ProjectController) Get(ctx context.Context, projectID uint) (*model.Project, error) {
	return ctl.get(ctx, projectID)
}

// ListForActor lists the projects visible to the actor: own projects
// for students, advised projects for advisers, everything for
// panelists and the coordinator.
func (ctl *ProjectController) ListForActor(ctx context.Context, actor Actor) ([]model.Project, error) {
	switch actor.Role {
	case model.RoleAdviser:
		return ctl.projects.ListForAdviser(ctx, actor.ID)
	case model.RolePanelist, model.RoleCoordinator:
		return ctl.projects.ListAll(ctx)
	default:
		return ctl.projects.ListForUser(ctx, actor.ID)
	}
}

// WorkflowLog returns the project's transition history in
// chronological order.
func (ctl *ProjectController) WorkflowLog(ctx context.Context, projectID uint) ([]model.WorkflowLog, error) {
	if _, err := ctl.get(ctx, projectID); err != nil {
		return nil, err
	}
	return ctl.projects.ListWorkflowLog(ctx, projectID)
}

func (ctl *ProjectController) get(ctx context.Context, projectID uint) (*model.Project, error) {
	p, err := ctl.projects.GetByID(ctx, projectID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, Errorf(ReasonNotFound, "project %d not found", projectID)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}
