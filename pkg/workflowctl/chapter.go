package workflowctl

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"k8s.io/klog/v2"

	"github.com/raids-lab/capstone/dao/model"
	"github.com/raids-lab/capstone/dao/store"
)

// resubmitFrom lists the statuses a version upload moves to submitted.
// An approved chapter keeps its status; the superseding version is
// informational only.
var resubmitFrom = []model.ChapterStatus{
	model.ChapterStatusDraft,
	model.ChapterStatusRevisionRequired,
}

// ChapterController owns the per-chapter submission and review
// workflow.
type ChapterController struct {
	chapters store.ChapterStore
	projects store.ProjectStore
}

func NewChapterController(chapters store.ChapterStore, projects store.ProjectStore) *ChapterController {
	return &ChapterController{chapters: chapters, projects: projects}
}

// Create adds a chapter in draft state with zero versions. The
// (phase, number) pair is unique within the project.
func (ctl *ChapterController) Create(ctx context.Context, projectID uint,
	phase, number int, title string, actor Actor) (*model.Chapter, error) {
	if phase < 1 || phase > 3 {
		return nil, Errorf(ReasonInvalidArgument, "capstone phase must be 1-3, got %d", phase)
	}
	if number < 1 {
		return nil, Errorf(ReasonInvalidArgument, "chapter number must be positive, got %d", number)
	}
	p, err := ctl.getProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !p.HasMember(actor.ID) && !p.IsAdviser(actor.ID) {
		return nil, Errorf(ReasonUnauthorized,
			"user %d is neither a member nor the adviser of project %d", actor.ID, p.ID)
	}
	// Chapters belong to the phase the project is currently in.
	if phase != p.CapstonePhase {
		return nil, Errorf(ReasonInvalidArgument,
			"phase %d is not the active phase of project %d (currently %d)", phase, p.ID, p.CapstonePhase)
	}

	ch := &model.Chapter{
		ProjectID:     projectID,
		CapstonePhase: phase,
		ChapterNumber: number,
		Title:         title,
		Status:        model.ChapterStatusDraft,
	}
	if err := ctl.chapters.Create(ctx, ch); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, Errorf(ReasonDuplicateChapter,
				"chapter %d already exists in phase %d of project %d", number, phase, projectID)
		}
		return nil, err
	}
	return ch, nil
}

// UploadVersion appends an immutable version. A draft or
// revision-required chapter becomes submitted; any other status is
// preserved.
func (ctl *ChapterController) UploadVersion(ctx context.Context, chapterID uint,
	fileID, webViewLink string, actor Actor) (*model.ChapterVersion, error) {
	if fileID == "" {
		return nil, Errorf(ReasonInvalidArgument, "fileId is required")
	}
	ch, err := ctl.getChapter(ctx, chapterID)
	if err != nil {
		return nil, err
	}
	p, err := ctl.getProject(ctx, ch.ProjectID)
	if err != nil {
		return nil, err
	}
	if !p.HasMember(actor.ID) {
		return nil, Errorf(ReasonUnauthorized, "user %d is not a member of project %d", actor.ID, p.ID)
	}

	version, err := ctl.chapters.AppendVersion(ctx, chapterID, fileID, webViewLink,
		resubmitFrom, model.ChapterStatusSubmitted)
	if err != nil {
		return nil, err
	}
	klog.Infof("chapter %d version %d uploaded by user %d", chapterID, version.Seq, actor.ID)
	return version, nil
}

// Review records the adviser's decision on a submitted chapter. Exactly
// one of two racing reviews commits; the loser observes NotReviewable.
func (ctl *ChapterController) Review(ctx context.Context, chapterID uint,
	decision model.ReviewDecision, comment string, actor Actor) (*model.Chapter, error) {
	if comment == "" {
		return nil, Errorf(ReasonNoFeedback, "review feedback must not be empty")
	}
	var to model.ChapterStatus
	switch decision {
	case model.ReviewDecisionApproved:
		to = model.ChapterStatusApproved
	case model.ReviewDecisionRevisionRequired:
		to = model.ChapterStatusRevisionRequired
	default:
		return nil, Errorf(ReasonInvalidArgument, "unknown review decision %q", decision)
	}

	ch, err := ctl.getChapter(ctx, chapterID)
	if err != nil {
		return nil, err
	}
	p, err := ctl.getProject(ctx, ch.ProjectID)
	if err != nil {
		return nil, err
	}
	if !p.IsAdviser(actor.ID) {
		return nil, Errorf(ReasonUnauthorized, "user %d is not the adviser of project %d", actor.ID, p.ID)
	}
	if ch.Status != model.ChapterStatusSubmitted {
		return nil, Errorf(ReasonNotReviewable,
			"chapter %d is %s, only submitted chapters are reviewable", ch.ID, ch.Status)
	}
	// submitted implies at least one version; re-check so a malformed
	// record can never become approved without an upload.
	if decision == model.ReviewDecisionApproved && len(ch.Versions) == 0 {
		return nil, Errorf(ReasonNotReviewable, "chapter %d has no uploaded versions", ch.ID)
	}

	fb := &model.FeedbackEntry{
		ReviewerID:   actor.ID,
		ReviewerName: actor.Name,
		Decision:     decision,
		Comment:      comment,
	}
	ok, err := ctl.chapters.ReviewCAS(ctx, chapterID, to, fb)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, Errorf(ReasonNotReviewable,
			"chapter %d was reviewed concurrently", chapterID)
	}
	klog.Infof("chapter %d reviewed %s by user %d", chapterID, decision, actor.ID)
	ch.Status = to
	ch.Feedback = append(ch.Feedback, *fb)
	return ch, nil
}

// List returns the project's chapters grouped by phase and ordered by
// chapter number.
func (ctl *ChapterController) List(ctx context.Context, projectID uint, actor Actor) ([]model.Chapter, error) {
	p, err := ctl.getProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := ctl.mayView(p, actor); err != nil {
		return nil, err
	}
	return ctl.chapters.ListByProject(ctx, projectID)
}

// Get returns one chapter with its versions and feedback.
func (ctl *ChapterController) Get(ctx context.Context, chapterID uint, actor Actor) (*model.Chapter, error) {
	ch, err := ctl.getChapter(ctx, chapterID)
	if err != nil {
		return nil, err
	}
	p, err := ctl.getProject(ctx, ch.ProjectID)
	if err != nil {
		return nil, err
	}
	if err := ctl.mayView(p, actor); err != nil {
		return nil, err
	}
	return ch, nil
}

// ListVersions returns the chapter's versions in upload order.
func (ctl *ChapterController) ListVersions(ctx context.Context, chapterID uint,
	actor Actor) ([]model.ChapterVersion, error) {
	ch, err := ctl.Get(ctx, chapterID, actor)
	if err != nil {
		return nil, err
	}
	return ch.Versions, nil
}

// PhaseComplete reports whether every chapter created for the phase is
// approved. The signal is computed from chapter state alone.
func (ctl *ChapterController) PhaseComplete(ctx context.Context, projectID uint, phase int) (bool, error) {
	chapters, err := ctl.chapters.ListByProject(ctx, projectID)
	if err != nil {
		return false, err
	}
	return phaseComplete(chapters, phase), nil
}

func phaseComplete(chapters []model.Chapter, phase int) bool {
	found := false
	for i := range chapters {
		if chapters[i].CapstonePhase != phase {
			continue
		}
		found = true
		if chapters[i].Status != model.ChapterStatusApproved {
			return false
		}
	}
	return found
}

func (ctl *ChapterController) mayView(p *model.Project, actor Actor) *Error {
	if p.HasMember(actor.ID) || p.IsAdviser(actor.ID) ||
		actor.Role == model.RolePanelist || actor.Role == model.RoleCoordinator {
		return nil
	}
	return Errorf(ReasonUnauthorized, "user %d may not view project %d", actor.ID, p.ID)
}

func (ctl *ChapterController) getChapter(ctx context.Context, chapterID uint) (*model.Chapter, error) {
	ch, err := ctl.chapters.GetByID(ctx, chapterID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, Errorf(ReasonNotFound, "chapter %d not found", chapterID)
	}
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func (ctl *ChapterController) getProject(ctx context.Context, projectID uint) (*model.Project, error) {
	p, err := ctl.projects.GetByID(ctx, projectID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, Errorf(ReasonNotFound, "project %d not found", projectID)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}
