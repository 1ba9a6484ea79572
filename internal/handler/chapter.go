package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"

	"github.com/raids-lab/capstone/dao/model"
	"github.com/raids-lab/capstone/internal/resputil"
	"github.com/raids-lab/capstone/internal/util"
	"github.com/raids-lab/capstone/pkg/alert"
	"github.com/raids-lab/capstone/pkg/workflowctl"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewChapterMgr)
}

type ChapterMgr struct {
	name       string
	chapterCtl *workflowctl.ChapterController
	projectCtl *workflowctl.ProjectController
	alerter    alert.AlertInterface
}

func NewChapterMgr(conf *RegisterConfig) Manager {
	return &ChapterMgr{
		name:       "chapters",
		chapterCtl: conf.ChapterCtl,
		projectCtl: conf.ProjectCtl,
		alerter:    conf.Alerter,
	}
}

func (mgr *ChapterMgr) GetName() string { return mgr.name }

func (mgr *ChapterMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *ChapterMgr) RegisterProtected(g *gin.RouterGroup) {
	g.POST("", mgr.CreateChapter)
	g.GET("", mgr.ListChapters)
	g.GET("/:id", mgr.GetChapter)
	g.GET("/:id/versions", mgr.ListVersions)
	g.POST("/:id/versions", mgr.UploadVersion)
	g.POST("/:id/review", mgr.Review)
}

func (mgr *ChapterMgr) RegisterAdmin(_ *gin.RouterGroup) {}

type (
	VersionResp struct {
		Seq         int       `json:"seq"`
		FileID      string    `json:"fileId"`
		WebViewLink string    `json:"webViewLink"`
		UploadedAt  time.Time `json:"uploadedAt"`
	}

	FeedbackResp struct {
		Seq          int                  `json:"seq"`
		ReviewerID   uint                 `json:"reviewerId"`
		ReviewerName string               `json:"reviewerName"`
		Decision     model.ReviewDecision `json:"decision"`
		Comment      string               `json:"comment"`
		CreatedAt    time.Time            `json:"createdAt"`
	}

	ChapterResp struct {
		ID            uint                `json:"id"`
		ProjectID     uint                `json:"projectId"`
		CapstonePhase int                 `json:"capstonePhase"`
		ChapterNumber int                 `json:"chapterNumber"`
		Title         string              `json:"title"`
		Status        model.ChapterStatus `json:"status"`
		Versions      []VersionResp       `json:"versions,omitempty"`
		Feedback      []FeedbackResp      `json:"feedback,omitempty"`
	}
)

func versionResp(v *model.ChapterVersion) VersionResp {
	return VersionResp{
		Seq:         v.Seq,
		FileID:      v.FileID,
		WebViewLink: v.WebViewLink,
		UploadedAt:  v.UploadedAt,
	}
}

func chapterResp(ch *model.Chapter) ChapterResp {
	resp := ChapterResp{
		ID:            ch.ID,
		ProjectID:     ch.ProjectID,
		CapstonePhase: ch.CapstonePhase,
		ChapterNumber: ch.ChapterNumber,
		Title:         ch.Title,
		Status:        ch.Status,
	}
	for i := range ch.Versions {
		resp.Versions = append(resp.Versions, versionResp(&ch.Versions[i]))
	}
	for i := range ch.Feedback {
		f := &ch.Feedback[i]
		resp.Feedback = append(resp.Feedback, FeedbackResp{
			Seq:          f.Seq,
			ReviewerID:   f.ReviewerID,
			ReviewerName: f.ReviewerName,
			Decision:     f.Decision,
			Comment:      f.Comment,
			CreatedAt:    f.CreatedAt,
		})
	}
	return resp
}

type CreateChapterReq struct {
	ProjectID     uint   `json:"projectId" binding:"required"`
	CapstonePhase int    `json:"capstonePhase" binding:"required"`
	ChapterNumber int    `json:"chapterNumber" binding:"required"`
	Title         string `json:"title" binding:"required"`
}

// CreateChapter godoc
// @Summary Create a chapter
// @Description Adds a draft chapter; (phase, number) is unique within the project
// @Tags Chapter
// @Accept json
// @Produce json
// @Param data body CreateChapterReq true "chapter details"
// @Success 200 {object} resputil.Response[ChapterResp] "the new chapter"
// @Router /chapters [post]
func (mgr *ChapterMgr) CreateChapter(c *gin.Context) {
	var req CreateChapterReq
	if err := c.ShouldBind(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	ch, err := mgr.chapterCtl.Create(c.Request.Context(), req.ProjectID,
		req.CapstonePhase, req.ChapterNumber, req.Title, util.GetActor(c))
	if err != nil {
		respondEngineError(c, err)
		return
	}
	resputil.Success(c, chapterResp(ch))
}

// ListChapters godoc
// @Summary List a project's chapters
// @Description Grouped by phase and ordered by chapter number
// @Tags Chapter
// @Produce json
// @Param projectId query int true "project ID"
// @Success 200 {object} resputil.Response[[]ChapterResp] "chapters with versions and feedback"
// @Router /chapters [get]
func (mgr *ChapterMgr) ListChapters(c *gin.Context) {
	var query struct {
		ProjectID uint `form:"projectId" binding:"required"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	chapters, err := mgr.chapterCtl.List(c.Request.Context(), query.ProjectID, util.GetActor(c))
	if err != nil {
		respondEngineError(c, err)
		return
	}
	resp := make([]ChapterResp, 0, len(chapters))
	for i := range chapters {
		resp = append(resp, chapterResp(&chapters[i]))
	}
	resputil.Success(c, resp)
}

// GetChapter godoc
// @Summary Chapter details
// @Tags Chapter
// @Produce json
// @Param id path int true "chapter ID"
// @Success 200 {object} resputil.Response[ChapterResp] "chapter with versions and feedback"
// @Router /chapters/{id} [get]
func (mgr *ChapterMgr) GetChapter(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	ch, err := mgr.chapterCtl.Get(c.Request.Context(), id, util.GetActor(c))
	if err != nil {
		respondEngineError(c, err)
		return
	}
	resputil.Success(c, chapterResp(ch))
}

// ListVersions godoc
// @Summary Version history
// @Description The chapter's uploads in order; versions are immutable
// @Tags Chapter
// @Produce json
// @Param id path int true "chapter ID"
// @Success 200 {object} resputil.Response[[]VersionResp] "uploads in order"
// @Router /chapters/{id}/versions [get]
func (mgr *ChapterMgr) ListVersions(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	versions, err := mgr.chapterCtl.ListVersions(c.Request.Context(), id, util.GetActor(c))
	if err != nil {
		respondEngineError(c, err)
		return
	}
	resp := make([]VersionResp, 0, len(versions))
	for i := range versions {
		resp = append(resp, versionResp(&versions[i]))
	}
	resputil.Success(c, resp)
}

type UploadVersionReq struct {
	FileID      string `json:"fileId" binding:"required"`
	WebViewLink string `json:"webViewLink"`
}

// UploadVersion godoc
// @Summary Upload a revision
// @Description Appends an immutable version; a draft or revision-required chapter becomes submitted
// @Tags Chapter
// @Accept json
// @Produce json
// @Param id path int true "chapter ID"
// @Param data body UploadVersionReq true "file reference"
// @Success 200 {object} resputil.Response[VersionResp] "the appended version"
// @Router /chapters/{id}/versions [post]
func (mgr *ChapterMgr) UploadVersion(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	var req UploadVersionReq
	if err := c.ShouldBind(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	v, err := mgr.chapterCtl.UploadVersion(c.Request.Context(), id,
		req.FileID, req.WebViewLink, util.GetActor(c))
	if err != nil {
		respondEngineError(c, err)
		return
	}
	resputil.Success(c, versionResp(v))
}

type ReviewReq struct {
	Decision model.ReviewDecision `json:"decision" binding:"required"` // [approved, revision_required]
	Comment  string               `json:"comment" binding:"required"`
}

// Review godoc
// @Summary Review a submitted chapter
// @Description Adviser records the decision; an approval may complete the phase and advance the project
// @Tags Chapter
// @Accept json
// @Produce json
// @Param id path int true "chapter ID"
// @Param data body ReviewReq true "decision and comment"
// @Success 200 {object} resputil.Response[ChapterResp] "chapter after the review"
// @Router /chapters/{id}/review [post]
func (mgr *ChapterMgr) Review(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	var req ReviewReq
	if err := c.ShouldBind(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	ch, err := mgr.chapterCtl.Review(c.Request.Context(), id, req.Decision, req.Comment, util.GetActor(c))
	if err != nil {
		respondEngineError(c, err)
		return
	}

	if req.Decision == model.ReviewDecisionApproved {
		if _, aerr := mgr.projectCtl.AdvancePhaseIfComplete(c.Request.Context(), ch.ProjectID); aerr != nil {
			klog.Errorf("phase advance check for project %d failed: %v", ch.ProjectID, aerr)
		}
	}
	go mgr.notifyMembers(ch, req.Decision)

	resputil.Success(c, chapterResp(ch))
}

// notifyMembers mails the review outcome to every project member.
// Best effort only.
func (mgr *ChapterMgr) notifyMembers(ch *model.Chapter, decision model.ReviewDecision) {
	ctx := context.Background()
	p, err := mgr.projectCtl.Get(ctx, ch.ProjectID)
	if err != nil {
		klog.Errorf("load project %d for review alert: %v", ch.ProjectID, err)
		return
	}
	for i := range p.Members {
		user := p.Members[i].User
		if err := mgr.alerter.ReviewDecisionAlert(ctx, &user, ch, decision); err != nil {
			klog.Errorf("review alert for user %d failed: %v", user.ID, err)
		}
	}
}
