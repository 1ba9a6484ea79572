package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"k8s.io/klog/v2"

	"github.com/raids-lab/capstone/dao/model"
	"github.com/raids-lab/capstone/dao/store"
	"github.com/raids-lab/capstone/internal/resputil"
	"github.com/raids-lab/capstone/internal/util"
	"github.com/raids-lab/capstone/pkg/similarity"
	"github.com/raids-lab/capstone/pkg/workflowctl"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewProjectMgr)
}

type ProjectMgr struct {
	name       string
	projectCtl *workflowctl.ProjectController
	users      store.UserStore
	similarity similarity.ClientInterface
}

func NewProjectMgr(conf *RegisterConfig) Manager {
	return &ProjectMgr{
		name:       "projects",
		projectCtl: conf.ProjectCtl,
		users:      conf.UserStore,
		similarity: conf.Similarity,
	}
}

func (mgr *ProjectMgr) GetName() string { return mgr.name }

func (mgr *ProjectMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *ProjectMgr) RegisterProtected(g *gin.RouterGroup) {
	g.POST("", mgr.CreateProject)
	g.GET("", mgr.ListProjects)
	g.GET("/:id", mgr.GetProject)
	g.GET("/:id/workflowlog", mgr.GetWorkflowLog)
	g.POST("/:id/transition", mgr.Transition)
	g.POST("/:id/document", mgr.SetDocument)
	g.POST("/:id/final-documents", mgr.SubmitFinalDocument)
	g.POST("/:id/plagiarism", mgr.StartPlagiarismCheck)
	g.POST("/:id/verdict", mgr.SetDefenseVerdict)
}

func (mgr *ProjectMgr) RegisterAdmin(g *gin.RouterGroup) {
	g.POST("/:id/adviser", mgr.AdminAssignAdviser)
}

type ProjectResp struct {
	ID            uint                   `json:"id"`
	Title         string                 `json:"title"`
	Status        model.ProjectStatus    `json:"status"`
	CapstonePhase int                    `json:"capstonePhase"`
	TeamID        uint                   `json:"teamId"`
	AdviserID     *uint                  `json:"adviserId"`
	Proposal      model.ProposalContent  `json:"proposal"`
	Members       []model.UserInfo       `json:"members"`
	Capstone4     model.Capstone4Content `json:"capstone4"`

	DocumentFileID      string `json:"documentFileId"`
	DocumentWebViewLink string `json:"documentWebViewLink"`

	PlagiarismStatus    model.PlagiarismStatus `json:"plagiarismStatus"`
	PlagiarismScore     *float64               `json:"plagiarismScore"`
	PlagiarismCheckedAt *time.Time             `json:"plagiarismCheckedAt"`
}

func projectResp(p *model.Project) ProjectResp {
	resp := ProjectResp{
		ID:                  p.ID,
		Title:               p.Title,
		Status:              p.Status,
		CapstonePhase:       p.CapstonePhase,
		TeamID:              p.TeamID,
		AdviserID:           p.AdviserID,
		Proposal:            p.Proposal.Data(),
		Capstone4:           p.Capstone4.Data(),
		DocumentFileID:      p.DocumentFileID,
		DocumentWebViewLink: p.DocumentWebViewLink,
		PlagiarismStatus:    p.PlagiarismStatus,
		PlagiarismScore:     p.PlagiarismScore,
		PlagiarismCheckedAt: p.PlagiarismCheckedAt,
	}
	for i := range p.Members {
		resp.Members = append(resp.Members, p.Members[i].User.Info())
	}
	return resp
}

func mayViewProject(p *model.Project, actor workflowctl.Actor) bool {
	return p.HasMember(actor.ID) || p.IsAdviser(actor.ID) ||
		actor.Role == model.RolePanelist || actor.Role == model.RoleCoordinator
}

type CreateProjectReq struct {
	Title    string                `json:"title" binding:"required"`
	Proposal model.ProposalContent `json:"proposal" binding:"required"`
}

// CreateProject godoc
// @Summary Propose a project
// @Description Starts a project for the caller's locked team; one project per team
// @Tags Project
// @Accept json
// @Produce json
// @Param data body CreateProjectReq true "title and proposal"
// @Success 200 {object} resputil.Response[ProjectResp] "the new project"
// @Router /projects [post]
func (mgr *ProjectMgr) CreateProject(c *gin.Context) {
	var req CreateProjectReq
	if err := c.ShouldBind(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	p, err := mgr.projectCtl.Create(c.Request.Context(), req.Title, req.Proposal, util.GetActor(c))
	if err != nil {
		respondEngineError(c, err)
		return
	}
	resputil.Success(c, projectResp(p))
}

// ListProjects godoc
// @Summary List visible projects
// @Description Own projects for students, advised ones for advisers, all for panelists and the coordinator
// @Tags Project
// @Produce json
// @Success 200 {object} resputil.Response[[]ProjectResp] "visible projects"
// @Router /projects [get]
func (mgr *ProjectMgr) ListProjects(c *gin.Context) {
	projects, err := mgr.projectCtl.ListForActor(c.Request.Context(), util.GetActor(c))
	if err != nil {
		respondEngineError(c, err)
		return
	}
	resp := lo.Map(projects, func(p model.Project, _ int) ProjectResp {
		return projectResp(&p)
	})
	resputil.Success(c, resp)
}

// GetProject godoc
// @Summary Project details
// @Tags Project
// @Produce json
// @Param id path int true "project ID"
// @Success 200 {object} resputil.Response[ProjectResp] "project details"
// @Router /projects/{id} [get]
func (mgr *ProjectMgr) GetProject(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	p, err := mgr.projectCtl.Get(c.Request.Context(), id)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	if !mayViewProject(p, util.GetActor(c)) {
		resputil.Error(c, "not allowed to view this project", resputil.UserNotAllowed)
		return
	}
	resputil.Success(c, projectResp(p))
}

type WorkflowLogResp struct {
	ID         uint                `json:"id"`
	FromStatus model.ProjectStatus `json:"fromStatus"`
	ToStatus   model.ProjectStatus `json:"toStatus"`
	ActorID    uint                `json:"actorId"`
	RequestID  string              `json:"requestId"`
	CreatedAt  time.Time           `json:"createdAt"`
}

// GetWorkflowLog godoc
// @Summary Transition history
// @Description The project's status changes in chronological order
// @Tags Project
// @Produce json
// @Param id path int true "project ID"
// @Success 200 {object} resputil.Response[[]WorkflowLogResp] "ordered history"
// @Router /projects/{id}/workflowlog [get]
func (mgr *ProjectMgr) GetWorkflowLog(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	p, err := mgr.projectCtl.Get(c.Request.Context(), id)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	if !mayViewProject(p, util.GetActor(c)) {
		resputil.Error(c, "not allowed to view this project", resputil.UserNotAllowed)
		return
	}
	entries, err := mgr.projectCtl.WorkflowLog(c.Request.Context(), id)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	resp := make([]WorkflowLogResp, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		resp = append(resp, WorkflowLogResp{
			ID:         e.ID,
			FromStatus: e.FromStatus,
			ToStatus:   e.ToStatus,
			ActorID:    e.ActorID,
			RequestID:  e.RequestID,
			CreatedAt:  e.CreatedAt,
		})
	}
	resputil.Success(c, resp)
}

type TransitionReq struct {
	To model.ProjectStatus `json:"to" binding:"required"`
}

// Transition godoc
// @Summary Move the project status
// @Description Applies one edge of the lifecycle state machine on behalf of the caller
// @Tags Project
// @Accept json
// @Produce json
// @Param id path int true "project ID"
// @Param data body TransitionReq true "target status"
// @Success 200 {object} resputil.Response[ProjectResp] "project after the move"
// @Router /projects/{id}/transition [post]
func (mgr *ProjectMgr) Transition(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	var req TransitionReq
	if err := c.ShouldBind(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	if !workflowctl.KnownProjectStatus(req.To) {
		resputil.BadRequestError(c, "unknown target status")
		return
	}
	p, err := mgr.projectCtl.Transition(c.Request.Context(), id, req.To, util.GetActor(c))
	if err != nil {
		respondEngineError(c, err)
		return
	}
	resputil.Success(c, projectResp(p))
}

type SetDocumentReq struct {
	FileID      string `json:"fileId" binding:"required"`
	WebViewLink string `json:"webViewLink"`
}

// SetDocument godoc
// @Summary Update the primary document
// @Description Points the project at a new submission document
// @Tags Project
// @Accept json
// @Produce json
// @Param id path int true "project ID"
// @Param data body SetDocumentReq true "document reference"
// @Success 200 {object} resputil.Response[any] "updated"
// @Router /projects/{id}/document [post]
func (mgr *ProjectMgr) SetDocument(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	var req SetDocumentReq
	if err := c.ShouldBind(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	if err := mgr.projectCtl.SetDocument(c.Request.Context(), id,
		req.FileID, req.WebViewLink, util.GetActor(c)); err != nil {
		respondEngineError(c, err)
		return
	}
	resputil.Success[any](c, nil)
}

type SubmitFinalDocumentReq struct {
	Kind            workflowctl.FinalDocKind `json:"kind" binding:"required"` // [academic, journal]
	FileID          string                   `json:"fileId" binding:"required"`
	WebViewLink     string                   `json:"webViewLink"`
	CredentialsNote string                   `json:"credentialsNote"`
}

// SubmitFinalDocument godoc
// @Summary Upload a final-stage manuscript
// @Description Records the academic or journal version; once both are present an
// @Description approved-for-defense project moves to FinalSubmitted
// @Tags Project
// @Accept json
// @Produce json
// @Param id path int true "project ID"
// @Param data body SubmitFinalDocumentReq true "manuscript reference"
// @Success 200 {object} resputil.Response[ProjectResp] "project after the upload"
// @Router /projects/{id}/final-documents [post]
func (mgr *ProjectMgr) SubmitFinalDocument(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	var req SubmitFinalDocumentReq
	if err := c.ShouldBind(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	p, err := mgr.projectCtl.SubmitFinalDocument(c.Request.Context(), id,
		req.Kind, req.FileID, req.WebViewLink, req.CredentialsNote, util.GetActor(c))
	if err != nil {
		respondEngineError(c, err)
		return
	}
	resputil.Success(c, projectResp(p))
}

// StartPlagiarismCheck godoc
// @Summary Run a similarity check
// @Description Submits the primary document to the external checker; the result lands asynchronously
// @Tags Project
// @Produce json
// @Param id path int true "project ID"
// @Success 200 {object} resputil.Response[any] "check started"
// @Router /projects/{id}/plagiarism [post]
func (mgr *ProjectMgr) StartPlagiarismCheck(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	fileID, err := mgr.projectCtl.StartPlagiarismCheck(c.Request.Context(), id, util.GetActor(c))
	if err != nil {
		respondEngineError(c, err)
		return
	}

	go mgr.runSimilarityCheck(id, fileID)
	resputil.Success[any](c, nil)
}

// runSimilarityCheck waits on the external service and writes the
// result back. A transport failure is recorded as a failed check so the
// status never sticks at pending.
func (mgr *ProjectMgr) runSimilarityCheck(projectID uint, fileID string) {
	ctx := context.Background()
	result, err := mgr.similarity.Check(ctx, fileID)
	if err != nil {
		klog.Errorf("similarity check for project %d failed: %v", projectID, err)
		if rerr := mgr.projectCtl.RecordPlagiarismResult(ctx, projectID,
			model.PlagiarismStatusFailed, nil); rerr != nil {
			klog.Errorf("record failed check for project %d: %v", projectID, rerr)
		}
		return
	}
	status := model.PlagiarismStatusCompleted
	var score *float64
	if result.Status == similarity.StatusCompleted {
		score = &result.Score
	} else {
		status = model.PlagiarismStatusFailed
	}
	if err := mgr.projectCtl.RecordPlagiarismResult(ctx, projectID, status, score); err != nil {
		klog.Errorf("record similarity result for project %d: %v", projectID, err)
	}
}

type DefenseVerdictReq struct {
	Verdict model.DefenseVerdict `json:"verdict" binding:"required"` // [passed, redefense, failed]
}

// SetDefenseVerdict godoc
// @Summary Record the defense outcome
// @Description Panelists and the coordinator record the verdict of the final defense
// @Tags Project
// @Accept json
// @Produce json
// @Param id path int true "project ID"
// @Param data body DefenseVerdictReq true "verdict"
// @Success 200 {object} resputil.Response[any] "recorded"
// @Router /projects/{id}/verdict [post]
func (mgr *ProjectMgr) SetDefenseVerdict(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	var req DefenseVerdictReq
	if err := c.ShouldBind(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	if err := mgr.projectCtl.SetDefenseVerdict(c.Request.Context(), id,
		req.Verdict, util.GetActor(c)); err != nil {
		respondEngineError(c, err)
		return
	}
	resputil.Success[any](c, nil)
}

type AssignAdviserReq struct {
	AdviserID uint `json:"adviserId" binding:"required"`
}

// AdminAssignAdviser godoc
// @Summary Assign the adviser
// @Description Coordinator pairs an adviser-role account with the project
// @Tags Project
// @Accept json
// @Produce json
// @Param id path int true "project ID"
// @Param data body AssignAdviserReq true "adviser user ID"
// @Success 200 {object} resputil.Response[any] "assigned"
// @Router /admin/projects/{id}/adviser [post]
func (mgr *ProjectMgr) AdminAssignAdviser(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	var req AssignAdviserReq
	if err := c.ShouldBind(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	adviser, err := mgr.users.GetByID(c.Request.Context(), req.AdviserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			resputil.Error(c, "adviser not found", resputil.NotFound)
			return
		}
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	if err := mgr.projectCtl.AssignAdviser(c.Request.Context(), id, adviser, util.GetActor(c)); err != nil {
		respondEngineError(c, err)
		return
	}
	resputil.Success[any](c, nil)
}
