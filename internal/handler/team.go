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
	"github.com/raids-lab/capstone/pkg/alert"
	"github.com/raids-lab/capstone/pkg/workflowctl"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewTeamMgr)
}

type TeamMgr struct {
	name    string
	teamCtl *workflowctl.TeamController
	users   store.UserStore
	alerter alert.AlertInterface
}

func NewTeamMgr(conf *RegisterConfig) Manager {
	return &TeamMgr{
		name:    "teams",
		teamCtl: conf.TeamCtl,
		users:   conf.UserStore,
		alerter: conf.Alerter,
	}
}

func (mgr *TeamMgr) GetName() string { return mgr.name }

func (mgr *TeamMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *TeamMgr) RegisterProtected(g *gin.RouterGroup) {
	g.POST("", mgr.CreateTeam)
	g.GET("/my", mgr.GetMyTeam)
	g.GET("/invitations", mgr.ListMyInvitations)
	g.POST("/invitations/:id/respond", mgr.RespondInvitation)
	g.POST("/:id/invitations", mgr.Invite)
	g.POST("/:id/lock", mgr.LockTeam)
	g.POST("/:id/dissolve", mgr.DissolveTeam)
}

func (mgr *TeamMgr) RegisterAdmin(_ *gin.RouterGroup) {}

type (
	MembershipResp struct {
		ID          uint                   `json:"id"`
		TeamID      uint                   `json:"teamId"`
		User        model.UserInfo         `json:"user"`
		Role        model.MembershipRole   `json:"role"`
		Status      model.MembershipStatus `json:"status"`
		RespondedAt *time.Time             `json:"respondedAt"`
	}

	TeamResp struct {
		ID       uint             `json:"id"`
		Name     string           `json:"name"`
		Status   model.TeamStatus `json:"status"`
		LeaderID uint             `json:"leaderId"`
		MaxSize  int              `json:"maxSize"`
		Members  []MembershipResp `json:"members,omitempty"`
	}
)

func membershipResp(m *model.TeamMembership) MembershipResp {
	return MembershipResp{
		ID:          m.ID,
		TeamID:      m.TeamID,
		User:        m.User.Info(),
		Role:        m.Role,
		Status:      m.Status,
		RespondedAt: m.RespondedAt,
	}
}

func teamResp(t *model.Team) TeamResp {
	resp := TeamResp{
		ID:       t.ID,
		Name:     t.Name,
		Status:   t.Status,
		LeaderID: t.LeaderID,
		MaxSize:  t.MaxSize,
	}
	for i := range t.Memberships {
		resp.Members = append(resp.Members, membershipResp(&t.Memberships[i]))
	}
	return resp
}

type CreateTeamReq struct {
	Name    string `json:"name" binding:"required"`
	MaxSize int    `json:"maxSize" binding:"required"`
}

// CreateTeam godoc
// @Summary Create a team
// @Description Founds a forming team with the caller as accepted leader
// @Tags Team
// @Accept json
// @Produce json
// @Param data body CreateTeamReq true "team details"
// @Success 200 {object} resputil.Response[TeamResp] "the new team"
// @Router /teams [post]
func (mgr *TeamMgr) CreateTeam(c *gin.Context) {
	var req CreateTeamReq
	if err := c.ShouldBind(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	team, err := mgr.teamCtl.CreateTeam(c.Request.Context(), req.Name, req.MaxSize, util.GetActor(c))
	if err != nil {
		respondEngineError(c, err)
		return
	}
	resputil.Success(c, teamResp(team))
}

// GetMyTeam godoc
// @Summary Current team
// @Description Returns the caller's active team, or null when the caller has none
// @Tags Team
// @Produce json
// @Success 200 {object} resputil.Response[TeamResp] "active team"
// @Router /teams/my [get]
func (mgr *TeamMgr) GetMyTeam(c *gin.Context) {
	token := util.GetToken(c)
	team, err := mgr.teamCtl.TeamOf(c.Request.Context(), token.UserID)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	if team == nil {
		resputil.Success[*TeamResp](c, nil)
		return
	}
	resp := teamResp(team)
	resputil.Success(c, &resp)
}

type InviteReq struct {
	Email string `json:"email" binding:"required,email"`
}

// Invite godoc
// @Summary Invite a student
// @Description Leader opens a pending invitation addressed by email
// @Tags Team
// @Accept json
// @Produce json
// @Param id path int true "team ID"
// @Param data body InviteReq true "invitee email"
// @Success 200 {object} resputil.Response[MembershipResp] "the pending invitation"
// @Router /teams/{id}/invitations [post]
func (mgr *TeamMgr) Invite(c *gin.Context) {
	teamID, ok := ParamID(c, "id")
	if !ok {
		return
	}
	var req InviteReq
	if err := c.ShouldBind(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	invitee, err := mgr.users.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			resputil.Error(c, "no account with that email", resputil.NotFound)
			return
		}
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	m, err := mgr.teamCtl.Invite(c.Request.Context(), teamID, invitee, util.GetActor(c))
	if err != nil {
		respondEngineError(c, err)
		return
	}

	// Delivery is best effort; never holds up the request.
	team := m.Team
	go func() {
		if aerr := mgr.alerter.InvitationAlert(context.Background(), invitee, &team); aerr != nil {
			klog.Errorf("invitation alert for user %d failed: %v", invitee.ID, aerr)
		}
	}()

	m.User = *invitee
	resputil.Success(c, membershipResp(m))
}

// ListMyInvitations godoc
// @Summary Open invitations
// @Description Lists the caller's pending invitations
// @Tags Team
// @Produce json
// @Success 200 {object} resputil.Response[[]MembershipResp] "pending invitations"
// @Router /teams/invitations [get]
func (mgr *TeamMgr) ListMyInvitations(c *gin.Context) {
	token := util.GetToken(c)
	invitations, err := mgr.teamCtl.InvitationsFor(c.Request.Context(), token.UserID)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	resp := lo.Map(invitations, func(m model.TeamMembership, _ int) MembershipResp {
		return membershipResp(&m)
	})
	resputil.Success(c, resp)
}

type RespondInvitationReq struct {
	Accept *bool `json:"accept" binding:"required"`
}

// RespondInvitation godoc
// @Summary Resolve an invitation
// @Description Accepts or declines a pending invitation, exactly once
// @Tags Team
// @Accept json
// @Produce json
// @Param id path int true "invitation ID"
// @Param data body RespondInvitationReq true "accept or decline"
// @Success 200 {object} resputil.Response[MembershipResp] "resolved membership"
// @Router /teams/invitations/{id}/respond [post]
func (mgr *TeamMgr) RespondInvitation(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	var req RespondInvitationReq
	if err := c.ShouldBind(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	m, err := mgr.teamCtl.RespondInvitation(c.Request.Context(), id, *req.Accept, util.GetActor(c))
	if err != nil {
		respondEngineError(c, err)
		return
	}
	resputil.Success(c, membershipResp(m))
}

// LockTeam godoc
// @Summary Lock the team
// @Description Freezes membership; requires at least two accepted members and is irreversible
// @Tags Team
// @Produce json
// @Param id path int true "team ID"
// @Success 200 {object} resputil.Response[TeamResp] "locked team"
// @Router /teams/{id}/lock [post]
func (mgr *TeamMgr) LockTeam(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	team, err := mgr.teamCtl.LockTeam(c.Request.Context(), id, util.GetActor(c))
	if err != nil {
		respondEngineError(c, err)
		return
	}
	resputil.Success(c, teamResp(team))
}

// DissolveTeam godoc
// @Summary Dissolve the team
// @Description Abandons a forming team; membership rows are kept for audit
// @Tags Team
// @Produce json
// @Param id path int true "team ID"
// @Success 200 {object} resputil.Response[TeamResp] "dissolved team"
// @Router /teams/{id}/dissolve [post]
func (mgr *TeamMgr) DissolveTeam(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	team, err := mgr.teamCtl.DissolveTeam(c.Request.Context(), id, util.GetActor(c))
	if err != nil {
		respondEngineError(c, err)
		return
	}
	resputil.Success(c, teamResp(team))
}
