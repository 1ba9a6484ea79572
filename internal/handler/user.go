package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/raids-lab/capstone/dao/model"
	"github.com/raids-lab/capstone/dao/store"
	"github.com/raids-lab/capstone/internal/resputil"
	"github.com/raids-lab/capstone/internal/util"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewUserMgr)
}

type UserMgr struct {
	name  string
	users store.UserStore
}

func NewUserMgr(conf *RegisterConfig) Manager {
	return &UserMgr{
		name:  "users",
		users: conf.UserStore,
	}
}

func (mgr *UserMgr) GetName() string { return mgr.name }

func (mgr *UserMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *UserMgr) RegisterProtected(g *gin.RouterGroup) {
	g.GET("/me", mgr.GetMe)
}

func (mgr *UserMgr) RegisterAdmin(g *gin.RouterGroup) {
	g.GET("", mgr.AdminListUsers)
	g.PUT("/:id/role", mgr.AdminUpdateRole)
}

type UserResp struct {
	ID       uint             `json:"id"`
	Username string           `json:"username"`
	Nickname *string          `json:"nickname"`
	Email    *string          `json:"email"`
	Role     model.Role       `json:"role"`
	Status   model.UserStatus `json:"status"`
}

func userResp(u *model.User) UserResp {
	return UserResp{
		ID:       u.ID,
		Username: u.Name,
		Nickname: u.Nickname,
		Email:    u.Email,
		Role:     u.Role,
		Status:   u.Status,
	}
}

// GetMe godoc
// @Summary Current account
// @Description Returns the authenticated user's account record
// @Tags User
// @Produce json
// @Success 200 {object} resputil.Response[UserResp] "account details"
// @Router /users/me [get]
func (mgr *UserMgr) GetMe(c *gin.Context) {
	token := util.GetToken(c)
	user, err := mgr.users.GetByID(c.Request.Context(), token.UserID)
	if err != nil {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	resputil.Success(c, userResp(user))
}

// AdminListUsers godoc
// @Summary List all accounts
// @Description Coordinator view of every account with its role
// @Tags User
// @Produce json
// @Success 200 {object} resputil.Response[[]UserResp] "all accounts"
// @Router /admin/users [get]
func (mgr *UserMgr) AdminListUsers(c *gin.Context) {
	users, err := mgr.users.ListAll(c.Request.Context())
	if err != nil {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	resp := lo.Map(users, func(u model.User, _ int) UserResp {
		return userResp(&u)
	})
	resputil.Success(c, resp)
}

type UpdateRoleReq struct {
	Role model.Role `json:"role" binding:"required"`
}

// AdminUpdateRole godoc
// @Summary Change an account's role
// @Description Assigns the platform role (student, adviser, panelist, coordinator)
// @Tags User
// @Accept json
// @Produce json
// @Param id path int true "user ID"
// @Param data body UpdateRoleReq true "new role"
// @Success 200 {object} resputil.Response[UserResp] "updated account"
// @Router /admin/users/{id}/role [put]
func (mgr *UserMgr) AdminUpdateRole(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	var req UpdateRoleReq
	if err := c.ShouldBind(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	if req.Role > model.RoleCoordinator {
		resputil.BadRequestError(c, "unknown role")
		return
	}
	if err := mgr.users.UpdateRole(c.Request.Context(), id, req.Role); err != nil {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	user, err := mgr.users.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			resputil.Error(c, "user not found", resputil.NotFound)
			return
		}
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	resputil.Success(c, userResp(user))
}
