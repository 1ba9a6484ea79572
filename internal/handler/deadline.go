package handler

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/raids-lab/capstone/dao/model"
	"github.com/raids-lab/capstone/dao/store"
	"github.com/raids-lab/capstone/internal/resputil"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewDeadlineMgr)
}

type DeadlineMgr struct {
	name      string
	deadlines store.DeadlineStore
}

func NewDeadlineMgr(conf *RegisterConfig) Manager {
	return &DeadlineMgr{
		name:      "deadlines",
		deadlines: conf.DeadlineStore,
	}
}

func (mgr *DeadlineMgr) GetName() string { return mgr.name }

func (mgr *DeadlineMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *DeadlineMgr) RegisterProtected(g *gin.RouterGroup) {
	g.GET("", mgr.ListDeadlines)
}

func (mgr *DeadlineMgr) RegisterAdmin(g *gin.RouterGroup) {
	g.POST("", mgr.AdminCreateDeadline)
	g.PUT("/:id", mgr.AdminUpdateDeadline)
	g.DELETE("/:id", mgr.AdminDeleteDeadline)
}

type (
	DeadlineReq struct {
		Title         string    `json:"title" binding:"required"`
		CapstonePhase int       `json:"capstonePhase" binding:"required"`
		DueAt         time.Time `json:"dueAt" binding:"required"`
		Note          string    `json:"note"`
	}

	DeadlineResp struct {
		ID            uint      `json:"id"`
		Title         string    `json:"title"`
		CapstonePhase int       `json:"capstonePhase"`
		DueAt         time.Time `json:"dueAt"`
		Note          string    `json:"note"`
	}
)

func deadlineResp(d *model.Deadline) DeadlineResp {
	return DeadlineResp{
		ID:            d.ID,
		Title:         d.Title,
		CapstonePhase: d.CapstonePhase,
		DueAt:         d.DueAt,
		Note:          d.Note,
	}
}

// ListDeadlines godoc
// @Summary List phase deadlines
// @Tags Deadline
// @Produce json
// @Success 200 {object} resputil.Response[[]DeadlineResp] "deadlines ordered by due time"
// @Router /deadlines [get]
func (mgr *DeadlineMgr) ListDeadlines(c *gin.Context) {
	deadlines, err := mgr.deadlines.ListAll(c.Request.Context())
	if err != nil {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	resp := lo.Map(deadlines, func(d model.Deadline, _ int) DeadlineResp {
		return deadlineResp(&d)
	})
	resputil.Success(c, resp)
}

// AdminCreateDeadline godoc
// @Summary Create a deadline
// @Tags Deadline
// @Accept json
// @Produce json
// @Param data body DeadlineReq true "deadline details"
// @Success 200 {object} resputil.Response[DeadlineResp] "the new deadline"
// @Router /admin/deadlines [post]
func (mgr *DeadlineMgr) AdminCreateDeadline(c *gin.Context) {
	var req DeadlineReq
	if err := c.ShouldBind(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	d := &model.Deadline{
		Title:         req.Title,
		CapstonePhase: req.CapstonePhase,
		DueAt:         req.DueAt,
		Note:          req.Note,
	}
	if err := mgr.deadlines.Create(c.Request.Context(), d); err != nil {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	resputil.Success(c, deadlineResp(d))
}

// AdminUpdateDeadline godoc
// @Summary Update a deadline
// @Tags Deadline
// @Accept json
// @Produce json
// @Param id path int true "deadline ID"
// @Param data body DeadlineReq true "deadline details"
// @Success 200 {object} resputil.Response[DeadlineResp] "updated deadline"
// @Router /admin/deadlines/{id} [put]
func (mgr *DeadlineMgr) AdminUpdateDeadline(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	var req DeadlineReq
	if err := c.ShouldBind(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	d, err := mgr.deadlines.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			resputil.Error(c, "deadline not found", resputil.NotFound)
			return
		}
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	d.Title = req.Title
	d.CapstonePhase = req.CapstonePhase
	d.DueAt = req.DueAt
	d.Note = req.Note
	if err := mgr.deadlines.Update(c.Request.Context(), d); err != nil {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	resputil.Success(c, deadlineResp(d))
}

// AdminDeleteDeadline godoc
// @Summary Delete a deadline
// @Tags Deadline
// @Produce json
// @Param id path int true "deadline ID"
// @Success 200 {object} resputil.Response[any] "deleted"
// @Router /admin/deadlines/{id} [delete]
func (mgr *DeadlineMgr) AdminDeleteDeadline(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	if err := mgr.deadlines.Delete(c.Request.Context(), id); err != nil {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	resputil.Success[any](c, nil)
}
