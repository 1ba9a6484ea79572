package handler

import (
	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"

	"github.com/raids-lab/capstone/internal/resputil"
	"github.com/raids-lab/capstone/pkg/workflowctl"
)

var reasonCodes = map[workflowctl.Reason]resputil.ErrorCode{
	workflowctl.ReasonInvalidTransition:   resputil.InvalidTransition,
	workflowctl.ReasonNotFound:            resputil.NotFound,
	workflowctl.ReasonUnauthorized:        resputil.UserNotAllowed,
	workflowctl.ReasonDuplicateChapter:    resputil.DuplicateChapter,
	workflowctl.ReasonTeamNotReady:        resputil.TeamNotReady,
	workflowctl.ReasonAlreadyInvited:      resputil.AlreadyInvited,
	workflowctl.ReasonAlreadyResolved:     resputil.AlreadyResolved,
	workflowctl.ReasonInsufficientMembers: resputil.InsufficientMembers,
	workflowctl.ReasonNoFeedback:          resputil.NoFeedback,
	workflowctl.ReasonNotReviewable:       resputil.NotReviewable,
	workflowctl.ReasonTeamNotForming:      resputil.TeamNotForming,
	workflowctl.ReasonAlreadyInTeam:       resputil.AlreadyInTeam,
	workflowctl.ReasonTeamFull:            resputil.TeamFull,
	workflowctl.ReasonProjectExists:       resputil.ProjectExists,
	workflowctl.ReasonNoDocument:          resputil.NoDocument,
	workflowctl.ReasonInvalidArgument:     resputil.InvalidRequest,
}

// respondEngineError maps a typed workflow failure to its stable code.
// Infrastructure errors are logged and reported as unspecified.
func respondEngineError(c *gin.Context, err error) {
	if reason, ok := workflowctl.ReasonOf(err); ok {
		code, known := reasonCodes[reason]
		if !known {
			code = resputil.NotSpecified
		}
		resputil.Error(c, err.Error(), code)
		return
	}
	klog.Errorf("engine call failed: %v", err)
	resputil.Error(c, "internal error", resputil.NotSpecified)
}
