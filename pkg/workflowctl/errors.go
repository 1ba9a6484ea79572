package workflowctl

import (
	"errors"
	"fmt"
)

// Reason identifies an expected workflow failure. Reasons are stable
// API: the gateway maps them to response codes, the UI keys messages on
// them. Anything else coming out of an engine is an infrastructure
// error.
type Reason string

const (
	ReasonInvalidTransition   Reason = "InvalidTransition"
	ReasonNotFound            Reason = "NotFound"
	ReasonUnauthorized        Reason = "Unauthorized"
	ReasonDuplicateChapter    Reason = "DuplicateChapter"
	ReasonTeamNotReady        Reason = "TeamNotReady"
	ReasonAlreadyInvited      Reason = "AlreadyInvited"
	ReasonAlreadyResolved     Reason = "AlreadyResolved"
	ReasonInsufficientMembers Reason = "InsufficientMembers"
	ReasonNoFeedback          Reason = "NoFeedback"
	ReasonNotReviewable       Reason = "NotReviewable"
	ReasonTeamNotForming      Reason = "TeamNotForming"
	ReasonAlreadyInTeam       Reason = "AlreadyInTeam"
	ReasonTeamFull            Reason = "TeamFull"
	ReasonProjectExists       Reason = "ProjectExists"
	ReasonNoDocument          Reason = "NoDocument"
	ReasonInvalidArgument     Reason = "InvalidArgument"
)

// Error is a typed workflow failure. The message names the current
// state, the required role, or the missing precondition so the caller
// can explain the rejection.
type Error struct {
	Reason  Reason
	Message string
}

func (e *Error) Error() string {
	return string(e.Reason) + ": " + e.Message
}

func Errorf(reason Reason, format string, args ...any) *Error {
	return &Error{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// ReasonOf extracts the workflow reason from err. The second return is
// false for infrastructure errors.
func ReasonOf(err error) (Reason, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason, true
	}
	return "", false
}
