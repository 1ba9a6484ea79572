package alert

import (
	"context"

	"github.com/raids-lab/capstone/dao/model"
)

// AlertInterface is the notification component at interface level.
// Delivery is best effort; workflow state never depends on it.
// Scenarios:
//  1. A student is invited to a team
//  2. The adviser records a review decision on a chapter
//  3. A phase deadline is approaching
type AlertInterface interface {
	InvitationAlert(ctx context.Context, invitee *model.User, team *model.Team) error
	ReviewDecisionAlert(ctx context.Context, receiver *model.User, chapter *model.Chapter,
		decision model.ReviewDecision) error
	DeadlineReminderAlert(ctx context.Context, receiver *model.User, deadline *model.Deadline) error
}

// alertHandlerInterface is what a concrete channel (SMTP today) must
// implement.
type alertHandlerInterface interface {
	SendMessageTo(ctx context.Context, receiver *model.User, subject, body string) error
}
