package alert

import (
	"context"
	"fmt"
	"sync"

	"k8s.io/klog/v2"

	"github.com/raids-lab/capstone/dao/model"
	"github.com/raids-lab/capstone/pkg/config"
)

type AlertMgr struct {
	handler alertHandlerInterface
}

var (
	once sync.Once
	mgr  *AlertMgr
)

// GetAlertMgr returns the notification manager. When SMTP is disabled
// the manager swallows every alert.
func GetAlertMgr() AlertInterface {
	once.Do(func() {
		if config.GetConfig().SMTP.Enable {
			mgr = &AlertMgr{handler: newSMTPSender()}
		} else {
			mgr = &AlertMgr{handler: &noopSender{}}
		}
	})
	return mgr
}

func (m *AlertMgr) InvitationAlert(ctx context.Context, invitee *model.User, team *model.Team) error {
	subject := fmt.Sprintf("Team invitation: %s", team.Name)
	body := fmt.Sprintf(
		"<p>You have been invited to join capstone team <b>%s</b>.</p>"+
			"<p>Open your invitations page to accept or decline.</p>", team.Name)
	return m.handler.SendMessageTo(ctx, invitee, subject, body)
}

func (m *AlertMgr) ReviewDecisionAlert(ctx context.Context, receiver *model.User,
	chapter *model.Chapter, decision model.ReviewDecision) error {
	subject := fmt.Sprintf("Chapter %d reviewed: %s", chapter.ChapterNumber, decision)
	body := fmt.Sprintf(
		"<p>Your adviser reviewed chapter %d (%s) of phase %d: <b>%s</b>.</p>",
		chapter.ChapterNumber, chapter.Title, chapter.CapstonePhase, decision)
	return m.handler.SendMessageTo(ctx, receiver, subject, body)
}

func (m *AlertMgr) DeadlineReminderAlert(ctx context.Context, receiver *model.User,
	deadline *model.Deadline) error {
	subject := fmt.Sprintf("Upcoming deadline: %s", deadline.Title)
	body := fmt.Sprintf(
		"<p>The phase %d deadline <b>%s</b> is due at %s.</p><p>%s</p>",
		deadline.CapstonePhase, deadline.Title,
		deadline.DueAt.Format("2006-01-02 15:04"), deadline.Note)
	return m.handler.SendMessageTo(ctx, receiver, subject, body)
}

type noopSender struct{}

func (*noopSender) SendMessageTo(_ context.Context, receiver *model.User, subject, _ string) error {
	klog.V(4).Infof("smtp disabled, dropping alert %q for %s", subject, receiver.Name)
	return nil
}
