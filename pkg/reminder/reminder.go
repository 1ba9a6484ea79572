// Package reminder mails team leaders ahead of phase deadlines.
package reminder

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"k8s.io/klog/v2"

	"github.com/raids-lab/capstone/dao/model"
	"github.com/raids-lab/capstone/dao/store"
	"github.com/raids-lab/capstone/pkg/alert"
)

type Manager struct {
	deadlines store.DeadlineStore
	projects  store.ProjectStore
	users     store.UserStore
	alerter   alert.AlertInterface
	window    time.Duration
	cron      *cron.Cron
}

func NewManager(deadlines store.DeadlineStore, projects store.ProjectStore,
	users store.UserStore, alerter alert.AlertInterface, window time.Duration) *Manager {
	return &Manager{
		deadlines: deadlines,
		projects:  projects,
		users:     users,
		alerter:   alerter,
		window:    window,
		cron:      cron.New(cron.WithLocation(time.Local)),
	}
}

// Start schedules the scan. An empty spec disables the manager.
func (m *Manager) Start(spec string) error {
	if spec == "" {
		klog.Info("deadline reminder disabled, no cron spec")
		return nil
	}
	if _, err := m.cron.AddFunc(spec, func() {
		if err := m.RunOnce(context.Background()); err != nil {
			klog.Errorf("deadline reminder scan failed: %v", err)
		}
	}); err != nil {
		return err
	}
	m.cron.Start()
	klog.Infof("deadline reminder scheduled with spec %q, window %s", spec, m.window)
	return nil
}

func (m *Manager) Stop() {
	m.cron.Stop()
}

// RunOnce scans for deadlines falling due within the window and mails
// the leader of every team whose project sits in the matching phase.
func (m *Manager) RunOnce(ctx context.Context) error {
	due, err := m.deadlines.ListDueWithin(ctx, m.window)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}
	projects, err := m.projects.ListAll(ctx)
	if err != nil {
		return err
	}

	for di := range due {
		d := &due[di]
		for pi := range projects {
			p := &projects[pi]
			if p.CapstonePhase != d.CapstonePhase || p.Status == model.ProjectStatusArchived {
				continue
			}
			leader, err := m.users.GetByID(ctx, p.Team.LeaderID)
			if err != nil {
				klog.Errorf("load leader %d of team %d: %v", p.Team.LeaderID, p.TeamID, err)
				continue
			}
			if err := m.alerter.DeadlineReminderAlert(ctx, leader, d); err != nil {
				klog.Errorf("deadline reminder for user %d failed: %v", leader.ID, err)
			}
		}
	}
	return nil
}
