package main

import (
	"time"

	"k8s.io/klog/v2"

	"github.com/raids-lab/capstone/cmd/capstone/helper"
	"github.com/raids-lab/capstone/pkg/reminder"
)

// @title						Capstone Workflow API
// @version						1.0.0
// @description					API server for the capstone project lifecycle: team formation, chapter review, and defense workflow.
// @securityDefinitions.apikey	Bearer
// @in							header
// @name						Authorization
// @description					Log in at /auth/login and pass 'Bearer ${TOKEN}' to access protected endpoints
func main() {
	configInit := helper.NewConfigInitializer()
	backendConfig := configInit.GetBackendConfig()

	if err := configInit.LoadDebugEnvironment(); err != nil {
		klog.Fatalf("Failed to load env: %s", err)
	}

	registerConfig, err := configInit.InitializeRegisterConfig()
	if err != nil {
		klog.Fatalf("Failed to register config: %s\n", err)
	}

	reminderMgr := reminder.NewManager(
		registerConfig.DeadlineStore,
		registerConfig.ProjectStore,
		registerConfig.UserStore,
		registerConfig.Alerter,
		time.Duration(backendConfig.ReminderWindowHours)*time.Hour,
	)
	if err := reminderMgr.Start(backendConfig.ReminderSpec); err != nil {
		klog.Fatalf("Failed to start reminder manager: %s", err)
	}
	defer reminderMgr.Stop()

	serverRunner := helper.NewServerRunner(backendConfig)
	serverRunner.StartServer(registerConfig)
}
