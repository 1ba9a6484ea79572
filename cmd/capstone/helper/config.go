package helper

import (
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/raids-lab/capstone/dao/store"
	"github.com/raids-lab/capstone/internal/handler"
	"github.com/raids-lab/capstone/pkg/alert"
	"github.com/raids-lab/capstone/pkg/config"
	"github.com/raids-lab/capstone/pkg/similarity"
	"github.com/raids-lab/capstone/pkg/workflowctl"
)

// ConfigInitializer wires configuration and shared dependencies.
type ConfigInitializer struct {
	backendConfig *config.Config
}

func NewConfigInitializer() *ConfigInitializer {
	return &ConfigInitializer{
		backendConfig: config.GetConfig(),
	}
}

func (ci *ConfigInitializer) GetBackendConfig() *config.Config {
	return ci.backendConfig
}

// LoadDebugEnvironment loads .debug.env in debug mode.
func (ci *ConfigInitializer) LoadDebugEnvironment() error {
	if gin.Mode() != gin.DebugMode {
		return nil
	}

	err := godotenv.Load(".debug.env")
	if err != nil {
		return err
	}

	be := os.Getenv("CAPSTONE_BE_PORT")
	if be == "" {
		panic("CAPSTONE_BE_PORT is not set")
	}
	ci.backendConfig.ServerAddr = ":" + be

	return nil
}

// InitializeRegisterConfig opens the database, runs migrations, and
// builds the stores and engine controllers.
func (ci *ConfigInitializer) InitializeRegisterConfig() (*handler.RegisterConfig, error) {
	db := store.GetDB()
	if err := store.Migrate(db); err != nil {
		return nil, err
	}

	userStore := store.NewUserStore(db)
	teamStore := store.NewTeamStore(db)
	projectStore := store.NewProjectStore(db)
	chapterStore := store.NewChapterStore(db)
	deadlineStore := store.NewDeadlineStore(db)

	registerConfig := &handler.RegisterConfig{
		DB:            db,
		UserStore:     userStore,
		ProjectStore:  projectStore,
		DeadlineStore: deadlineStore,
		TeamCtl:       workflowctl.NewTeamController(teamStore),
		ProjectCtl:    workflowctl.NewProjectController(projectStore, teamStore, chapterStore),
		ChapterCtl:    workflowctl.NewChapterController(chapterStore, projectStore),
		Alerter:       alert.GetAlertMgr(),
		Similarity:    similarity.NewClient(),
	}
	return registerConfig, nil
}
