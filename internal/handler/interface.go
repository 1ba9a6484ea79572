package handler

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/raids-lab/capstone/dao/store"
	"github.com/raids-lab/capstone/pkg/alert"
	"github.com/raids-lab/capstone/pkg/similarity"
	"github.com/raids-lab/capstone/pkg/workflowctl"
)

type Manager interface {
	GetName() string
	RegisterPublic(group *gin.RouterGroup)
	RegisterProtected(group *gin.RouterGroup)
	RegisterAdmin(group *gin.RouterGroup)
}

// RegisterConfig carries the shared dependencies handed to every
// manager constructor.
type RegisterConfig struct {
	DB *gorm.DB

	UserStore     store.UserStore
	ProjectStore  store.ProjectStore
	DeadlineStore store.DeadlineStore

	TeamCtl    *workflowctl.TeamController
	ProjectCtl *workflowctl.ProjectController
	ChapterCtl *workflowctl.ChapterController

	Alerter    alert.AlertInterface
	Similarity similarity.ClientInterface
}

// Registers collects the manager constructors; each handler file
// appends its own in init().
var Registers []func(*RegisterConfig) Manager
