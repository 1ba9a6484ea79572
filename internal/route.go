package internal

import (
	"net/http"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	docs "github.com/raids-lab/capstone/docs"
	"github.com/raids-lab/capstone/internal/handler"
	"github.com/raids-lab/capstone/internal/middleware"
)

const apiPrefix = "/api/v1"

type Backend struct {
	R *gin.Engine
}

// Register builds the gin engine and mounts every manager's routes
// under the public, protected, and admin groups.
func Register(conf *handler.RegisterConfig) *Backend {
	s := new(Backend)
	s.R = gin.Default()

	// Kubernetes health check
	s.R.GET("/v1/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "ok",
		})
	})
	s.R.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.registerService(conf)

	// Swagger
	docs.SwaggerInfo.BasePath = apiPrefix
	s.R.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return s
}

func (b *Backend) registerService(conf *handler.RegisterConfig) {
	// Enable CORS for http://localhost:XXXX in debug mode
	if gin.Mode() == gin.DebugMode {
		fe := os.Getenv("CAPSTONE_FE_PORT")
		if fe != "" {
			url := "http://localhost:" + fe
			corsConf := cors.DefaultConfig()
			corsConf.AllowOrigins = []string{url}
			corsConf.AllowHeaders = append(corsConf.AllowHeaders, "Authorization")
			b.R.Use(cors.New(corsConf))
		}
	}

	managers := registerManagers(conf)

	publicRouter := b.R.Group(apiPrefix)

	protectedRouter := b.R.Group(apiPrefix)
	protectedRouter.Use(middleware.Metrics(), middleware.AuthProtected(conf.DB))

	adminRouter := b.R.Group(apiPrefix + "/admin")
	adminRouter.Use(middleware.Metrics(), middleware.AuthProtected(conf.DB), middleware.AuthCoordinator())

	for _, mgr := range managers {
		mgr.RegisterPublic(publicRouter.Group(mgr.GetName()))
		mgr.RegisterProtected(protectedRouter.Group(mgr.GetName()))
		mgr.RegisterAdmin(adminRouter.Group(mgr.GetName()))
	}
}
