package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/raids-lab/capstone/dao/model"
	"github.com/raids-lab/capstone/internal/resputil"
	"github.com/raids-lab/capstone/internal/util"
)

// AuthProtected validates the bearer token. On mutating methods the
// platform role is re-checked against the database so a stale token
// cannot act with a revoked role.
func AuthProtected(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.Request.Header.Get("Authorization")
		t := strings.Split(authHeader, " ")
		if len(t) < 2 || t[0] != "Bearer" {
			resputil.HTTPError(c, http.StatusUnauthorized, "Invalid token", resputil.TokenInvalid)
			c.Abort()
			return
		}

		token, err := util.GetTokenMgr().CheckToken(t[1])
		if err != nil {
			resputil.HTTPError(c, http.StatusUnauthorized, err.Error(), resputil.TokenExpired)
			c.Abort()
			return
		}

		if c.Request.Method != http.MethodGet {
			var user model.User
			if err := db.First(&user, token.UserID).Error; err != nil {
				resputil.HTTPError(c, http.StatusUnauthorized, "User not found", resputil.TokenInvalid)
				c.Abort()
				return
			}
			if user.Role != token.Role || user.Status != model.UserStatusActive {
				resputil.HTTPError(c, http.StatusUnauthorized, "Platform role not match", resputil.TokenInvalid)
				c.Abort()
				return
			}
		}

		util.SetJWTContext(c, token)
		c.Next()
	}
}

// AuthCoordinator gates the admin route group.
func AuthCoordinator() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := util.GetToken(c)
		if token.Role != model.RoleCoordinator {
			resputil.HTTPError(c, http.StatusForbidden, "Not coordinator", resputil.UserNotAllowed)
			c.Abort()
			return
		}
		c.Next()
	}
}
