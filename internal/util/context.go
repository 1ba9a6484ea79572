package util

import (
	"github.com/gin-gonic/gin"

	"github.com/raids-lab/capstone/dao/model"
	"github.com/raids-lab/capstone/pkg/workflowctl"
)

const (
	UserIDKey   = "x-user-id"
	UsernameKey = "x-user-name"
	RoleKey     = "x-role-platform"
)

func SetJWTContext(c *gin.Context, msg JWTMessage) {
	c.Set(UserIDKey, msg.UserID)
	c.Set(UsernameKey, msg.Username)
	c.Set(RoleKey, msg.Role)
}

func GetToken(ctx *gin.Context) JWTMessage {
	var msg JWTMessage
	msg.UserID = ctx.GetUint(UserIDKey)
	msg.Username = ctx.GetString(UsernameKey)

	role, _ := ctx.Get(RoleKey)
	msg.Role, _ = role.(model.Role)
	return msg
}

// GetActor resolves the engine-facing actor identity from the request
// context.
func GetActor(ctx *gin.Context) workflowctl.Actor {
	msg := GetToken(ctx)
	return workflowctl.Actor{ID: msg.UserID, Name: msg.Username, Role: msg.Role}
}
