package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/raids-lab/capstone/internal/resputil"
)

// ParamID reads a numeric path parameter; on failure it has already
// written the 400 response.
func ParamID(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		resputil.BadRequestError(c, "invalid "+name+" parameter: "+raw)
		return 0, false
	}
	return uint(id), true
}
