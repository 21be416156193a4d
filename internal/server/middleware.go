package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/bsma/internal/observability/context"
	obslogger "github.com/smallbiznis/bsma/internal/observability/logger"
)

const contextActorKey = "actor_id"

// ActorRequired rejects writes that do not name the operator performing
// them. The identity is set by the auth proxy in front of the API.
func (s *Server) ActorRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := actorFromRequest(c)
		if actor == "" {
			AbortWithError(c, newValidationError("actor", "missing_actor", obslogger.HeaderActorID+" header is required"))
			return
		}
		c.Set(contextActorKey, actor)
		c.Next()
	}
}

func actorFromRequest(c *gin.Context) string {
	if _, id := obscontext.ActorFromContext(c.Request.Context()); strings.TrimSpace(id) != "" {
		return strings.TrimSpace(id)
	}
	return strings.TrimSpace(c.GetHeader(obslogger.HeaderActorID))
}
