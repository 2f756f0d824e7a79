package server

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/smallbiznis/taskway/internal/workspacectx"
	"go.uber.org/zap"
)

const (
	sessionCookieName = "taskway_session"
	contextUserIDKey  = "user_id"
	contextUserKey    = "user"

	HeaderWorkspace = "X-Workspace-ID"
	headerRequestID = "X-Request-ID"
)

// AuthRequired authenticates the session token from the Authorization
// header or the session cookie and stores the user on the gin context.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			if cookie, err := c.Cookie(sessionCookieName); err == nil {
				token = strings.TrimSpace(cookie)
			}
		}
		if token == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		user, err := s.authSvc.Authenticate(c.Request.Context(), token)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(contextUserIDKey, user.ID)
		c.Set(contextUserKey, user)
		c.Next()
	}
}

// WorkspaceContext resolves the active workspace from the route, falling
// back to query then header, and injects it into the request context. A
// missing identifier is a client error, never silently defaulted.
func (s *Server) WorkspaceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.Param("id"))
		if raw == "" {
			raw = strings.TrimSpace(c.Query("workspace_id"))
		}
		if raw == "" {
			raw = strings.TrimSpace(c.GetHeader(HeaderWorkspace))
		}
		if raw == "" {
			AbortWithError(c, newValidationError("workspace_id", "missing_workspace", "workspace identifier is required"))
			return
		}

		id, err := snowflake.ParseString(raw)
		if err != nil {
			AbortWithError(c, newValidationError("workspace_id", "invalid_workspace", "invalid value"))
			return
		}

		ctx := workspacectx.WithWorkspaceID(c.Request.Context(), int64(id))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(headerRequestID))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(headerRequestID, requestID)

		start := time.Now()
		c.Next()

		log.Info("http request",
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)))
	}
}

func (s *Server) userID(c *gin.Context) (snowflake.ID, bool) {
	value, ok := c.Get(contextUserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := value.(snowflake.ID)
	return id, ok
}

func bearerToken(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
