package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ResetState wipes all rows so integration suites start from a clean
// database. Only routed outside production.
func (s *Server) ResetState(c *gin.Context) {
	tables := []string{
		"task_assignees",
		"tasks",
		"categories",
		"invitations",
		"onboarding_progress",
		"memberships",
		"workspaces",
		"sessions",
		"users",
	}
	for _, table := range tables {
		if err := s.db.WithContext(c.Request.Context()).Exec("DELETE FROM " + table).Error; err != nil {
			AbortWithError(c, err)
			return
		}
	}
	c.Status(http.StatusNoContent)
}
