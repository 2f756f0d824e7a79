package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type updateMemberRoleRequest struct {
	Role string `json:"role"`
}

func (s *Server) ListMembers(c *gin.Context) {
	userID, ok := s.userID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	members, err := s.workspaceSvc.ListMembers(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members})
}

func (s *Server) UpdateMemberRole(c *gin.Context) {
	userID, ok := s.userID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req updateMemberRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	err := s.workspaceSvc.UpdateMemberRole(c.Request.Context(), userID, c.Param("id"), c.Param("userId"), req.Role)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) RemoveMember(c *gin.Context) {
	userID, ok := s.userID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	err := s.workspaceSvc.RemoveMember(c.Request.Context(), userID, c.Param("id"), c.Param("userId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
