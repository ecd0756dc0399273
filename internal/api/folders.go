package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type createFolderRequest struct {
	Name string `json:"name" binding:"required,max=200"`
}

func (s *Server) dashboard(c *gin.Context) {
	d, err := s.service.ListDashboard(currentUser(c).ID, c.Query("folder"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newDashboardResponse(d))
}

func (s *Server) createFolder(c *gin.Context) {
	var req createFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "folder name is required"})
		return
	}

	folder, err := s.service.CreateFolder(currentUser(c).ID, req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newFolderResponse(folder))
}

func (s *Server) deleteFolder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.service.DeleteFolder(currentUser(c).ID, id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// pathID parses the :id parameter, answering 404 for anything that is not a positive integer.
func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusNotFound, errorResponse{Error: "not found"})
		return 0, false
	}
	return id, true
}
