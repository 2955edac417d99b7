package api

import (
	"errors"
	"net/http"

	"remarknews/runlock"

	"github.com/gin-gonic/gin"
)

func (s *Server) registerRunRoutes(r *gin.Engine) {
	g := r.Group("/api/runs")
	g.POST("", s.handleStartRun)
	g.GET("", s.handleListRuns)
	g.GET("/:id", s.handleGetRun)
}

// StartRunRequest optionally overrides the configured format and window.
type StartRunRequest struct {
	Format string `json:"format"`
	Hours  int    `json:"hours"`
}

// handleStartRun starts a digest run asynchronously and returns 202 with its id.
func (s *Server) handleStartRun(c *gin.Context) {
	var req StartRunRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	id, err := s.Trigger(req.Format, req.Hours, "api")
	switch {
	case errors.Is(err, runlock.ErrLocked):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case errors.Is(err, ErrBadRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status": "started",
		"run_id": id,
	})
}

func (s *Server) handleListRuns(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"runs": s.runs.list()})
}

func (s *Server) handleGetRun(c *gin.Context) {
	st, ok := s.runs.get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	c.JSON(http.StatusOK, st)
}
