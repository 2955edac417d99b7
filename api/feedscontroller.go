package api

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"remarknews/config"
	"remarknews/rssfeeds"
	"remarknews/types"

	"github.com/gin-gonic/gin"
)

func (s *Server) registerFeedRoutes(r *gin.Engine) {
	r.POST("/api/feeds/preview", s.handlePreviewFeed)
	r.POST("/api/extract", s.handleExtract)
}

// PreviewRequest names a feed by preset key or URL.
type PreviewRequest struct {
	Feed  string `json:"feed" binding:"required"`
	Hours int    `json:"hours"`
}

type ExtractRequest struct {
	URL string `json:"url" binding:"required"`
}

type ExtractResponse struct {
	URL      string               `json:"url"`
	Blocks   []types.ContentBlock `json:"blocks"`
	Byline   string               `json:"byline,omitempty"`
	Excerpt  string               `json:"excerpt,omitempty"`
	SiteName string               `json:"site_name,omitempty"`
	Error    string               `json:"error,omitempty"`
}

// handlePreviewFeed returns the fresh, extracted items of one feed without
// rendering or delivering anything.
func (s *Server) handlePreviewFeed(c *gin.Context) {
	var req PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Hours < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "hours must be positive"})
		return
	}
	hours := req.Hours
	if hours == 0 {
		hours = s.runner.Config().FreshnessHours
	}

	src := config.ResolveFeed(req.Feed)
	if !isHTTPURL(src.URL) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "feed must be a preset name or an http(s) url"})
		return
	}

	articles := s.feeds.ProcessFeed(c.Request.Context(), src.URL, hours)
	for _, a := range articles {
		a.Source = src.Name
	}
	c.JSON(http.StatusOK, types.FeedResult{
		FeedURL:      src.URL,
		FetchedAt:    time.Now().UTC(),
		WindowHours:  hours,
		ArticleCount: len(articles),
		Articles:     articles,
	})
}

func (s *Server) handleExtract(c *gin.Context) {
	var req ExtractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !isHTTPURL(req.URL) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url must be absolute http(s)"})
		return
	}

	res, err := s.extractor.ExtractArticle(c.Request.Context(), req.URL)
	resp := ExtractResponse{
		URL:      req.URL,
		Blocks:   res.Blocks,
		Byline:   res.Byline,
		Excerpt:  res.Excerpt,
		SiteName: res.SiteName,
	}
	if err != nil {
		resp.Error = err.Error()
		status := http.StatusBadGateway
		if errors.Is(err, rssfeeds.ErrNotHTML) {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
