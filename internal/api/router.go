package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/neillidocker/aws-announcements-scraper/internal/datefilter"
	"github.com/neillidocker/aws-announcements-scraper/internal/storage"
)

// Store 抽象查询层，便于测试时注入假实现
type Store interface {
	List(source, month, sort string, limit int) ([]storage.Announcement, error)
	ListMonths(source string, limit int) ([]string, error)
}

// Refresher 触发一轮立即采集
type Refresher interface {
	RunOnce()
}

type Server struct {
	store     Store
	refresher Refresher
}

func NewServer(store Store, refresher Refresher) *Server {
	return &Server{store: store, refresher: refresher}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/announcements", s.listAnnouncements)
		v1.GET("/announcements/months", s.listMonths)
		v1.POST("/refresh", s.refresh)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listAnnouncements(c *gin.Context) {
	source := c.Query("source")

	month := c.Query("month")
	if month != "" {
		if _, err := datefilter.Parse(month); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "bad_request",
				"message": "invalid month, expected YYYY-MM",
			})
			return
		}
	}

	sort := c.DefaultQuery("sort", "latest")
	if sort != "latest" && sort != "oldest" {
		sort = "latest"
	}

	limitStr := c.DefaultQuery("limit", "20")
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		limit = 20
	}

	items, err := s.store.List(source, month, sort, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "internal_error",
			"message": "internal server error",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    items,
	})
}

func (s *Server) listMonths(c *gin.Context) {
	source := c.Query("source")

	limitStr := c.DefaultQuery("limit", "24")
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		limit = 24
	}

	months, err := s.store.ListMonths(source, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "internal_error",
			"message": "internal server error",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    months,
	})
}

func (s *Server) refresh(c *gin.Context) {
	if s.refresher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"code":    "unavailable",
			"message": "refresh not available",
		})
		return
	}

	// 采集可能要跑几十秒，放到后台执行，立即返回
	go s.refresher.RunOnce()

	c.JSON(http.StatusAccepted, gin.H{
		"code":    "accepted",
		"message": "refresh scheduled",
	})
}
