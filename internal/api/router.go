package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) newRouter(registry *prometheus.Registry) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestID(), s.accessLog(), s.metrics.middleware())

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	api := r.Group("/api")
	{
		api.GET("/health", s.health)

		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", s.register)
			authGroup.POST("/login", s.login)
			authGroup.POST("/logout", s.logout)
			authGroup.GET("/me", s.requireSession(), s.me)
		}

		protected := api.Group("", s.requireSession())
		{
			protected.GET("/dashboard", s.dashboard)

			protected.POST("/folders", s.createFolder)
			protected.DELETE("/folders/:id", s.deleteFolder)

			protected.POST("/files", s.uploadFile)
			protected.GET("/files/:id/download", s.downloadFile)
			protected.DELETE("/files/:id", s.deleteFile)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorResponse{Error: "route not found"})
	})

	return r
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
