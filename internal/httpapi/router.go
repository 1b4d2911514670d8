package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/transvox/transvox/internal/common"
	"github.com/transvox/transvox/internal/config"
	"github.com/transvox/transvox/internal/httpapi/handlers"
	"github.com/transvox/transvox/internal/httpapi/middleware"
	"github.com/transvox/transvox/internal/quota"
)

func NewRouter(db *gorm.DB, cfg config.Config, q *quota.Service) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())

	h := handlers.NewHandler(db, cfg, q)

	r.GET("/ping", h.Ping)
	r.POST("/login", h.Login)

	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(cfg.JWTSecret))
	authGroup.GET("/me", h.Me)
	authGroup.GET("/stats", h.Stats)
	authGroup.GET("/users/:id/usage", h.GetUserUsage)
	authGroup.GET("/users/:id/history", h.GetUserHistory)
	authGroup.POST("/users/:id/premium", h.GrantPremium)
	authGroup.GET("/jobs/:id", h.GetJob)
	return r
}
