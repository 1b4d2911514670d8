package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/transvox/transvox/internal/auth"
	"github.com/transvox/transvox/internal/common"
)

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"message": "pong"})
}

type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if req.Username != h.Cfg.AdminUser || !auth.CheckPassword(h.Cfg.AdminPasswordHash, req.Password) {
		common.Fail(c, http.StatusUnauthorized, 10010, "invalid credentials")
		return
	}

	token, err := auth.SignJWT(req.Username, h.Cfg.JWTSecret, 24*time.Hour)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20003, "failed to sign token")
		return
	}
	common.OK(c, gin.H{"token": token})
}

func (h *Handler) Me(c *gin.Context) {
	common.OK(c, gin.H{"username": c.GetString("subject")})
}

func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.Quota.Snapshot(c.Request.Context())
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, gin.H{
		"users":          stats.Users,
		"premium_users":  stats.PremiumUsers,
		"requests_today": stats.RequestsToday,
	})
}
