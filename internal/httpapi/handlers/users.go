package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/transvox/transvox/internal/common"
)

func userIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid user id")
		return 0, false
	}
	return id, true
}

func (h *Handler) GetUserUsage(c *gin.Context) {
	id, ok := userIDParam(c)
	if !ok {
		return
	}

	dec, err := h.Quota.Evaluate(c.Request.Context(), id)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	used, err := h.Quota.GetToday(c.Request.Context(), id)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, gin.H{
		"user_id":        id,
		"class":          string(dec.Class),
		"requests_today": used,
		"remaining":      dec.Remaining,
	})
}

func (h *Handler) GetUserHistory(c *gin.Context) {
	id, ok := userIDParam(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	records, err := h.History.ListRecent(c.Request.Context(), id, limit)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, gin.H{"user_id": id, "records": records})
}

// GrantPremium activates a subscription without going through payment.
// Used for support and manual promotions.
func (h *Handler) GrantPremium(c *gin.Context) {
	id, ok := userIDParam(c)
	if !ok {
		return
	}
	if err := h.Quota.ActivatePremium(c.Request.Context(), id); err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, gin.H{"user_id": id, "is_premium": true})
}

func (h *Handler) GetJob(c *gin.Context) {
	job, err := h.Jobs.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40401, "job not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, job)
}
