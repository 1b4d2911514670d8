package handlers

import (
	"gorm.io/gorm"

	"github.com/transvox/transvox/internal/config"
	"github.com/transvox/transvox/internal/history"
	"github.com/transvox/transvox/internal/pipeline"
	"github.com/transvox/transvox/internal/quota"
)

type Handler struct {
	DB      *gorm.DB
	Cfg     config.Config
	Quota   *quota.Service
	History *history.Repo
	Jobs    *pipeline.JobRepo
}

func NewHandler(db *gorm.DB, cfg config.Config, q *quota.Service) *Handler {
	return &Handler{
		DB:      db,
		Cfg:     cfg,
		Quota:   q,
		History: history.NewRepo(db),
		Jobs:    pipeline.NewJobRepo(db),
	}
}
