package db

import (
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/transvox/transvox/internal/history"
	"github.com/transvox/transvox/internal/models"
	"github.com/transvox/transvox/internal/pipeline"
	"github.com/transvox/transvox/internal/quota"
)

func Connect(dsn string) (*gorm.DB, error) {
	gdb, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := Migrate(gdb); err != nil {
		return nil, err
	}
	return gdb, nil
}

func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&models.User{},
		&quota.Subscription{},
		&quota.DailyUsage{},
		&history.Record{},
		&pipeline.Job{},
	)
}
