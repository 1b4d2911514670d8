package main

import (
	"fmt"
	"os"

	"github.com/transvox/transvox/internal/auth"
	"github.com/transvox/transvox/internal/config"
	"github.com/transvox/transvox/internal/db"
	"github.com/transvox/transvox/internal/httpapi"
	"github.com/transvox/transvox/internal/logging"
	"github.com/transvox/transvox/internal/quota"
)

func main() {
	// `api hash-password <password>` prints the bcrypt hash to put in
	// ADMIN_PASSWORD_HASH, then exits.
	if len(os.Args) > 1 && os.Args[1] == "hash-password" {
		if len(os.Args) != 3 {
			fmt.Fprintln(os.Stderr, "usage: api hash-password <password>")
			os.Exit(2)
		}
		hash, err := auth.HashPassword(os.Args[2])
		if err != nil {
			fmt.Fprintln(os.Stderr, "hash failed:", err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	cfg := config.Load()
	logger := logging.New()

	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("db connect failed")
	}

	quotaSvc := quota.NewService(
		quota.NewRepo(gdb),
		cfg.DailyFreeRequests,
		cfg.SubscriptionDurationDays,
		cfg.QuotaFailOpen,
		logger,
	)

	r := httpapi.NewRouter(gdb, cfg, quotaSvc)

	logger.Info().Str("addr", cfg.HTTPAddr).Msg("ops api listening")
	if err := r.Run(cfg.HTTPAddr); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}
