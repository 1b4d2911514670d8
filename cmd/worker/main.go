package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/transvox/transvox/internal/artifact"
	"github.com/transvox/transvox/internal/config"
	"github.com/transvox/transvox/internal/db"
	"github.com/transvox/transvox/internal/history"
	"github.com/transvox/transvox/internal/logging"
	"github.com/transvox/transvox/internal/pipeline"
	"github.com/transvox/transvox/internal/quota"
	"github.com/transvox/transvox/internal/session"
	"github.com/transvox/transvox/internal/speech"
	"github.com/transvox/transvox/internal/store/rabbitmq"
	"github.com/transvox/transvox/internal/telegram"
)

type jobMsg struct {
	JobID string `json:"job_id"`
}

func workerConcurrency() int {
	v := os.Getenv("WORKER_CONCURRENCY")
	if v == "" {
		return 2
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

func main() {
	cfg := config.Load()
	logger := logging.New()

	if cfg.SessionStore != "redis" {
		logger.Fatal().Msg("worker requires SESSION_STORE=redis; memory sessions are per-process")
	}

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

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	store := session.NewRedisStore(rdb)

	artifacts := artifact.NewManager(cfg.TmpDir, cfg.MaxFileSizeBytes, logger)

	openai := speech.NewOpenAIClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.WhisperModel, cfg.TranslateModel)
	translators := speech.NewRegistry()
	translators.Register("openai", cfg.TranslateModel, func(ctx context.Context, model string) (speech.Translator, error) {
		return speech.NewOpenAIClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.WhisperModel, model), nil
	})
	translators.Register("ollama", cfg.OllamaModel, func(ctx context.Context, model string) (speech.Translator, error) {
		return speech.NewOllamaTranslator(cfg.OllamaBaseURL, model), nil
	})

	client := telegram.NewClient(cfg.BotBaseURL, cfg.BotToken)
	notifier := telegram.NewBot(client, quotaSvc, cfg.SubscriptionPriceStars, cfg.MaxFileSizeBytes, logger)

	pipe := pipeline.New(pipeline.Options{
		MaxFileSizeBytes:  cfg.MaxFileSizeBytes,
		AudioExtensions:   cfg.AudioExtensions,
		VideoExtensions:   cfg.VideoExtensions,
		SessionTTL:        cfg.SessionTTL,
		ReplacePolicy:     cfg.ReplacePolicy,
		TranslateProvider: cfg.TranslateProvider,
		TranslateModel:    cfg.TranslateModel,
	}, pipeline.Deps{
		Quota:       quotaSvc,
		Sessions:    store,
		Locker:      store,
		Artifacts:   artifacts,
		Transcriber: openai,
		Translators: translators,
		History:     history.NewRepo(gdb),
		Jobs:        pipeline.NewJobRepo(gdb),
		Files:       client,
		Notifier:    notifier,
		Logger:      logger,
	})

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("rabbit dial failed")
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal().Err(err).Msg("rabbit channel failed")
	}
	defer ch.Close()

	if err := rabbitmq.DeclareTopology(ch, cfg.RabbitQueue); err != nil {
		logger.Fatal().Err(err).Msg("queue declare failed")
	}

	concurrency := workerConcurrency()

	if err := ch.Qos(concurrency, 0, false); err != nil {
		logger.Fatal().Err(err).Msg("qos failed")
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("consume failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().
		Str("queue", cfg.RabbitQueue).
		Int("concurrency", concurrency).
		Msg("worker started")

	// worker pool
	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				var m jobMsg
				if err := json.Unmarshal(d.Body, &m); err != nil || m.JobID == "" {
					logger.Error().Err(err).Int("worker", workerID).Msg("bad message")
					_ = d.Nack(false, false)
					continue
				}

				start := time.Now()
				if err := pipe.ProcessJob(ctx, m.JobID); err != nil {
					logger.Error().Err(err).
						Int("worker", workerID).
						Str("job_id", m.JobID).
						Dur("cost", time.Since(start)).
						Msg("job failed")
					// the pipeline already recorded the failure and told the
					// user; requeueing would double-charge collaborators
					_ = d.Nack(false, false)
					continue
				}

				if err := d.Ack(false); err != nil {
					logger.Error().Err(err).
						Int("worker", workerID).
						Str("job_id", m.JobID).
						Msg("ack failed")
				}
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("worker shutting down")
			close(jobs)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				logger.Warn().Msg("delivery channel closed")
				time.Sleep(1 * time.Second)
				continue
			}
			jobs <- d
		}
	}
}
