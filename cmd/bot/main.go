package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

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

// inlinePublisher processes jobs in the bot process itself. Used in memory
// session mode, where a separate worker could not see the bot's sessions.
type inlinePublisher struct {
	pipe *pipeline.Pipeline
	wg   sync.WaitGroup
}

func (p *inlinePublisher) PublishJob(ctx context.Context, jobID string) error {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		jctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		_ = p.pipe.ProcessJob(jctx, jobID)
	}()
	return nil
}

func main() {
	cfg := config.Load()
	logger := logging.New()

	if cfg.BotToken == "" {
		logger.Fatal().Msg("BOT_TOKEN is required")
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

	var (
		store  session.Store
		locker session.Locker
	)
	switch cfg.SessionStore {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		rs := session.NewRedisStore(rdb)
		store, locker = rs, rs
	default:
		ms := session.NewMemoryStore()
		store, locker = ms, ms
	}

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
	bot := telegram.NewBot(client, quotaSvc, cfg.SubscriptionPriceStars, cfg.MaxFileSizeBytes, logger)

	deps := pipeline.Deps{
		Quota:       quotaSvc,
		Sessions:    store,
		Locker:      locker,
		Artifacts:   artifacts,
		Transcriber: openai,
		Translators: translators,
		History:     history.NewRepo(gdb),
		Jobs:        pipeline.NewJobRepo(gdb),
		Files:       client,
		Notifier:    bot,
		Logger:      logger,
	}

	// Memory sessions live only in this process, so jobs must run here too.
	// With redis sessions the dedicated worker picks them up over rabbit.
	var inline *inlinePublisher
	if cfg.SessionStore == "redis" {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			logger.Fatal().Err(err).Msg("rabbit connect failed")
		}
		defer pub.Close()
		deps.Publisher = pub
	} else {
		inline = &inlinePublisher{}
		deps.Publisher = inline
	}

	pipe := pipeline.New(pipeline.Options{
		MaxFileSizeBytes:  cfg.MaxFileSizeBytes,
		AudioExtensions:   cfg.AudioExtensions,
		VideoExtensions:   cfg.VideoExtensions,
		SessionTTL:        cfg.SessionTTL,
		ReplacePolicy:     cfg.ReplacePolicy,
		TranslateProvider: cfg.TranslateProvider,
		TranslateModel:    cfg.TranslateModel,
	}, deps)
	bot.Attach(pipe)
	if inline != nil {
		inline.pipe = pipe
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	janitor := session.NewJanitor(store, func(s session.Session) {
		artifacts.Remove(s.ArtifactPath)
	}, time.Minute, logger)
	go janitor.Run(ctx)

	logger.Info().Str("session_store", cfg.SessionStore).Msg("bot started")

	var wg sync.WaitGroup
	var offset int64
	for {
		updates, err := client.GetUpdates(ctx, offset, 30)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			logger.Error().Err(err).Msg("get updates failed")
			time.Sleep(2 * time.Second)
			continue
		}
		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			wg.Add(1)
			go func(u telegram.Update) {
				defer wg.Done()
				bot.HandleUpdate(ctx, u)
			}(u)
		}
	}

	logger.Info().Msg("bot shutting down")
	wg.Wait()
	if inline != nil {
		inline.wg.Wait()
	}
}
