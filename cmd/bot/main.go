package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/PoluyanbIch/GoQuizBot/internal/config"
	"github.com/PoluyanbIch/GoQuizBot/internal/metrics"
	"github.com/PoluyanbIch/GoQuizBot/internal/quiz"
	"github.com/PoluyanbIch/GoQuizBot/internal/service"
	"github.com/PoluyanbIch/GoQuizBot/internal/telegram"
	"github.com/PoluyanbIch/GoQuizBot/pkg/database"
	"github.com/PoluyanbIch/GoQuizBot/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found, using system env")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if cfg.Bot.Token == "" {
		log.Fatal("TELEGRAM_BOT_TOKEN environment variable is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bank := service.LoadBankOrDefault(cfg.Quiz.BankPath, log)

	var store service.RedisStore
	if cfg.UsesRedis() {
		client, err := database.NewUniversalRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer client.Close()
		store = client
	}

	var history service.HistoryService = service.NewMemoryHistoryService()
	if cfg.History.Backend == "redis" {
		history = service.NewRedisHistoryService(store, cfg.History.KeyPrefix)
	}

	leaderboard, err := service.NewLeaderboardService(cfg.Leaderboard, store, log)
	if err != nil {
		log.Fatal("failed to create leaderboard", zap.Error(err))
	}

	m := metrics.New()
	if cfg.Metrics.Enabled {
		go func() {
			if err := m.Serve(ctx, cfg.Metrics.Addr, log); err != nil {
				log.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	var rng *rand.Rand
	if cfg.Quiz.Seed != 0 {
		rng = rand.New(rand.NewSource(cfg.Quiz.Seed))
	}

	bot, err := telegram.NewBot(cfg.Bot.Token, cfg.Bot.Debug, telegram.Deps{
		Bank:        bank,
		Leaderboard: leaderboard,
		History:     history,
		Metrics:     m,
		Log:         log,
		Clock:       quiz.SystemClock{},
		Rand:        rng,
	}, telegram.Options{
		DefaultSize:   cfg.Quiz.DefaultSize,
		DefaultTimed:  cfg.Quiz.DefaultTimed,
		AnswerDelay:   cfg.Bot.AnswerDelay,
		RatePerSecond: cfg.Bot.RatePerSecond,
		RateBurst:     cfg.Bot.RateBurst,
		PollTimeout:   cfg.Bot.PollTimeout,
		ChatIdleTTL:   cfg.Bot.ChatIdleTTL,
	})
	if err != nil {
		log.Fatal("failed to create bot", zap.Error(err))
	}

	log.Info("🤖 Bot is starting...")
	bot.Start(ctx)
}
