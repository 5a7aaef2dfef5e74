package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/PoluyanbIch/GoQuizBot/internal/config"
	"github.com/PoluyanbIch/GoQuizBot/internal/service"
	"github.com/PoluyanbIch/GoQuizBot/internal/tui"
	"github.com/PoluyanbIch/GoQuizBot/pkg/database"
	"github.com/PoluyanbIch/GoQuizBot/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	bankPath := flag.String("bank", "", "question bank file (overrides quiz.bank_path)")
	noColor := flag.Bool("no-color", false, "disable colors")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *bankPath != "" {
		cfg.Quiz.BankPath = *bankPath
	}

	// The terminal belongs to the UI.
	cfg.Log.Quiet = true
	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	bank, err := service.LoadBank(cfg.Quiz.BankPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load question bank: %v\n", err)
		os.Exit(1)
	}

	var history service.HistoryService
	if cfg.History.Backend == "redis" {
		client, err := database.NewUniversalRedisClient(context.Background(), cfg.Redis)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to connect to redis: %v\n", err)
			os.Exit(1)
		}
		defer client.Close()
		history = service.NewRedisHistoryService(client, cfg.History.KeyPrefix)
	}

	var rng *rand.Rand
	if cfg.Quiz.Seed != 0 {
		rng = rand.New(rand.NewSource(cfg.Quiz.Seed))
	}

	model := tui.NewModel(bank, tui.Options{
		DefaultSize:  cfg.Quiz.DefaultSize,
		DefaultTimed: cfg.Quiz.DefaultTimed,
		NoColor:      *noColor,
		History:      history,
		Rand:         rng,
	})

	log.Info("practice started", zap.String("bank", cfg.Quiz.BankPath), zap.Int("questions", bank.Len()))
	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		log.Error("practice ui failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "practice ui failed: %v\n", err)
		os.Exit(1)
	}
}
