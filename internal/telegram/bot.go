package telegram

import (
	"context"
	"math/rand"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/PoluyanbIch/GoQuizBot/internal/metrics"
	"github.com/PoluyanbIch/GoQuizBot/internal/quiz"
	"github.com/PoluyanbIch/GoQuizBot/internal/service"
)

// botAPI is the part of *tgbotapi.BotAPI the bot uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

var _ botAPI = (*tgbotapi.BotAPI)(nil)

// Options tunes the bot's behaviour.
type Options struct {
	DefaultSize   int
	DefaultTimed  bool
	AnswerDelay   time.Duration
	RatePerSecond float64
	RateBurst     int
	PollTimeout   int
	// ChatIdleTTL is how long an idle chat without a running quiz is kept.
	ChatIdleTTL time.Duration
}

// Deps are the bot's collaborators.
type Deps struct {
	Bank        *quiz.Bank
	Leaderboard service.LeaderboardService
	History     service.HistoryService
	Metrics     *metrics.Metrics
	Log         *zap.Logger
	Clock       quiz.Clock
	// Rand fixes the sampling source; nil uses a time-seeded one per session.
	Rand *rand.Rand
}

// setup is what the user picked on the settings screen.
type setup struct {
	size    int // 0 means the whole bank
	timed   bool
	mode    quiz.PolicyKind
	section string // empty means all topics
}

// chat is the per-chat state. It is only touched by the update loop.
type chat struct {
	session  *quiz.Session
	setup    setup
	limiter  *rate.Limiter
	lastSeen time.Time
}

type Bot struct {
	api  botAPI
	deps Deps
	opts Options
	log  *zap.Logger

	// sections and topics are fixed at startup; topics maps a section to
	// its sub-bank.
	sections []string
	topics   map[string]*quiz.Bank

	chats     map[int64]*chat
	lastPrune time.Time
	sleep     func(time.Duration)
}

// NewBot connects to Telegram with token.
func NewBot(token string, debug bool, deps Deps, opts Options) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	api.Debug = debug
	deps.Log.Info("authorised on account", zap.String("username", api.Self.UserName))
	return newBot(api, deps, opts), nil
}

func newBot(api botAPI, deps Deps, opts Options) *Bot {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = quiz.SystemClock{}
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	if opts.DefaultSize < 1 {
		opts.DefaultSize = 10
	}
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = 2
	}
	if opts.RateBurst < 1 {
		opts.RateBurst = 5
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 60
	}
	if opts.ChatIdleTTL <= 0 {
		opts.ChatIdleTTL = 24 * time.Hour
	}

	b := &Bot{
		api:       api,
		deps:      deps,
		opts:      opts,
		log:       deps.Log,
		topics:    make(map[string]*quiz.Bank),
		chats:     make(map[int64]*chat),
		lastPrune: deps.Clock.Now(),
		sleep:     time.Sleep,
	}
	for _, section := range deps.Bank.Sections() {
		sub, err := deps.Bank.Filter(section)
		if err != nil {
			deps.Log.Warn("skipping topic", zap.String("section", section), zap.Error(err))
			continue
		}
		b.sections = append(b.sections, section)
		b.topics[section] = sub
	}
	return b
}

// bankFor returns the bank for a topic, the whole bank for "".
func (b *Bot) bankFor(section string) *quiz.Bank {
	if sub, ok := b.topics[section]; ok {
		return sub
	}
	return b.deps.Bank
}

// Start runs the update loop until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.opts.PollTimeout

	updates := b.api.GetUpdatesChan(u)
	b.log.Info("bot is starting", zap.Int("questions", b.deps.Bank.Len()))

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.log.Info("bot stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) chat(chatID int64) *chat {
	c, ok := b.chats[chatID]
	if !ok {
		c = &chat{
			session: quiz.NewSession(b.deps.Clock, b.deps.Rand),
			setup: setup{
				size:  b.opts.DefaultSize,
				timed: b.opts.DefaultTimed,
				mode:  quiz.PolicyRandom,
			},
			limiter: rate.NewLimiter(rate.Limit(b.opts.RatePerSecond), b.opts.RateBurst),
		}
		b.chats[chatID] = c
	}
	c.lastSeen = b.deps.Clock.Now()
	return c
}

// pruneChats drops chats that have been idle for ChatIdleTTL and have no
// quiz running. It does a full scan at most once per TTL.
func (b *Bot) pruneChats(now time.Time) {
	if now.Sub(b.lastPrune) < b.opts.ChatIdleTTL {
		return
	}
	b.lastPrune = now
	for id, c := range b.chats {
		if c.session.State() != quiz.InProgress && now.Sub(c.lastSeen) >= b.opts.ChatIdleTTL {
			delete(b.chats, id)
		}
	}
	b.log.Debug("pruned idle chats", zap.Int("remaining", len(b.chats)))
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	chatID, ok := updateChatID(update)
	if !ok {
		return
	}
	c := b.chat(chatID)
	b.pruneChats(b.deps.Clock.Now())
	if !c.limiter.Allow() {
		b.log.Debug("update dropped by rate limiter", zap.Int64("chat_id", chatID))
		if update.CallbackQuery != nil {
			b.answerCallback(update.CallbackQuery.ID, "Too fast, slow down")
		}
		return
	}

	switch {
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	switch msg.Command() {
	case "start", "menu":
		b.sendMainMenu(chatID)
	case "quiz":
		b.startQuiz(ctx, chatID, userID(msg.From, chatID))
	case "settings":
		b.sendSetup(chatID, 0)
	case "leaderboard":
		b.handleLeaderboard(ctx, chatID)
	case "info":
		b.handleInfo(chatID)
	default:
		b.sendText(chatID, "Unknown command. Try /start")
	}
}

func updateChatID(update tgbotapi.Update) (int64, bool) {
	switch {
	case update.Message != nil && update.Message.Chat != nil:
		return update.Message.Chat.ID, true
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil && update.CallbackQuery.Message.Chat != nil:
		return update.CallbackQuery.Message.Chat.ID, true
	}
	return 0, false
}

func userID(user *tgbotapi.User, fallback int64) int64 {
	if user != nil {
		return user.ID
	}
	return fallback
}
