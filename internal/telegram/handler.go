package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/PoluyanbIch/GoQuizBot/internal/quiz"
	"github.com/PoluyanbIch/GoQuizBot/internal/service"
)

const (
	cbStartQuiz   = "start_quiz"
	cbSetup       = "setup"
	cbExitQuiz    = "exit_quiz"
	cbBackToMenu  = "back_to_menu"
	cbLeaderboard = "leaderboard"
	cbInfo        = "info"
	cbTimedOn     = "timed_on"
	cbTimedOff    = "timed_off"

	cbSizePrefix   = "size_"
	cbModePrefix   = "mode_"
	cbTopicPrefix  = "topic_"
	cbAnswerPrefix = "ans_"

	// topicAll selects the whole bank; other topics are sent by index.
	topicAll = "all"

	// skipLabel stands for quiz.NoAnswer in callback data.
	skipLabel = "-"

	storeTimeout = 10 * time.Second
)

var sizeChoices = []int{5, 10, 20, 0}

func (b *Bot) handleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	chatID := callback.Message.Chat.ID
	messageID := callback.Message.MessageID
	data := callback.Data
	notice := ""

	switch {
	case data == cbStartQuiz:
		b.startQuiz(ctx, chatID, userID(callback.From, chatID))
	case data == cbSetup:
		b.sendSetup(chatID, 0)
	case strings.HasPrefix(data, cbSizePrefix):
		notice = b.handleSize(chatID, messageID, strings.TrimPrefix(data, cbSizePrefix))
	case data == cbTimedOn || data == cbTimedOff:
		b.chat(chatID).setup.timed = data == cbTimedOn
		b.sendSetup(chatID, messageID)
	case strings.HasPrefix(data, cbModePrefix):
		notice = b.handleMode(chatID, messageID, strings.TrimPrefix(data, cbModePrefix))
	case strings.HasPrefix(data, cbTopicPrefix):
		notice = b.handleTopic(chatID, messageID, strings.TrimPrefix(data, cbTopicPrefix))
	case strings.HasPrefix(data, cbAnswerPrefix):
		notice = b.handleQuizAnswer(ctx, chatID, data, callback.From)
	case data == cbExitQuiz:
		b.exitQuiz(chatID)
	case data == cbBackToMenu:
		b.sendMainMenu(chatID)
	case data == cbInfo:
		b.handleInfo(chatID)
	case data == cbLeaderboard:
		b.handleLeaderboard(ctx, chatID)
	default:
		notice = "Unknown command"
	}

	b.answerCallback(callback.ID, notice)
}

func (b *Bot) answerCallback(callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		b.log.Warn("error answering callback", zap.Error(err))
	}
}

func (b *Bot) send(c tgbotapi.Chattable, what string) {
	if _, err := b.api.Send(c); err != nil {
		b.log.Error("error sending message", zap.String("message", what), zap.Error(err))
	}
}

func (b *Bot) sendText(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text), "text")
}

func (b *Bot) sendHTML(chatID int64, text string, markup *tgbotapi.InlineKeyboardMarkup, what string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if markup != nil {
		msg.ReplyMarkup = *markup
	}
	b.send(msg, what)
}

func (b *Bot) sendMainMenu(chatID int64) {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎯 Start practice", cbStartQuiz),
			tgbotapi.NewInlineKeyboardButtonData("⚙️ Settings", cbSetup),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🏆 Leaderboard", cbLeaderboard),
			tgbotapi.NewInlineKeyboardButtonData("ℹ️ About", cbInfo),
		),
	)
	s := b.chat(chatID).setup
	b.sendHTML(chatID, "📋 <b>Main menu</b>\n\n"+describeSetup(s, b.bankFor(s.section).Len()), &kb, "main menu")
}

func describeSetup(s setup, bankSize int) string {
	size := "all " + strconv.Itoa(bankSize)
	if s.size > 0 && s.size < bankSize {
		size = strconv.Itoa(s.size)
	}
	timed := "off"
	if s.timed {
		timed = "on"
	}
	topic := "all topics"
	if s.section != "" {
		topic = html.EscapeString(s.section)
	}
	return fmt.Sprintf("Topic: <b>%s</b>\nQuestions: <b>%s</b>\nTimer: <b>%s</b>\nMode: <b>%s</b>", topic, size, timed, modeTitle(s.mode))
}

func modeTitle(kind quiz.PolicyKind) string {
	switch kind {
	case quiz.PolicyUnseen:
		return "focus on unseen questions"
	case quiz.PolicyWrong:
		return "focus on wrong answers"
	default:
		return "random"
	}
}

func (b *Bot) setupKeyboard(s setup) tgbotapi.InlineKeyboardMarkup {
	var sizeRow []tgbotapi.InlineKeyboardButton
	for _, n := range sizeChoices {
		title := strconv.Itoa(n)
		if n == 0 {
			title = "All"
		}
		if n == s.size {
			title = "• " + title
		}
		sizeRow = append(sizeRow, tgbotapi.NewInlineKeyboardButtonData(title, cbSizePrefix+strconv.Itoa(n)))
	}

	timedButton := tgbotapi.NewInlineKeyboardButtonData("⏱ Timer: off", cbTimedOn)
	if s.timed {
		timedButton = tgbotapi.NewInlineKeyboardButtonData("⏱ Timer: on", cbTimedOff)
	}

	var modeRow []tgbotapi.InlineKeyboardButton
	for _, kind := range []quiz.PolicyKind{quiz.PolicyRandom, quiz.PolicyUnseen, quiz.PolicyWrong} {
		title := string(kind)
		if kind == s.mode {
			title = "• " + title
		}
		modeRow = append(modeRow, tgbotapi.NewInlineKeyboardButtonData(title, cbModePrefix+string(kind)))
	}

	rows := b.topicRows(s.section)
	rows = append(rows,
		sizeRow,
		tgbotapi.NewInlineKeyboardRow(timedButton),
		modeRow,
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎯 Start", cbStartQuiz),
			tgbotapi.NewInlineKeyboardButtonData("🔙 Menu", cbBackToMenu),
		),
	)
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// topicRows lays out the topic buttons two per row. Banks without sections
// get no topic choice.
func (b *Bot) topicRows(current string) [][]tgbotapi.InlineKeyboardButton {
	if len(b.sections) == 0 {
		return nil
	}
	title := "All topics"
	if current == "" {
		title = "• " + title
	}
	buttons := []tgbotapi.InlineKeyboardButton{tgbotapi.NewInlineKeyboardButtonData(title, cbTopicPrefix+topicAll)}
	for i, section := range b.sections {
		title := section
		if section == current {
			title = "• " + title
		}
		buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(title, cbTopicPrefix+strconv.Itoa(i)))
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for len(buttons) > 2 {
		rows = append(rows, buttons[:2])
		buttons = buttons[2:]
	}
	return append(rows, buttons)
}

// sendSetup shows the settings screen, editing messageID in place when set.
func (b *Bot) sendSetup(chatID int64, messageID int) {
	s := b.chat(chatID).setup
	text := "⚙️ <b>Practice settings</b>\n\n" + describeSetup(s, b.bankFor(s.section).Len())
	kb := b.setupKeyboard(s)

	if messageID == 0 {
		b.sendHTML(chatID, text, &kb, "setup")
		return
	}
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, kb)
	edit.ParseMode = tgbotapi.ModeHTML
	b.send(edit, "setup")
}

func (b *Bot) handleSize(chatID int64, messageID int, value string) string {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return "Invalid size"
	}
	b.chat(chatID).setup.size = n
	b.sendSetup(chatID, messageID)
	return ""
}

func (b *Bot) handleMode(chatID int64, messageID int, value string) string {
	kind, err := quiz.ParsePolicyKind(value)
	if err != nil {
		return "Unknown mode"
	}
	b.chat(chatID).setup.mode = kind
	b.sendSetup(chatID, messageID)
	return ""
}

func (b *Bot) handleTopic(chatID int64, messageID int, value string) string {
	section := ""
	if value != topicAll {
		i, err := strconv.Atoi(value)
		if err != nil || i < 0 || i >= len(b.sections) {
			return "Unknown topic"
		}
		section = b.sections[i]
	}
	b.chat(chatID).setup.section = section
	b.sendSetup(chatID, messageID)
	return ""
}

func (b *Bot) startQuiz(ctx context.Context, chatID, user int64) {
	c := b.chat(chatID)
	if c.session.State() == quiz.InProgress {
		b.deps.Metrics.SessionAbandoned()
	}
	c.session.Reset()

	bank := b.bankFor(c.setup.section)
	size := c.setup.size
	if size <= 0 || size > bank.Len() {
		size = bank.Len()
	}

	policy := quiz.Uniform()
	if b.deps.History != nil && c.setup.mode != quiz.PolicyRandom {
		storeCtx, cancel := context.WithTimeout(ctx, storeTimeout)
		p, err := service.SelectionPolicy(storeCtx, b.deps.History, user, c.setup.mode)
		cancel()
		if err != nil {
			b.log.Warn("history unavailable, using random selection", zap.Int64("user_id", user), zap.Error(err))
		} else {
			policy = p
		}
	}

	if err := c.session.Create(bank, size, c.setup.timed, policy); err != nil {
		b.log.Error("failed to start quiz", zap.Int64("chat_id", chatID), zap.Error(err))
		b.sendText(chatID, "Could not start the quiz, please try again later")
		return
	}
	b.deps.Metrics.SessionStarted(c.setup.mode, c.setup.timed)
	b.log.Info("quiz started",
		zap.Int64("chat_id", chatID),
		zap.String("session_id", c.session.ID()),
		zap.Int("size", size),
		zap.Bool("timed", c.setup.timed),
		zap.String("mode", string(c.setup.mode)),
		zap.String("section", c.setup.section))

	b.sendQuestion(chatID)
}

func (b *Bot) sendQuestion(chatID int64) {
	session := b.chat(chatID).session
	question, err := session.Current()
	if err != nil {
		return
	}
	position, total := session.Progress()
	tag := sessionTag(session)

	var sb strings.Builder
	fmt.Fprintf(&sb, "❓ <b>Question %d/%d</b>\n", position+1, total)
	if question.Section != "" {
		fmt.Fprintf(&sb, "<i>%s</i>\n", html.EscapeString(question.Section))
	}
	fmt.Fprintf(&sb, "\n%s\n", html.EscapeString(question.Stem))

	var buttons []tgbotapi.InlineKeyboardButton
	for _, label := range question.Options() {
		fmt.Fprintf(&sb, "\n<b>%s</b>: %s", label, html.EscapeString(question.Choice(label)))
		buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(string(label), answerData(tag, position, label)))
	}

	kb := tgbotapi.NewInlineKeyboardMarkup(
		buttons,
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⏭ Skip", answerData(tag, position, quiz.NoAnswer)),
			tgbotapi.NewInlineKeyboardButtonData("🚪 Exit", cbExitQuiz),
		),
	)
	b.sendHTML(chatID, sb.String(), &kb, "question")
}

// sessionTag ties a question message to the run that sent it.
func sessionTag(session *quiz.Session) string {
	id := strings.ReplaceAll(session.ID(), "-", "")
	if len(id) > 8 {
		id = id[:8]
	}
	return id
}

// answerData encodes an answer button as ans_<tag>_<position>_<label>.
func answerData(tag string, position int, label quiz.Label) string {
	l := string(label)
	if label == quiz.NoAnswer {
		l = skipLabel
	}
	return fmt.Sprintf("%s%s_%d_%s", cbAnswerPrefix, tag, position, l)
}

func parseAnswerData(data string) (string, int, quiz.Label, error) {
	parts := strings.Split(strings.TrimPrefix(data, cbAnswerPrefix), "_")
	if len(parts) != 3 || parts[0] == "" {
		return "", 0, quiz.NoAnswer, fmt.Errorf("malformed answer %q", data)
	}
	position, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, quiz.NoAnswer, fmt.Errorf("malformed answer position %q: %w", data, err)
	}
	if parts[2] == skipLabel {
		return parts[0], position, quiz.NoAnswer, nil
	}
	label, err := quiz.ParseLabel(parts[2])
	if err != nil || label == quiz.NoAnswer {
		return "", 0, quiz.NoAnswer, fmt.Errorf("malformed answer label %q", data)
	}
	return parts[0], position, label, nil
}

// handleQuizAnswer grades one answer and returns a notice for the callback.
func (b *Bot) handleQuizAnswer(ctx context.Context, chatID int64, data string, user *tgbotapi.User) string {
	tag, position, label, err := parseAnswerData(data)
	if err != nil {
		b.log.Warn("bad answer callback", zap.String("data", data), zap.Error(err))
		return "Unknown answer"
	}

	session := b.chat(chatID).session
	if session.State() == quiz.NotStarted {
		return "No active quiz. Press Start to begin"
	}
	if tag != sessionTag(session) {
		return "This question is no longer active"
	}
	res, err := session.AnswerAt(position, label)
	switch {
	case errors.Is(err, quiz.ErrDuplicateAnswer):
		return "You already answered this question"
	case errors.Is(err, quiz.ErrSessionNotStarted), errors.Is(err, quiz.ErrSessionComplete):
		return "No active quiz. Press Start to begin"
	case err != nil:
		b.log.Warn("answer rejected", zap.Int64("chat_id", chatID), zap.Error(err))
		return "This question is no longer active"
	}
	b.deps.Metrics.AnswerRecorded(res)

	var sb strings.Builder
	switch {
	case res.Correct:
		sb.WriteString("✅ <b>Correct!</b> 🎉")
	case res.Selected == quiz.NoAnswer:
		fmt.Fprintf(&sb, "⏭ <b>Skipped.</b>\nCorrect answer: <b>%s</b>: %s", res.CorrectLabel, html.EscapeString(res.CorrectText))
	default:
		fmt.Fprintf(&sb, "❌ <b>Incorrect.</b>\nCorrect answer: <b>%s</b>: %s", res.CorrectLabel, html.EscapeString(res.CorrectText))
	}
	if res.Explanation != "" {
		fmt.Fprintf(&sb, "\n\n💡 %s", html.EscapeString(res.Explanation))
	}
	b.sendHTML(chatID, sb.String(), nil, "result")

	if res.Completed {
		b.finishQuiz(ctx, chatID, user)
		return ""
	}
	if b.opts.AnswerDelay > 0 {
		b.sleep(b.opts.AnswerDelay)
	}
	b.sendQuestion(chatID)
	return ""
}

func (b *Bot) finishQuiz(ctx context.Context, chatID int64, user *tgbotapi.User) {
	session := b.chat(chatID).session
	summary, err := session.Summary()
	if err != nil {
		return
	}
	b.deps.Metrics.SessionCompleted(session.Elapsed())

	uid := userID(user, chatID)
	b.log.Info("quiz completed",
		zap.Int64("chat_id", chatID),
		zap.String("session_id", session.ID()),
		zap.Int("correct", summary.Correct),
		zap.Int("total", summary.Total),
		zap.Duration("duration", summary.Duration))

	storeCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	if b.deps.History != nil {
		if err := b.deps.History.Record(storeCtx, uid, session.Answers()); err != nil {
			b.log.Warn("failed to record history", zap.Int64("user_id", uid), zap.Error(err))
		}
	}

	var sb strings.Builder
	sb.WriteString("🏁 <b>Test complete!</b>\n\n")
	fmt.Fprintf(&sb, "📊 Score: %d/%d\n", summary.Correct, summary.Total)
	fmt.Fprintf(&sb, "📈 Correct: %d%%\n", summary.Percentage())
	if summary.Timed {
		fmt.Fprintf(&sb, "⏱ Time taken: %s\n", formatDuration(summary.Duration))
	}

	if b.deps.Leaderboard != nil {
		username, firstName := "", ""
		if user != nil {
			username, firstName = user.UserName, user.FirstName
		}
		entry := service.NewLeaderboardEntry(uid, username, firstName, summary.Correct, summary.Total, summary.Duration, b.deps.Clock.Now())
		isNewBest, err := b.deps.Leaderboard.AddEntry(storeCtx, entry)
		if err != nil {
			b.log.Warn("failed to update leaderboard", zap.Int64("user_id", uid), zap.Error(err))
		} else if isNewBest {
			position, _, err := b.deps.Leaderboard.GetUserPosition(storeCtx, uid)
			if err == nil && position != -1 {
				fmt.Fprintf(&sb, "\n🎉 <b>New personal best!</b> You are #%d on the leaderboard!\n", position)
			}
		}
	}

	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎯 Take another test", cbStartQuiz),
			tgbotapi.NewInlineKeyboardButtonData("🔙 Menu", cbBackToMenu),
		),
	)
	b.sendHTML(chatID, sb.String(), &kb, "final")
}

func (b *Bot) exitQuiz(chatID int64) {
	c := b.chat(chatID)
	if c.session.State() != quiz.InProgress {
		b.sendMainMenu(chatID)
		return
	}
	b.log.Info("quiz abandoned", zap.Int64("chat_id", chatID), zap.String("session_id", c.session.ID()))
	c.session.Reset()
	b.deps.Metrics.SessionAbandoned()

	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎯 Start again", cbStartQuiz),
			tgbotapi.NewInlineKeyboardButtonData("🔙 Menu", cbBackToMenu),
		),
	)
	b.sendHTML(chatID, "🚪 Quiz stopped.\nYour result was not saved.", &kb, "exit")
}

func (b *Bot) handleLeaderboard(ctx context.Context, chatID int64) {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎯 Start practice", cbStartQuiz),
			tgbotapi.NewInlineKeyboardButtonData("📋 Menu", cbBackToMenu),
		),
	)
	if b.deps.Leaderboard == nil {
		b.sendHTML(chatID, "🏆 Leaderboard is disabled", &kb, "leaderboard")
		return
	}

	storeCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	top, err := b.deps.Leaderboard.GetTop(storeCtx, 10)
	if err != nil {
		b.log.Error("failed to load leaderboard", zap.Error(err))
		b.sendHTML(chatID, "🏆 Leaderboard is unavailable right now", &kb, "leaderboard")
		return
	}
	if len(top) == 0 {
		b.sendHTML(chatID, "🏆 <b>Leaderboard</b>\n\nNo results yet. Be the first! 🎯", &kb, "leaderboard")
		return
	}

	var sb strings.Builder
	sb.WriteString("🏆 <b>Top 10</b>\n\n")
	for i, entry := range top {
		medal := "🔸"
		switch i {
		case 0:
			medal = "🥇"
		case 1:
			medal = "🥈"
		case 2:
			medal = "🥉"
		}
		fmt.Fprintf(&sb, "%s %d. %s - %d%% (%d/%d)", medal, i+1, html.EscapeString(entry.DisplayName()), entry.Percentage, entry.Score, entry.Total)
		if entry.Duration > 0 {
			fmt.Fprintf(&sb, " ⏱ %s", formatDuration(entry.Duration))
		}
		fmt.Fprintf(&sb, "\n   📅 %s\n\n", entry.Date)
	}
	b.sendHTML(chatID, sb.String(), &kb, "leaderboard")
}

func (b *Bot) handleInfo(chatID int64) {
	text := "Practice multiple-choice tests from a question bank.\n\n" +
		"Pick the number of questions, an optional timer and a selection mode in ⚙️ Settings, " +
		"then answer with the A-D buttons. You can skip a question or exit at any time.\n\n" +
		"Source code: https://github.com/PoluyanbIch/GoQuizBot"

	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("📂 GitHub", "https://github.com/PoluyanbIch/GoQuizBot"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔙 Back", cbBackToMenu),
		),
	)
	b.sendHTML(chatID, html.EscapeString(text), &kb, "info")
}

// formatDuration renders 75s as "1m 15s".
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	return fmt.Sprintf("%dm %02ds", int(d.Minutes()), int(d.Seconds())%60)
}
