package tui

import (
	"context"
	"math/rand"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/PoluyanbIch/GoQuizBot/internal/quiz"
	"github.com/PoluyanbIch/GoQuizBot/internal/service"
)

// localUser is the history key for the single terminal user.
const localUser int64 = 0

var sizeSteps = []int{5, 10, 20, 0}

var modes = []quiz.PolicyKind{quiz.PolicyRandom, quiz.PolicyUnseen, quiz.PolicyWrong}

type screen int

const (
	setupScreen screen = iota
	questionScreen
	feedbackScreen
	summaryScreen
)

// Options configures the practice model.
type Options struct {
	DefaultSize  int
	DefaultTimed bool
	NoColor      bool
	// History feeds the unseen and wrong modes. Nil keeps history in memory.
	History service.HistoryService
	Clock   quiz.Clock
	Rand    *rand.Rand
}

// Model is the Bubble Tea model for one terminal practice user.
type Model struct {
	bank     *quiz.Bank
	sections []string
	topics   map[string]*quiz.Bank
	session *quiz.Session
	history service.HistoryService
	clock   quiz.Clock
	noColor bool

	screen  screen
	section string
	size    int
	timed   bool
	mode    quiz.PolicyKind
	last    quiz.Result
	summary quiz.Summary
	status  string
	now     time.Time
}

// NewModel constructs a practice model over bank.
func NewModel(bank *quiz.Bank, opts Options) Model {
	if opts.Clock == nil {
		opts.Clock = quiz.SystemClock{}
	}
	if opts.History == nil {
		opts.History = service.NewMemoryHistoryService()
	}
	size := opts.DefaultSize
	if size < 0 {
		size = 0
	}
	topics := make(map[string]*quiz.Bank)
	for _, section := range bank.Sections() {
		if sub, err := bank.Filter(section); err == nil {
			topics[section] = sub
		}
	}
	return Model{
		bank:     bank,
		sections: bank.Sections(),
		topics:   topics,
		session: quiz.NewSession(opts.Clock, opts.Rand),
		history: opts.History,
		clock:   opts.Clock,
		noColor: opts.NoColor,
		screen:  setupScreen,
		size:    size,
		timed:   opts.DefaultTimed,
		mode:    quiz.PolicyRandom,
		now:     opts.Clock.Now(),
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles key presses and timer ticks.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tickMsg:
		m.now = time.Time(typed)
		if m.session.State() == quiz.InProgress && m.session.Timed() {
			return m, tick()
		}
		return m, nil
	case tea.KeyMsg:
		if typed.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.screen {
		case setupScreen:
			return m.updateSetup(typed)
		case questionScreen:
			return m.updateQuestion(typed)
		case feedbackScreen:
			return m.updateFeedback(typed)
		case summaryScreen:
			return m.updateSummary(typed)
		}
	}
	return m, nil
}

func (m Model) updateSetup(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.status = ""
	switch key.String() {
	case "q", "esc":
		return m, tea.Quit
	case "n", "right":
		m.size = nextSize(m.size, 1)
	case "p", "left":
		m.size = nextSize(m.size, -1)
	case "t":
		m.timed = !m.timed
	case "m":
		m.mode = nextMode(m.mode)
	case "s":
		m.section = nextSection(m.sections, m.section)
	case "enter":
		return m.start()
	}
	return m, nil
}

// activeBank is the bank narrowed to the chosen topic.
func (m Model) activeBank() *quiz.Bank {
	if sub, ok := m.topics[m.section]; ok {
		return sub
	}
	return m.bank
}

func (m Model) start() (tea.Model, tea.Cmd) {
	bank := m.activeBank()
	size := m.size
	if size <= 0 || size > bank.Len() {
		size = bank.Len()
	}

	policy := quiz.Uniform()
	if m.mode != quiz.PolicyRandom {
		p, err := service.SelectionPolicy(context.Background(), m.history, localUser, m.mode)
		if err != nil {
			m.status = "history unavailable, using random selection"
		} else {
			policy = p
		}
	}

	m.session.Reset()
	if err := m.session.Create(bank, size, m.timed, policy); err != nil {
		m.status = err.Error()
		return m, nil
	}
	m.screen = questionScreen
	m.now = m.clock.Now()
	if m.timed {
		return m, tick()
	}
	return m, nil
}

func (m Model) updateQuestion(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "q", "esc":
		m.session.Reset()
		m.screen = setupScreen
		m.status = "test abandoned"
		return m, nil
	case "s":
		return m.answer(quiz.NoAnswer)
	}

	label, err := quiz.ParseLabel(key.String())
	if err != nil || label == quiz.NoAnswer {
		return m, nil
	}
	q, err := m.session.Current()
	if err != nil || q.Choice(label) == "" {
		return m, nil
	}
	return m.answer(label)
}

func (m Model) answer(label quiz.Label) (tea.Model, tea.Cmd) {
	res, err := m.session.Answer(label)
	if err != nil {
		m.status = err.Error()
		return m, nil
	}
	m.last = res
	m.status = ""
	m.screen = feedbackScreen
	return m, nil
}

func (m Model) updateFeedback(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "enter", " ":
	default:
		return m, nil
	}
	if !m.last.Completed {
		m.screen = questionScreen
		return m, nil
	}

	summary, err := m.session.Summary()
	if err != nil {
		m.status = err.Error()
		return m, nil
	}
	m.summary = summary
	if err := m.history.Record(context.Background(), localUser, m.session.Answers()); err != nil {
		m.status = "failed to record history: " + err.Error()
	}
	m.screen = summaryScreen
	return m, nil
}

func (m Model) updateSummary(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "q", "esc":
		return m, tea.Quit
	case "enter", "r":
		m.session.Reset()
		m.screen = setupScreen
	}
	return m, nil
}

// View renders the current screen.
func (m Model) View() string {
	var body string
	switch m.screen {
	case setupScreen:
		body = renderSetup(m)
	case questionScreen:
		body = renderQuestion(m)
	case feedbackScreen:
		body = renderFeedback(m)
	case summaryScreen:
		body = renderSummary(m)
	}
	return lipgloss.JoinVertical(lipgloss.Left, renderTitle(m.noColor), body, renderStatus(m.status, m.noColor), renderHelp(m.screen, m.noColor))
}

// tickMsg refreshes the elapsed time of a timed test.
type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func nextSize(size, step int) int {
	idx := 0
	for i, s := range sizeSteps {
		if s == size {
			idx = i
			break
		}
	}
	idx = (idx + step + len(sizeSteps)) % len(sizeSteps)
	return sizeSteps[idx]
}

func nextMode(mode quiz.PolicyKind) quiz.PolicyKind {
	for i, k := range modes {
		if k == mode {
			return modes[(i+1)%len(modes)]
		}
	}
	return quiz.PolicyRandom
}

// nextSection cycles "" (all topics) through each section and back.
func nextSection(sections []string, current string) string {
	for i, s := range sections {
		if s == current {
			if i+1 < len(sections) {
				return sections[i+1]
			}
			return ""
		}
	}
	if len(sections) == 0 {
		return ""
	}
	return sections[0]
}
