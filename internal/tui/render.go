package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/PoluyanbIch/GoQuizBot/internal/quiz"
)

var (
	colorTitle   = lipgloss.Color("33")
	colorMuted   = lipgloss.Color("242")
	colorCorrect = lipgloss.Color("42")
	colorWrong   = lipgloss.Color("160")
	colorWarn    = lipgloss.Color("214")
)

func renderTitle(noColor bool) string {
	if noColor {
		return "Practice test"
	}
	return lipgloss.NewStyle().Bold(true).Foreground(colorTitle).MarginBottom(1).Render("Practice test")
}

func renderSetup(m Model) string {
	bank := m.activeBank()
	size := fmt.Sprintf("all %d", bank.Len())
	if m.size > 0 && m.size < bank.Len() {
		size = fmt.Sprintf("%d", m.size)
	}
	timed := "off"
	if m.timed {
		timed = "on"
	}
	topic := "all topics"
	if m.section != "" {
		topic = m.section
	}
	lines := []string{
		"Topic:     " + topic,
		"Questions: " + size,
		"Timer:     " + timed,
		"Mode:      " + string(m.mode),
	}
	return strings.Join(lines, "\n")
}

func renderQuestion(m Model) string {
	q, err := m.session.Current()
	if err != nil {
		return ""
	}
	position, total := m.session.Progress()

	header := fmt.Sprintf("Question %d/%d", position+1, total)
	if q.Section != "" {
		header += " | " + q.Section
	}
	if m.session.Timed() {
		header += " | Elapsed: " + formatElapsed(m.now.Sub(m.session.StartedAt()))
	}

	var sb strings.Builder
	sb.WriteString(stylize(header, m.noColor, colorMuted))
	sb.WriteString("\n\n")
	sb.WriteString(q.Stem)
	sb.WriteString("\n")
	for _, label := range q.Options() {
		fmt.Fprintf(&sb, "\n  %s) %s", strings.ToLower(string(label)), q.Choice(label))
	}
	return sb.String()
}

func renderFeedback(m Model) string {
	res := m.last
	var verdict string
	switch {
	case res.Correct:
		verdict = stylize("Correct!", m.noColor, colorCorrect)
	case res.Selected == quiz.NoAnswer:
		verdict = stylize("Skipped.", m.noColor, colorWarn)
	default:
		verdict = stylize(fmt.Sprintf("Incorrect, you chose %s.", res.Selected), m.noColor, colorWrong)
	}

	lines := []string{verdict}
	if !res.Correct {
		lines = append(lines, fmt.Sprintf("Correct answer: %s) %s", strings.ToLower(string(res.CorrectLabel)), res.CorrectText))
	}
	if res.Explanation != "" {
		lines = append(lines, "", res.Explanation)
	}
	return strings.Join(lines, "\n")
}

func renderSummary(m Model) string {
	s := m.summary
	lines := []string{
		"Test complete!",
		"",
		fmt.Sprintf("Score:   %d/%d", s.Correct, s.Total),
		fmt.Sprintf("Correct: %d%%", s.Percentage()),
	}
	if s.Timed {
		lines = append(lines, "Time:    "+formatElapsed(s.Duration))
	}
	return strings.Join(lines, "\n")
}

func renderStatus(status string, noColor bool) string {
	if status == "" {
		return ""
	}
	return "\n" + stylize(status, noColor, colorWarn)
}

func renderHelp(s screen, noColor bool) string {
	var help string
	switch s {
	case setupScreen:
		help = "n/p size • s topic • t timer • m mode • enter start • q quit"
	case questionScreen:
		help = "a-d answer • s skip • esc back to menu"
	case feedbackScreen:
		help = "enter continue"
	case summaryScreen:
		help = "enter take another test • q quit"
	}
	return "\n" + stylize(help, noColor, colorMuted)
}

// formatElapsed renders a duration as mm:ss.
func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d.Round(time.Second).Seconds())
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

// stylize applies optional color styling.
func stylize(text string, noColor bool, color lipgloss.Color) string {
	if noColor {
		return text
	}
	return lipgloss.NewStyle().Foreground(color).Render(text)
}
