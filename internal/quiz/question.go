package quiz

import (
	"fmt"
	"strings"
)

// Label identifies one of the four answer choices.
type Label string

const (
	LabelA Label = "A"
	LabelB Label = "B"
	LabelC Label = "C"
	LabelD Label = "D"

	// NoAnswer is submitted when the user skips a question. It is never correct.
	NoAnswer Label = ""
)

// Labels lists the choice labels in display order.
var Labels = []Label{LabelA, LabelB, LabelC, LabelD}

// ParseLabel accepts "a", " B ", "c" and so on. An empty string parses to NoAnswer.
func ParseLabel(s string) (Label, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return NoAnswer, nil
	}
	label := Label(s)
	if !label.Valid() {
		return NoAnswer, fmt.Errorf("%w: %q", ErrUnknownLabel, s)
	}
	return label, nil
}

// Valid reports whether l is one of A-D.
func (l Label) Valid() bool {
	switch l {
	case LabelA, LabelB, LabelC, LabelD:
		return true
	}
	return false
}

func (l Label) String() string {
	if l == NoAnswer {
		return "-"
	}
	return string(l)
}

type Question struct {
	ID          string
	Stem        string
	Choices     map[Label]string
	Correct     Label
	Explanation string
	Section     string
}

// Choice returns the text for label, or "" when the choice is absent.
func (q Question) Choice(label Label) string {
	return q.Choices[label]
}

// Options returns the labels that carry non-empty text, in A-D order.
func (q Question) Options() []Label {
	out := make([]Label, 0, len(Labels))
	for _, label := range Labels {
		if strings.TrimSpace(q.Choices[label]) != "" {
			out = append(out, label)
		}
	}
	return out
}

// CorrectText returns the text of the correct choice.
func (q Question) CorrectText() string {
	return q.Choices[q.Correct]
}

// Validate reports every problem with q under the given field prefix.
func (q Question) Validate(prefix string) []Issue {
	var issues []Issue
	add := func(field, message string) {
		issues = append(issues, Issue{Field: prefix + "." + field, Message: message})
	}

	if strings.TrimSpace(q.Stem) == "" {
		add("question", "is required")
	}
	for label := range q.Choices {
		if !label.Valid() {
			add("choices", fmt.Sprintf("unknown label %q", string(label)))
		}
	}
	if len(q.Options()) < 2 {
		add("choices", "must include at least two non-empty entries")
	}
	switch {
	case q.Correct == NoAnswer:
		add("correct_answer", "is required")
	case !q.Correct.Valid():
		add("correct_answer", fmt.Sprintf("unknown label %q", string(q.Correct)))
	case strings.TrimSpace(q.Choices[q.Correct]) == "":
		add("correct_answer", fmt.Sprintf("choice %s has no text", q.Correct))
	}
	return issues
}

func (q Question) clone() Question {
	choices := make(map[Label]string, len(q.Choices))
	for label, text := range q.Choices {
		choices[label] = text
	}
	q.Choices = choices
	return q
}
