package service

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/PoluyanbIch/GoQuizBot/internal/quiz"
)

// Column headers of a spreadsheet question bank. Matching is case-insensitive.
const (
	colQuestion    = "question"
	colChoiceA     = "choice_a"
	colChoiceB     = "choice_b"
	colChoiceC     = "choice_c"
	colChoiceD     = "choice_d"
	colCorrect     = "correct_answer"
	colExplanation = "explanation"
	colSection     = "section"
	colID          = "id"
)

// parseXLSXBank reads questions from the first sheet of a workbook whose
// first row is a header.
func parseXLSXBank(path string) ([]quiz.Question, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheets[0])
	}

	columns := make(map[string]int, len(rows[0]))
	for i, header := range rows[0] {
		columns[strings.ToLower(strings.TrimSpace(header))] = i
	}
	for _, required := range []string{colQuestion, colChoiceA, colChoiceB, colCorrect} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("sheet %q: missing column %q", sheets[0], required)
		}
	}

	cell := func(row []string, name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	var questions []quiz.Question
	for _, row := range rows[1:] {
		if strings.TrimSpace(strings.Join(row, "")) == "" {
			continue
		}
		q := quiz.Question{
			ID:          cell(row, colID),
			Stem:        cell(row, colQuestion),
			Choices:     map[quiz.Label]string{},
			Correct:     normalizeLabel(cell(row, colCorrect)),
			Explanation: cell(row, colExplanation),
			Section:     cell(row, colSection),
		}
		for label, name := range map[quiz.Label]string{
			quiz.LabelA: colChoiceA,
			quiz.LabelB: colChoiceB,
			quiz.LabelC: colChoiceC,
			quiz.LabelD: colChoiceD,
		} {
			if text := cell(row, name); text != "" {
				q.Choices[label] = text
			}
		}
		questions = append(questions, q)
	}
	return questions, nil
}
