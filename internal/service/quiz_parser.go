package service

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/PoluyanbIch/GoQuizBot/internal/quiz"
)

// ParseQuizQuestions reads questions from a plain-text file.
//
// Each question is a block of "KEY: value" lines separated by blank lines:
//
//	Q: What does H stand for in the H gate?
//	A: Hadamard
//	B: Hermitian
//	ANSWER: A
//	EXPLANATION: optional
//	SECTION: optional
//
// Lines starting with '#' are ignored.
func ParseQuizQuestions(filename string) ([]quiz.Question, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return parseQuestionBlocks(file)
}

func parseQuestionBlocks(r io.Reader) ([]quiz.Question, error) {
	var (
		questions []quiz.Question
		current   *quiz.Question
		startLine int
	)

	flush := func() {
		if current != nil {
			questions = append(questions, *current)
			current = nil
		}
	}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "#") {
			continue
		}
		if line == "" {
			flush()
			continue
		}

		key, value, err := parseQuestionLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if current == nil {
			if key != "Q" {
				return nil, fmt.Errorf("line %d: question block must start with Q:, got %s:", lineNo, key)
			}
			current = &quiz.Question{Choices: map[quiz.Label]string{}}
			startLine = lineNo
		}

		switch key {
		case "Q":
			if current.Stem != "" {
				return nil, fmt.Errorf("line %d: question starting at line %d has two Q: lines", lineNo, startLine)
			}
			current.Stem = value
		case "A", "B", "C", "D":
			current.Choices[quiz.Label(key)] = value
		case "ANSWER":
			label, err := quiz.ParseLabel(value)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			current.Correct = label
		case "EXPLANATION":
			current.Explanation = value
		case "SECTION":
			current.Section = value
		case "ID":
			current.ID = value
		default:
			return nil, fmt.Errorf("line %d: unknown key %s", lineNo, key)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}
	flush()

	if len(questions) == 0 {
		return nil, fmt.Errorf("no valid questions found in file")
	}
	return questions, nil
}

// parseQuestionLine splits "KEY: value" and upper-cases the key.
func parseQuestionLine(line string) (string, string, error) {
	key, value, ok := strings.Cut(line, ":")
	if !ok {
		return "", "", fmt.Errorf("invalid format: expected KEY: value")
	}
	key = strings.ToUpper(strings.TrimSpace(key))
	if key == "" {
		return "", "", fmt.Errorf("invalid format: empty key")
	}
	return key, strings.TrimSpace(value), nil
}
