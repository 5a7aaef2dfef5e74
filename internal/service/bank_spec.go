package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/PoluyanbIch/GoQuizBot/internal/quiz"
)

// bankSpec is the YAML/JSON question bank schema.
type bankSpec struct {
	Version   int            `json:"version" yaml:"version"`
	Questions []questionSpec `json:"questions" yaml:"questions"`
}

type questionSpec struct {
	ID            string            `json:"id" yaml:"id"`
	Question      string            `json:"question" yaml:"question"`
	Choices       map[string]string `json:"choices" yaml:"choices"`
	CorrectAnswer string            `json:"correct_answer" yaml:"correct_answer"`
	Explanation   string            `json:"explanation" yaml:"explanation"`
	Section       string            `json:"section" yaml:"section"`
}

func parseJSONBank(data []byte) ([]quiz.Question, error) {
	var spec bankSpec
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&spec); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("parse json: multiple documents are not supported")
		}
		return nil, fmt.Errorf("parse json: %w", err)
	}
	return spec.toQuestions()
}

func parseYAMLBank(data []byte) ([]quiz.Question, error) {
	var spec bankSpec
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&spec); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("parse yaml: multiple documents are not supported")
		}
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return spec.toQuestions()
}

func (spec bankSpec) toQuestions() ([]quiz.Question, error) {
	switch spec.Version {
	case 0:
		return nil, fmt.Errorf("version: is required")
	case 1:
	default:
		return nil, fmt.Errorf("version: unsupported version %d", spec.Version)
	}

	out := make([]quiz.Question, 0, len(spec.Questions))
	for _, qs := range spec.Questions {
		q := quiz.Question{
			ID:          qs.ID,
			Stem:        strings.TrimSpace(qs.Question),
			Choices:     make(map[quiz.Label]string, len(qs.Choices)),
			Correct:     normalizeLabel(qs.CorrectAnswer),
			Explanation: strings.TrimSpace(qs.Explanation),
			Section:     strings.TrimSpace(qs.Section),
		}
		for key, text := range qs.Choices {
			q.Choices[normalizeLabel(key)] = strings.TrimSpace(text)
		}
		out = append(out, q)
	}
	return out, nil
}

// normalizeLabel upper-cases a label without rejecting unknown ones, so bank
// validation can report them with their field path.
func normalizeLabel(s string) quiz.Label {
	return quiz.Label(strings.ToUpper(strings.TrimSpace(s)))
}
