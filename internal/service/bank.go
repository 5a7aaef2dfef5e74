package service

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/PoluyanbIch/GoQuizBot/internal/quiz"
)

// LoadBank reads and validates a question bank. The format is chosen by
// extension: .yaml/.yml, .json, .xlsx, anything else is the text format.
func LoadBank(path string) (*quiz.Bank, error) {
	var (
		questions []quiz.Question
		err       error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		var data []byte
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read question bank: %w", err)
		}
		if strings.EqualFold(filepath.Ext(path), ".json") {
			questions, err = parseJSONBank(data)
		} else {
			questions, err = parseYAMLBank(data)
		}
	case ".xlsx":
		questions, err = parseXLSXBank(path)
	default:
		questions, err = ParseQuizQuestions(path)
	}
	if err != nil {
		return nil, fmt.Errorf("load question bank %s: %w", path, err)
	}

	bank, err := quiz.NewBank(questions)
	if err != nil {
		return nil, fmt.Errorf("load question bank %s: %w", path, err)
	}
	return bank, nil
}

// LoadBankOrDefault loads the bank at path or falls back to the built-in
// questions when it cannot be loaded.
func LoadBankOrDefault(path string, log *zap.Logger) *quiz.Bank {
	bank, err := LoadBank(path)
	if err != nil {
		log.Warn("failed to load question bank, using default questions",
			zap.String("path", path), zap.Error(err))
		bank, err = quiz.NewBank(DefaultQuizQuestions())
		if err != nil {
			// The built-in bank is static; a failure here is a programming error.
			panic(err)
		}
		return bank
	}

	log.Info("question bank loaded", zap.String("path", path), zap.Int("questions", bank.Len()))
	return bank
}

// DefaultQuizQuestions returns the built-in question bank.
func DefaultQuizQuestions() []quiz.Question {
	return []quiz.Question{
		{
			ID:   "default-1",
			Stem: "Which gate puts a qubit in |0> into an equal superposition of |0> and |1>?",
			Choices: map[quiz.Label]string{
				quiz.LabelA: "X",
				quiz.LabelB: "H",
				quiz.LabelC: "Z",
				quiz.LabelD: "S",
			},
			Correct:     quiz.LabelB,
			Explanation: "The Hadamard gate maps |0> to (|0> + |1>)/sqrt(2).",
			Section:     "Circuits",
		},
		{
			ID:   "default-2",
			Stem: "Which method adds a CNOT to a QuantumCircuit?",
			Choices: map[quiz.Label]string{
				quiz.LabelA: "qc.cx(0, 1)",
				quiz.LabelB: "qc.cnot_gate(0, 1)",
				quiz.LabelC: "qc.add_cnot(0, 1)",
			},
			Correct: quiz.LabelA,
			Section: "Circuits",
		},
		{
			ID:   "default-3",
			Stem: "How many classical outcomes can a measurement of two qubits produce?",
			Choices: map[quiz.Label]string{
				quiz.LabelA: "2",
				quiz.LabelB: "3",
				quiz.LabelC: "4",
				quiz.LabelD: "8",
			},
			Correct:     quiz.LabelC,
			Explanation: "Two bits give 00, 01, 10 and 11.",
			Section:     "Measurement",
		},
		{
			ID:   "default-4",
			Stem: "Which gate flips the phase of |1> and leaves |0> unchanged?",
			Choices: map[quiz.Label]string{
				quiz.LabelA: "Z",
				quiz.LabelB: "X",
				quiz.LabelC: "Y",
				quiz.LabelD: "H",
			},
			Correct: quiz.LabelA,
			Section: "Circuits",
		},
	}
}
