package training

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kalambet/lingo/internal/storage"
)

// Export formats.
const (
	FormatJSONL    = "jsonl"
	FormatAlpaca   = "alpaca"
	FormatShareGPT = "sharegpt"
)

// ErrNoExamples is returned when an export matches no training examples.
var ErrNoExamples = errors.New("no examples to export")

// fallbackInstruction is used for examples collected without a system prompt.
const fallbackInstruction = "You are a helpful language tutor."

// ValidFormat reports whether format is a supported export format.
func ValidFormat(format string) bool {
	switch format {
	case FormatJSONL, FormatAlpaca, FormatShareGPT:
		return true
	}
	return false
}

// Export writes a dataset's examples to a file under exportDir in the given
// format and returns the file path and the number of exported examples.
// With onlyApproved set, unapproved examples are excluded.
func (d *Data) Export(datasetID, format, exportDir string, onlyApproved bool) (string, int, error) {
	if !ValidFormat(format) {
		return "", 0, fmt.Errorf("unknown export format: %q", format)
	}

	examples, err := d.collectForExport(datasetID, onlyApproved)
	if err != nil {
		return "", 0, err
	}
	if len(examples) == 0 {
		return "", 0, ErrNoExamples
	}

	if err := os.MkdirAll(exportDir, 0o755); err != nil {
		return "", 0, fmt.Errorf("creating export dir: %w", err)
	}

	timestamp := time.Now().Format("20060102_150405")
	var path string
	switch format {
	case FormatJSONL:
		path = filepath.Join(exportDir, fmt.Sprintf("training_%s.jsonl", timestamp))
		err = writeJSONL(path, examples)
	case FormatAlpaca:
		path = filepath.Join(exportDir, fmt.Sprintf("training_%s_alpaca.json", timestamp))
		err = writeAlpaca(path, examples)
	case FormatShareGPT:
		path = filepath.Join(exportDir, fmt.Sprintf("training_%s_sharegpt.json", timestamp))
		err = writeShareGPT(path, examples)
	}
	if err != nil {
		return "", 0, err
	}

	d.logger.Info("exported training data", "file", path, "examples", len(examples), "format", format)
	return path, len(examples), nil
}

// collectForExport gathers examples from one dataset or, with an empty
// datasetID, from all datasets.
func (d *Data) collectForExport(datasetID string, onlyApproved bool) ([]storage.TrainingExample, error) {
	if datasetID != "" {
		if _, err := d.store.GetDataset(datasetID); err != nil {
			return nil, err
		}
		return d.store.ListExamples(datasetID, onlyApproved)
	}

	datasets, err := d.store.ListDatasets()
	if err != nil {
		return nil, err
	}
	var all []storage.TrainingExample
	for _, ds := range datasets {
		examples, err := d.store.ListExamples(ds.ID, onlyApproved)
		if err != nil {
			return nil, err
		}
		all = append(all, examples...)
	}
	return all, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// writeJSONL writes one {"messages": [...]} object per line, the format
// OpenAI-style fine-tuning tools consume.
func writeJSONL(path string, examples []storage.TrainingExample) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, ex := range examples {
		var messages []chatMessage
		if ex.Instruction != "" {
			messages = append(messages, chatMessage{Role: "system", Content: ex.Instruction})
		}
		messages = append(messages,
			chatMessage{Role: "user", Content: ex.Input},
			chatMessage{Role: "assistant", Content: ex.Output},
		)
		if err := enc.Encode(map[string]any{"messages": messages}); err != nil {
			return err
		}
	}
	return nil
}

func writeAlpaca(path string, examples []storage.TrainingExample) error {
	type record struct {
		Instruction string `json:"instruction"`
		Input       string `json:"input"`
		Output      string `json:"output"`
	}
	data := make([]record, len(examples))
	for i, ex := range examples {
		instruction := ex.Instruction
		if instruction == "" {
			instruction = fallbackInstruction
		}
		data[i] = record{Instruction: instruction, Input: ex.Input, Output: ex.Output}
	}
	return writeJSONFile(path, data)
}

func writeShareGPT(path string, examples []storage.TrainingExample) error {
	type turn struct {
		From  string `json:"from"`
		Value string `json:"value"`
	}
	type record struct {
		Conversations []turn `json:"conversations"`
	}
	data := make([]record, len(examples))
	for i, ex := range examples {
		var conv []turn
		if ex.Instruction != "" {
			conv = append(conv, turn{From: "system", Value: ex.Instruction})
		}
		conv = append(conv,
			turn{From: "human", Value: ex.Input},
			turn{From: "gpt", Value: ex.Output},
		)
		data[i] = record{Conversations: conv}
	}
	return writeJSONFile(path, data)
}

func writeJSONFile(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
