package training

import (
	"os"
	"path/filepath"
	"time"
)

// TrainedModel describes an artifact produced by a completed training job.
type TrainedModel struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Type      string    `json:"type"`
	SizeMB    float64   `json:"size_mb,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// BaseModel is a recommended starting point for fine-tuning.
type BaseModel struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Size         string `json:"size"`
	VRAMRequired string `json:"vram_required"`
}

// ListTrainedModels scans the output directory for LoRA adapters and GGUF
// files produced by training runs.
func ListTrainedModels(outputDir string) ([]TrainedModel, error) {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var models []TrainedModel
	for _, entry := range entries {
		path := filepath.Join(outputDir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			continue
		}

		if entry.IsDir() {
			if _, err := os.Stat(filepath.Join(path, "adapter_config.json")); err != nil {
				continue
			}
			models = append(models, TrainedModel{
				Name:      entry.Name(),
				Path:      path,
				Type:      "lora",
				CreatedAt: info.ModTime().UTC(),
			})
			continue
		}

		if filepath.Ext(entry.Name()) == ".gguf" {
			models = append(models, TrainedModel{
				Name:      entry.Name(),
				Path:      path,
				Type:      "gguf",
				SizeMB:    float64(info.Size()) / (1024 * 1024),
				CreatedAt: info.ModTime().UTC(),
			})
		}
	}
	return models, nil
}

// BaseModels lists recommended base models for fine-tuning.
func BaseModels() []BaseModel {
	return []BaseModel{
		{
			ID:           "unsloth/Llama-3.2-1B-Instruct",
			Name:         "Llama 3.2 1B Instruct",
			Description:  "Small, fast model for quick training. Good for testing.",
			Size:         "1B",
			VRAMRequired: "6GB",
		},
		{
			ID:           "unsloth/Llama-3.2-3B-Instruct",
			Name:         "Llama 3.2 3B Instruct",
			Description:  "Medium model with good performance/speed balance.",
			Size:         "3B",
			VRAMRequired: "8GB",
		},
		{
			ID:           "unsloth/Meta-Llama-3.1-8B-Instruct",
			Name:         "Llama 3.1 8B Instruct",
			Description:  "Larger model with better language understanding.",
			Size:         "8B",
			VRAMRequired: "16GB",
		},
		{
			ID:           "unsloth/Qwen2.5-7B-Instruct",
			Name:         "Qwen 2.5 7B Instruct",
			Description:  "Excellent multilingual support.",
			Size:         "7B",
			VRAMRequired: "16GB",
		},
		{
			ID:           "unsloth/Mistral-7B-Instruct-v0.3",
			Name:         "Mistral 7B Instruct v0.3",
			Description:  "Strong reasoning and instruction following.",
			Size:         "7B",
			VRAMRequired: "16GB",
		},
	}
}
