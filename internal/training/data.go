// Package training manages the fine-tuning pipeline: curated training data,
// dataset exports, and training jobs executed by an external trainer process.
package training

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/kalambet/lingo/internal/storage"
)

const (
	defaultDatasetName = "Default Training Data"
	defaultDatasetDesc = "Auto-collected training examples from user interactions"
)

// Data manages training datasets and their examples.
type Data struct {
	store  *storage.Store
	logger *slog.Logger
}

// NewData creates a Data service over the given store.
func NewData(store *storage.Store) *Data {
	return &Data{store: store, logger: slog.Default()}
}

// EnsureDefaultDataset creates the auto-collection dataset if no datasets
// exist yet and returns the dataset auto-collected turns go into.
func (d *Data) EnsureDefaultDataset() (storage.Dataset, error) {
	datasets, err := d.store.ListDatasets()
	if err != nil {
		return storage.Dataset{}, err
	}
	if len(datasets) > 0 {
		// Oldest dataset is the collection target.
		return datasets[len(datasets)-1], nil
	}
	return d.CreateDataset(defaultDatasetName, defaultDatasetDesc, "English")
}

// CreateDataset creates a new named dataset.
func (d *Data) CreateDataset(name, description, language string) (storage.Dataset, error) {
	if name == "" {
		return storage.Dataset{}, fmt.Errorf("dataset name is required")
	}
	ds := storage.Dataset{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		Language:    language,
	}
	if err := d.store.CreateDataset(ds); err != nil {
		return storage.Dataset{}, err
	}
	d.logger.Info("created dataset", "id", ds.ID, "name", name)
	return d.store.GetDataset(ds.ID)
}

// GetDataset returns a dataset with its counts.
func (d *Data) GetDataset(id string) (storage.Dataset, error) {
	return d.store.GetDataset(id)
}

// ListDatasets returns all datasets, newest first.
func (d *Data) ListDatasets() ([]storage.Dataset, error) {
	return d.store.ListDatasets()
}

// DeleteDataset removes a dataset and all its examples.
func (d *Data) DeleteDataset(id string) error {
	return d.store.DeleteDataset(id)
}

// AddExample stores a training example in a dataset.
func (d *Data) AddExample(datasetID, instruction, input, output, source string, approved bool) (storage.TrainingExample, error) {
	if input == "" || output == "" {
		return storage.TrainingExample{}, fmt.Errorf("example input and output are required")
	}
	ex := storage.TrainingExample{
		ID:          uuid.NewString(),
		DatasetID:   datasetID,
		Instruction: instruction,
		Input:       input,
		Output:      output,
		Source:      source,
		IsApproved:  approved,
	}
	if err := d.store.AddExample(ex); err != nil {
		return storage.TrainingExample{}, err
	}
	return d.store.GetExample(ex.ID)
}

// ListExamples returns a dataset's examples, optionally only approved ones.
func (d *Data) ListExamples(datasetID string, approvedOnly bool) ([]storage.TrainingExample, error) {
	return d.store.ListExamples(datasetID, approvedOnly)
}

// UpdateExample rewrites an example's text fields.
func (d *Data) UpdateExample(id, instruction, input, output string) (storage.TrainingExample, error) {
	if err := d.store.UpdateExample(id, instruction, input, output); err != nil {
		return storage.TrainingExample{}, err
	}
	return d.store.GetExample(id)
}

// ApproveExample marks an example as approved (or revokes approval) for
// inclusion in training exports.
func (d *Data) ApproveExample(id string, approved bool) error {
	return d.store.SetExampleApproval(id, approved)
}

// RateExample records a 1-5 quality rating.
func (d *Data) RateExample(id string, rating int) error {
	return d.store.RateExample(id, rating)
}

// DeleteExample removes an example.
func (d *Data) DeleteExample(id string) error {
	return d.store.DeleteExample(id)
}

// CollectChatTurn stores a completed chat exchange as an unapproved training
// example in the default dataset. Collection is best-effort: failures are
// logged and never surfaced to the chat path.
func (d *Data) CollectChatTurn(systemPrompt, userMessage, assistantResponse string) {
	ds, err := d.EnsureDefaultDataset()
	if err != nil {
		d.logger.Warn("auto-collect skipped, no dataset", "error", err)
		return
	}
	if _, err := d.AddExample(ds.ID, systemPrompt, userMessage, assistantResponse, "chat", false); err != nil {
		d.logger.Warn("auto-collect failed", "error", err)
	}
}
