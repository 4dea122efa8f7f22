package training

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/kalambet/lingo/internal/storage"
)

// DefaultBaseModel is used when a job is created without one.
const DefaultBaseModel = "unsloth/Llama-3.2-1B-Instruct"

// Job lifecycle errors.
var (
	// ErrJobAlreadyRunning means another job holds the single training slot.
	ErrJobAlreadyRunning = errors.New("another training job is already running")

	// ErrNoApprovedExamples means the job's dataset has nothing approved to
	// train on.
	ErrNoApprovedExamples = errors.New("dataset has no approved examples")
)

// Jobs manages the training job lifecycle. Only one job may be active
// (preparing or training) at a time.
type Jobs struct {
	store  *storage.Store
	logger *slog.Logger
}

// NewJobs creates a Jobs service over the given store.
func NewJobs(store *storage.Store) *Jobs {
	return &Jobs{store: store, logger: slog.Default()}
}

// Create registers a new pending job for a dataset.
func (j *Jobs) Create(datasetID, name, baseModel string) (storage.TrainingJob, error) {
	if baseModel == "" {
		baseModel = DefaultBaseModel
	}
	if name == "" {
		name = "language-tutor-lora"
	}
	job := storage.TrainingJob{
		ID:        uuid.NewString(),
		DatasetID: datasetID,
		Name:      name,
		BaseModel: baseModel,
		Status:    storage.JobPending,
	}
	if err := j.store.CreateJob(job); err != nil {
		return storage.TrainingJob{}, err
	}
	j.logger.Info("created training job", "id", job.ID, "dataset", datasetID, "base_model", baseModel)
	return j.store.GetJob(job.ID)
}

// Get returns a job by id.
func (j *Jobs) Get(id string) (storage.TrainingJob, error) {
	return j.store.GetJob(id)
}

// List returns all jobs, newest first.
func (j *Jobs) List() ([]storage.TrainingJob, error) {
	return j.store.ListJobs()
}

// Start claims a job for execution by moving it to preparing. A pending or
// previously failed job can start; starting is refused while another job is
// active or when the dataset has no approved examples. On refusal the job
// keeps its current status.
func (j *Jobs) Start(id string) error {
	job, err := j.store.GetJob(id)
	if err != nil {
		return err
	}

	active, err := j.store.CountActiveJobs()
	if err != nil {
		return err
	}
	if active > 0 {
		return ErrJobAlreadyRunning
	}

	approved, err := j.store.CountApprovedExamples(job.DatasetID)
	if err != nil {
		return err
	}
	if approved == 0 {
		return ErrNoApprovedExamples
	}

	if err := j.store.TransitionJob(id, []string{storage.JobPending, storage.JobFailed}, storage.JobPreparing); err != nil {
		return err
	}
	if err := j.store.MarkJobStarted(id); err != nil {
		return err
	}
	j.logger.Info("training job claimed", "id", id)
	return nil
}

// Cancel stops an active job. The runner observes the status change and
// kills the trainer process.
func (j *Jobs) Cancel(id string) error {
	err := j.store.TransitionJob(id, []string{storage.JobPreparing, storage.JobTraining}, storage.JobCancelled)
	if err != nil {
		return err
	}
	j.logger.Info("training job cancelled", "id", id)
	return nil
}

// Delete removes a job record. Active jobs must be cancelled first.
func (j *Jobs) Delete(id string) error {
	job, err := j.store.GetJob(id)
	if err != nil {
		return err
	}
	if job.Active() {
		return fmt.Errorf("%w: cancel it first", ErrJobAlreadyRunning)
	}
	return j.store.DeleteJob(id)
}
