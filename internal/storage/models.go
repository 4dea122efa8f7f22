package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidTransition is returned when a job status change is not allowed
// from the job's current status.
var ErrInvalidTransition = errors.New("invalid job transition")

// Training job statuses.
const (
	JobPending   = "pending"
	JobPreparing = "preparing"
	JobTraining  = "training"
	JobCompleted = "completed"
	JobFailed    = "failed"
	JobCancelled = "cancelled"
)

// Dataset is a named collection of training examples.
type Dataset struct {
	ID          string
	Name        string
	Description string
	Language    string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Counts are populated on reads, not stored.
	ExampleCount  int
	ApprovedCount int
}

// TrainingExample is a single instruction/input/output triple inside a dataset.
type TrainingExample struct {
	ID            string
	DatasetID     string
	Instruction   string
	Input         string
	Output        string
	Source        string // "manual", "chat", "import"
	IsApproved    bool
	QualityRating int // 1..5, 0 = unrated
	CreatedAt     time.Time
}

// TrainingJob tracks one fine-tuning run over a dataset.
// Progress fields are relayed from the external trainer process verbatim.
type TrainingJob struct {
	ID          string
	DatasetID   string
	Name        string
	BaseModel   string
	Status      string
	Progress    float64
	CurrentStep int
	TotalSteps  int
	Loss        float64
	Error       string
	OutputDir   string
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// Active reports whether the job is in a non-terminal running state.
func (j TrainingJob) Active() bool {
	return j.Status == JobPreparing || j.Status == JobTraining
}
