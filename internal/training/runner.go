package training

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/kalambet/lingo/internal/storage"
)

// Runner executes claimed training jobs by spawning an external trainer
// process and relaying its progress into the job record. It polls for jobs
// moved to preparing by Jobs.Start and runs them one at a time.
type Runner struct {
	store      *storage.Store
	data       *Data
	trainerCmd string
	outputDir  string
	exportDir  string
	poll       time.Duration
	logger     *slog.Logger
}

// NewRunner creates a Runner. If pollInterval <= 0, it defaults to 2s.
func NewRunner(store *storage.Store, data *Data, trainerCmd, outputDir, exportDir string, pollInterval time.Duration) *Runner {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &Runner{
		store:      store,
		data:       data,
		trainerCmd: trainerCmd,
		outputDir:  outputDir,
		exportDir:  exportDir,
		poll:       pollInterval,
		logger:     slog.Default(),
	}
}

// Run polls for claimed jobs until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := r.RunOnce(ctx)
		if err != nil {
			r.logger.Error("runner iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(r.poll):
		}
	}
}

// RunOnce picks up a single preparing job and runs it to a terminal status.
// Returns true if a job was processed (regardless of outcome).
func (r *Runner) RunOnce(ctx context.Context) (bool, error) {
	job, err := r.nextClaimed()
	if err != nil {
		return false, fmt.Errorf("finding claimed job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	r.runJob(ctx, *job)
	return true, nil
}

func (r *Runner) nextClaimed() (*storage.TrainingJob, error) {
	jobs, err := r.store.ListJobs()
	if err != nil {
		return nil, err
	}
	// ListJobs is newest-first; claim the oldest preparing job.
	for i := len(jobs) - 1; i >= 0; i-- {
		if jobs[i].Status == storage.JobPreparing {
			return &jobs[i], nil
		}
	}
	return nil, nil
}

// progressLine is one ndjson line on the trainer's stdout.
type progressLine struct {
	Progress    float64 `json:"progress"`
	CurrentStep int     `json:"current_step"`
	TotalSteps  int     `json:"total_steps"`
	Loss        float64 `json:"loss"`
}

func (r *Runner) runJob(ctx context.Context, job storage.TrainingJob) {
	r.logger.Info("running training job", "id", job.ID, "base_model", job.BaseModel)

	dataFile, n, err := r.data.Export(job.DatasetID, FormatJSONL, r.exportDir, true)
	if err != nil {
		r.fail(job.ID, fmt.Errorf("exporting training data: %w", err))
		return
	}
	r.logger.Info("exported training data for job", "id", job.ID, "examples", n, "file", dataFile)

	outDir := filepath.Join(r.outputDir, job.Name)

	cmdCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, r.trainerCmd,
		"--data", dataFile,
		"--base-model", job.BaseModel,
		"--output", outDir,
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		r.fail(job.ID, fmt.Errorf("attaching to trainer: %w", err))
		return
	}
	if err := cmd.Start(); err != nil {
		r.fail(job.ID, fmt.Errorf("starting trainer %q: %w", r.trainerCmd, err))
		return
	}

	if err := r.store.TransitionJob(job.ID, []string{storage.JobPreparing}, storage.JobTraining); err != nil {
		// Cancelled between claim and launch.
		cancel()
		cmd.Wait()
		r.logger.Info("job no longer preparing, trainer stopped", "id", job.ID, "error", err)
		return
	}

	// Watch for cancellation while the trainer runs.
	watchDone := make(chan struct{})
	go r.watchCancelled(cmdCtx, job.ID, cancel, watchDone)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var p progressLine
		if err := json.Unmarshal(scanner.Bytes(), &p); err != nil {
			r.logger.Warn("unparseable trainer output", "id", job.ID, "line", scanner.Text())
			continue
		}
		if err := r.store.UpdateJobProgress(job.ID, p.Progress, p.CurrentStep, p.TotalSteps, p.Loss); err != nil {
			r.logger.Warn("failed to record progress", "id", job.ID, "error", err)
		}
	}

	waitErr := cmd.Wait()
	cancel()
	<-watchDone

	// The status may have been flipped to cancelled while the trainer ran.
	current, err := r.store.GetJob(job.ID)
	if err == nil && current.Status == storage.JobCancelled {
		r.logger.Info("training job cancelled", "id", job.ID)
		if err := r.store.FinishJob(job.ID, storage.JobCancelled, "", ""); err != nil {
			r.logger.Error("failed to stamp cancelled job", "id", job.ID, "error", err)
		}
		return
	}

	if waitErr != nil {
		r.fail(job.ID, fmt.Errorf("trainer exited: %w", waitErr))
		return
	}

	if err := r.store.UpdateJobProgress(job.ID, 100, current.CurrentStep, current.TotalSteps, current.Loss); err != nil {
		r.logger.Warn("failed to record final progress", "id", job.ID, "error", err)
	}
	if err := r.store.FinishJob(job.ID, storage.JobCompleted, "", outDir); err != nil {
		r.logger.Error("failed to complete job", "id", job.ID, "error", err)
		return
	}
	r.logger.Info("training job completed", "id", job.ID, "output", outDir)
}

// watchCancelled polls the job status and kills the trainer when the job is
// cancelled through the API.
func (r *Runner) watchCancelled(ctx context.Context, jobID string, kill context.CancelFunc, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			job, err := r.store.GetJob(jobID)
			if err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					kill()
					return
				}
				continue
			}
			if job.Status == storage.JobCancelled {
				kill()
				return
			}
		}
	}
}

func (r *Runner) fail(jobID string, cause error) {
	r.logger.Warn("training job failed", "id", jobID, "error", cause)
	if err := r.store.FinishJob(jobID, storage.JobFailed, cause.Error(), ""); err != nil {
		r.logger.Error("failed to mark job as failed", "id", jobID, "error", err)
	}
}
