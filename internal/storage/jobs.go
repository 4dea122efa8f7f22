package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const jobColumns = `id, dataset_id, name, base_model, status, progress, current_step, total_steps, loss, error, output_dir, created_at, started_at, completed_at`

func (s *Store) CreateJob(j TrainingJob) error {
	var exists int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM datasets WHERE id = ?`, j.DatasetID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return ErrNotFound
	}

	createdAt := j.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	status := j.Status
	if status == "" {
		status = JobPending
	}
	_, err := s.db.Exec(`
		INSERT INTO training_jobs (id, dataset_id, name, base_model, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		j.ID, j.DatasetID, j.Name, j.BaseModel, status, createdAt.Format(time.RFC3339),
	)
	return err
}

func (s *Store) GetJob(id string) (TrainingJob, error) {
	row := s.db.QueryRow(`SELECT `+jobColumns+` FROM training_jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return TrainingJob{}, ErrNotFound
	}
	return j, err
}

func (s *Store) ListJobs() ([]TrainingJob, error) {
	rows, err := s.db.Query(`SELECT ` + jobColumns + ` FROM training_jobs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []TrainingJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, j)
	}
	return results, rows.Err()
}

// CountActiveJobs returns the number of jobs currently preparing or training.
func (s *Store) CountActiveJobs() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM training_jobs WHERE status IN (?, ?)`,
		JobPreparing, JobTraining).Scan(&count)
	return count, err
}

// TransitionJob atomically moves a job from one of the given statuses to the
// target status. Returns ErrInvalidTransition if the job exists but is not in
// an allowed source status, ErrNotFound if it doesn't exist.
func (s *Store) TransitionJob(id string, from []string, to string) error {
	if len(from) == 0 {
		return fmt.Errorf("no source statuses given")
	}

	args := make([]any, 0, len(from)+2)
	args = append(args, to, id)
	for _, f := range from {
		args = append(args, f)
	}
	query := `UPDATE training_jobs SET status = ? WHERE id = ? AND status IN (?` +
		strings.Repeat(",?", len(from)-1) + `)`

	res, err := s.db.Exec(query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	// Distinguish missing job from disallowed transition.
	var exists int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM training_jobs WHERE id = ?`, id).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return ErrNotFound
	}
	return ErrInvalidTransition
}

// MarkJobStarted records the training start time.
func (s *Store) MarkJobStarted(id string) error {
	res, err := s.db.Exec(`UPDATE training_jobs SET started_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// UpdateJobProgress stores progress values reported by the trainer process.
func (s *Store) UpdateJobProgress(id string, progress float64, currentStep, totalSteps int, loss float64) error {
	res, err := s.db.Exec(`
		UPDATE training_jobs SET progress = ?, current_step = ?, total_steps = ?, loss = ? WHERE id = ?`,
		progress, currentStep, totalSteps, loss, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// FinishJob moves a job to a terminal status and records the completion time.
// errMsg and outputDir may be empty depending on the outcome.
func (s *Store) FinishJob(id string, status string, errMsg string, outputDir string) error {
	if status != JobCompleted && status != JobFailed && status != JobCancelled {
		return fmt.Errorf("status %q is not terminal", status)
	}
	res, err := s.db.Exec(`
		UPDATE training_jobs SET status = ?, error = ?, output_dir = ?, completed_at = ? WHERE id = ?`,
		status, errMsg, outputDir, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Store) DeleteJob(id string) error {
	res, err := s.db.Exec(`DELETE FROM training_jobs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func scanJob(row rowScanner) (TrainingJob, error) {
	var j TrainingJob
	var createdAt string
	var startedAt, completedAt sql.NullString
	err := row.Scan(&j.ID, &j.DatasetID, &j.Name, &j.BaseModel, &j.Status, &j.Progress,
		&j.CurrentStep, &j.TotalSteps, &j.Loss, &j.Error, &j.OutputDir,
		&createdAt, &startedAt, &completedAt)
	if err != nil {
		return TrainingJob{}, err
	}
	if j.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return TrainingJob{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if startedAt.Valid {
		t, err := time.Parse(time.RFC3339, startedAt.String)
		if err != nil {
			return TrainingJob{}, fmt.Errorf("parsing started_at: %w", err)
		}
		j.StartedAt = &t
	}
	if completedAt.Valid {
		t, err := time.Parse(time.RFC3339, completedAt.String)
		if err != nil {
			return TrainingJob{}, fmt.Errorf("parsing completed_at: %w", err)
		}
		j.CompletedAt = &t
	}
	return j, nil
}
