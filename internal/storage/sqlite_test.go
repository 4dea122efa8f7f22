package storage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedDataset(t *testing.T, s *Store) Dataset {
	t.Helper()
	d := Dataset{ID: uuid.New().String(), Name: "english-b1", Language: "English"}
	if err := s.CreateDataset(d); err != nil {
		t.Fatalf("CreateDataset: %v", err)
	}
	return d
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// the schema_version count stays correct (migration not re-applied).
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}

	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

func TestIndexesExist(t *testing.T) {
	s := openTestStore(t)

	indexes := []string{
		"idx_training_examples_dataset",
		"idx_training_examples_approved",
		"idx_training_jobs_status",
		"idx_reference_vectors_language",
	}
	for _, idx := range indexes {
		var count int
		err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?", idx).Scan(&count)
		if err != nil {
			t.Fatalf("querying index %s: %v", idx, err)
		}
		if count != 1 {
			t.Errorf("index %s not found", idx)
		}
	}
}

func TestDatasetCRUD(t *testing.T) {
	s := openTestStore(t)
	d := seedDataset(t, s)

	got, err := s.GetDataset(d.ID)
	if err != nil {
		t.Fatalf("GetDataset: %v", err)
	}
	if got.Name != "english-b1" || got.Language != "English" {
		t.Errorf("unexpected dataset: %+v", got)
	}
	if got.ExampleCount != 0 || got.ApprovedCount != 0 {
		t.Errorf("new dataset has nonzero counts: %+v", got)
	}

	list, err := s.ListDatasets()
	if err != nil {
		t.Fatalf("ListDatasets: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("ListDatasets returned %d, want 1", len(list))
	}

	if err := s.DeleteDataset(d.ID); err != nil {
		t.Fatalf("DeleteDataset: %v", err)
	}
	if _, err := s.GetDataset(d.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetDataset after delete: %v, want ErrNotFound", err)
	}
	if err := s.DeleteDataset(d.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteDataset: %v, want ErrNotFound", err)
	}
}

func TestExampleLifecycle(t *testing.T) {
	s := openTestStore(t)
	d := seedDataset(t, s)

	ex := TrainingExample{
		ID:          uuid.New().String(),
		DatasetID:   d.ID,
		Instruction: "Correct the sentence",
		Input:       "She go to school",
		Output:      "She goes to school",
	}
	if err := s.AddExample(ex); err != nil {
		t.Fatalf("AddExample: %v", err)
	}

	got, err := s.GetExample(ex.ID)
	if err != nil {
		t.Fatalf("GetExample: %v", err)
	}
	if got.Source != "manual" {
		t.Errorf("Source = %q, want manual default", got.Source)
	}
	if got.IsApproved {
		t.Error("new example should not be approved")
	}

	if err := s.SetExampleApproval(ex.ID, true); err != nil {
		t.Fatalf("SetExampleApproval: %v", err)
	}
	if err := s.RateExample(ex.ID, 9); err != nil {
		t.Fatalf("RateExample: %v", err)
	}
	got, err = s.GetExample(ex.ID)
	if err != nil {
		t.Fatalf("GetExample: %v", err)
	}
	if !got.IsApproved {
		t.Error("example not approved after SetExampleApproval")
	}
	if got.QualityRating != 5 {
		t.Errorf("QualityRating = %d, want clamped to 5", got.QualityRating)
	}

	ds, err := s.GetDataset(d.ID)
	if err != nil {
		t.Fatalf("GetDataset: %v", err)
	}
	if ds.ExampleCount != 1 || ds.ApprovedCount != 1 {
		t.Errorf("counts = %d/%d, want 1/1", ds.ExampleCount, ds.ApprovedCount)
	}
}

func TestAddExampleUnknownDataset(t *testing.T) {
	s := openTestStore(t)

	err := s.AddExample(TrainingExample{
		ID:          uuid.New().String(),
		DatasetID:   "nope",
		Instruction: "x",
		Output:      "y",
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("AddExample with unknown dataset: %v, want ErrNotFound", err)
	}
}

func TestListExamplesApprovedFilter(t *testing.T) {
	s := openTestStore(t)
	d := seedDataset(t, s)

	for i := 0; i < 4; i++ {
		ex := TrainingExample{
			ID:          uuid.New().String(),
			DatasetID:   d.ID,
			Instruction: fmt.Sprintf("instruction %d", i),
			Output:      "out",
		}
		if err := s.AddExample(ex); err != nil {
			t.Fatalf("AddExample: %v", err)
		}
		if i%2 == 0 {
			if err := s.SetExampleApproval(ex.ID, true); err != nil {
				t.Fatalf("SetExampleApproval: %v", err)
			}
		}
	}

	all, err := s.ListExamples(d.ID, false)
	if err != nil {
		t.Fatalf("ListExamples: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("all examples = %d, want 4", len(all))
	}

	approved, err := s.ListExamples(d.ID, true)
	if err != nil {
		t.Fatalf("ListExamples approved: %v", err)
	}
	if len(approved) != 2 {
		t.Errorf("approved examples = %d, want 2", len(approved))
	}
	for _, e := range approved {
		if !e.IsApproved {
			t.Errorf("unapproved example %s in approved list", e.ID)
		}
	}

	n, err := s.CountApprovedExamples(d.ID)
	if err != nil {
		t.Fatalf("CountApprovedExamples: %v", err)
	}
	if n != 2 {
		t.Errorf("CountApprovedExamples = %d, want 2", n)
	}
}

func TestDatasetDeleteCascadesExamples(t *testing.T) {
	s := openTestStore(t)
	d := seedDataset(t, s)

	ex := TrainingExample{ID: uuid.New().String(), DatasetID: d.ID, Instruction: "i", Output: "o"}
	if err := s.AddExample(ex); err != nil {
		t.Fatalf("AddExample: %v", err)
	}
	if err := s.DeleteDataset(d.ID); err != nil {
		t.Fatalf("DeleteDataset: %v", err)
	}
	if _, err := s.GetExample(ex.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("example survived dataset delete: %v", err)
	}
}

func TestJobTransitions(t *testing.T) {
	s := openTestStore(t)
	d := seedDataset(t, s)

	j := TrainingJob{ID: uuid.New().String(), DatasetID: d.ID, Name: "run-1", BaseModel: "llama-3.2-3b"}
	if err := s.CreateJob(j); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	got, err := s.GetJob(j.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != JobPending {
		t.Errorf("new job status = %q, want pending", got.Status)
	}

	if err := s.TransitionJob(j.ID, []string{JobPending, JobFailed}, JobPreparing); err != nil {
		t.Fatalf("pending->preparing: %v", err)
	}
	if err := s.TransitionJob(j.ID, []string{JobPreparing}, JobTraining); err != nil {
		t.Fatalf("preparing->training: %v", err)
	}

	// A second start attempt must be rejected: the job is already training.
	err = s.TransitionJob(j.ID, []string{JobPending, JobFailed}, JobPreparing)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("restart of active job: %v, want ErrInvalidTransition", err)
	}

	if err := s.FinishJob(j.ID, JobCompleted, "", "/models/run-1"); err != nil {
		t.Fatalf("FinishJob: %v", err)
	}
	got, err = s.GetJob(j.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != JobCompleted || got.OutputDir != "/models/run-1" {
		t.Errorf("finished job: %+v", got)
	}
	if got.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}
}

func TestTransitionJobNotFound(t *testing.T) {
	s := openTestStore(t)

	err := s.TransitionJob("missing", []string{JobPending}, JobPreparing)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("TransitionJob on missing job: %v, want ErrNotFound", err)
	}
}

func TestCountActiveJobs(t *testing.T) {
	s := openTestStore(t)
	d := seedDataset(t, s)

	j1 := TrainingJob{ID: uuid.New().String(), DatasetID: d.ID, Name: "a", BaseModel: "m"}
	j2 := TrainingJob{ID: uuid.New().String(), DatasetID: d.ID, Name: "b", BaseModel: "m"}
	if err := s.CreateJob(j1); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := s.CreateJob(j2); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	n, err := s.CountActiveJobs()
	if err != nil {
		t.Fatalf("CountActiveJobs: %v", err)
	}
	if n != 0 {
		t.Errorf("active jobs = %d, want 0", n)
	}

	if err := s.TransitionJob(j1.ID, []string{JobPending}, JobPreparing); err != nil {
		t.Fatalf("TransitionJob: %v", err)
	}
	n, err = s.CountActiveJobs()
	if err != nil {
		t.Fatalf("CountActiveJobs: %v", err)
	}
	if n != 1 {
		t.Errorf("active jobs = %d, want 1", n)
	}
}

func TestJobProgressUpdate(t *testing.T) {
	s := openTestStore(t)
	d := seedDataset(t, s)

	j := TrainingJob{ID: uuid.New().String(), DatasetID: d.ID, Name: "run", BaseModel: "m"}
	if err := s.CreateJob(j); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := s.UpdateJobProgress(j.ID, 0.42, 42, 100, 1.73); err != nil {
		t.Fatalf("UpdateJobProgress: %v", err)
	}

	got, err := s.GetJob(j.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Progress != 0.42 || got.CurrentStep != 42 || got.TotalSteps != 100 {
		t.Errorf("progress not stored: %+v", got)
	}
	if got.Loss != 1.73 {
		t.Errorf("Loss = %v, want 1.73", got.Loss)
	}
}
