package storage

import (
	"database/sql"
	"fmt"
	"time"
)

const exampleColumns = `id, dataset_id, instruction, input, output, source, is_approved, quality_rating, created_at`

func (s *Store) AddExample(e TrainingExample) error {
	// Reject examples for datasets that don't exist up front so the caller
	// gets ErrNotFound instead of a foreign key violation.
	var exists int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM datasets WHERE id = ?`, e.DatasetID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return ErrNotFound
	}

	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	source := e.Source
	if source == "" {
		source = "manual"
	}
	_, err := s.db.Exec(`
		INSERT INTO training_examples (id, dataset_id, instruction, input, output, source, is_approved, quality_rating, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.DatasetID, e.Instruction, e.Input, e.Output, source,
		boolToInt(e.IsApproved), e.QualityRating, createdAt.Format(time.RFC3339),
	)
	if err != nil {
		return err
	}
	return s.TouchDataset(e.DatasetID)
}

func (s *Store) GetExample(id string) (TrainingExample, error) {
	row := s.db.QueryRow(`SELECT `+exampleColumns+` FROM training_examples WHERE id = ?`, id)
	e, err := scanExample(row)
	if err == sql.ErrNoRows {
		return TrainingExample{}, ErrNotFound
	}
	return e, err
}

// ListExamples returns examples for a dataset in insertion order.
// When approvedOnly is true, only approved examples are returned.
func (s *Store) ListExamples(datasetID string, approvedOnly bool) ([]TrainingExample, error) {
	query := `SELECT ` + exampleColumns + ` FROM training_examples WHERE dataset_id = ?`
	if approvedOnly {
		query += ` AND is_approved = 1`
	}
	query += ` ORDER BY created_at ASC, rowid ASC`

	rows, err := s.db.Query(query, datasetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []TrainingExample
	for rows.Next() {
		e, err := scanExample(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, e)
	}
	return results, rows.Err()
}

func (s *Store) UpdateExample(id string, instruction, input, output string) error {
	res, err := s.db.Exec(`
		UPDATE training_examples SET instruction = ?, input = ?, output = ? WHERE id = ?`,
		instruction, input, output, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Store) SetExampleApproval(id string, approved bool) error {
	res, err := s.db.Exec(`UPDATE training_examples SET is_approved = ? WHERE id = ?`,
		boolToInt(approved), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// RateExample sets the quality rating, clamped to 1..5.
func (s *Store) RateExample(id string, rating int) error {
	if rating < 1 {
		rating = 1
	}
	if rating > 5 {
		rating = 5
	}
	res, err := s.db.Exec(`UPDATE training_examples SET quality_rating = ? WHERE id = ?`, rating, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Store) DeleteExample(id string) error {
	res, err := s.db.Exec(`DELETE FROM training_examples WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// CountApprovedExamples returns the number of approved examples in a dataset.
func (s *Store) CountApprovedExamples(datasetID string) (int, error) {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM training_examples WHERE dataset_id = ? AND is_approved = 1`,
		datasetID).Scan(&count)
	return count, err
}

func scanExample(row rowScanner) (TrainingExample, error) {
	var e TrainingExample
	var approved int
	var createdAt string
	err := row.Scan(&e.ID, &e.DatasetID, &e.Instruction, &e.Input, &e.Output, &e.Source,
		&approved, &e.QualityRating, &createdAt)
	if err != nil {
		return TrainingExample{}, err
	}
	e.IsApproved = approved != 0
	if e.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return TrainingExample{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return e, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
