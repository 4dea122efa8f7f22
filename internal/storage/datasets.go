package storage

import (
	"database/sql"
	"fmt"
	"time"
)

const datasetColumns = `d.id, d.name, d.description, d.language, d.created_at, d.updated_at,
	(SELECT COUNT(*) FROM training_examples e WHERE e.dataset_id = d.id),
	(SELECT COUNT(*) FROM training_examples e WHERE e.dataset_id = d.id AND e.is_approved = 1)`

func (s *Store) CreateDataset(d Dataset) error {
	now := time.Now().UTC()
	createdAt := d.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	_, err := s.db.Exec(`
		INSERT INTO datasets (id, name, description, language, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		d.ID, d.Name, d.Description, d.Language,
		createdAt.Format(time.RFC3339), createdAt.Format(time.RFC3339),
	)
	return err
}

func (s *Store) GetDataset(id string) (Dataset, error) {
	row := s.db.QueryRow(`SELECT `+datasetColumns+` FROM datasets d WHERE d.id = ?`, id)
	d, err := scanDataset(row)
	if err == sql.ErrNoRows {
		return Dataset{}, ErrNotFound
	}
	return d, err
}

func (s *Store) ListDatasets() ([]Dataset, error) {
	rows, err := s.db.Query(`SELECT ` + datasetColumns + ` FROM datasets d ORDER BY d.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Dataset
	for rows.Next() {
		d, err := scanDataset(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, d)
	}
	return results, rows.Err()
}

// TouchDataset bumps updated_at, used when examples change.
func (s *Store) TouchDataset(id string) error {
	_, err := s.db.Exec(`UPDATE datasets SET updated_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), id)
	return err
}

func (s *Store) DeleteDataset(id string) error {
	res, err := s.db.Exec(`DELETE FROM datasets WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDataset(row rowScanner) (Dataset, error) {
	var d Dataset
	var createdAt, updatedAt string
	err := row.Scan(&d.ID, &d.Name, &d.Description, &d.Language, &createdAt, &updatedAt,
		&d.ExampleCount, &d.ApprovedCount)
	if err != nil {
		return Dataset{}, err
	}
	if d.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return Dataset{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if d.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return Dataset{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return d, nil
}
