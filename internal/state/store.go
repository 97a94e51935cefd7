package state

import (
	"database/sql"
	"fmt"
	"time"
)

// Deployment represents one synthesized deployment.
type Deployment struct {
	ID            int64     `db:"id"`
	Name          string    `db:"name"`
	TemplateHash  string    `db:"template_hash"`
	ResourceCount int       `db:"resource_count"`
	SynthesizedAt time.Time `db:"synthesized_at"` // Set by database on first insert
}

// Artifact represents one synthesized file belonging to a deployment.
type Artifact struct {
	ID         int64     `db:"id"`
	Deployment string    `db:"deployment"`
	Path       string    `db:"path"`
	Kind       string    `db:"kind"`
	Service    string    `db:"service"`
	Hash       string    `db:"hash"`
	CreatedAt  time.Time `db:"created_at"`
}

// Store defines the interface for synthesis state access.
type Store interface {
	RecordDeployment(d *Deployment) (int64, error)
	FindDeployments() ([]Deployment, error)
	FindDeployment(name string) (Deployment, error)
	RecordArtifact(a *Artifact) (int64, error)
	FindArtifacts(deployment string) ([]Artifact, error)
	DeleteArtifacts(deployment string) error
}

// SQLStore implements Store with a SQL database.
type SQLStore struct {
	db *sql.DB
}

// NewStore creates a SQL-backed synthesis state store.
func NewStore(db *sql.DB) Store {
	return &SQLStore{db: db}
}

// RecordDeployment inserts or updates a deployment record.
func (s *SQLStore) RecordDeployment(d *Deployment) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO deployments (name, template_hash, resource_count)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
		template_hash = excluded.template_hash,
		resource_count = excluded.resource_count,
		synthesized_at = CURRENT_TIMESTAMP
	`, d.Name, d.TemplateHash, d.ResourceCount)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// FindDeployments retrieves all deployments.
func (s *SQLStore) FindDeployments() ([]Deployment, error) {
	rows, err := s.db.Query("SELECT id, name, template_hash, resource_count, synthesized_at FROM deployments")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var deployments []Deployment
	for rows.Next() {
		var d Deployment
		if err := rows.Scan(&d.ID, &d.Name, &d.TemplateHash, &d.ResourceCount, &d.SynthesizedAt); err != nil {
			return nil, err
		}
		deployments = append(deployments, d)
	}
	return deployments, rows.Err()
}

// FindDeployment retrieves a single deployment by name.
func (s *SQLStore) FindDeployment(name string) (Deployment, error) {
	row := s.db.QueryRow("SELECT id, name, template_hash, resource_count, synthesized_at FROM deployments WHERE name = ?", name)

	var d Deployment
	if err := row.Scan(&d.ID, &d.Name, &d.TemplateHash, &d.ResourceCount, &d.SynthesizedAt); err != nil {
		if err == sql.ErrNoRows {
			return Deployment{}, fmt.Errorf("deployment %q not found", name)
		}
		return Deployment{}, err
	}
	return d, nil
}

// RecordArtifact inserts or updates an artifact record.
func (s *SQLStore) RecordArtifact(a *Artifact) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO artifacts (deployment, path, kind, service, hash)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(deployment, path) DO UPDATE SET
		kind = excluded.kind,
		service = excluded.service,
		hash = excluded.hash
	`, a.Deployment, a.Path, a.Kind, a.Service, a.Hash)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// FindArtifacts retrieves all artifacts recorded for a deployment.
func (s *SQLStore) FindArtifacts(deployment string) ([]Artifact, error) {
	rows, err := s.db.Query("SELECT id, deployment, path, kind, service, hash, created_at FROM artifacts WHERE deployment = ?", deployment)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var artifacts []Artifact
	for rows.Next() {
		var a Artifact
		if err := rows.Scan(&a.ID, &a.Deployment, &a.Path, &a.Kind, &a.Service, &a.Hash, &a.CreatedAt); err != nil {
			return nil, err
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, rows.Err()
}

// DeleteArtifacts removes all artifact records for a deployment.
func (s *SQLStore) DeleteArtifacts(deployment string) error {
	_, err := s.db.Exec("DELETE FROM artifacts WHERE deployment = ?", deployment)
	return err
}
