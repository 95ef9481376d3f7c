package sqlite

import (
	"database/sql"
	"fmt"
	"visionstream/internal/dto"
	"visionstream/internal/model"
)

// ArtifactRepository implements repository.ArtifactRepository for SQLite.
type ArtifactRepository struct {
	db *DB
}

// NewArtifactRepository creates a new SQLite artifact repository.
func NewArtifactRepository(db *DB) *ArtifactRepository {
	return &ArtifactRepository{db: db}
}

// Upsert inserts an artifact, or replaces the record (and drops its
// detections) when a file with the same name was stored before.
func (r *ArtifactRepository) Upsert(a *model.Artifact) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRow(`SELECT id FROM artifacts WHERE filename = ?`, a.Filename).Scan(&id)
	switch {
	case err == sql.ErrNoRows:
		result, err := tx.Exec(`
			INSERT INTO artifacts (filename, kind, timestamp, filepath, filesize)
			VALUES (?, ?, ?, ?, ?)
		`, a.Filename, a.Kind, a.Timestamp, a.FilePath, a.FileSize)
		if err != nil {
			return 0, fmt.Errorf("failed to insert artifact: %w", err)
		}
		if id, err = result.LastInsertId(); err != nil {
			return 0, fmt.Errorf("failed to read artifact id: %w", err)
		}
	case err != nil:
		return 0, fmt.Errorf("failed to look up artifact: %w", err)
	default:
		if _, err := tx.Exec(`
			UPDATE artifacts SET kind = ?, timestamp = ?, filepath = ?, filesize = ?
			WHERE id = ?
		`, a.Kind, a.Timestamp, a.FilePath, a.FileSize, id); err != nil {
			return 0, fmt.Errorf("failed to update artifact: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM detections WHERE artifact_id = ?`, id); err != nil {
			return 0, fmt.Errorf("failed to delete stale detections: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit artifact: %w", err)
	}
	a.ID = id
	return id, nil
}

// GetByFilename retrieves an artifact by its filename. It returns nil, nil when absent.
func (r *ArtifactRepository) GetByFilename(filename string) (*model.Artifact, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var a model.Artifact
	err := r.db.Conn().QueryRow(`
		SELECT id, filename, kind, timestamp, filepath, filesize
		FROM artifacts WHERE filename = ?
	`, filename).Scan(&a.ID, &a.Filename, &a.Kind, &a.Timestamp, &a.FilePath, &a.FileSize)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get artifact: %w", err)
	}
	return &a, nil
}

// whereClause builds the shared filter of GetAll and GetTotalCount.
func whereClause(filter *dto.ArtifactFilter) (string, []interface{}) {
	where := " WHERE 1=1"
	args := []interface{}{}
	if filter == nil {
		return where, args
	}

	if filter.Kind != "" {
		where += " AND a.kind = ?"
		args = append(args, filter.Kind)
	}

	if filter.Label != "" {
		where += " AND EXISTS (SELECT 1 FROM detections d WHERE d.artifact_id = a.id AND d.label = ?)"
		args = append(args, filter.Label)
	}

	if !filter.DateAfter.IsZero() {
		where += " AND a.timestamp >= ?"
		args = append(args, filter.DateAfter)
	}

	if !filter.DateBefore.IsZero() {
		where += " AND a.timestamp <= ?"
		args = append(args, filter.DateBefore)
	}

	return where, args
}

// GetAll retrieves artifacts matching the filter, newest first.
func (r *ArtifactRepository) GetAll(filter *dto.ArtifactFilter) ([]model.Artifact, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := whereClause(filter)
	query := `
		SELECT a.id, a.filename, a.kind, a.timestamp, a.filepath, a.filesize
		FROM artifacts a
	` + where + " ORDER BY a.timestamp DESC, a.id DESC"

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)

		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []model.Artifact
	for rows.Next() {
		var a model.Artifact
		if err := rows.Scan(&a.ID, &a.Filename, &a.Kind, &a.Timestamp, &a.FilePath, &a.FileSize); err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		artifacts = append(artifacts, a)
	}

	return artifacts, rows.Err()
}

// GetTotalCount returns the number of artifacts matching the filter.
func (r *ArtifactRepository) GetTotalCount(filter *dto.ArtifactFilter) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := whereClause(filter)
	query := `
		SELECT COUNT(*)
		FROM artifacts a
	` + where

	var count int
	if err := r.db.Conn().QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count artifacts: %w", err)
	}
	return count, nil
}

// GetTotalSize returns the summed size in bytes of all artifacts.
func (r *ArtifactRepository) GetTotalSize() (int64, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var size int64
	if err := r.db.Conn().QueryRow(`SELECT COALESCE(SUM(filesize), 0) FROM artifacts`).Scan(&size); err != nil {
		return 0, fmt.Errorf("failed to sum artifact sizes: %w", err)
	}
	return size, nil
}

// GetStats returns statistics about stored artifacts.
func (r *ArtifactRepository) GetStats() (*dto.ArtifactStats, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	stats := &dto.ArtifactStats{
		PerKind:     make(map[string]int),
		LabelCounts: make(map[string]int),
	}

	if err := r.db.Conn().QueryRow(`SELECT COUNT(*), COALESCE(SUM(filesize), 0) FROM artifacts`).
		Scan(&stats.TotalArtifacts, &stats.TotalSizeBytes); err != nil {
		return nil, err
	}

	rows, err := r.db.Conn().Query(`SELECT kind, COUNT(*) FROM artifacts GROUP BY kind`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, err
		}
		stats.PerKind[kind] = count
	}

	labelRows, err := r.db.Conn().Query(`
		SELECT label, COUNT(*) AS cnt
		FROM detections
		GROUP BY label
		ORDER BY cnt DESC
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	defer labelRows.Close()

	for labelRows.Next() {
		var label string
		var count int
		if err := labelRows.Scan(&label, &count); err != nil {
			return nil, err
		}
		stats.LabelCounts[label] = count
	}

	return stats, nil
}

// DeleteByFilename removes an artifact and its detections.
func (r *ArtifactRepository) DeleteByFilename(filename string) error {
	r.db.Lock()
	defer r.db.Unlock()

	var id int64
	err := r.db.Conn().QueryRow(`SELECT id FROM artifacts WHERE filename = ?`, filename).Scan(&id)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get artifact id: %w", err)
	}

	if _, err := r.db.Conn().Exec(`DELETE FROM detections WHERE artifact_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete detections: %w", err)
	}

	if _, err := r.db.Conn().Exec(`DELETE FROM artifacts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete artifact: %w", err)
	}
	return nil
}
