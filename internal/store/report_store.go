package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/vbonduro/plantdoc/internal/domain"
)

// ReportStore archives completed diagnoses.
type ReportStore struct {
	db *sql.DB
}

func NewReportStore(db *sql.DB) *ReportStore {
	return &ReportStore{db: db}
}

const reportColumns = `id, client_id, plant_name, findings, questions, answers, report, photo_key, mime_type, completed_at`

func (s *ReportStore) Create(ctx context.Context, r *domain.Report) (*domain.Report, error) {
	questions, err := json.Marshal(nonNil(r.Questions))
	if err != nil {
		return nil, fmt.Errorf("failed to encode questions: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO reports (client_id, plant_name, findings, questions, answers, report, photo_key, mime_type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ClientID, r.PlantName, r.Findings, string(questions), r.Answers, r.Report, r.PhotoKey, r.MimeType)
	if err != nil {
		return nil, fmt.Errorf("failed to create report: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

func (s *ReportStore) GetByID(ctx context.Context, id int64) (*domain.Report, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = ?`, id)
	r, err := scanReport(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return r, nil
}

// List returns the most recent reports first. A limit of zero or less
// returns every report.
func (s *ReportStore) List(ctx context.Context, limit int) ([]*domain.Report, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+reportColumns+` FROM reports ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var reports []*domain.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reports: %w", err)
	}

	return reports, nil
}

func (s *ReportStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM reports WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("report not found")
	}

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(sc scanner) (*domain.Report, error) {
	r := &domain.Report{}
	var questions string
	err := sc.Scan(&r.ID, &r.ClientID, &r.PlantName, &r.Findings, &questions,
		&r.Answers, &r.Report, &r.PhotoKey, &r.MimeType, &r.CompletedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(questions), &r.Questions); err != nil {
		return nil, fmt.Errorf("failed to decode questions: %w", err)
	}
	return r, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
