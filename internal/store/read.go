package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/scriptdelta/internal/ir"
)

// ReportRecord is the indexed metadata of a stored report.
type ReportRecord struct {
	Seq         int64     `json:"seq"`
	ID          string    `json:"id"`
	ScriptID    string    `json:"script_id"`
	Strategy    string    `json:"strategy"`
	Timestamp   time.Time `json:"timestamp"`
	TotalIssues int       `json:"total_issues"`
}

// ReadChanges returns the most recent limit change events of scriptID in
// insertion order. A limit <= 0 returns every event.
//
// Returns an empty slice (not nil) if no events exist.
func (s *Store) ReadChanges(ctx context.Context, scriptID string, limit int) ([]ir.ChangeEvent, error) {
	// The inner query picks the newest rows; the outer restores seq order.
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM (
			SELECT seq, payload FROM change_events
			WHERE script_id = ?
			ORDER BY seq DESC
			LIMIT ?
		)
		ORDER BY seq ASC
	`, scriptID, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query changes: %w", err)
	}
	defer rows.Close()

	events := []ir.ChangeEvent{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan change: %w", err)
		}
		var e ir.ChangeEvent
		if err := unmarshalPayload(payload, &e); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate changes: %w", err)
	}
	return events, nil
}

// LatestReport returns the most recently written report of scriptID.
// Returns (nil, false, nil) if none exists.
func (s *Store) LatestReport(ctx context.Context, scriptID string) (*ir.Report, bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `
		SELECT payload FROM reports
		WHERE script_id = ?
		ORDER BY seq DESC
		LIMIT 1
	`, scriptID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query latest report: %w", err)
	}

	var r ir.Report
	if err := unmarshalPayload(payload, &r); err != nil {
		return nil, false, err
	}
	return &r, true, nil
}

// ListReports returns the metadata of every report of scriptID in insertion
// order.
func (s *Store) ListReports(ctx context.Context, scriptID string) ([]ReportRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, script_id, strategy, timestamp, total_issues
		FROM reports
		WHERE script_id = ?
		ORDER BY seq ASC
	`, scriptID)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	records := []ReportRecord{}
	for rows.Next() {
		var rec ReportRecord
		var ts string
		if err := rows.Scan(&rec.Seq, &rec.ID, &rec.ScriptID, &rec.Strategy, &ts, &rec.TotalIssues); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		if rec.Timestamp, err = parseTime(ts); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return records, nil
}

// ReadDiffs returns the most recent limit diff reports of scriptID in
// insertion order. A limit <= 0 returns every report.
func (s *Store) ReadDiffs(ctx context.Context, scriptID string, limit int) ([]ir.DiffReport, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM (
			SELECT seq, payload FROM diff_reports
			WHERE script_id = ?
			ORDER BY seq DESC
			LIMIT ?
		)
		ORDER BY seq ASC
	`, scriptID, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query diffs: %w", err)
	}
	defer rows.Close()

	diffs := []ir.DiffReport{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan diff: %w", err)
		}
		var d ir.DiffReport
		if err := unmarshalPayload(payload, &d); err != nil {
			return nil, err
		}
		diffs = append(diffs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate diffs: %w", err)
	}
	return diffs, nil
}

// sqlLimit maps a non-positive limit to SQLite's "no limit".
func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
