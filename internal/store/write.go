package store

import (
	"context"
	"fmt"

	"github.com/roach88/scriptdelta/internal/ir"
)

// WriteChange appends a change event to scriptID's history.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
func (s *Store) WriteChange(ctx context.Context, scriptID string, e ir.ChangeEvent) error {
	payload, err := marshalPayload(e)
	if err != nil {
		return fmt.Errorf("write change: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO change_events
		(id, script_id, kind, timestamp, actor_id, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		e.ID,
		scriptID,
		string(e.Kind),
		formatTime(e.Timestamp),
		e.ActorID,
		payload,
	)
	if err != nil {
		return fmt.Errorf("write change: %w", err)
	}
	return nil
}

// WriteReport appends an analysis report produced with strategy.
// Duplicate report IDs are silently ignored.
func (s *Store) WriteReport(ctx context.Context, scriptID, strategy string, r *ir.Report) error {
	if r == nil {
		return fmt.Errorf("write report: nil report")
	}
	payload, err := marshalPayload(r)
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reports
		(id, script_id, strategy, timestamp, total_issues, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		r.ID,
		scriptID,
		strategy,
		formatTime(r.Timestamp),
		r.Summary.TotalIssues,
		payload,
	)
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// WriteDiff appends a diff report. Diff IDs need not be unique.
func (s *Store) WriteDiff(ctx context.Context, scriptID string, d *ir.DiffReport) error {
	if d == nil {
		return fmt.Errorf("write diff: nil report")
	}
	payload, err := marshalPayload(d)
	if err != nil {
		return fmt.Errorf("write diff: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO diff_reports
		(id, script_id, timestamp, total_changes, improvements, degradations, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		d.ID,
		scriptID,
		formatTime(d.Timestamp),
		d.Summary.TotalChanges,
		d.Summary.Improvements,
		d.Summary.Degradations,
		payload,
	)
	if err != nil {
		return fmt.Errorf("write diff: %w", err)
	}
	return nil
}
