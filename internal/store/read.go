package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/tagvm/internal/machine"
)

// ListRuns returns every run ordered by start sequence, then id.
//
// Returns an empty slice (not nil) if the store holds no runs.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, target, host, isolation, seed, started_seq
		FROM runs
		ORDER BY started_seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var (
			r    Run
			seed int64
		)
		if err := rows.Scan(&r.ID, &r.Target, &r.Host, &r.Isolation, &seed, &r.StartedSeq); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Seed = uint64(seed)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadDiagnostics returns the diagnostics of one run in sequence order.
//
// Returns an empty slice (not nil) if the run recorded nothing.
func (s *Store) ReadDiagnostics(ctx context.Context, runID string) ([]machine.Diagnostic, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seq, code, op, message, fatal, details
		FROM diagnostics
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query diagnostics: %w", err)
	}
	defer rows.Close()

	diags := []machine.Diagnostic{}
	for rows.Next() {
		var (
			d       machine.Diagnostic
			code    string
			details string
		)
		if err := rows.Scan(&d.RunID, &d.Seq, &code, &d.Op, &d.Message, &d.Fatal, &details); err != nil {
			return nil, fmt.Errorf("scan diagnostic: %w", err)
		}
		d.Code = machine.ErrorCode(code)
		if d.Details, err = unmarshalDetails(details); err != nil {
			return nil, err
		}
		diags = append(diags, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate diagnostics: %w", err)
	}
	return diags, nil
}

// unmarshalDetails parses canonical JSON TEXT. An empty object yields nil
// so round trips of diagnostics without details compare equal.
func unmarshalDetails(data string) (map[string]string, error) {
	if data == "" || data == "{}" {
		return nil, nil
	}
	var details map[string]string
	if err := json.Unmarshal([]byte(data), &details); err != nil {
		return nil, fmt.Errorf("unmarshal details: %w", err)
	}
	return details, nil
}
