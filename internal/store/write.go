package store

import (
	"context"
	"fmt"

	"github.com/roach88/tagvm/internal/ir"
	"github.com/roach88/tagvm/internal/machine"
)

// Run describes one machine instance.
type Run struct {
	ID         string `json:"id"`
	Target     string `json:"target"`
	Host       string `json:"host"`
	Isolation  bool   `json:"isolation"`
	Seed       uint64 `json:"seed"`
	StartedSeq int64  `json:"started_seq"`
}

// WriteRun inserts a run record. Duplicate IDs are silently ignored.
func (s *Store) WriteRun(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, target, host, isolation, seed, started_seq)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Target,
		run.Host,
		run.Isolation,
		int64(run.Seed),
		run.StartedSeq,
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

// WriteDiagnostic inserts a diagnostic record. Uses ON CONFLICT DO NOTHING
// on (run_id, seq) so replays are idempotent.
//
// Note: The run referenced by RunID must exist (foreign key constraint).
func (s *Store) WriteDiagnostic(ctx context.Context, d machine.Diagnostic) error {
	details, err := marshalDetails(d.Details)
	if err != nil {
		return fmt.Errorf("write diagnostic: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO diagnostics (run_id, seq, code, op, message, fatal, details)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`,
		d.RunID,
		d.Seq,
		string(d.Code),
		d.Op,
		d.Message,
		d.Fatal,
		details,
	)
	if err != nil {
		return fmt.Errorf("write diagnostic: %w", err)
	}
	return nil
}

// marshalDetails converts details to canonical JSON TEXT for storage.
func marshalDetails(details map[string]string) (string, error) {
	obj := make(map[string]any, len(details))
	for k, v := range details {
		obj[k] = v
	}
	data, err := ir.MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("marshal details: %w", err)
	}
	return string(data), nil
}
