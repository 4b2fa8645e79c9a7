package store

import (
	"context"
	"log/slog"

	"github.com/roach88/tagvm/internal/machine"
)

// Sink adapts a Store to machine.DiagnosticSink. Record cannot return an
// error, so write failures are logged and counted.
type Sink struct {
	store  *Store
	ctx    context.Context
	failed int
}

// NewSink returns a sink writing through s. The run must already be
// recorded with WriteRun.
func NewSink(ctx context.Context, s *Store) *Sink {
	return &Sink{store: s, ctx: ctx}
}

// Record implements machine.DiagnosticSink.
func (k *Sink) Record(d machine.Diagnostic) {
	if err := k.store.WriteDiagnostic(k.ctx, d); err != nil {
		k.failed++
		slog.Error("diagnostic write failed",
			"run_id", d.RunID,
			"seq", d.Seq,
			"code", string(d.Code),
			"error", err)
	}
}

// Failed returns the number of diagnostics that could not be written.
func (k *Sink) Failed() int { return k.failed }

var _ machine.DiagnosticSink = (*Sink)(nil)
