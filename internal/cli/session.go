package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/tagvm/internal/config"
	"github.com/roach88/tagvm/internal/ir"
	"github.com/roach88/tagvm/internal/machine"
	"github.com/roach88/tagvm/internal/store"
)

// session is one machine built from configuration. When a diagnostics
// database is configured, the run is recorded and every surfaced error is
// written through a store sink.
type session struct {
	m    *machine.Machine
	st   *store.Store
	sink *store.Sink
}

func newSession(ctx context.Context, cfg config.Config, target *ir.Target, types *ir.Registry) (*session, error) {
	opts, err := cfg.MachineOptions()
	if err != nil {
		return nil, err
	}

	s := &session{}
	if cfg.DiagnosticsDB != "" {
		s.st, err = store.Open(cfg.DiagnosticsDB)
		if err != nil {
			return nil, fmt.Errorf("open diagnostics database: %w", err)
		}
		s.sink = store.NewSink(ctx, s.st)
		opts = append(opts, machine.WithDiagnostics(s.sink))
	}

	s.m, err = machine.New(*target, types, opts...)
	if err != nil {
		s.Close()
		return nil, err
	}

	if s.st != nil {
		runs, err := s.st.ListRuns(ctx)
		if err != nil {
			s.Close()
			return nil, err
		}
		err = s.st.WriteRun(ctx, store.Run{
			ID:         s.m.RunID(),
			Target:     target.Name,
			Host:       s.m.Host().Name(),
			Isolation:  s.m.Isolated(),
			Seed:       cfg.Seed,
			StartedSeq: int64(len(runs)) + 1,
		})
		if err != nil {
			s.Close()
			return nil, err
		}
		slog.Debug("recording diagnostics", "db", cfg.DiagnosticsDB, "run_id", s.m.RunID())
	}
	return s, nil
}

// Close releases the diagnostics database, if any.
func (s *session) Close() {
	if s.st == nil {
		return
	}
	if n := s.sink.Failed(); n > 0 {
		slog.Warn("diagnostics not recorded", "failed", n)
	}
	if err := s.st.Close(); err != nil {
		slog.Error("close diagnostics database", "error", err)
	}
}
