package machine

import "sync"

// Diagnostic is one recorded machine error.
type Diagnostic struct {
	RunID   string
	Seq     int64
	Code    ErrorCode
	Op      string
	Message string
	Fatal   bool
	Details map[string]string
}

// DiagnosticSink receives diagnostics as the machine surfaces errors.
type DiagnosticSink interface {
	Record(d Diagnostic)
}

// MemorySink collects diagnostics in memory.
type MemorySink struct {
	mu      sync.Mutex
	entries []Diagnostic
}

// Record appends d.
func (s *MemorySink) Record(d Diagnostic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, d)
}

// Entries returns a copy of the recorded diagnostics in order.
func (s *MemorySink) Entries() []Diagnostic {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Diagnostic, len(s.entries))
	copy(out, s.entries)
	return out
}
