// Package harness runs machine conformance scenarios.
//
// A scenario names a built-in target and a host string model, declares
// some types, and lists steps that drive the machine through the
// freeze-sensitive visitor and the OS string/path bridge. Each step yields
// one trace event; machine errors are recorded in the event rather than
// aborting the run.
//
// # Scenario Format
//
//	name: linux_narrow
//	description: "What this scenario validates"
//	target: x86_64-linux
//	host: narrow
//	types:
//	  - {name: counter, kind: cell, inner: u32}
//	steps:
//	  - {kind: regions, type: counter}
//	  - {kind: c_str_roundtrip, value: hello, capacity: 16}
//	  - {kind: path_to_target, value: usr/lib/libc.so}
//	assertions:
//	  - {type: trace_count, kind: regions, count: 1}
//
// # Step Kinds
//
//   - regions: visit a fresh value of the type and list its regions
//   - c_str_roundtrip: write a NUL-terminated byte string and read it back
//   - wide_str_roundtrip: write a NUL-terminated u16 string and read it back
//   - path_to_target: write a host path in the target's encoding
//   - path_to_host: place a guest path and read it as a host path
//
// # Deterministic Testing
//
// Every scenario runs under a fixed run id with a fresh in-memory
// diagnostics store, and the host model is named explicitly, so traces are
// byte-identical across runs and platforms. RunWithGolden compares the
// canonical JSON of a trace with testdata/golden/<name>.golden.
package harness
