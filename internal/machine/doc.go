// Package machine implements the tagvm abstract-machine memory core.
//
// The machine owns guest memory, the call stack, and the shims the
// foreign-function layer builds on.
//
// ARCHITECTURE:
//
// Memory Model:
// Guest memory is an arena of allocations. Every pointer carries a Tag;
// an access is valid only while its tag is live in the addressed
// allocation. Freeing an allocation revokes all of its tags.
//
// Access Flow:
// 1. The dispatch layer resolves a Place (pointer + layout)
// 2. MplaceField / LocalPlace project sub-places from layout metadata
// 3. ReadScalar / WriteScalar touch memory
// 4. VisitFreezeSensitive partitions a place into frozen and
// interior-mutable regions without reading memory
// 5. The OS string bridge converts guest strings at the host boundary
//
// ERRORS:
//
// Guest-triggerable conditions return *MachineError. Internal invariant
// violations (call arity mismatch, visitor order) panic with *Bug.
//
// The machine is single-threaded; a Machine must not be shared between
// goroutines.
package machine
