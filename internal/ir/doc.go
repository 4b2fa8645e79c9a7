// Package ir provides the static type and target metadata consumed by the
// machine: type layouts, target platform descriptions, and function bodies.
//
// This package contains metadata only. All other internal packages import
// ir; ir imports nothing internal. Layouts are immutable once defined in a
// Registry, and the machine never mutates them.
//
// Key design constraints:
//   - Field placement is a closed sum (Array, Arbitrary, Union)
//   - Variant schemes are a closed sum (Single, Multiple)
//   - Freeze-ness is computed statically at construction time
//   - Layout identity is content-addressed (LayoutHash) so redefinitions can
//     be detected deterministically
package ir
