// Package osstr models host operating-system strings independently of the
// platform the machine is compiled for.
//
// A Host is a capability value chosen at startup: NarrowHost stores OS
// strings as raw bytes (Unix-like hosts), WideHost stores them as UTF-16
// code units (Windows-like hosts). Conversions into the other encoding are
// validated and fail with *EncodingError instead of substituting U+FFFD.
package osstr
