// Package validator decides whether a model-generated pipeline script may
// run at all. Validation is total, deterministic, and side-effect-free:
// the same script always yields the same Result, and no I/O is performed.
//
// Detection is lexical, not semantic. A sufficiently obfuscated script can
// evade the blocklist; that is an accepted design limitation of this layer,
// not a bug. The execution backends are expected to provide the actual
// isolation.
package validator
