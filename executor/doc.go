// Package executor dispatches validated scripts to an execution backend.
//
// Three backends implement the same Backend contract: a remote sandboxed
// session service, a local interpreter process, and a deterministic mock.
// The backend is a closed tagged choice (KindMock, KindLocal, KindRemote)
// resolved once at startup by New; the agent loop never inspects which
// variant it holds.
//
// Every backend consults the script validator before doing anything. An
// invalid script produces a failed Result with the validation verdict
// attached and causes zero backend I/O.
package executor
