// Package routine runs named background tasks and is the process-wide net
// for their failures.
//
// A task that returns an error or panics is an unhandled failure: the
// Manager logs it with the task name, the error type and the message, then
// calls the OnUnhandled hook exactly as often as failures occur. The hook
// decides the policy (usually: shut down and exit 1).
package routine
