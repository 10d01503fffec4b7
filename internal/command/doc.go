// Package command implements the command/run operation.
//
// A command is spawned directly (no shell), with arguments passed verbatim,
// in its own process group. Success is exit code 0 and nothing else; the
// content of stdout/stderr is captured but never interpreted.
//
// Termination handling:
//   - the caller's context carries the deadline and the cancellation signal
//   - a configured default timeout applies when tighter than the caller's
//   - on expiry the whole process group gets SIGTERM, then SIGKILL after the
//     grace period if it is still alive
//   - Run only returns once the child has been reaped
//
// Error mapping:
//   - unresolvable command or missing working directory → NOT_FOUND_ERROR
//   - not executable / access denied → PERMISSION_ERROR
//   - non-zero exit or death by an unexpected signal → COMMAND_FAILED_ERROR
//   - deadline → TIMEOUT_ERROR, cancellation → CANCELLED_ERROR
package command
