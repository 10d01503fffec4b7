// Package dispatch validates task requests, routes them to the file and
// command handlers, and normalizes every outcome into exactly one response.
//
// Each request moves through a fixed lifecycle:
//
//	RECEIVED -> VALIDATED -> EXECUTING -> COMPLETED
//	    |            |            |
//	    +------------+------------+--> FAILED
//
// Observers see every transition. The journal and logs hang off this hook;
// neither is consulted when executing a task.
//
// Error handling:
//   - Malformed JSON or a request that fails validation never reaches a handler
//   - Handler errors keep their type (NOT_FOUND_ERROR, TIMEOUT_ERROR, ...)
//   - Untyped errors and panics become INTERNAL_ERROR; the dispatcher keeps serving
//
// Cancellation:
//   - Every in-flight request is registered by id; Cancel(id) withdraws it
//   - Command runs honour the context deadline; file operations only honour cancellation
//
// No retries happen here. Retry policy belongs to the caller.
package dispatch
