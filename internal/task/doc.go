// Package task turns a decoded protocol.TaskRequest into a validated
// Operation.
//
// Each action maps to exactly one Operation variant (FileCreate, FileEdit,
// FileDelete, CommandRun). The set is closed: Operation has an unexported
// marker method, so only this package can add variants and the dispatcher's
// type switch covers every one of them.
//
// Validation has no side effects. Runtime facts such as whether a working
// directory exists are left to the handlers.
package task
