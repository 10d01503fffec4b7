// Package fileops implements the file/create, file/edit and file/delete
// operations.
//
// Writes never expose partial content: new files are written to a temporary
// sibling and hard-linked into place, edits are written to a temporary
// sibling and renamed over the target. Both steps rely on the atomicity the
// filesystem already provides for link(2) and rename(2).
//
// Errors are *protocol.Error values classified as PERMISSION_ERROR,
// NOT_FOUND_ERROR, PATH_EXISTS_ERROR, ENCODING_ERROR, IO_ERROR or
// CANCELLED_ERROR.
package fileops
