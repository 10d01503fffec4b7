package task

import (
	"github.com/mattjoyce/taskd/internal/protocol"
	"github.com/mattjoyce/taskd/internal/textenc"
)

// Operation is a validated, action-specific view of a request.
type Operation interface {
	Action() protocol.Action
	operation()
}

// Content is a payload whose encoding has already been resolved.
type Content struct {
	Codec textenc.Codec
	Value string
}

// Bytes renders the payload for writing. Failures are ENCODING_ERROR.
func (c Content) Bytes() ([]byte, error) {
	data, err := c.Codec.Encode(c.Value)
	if err != nil {
		return nil, protocol.Wrap(protocol.TypeEncoding, err, "content is not valid %s", c.Codec.Name())
	}
	return data, nil
}

// FileCreate creates a directory (Content nil) or a new file.
type FileCreate struct {
	Path    string
	Content *Content
}

// FileEdit replaces the contents of an existing file.
type FileEdit struct {
	Path    string
	Content Content
}

// FileDelete removes a file or directory tree.
type FileDelete struct {
	Path string
}

// CommandRun executes a program without a shell.
type CommandRun struct {
	Command     string
	Dir         string
	Arguments   []string
	Environment map[string]string
}

func (FileCreate) Action() protocol.Action { return protocol.ActionFileCreate }
func (FileEdit) Action() protocol.Action   { return protocol.ActionFileEdit }
func (FileDelete) Action() protocol.Action { return protocol.ActionFileDelete }
func (CommandRun) Action() protocol.Action { return protocol.ActionCommandRun }

func (FileCreate) operation() {}
func (FileEdit) operation()   {}
func (FileDelete) operation() {}
func (CommandRun) operation() {}
