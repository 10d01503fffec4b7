package task

import (
	"strings"

	"github.com/mattjoyce/taskd/internal/protocol"
	"github.com/mattjoyce/taskd/internal/textenc"
)

// Parse validates req and returns the matching Operation. Every failure is
// a VALIDATION_ERROR. req is read, never modified.
func Parse(req *protocol.TaskRequest) (Operation, error) {
	if req == nil {
		return nil, invalid("request is nil")
	}
	if req.ID == "" {
		return nil, invalid("id is required")
	}
	if req.Action == "" {
		return nil, invalid("action is required")
	}
	if !req.Action.Valid() {
		return nil, invalid("unsupported action %q", string(req.Action))
	}

	if req.Action.IsFile() {
		if err := checkFileRequest(req); err != nil {
			return nil, err
		}
	}

	switch req.Action {
	case protocol.ActionFileCreate:
		op := FileCreate{Path: req.Path}
		if req.Content != nil {
			content, err := resolveContent(req.Content)
			if err != nil {
				return nil, err
			}
			op.Content = &content
		}
		return op, nil

	case protocol.ActionFileEdit:
		if req.Content == nil {
			return nil, invalid("content is required for %s", req.Action)
		}
		content, err := resolveContent(req.Content)
		if err != nil {
			return nil, err
		}
		return FileEdit{Path: req.Path, Content: content}, nil

	case protocol.ActionFileDelete:
		if req.Content != nil {
			return nil, invalid("content is not allowed for %s", req.Action)
		}
		return FileDelete{Path: req.Path}, nil

	case protocol.ActionCommandRun:
		return parseCommandRun(req)
	}

	return nil, invalid("unsupported action %q", string(req.Action))
}

func checkFileRequest(req *protocol.TaskRequest) error {
	if strings.TrimSpace(req.Path) == "" {
		return invalid("path is required for %s", req.Action)
	}
	if strings.ContainsRune(req.Path, 0) {
		return invalid("path contains a NUL byte")
	}
	if req.Command != "" {
		return invalid("command is not allowed for %s", req.Action)
	}
	if req.Arguments != nil {
		return invalid("arguments are not allowed for %s", req.Action)
	}
	if req.Environment != nil {
		return invalid("environment is not allowed for %s", req.Action)
	}
	return nil
}

func parseCommandRun(req *protocol.TaskRequest) (Operation, error) {
	if strings.TrimSpace(req.Command) == "" {
		return nil, invalid("command is required for %s", req.Action)
	}
	if strings.ContainsRune(req.Command, 0) || strings.ContainsRune(req.Path, 0) {
		return nil, invalid("command and path must not contain NUL bytes")
	}
	if req.Content != nil {
		return nil, invalid("content is not allowed for %s", req.Action)
	}

	args := make([]string, len(req.Arguments))
	for i, arg := range req.Arguments {
		if strings.ContainsRune(arg, 0) {
			return nil, invalid("arguments[%d] contains a NUL byte", i)
		}
		args[i] = arg
	}

	env := make(map[string]string, len(req.Environment))
	for name, value := range req.Environment {
		if name == "" || strings.ContainsAny(name, "=\x00") {
			return nil, invalid("invalid environment variable name %q", name)
		}
		if strings.ContainsRune(value, 0) {
			return nil, invalid("environment[%q] contains a NUL byte", name)
		}
		env[name] = value
	}

	return CommandRun{
		Command:     req.Command,
		Dir:         req.Path,
		Arguments:   args,
		Environment: env,
	}, nil
}

func resolveContent(c *protocol.Content) (Content, error) {
	if strings.TrimSpace(c.Encoding) == "" {
		return Content{}, invalid("content.encoding is required")
	}
	codec, err := textenc.Lookup(c.Encoding)
	if err != nil {
		return Content{}, protocol.Wrap(protocol.TypeValidation, err, "content.encoding")
	}
	return Content{Codec: codec, Value: c.Value}, nil
}

func invalid(format string, args ...any) error {
	return protocol.Errorf(protocol.TypeValidation, format, args...)
}
