package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
)

// ReadHeader extracts the id and action of a raw request when they are
// present as JSON strings. It never fails: unreadable fields come back empty,
// which lets callers correlate a response even for malformed input.
func ReadHeader(data []byte) (string, Action) {
	var header struct {
		ID     json.RawMessage `json:"id"`
		Action json.RawMessage `json:"action"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return "", ""
	}
	var id, action string
	_ = json.Unmarshal(header.ID, &id)
	_ = json.Unmarshal(header.Action, &action)
	return id, Action(action)
}

// DecodeRequest parses a raw JSON request strictly: unknown fields and
// wrongly typed values are rejected with a VALIDATION_ERROR. The returned
// request is never nil; on failure it still carries whatever id and action
// could be read so the caller can build a correlated response.
func DecodeRequest(data []byte) (*TaskRequest, error) {
	req := &TaskRequest{}
	req.ID, req.Action = ReadHeader(data)

	if len(bytes.TrimSpace(data)) == 0 {
		return req, Errorf(TypeValidation, "request is empty")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return req, Wrap(TypeValidation, err, "request is not a JSON object")
	}
	if fields == nil {
		return req, Errorf(TypeValidation, "request is not a JSON object")
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		raw := fields[key]
		var err error
		switch key {
		case "id":
			err = decodeString(raw, key, &req.ID)
		case "action":
			var action string
			err = decodeString(raw, key, &action)
			req.Action = Action(action)
		case "path":
			err = decodeString(raw, key, &req.Path)
		case "command":
			err = decodeString(raw, key, &req.Command)
		case "arguments":
			req.Arguments, err = decodeArguments(raw)
		case "content":
			req.Content, err = decodeContent(raw)
		case "environment":
			req.Environment, err = decodeEnvironment(raw)
		default:
			err = Errorf(TypeValidation, "unknown field %q", key)
		}
		if err != nil {
			return req, err
		}
	}

	return req, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func decodeString(raw json.RawMessage, name string, dst *string) error {
	if isNull(raw) {
		*dst = ""
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return Errorf(TypeValidation, "field %q must be a string", name)
	}
	return nil
}

func decodeArguments(raw json.RawMessage) ([]string, error) {
	if isNull(raw) {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, Errorf(TypeValidation, `field "arguments" must be an array of strings`)
	}
	args := make([]string, 0, len(items))
	for i, item := range items {
		var s string
		if isNull(item) || json.Unmarshal(item, &s) != nil {
			return nil, Errorf(TypeValidation, "arguments[%d] must be a string", i)
		}
		args = append(args, s)
	}
	return args, nil
}

func decodeContent(raw json.RawMessage) (*Content, error) {
	if isNull(raw) {
		return nil, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, Errorf(TypeValidation, `field "content" must be an object`)
	}

	content := &Content{}
	for key, value := range fields {
		switch key {
		case "encoding", "value":
		default:
			return nil, Errorf(TypeValidation, "unknown field %q", "content."+key)
		}
		if isNull(value) {
			return nil, Errorf(TypeValidation, "content.%s must be a string", key)
		}
	}
	for _, key := range []string{"encoding", "value"} {
		value, ok := fields[key]
		if !ok {
			return nil, Errorf(TypeValidation, "content.%s is required", key)
		}
		dst := &content.Encoding
		if key == "value" {
			dst = &content.Value
		}
		if err := json.Unmarshal(value, dst); err != nil {
			return nil, Errorf(TypeValidation, "content.%s must be a string", key)
		}
	}
	return content, nil
}

// decodeEnvironment accepts strings verbatim and coerces JSON numbers and
// booleans to their literal text. Null, arrays and objects are rejected.
func decodeEnvironment(raw json.RawMessage) (map[string]string, error) {
	if isNull(raw) {
		return nil, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, Errorf(TypeValidation, `field "environment" must be an object`)
	}

	env := make(map[string]string, len(fields))
	for name, value := range fields {
		s, err := coerceEnvValue(value)
		if err != nil {
			return nil, Wrap(TypeValidation, err, "environment[%q]", name)
		}
		env[name] = s
	}
	return env, nil
}

func coerceEnvValue(raw json.RawMessage) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return "", err
	}
	switch v := v.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case bool:
		return strconv.FormatBool(v), nil
	case nil:
		return "", fmt.Errorf("null is not a valid environment value")
	default:
		return "", fmt.Errorf("value must be a string, number or boolean, got %T", v)
	}
}

// EncodeResponse writes resp as a single line of JSON. It refuses responses
// that break the success/error invariant.
func EncodeResponse(w io.Writer, resp *TaskResponse) error {
	if err := checkResponse(resp); err != nil {
		return err
	}

	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(resp); err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	return nil
}

// DecodeResponse reads and deserializes a TaskResponse from r.
func DecodeResponse(r io.Reader) (*TaskResponse, error) {
	var resp TaskResponse

	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if err := checkResponse(&resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func checkResponse(resp *TaskResponse) error {
	if resp == nil {
		return fmt.Errorf("response is nil")
	}
	if resp.Success && resp.Error != nil {
		return fmt.Errorf("response has success=true and an error")
	}
	if !resp.Success {
		if resp.Error == nil {
			return fmt.Errorf("response has success=false but no error")
		}
		if !resp.Error.Type.Valid() {
			return fmt.Errorf("invalid error type: %q", resp.Error.Type)
		}
	}
	return nil
}
