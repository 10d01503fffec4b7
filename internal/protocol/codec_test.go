package protocol

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRequest(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
		checkFn func(t *testing.T, req *TaskRequest)
	}{
		{
			name:  "file create with content",
			input: `{"id":"t1","action":"file/create","path":"/tmp/a.txt","content":{"encoding":"utf-8","value":"hi"}}`,
			checkFn: func(t *testing.T, req *TaskRequest) {
				assert.Equal(t, "t1", req.ID)
				assert.Equal(t, ActionFileCreate, req.Action)
				assert.Equal(t, "/tmp/a.txt", req.Path)
				require.NotNil(t, req.Content)
				assert.Equal(t, "utf-8", req.Content.Encoding)
				assert.Equal(t, "hi", req.Content.Value)
			},
		},
		{
			name:  "command run keeps argument order",
			input: `{"id":"t2","action":"command/run","command":"git","arguments":["commit","-m","a b; rm -rf /"],"path":"/repo"}`,
			checkFn: func(t *testing.T, req *TaskRequest) {
				assert.Equal(t, []string{"commit", "-m", "a b; rm -rf /"}, req.Arguments)
				assert.Equal(t, "git", req.Command)
			},
		},
		{
			name:  "null optional fields are absent",
			input: `{"id":"t3","action":"file/delete","path":"/x","content":null,"arguments":null,"environment":null}`,
			checkFn: func(t *testing.T, req *TaskRequest) {
				assert.Nil(t, req.Content)
				assert.Nil(t, req.Arguments)
				assert.Nil(t, req.Environment)
			},
		},
		{name: "empty input", input: "   ", wantErr: "request is empty"},
		{name: "not an object", input: `[1,2]`, wantErr: "not a JSON object"},
		{name: "json null", input: `null`, wantErr: "not a JSON object"},
		{name: "unknown field", input: `{"id":"t","action":"file/delete","path":"/x","force":true}`, wantErr: `unknown field "force"`},
		{name: "id not a string", input: `{"id":7,"action":"file/delete"}`, wantErr: `field "id" must be a string`},
		{name: "argument not a string", input: `{"id":"t","action":"command/run","command":"ls","arguments":["-l",3]}`, wantErr: "arguments[1] must be a string"},
		{name: "null argument", input: `{"id":"t","action":"command/run","command":"ls","arguments":[null]}`, wantErr: "arguments[0] must be a string"},
		{name: "content missing value", input: `{"id":"t","action":"file/create","path":"/x","content":{"encoding":"utf-8"}}`, wantErr: "content.value is required"},
		{name: "content missing encoding", input: `{"id":"t","action":"file/create","path":"/x","content":{"value":"v"}}`, wantErr: "content.encoding is required"},
		{name: "content unknown field", input: `{"id":"t","action":"file/create","path":"/x","content":{"encoding":"utf-8","value":"v","mode":"0644"}}`, wantErr: `unknown field "content.mode"`},
		{name: "content not object", input: `{"id":"t","action":"file/create","path":"/x","content":"hello"}`, wantErr: `field "content" must be an object`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := DecodeRequest([]byte(tt.input))
			require.NotNil(t, req)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, TypeValidation, TypeOf(err))
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			if tt.checkFn != nil {
				tt.checkFn(t, req)
			}
		})
	}
}

func TestDecodeRequestEchoesHeaderOnFailure(t *testing.T) {
	req, err := DecodeRequest([]byte(`{"id":"abc","action":"file/create","bogus":1}`))
	require.Error(t, err)
	assert.Equal(t, "abc", req.ID)
	assert.Equal(t, ActionFileCreate, req.Action)

	req, err = DecodeRequest([]byte(`{"id":"abc", broken`))
	require.Error(t, err)
	assert.Equal(t, "", req.ID)
}

func TestDecodeRequestEnvironmentCoercion(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		want    map[string]string
		wantErr bool
	}{
		{name: "string", env: `{"HOME":"/root"}`, want: map[string]string{"HOME": "/root"}},
		{name: "integer keeps literal", env: `{"PORT":5000}`, want: map[string]string{"PORT": "5000"}},
		{name: "float keeps literal", env: `{"RATIO":1.50}`, want: map[string]string{"RATIO": "1.50"}},
		{name: "boolean", env: `{"DEBUG":true,"QUIET":false}`, want: map[string]string{"DEBUG": "true", "QUIET": "false"}},
		{name: "null rejected", env: `{"X":null}`, wantErr: true},
		{name: "array rejected", env: `{"X":["a"]}`, wantErr: true},
		{name: "object rejected", env: `{"X":{"a":1}}`, wantErr: true},
		{name: "environment not an object", env: `"PORT=1"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := `{"id":"e","action":"command/run","command":"env","environment":` + tt.env + `}`
			req, err := DecodeRequest([]byte(input))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsType(err, TypeValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, req.Environment)
		})
	}
}

func TestReadHeader(t *testing.T) {
	id, action := ReadHeader([]byte(`{"id":"x1","action":"command/run"}`))
	assert.Equal(t, "x1", id)
	assert.Equal(t, ActionCommandRun, action)

	id, action = ReadHeader([]byte(`{"id":12,"action":["file/edit"]}`))
	assert.Empty(t, id)
	assert.Empty(t, action)

	id, action = ReadHeader([]byte(`not json`))
	assert.Empty(t, id)
	assert.Empty(t, action)
}

func TestEncodeResponse(t *testing.T) {
	tests := []struct {
		name    string
		resp    *TaskResponse
		want    string
		wantErr bool
	}{
		{
			name: "success omits error",
			resp: NewSuccess("t1", ActionFileCreate),
			want: `{"id":"t1","action":"file/create","success":true}` + "\n",
		},
		{
			name: "failure carries typed error",
			resp: NewFailure("t2", ActionCommandRun, Errorf(TypeNotFound, "command %q not found", "nope")),
			want: `{"id":"t2","action":"command/run","success":false,"error":{"type":"NOT_FOUND_ERROR","message":"command \"nope\" not found"}}` + "\n",
		},
		{name: "nil response", resp: nil, wantErr: true},
		{name: "success with error", resp: &TaskResponse{ID: "x", Success: true, Error: &ErrorInfo{Type: TypeIO}}, wantErr: true},
		{name: "failure without error", resp: &TaskResponse{ID: "x"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := EncodeResponse(&buf, tt.resp)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestDecodeResponse(t *testing.T) {
	resp, err := DecodeResponse(strings.NewReader(`{"id":"t","action":"file/edit","success":false,"error":{"type":"IO_ERROR","message":"disk full"}}`))
	require.NoError(t, err)
	assert.Equal(t, TypeIO, resp.Error.Type)

	_, err = DecodeResponse(strings.NewReader(`{"id":"t","action":"file/edit","success":false,"error":{"type":"WHATEVER","message":"x"}}`))
	assert.Error(t, err)

	_, err = DecodeResponse(strings.NewReader(`{"id":"t","action":"file/edit","success":true,"extra":1}`))
	assert.Error(t, err)
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, ErrorType(""), TypeOf(nil))
	assert.Equal(t, TypeInternal, TypeOf(errors.New("boom")))
	assert.Equal(t, TypePermission, TypeOf(Errorf(TypePermission, "denied")))

	wrapped := Wrap(TypeIO, errors.New("no space left on device"), "write %s", "/tmp/x")
	assert.Equal(t, "write /tmp/x: no space left on device", wrapped.Error())
	assert.Equal(t, TypeIO, TypeOf(wrapped))

	// A typed error further down the chain still classifies.
	outer := errors.Join(errors.New("context"), Errorf(TypeTimeout, "deadline"))
	assert.Equal(t, TypeTimeout, TypeOf(outer))

	assert.Equal(t, TypeInternal, TypeOf(&Error{Type: "BOGUS", Message: "x"}))
}

func TestNewFailureUntypedIsInternal(t *testing.T) {
	resp := NewFailure("t", ActionFileDelete, errors.New("unexpected"))
	require.NotNil(t, resp.Error)
	assert.Equal(t, TypeInternal, resp.Error.Type)
	assert.False(t, resp.Success)
}

func TestActionValid(t *testing.T) {
	for _, a := range Actions() {
		assert.True(t, a.Valid(), a)
	}
	assert.False(t, Action("file/move").Valid())
	assert.False(t, Action("").Valid())
	assert.True(t, ActionFileEdit.IsFile())
	assert.False(t, ActionCommandRun.IsFile())
}
