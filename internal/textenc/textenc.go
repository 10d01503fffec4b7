// Package textenc turns a task's textual content into the bytes written to
// disk. UTF-8 is the baseline; base64 carries binary payloads and any IANA
// charset known to golang.org/x/text is available by name.
package textenc

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
)

// ErrUnsupported is returned by Lookup for names with no usable codec.
var ErrUnsupported = errors.New("unsupported encoding")

// Codec converts a content value into file bytes.
type Codec interface {
	// Name is the lower-cased name the codec was resolved under.
	Name() string
	// Encode returns the bytes for value, or an error when value cannot be
	// represented in (or decoded from) this encoding.
	Encode(value string) ([]byte, error)
}

// Lookup resolves an encoding identifier. Matching is case-insensitive.
func Lookup(name string) (Codec, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	switch normalized {
	case "":
		return nil, fmt.Errorf("%w: empty encoding name", ErrUnsupported)
	case "utf-8", "utf8":
		return utf8Codec{}, nil
	case "base64":
		return base64Codec{}, nil
	}

	enc, err := ianaindex.IANA.Encoding(normalized)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, name)
	}
	return charsetCodec{name: normalized, enc: enc}, nil
}

type utf8Codec struct{}

func (utf8Codec) Name() string { return "utf-8" }

func (utf8Codec) Encode(value string) ([]byte, error) {
	if !utf8.ValidString(value) {
		return nil, fmt.Errorf("value is not valid utf-8")
	}
	return []byte(value), nil
}

type base64Codec struct{}

func (base64Codec) Name() string { return "base64" }

func (base64Codec) Encode(value string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return data, nil
}

type charsetCodec struct {
	name string
	enc  encoding.Encoding
}

func (c charsetCodec) Name() string { return c.name }

// Encode transcodes value into the charset. Characters the charset cannot
// represent are an error rather than a silent replacement.
func (c charsetCodec) Encode(value string) ([]byte, error) {
	if !utf8.ValidString(value) {
		return nil, fmt.Errorf("value is not valid utf-8")
	}
	out, err := c.enc.NewEncoder().String(value)
	if err != nil {
		return nil, fmt.Errorf("encode as %s: %w", c.name, err)
	}
	return []byte(out), nil
}
