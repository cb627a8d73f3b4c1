package github

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// FileContent is the payload of a PushFile call. It is a closed set of
// variants: Text, Binary, and JSONDocument. Each variant normalizes
// itself to the raw bytes committed to the repository; the transport
// encoding is applied by the API library.
type FileContent interface {
	contentBytes() ([]byte, error)
}

// Text is plain text file content.
type Text string

func (t Text) contentBytes() ([]byte, error) {
	return []byte(t), nil
}

// Binary is raw byte file content.
type Binary []byte

func (b Binary) contentBytes() ([]byte, error) {
	return b, nil
}

// JSONDocument is structured content serialized to two-space indented
// JSON before the push.
type JSONDocument map[string]any

func (d JSONDocument) contentBytes() ([]byte, error) {
	const errCtx = "serializing json content"

	raw, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	return raw, nil
}
