package output

import (
	"encoding/json"
	"io"
)

// JSONWriter writes values as indented JSON documents.
type JSONWriter struct {
	enc *json.Encoder
}

// NewJSONWriter creates a JSON writer. indent of "" writes compact JSON.
func NewJSONWriter(w io.Writer, indent string) *JSONWriter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return &JSONWriter{enc: enc}
}

// Write encodes v followed by a newline.
func (jw *JSONWriter) Write(v any) error {
	return jw.enc.Encode(v)
}
