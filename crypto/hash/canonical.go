package hash

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// CanonicalJSON returns a deterministic JSON encoding of v: object keys sorted
// lexicographically at every depth, no insignificant whitespace, no HTML
// escaping and numbers kept as written by the first encoding pass.
func CanonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical json: %w", err)
	}
	// Round trip through interface values: encoding/json writes map keys
	// sorted, which is what makes the output canonical.
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("canonical json: %w", err)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(generic); err != nil {
		return nil, fmt.Errorf("canonical json: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// SumJSON returns H(CanonicalJSON(v)).
func SumJSON(v any) (Digest, error) {
	data, err := CanonicalJSON(v)
	if err != nil {
		return Digest{}, err
	}
	return Sum(data), nil
}
