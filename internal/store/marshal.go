package store

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
)

// marshalFields converts a record's fields to JSON TEXT for storage.
// Map keys are emitted in sorted order, so equal records serialize equally.
func marshalFields(fields map[string]any) (string, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("marshal fields: %w", err)
	}
	return string(data), nil
}

// unmarshalFields parses JSON TEXT into a field map. Numbers are kept as
// json.Number so int64 timestamps survive without float64 precision loss.
func unmarshalFields(data string) (map[string]any, error) {
	fields := make(map[string]any)
	if data == "" || data == "{}" {
		return fields, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("unmarshal fields: %w", err)
	}
	return fields, nil
}
