package store

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/roach88/rpcsim/internal/canon"
)

// marshalArgs converts call arguments to canonical JSON TEXT.
func marshalArgs(args []any) (string, error) {
	if args == nil {
		args = []any{}
	}
	data, err := canon.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("marshal args: %w", err)
	}
	return string(data), nil
}

// marshalResult converts a step result to canonical JSON TEXT.
// A nil result is stored as SQL NULL.
func marshalResult(result any) (sql.NullString, error) {
	if result == nil {
		return sql.NullString{}, nil
	}
	data, err := canon.Marshal(result)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal result: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// marshalErrors stores failure messages as a canonical JSON array.
func marshalErrors(errs []string) (string, error) {
	list := make([]any, len(errs))
	for i, e := range errs {
		list[i] = e
	}
	data, err := canon.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("marshal errors: %w", err)
	}
	return string(data), nil
}

// unmarshalArgs parses canonical JSON TEXT back to arguments. Numbers
// decode as int64.
func unmarshalArgs(data string) ([]any, error) {
	if data == "" || data == "[]" {
		return []any{}, nil
	}
	v, err := decodeCanonical(data)
	if err != nil {
		return nil, fmt.Errorf("unmarshal args: %w", err)
	}
	args, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("unmarshal args: want array, got %T", v)
	}
	return args, nil
}

// unmarshalResult parses a nullable canonical JSON column.
func unmarshalResult(data sql.NullString) (any, error) {
	if !data.Valid {
		return nil, nil
	}
	v, err := decodeCanonical(data.String)
	if err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	return v, nil
}

func unmarshalErrors(data string) ([]string, error) {
	var errs []string
	if err := json.Unmarshal([]byte(data), &errs); err != nil {
		return nil, fmt.Errorf("unmarshal errors: %w", err)
	}
	if errs == nil {
		errs = []string{}
	}
	return errs, nil
}

// decodeCanonical uses json.Number to avoid float64 precision loss for
// integers above 2^53.
func decodeCanonical(data string) (any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return canon.Normalize(v)
}
