package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/roach88/keycond/internal/ir"
)

// marshalTuple converts a key tuple to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON for deterministic serialization.
func marshalTuple(tuple []ir.Value) (string, error) {
	data, err := ir.MarshalCanonical(tuple)
	if err != nil {
		return "", fmt.Errorf("marshal tuple: %w", err)
	}
	return string(data), nil
}

// marshalValue stores a single min/max value as a one-element tuple.
func marshalValue(v ir.Value) (string, error) {
	return marshalTuple([]ir.Value{v})
}

// unmarshalTuple parses a stored tuple and converts each element to its
// column type. Numbers are decoded through json.Number so that integers
// beyond 2^53 keep full precision.
func unmarshalTuple(data string, types []ir.Type) ([]ir.Value, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	var raw []any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("unmarshal tuple: %w", err)
	}
	if len(raw) != len(types) {
		return nil, fmt.Errorf("unmarshal tuple: %d elements, expected %d", len(raw), len(types))
	}
	for i, r := range raw {
		if n, ok := r.(json.Number); ok {
			raw[i] = number(n)
		}
	}
	tuple, err := ir.TupleFromGo(raw, types)
	if err != nil {
		return nil, fmt.Errorf("unmarshal tuple: %w", err)
	}
	return tuple, nil
}

func unmarshalValue(data string, t ir.Type) (ir.Value, error) {
	tuple, err := unmarshalTuple(data, []ir.Type{t})
	if err != nil {
		return nil, err
	}
	return tuple[0], nil
}

// number picks the narrowest Go type that represents n exactly.
func number(n json.Number) any {
	s := n.String()
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if u, err := strconv.ParseUint(s, 10, 64); err == nil {
		return u
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// marshalSpec stores a table definition as canonical JSON.
func marshalSpec(spec ir.TableSpec) (string, error) {
	cols := make([]any, len(spec.Columns))
	for i, c := range spec.Columns {
		cols[i] = map[string]any{"name": c.Name, "type": string(c.Type)}
	}
	data, err := ir.MarshalCanonical(map[string]any{
		"name":              spec.Name,
		"columns":           cols,
		"order_by":          spec.OrderBy,
		"partition_by":      spec.PartitionBy,
		"index_granularity": spec.IndexGranularity,
	})
	if err != nil {
		return "", fmt.Errorf("marshal table spec: %w", err)
	}
	return string(data), nil
}

func unmarshalSpec(data string) (ir.TableSpec, error) {
	var spec ir.TableSpec
	if err := json.Unmarshal([]byte(data), &spec); err != nil {
		return ir.TableSpec{}, fmt.Errorf("unmarshal table spec: %w", err)
	}
	return spec, nil
}
