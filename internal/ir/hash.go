package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for fingerprints.
// Version suffix enables future algorithm migration.
const (
	DomainCondition = "keycond/condition/v1"
	DomainSet       = "keycond/set/v1"
	DomainTable     = "keycond/table/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SetFingerprint identifies a prepared set by its element types and its
// rows. Rows are hashed in the given order; callers that want order
// independence sort first.
func SetFingerprint(types []Type, rows [][]Value) (string, error) {
	typeNames := make([]string, len(types))
	for i, t := range types {
		typeNames[i] = string(t)
	}
	encodedRows := make([]any, len(rows))
	for i, row := range rows {
		encodedRows[i] = row
	}
	canonical, err := MarshalCanonical(map[string]any{
		"types": typeNames,
		"rows":  encodedRows,
	})
	if err != nil {
		return "", fmt.Errorf("SetFingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSet, canonical), nil
}

// ConditionFingerprint identifies a compiled condition: the same predicate
// text over the same key expressions of the same table compiles to the same
// RPN.
func ConditionFingerprint(table string, keyColumns []string, predicate string) (string, error) {
	canonical, err := MarshalCanonical(map[string]any{
		"table":       table,
		"key_columns": keyColumns,
		"predicate":   predicate,
	})
	if err != nil {
		return "", fmt.Errorf("ConditionFingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainCondition, canonical), nil
}

// TableFingerprint identifies a table definition.
func TableFingerprint(spec TableSpec) (string, error) {
	cols := make([]any, len(spec.Columns))
	for i, c := range spec.Columns {
		cols[i] = []string{c.Name, string(c.Type)}
	}
	canonical, err := MarshalCanonical(map[string]any{
		"name":              spec.Name,
		"columns":           cols,
		"order_by":          spec.OrderBy,
		"partition_by":      spec.PartitionBy,
		"index_granularity": spec.IndexGranularity,
	})
	if err != nil {
		return "", fmt.Errorf("TableFingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainTable, canonical), nil
}

// MustConditionFingerprint is like ConditionFingerprint but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustConditionFingerprint(table string, keyColumns []string, predicate string) string {
	fp, err := ConditionFingerprint(table, keyColumns, predicate)
	if err != nil {
		panic(err)
	}
	return fp
}
