package ir

import (
	"fmt"
	"strings"
)

// Type names a column type. Narrow integer and float widths collapse to the
// 64-bit representation; the order of values is unaffected.
type Type string

const (
	TypeNothing  Type = "Nothing"
	TypeInt64    Type = "Int64"
	TypeUInt64   Type = "UInt64"
	TypeFloat64  Type = "Float64"
	TypeString   Type = "String"
	TypeBool     Type = "Bool"
	TypeDate     Type = "Date"
	TypeDateTime Type = "DateTime"
)

var typeAliases = map[string]Type{
	"int8": TypeInt64, "int16": TypeInt64, "int32": TypeInt64, "int64": TypeInt64,
	"uint8": TypeUInt64, "uint16": TypeUInt64, "uint32": TypeUInt64, "uint64": TypeUInt64,
	"float32": TypeFloat64, "float64": TypeFloat64,
	"string": TypeString, "fixedstring": TypeString,
	"bool": TypeBool, "boolean": TypeBool,
	"date": TypeDate, "date32": TypeDate,
	"datetime": TypeDateTime,
}

// ParseType resolves a type name such as "UInt32" or "DateTime".
// Matching is case-insensitive.
func ParseType(name string) (Type, error) {
	t, ok := typeAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("unknown column type %q", name)
	}
	return t, nil
}

// IsNumeric reports whether values of t order as numbers.
func (t Type) IsNumeric() bool {
	switch t {
	case TypeInt64, TypeUInt64, TypeFloat64, TypeBool:
		return true
	}
	return false
}

// TableSpec is a compiled table definition.
type TableSpec struct {
	Name             string      `json:"name"`
	Columns          []ColumnDef `json:"columns"`
	OrderBy          []string    `json:"order_by"`               // key expressions in sort order
	PartitionBy      string      `json:"partition_by,omitempty"` // partition expression
	IndexGranularity int         `json:"index_granularity"`
}

// ColumnDef is a named, typed table column.
type ColumnDef struct {
	Name string `json:"name"`
	Type Type   `json:"type"`
}

// ColumnType looks up the type of a column by name.
func (t TableSpec) ColumnType(name string) (Type, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c.Type, true
		}
	}
	return "", false
}

// ColumnTypes returns a name → type map of every column.
func (t TableSpec) ColumnTypes() map[string]Type {
	m := make(map[string]Type, len(t.Columns))
	for _, c := range t.Columns {
		m[c.Name] = c.Type
	}
	return m
}

// Part is one immutable sorted data part: a primary index with one key
// tuple per mark plus min/max values of the partition key columns.
type Part struct {
	Name        string         `json:"name"`
	PartitionID string         `json:"partition_id"`
	Rows        int64          `json:"rows"`
	Index       [][]Value      `json:"-"`
	MinMax      []MinMaxColumn `json:"-"`
}

// MarksCount is the number of marks in the primary index.
func (p Part) MarksCount() int {
	return len(p.Index)
}

// MinMaxColumn holds the closed value range of one column inside a part.
type MinMaxColumn struct {
	Column string
	Min    Value
	Max    Value
}
