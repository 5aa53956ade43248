package testutil

// Generator yields the value of one column for row i of a generated part.
type Generator interface {
	At(i int) any
}

// Sequence counts from From by Step, advancing once every Every rows.
// Every <= 1 advances on each row.
type Sequence struct {
	From  int64
	Step  int64
	Every int
}

// At implements Generator.
func (s Sequence) At(i int) any {
	every := max(s.Every, 1)
	return s.From + int64(i/every)*s.Step
}

// Cycle repeats Values in order.
type Cycle struct {
	Values []any
}

// At implements Generator. An empty cycle yields nil.
func (c Cycle) At(i int) any {
	if len(c.Values) == 0 {
		return nil
	}
	return c.Values[i%len(c.Values)]
}

// Const yields the same value for every row.
type Const struct {
	Value any
}

// At implements Generator.
func (c Const) At(int) any {
	return c.Value
}

// Rows materializes n rows, one value per generated column.
//
// The same generators always produce the same rows, so parts built from
// them have reproducible indexes.
func Rows(n int, columns map[string]Generator) []map[string]any {
	rows := make([]map[string]any, n)
	for i := range rows {
		row := make(map[string]any, len(columns))
		for name, g := range columns {
			row[name] = g.At(i)
		}
		rows[i] = row
	}
	return rows
}
