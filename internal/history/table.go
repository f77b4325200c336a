package history

import "sort"

// Table holds exported time-history variables keyed by id. The time axis,
// when present, is the index column.
type Table struct {
	series map[int][]float64
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{series: map[int][]float64{}}
}

// Set stores the values of variable id, replacing earlier ones.
func (t *Table) Set(id int, values []float64) {
	t.series[id] = append([]float64(nil), values...)
}

// Get returns the values of variable id.
func (t *Table) Get(id int) ([]float64, bool) {
	v, ok := t.series[id]
	return v, ok
}

// Empty reports whether no variable was exported.
func (t *Table) Empty() bool {
	return t == nil || len(t.series) == 0
}

// Time returns the index column, or nil when it was not exported.
func (t *Table) Time() []float64 {
	return t.series[TimeSeries]
}

// IDs returns the exported variables, time axis first, others ascending.
func (t *Table) IDs() []int {
	if t == nil {
		return nil
	}
	ids := make([]int, 0, len(t.series))
	for id := range t.series {
		if id != TimeSeries {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	if _, ok := t.series[TimeSeries]; ok {
		ids = append([]int{TimeSeries}, ids...)
	}
	return ids
}

// Rows returns the table row by row in IDs order. Rows stop at the shortest
// variable so every row is complete.
func (t *Table) Rows() [][]float64 {
	ids := t.IDs()
	if len(ids) == 0 {
		return nil
	}
	n := -1
	for _, id := range ids {
		if l := len(t.series[id]); n < 0 || l < n {
			n = l
		}
	}
	rows := make([][]float64, n)
	for i := range rows {
		row := make([]float64, len(ids))
		for j, id := range ids {
			row[j] = t.series[id][i]
		}
		rows[i] = row
	}
	return rows
}
