package linalg

import (
	"sort"

	"gonum.org/v1/gonum/mat"
)

type Entry struct {
	Col   int
	Value float64
}

// RowMatrix is a sparse matrix stored by rows, used for constraint
// Jacobians where each constraint touches a few degrees of freedom.
// Rows are identified by their global constraint index.
type RowMatrix struct {
	cols int
	rows map[int]map[int]float64
}

func NewRowMatrix(cols int) *RowMatrix {
	return &RowMatrix{cols: cols, rows: make(map[int]map[int]float64)}
}

func (m *RowMatrix) Cols() int { return m.cols }

// Len returns the number of non-empty rows.
func (m *RowMatrix) Len() int { return len(m.rows) }

func (m *RowMatrix) Reset() {
	for k := range m.rows {
		delete(m.rows, k)
	}
}

func (m *RowMatrix) Add(row, col int, v float64) {
	if col < 0 || col >= m.cols || v == 0 {
		return
	}
	r, ok := m.rows[row]
	if !ok {
		r = make(map[int]float64)
		m.rows[row] = r
	}
	r[col] += v
}

func (m *RowMatrix) Set(row, col int, v float64) {
	if col < 0 || col >= m.cols {
		return
	}
	if v == 0 {
		if r, ok := m.rows[row]; ok {
			delete(r, col)
			if len(r) == 0 {
				delete(m.rows, row)
			}
		}
		return
	}
	r, ok := m.rows[row]
	if !ok {
		r = make(map[int]float64)
		m.rows[row] = r
	}
	r[col] = v
}

func (m *RowMatrix) At(row, col int) float64 {
	return m.rows[row][col]
}

// ClearCol removes column col from every row.
func (m *RowMatrix) ClearCol(col int) {
	for row, r := range m.rows {
		delete(r, col)
		if len(r) == 0 {
			delete(m.rows, row)
		}
	}
}

// RowIndices returns the non-empty row indices in ascending order.
func (m *RowMatrix) RowIndices() []int {
	idx := make([]int, 0, len(m.rows))
	for k := range m.rows {
		idx = append(idx, k)
	}
	sort.Ints(idx)
	return idx
}

// Row returns the entries of one row sorted by column.
func (m *RowMatrix) Row(row int) []Entry {
	r := m.rows[row]
	out := make([]Entry, 0, len(r))
	for c, v := range r {
		out = append(out, Entry{Col: c, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Col < out[j].Col })
	return out
}

// AddProduct adds src*a into m row by row. a maps the column space of src
// onto the column space of m, so it must be src.Cols() x m.Cols().
func (m *RowMatrix) AddProduct(src *RowMatrix, a mat.Matrix) bool {
	r, c := a.Dims()
	if r != src.cols || c != m.cols {
		return false
	}
	for _, row := range src.RowIndices() {
		for _, e := range src.Row(row) {
			for j := 0; j < c; j++ {
				m.Add(row, j, e.Value*a.At(e.Col, j))
			}
		}
	}
	return true
}

// Dense copies the first nRows rows into a dense matrix. Rows at or beyond
// nRows are dropped.
func (m *RowMatrix) Dense(nRows int) *mat.Dense {
	if nRows <= 0 || m.cols <= 0 {
		return &mat.Dense{}
	}
	d := mat.NewDense(nRows, m.cols, nil)
	for row, r := range m.rows {
		if row < 0 || row >= nRows {
			continue
		}
		for c, v := range r {
			d.Set(row, c, v)
		}
	}
	return d
}

// MaxRow returns one past the highest non-empty row, or 0.
func (m *RowMatrix) MaxRow() int {
	n := 0
	for k := range m.rows {
		if k+1 > n {
			n = k + 1
		}
	}
	return n
}
