package linalg

import (
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestRowMatrixAddAndSet(t *testing.T) {
	m := NewRowMatrix(4)
	m.Add(2, 1, 1.5)
	m.Add(2, 1, 0.5)
	m.Add(0, 3, -1)
	m.Add(1, 9, 7) // out of range

	if got := m.At(2, 1); got != 2 {
		t.Errorf("expected 2, got %f", got)
	}
	if m.Len() != 2 {
		t.Errorf("expected 2 rows, got %d", m.Len())
	}

	rows := m.RowIndices()
	if len(rows) != 2 || rows[0] != 0 || rows[1] != 2 {
		t.Errorf("unexpected row indices %v", rows)
	}
	if m.MaxRow() != 3 {
		t.Errorf("expected max row 3, got %d", m.MaxRow())
	}

	m.Set(0, 3, 0)
	if m.Len() != 1 {
		t.Errorf("zeroing the only entry should drop the row, have %d rows", m.Len())
	}

	m.Reset()
	if m.Len() != 0 {
		t.Error("reset should empty the matrix")
	}
}

func TestRowMatrixClearCol(t *testing.T) {
	m := NewRowMatrix(3)
	m.Add(0, 0, 1)
	m.Add(0, 1, 2)
	m.Add(1, 1, 3)
	m.ClearCol(1)

	if m.At(0, 1) != 0 || m.At(1, 1) != 0 {
		t.Error("column 1 should be cleared")
	}
	if m.Len() != 1 {
		t.Errorf("expected 1 row left, got %d", m.Len())
	}
}

func TestRowMatrixAddProduct(t *testing.T) {
	child := NewRowMatrix(2)
	child.Add(0, 0, 1)
	child.Add(0, 1, 2)
	child.Add(1, 1, -1)

	a := mat.NewDense(2, 3, []float64{
		1, 0, 2,
		0, 3, 1,
	})

	parent := NewRowMatrix(3)
	if !parent.AddProduct(child, a) {
		t.Fatal("product rejected")
	}

	var want mat.Dense
	want.Mul(child.Dense(2), a)
	got := parent.Dense(2)
	if !mat.EqualApprox(got, &want, 1e-12) {
		t.Errorf("got\n%v\nwant\n%v", mat.Formatted(got), mat.Formatted(&want))
	}

	if parent.AddProduct(child, mat.NewDense(3, 3, nil)) {
		t.Error("mismatched dimensions should be rejected")
	}
}
