// Package table abstracts feature-matrix access behind one capability so the
// split search and prediction algorithms are written once against dense and
// sparse data alike.
//
// The induction engine needs four access patterns: column extraction (axis
// split scans), row extraction (hyperplane origin points), matrix-vector
// projection (hyperplane objective) and row-subset slicing (partitioning data
// into children). Dense wraps a gonum matrix; CSR and CSC provide the two
// compressed sparse layouts, with CSR converted to CSC before column-heavy
// phases.
package table

import (
	"gonum.org/v1/gonum/mat"
)

// Table is the minimal matrix access pattern shared by dense and sparse
// feature data. Implementations never alias caller-owned buffers in the
// results of Take.
type Table interface {
	// Dims returns the number of rows and columns.
	Dims() (r, c int)
	// At returns the element at row i, column j.
	At(i, j int) float64
	// Column copies column j into dst (allocated when nil) and returns it.
	Column(dst []float64, j int) []float64
	// Row copies row i into dst (allocated when nil) and returns it.
	Row(dst []float64, i int) []float64
	// Project computes the matrix-vector product with normal into dst.
	Project(dst []float64, normal []float64) []float64
	// Take returns a new Table holding the given rows, in order.
	Take(rows []int) Table
}

// Dense is a Table over a gonum dense matrix.
type Dense struct {
	m *mat.Dense
}

// FromDense wraps a gonum dense matrix without copying.
func FromDense(m *mat.Dense) *Dense { return &Dense{m: m} }

// FromMatrix copies an arbitrary gonum matrix into a dense Table.
func FromMatrix(m mat.Matrix) *Dense {
	var d mat.Dense
	d.CloneFrom(m)
	return &Dense{m: &d}
}

// Dims returns the matrix dimensions.
func (d *Dense) Dims() (int, int) { return d.m.Dims() }

// At returns the element at row i, column j.
func (d *Dense) At(i, j int) float64 { return d.m.At(i, j) }

// Column copies column j into dst.
func (d *Dense) Column(dst []float64, j int) []float64 {
	return mat.Col(dst, j, d.m)
}

// Row copies row i into dst.
func (d *Dense) Row(dst []float64, i int) []float64 {
	return mat.Row(dst, i, d.m)
}

// Project computes m @ normal.
func (d *Dense) Project(dst []float64, normal []float64) []float64 {
	r, _ := d.m.Dims()
	if dst == nil {
		dst = make([]float64, r)
	}
	out := mat.NewVecDense(r, dst)
	out.MulVec(d.m, mat.NewVecDense(len(normal), normal))
	return dst
}

// Take returns a dense Table holding the given rows.
func (d *Dense) Take(rows []int) Table {
	_, c := d.m.Dims()
	sub := mat.NewDense(len(rows), c, nil)
	for i, r := range rows {
		sub.SetRow(i, d.m.RawRowView(r))
	}
	return &Dense{m: sub}
}

// Matrix exposes the underlying gonum matrix.
func (d *Dense) Matrix() *mat.Dense { return d.m }

// EnsureColumnAccess returns a Table with efficient column extraction,
// converting CSR to CSC. Dense and CSC tables are returned unchanged.
func EnsureColumnAccess(t Table) Table {
	if csr, ok := t.(*CSR); ok {
		return csr.ToCSC()
	}
	return t
}
