package table

import "sort"

// CSR is a compressed sparse row matrix. Row extraction and row slicing are
// cheap; column extraction requires a full scan, so column-heavy phases
// should convert with ToCSC first.
type CSR struct {
	rows, cols int
	rowPtr     []int
	colIdx     []int
	data       []float64
}

// NewCSR builds a CSR table from raw compressed-row storage. rowPtr has
// rows+1 entries; colIdx values must be sorted within each row.
func NewCSR(rows, cols int, rowPtr, colIdx []int, data []float64) *CSR {
	return &CSR{rows: rows, cols: cols, rowPtr: rowPtr, colIdx: colIdx, data: data}
}

// CSRFromDense builds a CSR table from a dense Table, dropping zeros.
func CSRFromDense(t Table) *CSR {
	r, c := t.Dims()
	rowPtr := make([]int, r+1)
	var colIdx []int
	var data []float64
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if v := t.At(i, j); v != 0 {
				colIdx = append(colIdx, j)
				data = append(data, v)
			}
		}
		rowPtr[i+1] = len(data)
	}
	return NewCSR(r, c, rowPtr, colIdx, data)
}

// Dims returns the matrix dimensions.
func (m *CSR) Dims() (int, int) { return m.rows, m.cols }

// At returns the element at row i, column j.
func (m *CSR) At(i, j int) float64 {
	lo, hi := m.rowPtr[i], m.rowPtr[i+1]
	k := lo + sort.SearchInts(m.colIdx[lo:hi], j)
	if k < hi && m.colIdx[k] == j {
		return m.data[k]
	}
	return 0
}

// Column copies column j into dst. O(nnz); prefer ToCSC for repeated use.
func (m *CSR) Column(dst []float64, j int) []float64 {
	dst = zeroed(dst, m.rows)
	for i := 0; i < m.rows; i++ {
		dst[i] = m.At(i, j)
	}
	return dst
}

// Row copies row i into dst.
func (m *CSR) Row(dst []float64, i int) []float64 {
	dst = zeroed(dst, m.cols)
	for k := m.rowPtr[i]; k < m.rowPtr[i+1]; k++ {
		dst[m.colIdx[k]] = m.data[k]
	}
	return dst
}

// Project computes m @ normal via per-row dot products.
func (m *CSR) Project(dst []float64, normal []float64) []float64 {
	dst = zeroed(dst, m.rows)
	for i := 0; i < m.rows; i++ {
		var sum float64
		for k := m.rowPtr[i]; k < m.rowPtr[i+1]; k++ {
			sum += m.data[k] * normal[m.colIdx[k]]
		}
		dst[i] = sum
	}
	return dst
}

// Take returns a CSR table holding the given rows.
func (m *CSR) Take(rows []int) Table {
	rowPtr := make([]int, len(rows)+1)
	var colIdx []int
	var data []float64
	for i, r := range rows {
		for k := m.rowPtr[r]; k < m.rowPtr[r+1]; k++ {
			colIdx = append(colIdx, m.colIdx[k])
			data = append(data, m.data[k])
		}
		rowPtr[i+1] = len(data)
	}
	return NewCSR(len(rows), m.cols, rowPtr, colIdx, data)
}

// ToCSC converts to compressed sparse column layout.
func (m *CSR) ToCSC() *CSC {
	counts := make([]int, m.cols+1)
	for _, j := range m.colIdx {
		counts[j+1]++
	}
	colPtr := make([]int, m.cols+1)
	for j := 0; j < m.cols; j++ {
		colPtr[j+1] = colPtr[j] + counts[j+1]
	}
	rowIdx := make([]int, len(m.data))
	data := make([]float64, len(m.data))
	next := make([]int, m.cols)
	copy(next, colPtr[:m.cols])
	for i := 0; i < m.rows; i++ {
		for k := m.rowPtr[i]; k < m.rowPtr[i+1]; k++ {
			j := m.colIdx[k]
			rowIdx[next[j]] = i
			data[next[j]] = m.data[k]
			next[j]++
		}
	}
	return &CSC{rows: m.rows, cols: m.cols, colPtr: colPtr, rowIdx: rowIdx, data: data}
}

// CSC is a compressed sparse column matrix. Column extraction is cheap, which
// is what the axis-split scan needs.
type CSC struct {
	rows, cols int
	colPtr     []int
	rowIdx     []int
	data       []float64
}

// NewCSC builds a CSC table from raw compressed-column storage. colPtr has
// cols+1 entries; rowIdx values must be sorted within each column.
func NewCSC(rows, cols int, colPtr, rowIdx []int, data []float64) *CSC {
	return &CSC{rows: rows, cols: cols, colPtr: colPtr, rowIdx: rowIdx, data: data}
}

// Dims returns the matrix dimensions.
func (m *CSC) Dims() (int, int) { return m.rows, m.cols }

// At returns the element at row i, column j.
func (m *CSC) At(i, j int) float64 {
	lo, hi := m.colPtr[j], m.colPtr[j+1]
	k := lo + sort.SearchInts(m.rowIdx[lo:hi], i)
	if k < hi && m.rowIdx[k] == i {
		return m.data[k]
	}
	return 0
}

// Column copies column j into dst.
func (m *CSC) Column(dst []float64, j int) []float64 {
	dst = zeroed(dst, m.rows)
	for k := m.colPtr[j]; k < m.colPtr[j+1]; k++ {
		dst[m.rowIdx[k]] = m.data[k]
	}
	return dst
}

// Row copies row i into dst. O(cols * log nnz); rows are only extracted for
// hyperplane origin points, twice per objective evaluation.
func (m *CSC) Row(dst []float64, i int) []float64 {
	dst = zeroed(dst, m.cols)
	for j := 0; j < m.cols; j++ {
		dst[j] = m.At(i, j)
	}
	return dst
}

// Project computes m @ normal by accumulating column contributions.
func (m *CSC) Project(dst []float64, normal []float64) []float64 {
	dst = zeroed(dst, m.rows)
	for j := 0; j < m.cols; j++ {
		nj := normal[j]
		if nj == 0 {
			continue
		}
		for k := m.colPtr[j]; k < m.colPtr[j+1]; k++ {
			dst[m.rowIdx[k]] += m.data[k] * nj
		}
	}
	return dst
}

// Take returns a CSC table holding the given rows.
func (m *CSC) Take(rows []int) Table {
	remap := make([]int, m.rows)
	for i := range remap {
		remap[i] = -1
	}
	for i, r := range rows {
		remap[r] = i
	}
	colPtr := make([]int, m.cols+1)
	var rowIdx []int
	var data []float64
	for j := 0; j < m.cols; j++ {
		start := len(data)
		for k := m.colPtr[j]; k < m.colPtr[j+1]; k++ {
			if ni := remap[m.rowIdx[k]]; ni >= 0 {
				rowIdx = append(rowIdx, ni)
				data = append(data, m.data[k])
			}
		}
		// keep rowIdx sorted within the column when rows were reordered
		sortColumn(rowIdx[start:], data[start:])
		colPtr[j+1] = len(data)
	}
	return &CSC{rows: len(rows), cols: m.cols, colPtr: colPtr, rowIdx: rowIdx, data: data}
}

func sortColumn(rows []int, data []float64) {
	sort.Sort(&columnSorter{rows: rows, data: data})
}

type columnSorter struct {
	rows []int
	data []float64
}

func (s *columnSorter) Len() int           { return len(s.rows) }
func (s *columnSorter) Less(i, j int) bool { return s.rows[i] < s.rows[j] }
func (s *columnSorter) Swap(i, j int) {
	s.rows[i], s.rows[j] = s.rows[j], s.rows[i]
	s.data[i], s.data[j] = s.data[j], s.data[i]
}

func zeroed(dst []float64, n int) []float64 {
	if dst == nil {
		return make([]float64, n)
	}
	dst = dst[:n]
	for i := range dst {
		dst[i] = 0
	}
	return dst
}
