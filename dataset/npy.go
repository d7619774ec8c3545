// Package dataset loads and saves feature matrices and target vectors in the
// NumPy .npy format, so training data prepared elsewhere moves in and out
// without a bespoke serialization step.
package dataset

import (
	"os"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"

	"github.com/o-laurent/bayesian-tree/pkg/errors"
)

// LoadMatrix reads a 2-d .npy file into a dense matrix.
func LoadMatrix(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "dataset: open %s", path)
	}
	defer f.Close()

	r, err := npyio.NewReader(f)
	if err != nil {
		return nil, errors.Wrapf(err, "dataset: read header of %s", path)
	}
	var m mat.Dense
	if err := r.Read(&m); err != nil {
		return nil, errors.Wrapf(err, "dataset: read %s", path)
	}
	return &m, nil
}

// LoadVector reads a 1-d (or single-column 2-d) .npy file into a slice.
func LoadVector(path string) ([]float64, error) {
	m, err := LoadMatrix(path)
	if err != nil {
		return nil, err
	}
	r, c := m.Dims()
	switch {
	case c == 1:
		return mat.Col(nil, 0, m), nil
	case r == 1:
		return mat.Row(nil, 0, m), nil
	default:
		return nil, errors.NewDimensionError("dataset.LoadVector", 1, c, 1)
	}
}

// SaveMatrix writes a dense matrix to path in .npy format.
func SaveMatrix(path string, m *mat.Dense) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "dataset: create %s", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "dataset: close %s", path)
		}
	}()

	if err := npyio.Write(f, m); err != nil {
		return errors.Wrapf(err, "dataset: write %s", path)
	}
	return nil
}

// SaveVector writes a slice to path as a single-column .npy matrix.
func SaveVector(path string, v []float64) error {
	return SaveMatrix(path, mat.NewDense(len(v), 1, v))
}
