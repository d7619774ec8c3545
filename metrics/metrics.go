// Package metrics provides the evaluation metrics used to score trained
// trees: mean squared error, root mean squared error, mean absolute error and
// R² for regression, accuracy for classification.
//
// All functions accept column vectors as n×1 gonum matrices, matching the
// prediction output of the estimators:
//
//	pred, _ := reg.Predict(X)
//	rmse, _ := metrics.RMSE(yTrue, pred)
package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/o-laurent/bayesian-tree/pkg/errors"
)

// MSE calculates the mean squared error between true and predicted values.
//
// Errors:
//   - ErrEmptyData: if the inputs are empty
//   - ErrDimensionMismatch: if the inputs are not equal-length column vectors
func MSE(yTrue, yPred mat.Matrix) (float64, error) {
	n, err := checkColumnPair("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var sum float64
	for i := 0; i < n; i++ {
		diff := yTrue.At(i, 0) - yPred.At(i, 0)
		sum += diff * diff
	}
	return sum / float64(n), nil
}

// RMSE calculates the root mean squared error, the square root of MSE,
// expressed in the units of the target variable.
func RMSE(yTrue, yPred mat.Matrix) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE calculates the mean absolute error between true and predicted values.
// More robust to outliers than MSE.
func MAE(yTrue, yPred mat.Matrix) (float64, error) {
	n, err := checkColumnPair("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(yTrue.At(i, 0) - yPred.At(i, 0))
	}
	return sum / float64(n), nil
}

// R2Score calculates the coefficient of determination. A perfect model
// scores 1, predicting the mean scores 0, and worse-than-mean predictions
// score negative.
//
// Errors:
//   - ErrEmptyData: if the inputs are empty
//   - ErrDimensionMismatch: if the inputs are not equal-length column vectors
//   - ValueError: if yTrue has no variance
func R2Score(yTrue, yPred mat.Matrix) (float64, error) {
	n, err := checkColumnPair("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var mean float64
	for i := 0; i < n; i++ {
		mean += yTrue.At(i, 0)
	}
	mean /= float64(n)

	var tss, rss float64
	for i := 0; i < n; i++ {
		t := yTrue.At(i, 0)
		tss += (t - mean) * (t - mean)
		rss += (t - yPred.At(i, 0)) * (t - yPred.At(i, 0))
	}
	if tss == 0 {
		return 0, errors.NewValueError("R2Score", "no variance in yTrue")
	}
	return 1 - rss/tss, nil
}

// Accuracy calculates the fraction of exactly matching predictions.
func Accuracy(yTrue, yPred mat.Matrix) (float64, error) {
	n, err := checkColumnPair("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.At(i, 0) == yPred.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// checkColumnPair validates that both inputs are non-empty column vectors of
// the same length and returns that length.
func checkColumnPair(op string, yTrue, yPred mat.Matrix) (int, error) {
	if yTrue == nil || yPred == nil {
		return 0, errors.NewValueError(op, "inputs must be non-nil")
	}
	r, c := yTrue.Dims()
	if r == 0 {
		return 0, errors.NewModelError(op, "empty input", errors.ErrEmptyData)
	}
	if c != 1 {
		return 0, errors.NewDimensionError(op, 1, c, 1)
	}
	pr, pc := yPred.Dims()
	if pc != 1 {
		return 0, errors.NewDimensionError(op, 1, pc, 1)
	}
	if pr != r {
		return 0, errors.NewDimensionError(op, r, pr, 0)
	}
	return r, nil
}
