package neuralnet

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// BinaryThreshold separates the two classes of a single-unit output.
// An activation equal to the threshold predicts class 1.
const BinaryThreshold = 0.5

// Predict returns a 1×m row of labels: 0/1 for a single output unit,
// otherwise the index of the largest output in each column.
func Predict(model *Model, x mat.Matrix) (*mat.Dense, error) {
	var out *mat.Dense
	err := guard(func() { out = predict(model, x) })
	return out, err
}

// Correct returns the fraction of the columns of x whose prediction matches
// y. Multi-class labels are compared against the argmax of each column of y.
func Correct(model *Model, x, y mat.Matrix) (float64, error) {
	var acc float64
	err := guard(func() { acc = correct(model, x, y) })
	return acc, err
}

// TrainingStats formats the accuracy on a held-out set.
func TrainingStats(model *Model, xDev, yDev mat.Matrix) (string, error) {
	acc, err := Correct(model, xDev, yDev)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("dev accuracy: %.02f%%", 100*acc), nil
}

func predict(model *Model, x mat.Matrix) *mat.Dense {
	yHat := Forward(model, x).Output()
	if model.OutputDim() == 1 {
		_, m := yHat.Dims()
		labels := mat.NewDense(1, m, nil)
		for j := 0; j < m; j++ {
			if yHat.At(0, j) >= BinaryThreshold {
				labels.Set(0, j, 1)
			}
		}
		return labels
	}
	return argmaxColumns(Softmax(yHat))
}

func correct(model *Model, x, y mat.Matrix) float64 {
	labels := predict(model, x)
	want := mat.Matrix(y)
	if r, _ := y.Dims(); r > 1 {
		want = argmaxColumns(y)
	}
	_, m := labels.Dims()
	if _, ym := want.Dims(); ym != m {
		panic(mat.ErrShape)
	}
	hits := 0
	for j := 0; j < m; j++ {
		if labels.At(0, j) == want.At(0, j) {
			hits++
		}
	}
	return float64(hits) / float64(m)
}

func argmaxColumns(x mat.Matrix) *mat.Dense {
	r, m := x.Dims()
	out := mat.NewDense(1, m, nil)
	col := make([]float64, r)
	for j := 0; j < m; j++ {
		mat.Col(col, j, x)
		out.Set(0, j, float64(floats.MaxIdx(col)))
	}
	return out
}

// guard turns a gonum dimension panic into ErrDimensionMismatch.
func guard(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(mat.Error); ok {
				err = fmt.Errorf("%w: %v", ErrDimensionMismatch, e)
				return
			}
			panic(r)
		}
	}()
	fn()
	return nil
}
