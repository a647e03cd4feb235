package neuralnet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestPredictThresholdIsInclusive(t *testing.T) {
	// sigmoid(0) = 0.5 sits exactly on the threshold and predicts class 1
	m, err := FromParameters([]int{2, 1},
		[]*mat.Dense{mat.NewDense(1, 2, nil)},
		[]*mat.Dense{mat.NewDense(1, 1, nil)},
		[]ActivationFunction{Sigmoid{}},
		DefaultParams())
	require.NoError(t, err)

	x := mat.NewDense(2, 3, []float64{
		-5, 0, 7,
		2, 0, -1,
	})
	labels, err := Predict(m, x)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 1}, labels.RawRowView(0))
}

func multiClassModel(t *testing.T) *Model {
	t.Helper()
	// each output unit picks one input feature
	m, err := FromParameters([]int{3, 3},
		[]*mat.Dense{mat.NewDense(3, 3, []float64{
			5, 0, 0,
			0, 5, 0,
			0, 0, 5,
		})},
		[]*mat.Dense{mat.NewDense(3, 1, nil)},
		[]ActivationFunction{Sigmoid{}},
		DefaultParams())
	require.NoError(t, err)
	return m
}

func TestPredictMultiClassArgmax(t *testing.T) {
	m := multiClassModel(t)
	x := mat.NewDense(3, 4, []float64{
		1, 0, 0, 0.2,
		0, 1, 0, 0.9,
		0, 0, 1, 0.1,
	})
	labels, err := Predict(m, x)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2, 1}, labels.RawRowView(0))
}

func TestCorrect(t *testing.T) {
	m := multiClassModel(t)
	x := mat.NewDense(3, 4, []float64{
		1, 0, 0, 0.2,
		0, 1, 0, 0.9,
		0, 0, 1, 0.1,
	})
	y := mat.NewDense(3, 4, []float64{
		1, 0, 0, 1,
		0, 1, 0, 0,
		0, 0, 1, 0,
	})
	acc, err := Correct(m, x, y)
	require.NoError(t, err)
	assert.Equal(t, 0.75, acc)

	stats, err := TrainingStats(m, x, y)
	require.NoError(t, err)
	assert.Equal(t, "dev accuracy: 75.00%", stats)
}

func TestCorrectBinary(t *testing.T) {
	x, y := toyData()
	m, err := FromParameters([]int{2, 1},
		[]*mat.Dense{mat.NewDense(1, 2, []float64{1, 1})},
		[]*mat.Dense{mat.NewDense(1, 1, nil)},
		[]ActivationFunction{Sigmoid{}},
		DefaultParams())
	require.NoError(t, err)
	acc, err := Correct(m, x, y)
	require.NoError(t, err)
	assert.Equal(t, 1.0, acc)
}

func TestCorrectDimensionMismatch(t *testing.T) {
	m := multiClassModel(t)
	x := mat.NewDense(3, 2, nil)
	y := mat.NewDense(3, 5, nil)
	_, err := Correct(m, x, y)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = Predict(m, mat.NewDense(2, 2, nil))
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}
