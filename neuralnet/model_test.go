package neuralnet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestNewModelShapes(t *testing.T) {
	m, err := NewModel([]int{3, 4, 2}, []ActivationFunction{ReLU{}, Sigmoid{}}, DefaultParams(), WithSeed(1))
	require.NoError(t, err)
	require.Equal(t, 2, m.L())

	r, c := m.Layers[0].W.Dims()
	assert.Equal(t, []int{4, 3}, []int{r, c})
	r, c = m.Layers[1].B.Dims()
	assert.Equal(t, []int{2, 1}, []int{r, c})
	assert.Equal(t, 0.0, mat.Sum(m.Layers[1].B), "biases start at zero")
	for _, v := range m.Layers[0].W.RawMatrix().Data {
		assert.True(t, v >= 0 && v < 1, "default weights are uniform in [0,1), got %v", v)
	}
	assert.Equal(t, "[(W1, 4x3) (B1, 4x1) (W2, 2x4) (B2, 2x1)]", m.Describe())
}

func TestNewModelXavierRange(t *testing.T) {
	m, err := NewModel([]int{3, 5}, []ActivationFunction{Tanh{}}, DefaultParams(), WithSeed(2), WithXavier())
	require.NoError(t, err)
	for _, v := range m.Layers[0].W.RawMatrix().Data {
		assert.InDelta(t, 0, v, 0.867)
	}
}

func TestNewModelSeedIsReproducible(t *testing.T) {
	acts := []ActivationFunction{Sigmoid{}}
	a, err := NewModel([]int{2, 2}, acts, DefaultParams(), WithSeed(7))
	require.NoError(t, err)
	b, err := NewModel([]int{2, 2}, acts, DefaultParams(), WithSeed(7))
	require.NoError(t, err)
	assert.Equal(t, Flatten(a), Flatten(b))
}

func TestNewModelConstructionErrors(t *testing.T) {
	_, err := NewModel([]int{2}, nil, DefaultParams())
	assert.ErrorIs(t, err, ErrShape)

	_, err = NewModel([]int{2, 0}, []ActivationFunction{Sigmoid{}}, DefaultParams())
	assert.ErrorIs(t, err, ErrShape)

	_, err = NewModel([]int{2, 3, 1}, []ActivationFunction{Sigmoid{}}, DefaultParams())
	assert.ErrorIs(t, err, ErrActivationCount)

	_, err = NewModel([]int{2, 1}, []ActivationFunction{nil}, DefaultParams())
	assert.ErrorIs(t, err, ErrActivationCount)
}

func TestFromParametersReshapesBias(t *testing.T) {
	w := mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})
	flat := mat.NewDense(1, 3, []float64{7, 8, 9})
	m, err := FromParameters([]int{2, 3}, []*mat.Dense{w}, []*mat.Dense{flat}, []ActivationFunction{ReLU{}}, DefaultParams())
	require.NoError(t, err)

	r, c := m.Layers[0].B.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 1, c)
	assert.Equal(t, 8.0, m.Layers[0].B.At(1, 0))

	w.Set(0, 0, 100)
	assert.Equal(t, 1.0, m.Layers[0].W.At(0, 0), "parameters are copied")
}

func TestFromParametersRejectsMismatch(t *testing.T) {
	w := mat.NewDense(2, 2, nil)
	b := mat.NewDense(3, 1, nil)
	_, err := FromParameters([]int{2, 3}, []*mat.Dense{w}, []*mat.Dense{b}, []ActivationFunction{ReLU{}}, DefaultParams())
	assert.ErrorIs(t, err, ErrParameterShape)

	_, err = FromParameters([]int{2, 3}, nil, nil, []ActivationFunction{ReLU{}}, DefaultParams())
	assert.ErrorIs(t, err, ErrParameterShape)
}

func TestCloneIsIndependent(t *testing.T) {
	m, err := NewModel([]int{2, 2, 1}, []ActivationFunction{Sigmoid{}, Sigmoid{}}, DefaultParams(), WithSeed(3))
	require.NoError(t, err)
	c := m.Clone()
	require.NoError(t, c.Validate())

	c.Layers[0].W.Set(0, 0, 42)
	c.Layers[1].B.Set(0, 0, 42)
	c.Shape[0] = 9
	assert.NotEqual(t, 42.0, m.Layers[0].W.At(0, 0))
	assert.Equal(t, 0.0, m.Layers[1].B.At(0, 0))
	assert.Equal(t, 2, m.Shape[0])
}
