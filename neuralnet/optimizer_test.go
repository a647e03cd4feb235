package neuralnet

import (
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestGradientDescentRejectsEmptyCache(t *testing.T) {
	gd := GradientDescent{}
	m, err := NewModel([]int{1, 1}, []ActivationFunction{Sigmoid{}}, DefaultParams())
	if err != nil {
		t.Fatal(err)
	}
	if err := gd.Apply(m, nil); err == nil {
		t.Error("GradientDescent.Apply with nil cache did not return error")
	}
	if err := gd.Apply(m, newCache(1)); err == nil {
		t.Error("GradientDescent.Apply without gradients did not return error")
	}
	if err := gd.Apply(m, newCache(3)); err == nil {
		t.Error("GradientDescent.Apply with a foreign cache did not return error")
	}
}

func TestGradientDescentApply(t *testing.T) {
	const epsilon = 1e-12

	initialWeight := 1.0
	initialBias := 0.5
	gradWeight := 0.2
	gradBias := 0.1

	m, err := FromParameters([]int{2, 2, 1},
		[]*mat.Dense{
			mat.NewDense(2, 2, []float64{initialWeight, initialWeight, initialWeight, initialWeight}),
			mat.NewDense(1, 2, []float64{initialWeight, initialWeight}),
		},
		[]*mat.Dense{
			mat.NewDense(2, 1, []float64{initialBias, initialBias}),
			mat.NewDense(1, 1, []float64{initialBias}),
		},
		[]ActivationFunction{ReLU{}, Sigmoid{}},
		Params{Alpha: 0.1, Lambda: 0.01},
	)
	if err != nil {
		t.Fatal(err)
	}

	cache := newCache(m.L())
	for i := 1; i <= m.L(); i++ {
		r, c := m.Layers[i-1].W.Dims()
		cache.DW[i] = mat.NewDense(r, c, nil)
		cache.DW[i].Apply(func(_, _ int, _ float64) float64 { return gradWeight }, cache.DW[i])
		cache.DB[i] = mat.NewDense(r, 1, nil)
		cache.DB[i].Apply(func(_, _ int, _ float64) float64 { return gradBias }, cache.DB[i])
	}

	if err := (GradientDescent{}).Apply(m, cache); err != nil {
		t.Fatalf("GradientDescent.Apply returned an unexpected error: %v", err)
	}

	// the L2 term already lives in dW, so the update is a plain step
	expectedWeight := initialWeight - m.Params.Alpha*gradWeight
	expectedBias := initialBias - m.Params.Alpha*gradBias
	for i, layer := range m.Layers {
		r, c := layer.W.Dims()
		for j := 0; j < r; j++ {
			for k := 0; k < c; k++ {
				if diff := expectedWeight - layer.W.At(j, k); diff < -epsilon || diff > epsilon {
					t.Errorf("Layer %d, W[%d][%d]: expected %f, got %f", i+1, j, k, expectedWeight, layer.W.At(j, k))
				}
			}
			if diff := expectedBias - layer.B.At(j, 0); diff < -epsilon || diff > epsilon {
				t.Errorf("Layer %d, B[%d]: expected %f, got %f", i+1, j, expectedBias, layer.B.At(j, 0))
			}
		}
	}
}
