package neuralnet

import (
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
)

// Flatten concatenates W1, B1, ..., WL, BL in row-major order.
func Flatten(model *Model) []float64 {
	var params []float64
	for _, l := range model.Layers {
		params = append(params, mat.DenseCopyOf(l.W).RawMatrix().Data...)
		params = append(params, mat.DenseCopyOf(l.B).RawMatrix().Data...)
	}
	return params
}

// Unflatten writes params, laid out as by Flatten, back into model.
func Unflatten(model *Model, params []float64) {
	off := 0
	for _, l := range model.Layers {
		for _, p := range []*mat.Dense{l.W, l.B} {
			r, c := p.Dims()
			for i := 0; i < r; i++ {
				for j := 0; j < c; j++ {
					p.Set(i, j, params[off])
					off++
				}
			}
		}
	}
}

// FlattenGradients lays out the gradients of cache the same way Flatten lays
// out the parameters.
func FlattenGradients(cache *Cache) []float64 {
	var grads []float64
	for i := 1; i < len(cache.DW); i++ {
		grads = append(grads, mat.DenseCopyOf(cache.DW[i]).RawMatrix().Data...)
		grads = append(grads, mat.DenseCopyOf(cache.DB[i]).RawMatrix().Data...)
	}
	return grads
}

// NumericalGradient estimates ∂J/∂θ of the regularized cost by central
// differences, in Flatten order. model is not modified.
func NumericalGradient(model *Model, x, y mat.Matrix, step float64) []float64 {
	probe := model.Clone()
	cost := func(params []float64) float64 {
		Unflatten(probe, params)
		return RegularizedCost(probe, Forward(probe, x), y)
	}
	return fd.Gradient(nil, cost, Flatten(model), &fd.Settings{
		Formula: fd.Central,
		Step:    step,
	})
}
