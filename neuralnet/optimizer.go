package neuralnet

import (
	"errors"

	"gonum.org/v1/gonum/mat"
)

// Optimizer applies the gradients of a cache to the model parameters.
type Optimizer interface {
	Apply(model *Model, cache *Cache) error
}

// GradientDescent implements the full-batch update W_i -= alpha·dW_i,
// b_i -= alpha·db_i.
type GradientDescent struct{}

func (o GradientDescent) Apply(model *Model, cache *Cache) error {
	if cache == nil || len(cache.DW) != model.L()+1 || len(cache.DB) != model.L()+1 {
		return errors.New("cache does not match model layers")
	}
	alpha := model.Params.Alpha
	for i := model.L(); i >= 1; i-- {
		if cache.DW[i] == nil || cache.DB[i] == nil {
			return errors.New("cache has no gradients, run Backward first")
		}
		layer := model.Layers[i-1]
		var step mat.Dense
		step.Scale(alpha, cache.DW[i])
		layer.W.Sub(layer.W, &step)
		step.Reset()
		step.Scale(alpha, cache.DB[i])
		layer.B.Sub(layer.B, &step)
	}
	return nil
}
