package neuralnet

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// MinLog is the floor applied before taking a logarithm in the cost.
const MinLog = 1e-10

// SafeLog is math.Log with x clipped to MinLog, so x≈0 yields a large
// negative number instead of -Inf or NaN.
func SafeLog(x float64) float64 {
	return math.Log(math.Max(x, MinLog))
}

// LossFunction defines the interface for computing loss and its gradient.
type LossFunction interface {
	// Compute returns the mean loss over the columns of yHat.
	Compute(yHat, y mat.Matrix) float64
	// Gradient returns ∂L/∂Z at the output layer.
	Gradient(yHat, y mat.Matrix) *mat.Dense
}

// CrossEntropy is the elementwise binary cross-entropy summed over output
// units and averaged over examples. Paired with a sigmoid output its
// gradient with respect to the pre-activation is yHat - y.
type CrossEntropy struct{}

func (ce CrossEntropy) Compute(yHat, y mat.Matrix) float64 {
	r, m := y.Dims()
	var sum float64
	for i := 0; i < r; i++ {
		for j := 0; j < m; j++ {
			p, t := yHat.At(i, j), y.At(i, j)
			sum += t*SafeLog(p) + (1-t)*SafeLog(1-p)
		}
	}
	return -sum / float64(m)
}

func (ce CrossEntropy) Gradient(yHat, y mat.Matrix) *mat.Dense {
	var grad mat.Dense
	grad.Sub(yHat, y)
	return &grad
}

// PenaltyTerm returns the L2 part of the cost for a batch of m examples.
func PenaltyTerm(model *Model, m int) float64 {
	lambda := model.Params.Lambda
	if lambda == 0 {
		return 0
	}
	scale := lambda / (2 * float64(m))
	var cost float64
	switch model.Params.Penalty {
	case LayerPenalty:
		for _, l := range model.Layers {
			cost += scale * squaredNorm(l.W)
		}
	default:
		for i := model.L(); i > 1; i-- {
			cost += scale * (squaredNorm(model.Layers[i-2].W) + squaredNorm(model.Layers[i-1].W))
		}
	}
	return cost
}

// RegularizedCost is the cross-entropy of the cached output against y plus
// the model's L2 penalty.
func RegularizedCost(model *Model, cache *Cache, y mat.Matrix) float64 {
	_, m := y.Dims()
	return CrossEntropy{}.Compute(cache.Output(), y) + PenaltyTerm(model, m)
}

func squaredNorm(w *mat.Dense) float64 {
	r, _ := w.Dims()
	var sum float64
	for i := 0; i < r; i++ {
		row := w.RawRowView(i)
		sum += floats.Dot(row, row)
	}
	return sum
}
