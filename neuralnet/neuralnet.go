package neuralnet

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Cache holds the intermediate tensors of one training step. Every slice is
// indexed by layer number: A[0] is the input and A[L] the output, while
// Z, DZ, DW and DB leave index 0 unused.
type Cache struct {
	A  []*mat.Dense
	Z  []*mat.Dense
	DZ []*mat.Dense
	DW []*mat.Dense
	DB []*mat.Dense
	J  float64
}

func newCache(layers int) *Cache {
	return &Cache{
		A:  make([]*mat.Dense, layers+1),
		Z:  make([]*mat.Dense, layers+1),
		DZ: make([]*mat.Dense, layers+1),
		DW: make([]*mat.Dense, layers+1),
		DB: make([]*mat.Dense, layers+1),
	}
}

// Output is the activation of the last layer.
func (c *Cache) Output() *mat.Dense {
	return c.A[len(c.A)-1]
}

// Forward computes Z_i = W_i·A_{i-1} + b_i and A_i = activation_i(Z_i) for
// every layer. x is input_dim×m with one example per column. Like the gonum
// operations it is built on, Forward panics when x does not fit the model.
func Forward(model *Model, x mat.Matrix) *Cache {
	cache := newCache(model.L())
	cache.A[0] = mat.DenseCopyOf(x)
	for i := 1; i <= model.L(); i++ {
		layer := model.Layers[i-1]
		z := new(mat.Dense)
		z.Mul(layer.W, cache.A[i-1])
		z.Apply(func(r, _ int, v float64) float64 { return v + layer.B.At(r, 0) }, z)
		cache.Z[i] = z
		cache.A[i] = Activate(layer.Activation, z)
	}
	return cache
}

// Backward fills the gradients of cache, which must come from Forward on the
// same model and x, and stores the regularized cost in cache.J.
//
// The output error is A_L - Y, exact for cross-entropy paired with sigmoid
// outputs. Hidden errors apply each layer's derivative to its cached
// activation A_i.
func Backward(model *Model, cache *Cache, x, y mat.Matrix) *Cache {
	_, m := x.Dims()
	scale := 1 / float64(m)
	lambda := model.Params.Lambda
	L := model.L()

	cache.DZ[L] = CrossEntropy{}.Gradient(cache.A[L], y)
	cache.J = RegularizedCost(model, cache, y)

	for i := L; i >= 1; i-- {
		layer := model.Layers[i-1]
		if i < L {
			dz := new(mat.Dense)
			dz.Mul(model.Layers[i].W.T(), cache.DZ[i+1])
			dz.MulElem(dz, Derivative(layer.Activation, cache.A[i]))
			cache.DZ[i] = dz
		}

		dw := new(mat.Dense)
		dw.Mul(cache.DZ[i], cache.A[i-1].T())
		dw.Scale(scale, dw)
		if lambda != 0 {
			var decay mat.Dense
			decay.Scale(scale*lambda, layer.W)
			dw.Add(dw, &decay)
		}
		cache.DW[i] = dw

		rows, _ := cache.DZ[i].Dims()
		db := mat.NewDense(rows, 1, nil)
		for r := 0; r < rows; r++ {
			db.Set(r, 0, scale*mat.Sum(cache.DZ[i].RowView(r)))
		}
		cache.DB[i] = db
	}
	return cache
}

// String summarizes the cache dimensions for debugging.
func (c *Cache) String() string {
	var sb strings.Builder
	for i := range c.A {
		if c.A[i] == nil {
			continue
		}
		r, col := c.A[i].Dims()
		sb.WriteString(fmt.Sprintf("A%d: %dx%d", i, r, col))
		if i > 0 && c.DW[i] != nil {
			wr, wc := c.DW[i].Dims()
			sb.WriteString(fmt.Sprintf(" dW%d: %dx%d", i, wr, wc))
		}
		sb.WriteString("\n")
	}
	sb.WriteString(fmt.Sprintf("J: %g\n", c.J))
	return sb.String()
}
