package neuralnet

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Kind tags the activation installed on a layer.
type Kind int

const (
	KindUnknown Kind = iota
	KindReLU
	KindSigmoid
	KindTanh
	KindLinear
)

var kindNames = map[Kind]string{
	KindReLU:    "relu",
	KindSigmoid: "sigmoid",
	KindTanh:    "tanh",
	KindLinear:  "linear",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind maps a name such as "relu" or "Sigmoid" to its Kind.
func ParseKind(name string) (Kind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("unknown activation %q", name)
}

// ActivationFunction is the per-layer nonlinearity.
//
// Derivative receives the activated value a = Activate(z) that the forward
// pass caches, not z. For ReLU this is the same test as on the pre-activation
// because a > 0 exactly when z > 0.
type ActivationFunction interface {
	Activate(z float64) float64
	Derivative(a float64) float64
	Kind() Kind
}

// ActivationFor returns the activation implementing k.
func ActivationFor(k Kind) (ActivationFunction, error) {
	switch k {
	case KindReLU:
		return ReLU{}, nil
	case KindSigmoid:
		return Sigmoid{}, nil
	case KindTanh:
		return Tanh{}, nil
	case KindLinear:
		return Linear{}, nil
	}
	return nil, fmt.Errorf("no activation for %v", k)
}

type ReLU struct{}

func (r ReLU) Activate(z float64) float64 {
	return math.Max(z, 0)
}

func (r ReLU) Derivative(a float64) float64 {
	if a > 0 {
		return 1
	}
	return 0
}

func (r ReLU) Kind() Kind { return KindReLU }

type Sigmoid struct{}

func (s Sigmoid) Activate(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

// Derivative expects a to already be sigmoid(z).
func (s Sigmoid) Derivative(a float64) float64 {
	return a * (1 - a)
}

func (s Sigmoid) Kind() Kind { return KindSigmoid }

type Tanh struct{}

func (t Tanh) Activate(z float64) float64 {
	return math.Tanh(z)
}

func (t Tanh) Derivative(a float64) float64 {
	return 1 - a*a
}

func (t Tanh) Kind() Kind { return KindTanh }

type Linear struct{}

func (l Linear) Activate(z float64) float64 {
	return z
}

func (l Linear) Derivative(a float64) float64 {
	return 1
}

func (l Linear) Kind() Kind { return KindLinear }

// Activate applies f elementwise to z.
func Activate(f ActivationFunction, z mat.Matrix) *mat.Dense {
	var a mat.Dense
	a.Apply(func(_, _ int, v float64) float64 { return f.Activate(v) }, z)
	return &a
}

// Derivative applies f's derivative elementwise to the activated values a.
func Derivative(f ActivationFunction, a mat.Matrix) *mat.Dense {
	var d mat.Dense
	d.Apply(func(_, _ int, v float64) float64 { return f.Derivative(v) }, a)
	return &d
}

// Softmax treats every column of x as an independent score vector.
// The column maximum is subtracted before exponentiating so large logits
// do not overflow.
func Softmax(x mat.Matrix) *mat.Dense {
	r, c := x.Dims()
	out := mat.NewDense(r, c, nil)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, x)
		peak := floats.Max(col)
		for i := range col {
			col[i] = math.Exp(col[i] - peak)
		}
		floats.Scale(1/floats.Sum(col), col)
		out.SetCol(j, col)
	}
	return out
}
