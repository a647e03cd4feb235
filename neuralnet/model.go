package neuralnet

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrShape reports a layer width list that cannot describe a network.
	ErrShape = errors.New("invalid network shape")
	// ErrActivationCount reports an activation list that does not match the layer count.
	ErrActivationCount = errors.New("activation count does not match layer count")
	// ErrParameterShape reports weights or biases inconsistent with the shape.
	ErrParameterShape = errors.New("parameter shape mismatch")
	// ErrDimensionMismatch wraps a matrix dimension failure raised while computing.
	ErrDimensionMismatch = errors.New("dimension mismatch")
)

// Penalty selects how the L2 term is accumulated into the cost.
type Penalty int

const (
	// PairwisePenalty walks layers L..2 and adds ‖W_{i-1}‖² + ‖W_i‖² at each
	// step, so interior matrices count twice and a single-layer network has
	// no penalty at all.
	PairwisePenalty Penalty = iota
	// LayerPenalty adds ‖W_i‖² once for every layer. Its derivative equals
	// the (lambda/m)·W_i term added to the weight gradients.
	LayerPenalty
)

func (p Penalty) String() string {
	switch p {
	case PairwisePenalty:
		return "pairwise"
	case LayerPenalty:
		return "layer"
	}
	return fmt.Sprintf("penalty(%d)", int(p))
}

// Params holds the training hyperparameters carried with a model.
type Params struct {
	Alpha   float64 // learning rate
	Lambda  float64 // L2 coefficient, 0 disables regularization
	Penalty Penalty
}

func DefaultParams() Params {
	return Params{Alpha: 0.1, Lambda: 0, Penalty: PairwisePenalty}
}

// Vectorizer maps raw documents to feature columns. Models carry one for
// persistence only; training and inference never call it.
type Vectorizer interface {
	Transform(docs []string) (*mat.Dense, error)
	Features() int
}

// Layer is one linear transform followed by an activation. W is
// shape[i]×shape[i-1] and B is shape[i]×1.
type Layer struct {
	W          *mat.Dense
	B          *mat.Dense
	Activation ActivationFunction
}

// Model is a fully connected network. Layers[i-1] holds layer i of the
// network, so len(Layers) == len(Shape)-1.
type Model struct {
	Shape      []int
	Layers     []Layer
	Params     Params
	Vectorizer Vectorizer
}

type options struct {
	rng        *rand.Rand
	xavier     bool
	vectorizer Vectorizer
}

type Option func(*options)

// WithSeed makes weight initialization reproducible.
func WithSeed(seed int64) Option {
	return func(o *options) { o.rng = rand.New(rand.NewSource(seed)) }
}

// WithXavier draws weights from the Xavier uniform range instead of [0, 1).
func WithXavier() Option {
	return func(o *options) { o.xavier = true }
}

func WithVectorizer(v Vectorizer) Option {
	return func(o *options) { o.vectorizer = v }
}

// NewModel creates a network with random weights and zero biases.
func NewModel(shape []int, activations []ActivationFunction, params Params, opts ...Option) (*Model, error) {
	if err := checkShape(shape, activations); err != nil {
		return nil, err
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewSource(int64(NNSeed(shape))))
	}

	m := &Model{
		Shape:      append([]int(nil), shape...),
		Layers:     make([]Layer, len(shape)-1),
		Params:     params,
		Vectorizer: o.vectorizer,
	}
	for i := 1; i < len(shape); i++ {
		rows, cols := shape[i], shape[i-1]
		data := make([]float64, rows*cols)
		for k := range data {
			if o.xavier {
				data[k] = xavierInit(o.rng, cols, rows)
			} else {
				data[k] = o.rng.Float64()
			}
		}
		m.Layers[i-1] = Layer{
			W:          mat.NewDense(rows, cols, data),
			B:          mat.NewDense(rows, 1, nil),
			Activation: activations[i-1],
		}
	}
	return m, nil
}

// FromParameters rebuilds a model from stored weights and biases. A bias may
// arrive flattened to a 1×n row or n×1 column; it is reshaped to n×1.
func FromParameters(shape []int, weights, biases []*mat.Dense, activations []ActivationFunction, params Params) (*Model, error) {
	if err := checkShape(shape, activations); err != nil {
		return nil, err
	}
	if len(weights) != len(shape)-1 || len(biases) != len(shape)-1 {
		return nil, fmt.Errorf("%w: got %d weights and %d biases for %d layers",
			ErrParameterShape, len(weights), len(biases), len(shape)-1)
	}
	m := &Model{
		Shape:  append([]int(nil), shape...),
		Layers: make([]Layer, len(shape)-1),
		Params: params,
	}
	for i := range m.Layers {
		if weights[i] == nil || biases[i] == nil {
			return nil, fmt.Errorf("%w: layer %d has no parameters", ErrParameterShape, i+1)
		}
		b := mat.DenseCopyOf(biases[i])
		if r, c := b.Dims(); r == 1 || c == 1 {
			b = mat.NewDense(r*c, 1, b.RawMatrix().Data)
		}
		m.Layers[i] = Layer{
			W:          mat.DenseCopyOf(weights[i]),
			B:          b,
			Activation: activations[i],
		}
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func checkShape(shape []int, activations []ActivationFunction) error {
	if len(shape) < 2 {
		return fmt.Errorf("%w: need at least 2 widths, got %d", ErrShape, len(shape))
	}
	for i, w := range shape {
		if w <= 0 {
			return fmt.Errorf("%w: width %d at index %d", ErrShape, w, i)
		}
	}
	if len(activations) != len(shape)-1 {
		return fmt.Errorf("%w: %d activations for %d layers", ErrActivationCount, len(activations), len(shape)-1)
	}
	for i, a := range activations {
		if a == nil {
			return fmt.Errorf("%w: layer %d has no activation", ErrActivationCount, i+1)
		}
	}
	return nil
}

// Validate checks every parameter against the shape list.
func (m *Model) Validate() error {
	acts := make([]ActivationFunction, len(m.Layers))
	for i, l := range m.Layers {
		acts[i] = l.Activation
	}
	if err := checkShape(m.Shape, acts); err != nil {
		return err
	}
	for i, l := range m.Layers {
		if l.W == nil || l.B == nil {
			return fmt.Errorf("%w: layer %d has no parameters", ErrParameterShape, i+1)
		}
		if r, c := l.W.Dims(); r != m.Shape[i+1] || c != m.Shape[i] {
			return fmt.Errorf("%w: W%d is %dx%d, want %dx%d", ErrParameterShape, i+1, r, c, m.Shape[i+1], m.Shape[i])
		}
		if r, c := l.B.Dims(); r != m.Shape[i+1] || c != 1 {
			return fmt.Errorf("%w: B%d is %dx%d, want %dx1", ErrParameterShape, i+1, r, c, m.Shape[i+1])
		}
	}
	return nil
}

// L is the number of layers.
func (m *Model) L() int {
	return len(m.Layers)
}

// InputDim and OutputDim are shape[0] and shape[L].
func (m *Model) InputDim() int  { return m.Shape[0] }
func (m *Model) OutputDim() int { return m.Shape[len(m.Shape)-1] }

// Clone returns an independent copy. The vectorizer is inert payload and is
// shared rather than copied.
func (m *Model) Clone() *Model {
	c := &Model{
		Shape:      append([]int(nil), m.Shape...),
		Layers:     make([]Layer, len(m.Layers)),
		Params:     m.Params,
		Vectorizer: m.Vectorizer,
	}
	for i, l := range m.Layers {
		c.Layers[i] = Layer{
			W:          mat.DenseCopyOf(l.W),
			B:          mat.DenseCopyOf(l.B),
			Activation: l.Activation,
		}
	}
	return c
}

// Describe lists the dimensions of every parameter, e.g.
// "[(W1, 3x2) (B1, 3x1) (W2, 1x3) (B2, 1x1)]".
func (m *Model) Describe() string {
	var sb strings.Builder
	sb.WriteString("[")
	for i, l := range m.Layers {
		if i > 0 {
			sb.WriteString(" ")
		}
		wr, wc := l.W.Dims()
		br, bc := l.B.Dims()
		fmt.Fprintf(&sb, "(W%d, %dx%d) (B%d, %dx%d)", i+1, wr, wc, i+1, br, bc)
	}
	sb.WriteString("]")
	return sb.String()
}

// NNSeed derives a default seed from the layer widths.
func NNSeed(shape []int) int {
	seed := 0
	for _, w := range shape {
		seed += w
	}
	return seed
}

func xavierInit(rng *rand.Rand, numInputs int, numOutputs int) float64 {
	limit := math.Sqrt(6.0 / float64(numInputs+numOutputs))
	return 2*rng.Float64()*limit - limit
}
