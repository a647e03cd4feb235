package onnx

import (
	"fmt"

	"github.com/simpledl/gon/neuralnet"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// OpHandler evaluates one node. Every tensor is a rank-2 matrix; INT64 and
// BOOL results are stored as whole float64 values.
type OpHandler func(node *NodeProto, inputs []*mat.Dense) ([]*mat.Dense, error)

// Registry maps operator types to handlers.
type Registry struct {
	handlers map[string]OpHandler
}

// NewRegistry returns a registry holding the operators that exported graphs use.
func NewRegistry() *Registry {
	r := &Registry{handlers: make(map[string]OpHandler)}
	r.Register("MatMul", matMul)
	r.Register("Add", add)
	r.Register("Relu", activation(neuralnet.ReLU{}))
	r.Register("Sigmoid", activation(neuralnet.Sigmoid{}))
	r.Register("Tanh", activation(neuralnet.Tanh{}))
	r.Register("ArgMax", argMax)
	r.Register("Greater", compare(func(a, b float64) bool { return a > b }))
	r.Register("GreaterOrEqual", compare(func(a, b float64) bool { return a >= b }))
	return r
}

// Register adds or replaces the handler for opType.
func (r *Registry) Register(opType string, h OpHandler) {
	r.handlers[opType] = h
}

// Execute runs node on inputs.
func (r *Registry) Execute(node *NodeProto, inputs []*mat.Dense) ([]*mat.Dense, error) {
	h, ok := r.handlers[node.OpType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedOp, node.OpType)
	}
	return h(node, inputs)
}

// Run evaluates g with the default registry.
func Run(g *GraphProto, inputs map[string]*mat.Dense) (map[string]*mat.Dense, error) {
	return NewRegistry().Run(g, inputs)
}

// Run evaluates the nodes of g in order and returns the declared outputs.
// Initializers are loaded first and may be overridden by inputs.
func (r *Registry) Run(g *GraphProto, inputs map[string]*mat.Dense) (map[string]*mat.Dense, error) {
	env := make(map[string]*mat.Dense, len(g.Initializers)+len(inputs)+len(g.Nodes))
	for i := range g.Initializers {
		t := &g.Initializers[i]
		m, err := TensorMatrix(t)
		if err != nil {
			return nil, err
		}
		env[t.Name] = m
	}
	for name, m := range inputs {
		env[name] = m
	}

	for i := range g.Nodes {
		node := &g.Nodes[i]
		args := make([]*mat.Dense, len(node.Inputs))
		for j, name := range node.Inputs {
			m, ok := env[name]
			if !ok {
				return nil, fmt.Errorf("node %s: %w: %s", node.Name, ErrMissingTensor, name)
			}
			args[j] = m
		}
		outs, err := r.execute(node, args)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", node.Name, err)
		}
		if len(outs) != len(node.Outputs) {
			return nil, fmt.Errorf("node %s: produced %d outputs, want %d", node.Name, len(outs), len(node.Outputs))
		}
		for j, name := range node.Outputs {
			env[name] = outs[j]
		}
	}

	result := make(map[string]*mat.Dense, len(g.Outputs))
	for _, out := range g.Outputs {
		m, ok := env[out.Name]
		if !ok {
			return nil, fmt.Errorf("%w: output %s", ErrMissingTensor, out.Name)
		}
		result[out.Name] = m
	}
	return result, nil
}

// execute turns gonum shape panics into errors.
func (r *Registry) execute(node *NodeProto, args []*mat.Dense) (outs []*mat.Dense, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			e, ok := rec.(mat.Error)
			if !ok {
				panic(rec)
			}
			err = fmt.Errorf("%s: %w", node.OpType, e)
		}
	}()
	return r.Execute(node, args)
}

// Inputs builds the feed for an exported graph: X plus, for binary models,
// the threshold T.
func Inputs(g *GraphProto, x *mat.Dense, threshold float64) map[string]*mat.Dense {
	feed := map[string]*mat.Dense{"X": x}
	for _, in := range g.Inputs {
		if in.Name == ThresholdInput {
			feed[ThresholdInput] = mat.NewDense(1, 1, []float64{threshold})
		}
	}
	return feed
}

// TensorMatrix converts a DOUBLE tensor of rank at most two to a matrix.
// Rank-1 and scalar tensors become a single row.
func TensorMatrix(t *TensorProto) (*mat.Dense, error) {
	data, err := t.Float64s()
	if err != nil {
		return nil, err
	}
	var r, c int
	switch len(t.Dims) {
	case 0:
		r, c = 1, 1
	case 1:
		r, c = 1, int(t.Dims[0])
	case 2:
		r, c = int(t.Dims[0]), int(t.Dims[1])
	default:
		return nil, fmt.Errorf("%w: tensor %s has rank %d", ErrMalformed, t.Name, len(t.Dims))
	}
	if r*c != len(data) || r == 0 || c == 0 {
		return nil, fmt.Errorf("%w: tensor %s has %d values for dims %v", ErrMalformed, t.Name, len(data), t.Dims)
	}
	return mat.NewDense(r, c, data), nil
}

func arity(node *NodeProto, inputs []*mat.Dense, n int) error {
	if len(inputs) != n {
		return fmt.Errorf("%s takes %d inputs, got %d", node.OpType, n, len(inputs))
	}
	return nil
}

func matMul(node *NodeProto, inputs []*mat.Dense) ([]*mat.Dense, error) {
	if err := arity(node, inputs, 2); err != nil {
		return nil, err
	}
	var out mat.Dense
	out.Mul(inputs[0], inputs[1])
	return []*mat.Dense{&out}, nil
}

// broadcast applies fn to a and b after stretching size-one dimensions.
func broadcast(a, b *mat.Dense, fn func(x, y float64) float64) (*mat.Dense, error) {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	r, c := max(ar, br), max(ac, bc)
	if (ar != r && ar != 1) || (br != r && br != 1) || (ac != c && ac != 1) || (bc != c && bc != 1) {
		return nil, fmt.Errorf("%w: cannot broadcast %dx%d with %dx%d", neuralnet.ErrDimensionMismatch, ar, ac, br, bc)
	}
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, fn(a.At(min(i, ar-1), min(j, ac-1)), b.At(min(i, br-1), min(j, bc-1))))
		}
	}
	return out, nil
}

func add(node *NodeProto, inputs []*mat.Dense) ([]*mat.Dense, error) {
	if err := arity(node, inputs, 2); err != nil {
		return nil, err
	}
	out, err := broadcast(inputs[0], inputs[1], func(x, y float64) float64 { return x + y })
	if err != nil {
		return nil, err
	}
	return []*mat.Dense{out}, nil
}

func activation(f neuralnet.ActivationFunction) OpHandler {
	return func(node *NodeProto, inputs []*mat.Dense) ([]*mat.Dense, error) {
		if err := arity(node, inputs, 1); err != nil {
			return nil, err
		}
		return []*mat.Dense{neuralnet.Activate(f, inputs[0])}, nil
	}
}

func compare(pred func(a, b float64) bool) OpHandler {
	return func(node *NodeProto, inputs []*mat.Dense) ([]*mat.Dense, error) {
		if err := arity(node, inputs, 2); err != nil {
			return nil, err
		}
		out, err := broadcast(inputs[0], inputs[1], func(x, y float64) float64 {
			if pred(x, y) {
				return 1
			}
			return 0
		})
		if err != nil {
			return nil, err
		}
		return []*mat.Dense{out}, nil
	}
}

// argMax supports axis 0 and 1 of a matrix. keepdims=0 is treated like 1
// since results stay rank 2.
func argMax(node *NodeProto, inputs []*mat.Dense) ([]*mat.Dense, error) {
	if err := arity(node, inputs, 1); err != nil {
		return nil, err
	}
	var axis int64
	if a, ok := node.Attr("axis"); ok {
		axis = a.I
	}
	x := inputs[0]
	r, c := x.Dims()
	switch axis {
	case 0, -2:
		out := mat.NewDense(1, c, nil)
		col := make([]float64, r)
		for j := 0; j < c; j++ {
			out.Set(0, j, float64(floats.MaxIdx(mat.Col(col, j, x))))
		}
		return []*mat.Dense{out}, nil
	case 1, -1:
		out := mat.NewDense(r, 1, nil)
		for i := 0; i < r; i++ {
			out.Set(i, 0, float64(floats.MaxIdx(x.RawRowView(i))))
		}
		return []*mat.Dense{out}, nil
	}
	return nil, fmt.Errorf("ArgMax: axis %d out of range", axis)
}
