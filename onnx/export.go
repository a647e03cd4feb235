// Package onnx exports trained networks as ONNX graphs and runs them back.
//
// An L-layer model becomes, per layer i,
//
//	_Z{i} = MatMul(W{i}, A{i-1})   (A0 is the graph input X)
//	Z{i}  = Add(_Z{i}, B{i})
//	A{i}  = Relu(Z{i}) | Sigmoid(Z{i})
//
// followed by one terminal node writing Y: ArgMax over axis 0 when the output
// is wider than one unit, otherwise GreaterOrEqual against the threshold
// input T. Weights and biases are embedded as initializers so the graph
// carries everything it needs except X and T.
package onnx

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/simpledl/gon/neuralnet"
)

var (
	// ErrUnsupportedActivation reports an activation with no graph op.
	ErrUnsupportedActivation = errors.New("unsupported activation for export")
	ErrUnsupportedOp         = errors.New("unsupported operator")
	ErrMissingTensor         = errors.New("missing tensor")
	ErrMalformed             = errors.New("malformed onnx data")
)

const (
	IRVersion    = 7
	OpsetVersion = 13

	DefaultGraphName = "gon model"
	// BatchParam names the symbolic example dimension of X and Y.
	BatchParam = "m"
	// ThresholdInput is the second operand of the binary terminal node.
	ThresholdInput = "T"
)

func opFor(kind neuralnet.Kind) (string, error) {
	switch kind {
	case neuralnet.KindReLU:
		return "Relu", nil
	case neuralnet.KindSigmoid:
		return "Sigmoid", nil
	default:
		return "", fmt.Errorf("%w: %v", ErrUnsupportedActivation, kind)
	}
}

func layerNodes(model *neuralnet.Model, layer int) ([]NodeProto, error) {
	op, err := opFor(model.Layers[layer-1].Activation.Kind())
	if err != nil {
		return nil, fmt.Errorf("layer %d: %w", layer, err)
	}
	input := "X"
	if layer > 1 {
		input = "A" + strconv.Itoa(layer-1)
	}
	n := strconv.Itoa(layer)
	nodes := []NodeProto{
		{Name: "matmul" + n, OpType: "MatMul", Inputs: []string{"W" + n, input}, Outputs: []string{"_Z" + n}},
		{Name: "add" + n, OpType: "Add", Inputs: []string{"_Z" + n, "B" + n}, Outputs: []string{"Z" + n}},
		{Name: "act" + n, OpType: op, Inputs: []string{"Z" + n}, Outputs: []string{"A" + n}},
	}
	return nodes, nil
}

func terminalNode(model *neuralnet.Model) NodeProto {
	last := "A" + strconv.Itoa(model.L())
	if model.OutputDim() > 1 {
		return NodeProto{
			Name:    "predict",
			OpType:  "ArgMax",
			Inputs:  []string{last},
			Outputs: []string{"Y"},
			Attributes: []AttributeProto{
				{Name: "axis", Type: AttributeProtoInt, I: 0},
				{Name: "keepdims", Type: AttributeProtoInt, I: 1},
			},
		}
	}
	return NodeProto{
		Name:    "predict",
		OpType:  "GreaterOrEqual",
		Inputs:  []string{last, ThresholdInput},
		Outputs: []string{"Y"},
	}
}

// MakeGraph translates model into a graph that computes Predict. The graph
// is not checked for well-formedness beyond the activation mapping.
func MakeGraph(model *neuralnet.Model, name string) (*GraphProto, error) {
	if name == "" {
		name = DefaultGraphName
	}
	g := &GraphProto{
		Name:   name,
		Inputs: []ValueInfoProto{TensorValueInfo("X", TensorProtoDouble, []int64{int64(model.InputDim()), -1}, BatchParam)},
	}
	for i := 1; i <= model.L(); i++ {
		nodes, err := layerNodes(model, i)
		if err != nil {
			return nil, err
		}
		g.Nodes = append(g.Nodes, nodes...)

		l := model.Layers[i-1]
		n := strconv.Itoa(i)
		wr, wc := l.W.Dims()
		br, bc := l.B.Dims()
		wDims := []int64{int64(wr), int64(wc)}
		bDims := []int64{int64(br), int64(bc)}
		g.Inputs = append(g.Inputs,
			TensorValueInfo("W"+n, TensorProtoDouble, wDims, ""),
			TensorValueInfo("B"+n, TensorProtoDouble, bDims, ""),
		)
		g.Initializers = append(g.Initializers,
			DoubleTensor("W"+n, wDims, rowMajor(l.W)),
			DoubleTensor("B"+n, bDims, rowMajor(l.B)),
		)
	}
	g.Nodes = append(g.Nodes, terminalNode(model))

	if model.OutputDim() > 1 {
		g.Outputs = []ValueInfoProto{TensorValueInfo("Y", TensorProtoInt64, []int64{1, -1}, BatchParam)}
	} else {
		g.Inputs = append(g.Inputs, TensorValueInfo(ThresholdInput, TensorProtoDouble, []int64{1}, ""))
		g.Outputs = []ValueInfoProto{TensorValueInfo("Y", TensorProtoBool, []int64{1, -1}, BatchParam)}
	}
	return g, nil
}

// MakeModel wraps MakeGraph in a ModelProto. producer defaults to the graph
// name.
func MakeModel(model *neuralnet.Model, graphName, producer string) (*ModelProto, error) {
	g, err := MakeGraph(model, graphName)
	if err != nil {
		return nil, err
	}
	if producer == "" {
		producer = g.Name
	}
	mp := &ModelProto{
		IRVersion:    IRVersion,
		OpsetImport:  []OperatorSetID{{Domain: "", Version: OpsetVersion}},
		ProducerName: producer,
		ModelVersion: 1,
		Graph:        g,
		MetadataProps: []StringStringEntry{
			{Key: "shape", Value: fmt.Sprint(model.Shape)},
		},
	}
	if model.OutputDim() == 1 {
		mp.MetadataProps = append(mp.MetadataProps, StringStringEntry{
			Key:   "threshold",
			Value: strconv.FormatFloat(neuralnet.BinaryThreshold, 'g', -1, 64),
		})
	}
	return mp, nil
}

// Save writes model as an .onnx file.
func Save(model *neuralnet.Model, path, producer string) error {
	mp, err := MakeModel(model, "", producer)
	if err != nil {
		return err
	}
	data, err := Marshal(mp)
	if err != nil {
		return fmt.Errorf("failed to marshal onnx model: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write onnx file: %w", err)
	}
	return nil
}
