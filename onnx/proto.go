package onnx

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Subset of the ONNX protobuf messages needed to describe an exported
// network. Field numbers follow onnx.proto.

// ModelProto is the top-level ONNX file.
type ModelProto struct {
	IRVersion       int64
	OpsetImport     []OperatorSetID
	ProducerName    string
	ProducerVersion string
	Domain          string
	ModelVersion    int64
	DocString       string
	Graph           *GraphProto
	MetadataProps   []StringStringEntry
}

// GraphProto is a static dataflow graph: nodes in execution order, the
// declared inputs and outputs, and the constant tensors it carries.
type GraphProto struct {
	Name         string
	Nodes        []NodeProto
	Inputs       []ValueInfoProto
	Outputs      []ValueInfoProto
	Initializers []TensorProto
	DocString    string
}

// NodeProto is a single operation.
type NodeProto struct {
	Name       string
	OpType     string
	Inputs     []string
	Outputs    []string
	Attributes []AttributeProto
	Domain     string
}

// TensorProto is a concrete tensor value. Exported tensors use RawData,
// little-endian, in row-major order.
type TensorProto struct {
	Name       string
	DataType   int32
	Dims       []int64
	RawData    []byte
	DoubleData []float64
}

// ValueInfoProto describes a graph input or output.
type ValueInfoProto struct {
	Name string
	Type *TypeProto
}

type TypeProto struct {
	TensorType *TensorTypeProto
}

type TensorTypeProto struct {
	ElemType int32
	Shape    *TensorShapeProto
}

type TensorShapeProto struct {
	Dims []DimensionProto
}

// DimensionProto is either a fixed size or a named symbolic size.
type DimensionProto struct {
	DimValue int64
	DimParam string
}

type AttributeProto struct {
	Name string
	Type int32
	F    float32
	I    int64
	S    []byte
	Ints []int64
}

type OperatorSetID struct {
	Domain  string
	Version int64
}

type StringStringEntry struct {
	Key   string
	Value string
}

// ONNX data types (TensorProto.DataType).
const (
	TensorProtoFloat  = 1  // float32
	TensorProtoInt64  = 7  // int64
	TensorProtoBool   = 9  // bool
	TensorProtoDouble = 11 // float64
)

// ONNX attribute types (AttributeProto.Type).
const (
	AttributeProtoFloat  = 1
	AttributeProtoInt    = 2
	AttributeProtoString = 3
	AttributeProtoInts   = 7
)

// DoubleTensor builds a DOUBLE tensor from row-major data.
func DoubleTensor(name string, dims []int64, data []float64) TensorProto {
	raw := make([]byte, 8*len(data))
	for i, v := range data {
		binary.LittleEndian.PutUint64(raw[8*i:], math.Float64bits(v))
	}
	return TensorProto{
		Name:     name,
		DataType: TensorProtoDouble,
		Dims:     append([]int64(nil), dims...),
		RawData:  raw,
	}
}

// Float64s returns the values of a DOUBLE tensor.
func (t *TensorProto) Float64s() ([]float64, error) {
	if t.DataType != TensorProtoDouble {
		return nil, fmt.Errorf("tensor %s: data type %d is not DOUBLE", t.Name, t.DataType)
	}
	if len(t.RawData) == 0 {
		return append([]float64(nil), t.DoubleData...), nil
	}
	if len(t.RawData)%8 != 0 {
		return nil, fmt.Errorf("%w: tensor %s raw data is %d bytes", ErrMalformed, t.Name, len(t.RawData))
	}
	out := make([]float64, len(t.RawData)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(t.RawData[8*i:]))
	}
	return out, nil
}

// Size is the number of elements implied by Dims.
func (t *TensorProto) Size() int64 {
	n := int64(1)
	for _, d := range t.Dims {
		n *= d
	}
	return n
}

// TensorValueInfo declares a tensor-typed input or output. A dim of -1 in
// dims is replaced by the symbolic name param.
func TensorValueInfo(name string, elemType int32, dims []int64, param string) ValueInfoProto {
	shape := &TensorShapeProto{Dims: make([]DimensionProto, len(dims))}
	for i, d := range dims {
		if d < 0 {
			shape.Dims[i] = DimensionProto{DimParam: param}
		} else {
			shape.Dims[i] = DimensionProto{DimValue: d}
		}
	}
	return ValueInfoProto{
		Name: name,
		Type: &TypeProto{TensorType: &TensorTypeProto{ElemType: elemType, Shape: shape}},
	}
}

// Attr returns the attribute called name, if present.
func (n *NodeProto) Attr(name string) (AttributeProto, bool) {
	for _, a := range n.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return AttributeProto{}, false
}

// Initializer returns the initializer called name, if present.
func (g *GraphProto) Initializer(name string) (*TensorProto, bool) {
	for i := range g.Initializers {
		if g.Initializers[i].Name == name {
			return &g.Initializers[i], true
		}
	}
	return nil, false
}
