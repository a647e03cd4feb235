package onnx

import (
	"fmt"
	"math"
	"os"

	"google.golang.org/protobuf/encoding/protowire"
)

// Load reads an .onnx file.
func Load(path string) (*ModelProto, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read onnx file: %w", err)
	}
	return Unmarshal(data)
}

// Unmarshal decodes the fields of onnx.proto that ModelProto models.
// Unknown fields are skipped.
func Unmarshal(data []byte) (*ModelProto, error) {
	m := &ModelProto{}
	if err := readModel(data, m); err != nil {
		return nil, fmt.Errorf("failed to parse model: %w", err)
	}
	return m, nil
}

type fieldFunc func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

func walk(b []byte, fn fieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return malformed(n)
		}
		b = b[n:]
		n, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if n < 0 {
			return malformed(n)
		}
		b = b[n:]
	}
	return nil
}

func malformed(n int) error {
	return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
}

func skip(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	return protowire.ConsumeFieldValue(num, typ, b), nil
}

func str(typ protowire.Type, b []byte, dst *string) (int, error) {
	if typ != protowire.BytesType {
		return -1, nil
	}
	v, n := protowire.ConsumeString(b)
	*dst = v
	return n, nil
}

func varint(typ protowire.Type, b []byte, dst *int64) (int, error) {
	if typ != protowire.VarintType {
		return -1, nil
	}
	v, n := protowire.ConsumeVarint(b)
	*dst = int64(v)
	return n, nil
}

// message consumes a length-delimited field and hands its payload to read.
func message(typ protowire.Type, b []byte, read func([]byte) error) (int, error) {
	if typ != protowire.BytesType {
		return -1, nil
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return n, nil
	}
	return n, read(v)
}

// repeatedVarint accepts both the packed and the unpacked encoding.
func repeatedVarint(typ protowire.Type, b []byte, dst *[]int64) (int, error) {
	switch typ {
	case protowire.VarintType:
		v, n := protowire.ConsumeVarint(b)
		*dst = append(*dst, int64(v))
		return n, nil
	case protowire.BytesType:
		packed, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return n, nil
		}
		for len(packed) > 0 {
			v, k := protowire.ConsumeVarint(packed)
			if k < 0 {
				return k, nil
			}
			*dst = append(*dst, int64(v))
			packed = packed[k:]
		}
		return n, nil
	}
	return -1, nil
}

func readModel(data []byte, m *ModelProto) error {
	return walk(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return varint(typ, b, &m.IRVersion)
		case 2:
			return str(typ, b, &m.ProducerName)
		case 3:
			return str(typ, b, &m.ProducerVersion)
		case 4:
			return str(typ, b, &m.Domain)
		case 5:
			return varint(typ, b, &m.ModelVersion)
		case 6:
			return str(typ, b, &m.DocString)
		case 7:
			return message(typ, b, func(v []byte) error {
				m.Graph = &GraphProto{}
				return readGraph(v, m.Graph)
			})
		case 8:
			return message(typ, b, func(v []byte) error {
				var op OperatorSetID
				err := walk(v, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
					switch num {
					case 1:
						return str(typ, b, &op.Domain)
					case 2:
						return varint(typ, b, &op.Version)
					}
					return skip(num, typ, b)
				})
				m.OpsetImport = append(m.OpsetImport, op)
				return err
			})
		case 14:
			return message(typ, b, func(v []byte) error {
				var kv StringStringEntry
				err := walk(v, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
					switch num {
					case 1:
						return str(typ, b, &kv.Key)
					case 2:
						return str(typ, b, &kv.Value)
					}
					return skip(num, typ, b)
				})
				m.MetadataProps = append(m.MetadataProps, kv)
				return err
			})
		}
		return skip(num, typ, b)
	})
}

func readGraph(data []byte, g *GraphProto) error {
	return walk(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return message(typ, b, func(v []byte) error {
				var n NodeProto
				err := readNode(v, &n)
				g.Nodes = append(g.Nodes, n)
				return err
			})
		case 2:
			return str(typ, b, &g.Name)
		case 5:
			return message(typ, b, func(v []byte) error {
				var t TensorProto
				err := readTensor(v, &t)
				g.Initializers = append(g.Initializers, t)
				return err
			})
		case 10:
			return str(typ, b, &g.DocString)
		case 11, 12:
			return message(typ, b, func(v []byte) error {
				var vi ValueInfoProto
				err := readValueInfo(v, &vi)
				if num == 11 {
					g.Inputs = append(g.Inputs, vi)
				} else {
					g.Outputs = append(g.Outputs, vi)
				}
				return err
			})
		}
		return skip(num, typ, b)
	})
}

func readNode(data []byte, n *NodeProto) error {
	return walk(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1, 2:
			var s string
			k, err := str(typ, b, &s)
			if num == 1 {
				n.Inputs = append(n.Inputs, s)
			} else {
				n.Outputs = append(n.Outputs, s)
			}
			return k, err
		case 3:
			return str(typ, b, &n.Name)
		case 4:
			return str(typ, b, &n.OpType)
		case 5:
			return message(typ, b, func(v []byte) error {
				var a AttributeProto
				err := readAttribute(v, &a)
				n.Attributes = append(n.Attributes, a)
				return err
			})
		case 7:
			return str(typ, b, &n.Domain)
		}
		return skip(num, typ, b)
	})
}

func readAttribute(data []byte, a *AttributeProto) error {
	return walk(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return str(typ, b, &a.Name)
		case 2:
			if typ != protowire.Fixed32Type {
				return -1, nil
			}
			v, n := protowire.ConsumeFixed32(b)
			a.F = math.Float32frombits(v)
			return n, nil
		case 3:
			return varint(typ, b, &a.I)
		case 4:
			if typ != protowire.BytesType {
				return -1, nil
			}
			v, n := protowire.ConsumeBytes(b)
			a.S = append([]byte(nil), v...)
			return n, nil
		case 8:
			return repeatedVarint(typ, b, &a.Ints)
		case 20:
			var t int64
			k, err := varint(typ, b, &t)
			a.Type = int32(t)
			return k, err
		}
		return skip(num, typ, b)
	})
}

func readTensor(data []byte, t *TensorProto) error {
	return walk(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return repeatedVarint(typ, b, &t.Dims)
		case 2:
			var dt int64
			k, err := varint(typ, b, &dt)
			t.DataType = int32(dt)
			return k, err
		case 8:
			return str(typ, b, &t.Name)
		case 9:
			if typ != protowire.BytesType {
				return -1, nil
			}
			v, n := protowire.ConsumeBytes(b)
			t.RawData = append([]byte(nil), v...)
			return n, nil
		case 10:
			switch typ {
			case protowire.Fixed64Type:
				v, n := protowire.ConsumeFixed64(b)
				t.DoubleData = append(t.DoubleData, math.Float64frombits(v))
				return n, nil
			case protowire.BytesType:
				packed, n := protowire.ConsumeBytes(b)
				if n < 0 {
					return n, nil
				}
				for len(packed) >= 8 {
					v, k := protowire.ConsumeFixed64(packed)
					t.DoubleData = append(t.DoubleData, math.Float64frombits(v))
					packed = packed[k:]
				}
				return n, nil
			}
			return -1, nil
		}
		return skip(num, typ, b)
	})
}

func readValueInfo(data []byte, vi *ValueInfoProto) error {
	return walk(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return str(typ, b, &vi.Name)
		case 2:
			return message(typ, b, func(v []byte) error {
				vi.Type = &TypeProto{}
				return walk(v, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
					if num != 1 {
						return skip(num, typ, b)
					}
					return message(typ, b, func(v []byte) error {
						vi.Type.TensorType = &TensorTypeProto{}
						return readTensorType(v, vi.Type.TensorType)
					})
				})
			})
		}
		return skip(num, typ, b)
	})
}

func readTensorType(data []byte, tt *TensorTypeProto) error {
	return walk(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			var et int64
			k, err := varint(typ, b, &et)
			tt.ElemType = int32(et)
			return k, err
		case 2:
			return message(typ, b, func(v []byte) error {
				tt.Shape = &TensorShapeProto{}
				return walk(v, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
					if num != 1 {
						return skip(num, typ, b)
					}
					return message(typ, b, func(v []byte) error {
						var d DimensionProto
						err := walk(v, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
							switch num {
							case 1:
								return varint(typ, b, &d.DimValue)
							case 2:
								return str(typ, b, &d.DimParam)
							}
							return skip(num, typ, b)
						})
						tt.Shape.Dims = append(tt.Shape.Dims, d)
						return err
					})
				})
			})
		}
		return skip(num, typ, b)
	})
}
