// Package matrix 提供带运行时数据类型的二维数值矩阵。
//
// 行表示表面节点，列表示测量通道。矩阵内部统一以 float64 保存数值，
// 但所有写入都会先按 DataType 取整/截断，保证数值始终可以无损地
// 以该数据类型写出。
package matrix

import "math"

// DataType 表示矩阵元素的运行时数据类型。
type DataType int

// 支持的数据类型。
const (
	Uint8 DataType = iota
	Int16
	Int32
	Int64
	Float32
	Float64
)

// IsInteger 判断是否为整数类型。
func (dt DataType) IsInteger() bool {
	switch dt {
	case Uint8, Int16, Int32, Int64:
		return true
	default:
		return false
	}
}

// Size 返回单个元素的字节数。
func (dt DataType) Size() int {
	switch dt {
	case Uint8:
		return 1
	case Int16:
		return 2
	case Int32, Float32:
		return 4
	case Int64, Float64:
		return 8
	default:
		panic("unknown data type")
	}
}

// String 返回数据类型的可读名称。
func (dt DataType) String() string {
	switch dt {
	case Uint8:
		return "uint8"
	case Int16:
		return "int16"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	default:
		return "unknown"
	}
}

// Fits 判断 v 按向零截断后能否不回绕地存入该数据类型。
func (dt DataType) Fits(v float64) bool {
	if !dt.IsInteger() {
		return true
	}
	if math.IsNaN(v) {
		return false
	}
	v = math.Trunc(v)
	switch dt {
	case Uint8:
		return v >= 0 && v <= math.MaxUint8
	case Int16:
		return v >= math.MinInt16 && v <= math.MaxInt16
	case Int32:
		return v >= math.MinInt32 && v <= math.MaxInt32
	default:
		return v >= math.MinInt64 && v < math.MaxInt64
	}
}

// Cast 将 v 转换为该数据类型可表示的值。
//
// 整数类型向零截断并按位宽回绕，与 C 风格的强制转换一致；Float32 会丢失
// 超出单精度的尾数位。
func (dt DataType) Cast(v float64) float64 {
	switch dt {
	case Uint8:
		return float64(uint8(int64(math.Trunc(v))))
	case Int16:
		return float64(int16(int64(math.Trunc(v))))
	case Int32:
		return float64(int32(int64(math.Trunc(v))))
	case Int64:
		return float64(int64(math.Trunc(v)))
	case Float32:
		return float64(float32(v))
	default:
		return v
	}
}
