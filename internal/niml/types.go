package niml

import (
	"math"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/lk2023060901/niml-dset-go/pkg/matrix"
	"github.com/lk2023060901/niml-dset-go/pkg/util/merr"
	"github.com/lk2023060901/niml-dset-go/pkg/util/typeutil"
)

// TypeString 是字符串载荷的 ni_type。
const TypeString = "String"

var (
	typeNames = map[matrix.DataType]string{
		matrix.Uint8:   "byte",
		matrix.Int16:   "short",
		matrix.Int32:   "int",
		matrix.Float32: "float",
		matrix.Float64: "double",
	}

	nameTypes = func() map[string]matrix.DataType {
		out := make(map[string]matrix.DataType, len(typeNames))
		for dt, name := range typeNames {
			out[name] = dt
		}
		return out
	}()

	// wireTypes 是可以直接写出的数据类型。
	wireTypes = typeutil.NewSet(matrix.Uint8, matrix.Int16, matrix.Int32, matrix.Float32, matrix.Float64)
)

// TypeName 返回 dtype 在 NIML 中的类型名。Int64 没有对应的类型名。
func TypeName(dt matrix.DataType) (string, bool) {
	name, ok := typeNames[dt]
	return name, ok
}

// ParseTypeName 将 NIML 类型名解析为 dtype。
// 对 "String" 返回 isString=true。
func ParseTypeName(name string) (dt matrix.DataType, isString bool, ok bool) {
	if name == TypeString {
		return 0, true, true
	}
	dt, ok = nameTypes[name]
	return dt, false, ok
}

// ToWireDType 返回可以写出的矩阵：Int64 收窄为 Int32，其余类型原样返回。
// 有值超出 int32 范围时返回 ErrUnsupportedPayload，node 用于错误信息。
// 不会修改 m。
func ToWireDType(node string, m *matrix.Matrix) (*matrix.Matrix, error) {
	if wireTypes.Contain(m.DType()) {
		return m, nil
	}
	if !m.FitsType(matrix.Int32) {
		return nil, errors.Wrap(merr.WrapErrUnsupportedPayload(node, Numeric{m}), "value out of int32 range")
	}
	return m.AsType(matrix.Int32), nil
}

// ValuePrinter 返回 dtype 对应的数值格式化函数。
//
// 整数不带小数部分；浮点数输出能按该精度还原的最短十进制表示，并总是带有
// 小数点（1 -> "1.0"）。nan/inf 为小写。
func ValuePrinter(dt matrix.DataType) func(float64) string {
	if dt.IsInteger() {
		return formatInt
	}
	bits := 64
	if dt == matrix.Float32 {
		bits = 32
	}
	return func(v float64) string {
		return formatFloat(v, bits)
	}
}

func formatInt(v float64) string {
	return strconv.FormatInt(int64(v), 10)
}

func formatFloat(v float64, bits int) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	abs := math.Abs(v)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		s := strconv.FormatFloat(v, 'e', -1, bits)
		mant, exp, _ := strings.Cut(s, "e")
		if !strings.Contains(mant, ".") {
			mant += ".0"
		}
		return mant + "e" + exp
	}
	s := strconv.FormatFloat(v, 'f', -1, bits)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
