package dset

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/lk2023060901/niml-dset-go/internal/niml"
	"github.com/lk2023060901/niml-dset-go/pkg/matrix"
)

const listSeparator = ";"

// EncodeStringList 以 ";" 连接字符串，末尾不带分隔符。
func EncodeStringList(items []string) string {
	return strings.Join(items, listSeparator)
}

// DecodeStringList 以 ";" 切分字符串，并丢弃末尾分隔符产生的一个空字段。
// 空字符串解码为空列表。
//
// 与 EncodeStringList 不对称：其他写出方会以 ";" 结尾。
func DecodeStringList(s string) []string {
	parts := strings.Split(s, listSeparator)
	if parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}

// IsSorted 判断序列是否单调不减。空序列与单元素序列视为有序。
func IsSorted(v []int) bool {
	for i := 1; i < len(v); i++ {
		if v[i] < v[i-1] {
			return false
		}
	}
	return true
}

// ClassifyType 对整个矩阵给出 Generic_Int 或 Generic_Float，不按列区分。
func ClassifyType(m *matrix.Matrix) string {
	if m.DType().IsInteger() {
		return TypeGenericInt
	}
	return TypeGenericFloat
}

// ColumnRanges 返回每列 "<min> <max> <minRow> <maxRow>" 形式的范围描述。
// 并列时取第一次出现的位置；没有行时为 "0 0 -1 -1"。
func ColumnRanges(m *matrix.Matrix) []string {
	printer := niml.ValuePrinter(m.DType())
	return lo.Times(m.Cols(), func(j int) string {
		if m.Rows() == 0 {
			return "0 0 -1 -1"
		}
		minRow, maxRow := m.ArgMinCol(j), m.ArgMaxCol(j)
		return fmt.Sprintf("%s %s %d %d",
			printer(m.At(minRow, j)), printer(m.At(maxRow, j)), minRow, maxRow)
	})
}
