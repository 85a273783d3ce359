package matrix

import (
	"math"

	"github.com/cockroachdb/errors"
)

// ErrShape 表示矩阵形状非法（列数为 0、行长度不一致等）。
var ErrShape = errors.New("matrix: invalid shape")

// Matrix 是按行优先存储的稠密二维矩阵。
//
// 行数可以为 0，列数必须至少为 1。
type Matrix struct {
	rows  int
	cols  int
	dtype DataType
	data  []float64
}

// New 创建一个 rows x cols 的全零矩阵。
func New(rows, cols int, dtype DataType) (*Matrix, error) {
	if rows < 0 || cols < 1 {
		return nil, errors.Wrapf(ErrShape, "rows=%d cols=%d", rows, cols)
	}
	return &Matrix{
		rows:  rows,
		cols:  cols,
		dtype: dtype,
		data:  make([]float64, rows*cols),
	}, nil
}

// FromRows 按行构造矩阵，每行长度必须一致。
//
// cols 仅在 rows 为空时用于确定列数。
func FromRows(dtype DataType, cols int, rows [][]float64) (*Matrix, error) {
	if len(rows) > 0 {
		cols = len(rows[0])
	}
	m, err := New(len(rows), cols, dtype)
	if err != nil {
		return nil, err
	}
	for i, row := range rows {
		if len(row) != cols {
			return nil, errors.Wrapf(ErrShape, "row %d has %d values, expected %d", i, len(row), cols)
		}
		for j, v := range row {
			m.Set(i, j, v)
		}
	}
	return m, nil
}

// FromFloats 以 Float64 构造矩阵。
func FromFloats(rows [][]float64) (*Matrix, error) {
	return FromRows(Float64, 1, rows)
}

// FromInts 以 Int32 构造矩阵。
func FromInts(rows [][]int) (*Matrix, error) {
	fr := make([][]float64, len(rows))
	for i, row := range rows {
		fr[i] = make([]float64, len(row))
		for j, v := range row {
			fr[i][j] = float64(v)
		}
	}
	return FromRows(Int32, 1, fr)
}

// FromColumn 将一维序列构造为 len(values) x 1 的列向量。
func FromColumn(dtype DataType, values []float64) *Matrix {
	m := &Matrix{rows: len(values), cols: 1, dtype: dtype, data: make([]float64, len(values))}
	for i, v := range values {
		m.data[i] = dtype.Cast(v)
	}
	return m
}

func (m *Matrix) Rows() int { return m.rows }

func (m *Matrix) Cols() int { return m.cols }

// Shape 返回 (rows, cols)。
func (m *Matrix) Shape() (int, int) { return m.rows, m.cols }

func (m *Matrix) DType() DataType { return m.dtype }

// Len 返回元素总数。
func (m *Matrix) Len() int { return len(m.data) }

// At 返回第 i 行第 j 列的值。
func (m *Matrix) At(i, j int) float64 {
	return m.data[i*m.cols+j]
}

// Set 写入第 i 行第 j 列的值，写入前按矩阵数据类型转换。
func (m *Matrix) Set(i, j int, v float64) {
	m.data[i*m.cols+j] = m.dtype.Cast(v)
}

// Row 返回第 i 行的拷贝。
func (m *Matrix) Row(i int) []float64 {
	out := make([]float64, m.cols)
	copy(out, m.data[i*m.cols:(i+1)*m.cols])
	return out
}

// Col 返回第 j 列的拷贝。
func (m *Matrix) Col(j int) []float64 {
	out := make([]float64, m.rows)
	for i := range out {
		out[i] = m.data[i*m.cols+j]
	}
	return out
}

// Values 返回按行优先排列的全部元素拷贝。
func (m *Matrix) Values() []float64 {
	out := make([]float64, len(m.data))
	copy(out, m.data)
	return out
}

// Clone 返回深拷贝。
func (m *Matrix) Clone() *Matrix {
	return &Matrix{rows: m.rows, cols: m.cols, dtype: m.dtype, data: m.Values()}
}

// AsType 返回转换为 dtype 的新矩阵；dtype 相同时返回 m 本身。
func (m *Matrix) AsType(dtype DataType) *Matrix {
	if dtype == m.dtype {
		return m
	}
	out := &Matrix{rows: m.rows, cols: m.cols, dtype: dtype, data: make([]float64, len(m.data))}
	for i, v := range m.data {
		out.data[i] = dtype.Cast(v)
	}
	return out
}

// FitsType 判断全部元素能否不回绕地转换为 dtype。
func (m *Matrix) FitsType(dtype DataType) bool {
	for _, v := range m.data {
		if !dtype.Fits(v) {
			return false
		}
	}
	return true
}

// Equal 判断两个矩阵的形状、数据类型与数值是否完全一致。
// NaN 与 NaN 视为相等。
func (m *Matrix) Equal(other *Matrix) bool {
	if m == nil || other == nil {
		return m == other
	}
	if m.rows != other.rows || m.cols != other.cols || m.dtype != other.dtype {
		return false
	}
	for i, v := range m.data {
		w := other.data[i]
		if v != w && !(math.IsNaN(v) && math.IsNaN(w)) {
			return false
		}
	}
	return true
}

// ArgMinCol 返回第 j 列最小值所在的行号，并列时取第一个。
// 与 numpy.argmin 一致，遇到 NaN 时返回第一个 NaN 的位置。
// 空矩阵返回 -1。
func (m *Matrix) ArgMinCol(j int) int {
	return m.argCol(j, func(a, b float64) bool { return a < b })
}

// ArgMaxCol 返回第 j 列最大值所在的行号，语义同 ArgMinCol。
func (m *Matrix) ArgMaxCol(j int) int {
	return m.argCol(j, func(a, b float64) bool { return a > b })
}

func (m *Matrix) argCol(j int, better func(a, b float64) bool) int {
	if m.rows == 0 {
		return -1
	}
	best := 0
	bestV := m.At(0, j)
	if math.IsNaN(bestV) {
		return 0
	}
	for i := 1; i < m.rows; i++ {
		v := m.At(i, j)
		if math.IsNaN(v) {
			return i
		}
		if better(v, bestV) {
			best, bestV = i, v
		}
	}
	return best
}
