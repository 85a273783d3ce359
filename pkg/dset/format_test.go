package dset

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/niml-dset-go/pkg/matrix"
)

func TestStringListAsymmetry(t *testing.T) {
	assert.Equal(t, "a;b;c", EncodeStringList([]string{"a", "b", "c"}))
	assert.Equal(t, "", EncodeStringList(nil))

	assert.Equal(t, []string{"a", "b", "c"}, DecodeStringList("a;b;c;"))
	assert.Equal(t, []string{"a", "b", "c"}, DecodeStringList("a;b;c"))
	assert.Equal(t, []string{}, DecodeStringList(""))
	// 只丢弃一个末尾空字段。
	assert.Equal(t, []string{"a", ""}, DecodeStringList("a;;"))
	assert.Equal(t, []string{"", "b"}, DecodeStringList(";b"))
}

func TestIsSorted(t *testing.T) {
	assert.True(t, IsSorted(nil))
	assert.True(t, IsSorted([]int{7}))
	assert.True(t, IsSorted([]int{1, 1, 2, 5}))
	assert.False(t, IsSorted([]int{1, 3, 2}))
	assert.False(t, IsSorted([]int{2, 1}))
}

func TestIsSortedProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		n := rng.Intn(20)
		v := make([]int, n)
		for j := range v {
			v[j] = rng.Intn(10) - 5
		}
		if rng.Intn(2) == 0 {
			sort.Ints(v)
		}
		assert.Equal(t, sort.IntsAreSorted(v), IsSorted(v), "%v", v)
	}
}

func TestClassifyTypeIsMatrixWide(t *testing.T) {
	ints, err := matrix.FromInts([][]int{{1, 2, 3}, {4, 5, 6}})
	require.NoError(t, err)
	assert.Equal(t, TypeGenericInt, ClassifyType(ints))

	// 只有一个元素带小数，但所有列都按浮点分类。
	floats, err := matrix.FromFloats([][]float64{{1, 2, 3}, {4, 5, 6.5}})
	require.NoError(t, err)
	assert.Equal(t, TypeGenericFloat, ClassifyType(floats))

	s := NewSerializer(WithUser("u"), WithHost("h"))
	for _, c := range []struct {
		m    *matrix.Matrix
		want string
	}{{ints, TypeGenericInt}, {floats, TypeGenericFloat}} {
		el := s.typeNode(FromMatrix(c.m))
		require.NoError(t, finalize(el))
		assert.Equal(t, c.want+";"+c.want+";"+c.want, string(stringData(t, el)))
	}
}

func TestColumnRanges(t *testing.T) {
	m, err := matrix.FromFloats([][]float64{{1, 2}, {3, 4}})
	require.NoError(t, err)
	assert.Equal(t, []string{"1.0 3.0 0 1", "2.0 4.0 0 1"}, ColumnRanges(m))

	ties, err := matrix.FromInts([][]int{{5}, {1}, {9}, {1}, {9}})
	require.NoError(t, err)
	assert.Equal(t, []string{"1 9 1 2"}, ColumnRanges(ties))

	nan, err := matrix.FromFloats([][]float64{{2}, {math.NaN()}, {0}})
	require.NoError(t, err)
	assert.Equal(t, []string{"nan nan 1 1"}, ColumnRanges(nan))

	empty, err := matrix.New(0, 2, matrix.Float32)
	require.NoError(t, err)
	assert.Equal(t, []string{"0 0 -1 -1", "0 0 -1 -1"}, ColumnRanges(empty))
}
