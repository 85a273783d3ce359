package dset

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/lk2023060901/niml-dset-go/internal/niml"
	"github.com/lk2023060901/niml-dset-go/pkg/matrix"
	"github.com/lk2023060901/niml-dset-go/pkg/util/merr"
)

var fixedTime = time.Date(2024, time.March, 5, 14, 7, 9, 0, time.UTC)

const fixedHistory = "[tester@lab: Tue Mar  5 14:07:09 2024] Saved by " + DefaultComponent

func newTestSerializer() *Serializer {
	return NewSerializer(
		WithIDGenerator(niml.NewSequenceGenerator("XYZ")),
		WithUser("tester"),
		WithHost("lab"),
		WithClock(func() time.Time { return fixedTime }),
	)
}

func stringData(t *testing.T, el *niml.Element) niml.String {
	t.Helper()
	s, ok := el.Data.(niml.String)
	require.True(t, ok, "node %s has %T payload", el.Name, el.Data)
	return s
}

func numericData(t *testing.T, el *niml.Element) *matrix.Matrix {
	t.Helper()
	n, ok := el.Data.(niml.Numeric)
	require.True(t, ok, "node %s has %T payload", el.Name, el.Data)
	return n.Matrix
}

type SerializerSuite struct {
	suite.Suite
	s *Serializer
}

func (s *SerializerSuite) SetupTest() {
	s.s = newTestSerializer()
}

func (s *SerializerSuite) TestEndToEnd() {
	data, err := matrix.FromFloats([][]float64{{1, 2}, {3, 4}})
	s.Require().NoError(err)
	in := FromMatrix(data)

	g, err := s.s.Serialize(in)
	s.Require().NoError(err)

	s.Equal(GroupName, g.Name)
	s.Equal(niml.Attrs{
		{Key: "dset_type", Value: "Node_Bucket"},
		{Key: "self_idcode", Value: "XYZ_000"},
		{Key: "filename", Value: "null"},
		{Key: "label", Value: "null"},
		{Key: "ni_form", Value: "ni_group"},
	}, g.Attrs)

	s.Require().Len(g.Nodes, 7)
	names := make([]string, 0, len(g.Nodes))
	for _, el := range g.Nodes {
		names = append(names, el.Name+"/"+el.Attrs.Value(niml.AttrAtrName))
	}
	s.Equal([]string{
		"SPARSE_DATA/", "INDEX_LIST/",
		"AFNI_atr/COLMS_LABS", "AFNI_atr/COLMS_RANGE", "AFNI_atr/HISTORY_NOTE",
		"AFNI_atr/COLMS_TYPE", "AFNI_atr/COLMS_STATSYM",
	}, names)

	t := s.T()
	sparse := g.Nodes[0]
	s.Same(data, numericData(t, sparse), "data is wrapped verbatim")
	s.Equal("Node_Bucket_data", sparse.Attrs.Value("data_type"))
	s.Equal("2*double", sparse.Attrs.Value(niml.AttrNiType))
	s.Equal("2", sparse.Attrs.Value(niml.AttrNiDimen))

	index := g.Nodes[1]
	idx := numericData(t, index)
	s.Equal(matrix.Int32, idx.DType())
	s.Equal(2, idx.Rows())
	s.Equal(1, idx.Cols())
	s.Equal([]float64{0, 1}, idx.Values())
	s.Equal("Yes", index.Attrs.Value("sorted_node_def"))
	s.Equal("Node_Bucket_node_indices", index.Attrs.Value("data_type"))
	s.Equal("1*int", index.Attrs.Value(niml.AttrNiType))

	s.Equal(niml.String("col_0;col_1"), stringData(t, g.Nodes[2]))
	s.Equal(niml.String("1.0 3.0 0 1;2.0 4.0 0 1"), stringData(t, g.Nodes[3]))
	s.Equal(niml.String(fixedHistory), stringData(t, g.Nodes[4]))
	s.Equal(niml.String("Generic_Float;Generic_Float"), stringData(t, g.Nodes[5]))
	s.Equal(niml.String("none;none"), stringData(t, g.Nodes[6]))
	for _, el := range g.Nodes[2:] {
		s.Equal("String", el.Attrs.Value(niml.AttrNiType))
		s.Equal("1", el.Attrs.Value(niml.AttrNiDimen))
	}

	out, err := Deserialize(g)
	s.Require().NoError(err)
	s.True(data.Equal(out.Data))
	s.Equal([]int{0, 1}, out.NodeIndices)
	s.Equal([]string{"col_0", "col_1"}, out.Labels)
	s.Equal([]string{"none", "none"}, out.Stats)
	s.Equal(fixedHistory, out.History)
	s.NotContains(out.History, "\n")

	// 输入不被修改。
	s.Nil(in.NodeIndices)
	s.Nil(in.Labels)
	s.Nil(in.Stats)
	s.Empty(in.DsetType)
	s.Empty(in.Filename)
}

func (s *SerializerSuite) TestHeaderFromDataset() {
	data, err := matrix.FromInts([][]int{{1}})
	s.Require().NoError(err)
	g, err := s.s.Serialize(&Dataset{DsetType: "Node_Label", Data: data, Filename: "lh.niml.dset"})
	s.Require().NoError(err)
	s.Equal("Node_Label", g.Attrs.Value("dset_type"))
	s.Equal("lh.niml.dset", g.Attrs.Value("filename"))
	s.Equal("lh.niml.dset", g.Attrs.Value("label"))

	g2, err := s.s.Serialize(&Dataset{Data: data})
	s.Require().NoError(err)
	s.NotEqual(g.Attrs.Value("self_idcode"), g2.Attrs.Value("self_idcode"))
}

func (s *SerializerSuite) TestSuppliedFields() {
	data, err := matrix.FromInts([][]int{{1, 2}, {3, 4}, {5, 6}})
	s.Require().NoError(err)
	d := &Dataset{
		Data:        data,
		NodeIndices: []int{10, 4, 7},
		Labels:      []string{"beta", "tstat"},
		Stats:       []string{"none", "Ttest(12)"},
		History:     "first step",
	}
	g, err := s.s.Serialize(d)
	s.Require().NoError(err)

	t := s.T()
	s.Equal("No", g.Nodes[1].Attrs.Value("sorted_node_def"))
	s.Equal([]float64{10, 4, 7}, numericData(t, g.Nodes[1]).Values())
	s.Equal(niml.String("beta;tstat"), stringData(t, g.Nodes[2]))
	s.Equal(niml.String("1 5 0 2;2 6 0 2"), stringData(t, g.Nodes[3]))
	s.Equal(niml.String("first step\n"+fixedHistory), stringData(t, g.Nodes[4]))
	s.Equal(niml.String("Generic_Int;Generic_Int"), stringData(t, g.Nodes[5]))
	s.Equal(niml.String("none;Ttest(12)"), stringData(t, g.Nodes[6]))
	s.Equal("2*int", g.Nodes[0].Attrs.Value(niml.AttrNiType))
}

func (s *SerializerSuite) TestHistoryKeepsTrailingNewline() {
	data, err := matrix.FromFloats([][]float64{{1}})
	s.Require().NoError(err)
	g, err := s.s.Serialize(&Dataset{Data: data, History: "a\nb\n"})
	s.Require().NoError(err)
	s.Equal(niml.String("a\nb\n"+fixedHistory), stringData(s.T(), g.Nodes[4]))
}

func (s *SerializerSuite) TestSingleRowUsesBareTypeName() {
	data, err := matrix.FromFloats([][]float64{{1, 2, 3}})
	s.Require().NoError(err)
	g, err := s.s.Serialize(FromMatrix(data))
	s.Require().NoError(err)
	s.Equal("double", g.Nodes[0].Attrs.Value(niml.AttrNiType))
	s.Equal("1", g.Nodes[0].Attrs.Value(niml.AttrNiDimen))
	s.Equal("int", g.Nodes[1].Attrs.Value(niml.AttrNiType))
}

func (s *SerializerSuite) TestInt64IsNarrowed() {
	data, err := matrix.New(2, 1, matrix.Int64)
	s.Require().NoError(err)
	data.Set(1, 0, 9)
	g, err := s.s.Serialize(FromMatrix(data))
	s.Require().NoError(err)
	wire := numericData(s.T(), g.Nodes[0])
	s.Equal(matrix.Int32, wire.DType())
	s.Equal("1*int", g.Nodes[0].Attrs.Value(niml.AttrNiType))
	s.Equal(matrix.Int64, data.DType())
	s.Equal(niml.String("0 9 0 1"), stringData(s.T(), g.Nodes[3]))

	data.Set(0, 0, 1<<33)
	_, err = s.s.Serialize(FromMatrix(data))
	s.ErrorIs(err, merr.ErrUnsupportedPayload)
}

func (s *SerializerSuite) TestZeroRows() {
	data, err := matrix.New(0, 2, matrix.Float64)
	s.Require().NoError(err)
	g, err := s.s.Serialize(FromMatrix(data))
	s.Require().NoError(err)
	s.Equal("0", g.Nodes[0].Attrs.Value(niml.AttrNiDimen))
	s.Equal("Yes", g.Nodes[1].Attrs.Value("sorted_node_def"))
	s.Equal(niml.String("0 0 -1 -1;0 0 -1 -1"), stringData(s.T(), g.Nodes[3]))
}

func (s *SerializerSuite) TestValidation() {
	data, err := matrix.FromFloats([][]float64{{1, 2}, {3, 4}, {5, 6}})
	s.Require().NoError(err)

	_, err = s.s.Serialize(nil)
	s.ErrorIs(err, merr.ErrMissingData)
	_, err = s.s.Serialize(&Dataset{Labels: []string{"a"}})
	s.ErrorIs(err, merr.ErrMissingData)

	_, err = s.s.Serialize(&Dataset{Data: data, NodeIndices: []int{0, 1}})
	s.ErrorIs(err, merr.ErrShapeMismatch)
	s.NotErrorIs(err, merr.ErrLabelCount)

	_, err = s.s.Serialize(&Dataset{Data: data, NodeIndices: []int{}})
	s.ErrorIs(err, merr.ErrShapeMismatch, "an empty non-nil index list is present")

	_, err = s.s.Serialize(&Dataset{Data: data, Labels: []string{"a", "b", "c"}})
	s.ErrorIs(err, merr.ErrLabelCount)
	s.ErrorIs(err, merr.ErrShapeMismatch)

	_, err = s.s.Serialize(&Dataset{Data: data, Stats: []string{"none"}})
	s.ErrorIs(err, merr.ErrLabelCount)

	// 空的 labels/stats 视为缺省。
	_, err = s.s.Serialize(&Dataset{Data: data, Labels: []string{}, Stats: []string{}})
	s.NoError(err)
}

func (s *SerializerSuite) TestSerializeAll() {
	a, err := matrix.FromFloats([][]float64{{1}})
	s.Require().NoError(err)
	groups, err := s.s.SerializeAll([]*Dataset{FromMatrix(a), FromMatrix(a)})
	s.Require().NoError(err)
	s.Len(groups, 2)
	s.Equal("XYZ_001", groups[1].Attrs.Value("self_idcode"))

	_, err = s.s.SerializeAll([]*Dataset{FromMatrix(a), {}})
	s.ErrorIs(err, merr.ErrMissingData)
	s.Contains(err.Error(), "dataset 1")
}

func TestSerializer(t *testing.T) {
	suite.Run(t, new(SerializerSuite))
}

func TestFinalize(t *testing.T) {
	el := &niml.Element{Attrs: niml.Attrs{{Key: niml.AttrAtrName, Value: "X"}}, Data: niml.Strings{}}
	require.NoError(t, finalize(el))
	assert.Equal(t, NodeAttr, el.Name)
	assert.Equal(t, niml.String(""), el.Data)

	named := &niml.Element{Name: "CUSTOM", Data: niml.String("x")}
	require.NoError(t, finalize(named))
	assert.Equal(t, "CUSTOM", named.Name)

	for _, bad := range []niml.Payload{nil, niml.Numeric{}} {
		err := finalize(&niml.Element{Data: bad})
		assert.ErrorIs(t, err, merr.ErrUnsupportedPayload)
	}
}

func TestPackageSerializeIsConcurrent(t *testing.T) {
	data, err := matrix.FromFloats([][]float64{{1, 2}, {3, 4}})
	require.NoError(t, err)

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = make(map[string]struct{})
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g, err := Serialize(FromMatrix(data))
			if !assert.NoError(t, err) {
				return
			}
			id := g.Attrs.Value("self_idcode")
			assert.Len(t, id, niml.IDCodeLen)
			assert.Equal(t, strings.ToUpper(id), id)
			mu.Lock()
			ids[id] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, ids, 32)
}
