package dset

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/lk2023060901/niml-dset-go/internal/compressor"
	"github.com/lk2023060901/niml-dset-go/internal/niml"
	"github.com/lk2023060901/niml-dset-go/pkg/log"
	"github.com/lk2023060901/niml-dset-go/pkg/matrix"
	"github.com/lk2023060901/niml-dset-go/pkg/metrics"
	"github.com/lk2023060901/niml-dset-go/pkg/util/merr"
)

type IOSuite struct {
	suite.Suite
	dir string
	io  *IO
}

func (s *IOSuite) SetupTest() {
	s.dir = s.T().TempDir()
	io, err := NewIO(WithSerializer(newTestSerializer()), WithWorkers(2))
	s.Require().NoError(err)
	io.SetLogger(log.NewTestMLogger(s.T()))
	s.io = io
}

func (s *IOSuite) path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *IOSuite) sample() *Dataset {
	data, err := matrix.FromFloats([][]float64{{1.5, -2}, {0, 1e-5}, {3, 4}})
	s.Require().NoError(err)
	return &Dataset{
		Data:        data,
		NodeIndices: []int{5, 6, 9},
		Labels:      []string{"a b", "c&d"},
		Stats:       []string{"none", "none"},
	}
}

func (s *IOSuite) TestSaveLoadEachForm() {
	ctx := context.Background()
	for _, form := range niml.SupportedForms() {
		path := s.path("ds_" + form.String() + ".niml.dset")
		in := s.sample()
		s.Require().NoError(s.io.Save(ctx, path, in, form))
		s.Equal(filepath.Base(path), in.Filename, "save stamps the file name")

		out, err := s.io.Load(ctx, path)
		s.Require().NoError(err, form)
		s.True(in.Data.Equal(out.Data), form)
		s.Equal(in.NodeIndices, out.NodeIndices)
		s.Equal(in.Labels, out.Labels)
		s.Equal(in.Stats, out.Stats)
		s.Equal(fixedHistory, out.History)
		s.Equal(DefaultDsetType, out.DsetType)
	}
}

func (s *IOSuite) TestSaveUsesDefaultForm() {
	io, err := NewIO(WithSerializer(newTestSerializer()), WithForm(niml.FormText))
	s.Require().NoError(err)
	path := s.path("text.niml.dset")
	s.Require().NoError(io.Save(context.Background(), path, s.sample(), ""))

	raw, err := os.ReadFile(path)
	s.Require().NoError(err)
	s.NotContains(string(raw), `ni_form="binary`)
	s.Contains(string(raw), `ni_type="2*double"`)
	s.Contains(string(raw), "filename=\"text.niml.dset\"")
}

func (s *IOSuite) TestCompressedFile() {
	path := s.path("ds.niml.dset" + niml.CompressedSuffix)
	in := s.sample()
	s.Require().NoError(s.io.Save(context.Background(), path, in, niml.FormBase64))

	raw, err := os.ReadFile(path)
	s.Require().NoError(err)
	s.True(compressor.IsZstd(raw))

	out, err := s.io.Load(context.Background(), path)
	s.Require().NoError(err)
	s.True(in.Data.Equal(out.Data))
}

func (s *IOSuite) TestLoadAllAndMultiGroupLoad() {
	path := s.path("multi.niml.dset")
	first, second := s.sample(), s.sample()
	second.DsetType = "Node_Label"
	groups, err := newTestSerializer().SerializeAll([]*Dataset{first, second})
	s.Require().NoError(err)
	codec, err := niml.New(niml.Options{})
	s.Require().NoError(err)
	s.Require().NoError(codec.Write(path, groups, niml.FormBinary))

	ds, err := s.io.LoadAll(context.Background(), path)
	s.Require().NoError(err)
	s.Require().Len(ds, 2)
	s.Equal(DefaultDsetType, ds[0].DsetType)
	s.Equal("Node_Label", ds[1].DsetType)

	_, err = s.io.Load(context.Background(), path)
	s.ErrorIs(err, merr.ErrFormat)
}

func (s *IOSuite) TestErrors() {
	ctx := context.Background()

	_, err := s.io.Load(ctx, s.path("missing.niml.dset"))
	s.ErrorIs(err, merr.ErrIoFailed)
	s.ErrorIs(err, fs.ErrNotExist)

	bad := s.path("bad.niml.dset")
	s.Require().NoError(os.WriteFile(bad, []byte("<AFNI_dataset dset_type=\"x\" ni_form=\"ni_group\">"), 0o644))
	_, err = s.io.Load(ctx, bad)
	s.ErrorIs(err, merr.ErrFormat)

	noType := s.path("notype.niml.dset")
	s.Require().NoError(os.WriteFile(noType, []byte("<AFNI_dataset ni_form=\"ni_group\"></AFNI_dataset>"), 0o644))
	_, err = s.io.Load(ctx, noType)
	s.ErrorIs(err, merr.ErrMalformedTree)

	s.ErrorIs(s.io.Save(ctx, s.path("nil.niml.dset"), nil, ""), merr.ErrMissingData)
	s.ErrorIs(s.io.Save(ctx, s.path("x.niml.dset"), s.sample(), "ascii"), merr.ErrUnsupportedForm)
	s.ErrorIs(s.io.Save(ctx, filepath.Join(s.dir, "no", "such", "dir.niml.dset"), s.sample(), ""), merr.ErrIoFailed)

	shape := s.sample()
	shape.Labels = []string{"only"}
	s.ErrorIs(s.io.Save(ctx, s.path("labels.niml.dset"), shape, ""), merr.ErrLabelCount)
	_, err = os.Stat(s.path("labels.niml.dset"))
	s.True(os.IsNotExist(err), "nothing is written on validation failure")
}

func (s *IOSuite) TestManyFiles() {
	ctx := context.Background()
	items := make([]SaveItem, 0, 5)
	for i := 0; i < 5; i++ {
		d := s.sample()
		d.Data.Set(0, 0, float64(i))
		items = append(items, SaveItem{Path: s.path(string(rune('a'+i)) + ".niml.dset"), Dataset: d})
	}
	s.Require().NoError(s.io.SaveMany(ctx, items, niml.FormBinary))

	paths := make([]string, 0, len(items))
	for _, item := range items {
		paths = append(paths, item.Path)
	}
	ds, err := s.io.LoadMany(ctx, paths)
	s.Require().NoError(err)
	s.Require().Len(ds, len(items))
	for i, d := range ds {
		s.Equal(float64(i), d.Data.At(0, 0))
	}

	_, err = s.io.LoadMany(ctx, append(paths, s.path("missing.niml.dset")))
	s.ErrorIs(err, merr.ErrIoFailed)

	err = s.io.SaveMany(ctx, []SaveItem{{Path: s.path("ok.niml.dset"), Dataset: s.sample()}, {Path: s.path("nil.niml.dset")}}, "")
	s.ErrorIs(err, merr.ErrMissingData)
}

func (s *IOSuite) TestSaveManySharedDataset() {
	ctx := context.Background()
	shared := s.sample()
	items := make([]SaveItem, 0, 8)
	for i := 0; i < 8; i++ {
		items = append(items, SaveItem{Path: s.path(string(rune('a'+i)) + "_shared.niml.dset"), Dataset: shared})
	}
	s.Require().NoError(s.io.SaveMany(ctx, items, niml.FormText))

	for _, item := range items {
		groups, err := s.io.Codec().Read(item.Path)
		s.Require().NoError(err)
		s.Require().Len(groups, 1)
		s.Equal(filepath.Base(item.Path), groups[0].Attrs.Value(headerFilename))
	}
	s.Equal(filepath.Base(items[len(items)-1].Path), shared.Filename)
}

func (s *IOSuite) TestCanceledContext() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	path := s.path("c.niml.dset")
	s.Require().NoError(s.io.Save(context.Background(), path, s.sample(), ""))

	_, err := s.io.LoadMany(ctx, []string{path})
	s.ErrorIs(err, context.Canceled)
	s.ErrorIs(s.io.SaveMany(ctx, []SaveItem{{Path: path, Dataset: s.sample()}}, ""), context.Canceled)
}

func (s *IOSuite) TestMetrics() {
	ok := metrics.DsetOperations.WithLabelValues(metrics.SaveLabel, metrics.SuccessLabel)
	failed := metrics.DsetOperations.WithLabelValues(metrics.LoadLabel, metrics.FailLabel)
	bytes := metrics.DsetBytes.WithLabelValues(metrics.SaveLabel)
	okBefore, failedBefore, bytesBefore := testutil.ToFloat64(ok), testutil.ToFloat64(failed), testutil.ToFloat64(bytes)

	path := s.path("m.niml.dset")
	s.Require().NoError(s.io.Save(context.Background(), path, s.sample(), ""))
	_, err := s.io.Load(context.Background(), s.path("nope.niml.dset"))
	s.Require().Error(err)

	st, err := os.Stat(path)
	s.Require().NoError(err)
	s.Equal(okBefore+1, testutil.ToFloat64(ok))
	s.Equal(failedBefore+1, testutil.ToFloat64(failed))
	s.Equal(bytesBefore+float64(st.Size()), testutil.ToFloat64(bytes))
}

// flakyCodec 在前 failures 次 Read/Write 时返回 ErrIoFailed。
type flakyCodec struct {
	niml.Codec
	failures int
	calls    int
}

func (c *flakyCodec) Read(path string) ([]*niml.Group, error) {
	c.calls++
	if c.calls <= c.failures {
		return nil, merr.WrapErrIoFailed(path, os.ErrDeadlineExceeded)
	}
	return c.Codec.Read(path)
}

func (c *flakyCodec) Write(path string, groups []*niml.Group, form niml.Form) error {
	c.calls++
	if c.calls <= c.failures {
		return merr.WrapErrIoFailed(path, os.ErrDeadlineExceeded)
	}
	return c.Codec.Write(path, groups, form)
}

func (s *IOSuite) TestAttempts() {
	inner, err := niml.New(niml.Options{})
	s.Require().NoError(err)
	flaky := &flakyCodec{Codec: inner, failures: 2}
	io, err := NewIO(WithCodec(flaky), WithAttempts(3))
	s.Require().NoError(err)

	path := s.path("flaky.niml.dset")
	s.Require().NoError(io.Save(context.Background(), path, s.sample(), ""))
	s.Equal(3, flaky.calls)

	flaky.calls, flaky.failures = 0, 3
	_, err = io.Load(context.Background(), path)
	s.ErrorIs(err, merr.ErrIoFailed)
	s.Equal(3, flaky.calls)

	// 文件不存在不会被重试。
	flaky.calls, flaky.failures = 0, 0
	_, err = io.Load(context.Background(), s.path("missing.niml.dset"))
	s.ErrorIs(err, fs.ErrNotExist)
	s.Equal(1, flaky.calls)

	once, err := NewIO(WithCodec(flaky))
	s.Require().NoError(err)
	flaky.calls, flaky.failures = 0, 1
	_, err = once.Load(context.Background(), path)
	s.ErrorIs(err, merr.ErrIoFailed)
	s.Equal(1, flaky.calls)
}

func TestIO(t *testing.T) {
	suite.Run(t, new(IOSuite))
}

func TestNewIOInvalidForm(t *testing.T) {
	_, err := NewIO(WithForm("ascii"))
	assert.ErrorIs(t, err, merr.ErrUnsupportedForm)
}

func TestPackageLevelIO(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pkg.niml.dset")
	data, err := matrix.FromInts([][]int{{7, 8}})
	require.NoError(t, err)

	require.NoError(t, Save(path, FromMatrix(data), ""))
	d, err := Load(path)
	require.NoError(t, err)
	assert.True(t, data.Equal(d.Data))
	assert.Equal(t, []string{"col_0", "col_1"}, d.Labels)

	ds, err := LoadAll(path)
	require.NoError(t, err)
	assert.Len(t, ds, 1)
}
