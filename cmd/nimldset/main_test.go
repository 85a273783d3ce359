package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/lk2023060901/niml-dset-go/application"
	"github.com/lk2023060901/niml-dset-go/internal/json"
	"github.com/lk2023060901/niml-dset-go/pkg/dset"
	"github.com/lk2023060901/niml-dset-go/pkg/matrix"
	"github.com/lk2023060901/niml-dset-go/pkg/util/merr"
	"github.com/lk2023060901/niml-dset-go/pkg/version"
)

type CLISuite struct {
	suite.Suite
	dir  string
	file string
}

func (s *CLISuite) SetupTest() {
	s.T().Setenv(application.ConfigPathEnv, "")
	s.dir = s.T().TempDir()
	s.file = filepath.Join(s.dir, "in.niml.dset")

	data, err := matrix.FromFloats([][]float64{{1, 2}, {3, 4}})
	s.Require().NoError(err)
	d := &dset.Dataset{
		Data:        data,
		NodeIndices: []int{4, 2},
		Labels:      []string{"beta", "t"},
		History:     "step one",
	}
	s.Require().NoError(dset.Save(s.file, d, ""))
}

func (s *CLISuite) run(args ...string) (string, string, error) {
	var stdout, stderr bytes.Buffer
	err := run(args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func (s *CLISuite) TestInfo() {
	out, _, err := s.run("info", s.file)
	s.Require().NoError(err)
	s.Contains(out, "dset_type: Node_Bucket")
	s.Contains(out, "shape:     2 x 2 (float64)")
	s.Contains(out, "sorted:    false")
	s.Contains(out, "labels:    beta, t")
	s.Contains(out, "stats:     none, none")
	s.Contains(out, "  step one\n")
}

func (s *CLISuite) TestDump() {
	out, _, err := s.run("dump", "--indent", s.file)
	s.Require().NoError(err)
	s.Contains(out, "\n  {")

	var views []struct {
		Name  string `json:"name"`
		Nodes []struct {
			Name   string   `json:"name"`
			Kind   string   `json:"kind"`
			Shape  []int    `json:"shape"`
			Values []string `json:"values"`
			Text   *string  `json:"text"`
		} `json:"nodes"`
	}
	s.Require().NoError(json.Unmarshal([]byte(out), &views))
	s.Require().Len(views, 1)
	s.Equal(dset.GroupName, views[0].Name)
	s.Require().Len(views[0].Nodes, 7)

	data := views[0].Nodes[0]
	s.Equal(dset.NodeSparseData, data.Name)
	s.Equal("data", data.Kind)
	s.Equal([]int{2, 2}, data.Shape)
	s.Equal([]string{"1.0", "2.0", "3.0", "4.0"}, data.Values)

	labels := views[0].Nodes[2]
	s.Equal("attr", labels.Kind)
	s.Require().NotNil(labels.Text)
	s.Equal("beta;t", *labels.Text)
}

func (s *CLISuite) TestConvert() {
	out := filepath.Join(s.dir, "out.niml.dset")
	_, stderr, err := s.run("convert", "--form", "text", s.file, out)
	s.Require().NoError(err)
	s.Contains(stderr, "wrote "+out+" (text)")

	d, err := dset.Load(out)
	s.Require().NoError(err)
	s.Equal([]int{4, 2}, d.NodeIndices)
	s.Equal([]string{"beta", "t"}, d.Labels)
	s.Equal(2, strings.Count(d.History, "\n"), "convert appends one more history line")

	_, _, err = s.run("convert", "--form", "ascii", s.file, out)
	s.ErrorIs(err, merr.ErrUnsupportedForm)
}

func (s *CLISuite) TestErrors() {
	_, _, err := s.run()
	s.ErrorIs(err, errUsage)

	_, stderr, err := s.run("frobnicate")
	s.ErrorIs(err, errUsage)
	s.Contains(stderr, "Commands:")

	_, _, err = s.run("info")
	s.ErrorIs(err, errUsage)

	_, _, err = s.run("info", filepath.Join(s.dir, "missing.niml.dset"))
	s.ErrorIs(err, merr.ErrIoFailed)

	_, _, err = s.run("--config", filepath.Join(s.dir, "missing.yaml"), "info", s.file)
	s.ErrorIs(err, merr.ErrIoFailed)
}

func TestCLI(t *testing.T) {
	suite.Run(t, new(CLISuite))
}

func TestVersion(t *testing.T) {
	var stdout, stderr bytes.Buffer
	require.NoError(t, run([]string{"version"}, &stdout, &stderr))
	assert.Equal(t, version.Info()+"\n", stdout.String())

	stdout.Reset()
	require.NoError(t, run([]string{"version", "--full"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "Platform:")
}
