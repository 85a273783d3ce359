package json

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type node struct {
	Name  string            `json:"name"`
	Attrs map[string]string `json:"attrs,omitempty"`
	Data  any               `json:"data"`
}

func TestMarshalRoundTrip(t *testing.T) {
	in := node{Name: "AFNI_atr", Attrs: map[string]string{"atr_name": "COLMS_LABS"}, Data: "col_0;col_1"}
	data, err := Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"AFNI_atr","attrs":{"atr_name":"COLMS_LABS"},"data":"col_0;col_1"}`, string(data))

	var out node
	require.NoError(t, Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestMarshalIndent(t *testing.T) {
	data, err := MarshalIndent(node{Name: "SPARSE_DATA", Data: [][]float64{{1, 2}}}, "", "  ")
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"name\": \"SPARSE_DATA\"")
}
