package dset

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/lk2023060901/niml-dset-go/internal/niml"
	"github.com/lk2023060901/niml-dset-go/pkg/log"
	"github.com/lk2023060901/niml-dset-go/pkg/matrix"
	"github.com/lk2023060901/niml-dset-go/pkg/util/merr"
)

// Deserialize 从节点树还原 Dataset。
//
// 节点顺序无关；未识别的节点、COLMS_RANGE 与 COLMS_TYPE 会被忽略。
// 不做跨字段的一致性校验。只有 g 为 nil、头部缺少 dset_type 或不存在子节点序列时
// 返回 ErrMalformedTree；已识别节点的载荷不可用时该节点被跳过，对应字段保持缺省。
func Deserialize(g *niml.Group) (*Dataset, error) {
	if g == nil {
		return nil, merr.WrapErrMalformedTree("nil group")
	}
	dsetType, ok := g.Attrs.Get(headerDsetType)
	if !ok {
		return nil, merr.WrapErrMalformedTree("missing dset_type", g.Name)
	}
	if g.Nodes == nil {
		return nil, merr.WrapErrMalformedTree("missing nodes", g.Name)
	}

	logger := log.With(log.FieldDsetType(dsetType)).WithRateGroup("dset.deserialize", 1, 60)
	d := &Dataset{DsetType: dsetType}
	for _, el := range g.Nodes {
		if el == nil {
			continue
		}
		apply(d, el, logger)
	}
	return d, nil
}

// DeserializeAll 依次还原 groups，遇到第一个错误即返回。
func DeserializeAll(groups []*niml.Group) ([]*Dataset, error) {
	out := make([]*Dataset, 0, len(groups))
	for i, g := range groups {
		d, err := Deserialize(g)
		if err != nil {
			return nil, errors.Wrapf(err, "group %d", i)
		}
		out = append(out, d)
	}
	return out, nil
}

func apply(d *Dataset, el *niml.Element, logger *log.MLogger) {
	kind, atr := ClassifyNode(el)
	switch kind {
	case KindData:
		if m, ok := numericPayload(el); ok {
			d.Data = m
			return
		}
	case KindIndex:
		if m, ok := numericPayload(el); ok {
			d.NodeIndices = toIndices(m)
			return
		}
	case KindAttr:
		switch atr {
		case AttrLabels:
			if labels, ok := listPayload(el); ok {
				d.Labels = labels
				return
			}
		case AttrStats:
			if stats, ok := listPayload(el); ok {
				d.Stats = stats
				return
			}
		case AttrHistory:
			if s, ok := el.Data.(niml.String); ok {
				d.History = string(s)
				return
			}
		case AttrRange, AttrType:
			// 派生元数据，只写不读。
			return
		case AttrUnknown:
			logger.RatedDebug(1, "ignore unknown attribute node",
				log.FieldNode(el.Name, el.Attrs.Value(niml.AttrAtrName)))
			return
		}
	case KindIgnored:
		logger.RatedDebug(1, "ignore unknown node", log.FieldNode(el.Name, ""))
		return
	}
	logger.RatedDebug(1, "ignore node with unusable payload",
		log.FieldNode(el.Name, el.Attrs.Value(niml.AttrAtrName)),
		zap.String("payload", fmt.Sprintf("%T", el.Data)))
}

func numericPayload(el *niml.Element) (*matrix.Matrix, bool) {
	n, ok := el.Data.(niml.Numeric)
	if !ok || n.Matrix == nil {
		return nil, false
	}
	return n.Matrix, true
}

// listPayload 解码字符串列表；已经是字符串序列的载荷原样使用。
func listPayload(el *niml.Element) ([]string, bool) {
	switch data := el.Data.(type) {
	case niml.String:
		return DecodeStringList(string(data)), true
	case niml.Strings:
		return append([]string{}, data...), true
	default:
		return nil, false
	}
}

func toIndices(m *matrix.Matrix) []int {
	values := m.Values()
	out := make([]int, len(values))
	for i, v := range values {
		out[i] = int(v)
	}
	return out
}
