package dset

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	"github.com/lk2023060901/niml-dset-go/internal/niml"
	"github.com/lk2023060901/niml-dset-go/pkg/matrix"
	"github.com/lk2023060901/niml-dset-go/pkg/util/merr"
)

// Serializer 将 Dataset 转换为 NIML 节点树。
//
// Serializer 不持有可变状态，可以并发使用；唯一共享的是 id 生成器。
type Serializer struct {
	ids       niml.IDGenerator
	user      string
	host      string
	clock     func() time.Time
	component string
}

// Option 用于配置 Serializer。
type Option func(*Serializer)

// WithIDGenerator 指定 self_idcode 的生成器。
func WithIDGenerator(g niml.IDGenerator) Option {
	return func(s *Serializer) {
		s.ids = g
	}
}

// WithUser 指定历史记录中的用户名。
func WithUser(user string) Option {
	return func(s *Serializer) {
		s.user = user
	}
}

// WithHost 指定历史记录中的主机名。
func WithHost(host string) Option {
	return func(s *Serializer) {
		s.host = host
	}
}

// WithClock 指定历史记录使用的时钟。
func WithClock(clock func() time.Time) Option {
	return func(s *Serializer) {
		s.clock = clock
	}
}

// WithComponent 指定历史记录中的写出方标识。
func WithComponent(component string) Option {
	return func(s *Serializer) {
		s.component = component
	}
}

// NewSerializer 创建一个 Serializer，未指定的选项使用进程环境中的默认值。
func NewSerializer(opts ...Option) *Serializer {
	s := &Serializer{}
	for _, opt := range opts {
		opt(s)
	}
	s.fillDefaults()
	return s
}

func (s *Serializer) fillDefaults() {
	if s.ids == nil {
		s.ids = niml.UUIDGenerator{}
	}
	if s.user == "" {
		s.user = currentUser()
	}
	if s.host == "" {
		s.host = currentHost()
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.component == "" {
		s.component = DefaultComponent
	}
}

var defaultSerializer = sync.OnceValue(func() *Serializer {
	return NewSerializer()
})

// Serialize 使用默认 Serializer 转换 d。
func Serialize(d *Dataset) (*niml.Group, error) {
	return defaultSerializer().Serialize(d)
}

// SerializeAll 使用默认 Serializer 依次转换 ds。
func SerializeAll(ds []*Dataset) ([]*niml.Group, error) {
	return defaultSerializer().SerializeAll(ds)
}

// nodeBuilder 构造一个尚未规整的节点，顺序即写出顺序。
type nodeBuilder func(s *Serializer, d *Dataset) *niml.Element

var nodeBuilders = []nodeBuilder{
	(*Serializer).dataNode,
	(*Serializer).indexNode,
	(*Serializer).labelsNode,
	(*Serializer).rangeNode,
	(*Serializer).historyNode,
	(*Serializer).typeNode,
	(*Serializer).statsNode,
}

// Serialize 将 d 转换为节点树，不修改 d。
//
// 错误：
//   - d 或 d.Data 为 nil 时返回 ErrMissingData；
//   - NodeIndices 长度与行数不一致时返回 ErrShapeMismatch；
//   - Labels 或 Stats 长度与列数不一致时返回 ErrLabelCount。
func (s *Serializer) Serialize(d *Dataset) (*niml.Group, error) {
	if d == nil || d.Data == nil {
		return nil, merr.WrapErrMissingData()
	}
	if err := validate(d); err != nil {
		return nil, err
	}

	g := s.header(d)
	g.Nodes = make([]*niml.Element, 0, len(nodeBuilders))
	for _, build := range nodeBuilders {
		el := build(s, d)
		if err := finalize(el); err != nil {
			return nil, err
		}
		g.Nodes = append(g.Nodes, el)
	}
	return g, nil
}

// SerializeAll 依次转换 ds，遇到第一个错误即返回。
func (s *Serializer) SerializeAll(ds []*Dataset) ([]*niml.Group, error) {
	groups := make([]*niml.Group, 0, len(ds))
	for i, d := range ds {
		g, err := s.Serialize(d)
		if err != nil {
			return nil, errors.Wrapf(err, "dataset %d", i)
		}
		groups = append(groups, g)
	}
	return groups, nil
}

func validate(d *Dataset) error {
	rows, cols := d.Data.Shape()
	if d.NodeIndices != nil && len(d.NodeIndices) != rows {
		return merr.WrapErrShapeMismatch("node_indices", len(d.NodeIndices), rows)
	}
	if len(d.Labels) > 0 && len(d.Labels) != cols {
		return merr.WrapErrLabelCount("labels", len(d.Labels), cols)
	}
	if len(d.Stats) > 0 && len(d.Stats) != cols {
		return merr.WrapErrLabelCount("stats", len(d.Stats), cols)
	}
	return nil
}

func (s *Serializer) header(d *Dataset) *niml.Group {
	filename := lo.Ternary(d.Filename != "", d.Filename, DefaultFilename)
	return &niml.Group{
		Name: GroupName,
		Attrs: niml.Attrs{
			{Key: headerDsetType, Value: lo.Ternary(d.DsetType != "", d.DsetType, DefaultDsetType)},
			{Key: headerIDCode, Value: s.ids.NewIDCode()},
			{Key: headerFilename, Value: filename},
			{Key: headerLabel, Value: filename},
			{Key: niml.AttrNiForm, Value: niml.FormGroup},
		},
	}
}

func (s *Serializer) dataNode(d *Dataset) *niml.Element {
	return &niml.Element{
		Name:  NodeSparseData,
		Attrs: niml.Attrs{{Key: attrDataType, Value: dataTypeSparse}},
		Data:  niml.Numeric{Matrix: d.Data},
	}
}

func (s *Serializer) indexNode(d *Dataset) *niml.Element {
	indices := d.NodeIndices
	if indices == nil {
		indices = lo.Range(d.Data.Rows())
	}
	column := matrix.FromColumn(matrix.Int32, lo.Map(indices, func(v int, _ int) float64 {
		return float64(v)
	}))
	return &niml.Element{
		Name: NodeIndexList,
		Attrs: niml.Attrs{
			{Key: attrDataType, Value: dataTypeIndices},
			{Key: attrSortedNode, Value: lo.Ternary(IsSorted(indices), sortedYes, sortedNo)},
		},
		Data: niml.Numeric{Matrix: column},
	}
}

func (s *Serializer) labelsNode(d *Dataset) *niml.Element {
	labels := d.Labels
	if len(labels) == 0 {
		labels = lo.Times(d.Data.Cols(), func(i int) string {
			return fmt.Sprintf(defaultLabelForm, i)
		})
	}
	return attrNode(AtrLabels, niml.Strings(labels))
}

func (s *Serializer) rangeNode(d *Dataset) *niml.Element {
	return attrNode(AtrRange, niml.Strings(ColumnRanges(d.Data)))
}

func (s *Serializer) historyNode(d *Dataset) *niml.Element {
	line := historyLine(s.user, s.host, s.clock(), s.component)
	return attrNode(AtrHistory, niml.String(appendHistory(d.History, line)))
}

func (s *Serializer) typeNode(d *Dataset) *niml.Element {
	return attrNode(AtrType, niml.Strings(lo.RepeatBy(d.Data.Cols(), func(int) string {
		return ClassifyType(d.Data)
	})))
}

func (s *Serializer) statsNode(d *Dataset) *niml.Element {
	stats := d.Stats
	if len(stats) == 0 {
		stats = lo.RepeatBy(d.Data.Cols(), func(int) string { return StatNone })
	}
	return attrNode(AtrStats, niml.Strings(stats))
}

func attrNode(atrName string, data niml.Payload) *niml.Element {
	return &niml.Element{
		Attrs: niml.Attrs{{Key: niml.AttrAtrName, Value: atrName}},
		Data:  data,
	}
}

// finalize 规整节点载荷并补全 ni_type/ni_dimen 与节点名。
//
// 字符串序列以 ";" 连接为单个字符串；数值矩阵转换为可写出的数据类型，
// 行数大于 1 时 ni_type 为 "<cols>*<name>"，否则为裸类型名。
func finalize(el *niml.Element) error {
	if ss, ok := el.Data.(niml.Strings); ok {
		el.Data = niml.String(EncodeStringList(ss))
	}

	switch data := el.Data.(type) {
	case niml.String:
		el.Attrs.Set(niml.AttrNiDimen, "1")
		el.Attrs.Set(niml.AttrNiType, niml.TypeString)
	case niml.Numeric:
		if data.Matrix == nil {
			return merr.WrapErrUnsupportedPayload(el.Name, data)
		}
		wire, err := niml.ToWireDType(el.Name, data.Matrix)
		if err != nil {
			return err
		}
		name, ok := niml.TypeName(wire.DType())
		if !ok {
			return merr.WrapErrUnsupportedPayload(el.Name, data)
		}
		el.Data = niml.Numeric{Matrix: wire}
		el.Attrs.Set(niml.AttrNiDimen, strconv.Itoa(wire.Rows()))
		if wire.Rows() > 1 {
			el.Attrs.Set(niml.AttrNiType, fmt.Sprintf("%d*%s", wire.Cols(), name))
		} else {
			el.Attrs.Set(niml.AttrNiType, name)
		}
	default:
		return merr.WrapErrUnsupportedPayload(el.Name, data)
	}

	if el.Name == "" {
		el.Name = NodeAttr
	}
	return nil
}
