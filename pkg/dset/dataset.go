// Package dset 在列标注的数值数据集与 NIML 节点树之间做双向转换。
//
// 序列化方向会补充派生元数据（COLMS_RANGE、COLMS_TYPE、self_idcode、
// 历史记录），反序列化方向只读回可以还原数据集的字段，两者并不对称。
package dset

import (
	"github.com/lk2023060901/niml-dset-go/internal/niml"
	"github.com/lk2023060901/niml-dset-go/pkg/matrix"
)

const (
	DefaultDsetType = "Node_Bucket"
	DefaultFilename = "null"

	GroupName = "AFNI_dataset"

	NodeSparseData = "SPARSE_DATA"
	NodeIndexList  = "INDEX_LIST"
	NodeAttr       = "AFNI_atr"

	AtrLabels  = "COLMS_LABS"
	AtrRange   = "COLMS_RANGE"
	AtrHistory = "HISTORY_NOTE"
	AtrType    = "COLMS_TYPE"
	AtrStats   = "COLMS_STATSYM"

	TypeGenericInt   = "Generic_Int"
	TypeGenericFloat = "Generic_Float"

	StatNone = "none"

	headerDsetType   = "dset_type"
	headerIDCode     = "self_idcode"
	headerFilename   = "filename"
	headerLabel      = "label"
	attrDataType     = "data_type"
	attrSortedNode   = "sorted_node_def"
	dataTypeSparse   = "Node_Bucket_data"
	dataTypeIndices  = "Node_Bucket_node_indices"
	sortedYes        = "Yes"
	sortedNo         = "No"
	defaultLabelForm = "col_%d"
)

// Dataset 是数据集的规范内存表示。
//
// 所有字段在 API 边界上都是可选的：nil 或空值表示缺省。缺省值只在序列化时
// 合成，Dataset 本身不会被修改，因此反序列化得到的 Dataset 可以与完整指定
// 的 Dataset 区分开。
type Dataset struct {
	// DsetType 为空时按 "Node_Bucket" 写出。
	DsetType string
	// Data 的行对应表面节点，列对应测量通道。
	Data *matrix.Matrix
	// NodeIndices 为 nil 时按 0..N-1 写出。
	NodeIndices []int
	// Labels 为空时按 col_0..col_{M-1} 写出。
	Labels []string
	// Stats 为空时按 M 个 "none" 写出。
	Stats []string
	// History 是以换行分隔的处理记录。
	History string
	// Filename 为空时按 "null" 写出。Save 会用目标路径的文件名覆盖它。
	Filename string
}

// FromMatrix 用一个裸矩阵构造 Dataset，其余字段均为缺省。
func FromMatrix(m *matrix.Matrix) *Dataset {
	return &Dataset{Data: m}
}

// NodeKind 是节点树中节点的种类。
type NodeKind int

const (
	KindIgnored NodeKind = iota
	KindData
	KindIndex
	KindAttr
)

func (k NodeKind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindIndex:
		return "index"
	case KindAttr:
		return "attr"
	default:
		return "ignored"
	}
}

// AttrKind 是 AFNI_atr 节点按 atr_name 区分的属性种类。
type AttrKind int

const (
	AttrUnknown AttrKind = iota
	AttrLabels
	AttrStats
	AttrRange
	AttrType
	AttrHistory
)

var attrKinds = map[string]AttrKind{
	AtrLabels:  AttrLabels,
	AtrStats:   AttrStats,
	AtrRange:   AttrRange,
	AtrType:    AttrType,
	AtrHistory: AttrHistory,
}

func (k AttrKind) String() string {
	switch k {
	case AttrLabels:
		return AtrLabels
	case AttrStats:
		return AtrStats
	case AttrRange:
		return AtrRange
	case AttrType:
		return AtrType
	case AttrHistory:
		return AtrHistory
	default:
		return "unknown"
	}
}

// ClassifyNode 按节点名与 atr_name 判定节点种类。
// 非 AFNI_atr 节点的 AttrKind 总是 AttrUnknown。
func ClassifyNode(el *niml.Element) (NodeKind, AttrKind) {
	switch el.Name {
	case NodeSparseData:
		return KindData, AttrUnknown
	case NodeIndexList:
		return KindIndex, AttrUnknown
	case NodeAttr:
		return KindAttr, attrKinds[el.Attrs.Value(niml.AttrAtrName)]
	default:
		return KindIgnored, AttrUnknown
	}
}
