// Package niml 定义 NIML 容器的原始节点树以及它的读写编解码。
//
// 节点树与数据集语义无关：Group 是带属性的头部加上有序的子元素，
// Element 携带一个封闭集合内的载荷（单个字符串、字符串序列或数值矩阵）。
package niml

import (
	"github.com/lk2023060901/niml-dset-go/pkg/matrix"
)

// 常用的属性名。
const (
	AttrNiType  = "ni_type"
	AttrNiDimen = "ni_dimen"
	AttrNiForm  = "ni_form"
	AttrAtrName = "atr_name"

	// FormGroup 是 Group 头部 ni_form 属性的固定取值。
	FormGroup = "ni_group"
)

// Attr 是一个 key="value" 属性。
type Attr struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Attrs 是保持插入顺序的属性列表。
type Attrs []Attr

// Get 返回 key 对应的值。
func (a Attrs) Get(key string) (string, bool) {
	for _, attr := range a {
		if attr.Key == key {
			return attr.Value, true
		}
	}
	return "", false
}

// Value 返回 key 对应的值，不存在时返回空字符串。
func (a Attrs) Value(key string) string {
	v, _ := a.Get(key)
	return v
}

// Has 判断 key 是否存在。
func (a Attrs) Has(key string) bool {
	_, ok := a.Get(key)
	return ok
}

// Set 设置 key 的值。已存在的 key 保持原有位置，否则追加到末尾。
func (a *Attrs) Set(key, value string) {
	for i := range *a {
		if (*a)[i].Key == key {
			(*a)[i].Value = value
			return
		}
	}
	*a = append(*a, Attr{Key: key, Value: value})
}

// Delete 删除 key，不存在时忽略。
func (a *Attrs) Delete(key string) {
	for i := range *a {
		if (*a)[i].Key == key {
			*a = append((*a)[:i], (*a)[i+1:]...)
			return
		}
	}
}

// Clone 返回属性列表的拷贝。
func (a Attrs) Clone() Attrs {
	if a == nil {
		return nil
	}
	out := make(Attrs, len(a))
	copy(out, a)
	return out
}

// Payload 是 Element 携带的数据，取值只能是 String、Strings 或 Numeric。
type Payload interface {
	isPayload()
}

// String 是单个字符串载荷。
type String string

// Strings 是字符串序列载荷。
// 写出前会被规整为以 ";" 连接的 String。
type Strings []string

// Numeric 是数值矩阵载荷。
type Numeric struct {
	*matrix.Matrix
}

func (String) isPayload()  {}
func (Strings) isPayload() {}
func (Numeric) isPayload() {}

// Element 是节点树中的一个数据节点。
type Element struct {
	Name  string
	Attrs Attrs
	Data  Payload
}

// Group 是一个 NIML 分组：头部属性加上有序的子节点。
//
// Nodes 为 nil 表示不存在子节点序列；非 nil 的空切片是合法的空序列。
type Group struct {
	Name  string
	Attrs Attrs
	Nodes []*Element
}
