package log

import (
	"go.uber.org/zap"
)

const (
	FieldNameModule    = "module"
	FieldNameComponent = "component"
	FieldNamePath      = "path"
	FieldNameForm      = "form"
	FieldNameDsetType  = "dsetType"
	FieldNameNode      = "node"
)

// FieldModule 返回一个包含模块名的 zap 字段。
func FieldModule(module string) zap.Field {
	return zap.String(FieldNameModule, module)
}

// FieldComponent 返回一个包含组件名的 zap 字段。
func FieldComponent(component string) zap.Field {
	return zap.String(FieldNameComponent, component)
}

// FieldPath 返回一个包含文件路径的 zap 字段。
func FieldPath(path string) zap.Field {
	return zap.String(FieldNamePath, path)
}

// FieldForm 返回一个包含 NIML 编码形式的 zap 字段。
func FieldForm(form string) zap.Field {
	return zap.String(FieldNameForm, form)
}

// FieldDsetType 返回一个包含数据集类型的 zap 字段。
func FieldDsetType(dsetType string) zap.Field {
	return zap.String(FieldNameDsetType, dsetType)
}

// FieldNode 返回一个描述节点名（以及可选属性名）的 zap 字段。
func FieldNode(name, atrName string) zap.Field {
	if atrName == "" {
		return zap.String(FieldNameNode, name)
	}
	return zap.String(FieldNameNode, name+"/"+atrName)
}
