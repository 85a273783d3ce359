package niml

import (
	"strings"

	"github.com/lk2023060901/niml-dset-go/pkg/util/merr"
	"github.com/lk2023060901/niml-dset-go/pkg/util/typeutil"
)

// Form 是数值元素写出时使用的编码形式。
type Form string

const (
	FormBinary Form = "binary"
	FormText   Form = "text"
	FormBase64 Form = "base64"

	// DefaultForm 是未指定编码形式时的默认值。
	DefaultForm = FormBinary
)

var supportedForms = typeutil.NewSet(FormBinary, FormText, FormBase64)

// ParseForm 解析编码形式，空字符串返回 DefaultForm。
func ParseForm(s string) (Form, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultForm, nil
	}
	f := Form(s)
	if err := f.Validate(); err != nil {
		return "", err
	}
	return f, nil
}

// SupportedForms 返回按字典序排列的全部编码形式。
func SupportedForms() []Form {
	return typeutil.Sorted(supportedForms)
}

// Validate 检查编码形式是否受支持。
func (f Form) Validate() error {
	if !supportedForms.Contain(f) {
		return merr.WrapErrUnsupportedForm(string(f))
	}
	return nil
}

func (f Form) String() string {
	return string(f)
}

// wireForm 返回写入元素 ni_form 属性的取值，文本形式不写 ni_form。
func (f Form) wireForm() string {
	switch f {
	case FormBinary:
		return "binary.lsbfirst"
	case FormBase64:
		return "base64.lsbfirst"
	default:
		return ""
	}
}
