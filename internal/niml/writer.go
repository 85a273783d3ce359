package niml

import (
	"bufio"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/lk2023060901/niml-dset-go/pkg/matrix"
	"github.com/lk2023060901/niml-dset-go/pkg/util/merr"
)

const base64LineWidth = 76

var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

// NumericType 返回数值矩阵写出时使用的 ni_type。
//
// 列数大于 1 或行数大于 1 时为 "<cols>*<name>"，否则为裸类型名。
// 单行多列的矩阵也带列数前缀，保证读回时能还原列数。
func NumericType(m *matrix.Matrix) (string, error) {
	name, ok := TypeName(m.DType())
	if !ok {
		return "", merr.WrapErrUnsupportedPayload(m.DType().String(), m)
	}
	if m.Rows() > 1 || m.Cols() > 1 {
		return fmt.Sprintf("%d*%s", m.Cols(), name), nil
	}
	return name, nil
}

type writer struct {
	w    *bufio.Writer
	form Form
}

func encodeGroups(w io.Writer, groups []*Group, form Form) error {
	if err := form.Validate(); err != nil {
		return err
	}
	wr := &writer{w: bufio.NewWriter(w), form: form}
	for i, g := range groups {
		if g == nil {
			return merr.WrapErrParameterInvalidMsg("group %d is nil", i)
		}
		if err := wr.writeGroup(g); err != nil {
			return err
		}
	}
	return wr.w.Flush()
}

func (wr *writer) writeGroup(g *Group) error {
	if g.Name == "" {
		return merr.WrapErrParameterInvalidMsg("group name is empty")
	}
	attrs := g.Attrs.Clone()
	attrs.Set(AttrNiForm, FormGroup)
	wr.openTag(g.Name, attrs, false)
	wr.w.WriteByte('\n')
	for _, el := range g.Nodes {
		if el == nil {
			continue
		}
		if err := wr.writeElement(el); err != nil {
			return err
		}
	}
	wr.closeTag(g.Name)
	return nil
}

func (wr *writer) writeElement(el *Element) error {
	if el.Name == "" {
		return merr.WrapErrParameterInvalidMsg("element name is empty")
	}
	attrs := el.Attrs.Clone()

	switch data := el.Data.(type) {
	case nil:
		wr.openTag(el.Name, attrs, true)
		wr.w.WriteByte('\n')
		return nil

	case String:
		attrs.Set(AttrNiType, TypeString)
		attrs.Set(AttrNiDimen, "1")
		attrs.Delete(AttrNiForm)
		wr.openTag(el.Name, attrs, false)
		wr.w.WriteByte('\n')
		wr.quoted(string(data))
		wr.w.WriteByte('\n')
		wr.closeTag(el.Name)
		return nil

	case Strings:
		attrs.Set(AttrNiType, TypeString)
		attrs.Set(AttrNiDimen, strconv.Itoa(len(data)))
		attrs.Delete(AttrNiForm)
		wr.openTag(el.Name, attrs, false)
		wr.w.WriteByte('\n')
		for _, s := range data {
			wr.quoted(s)
			wr.w.WriteByte('\n')
		}
		wr.closeTag(el.Name)
		return nil

	case Numeric:
		if data.Matrix == nil {
			return merr.WrapErrUnsupportedPayload(el.Name, data)
		}
		wire, err := ToWireDType(el.Name, data.Matrix)
		if err != nil {
			return err
		}
		return wr.writeNumeric(el.Name, attrs, wire)

	default:
		return merr.WrapErrUnsupportedPayload(el.Name, data)
	}
}

func (wr *writer) writeNumeric(name string, attrs Attrs, m *matrix.Matrix) error {
	niType, err := NumericType(m)
	if err != nil {
		return err
	}
	attrs.Set(AttrNiType, niType)
	attrs.Set(AttrNiDimen, strconv.Itoa(m.Rows()))
	if wf := wr.form.wireForm(); wf != "" {
		attrs.Set(AttrNiForm, wf)
	} else {
		attrs.Delete(AttrNiForm)
	}
	wr.openTag(name, attrs, false)

	switch wr.form {
	case FormBinary:
		wr.w.Write(encodeBinary(m, binary.LittleEndian))
	case FormBase64:
		enc := base64.StdEncoding.EncodeToString(encodeBinary(m, binary.LittleEndian))
		wr.w.WriteByte('\n')
		for len(enc) > base64LineWidth {
			wr.w.WriteString(enc[:base64LineWidth])
			wr.w.WriteByte('\n')
			enc = enc[base64LineWidth:]
		}
		if enc != "" {
			wr.w.WriteString(enc)
			wr.w.WriteByte('\n')
		}
	default:
		wr.w.WriteByte('\n')
		printer := ValuePrinter(m.DType())
		for i := 0; i < m.Rows(); i++ {
			for j := 0; j < m.Cols(); j++ {
				if j > 0 {
					wr.w.WriteByte(' ')
				}
				wr.w.WriteString(printer(m.At(i, j)))
			}
			wr.w.WriteByte('\n')
		}
	}
	wr.closeTag(name)
	return nil
}

func (wr *writer) openTag(name string, attrs Attrs, selfClosing bool) {
	wr.w.WriteByte('<')
	wr.w.WriteString(name)
	for _, a := range attrs {
		wr.w.WriteString("\n  ")
		wr.w.WriteString(a.Key)
		wr.w.WriteString(`="`)
		wr.w.WriteString(escaper.Replace(a.Value))
		wr.w.WriteByte('"')
	}
	if selfClosing {
		wr.w.WriteString(" />")
		return
	}
	wr.w.WriteString(" >")
}

func (wr *writer) closeTag(name string) {
	wr.w.WriteString("</")
	wr.w.WriteString(name)
	wr.w.WriteString(">\n")
}

func (wr *writer) quoted(s string) {
	wr.w.WriteByte('"')
	wr.w.WriteString(escaper.Replace(s))
	wr.w.WriteByte('"')
}

// encodeBinary 按行优先顺序把矩阵编码为定长二进制。
func encodeBinary(m *matrix.Matrix, order binary.ByteOrder) []byte {
	size := m.DType().Size()
	out := make([]byte, m.Len()*size)
	for i, v := range m.Values() {
		b := out[i*size : (i+1)*size]
		switch m.DType() {
		case matrix.Uint8:
			b[0] = uint8(v)
		case matrix.Int16:
			order.PutUint16(b, uint16(int16(v)))
		case matrix.Int32:
			order.PutUint32(b, uint32(int32(v)))
		case matrix.Int64:
			order.PutUint64(b, uint64(int64(v)))
		case matrix.Float32:
			order.PutUint32(b, math.Float32bits(float32(v)))
		case matrix.Float64:
			order.PutUint64(b, math.Float64bits(v))
		}
	}
	return out
}
