package niml

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"math"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/lk2023060901/niml-dset-go/pkg/matrix"
	"github.com/lk2023060901/niml-dset-go/pkg/util/merr"
)

var unescaper = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&apos;", "'",
	"&amp;", "&",
)

// column 描述 ni_type 展开后的一列。
type column struct {
	dtype    matrix.DataType
	isString bool
}

// parseNiType 将 "int,2*float" 形式的 ni_type 展开为逐列描述。
// 展开后的列数不能超过 limit。
func parseNiType(s string, limit int) ([]column, error) {
	if strings.TrimSpace(s) == "" {
		return nil, merr.WrapErrFormat("missing ni_type")
	}
	var cols []column
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		count := 1
		if before, after, ok := strings.Cut(part, "*"); ok {
			n, err := strconv.Atoi(strings.TrimSpace(before))
			if err != nil || n < 1 {
				return nil, merr.WrapErrFormat("bad ni_type repeat count", "ni_type=%q", s)
			}
			if n > limit-len(cols) {
				return nil, merr.WrapErrFormat("ni_type column count exceeds content size", "ni_type=%q", s)
			}
			count, part = n, strings.TrimSpace(after)
		}
		dt, isString, ok := ParseTypeName(part)
		if !ok {
			return nil, merr.WrapErrFormat("unknown ni_type", "ni_type=%q", s)
		}
		for i := 0; i < count; i++ {
			cols = append(cols, column{dtype: dt, isString: isString})
		}
	}
	return cols, nil
}

// parseNiDimen 返回 ni_dimen 给出的行数，多维时取各维乘积。
// 缺省时返回 -1，由调用方按数据推断。行数超过 limit 视为格式错误，
// 每行至少占用一个字节，合法内容不会超过输入长度。
func parseNiDimen(s string, limit int) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return -1, nil
	}
	rows := 1
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 {
			return 0, merr.WrapErrFormat("bad ni_dimen", "ni_dimen=%q", s)
		}
		if n > limit || (n > 0 && rows > limit/n) {
			return 0, merr.WrapErrFormat("ni_dimen exceeds content size", "ni_dimen=%q", s)
		}
		rows *= n
	}
	return rows, nil
}

// promote 返回各列共同的数据类型，类型不一致时提升为 Float64。
func promote(cols []column) matrix.DataType {
	dt := cols[0].dtype
	for _, c := range cols[1:] {
		if c.dtype != dt {
			return matrix.Float64
		}
	}
	return dt
}

type parser struct {
	buf []byte
	pos int
}

func decodeGroups(data []byte) ([]*Group, error) {
	p := &parser{buf: data}
	var groups []*Group
	for {
		if err := p.skipMisc(); err != nil {
			return nil, err
		}
		if p.eof() {
			return groups, nil
		}
		if p.hasPrefix("</") {
			return nil, merr.WrapErrFormat("unexpected closing tag", "offset=%d", p.pos)
		}
		node, err := p.parseNode()
		if err != nil {
			return nil, err
		}
		switch n := node.(type) {
		case *Group:
			groups = append(groups, n)
		case *Element:
			// 顶层的裸元素没有子节点序列。
			groups = append(groups, &Group{Name: n.Name, Attrs: n.Attrs})
		}
	}
}

func (p *parser) eof() bool {
	return p.pos >= len(p.buf)
}

func (p *parser) hasPrefix(s string) bool {
	return bytes.HasPrefix(p.buf[p.pos:], []byte(s))
}

func (p *parser) skipSpace() {
	for !p.eof() && isSpace(p.buf[p.pos]) {
		p.pos++
	}
}

// skipMisc 跳过空白、<?...?> 头部与 <!-- --> 注释。
func (p *parser) skipMisc() error {
	for {
		p.skipSpace()
		var end string
		switch {
		case p.hasPrefix("<?"):
			end = "?>"
		case p.hasPrefix("<!--"):
			end = "-->"
		default:
			return nil
		}
		idx := bytes.Index(p.buf[p.pos:], []byte(end))
		if idx < 0 {
			return merr.WrapErrFormat("unterminated header or comment", "offset=%d", p.pos)
		}
		p.pos += idx + len(end)
	}
}

// parseNode 解析一个 Group 或 Element，返回 *Group 或 *Element。
func (p *parser) parseNode() (any, error) {
	name, attrs, selfClosing, err := p.parseOpenTag()
	if err != nil {
		return nil, err
	}

	if attrs.Value(AttrNiForm) == FormGroup {
		g := &Group{Name: name, Attrs: attrs, Nodes: []*Element{}}
		if selfClosing {
			return g, nil
		}
		for {
			if err := p.skipMisc(); err != nil {
				return nil, err
			}
			if p.eof() {
				return nil, merr.WrapErrFormat("unterminated group", "group=%s", name)
			}
			if p.hasPrefix("</") {
				if err := p.parseCloseTag(name); err != nil {
					return nil, err
				}
				return g, nil
			}
			child, err := p.parseNode()
			if err != nil {
				return nil, err
			}
			// 嵌套的 Group 被跳过。
			if el, ok := child.(*Element); ok {
				g.Nodes = append(g.Nodes, el)
			}
		}
	}

	el := &Element{Name: name, Attrs: attrs}
	if selfClosing {
		return el, nil
	}
	el.Data, err = p.parseElementBody(name, attrs)
	if err != nil {
		return nil, err
	}
	return el, nil
}

func (p *parser) parseOpenTag() (string, Attrs, bool, error) {
	start := p.pos
	if p.eof() || p.buf[p.pos] != '<' {
		return "", nil, false, merr.WrapErrFormat("expected '<'", "offset=%d", p.pos)
	}
	p.pos++
	name := p.readName()
	if name == "" {
		return "", nil, false, merr.WrapErrFormat("missing tag name", "offset=%d", start)
	}

	var attrs Attrs
	for {
		p.skipSpace()
		switch {
		case p.eof():
			return "", nil, false, merr.WrapErrFormat("unterminated tag", "tag=%s", name)
		case p.hasPrefix("/>"):
			p.pos += 2
			return name, attrs, true, nil
		case p.buf[p.pos] == '>':
			p.pos++
			return name, attrs, false, nil
		}

		key := p.readName()
		if key == "" {
			return "", nil, false, merr.WrapErrFormat("bad attribute", "tag=%s offset=%d", name, p.pos)
		}
		p.skipSpace()
		if p.eof() || p.buf[p.pos] != '=' {
			// 没有取值的属性。
			attrs = append(attrs, Attr{Key: key})
			continue
		}
		p.pos++
		p.skipSpace()
		value, err := p.readAttrValue()
		if err != nil {
			return "", nil, false, err
		}
		attrs = append(attrs, Attr{Key: key, Value: value})
	}
}

func (p *parser) readName() string {
	start := p.pos
	for !p.eof() {
		c := p.buf[p.pos]
		if isSpace(c) || c == '>' || c == '/' || c == '=' || c == '<' {
			break
		}
		p.pos++
	}
	return string(p.buf[start:p.pos])
}

func (p *parser) readAttrValue() (string, error) {
	if p.eof() {
		return "", merr.WrapErrFormat("missing attribute value")
	}
	if q := p.buf[p.pos]; q == '"' || q == '\'' {
		end := bytes.IndexByte(p.buf[p.pos+1:], q)
		if end < 0 {
			return "", merr.WrapErrFormat("unterminated attribute value", "offset=%d", p.pos)
		}
		v := string(p.buf[p.pos+1 : p.pos+1+end])
		p.pos += end + 2
		return unescaper.Replace(v), nil
	}
	start := p.pos
	for !p.eof() {
		c := p.buf[p.pos]
		if isSpace(c) || c == '>' || (c == '/' && p.hasPrefix("/>")) {
			break
		}
		p.pos++
	}
	return unescaper.Replace(string(p.buf[start:p.pos])), nil
}

func (p *parser) parseCloseTag(name string) error {
	if !p.hasPrefix("</") {
		return merr.WrapErrFormat("expected closing tag", "tag=%s offset=%d", name, p.pos)
	}
	p.pos += 2
	got := p.readName()
	p.skipSpace()
	if got != name || p.eof() || p.buf[p.pos] != '>' {
		return merr.WrapErrFormat("mismatched closing tag", "expected=%s got=%s", name, got)
	}
	p.pos++
	return nil
}

// readUntilClose 返回直到 </name 之前的文本内容，并消费关闭标签。
func (p *parser) readUntilClose(name string) ([]byte, error) {
	idx := bytes.Index(p.buf[p.pos:], []byte("</"+name))
	if idx < 0 {
		return nil, merr.WrapErrFormat("unterminated element", "element=%s", name)
	}
	body := p.buf[p.pos : p.pos+idx]
	p.pos += idx
	if err := p.parseCloseTag(name); err != nil {
		return nil, err
	}
	return body, nil
}

func (p *parser) parseElementBody(name string, attrs Attrs) (Payload, error) {
	cols, err := parseNiType(attrs.Value(AttrNiType), len(p.buf))
	if err != nil {
		return nil, errors.Wrapf(err, "element %s", name)
	}
	rows, err := parseNiDimen(attrs.Value(AttrNiDimen), len(p.buf))
	if err != nil {
		return nil, errors.Wrapf(err, "element %s", name)
	}

	nString := 0
	for _, c := range cols {
		if c.isString {
			nString++
		}
	}
	switch {
	case nString == len(cols):
		body, err := p.readUntilClose(name)
		if err != nil {
			return nil, err
		}
		if rows == 1 && len(cols) == 1 {
			return decodeString(body)
		}
		return decodeStrings(body)
	case nString > 0:
		return nil, merr.WrapErrFormat("mixed String and numeric columns", "element=%s", name)
	}

	form := attrs.Value(AttrNiForm)
	order := byteOrder(form)
	switch {
	case strings.HasPrefix(form, "binary"):
		if rows < 0 {
			return nil, merr.WrapErrFormat("binary element without ni_dimen", "element=%s", name)
		}
		size := rows * rowSize(cols)
		if p.pos+size > len(p.buf) {
			return nil, merr.WrapErrFormat("truncated binary element", "element=%s", name)
		}
		raw := p.buf[p.pos : p.pos+size]
		p.pos += size
		p.skipSpace()
		if err := p.parseCloseTag(name); err != nil {
			return nil, err
		}
		m, err := decodeBinary(raw, rows, cols, order)
		if err != nil {
			return nil, err
		}
		return Numeric{m}, nil

	case strings.HasPrefix(form, "base64"):
		body, err := p.readUntilClose(name)
		if err != nil {
			return nil, err
		}
		raw, err := base64.StdEncoding.DecodeString(stripSpace(body))
		if err != nil {
			return nil, merr.WrapErrFormat("bad base64 content", "element=%s", name)
		}
		if rows < 0 {
			if rs := rowSize(cols); rs > 0 && len(raw)%rs == 0 {
				rows = len(raw) / rs
			}
		}
		m, err := decodeBinary(raw, rows, cols, order)
		if err != nil {
			return nil, err
		}
		return Numeric{m}, nil

	case form == "" || strings.HasPrefix(form, "text"):
		body, err := p.readUntilClose(name)
		if err != nil {
			return nil, err
		}
		m, err := decodeText(body, rows, cols)
		if err != nil {
			return nil, err
		}
		return Numeric{m}, nil

	default:
		return nil, merr.WrapErrFormat("unknown ni_form", "element=%s ni_form=%q", name, form)
	}
}

func byteOrder(form string) binary.ByteOrder {
	if strings.HasSuffix(form, ".msbfirst") {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func rowSize(cols []column) int {
	n := 0
	for _, c := range cols {
		n += c.dtype.Size()
	}
	return n
}

func decodeBinary(raw []byte, rows int, cols []column, order binary.ByteOrder) (*matrix.Matrix, error) {
	if rows < 0 || len(raw) != rows*rowSize(cols) {
		return nil, merr.WrapErrFormat("binary size does not match ni_type/ni_dimen",
			"bytes=%d rows=%d", len(raw), rows)
	}
	m, err := matrix.New(rows, len(cols), promote(cols))
	if err != nil {
		return nil, merr.WrapErrFormat(err.Error())
	}
	off := 0
	for i := 0; i < rows; i++ {
		for j, c := range cols {
			size := c.dtype.Size()
			b := raw[off : off+size]
			off += size
			var v float64
			switch c.dtype {
			case matrix.Uint8:
				v = float64(b[0])
			case matrix.Int16:
				v = float64(int16(order.Uint16(b)))
			case matrix.Int32:
				v = float64(int32(order.Uint32(b)))
			case matrix.Int64:
				v = float64(int64(order.Uint64(b)))
			case matrix.Float32:
				v = float64(math.Float32frombits(order.Uint32(b)))
			case matrix.Float64:
				v = math.Float64frombits(order.Uint64(b))
			}
			m.Set(i, j, v)
		}
	}
	return m, nil
}

func decodeText(body []byte, rows int, cols []column) (*matrix.Matrix, error) {
	fields := strings.Fields(string(body))
	if rows < 0 {
		if len(fields)%len(cols) != 0 {
			return nil, merr.WrapErrFormat("text value count is not a multiple of the column count",
				"values=%d cols=%d", len(fields), len(cols))
		}
		rows = len(fields) / len(cols)
	}
	if len(fields) != rows*len(cols) {
		return nil, merr.WrapErrFormat("text value count does not match ni_type/ni_dimen",
			"values=%d rows=%d cols=%d", len(fields), rows, len(cols))
	}
	m, err := matrix.New(rows, len(cols), promote(cols))
	if err != nil {
		return nil, merr.WrapErrFormat(err.Error())
	}
	for k, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, merr.WrapErrFormat("bad numeric value", "value=%q", f)
		}
		m.Set(k/len(cols), k%len(cols), cols[k%len(cols)].dtype.Cast(v))
	}
	return m, nil
}

// decodeStrings 解析以空白分隔的字符串，支持双引号、单引号与不带引号的写法。
// 只有一个字符串时返回 String，否则返回 Strings。
func decodeStrings(body []byte) (Payload, error) {
	var out []string
	i := 0
	for {
		for i < len(body) && isSpace(body[i]) {
			i++
		}
		if i >= len(body) {
			break
		}
		if q := body[i]; q == '"' || q == '\'' {
			end := bytes.IndexByte(body[i+1:], q)
			if end < 0 {
				return nil, merr.WrapErrFormat("unterminated string value")
			}
			out = append(out, unescaper.Replace(string(body[i+1:i+1+end])))
			i += end + 2
			continue
		}
		start := i
		for i < len(body) && !isSpace(body[i]) {
			i++
		}
		out = append(out, unescaper.Replace(string(body[start:i])))
	}
	switch len(out) {
	case 0:
		return String(""), nil
	case 1:
		return String(out[0]), nil
	default:
		return Strings(out), nil
	}
}

// decodeString 解析 ni_dimen 为 1 的字符串元素。
// 内容不是单个带引号的字符串时，整段去掉首尾空白后作为一个字符串。
func decodeString(body []byte) (Payload, error) {
	if v, err := decodeStrings(body); err == nil {
		if s, ok := v.(String); ok {
			return s, nil
		}
	}
	return String(unescaper.Replace(string(bytes.TrimFunc(body, func(r rune) bool {
		return r < 0x80 && isSpace(byte(r))
	})))), nil
}

func stripSpace(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		if !isSpace(c) {
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
