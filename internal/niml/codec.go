package niml

import (
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/lk2023060901/niml-dset-go/internal/compressor"
	"github.com/lk2023060901/niml-dset-go/pkg/util/merr"
)

// CompressedSuffix 为需要整体 zstd 压缩的文件后缀。
const CompressedSuffix = ".zst"

// Codec 负责节点树与 NIML 字节流之间的转换。
//
// Pipeline（写出）：
//
//	groups --> NIML 文本/二进制 --> [zstd?] --> file
//
// Pipeline（读入）：
//
//	file --> [zstd? 按魔数识别] --> NIML 解析 --> groups
type Codec interface {
	// Read 读取并解析 path 指向的文件。
	Read(path string) ([]*Group, error)

	// Write 将 groups 以 form 编码写入 path。path 以 ".zst" 结尾时整体压缩。
	// 写入不是原子的，失败时可能留下不完整的文件。
	Write(path string, groups []*Group, form Form) error

	// Encode 将 groups 以 form 编码写入 w，不做压缩。
	Encode(w io.Writer, groups []*Group, form Form) error

	// Decode 从 r 读取全部内容并解析。
	Decode(r io.Reader) ([]*Group, error)
}

// Options 用于构造 Codec 的依赖注入参数。
type Options struct {
	// Compressor 用于 ".zst" 文件，允许为 nil（内部会创建默认的 ZstdCompressor）。
	Compressor compressor.Compressor
	// Compress 为 true 时，即使 path 不以 ".zst" 结尾也压缩写出。
	Compress bool
}

type codec struct {
	compressor compressor.Compressor
	compress   bool
}

var _ Codec = (*codec)(nil)

// New 创建一个 Codec。
func New(opts Options) (Codec, error) {
	c := &codec{
		compressor: opts.Compressor,
		compress:   opts.Compress,
	}
	if c.compressor == nil {
		zc, err := compressor.NewZstdCompressor()
		if err != nil {
			return nil, errors.Wrap(err, "codec: create zstd compressor")
		}
		c.compressor = zc
	}
	return c, nil
}

// Read 实现 Codec.Read。
func (c *codec) Read(path string) ([]*Group, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, merr.WrapErrIoFailed(path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, merr.WrapErrIoFailed(path, err)
	}
	groups, err := c.decodeBytes(data)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return groups, nil
}

// Write 实现 Codec.Write。
func (c *codec) Write(path string, groups []*Group, form Form) (err error) {
	var buf bytes.Buffer
	if err := encodeGroups(&buf, groups, form); err != nil {
		return err
	}
	data := buf.Bytes()
	if c.compress || strings.HasSuffix(path, CompressedSuffix) {
		data, err = c.compressor.Compress(nil, data)
		if err != nil {
			return merr.WrapErrIoFailed(path, err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return merr.WrapErrIoFailed(path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = merr.WrapErrIoFailed(path, cerr)
		}
	}()
	if _, err := f.Write(data); err != nil {
		return merr.WrapErrIoFailed(path, err)
	}
	return nil
}

// Encode 实现 Codec.Encode。
func (c *codec) Encode(w io.Writer, groups []*Group, form Form) error {
	if w == nil {
		return merr.WrapErrParameterInvalidMsg("codec: writer is nil")
	}
	return encodeGroups(w, groups, form)
}

// Decode 实现 Codec.Decode。
func (c *codec) Decode(r io.Reader) ([]*Group, error) {
	if r == nil {
		return nil, merr.WrapErrParameterInvalidMsg("codec: reader is nil")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, merr.WrapErrIoFailed("<stream>", err)
	}
	return c.decodeBytes(data)
}

func (c *codec) decodeBytes(data []byte) ([]*Group, error) {
	if compressor.IsZstd(data) {
		plain, err := c.compressor.Decompress(nil, data)
		if err != nil {
			return nil, merr.WrapErrFormat("bad zstd content", "cause=%s", err.Error())
		}
		data = plain
	}
	return decodeGroups(data)
}
