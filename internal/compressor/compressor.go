// Package compressor 提供 NIML 文件整体压缩所需的压缩/解压能力。
package compressor

import "bytes"

// Compressor 抽象了“整块压缩/解压”能力。
//
// 面向整个文件内容的一次性压缩，不涉及 NIML 流内部单个元素的压缩。
type Compressor interface {
	// Compress 将 src 压缩到 dst。
	//
	// dst 可以传入一个可复用的缓冲区（长度可为 0），实现可选择复用其底层容量；
	// 返回值为压缩后的完整数据。
	Compress(dst, src []byte) ([]byte, error)

	// Decompress 将压缩数据 src 解压到 dst。src 必须是 Compress 的输出。
	Decompress(dst, src []byte) ([]byte, error)
}

// NopCompressor 不做任何压缩/解压，直接返回输入内容。
type NopCompressor struct{}

func (NopCompressor) Compress(_ []byte, src []byte) ([]byte, error) {
	return src, nil
}

func (NopCompressor) Decompress(_ []byte, src []byte) ([]byte, error) {
	return src, nil
}

var _ Compressor = NopCompressor{}

// zstdMagic 是 zstd 帧的魔数（小端 0xFD2FB528）。
var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// IsZstd 判断 data 是否以 zstd 帧魔数开头。
func IsZstd(data []byte) bool {
	return bytes.HasPrefix(data, zstdMagic)
}
