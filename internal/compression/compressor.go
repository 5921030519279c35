package compression

import (
	"bytes"
	"fmt"
	"io"
	"iotd/internal/structures"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

type CompressorInterface interface {
	Compress(val []byte) ([]byte, error)
	Decompress(val []byte) ([]byte, error)
	Close()
}

type ZstdCompression struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func (z *ZstdCompression) Compress(val []byte) ([]byte, error) {
	return z.encoder.EncodeAll(val, make([]byte, 0, len(val)/2)), nil
}

func (z *ZstdCompression) Decompress(val []byte) ([]byte, error) {
	return z.decoder.DecodeAll(val, nil)
}

func (z *ZstdCompression) Close() {
	_ = z.encoder.Close()
	z.decoder.Close()
}

func NewZstdCompressor() (CompressorInterface, error) {
	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &ZstdCompression{encoder: encoder, decoder: decoder}, nil
}

type GzipCompression struct {
	level int
}

func (g *GzipCompression) Compress(val []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, g.level)
	if err != nil {
		return nil, err
	}
	if _, err = w.Write(val); err != nil {
		return nil, err
	}
	if err = w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *GzipCompression) Decompress(val []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(val))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (g *GzipCompression) Close() {}

func NewGzipCompressor() CompressorInterface {
	return &GzipCompression{level: gzip.DefaultCompression}
}

// NewCompressor picks the archive compressor named in the configuration.
func NewCompressor(conf *structures.Config) (CompressorInterface, error) {
	switch conf.Archive.Codec {
	case "gzip":
		return NewGzipCompressor(), nil
	case "", "zstd":
		return NewZstdCompressor()
	default:
		return nil, fmt.Errorf("unknown archive codec %q", conf.Archive.Codec)
	}
}
