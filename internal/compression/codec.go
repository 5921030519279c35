package compression

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// DefaultRecordSize is the per-record size assumed when the encoded size of
// a record cannot be measured.
const DefaultRecordSize = 500

type CodecInterface interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, out any) error
	DecodeText(data []byte) ([]byte, error)
	EstimateCompressedSize(v any) int
}

// Codec serializes structured values to JSON and compresses the result.
type Codec struct {
	compressor CompressorInterface
}

func NewCodec(compressor CompressorInterface) CodecInterface {
	return &Codec{compressor: compressor}
}

func (c *Codec) Encode(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("serialize: %w", err)
	}
	out, err := c.compressor.Compress(raw)
	if err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}
	return out, nil
}

func (c *Codec) DecodeText(data []byte) ([]byte, error) {
	raw, err := c.compressor.Decompress(data)
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}
	return raw, nil
}

func (c *Codec) Decode(data []byte, out any) error {
	raw, err := c.DecodeText(data)
	if err != nil {
		return err
	}
	if err = json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("deserialize: %w", err)
	}
	return nil
}

func (c *Codec) EstimateCompressedSize(v any) int {
	out, err := c.Encode(v)
	if err != nil {
		return DefaultRecordSize
	}
	return len(out)
}

// Ratio is compressed/original, 0 when original is 0.
func Ratio(original, compressed int) float64 {
	if original == 0 {
		return 0
	}
	return float64(compressed) / float64(original)
}
