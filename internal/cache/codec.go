package cache

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// codec compresses values persisted to sqlite. Encoder and Decoder are safe
// for concurrent EncodeAll/DecodeAll calls.
type codec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func newCodec() (*codec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = enc.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &codec{encoder: enc, decoder: dec}, nil
}

func (c *codec) compress(src []byte) []byte {
	return c.encoder.EncodeAll(src, make([]byte, 0, len(src)/2))
}

func (c *codec) decompress(src []byte) ([]byte, error) {
	out, err := c.decoder.DecodeAll(src, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress cache value: %w", err)
	}
	return out, nil
}

func (c *codec) close() {
	_ = c.encoder.Close()
	c.decoder.Close()
}
