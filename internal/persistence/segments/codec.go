package segments

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Codec turns slot payloads into zstd-compressed JSON blobs and back.
// An empty blob is an empty slot.
type Codec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func NewCodec() (*Codec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		_ = enc.Close()
		return nil, err
	}
	return &Codec{enc: enc, dec: dec}, nil
}

func (c *Codec) Encode(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return c.enc.EncodeAll(b, nil), nil
}

// Decode returns nil for an empty blob and an error for anything that is not a
// compressed JSON document.
func (c *Codec) Decode(blob []byte) (json.RawMessage, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	raw, err := c.dec.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("payload is not JSON")
	}
	return json.RawMessage(raw), nil
}

func (c *Codec) Close() {
	_ = c.enc.Close()
	c.dec.Close()
}
