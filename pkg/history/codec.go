package history

import (
	"fmt"

	"github.com/Salvionied/cbor/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/fortiblox/soroscope/pkg/report"
)

// codec stores reports as zstd-compressed CBOR.
type codec struct {
	mode    cbor.EncMode
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func newCodec() (*codec, error) {
	mode, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		return nil, fmt.Errorf("cbor mode: %w", err)
	}
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &codec{mode: mode, encoder: encoder, decoder: decoder}, nil
}

func (c *codec) encode(r *report.Report) ([]byte, error) {
	raw, err := c.mode.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("cbor encode: %w", err)
	}
	return c.encoder.EncodeAll(raw, nil), nil
}

func (c *codec) decode(data []byte) (*report.Report, error) {
	raw, err := c.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decode: %w", err)
	}
	var r report.Report
	if err := cbor.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("cbor decode: %w", err)
	}
	return &r, nil
}

func (c *codec) close() {
	c.encoder.Close()
	c.decoder.Close()
}
