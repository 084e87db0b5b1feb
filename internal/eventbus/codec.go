package eventbus

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// metaEncoding — ключ метаданных с кодировкой полезной нагрузки
const metaEncoding = "encoding"

const encodingZstd = "zstd"

// Codec сериализует Envelope для передачи по сети и при необходимости
// сжимает полезную нагрузку zstd.
type Codec struct {
	threshold    int
	compressor   *zstd.Encoder
	decompressor *zstd.Decoder
}

// NewCodec создаёт кодек. threshold <= 0 отключает сжатие.
func NewCodec(threshold int) (*Codec, error) {
	c := &Codec{threshold: threshold}
	var err error
	if threshold > 0 {
		c.compressor, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("create compressor: %w", err)
		}
	}
	// Декодер нужен всегда: сжатые события могут прийти от другого узла
	c.decompressor, err = zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create decompressor: %w", err)
	}
	return c, nil
}

// Marshal кодирует событие; исходный Envelope не изменяется
func (c *Codec) Marshal(ev *Envelope) ([]byte, error) {
	out := *ev
	if c.compressor != nil && len(ev.Payload) >= c.threshold {
		out.Payload = c.compressor.EncodeAll(ev.Payload, nil)
		out.Metadata = make(map[string]string, len(ev.Metadata)+1)
		for k, v := range ev.Metadata {
			out.Metadata[k] = v
		}
		out.Metadata[metaEncoding] = encodingZstd
	}
	return json.Marshal(&out)
}

// Unmarshal декодирует событие и распаковывает полезную нагрузку
func (c *Codec) Unmarshal(data []byte) (*Envelope, error) {
	var ev Envelope
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if ev.Metadata[metaEncoding] == encodingZstd {
		payload, err := c.decompressor.DecodeAll(ev.Payload, nil)
		if err != nil {
			return nil, fmt.Errorf("decompression failed: %w", err)
		}
		ev.Payload = payload
		delete(ev.Metadata, metaEncoding)
		if len(ev.Metadata) == 0 {
			ev.Metadata = nil
		}
	}
	return &ev, nil
}

// Close освобождает ресурсы кодека
func (c *Codec) Close() {
	if c.compressor != nil {
		_ = c.compressor.Close()
	}
	c.decompressor.Close()
}
