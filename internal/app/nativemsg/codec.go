// Package nativemsg implements the browser native messaging framing:
// every message is a 32-bit little-endian byte length followed by that many
// bytes of JSON.
package nativemsg

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// DefaultMaxMessageBytes caps a single frame when the caller does not
// configure a limit.
const DefaultMaxMessageBytes = 1 << 20

// Codec reads and writes length-prefixed JSON frames. Reads are expected
// from a single goroutine; writes are serialized internally so concurrent
// responders cannot interleave frames.
type Codec struct {
	r        io.Reader
	w        io.Writer
	wmu      sync.Mutex
	maxBytes int
}

// NewCodec creates a codec over a reader/writer pair, usually stdin/stdout.
func NewCodec(r io.Reader, w io.Writer, maxBytes int) *Codec {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxMessageBytes
	}
	return &Codec{r: r, w: w, maxBytes: maxBytes}
}

// Read decodes the next frame into target. io.EOF means the browser closed
// the channel and the host should exit cleanly.
func (c *Codec) Read(target any) error {
	var header [4]byte
	if _, err := io.ReadFull(c.r, header[:]); err != nil {
		if err == io.EOF {
			return io.EOF
		}
		return fmt.Errorf("read frame header: %w", err)
	}

	length := binary.LittleEndian.Uint32(header[:])
	if length == 0 {
		return fmt.Errorf("zero-length frame")
	}
	// A length beyond the cap means the stream is desynced or hostile;
	// there is no way to resynchronize, so fail hard.
	if length > uint32(c.maxBytes) {
		return fmt.Errorf("frame of %d bytes exceeds limit of %d", length, c.maxBytes)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(c.r, payload); err != nil {
		return fmt.Errorf("read frame payload: %w", err)
	}

	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}
	return nil
}

// RawRead decodes the next frame without unmarshaling, for dispatch layers
// that route on a peeked field.
func (c *Codec) RawRead() (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.Read(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// Write encodes message as one frame. Safe for concurrent use.
func (c *Codec) Write(message any) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	if len(payload) > c.maxBytes {
		return fmt.Errorf("frame of %d bytes exceeds limit of %d", len(payload), c.maxBytes)
	}

	var header [4]byte
	binary.LittleEndian.PutUint32(header[:], uint32(len(payload)))

	c.wmu.Lock()
	defer c.wmu.Unlock()
	if _, err := c.w.Write(header[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if _, err := c.w.Write(payload); err != nil {
		return fmt.Errorf("write frame payload: %w", err)
	}
	return nil
}
