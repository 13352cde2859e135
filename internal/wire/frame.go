// Package wire implements the length-prefixed, JSON-tagged-union framing
// shared by the client<->scheduler, scheduler<->sequencer, and
// scheduler<->replica protocols. Every frame is a 4-byte big-endian length
// header followed by that many bytes of goccy/go-json-encoded payload.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	json "github.com/goccy/go-json"
)

// MaxFrameSize bounds a single frame to guard against a corrupt or hostile
// length header forcing an unbounded allocation.
const MaxFrameSize = 64 << 20 // 64 MiB

// ReadFrame reads one length-prefixed frame from r.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(header[:])
	if n > MaxFrameSize {
		return nil, fmt.Errorf("wire: frame of %d bytes exceeds max %d", n, MaxFrameSize)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// WriteFrame writes one length-prefixed frame to w.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return fmt.Errorf("wire: payload of %d bytes exceeds max %d", len(payload), MaxFrameSize)
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadJSON reads one frame from r and decodes it as v.
func ReadJSON(r io.Reader, v interface{}) error {
	buf, err := ReadFrame(r)
	if err != nil {
		return err
	}
	return json.Unmarshal(buf, v)
}

// WriteJSON encodes v and writes it to w as one frame.
func WriteJSON(w io.Writer, v interface{}) error {
	buf, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return WriteFrame(w, buf)
}
