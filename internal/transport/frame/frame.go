// Package frame implements the length-prefixed wire codec: a 4-byte
// big-endian length header followed by exactly that many payload bytes.
package frame

import (
	"encoding/binary"
	"errors"
	"io"
)

// HeaderSize is the fixed width of the length prefix.
const HeaderSize = 4

// DefaultMaxFrameSize is the deployment default for MaxFrameSize (16 MiB).
const DefaultMaxFrameSize = 16 * 1024 * 1024

var (
	ErrFrameTooLarge = errors.New("frame: payload exceeds max frame size")
	ErrPeerClosed    = errors.New("frame: peer closed connection")
	ErrReadError     = errors.New("frame: read error")
	ErrLimitInvalid  = errors.New("frame: max frame size must be a positive value below 2^32")
)

// Limits bounds the payload size a Codec will encode or decode.
type Limits struct {
	MaxFrameSize uint32
}

// DefaultLimits returns the deployment default frame size cap.
func DefaultLimits() Limits {
	return Limits{MaxFrameSize: DefaultMaxFrameSize}
}

// Validate rejects a non-positive size or one that would not fit the u32 header.
func (l Limits) Validate() error {
	if l.MaxFrameSize == 0 {
		return ErrLimitInvalid
	}
	return nil
}

// EncodeLength renders L as the 4-byte big-endian header.
func EncodeLength(l uint32) [HeaderSize]byte {
	var hdr [HeaderSize]byte
	binary.BigEndian.PutUint32(hdr[:], l)
	return hdr
}

// DecodeLength parses the 4-byte big-endian header. The caller is
// responsible for range-checking the result against Limits.
func DecodeLength(hdr []byte) uint32 {
	return binary.BigEndian.Uint32(hdr)
}

// Encode renders one complete frame (header + payload) as a single
// contiguous buffer so the caller can issue one gathered write and never
// interleave framing with another writer on the same stream.
func Encode(payload []byte, limits Limits) ([]byte, error) {
	if uint32(len(payload)) > limits.MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	out := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint32(out[:HeaderSize], uint32(len(payload)))
	copy(out[HeaderSize:], payload)
	return out, nil
}

// WriteFrame encodes payload and issues it as one Write call, preserving
// the header+payload atomicity the strand relies on.
func WriteFrame(w io.Writer, payload []byte, limits Limits) error {
	buf, err := Encode(payload, limits)
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}

// ReadFrame reads one frame from r. A zero-length frame yields (nil, nil);
// callers must treat that as a no-op and continue reading, never dispatch
// it to a handler. EOF on the header read is reported as ErrPeerClosed (a
// clean disconnect); any other I/O failure, including EOF mid-payload, is
// wrapped in ErrReadError so callers can tell the two apart.
func ReadFrame(r io.Reader, limits Limits) ([]byte, error) {
	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		// io.ReadFull returns io.ErrUnexpectedEOF (not io.EOF) when 1-3 of
		// the 4 header bytes arrived before the peer closed — still a clean
		// disconnect, not a read error.
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrPeerClosed
		}
		return nil, errors.Join(ErrReadError, err)
	}

	l := DecodeLength(hdr[:])
	if l == 0 {
		return nil, nil
	}
	if l > limits.MaxFrameSize {
		return nil, ErrFrameTooLarge
	}

	payload := make([]byte, l)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, errors.Join(ErrReadError, err)
	}
	return payload, nil
}
