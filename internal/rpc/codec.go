package rpc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// maxFrameBytes bounds a single frame so a misbehaving peer can't make the
// agent allocate an unbounded buffer from a corrupt length prefix.
const maxFrameBytes = 64 << 20 // 64 MiB

var errUnknownMethod = errors.New("rpc: unknown method")

// writeFrame msgpack-encodes v and writes it as a length-delimited frame
// tagged with m: a 4-byte big-endian length prefix over [method byte,
// msgpack payload] (spec.md §6 "length-prefixed RPC").
func writeFrame(w io.Writer, m method, v any) error {
	payload, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	body := make([]byte, 1+len(payload))
	body[0] = byte(m)
	copy(body[1:], payload)

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))

	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("write frame length: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("write frame body: %w", err)
	}
	return nil
}

// readRawFrame reads one length-delimited frame and returns its method tag
// and undecoded msgpack payload.
func readRawFrame(r io.Reader) (method, []byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return 0, nil, fmt.Errorf("read frame length: %w", err)
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n == 0 || uint64(n) > maxFrameBytes {
		return 0, nil, fmt.Errorf("invalid frame length %d", n)
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, fmt.Errorf("read frame body: %w", err)
	}
	return method(body[0]), body[1:], nil
}

// readFrame reads one frame and msgpack-decodes its payload into v.
func readFrame(r io.Reader, v any) (method, error) {
	m, payload, err := readRawFrame(r)
	if err != nil {
		return 0, err
	}
	if v != nil {
		if err := msgpack.Unmarshal(payload, v); err != nil {
			return m, fmt.Errorf("decode payload: %w", err)
		}
	}
	return m, nil
}

func decodePayload(payload []byte, v any) error {
	if err := msgpack.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
