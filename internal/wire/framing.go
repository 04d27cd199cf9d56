// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameSize bounds a single record to guard against a corrupt or
// hostile length prefix forcing an unbounded allocation.
const MaxFrameSize = 1 << 20 // 1 MiB

type binaryMarshaler interface {
	MarshalBinary() ([]byte, error)
}

// WriteFrame encodes v and writes it as a single length-prefixed frame:
// a little-endian uint32 byte count followed by the encoded record.
func WriteFrame(w io.Writer, v binaryMarshaler) error {
	b, err := v.MarshalBinary()
	if err != nil {
		return fmt.Errorf("wire: encode frame: %w", err)
	}
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(b)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("wire: write frame length: %w", err)
	}
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("wire: write frame body: %w", err)
	}
	return nil
}

// ReadFrame reads exactly one length-prefixed frame from r and returns
// its raw body. Callers decode the body into the expected record type.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n > MaxFrameSize {
		return nil, fmt.Errorf("wire: frame of %d bytes exceeds maximum %d", n, MaxFrameSize)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("wire: read frame body: %w", err)
	}
	return body, nil
}

// ReadMessage reads and decodes one Message frame.
func ReadMessage(r io.Reader) (Message, error) {
	body, err := ReadFrame(r)
	if err != nil {
		return Message{}, err
	}
	var m Message
	if err := m.UnmarshalBinary(body); err != nil {
		return Message{}, err
	}
	return m, nil
}

// ReadResponse reads and decodes one Response frame.
func ReadResponse(r io.Reader) (Response, error) {
	body, err := ReadFrame(r)
	if err != nil {
		return Response{}, err
	}
	var resp Response
	if err := resp.UnmarshalBinary(body); err != nil {
		return Response{}, err
	}
	return resp, nil
}

// ReadLog reads and decodes one Log frame.
func ReadLog(r io.Reader) (Log, error) {
	body, err := ReadFrame(r)
	if err != nil {
		return Log{}, err
	}
	var l Log
	if err := l.UnmarshalBinary(body); err != nil {
		return Log{}, err
	}
	return l, nil
}
