// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package wire defines the length-framed, binary request/response and
// event schemas that tie the HTTP controller, the supervisor, and the
// in-kernel classifier together over a Unix-domain control socket and a
// Unix-domain event socket. Every record has a deterministic binary
// encoding; framing is a little-endian uint32 length prefix followed by
// exactly that many bytes (one record per frame).
package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"
)

// writer accumulates a record's deterministic byte encoding.
type writer struct {
	buf bytes.Buffer
}

func (w *writer) byte(b byte)     { w.buf.WriteByte(b) }
func (w *writer) bool(b bool) {
	if b {
		w.buf.WriteByte(1)
	} else {
		w.buf.WriteByte(0)
	}
}
func (w *writer) u16(v uint16) { binary.Write(&w.buf, binary.LittleEndian, v) }
func (w *writer) u32(v uint32) { binary.Write(&w.buf, binary.LittleEndian, v) }
func (w *writer) i64(v int64)  { binary.Write(&w.buf, binary.LittleEndian, v) }
func (w *writer) raw(b []byte) { w.buf.Write(b) }
func (w *writer) str(s string) {
	w.u32(uint32(len(s)))
	w.buf.WriteString(s)
}
func (w *writer) bytes() []byte { return w.buf.Bytes() }

// reader consumes a record's deterministic byte encoding.
type reader struct {
	b   []byte
	pos int
}

func newReader(b []byte) *reader { return &reader{b: b} }

func (r *reader) need(n int) error {
	if r.pos+n > len(r.b) {
		return fmt.Errorf("wire: truncated record: need %d bytes at offset %d, have %d total", n, r.pos, len(r.b))
	}
	return nil
}

func (r *reader) byteVal() (byte, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.b[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) boolVal() (bool, error) {
	v, err := r.byteVal()
	return v != 0, err
}

func (r *reader) u16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.b[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.b[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) i64() (int64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := int64(binary.LittleEndian.Uint64(r.b[r.pos:]))
	r.pos += 8
	return v, nil
}

func (r *reader) rawN(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	v := r.b[r.pos : r.pos+n]
	r.pos += n
	return v, nil
}

func (r *reader) str() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", err
	}
	v, err := r.rawN(int(n))
	if err != nil {
		return "", err
	}
	return string(v), nil
}

func (r *reader) done() error {
	if r.pos != len(r.b) {
		return fmt.Errorf("wire: %d trailing bytes after decode", len(r.b)-r.pos)
	}
	return nil
}

func encodeTime(w *writer, t time.Time) { w.i64(t.UnixNano()) }

func decodeTime(r *reader) (time.Time, error) {
	nanos, err := r.i64()
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, nanos).UTC(), nil
}
