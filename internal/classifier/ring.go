// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package classifier

import (
	"github.com/cilium/ebpf/ringbuf"

	"grimm.is/adamfw/internal/errors"
	"grimm.is/adamfw/internal/schema"
)

// RingReader drains the FIREWALL_EVENTS ring buffer and decodes each
// record into a schema.Event.
type RingReader struct {
	rd *ringbuf.Reader
}

// NewRingReader opens a reader over the loader's event map. The map exists
// once the Loader has loaded the program, so the reader can be opened
// before the classifier is attached; closing the Loader's underlying map
// closes the reader's readability too.
func NewRingReader(l *Loader) (*RingReader, error) {
	rd, err := ringbuf.NewReader(l.EventsMap())
	if err != nil {
		return nil, errors.Wrap(err, errors.KindUnavailable, "classifier: open ring reader")
	}
	return &RingReader{rd: rd}, nil
}

// Read blocks until the next event arrives (or the reader is closed from
// another goroutine to unblock a pending read), decodes it, and returns
// it.
func (r *RingReader) Read() (schema.Event, error) {
	rec, err := r.rd.Read()
	if err != nil {
		return schema.Event{}, err
	}
	var ev schema.Event
	if err := ev.UnmarshalBinary(rec.RawSample); err != nil {
		return schema.Event{}, errors.Wrap(err, errors.KindInternal, "classifier: decode ring event")
	}
	return ev, nil
}

// Close stops blocking reads and releases the ring buffer's resources.
// Safe to call concurrently with a pending Read to unblock it.
func (r *RingReader) Close() error {
	return r.rd.Close()
}
