// ThreatFeed - Real-Time Security Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package wire

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
)

// MaxFrameSize bounds a single frame read from a stream.
const MaxFrameSize = 1 << 20

// ErrFrameTooLarge is returned when a frame exceeds MaxFrameSize.
var ErrFrameTooLarge = errors.New("frame too large")

// Decoder reads frames from an SSE byte stream.
type Decoder struct {
	r   *bufio.Reader
	buf bytes.Buffer
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReaderSize(r, 16*1024)}
}

// Next blocks until a complete frame has been read. It returns io.EOF when
// the stream ends cleanly between frames and io.ErrUnexpectedEOF when it
// ends inside one.
func (d *Decoder) Next() (Frame, error) {
	d.buf.Reset()

	for {
		line, err := d.r.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			err = nil
			if d.buf.Len()+len(line) > MaxFrameSize {
				return Frame{}, ErrFrameTooLarge
			}
			d.buf.Write(line)
			continue
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				if d.buf.Len() > 0 || len(line) > 0 {
					return Frame{}, io.ErrUnexpectedEOF
				}
				return Frame{}, io.EOF
			}
			return Frame{}, fmt.Errorf("read frame: %w", err)
		}

		if d.buf.Len()+len(line) > MaxFrameSize {
			return Frame{}, ErrFrameTooLarge
		}

		blank := len(bytes.TrimRight(line, "\r\n")) == 0
		if blank {
			if d.buf.Len() == 0 {
				continue
			}
			return ParseFrame(d.buf.Bytes())
		}
		d.buf.Write(line)
	}
}
