// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// valueSize is the width of the timestamp/latency field.
const valueSize = 8

// Request is a client request: the label and the client's send
// timestamp in nanoseconds.
type Request struct {
	Label     Label
	Timestamp uint64
}

// Reply is the server's answer: the reply label and the server's own
// processing latency in nanoseconds.
type Reply struct {
	Label   Label
	Latency uint64
}

// Codec encodes and decodes frames for one label width.
type Codec struct {
	labelSize int
}

var (
	// Width32 encodes labels as 4 bytes.
	Width32 = Codec{labelSize: 4}

	// Width64 encodes labels as 8 bytes.
	Width64 = Codec{labelSize: 8}
)

// CodecForWidth returns the codec for a label width in bits.
func CodecForWidth(bits int) (Codec, error) {
	switch bits {
	case 32:
		return Width32, nil
	case 64:
		return Width64, nil
	}
	return Codec{}, fmt.Errorf("label width %d: must be 32 or 64", bits)
}

// Bits is the label width in bits.
func (c Codec) Bits() int { return c.labelSize * 8 }

func (c Codec) String() string { return fmt.Sprintf("width%d", c.Bits()) }

// Fits reports whether label is representable at this width.
func (c Codec) Fits(label Label) bool {
	return c.labelSize == 8 || label <= math.MaxUint32
}

// LabelSize is the number of bytes in a notify frame.
func (c Codec) LabelSize() int { return c.labelSize }

// FrameSize is the number of bytes in a request or reply frame.
func (c Codec) FrameSize() int { return c.labelSize + valueSize }

func (c Codec) putLabel(buffer []byte, label Label) error {
	if !c.Fits(label) {
		return &LabelError{Label: label, Err: ErrLabelOverflow}
	}
	if c.labelSize == 4 {
		binary.LittleEndian.PutUint32(buffer, uint32(label))
	} else {
		binary.LittleEndian.PutUint64(buffer, uint64(label))
	}
	return nil
}

func (c Codec) label(buffer []byte) Label {
	if c.labelSize == 4 {
		return Label(binary.LittleEndian.Uint32(buffer))
	}
	return Label(binary.LittleEndian.Uint64(buffer))
}

func (c Codec) encodeFrame(label Label, value uint64) ([]byte, error) {
	buffer := make([]byte, c.FrameSize())
	if err := c.putLabel(buffer, label); err != nil {
		return nil, err
	}
	binary.LittleEndian.PutUint64(buffer[c.labelSize:], value)
	return buffer, nil
}

// EncodeRequest encodes a request frame. The sentinel is not a request;
// use EncodeNotify for it.
func (c Codec) EncodeRequest(request Request) ([]byte, error) {
	if request.Label == SentinelLabel {
		return nil, &LabelError{Label: request.Label, Err: ErrSentinelCollision}
	}
	return c.encodeFrame(request.Label, request.Timestamp)
}

// EncodeReply encodes a reply frame.
func (c Codec) EncodeReply(reply Reply) ([]byte, error) {
	if reply.Label == SentinelLabel {
		return nil, &LabelError{Label: reply.Label, Err: ErrUnexpectedSentinel}
	}
	return c.encodeFrame(reply.Label, reply.Latency)
}

// EncodeNotify encodes the label-only data-ready frame.
func (c Codec) EncodeNotify() []byte {
	buffer := make([]byte, c.labelSize)
	// The sentinel fits both widths.
	_ = c.putLabel(buffer, SentinelLabel)
	return buffer
}

// DecodeReply decodes a reply frame. data must hold at least
// FrameSize bytes; extra bytes are ignored.
func (c Codec) DecodeReply(data []byte) (Reply, error) {
	if len(data) < c.FrameSize() {
		return Reply{}, fmt.Errorf("reply frame: %d of %d bytes: %w", len(data), c.FrameSize(), ErrIncompleteMessage)
	}
	reply := Reply{
		Label:   c.label(data),
		Latency: binary.LittleEndian.Uint64(data[c.labelSize:]),
	}
	if reply.Label == SentinelLabel {
		return Reply{}, &LabelError{Label: reply.Label, Err: ErrUnexpectedSentinel}
	}
	return reply, nil
}

// ReadMessage reads one inbound frame from r: either a notify (label
// only) or a request (label and timestamp). It reads the label first
// and only reads the timestamp when the label is not the sentinel, so
// a notify frame never blocks waiting for bytes that will not come.
//
// The returned bool is true for a notify frame. A stream that ends
// before a full frame yields ErrIncompleteMessage; a stream that ends
// cleanly before any byte yields io.EOF.
func (c Codec) ReadMessage(r io.Reader) (Request, bool, error) {
	buffer := make([]byte, c.FrameSize())
	if _, err := io.ReadFull(r, buffer[:c.labelSize]); err != nil {
		return Request{}, false, incomplete("label", err, true)
	}
	label := c.label(buffer)
	if label == SentinelLabel {
		return Request{Label: label}, true, nil
	}
	if _, err := io.ReadFull(r, buffer[c.labelSize:]); err != nil {
		return Request{}, false, incomplete("timestamp", err, false)
	}
	return Request{
		Label:     label,
		Timestamp: binary.LittleEndian.Uint64(buffer[c.labelSize:]),
	}, false, nil
}

// ReadReply reads one reply frame from r.
func (c Codec) ReadReply(r io.Reader) (Reply, error) {
	buffer := make([]byte, c.FrameSize())
	if _, err := io.ReadFull(r, buffer); err != nil {
		return Reply{}, incomplete("reply", err, true)
	}
	return c.DecodeReply(buffer)
}

// incomplete maps a short read to ErrIncompleteMessage. A clean EOF
// stays io.EOF only at a frame boundary.
func incomplete(field string, err error, boundary bool) error {
	if err == io.EOF && boundary {
		return io.EOF
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return fmt.Errorf("reading %s: %w", field, ErrIncompleteMessage)
	}
	return fmt.Errorf("reading %s: %w", field, err)
}
