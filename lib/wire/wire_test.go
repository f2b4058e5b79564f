// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestFrameSizes(t *testing.T) {
	tests := []struct {
		codec            Codec
		bits, label, frame int
	}{
		{Width32, 32, 4, 12},
		{Width64, 64, 8, 16},
	}
	for _, test := range tests {
		if test.codec.Bits() != test.bits {
			t.Errorf("Bits() = %d, want %d", test.codec.Bits(), test.bits)
		}
		if test.codec.LabelSize() != test.label {
			t.Errorf("LabelSize() = %d, want %d", test.codec.LabelSize(), test.label)
		}
		if test.codec.FrameSize() != test.frame {
			t.Errorf("FrameSize() = %d, want %d", test.codec.FrameSize(), test.frame)
		}
		if len(test.codec.EncodeNotify()) != test.label {
			t.Errorf("notify frame is %d bytes, want %d", len(test.codec.EncodeNotify()), test.label)
		}
	}
}

func TestRequestLayout(t *testing.T) {
	data, err := Width32.EncodeRequest(Request{Label: RequestA, Timestamp: 0x0102030405060708})
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{1, 0, 0, 0, 8, 7, 6, 5, 4, 3, 2, 1}
	if !bytes.Equal(data, want) {
		t.Errorf("request frame = % x, want % x", data, want)
	}
}

func TestReadMessageSequence(t *testing.T) {
	for _, codec := range []Codec{Width32, Width64} {
		t.Run(codec.String(), func(t *testing.T) {
			var stream bytes.Buffer
			first, _ := codec.EncodeRequest(Request{Label: RequestA, Timestamp: 111})
			stream.Write(first)
			stream.Write(codec.EncodeNotify())
			second, _ := codec.EncodeRequest(Request{Label: RequestB, Timestamp: 222})
			stream.Write(second)

			request, notify, err := codec.ReadMessage(&stream)
			if err != nil || notify || request != (Request{Label: RequestA, Timestamp: 111}) {
				t.Fatalf("first = %+v, %v, %v", request, notify, err)
			}
			request, notify, err = codec.ReadMessage(&stream)
			if err != nil || !notify || request.Label != SentinelLabel {
				t.Fatalf("second = %+v, %v, %v", request, notify, err)
			}
			request, notify, err = codec.ReadMessage(&stream)
			if err != nil || notify || request != (Request{Label: RequestB, Timestamp: 222}) {
				t.Fatalf("third = %+v, %v, %v", request, notify, err)
			}
			if _, _, err := codec.ReadMessage(&stream); err != io.EOF {
				t.Fatalf("after last frame: err = %v, want io.EOF", err)
			}
		})
	}
}

func TestShortReads(t *testing.T) {
	request, _ := Width32.EncodeRequest(Request{Label: RequestB, Timestamp: 9})
	tests := []struct {
		name string
		data []byte
	}{
		{"partial label", request[:2]},
		{"label without timestamp", request[:4]},
		{"partial timestamp", request[:7]},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, _, err := Width32.ReadMessage(bytes.NewReader(test.data))
			if !errors.Is(err, ErrIncompleteMessage) {
				t.Errorf("ReadMessage = %v, want ErrIncompleteMessage", err)
			}
		})
	}

	reply, _ := Width64.EncodeReply(Reply{Label: ReplyA, Latency: 5})
	if _, err := Width64.DecodeReply(reply[:len(reply)-1]); !errors.Is(err, ErrIncompleteMessage) {
		t.Errorf("DecodeReply(short) = %v, want ErrIncompleteMessage", err)
	}
	if _, err := Width64.ReadReply(bytes.NewReader(reply[:3])); !errors.Is(err, ErrIncompleteMessage) {
		t.Errorf("ReadReply(short) = %v, want ErrIncompleteMessage", err)
	}
}

func TestReplyDecode(t *testing.T) {
	data, err := Width64.EncodeReply(Reply{Label: ReplyB, Latency: 4321})
	if err != nil {
		t.Fatal(err)
	}
	reply, err := Width64.ReadReply(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if reply != (Reply{Label: ReplyB, Latency: 4321}) {
		t.Errorf("reply = %+v", reply)
	}
}

func TestSentinelIsNotARequestOrReply(t *testing.T) {
	if _, err := Width32.EncodeRequest(Request{Label: SentinelLabel}); !errors.Is(err, ErrSentinelCollision) {
		t.Errorf("EncodeRequest(sentinel) = %v, want ErrSentinelCollision", err)
	}
	if _, err := Width32.EncodeReply(Reply{Label: SentinelLabel}); !errors.Is(err, ErrUnexpectedSentinel) {
		t.Errorf("EncodeReply(sentinel) = %v, want ErrUnexpectedSentinel", err)
	}
	frame := append(Width32.EncodeNotify(), make([]byte, 8)...)
	if _, err := Width32.DecodeReply(frame); !errors.Is(err, ErrUnexpectedSentinel) {
		t.Errorf("DecodeReply(sentinel) = %v, want ErrUnexpectedSentinel", err)
	}
}

func TestLabelOverflow(t *testing.T) {
	wide := Label(1 << 40)
	if _, err := Width32.EncodeRequest(Request{Label: wide}); !errors.Is(err, ErrLabelOverflow) {
		t.Errorf("Width32 EncodeRequest(2^40) = %v, want ErrLabelOverflow", err)
	}
	if _, err := Width64.EncodeRequest(Request{Label: wide}); err != nil {
		t.Errorf("Width64 EncodeRequest(2^40) = %v", err)
	}
}

func TestValidateLabels(t *testing.T) {
	if err := ValidateLabels(Width32, RequestA, RequestB, CrasherLabel); err != nil {
		t.Fatalf("default labels rejected: %v", err)
	}

	err := ValidateLabels(Width32, RequestA, SentinelLabel, Label(1<<33))
	if !errors.Is(err, ErrSentinelCollision) {
		t.Errorf("error %v does not report the sentinel collision", err)
	}
	if !errors.Is(err, ErrLabelOverflow) {
		t.Errorf("error %v does not report the overflow", err)
	}
	var labelErr *LabelError
	if !errors.As(err, &labelErr) || labelErr.Label != SentinelLabel {
		t.Errorf("first LabelError = %+v, want sentinel", labelErr)
	}
}

func TestCodecForWidth(t *testing.T) {
	if codec, err := CodecForWidth(32); err != nil || codec != Width32 {
		t.Errorf("CodecForWidth(32) = %v, %v", codec, err)
	}
	if codec, err := CodecForWidth(64); err != nil || codec != Width64 {
		t.Errorf("CodecForWidth(64) = %v, %v", codec, err)
	}
	if _, err := CodecForWidth(16); err == nil {
		t.Error("CodecForWidth(16) succeeded")
	}
}
