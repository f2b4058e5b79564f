// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"strings"
	"testing"
)

type sampleEvent struct {
	Source uint32 `cbor:"source"`
	Note   string `cbor:"note,omitempty"`
}

func TestMarshalUnmarshal(t *testing.T) {
	original := sampleEvent{Source: 2, Note: "before fault"}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded sampleEvent
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded != original {
		t.Errorf("decoded %+v, want %+v", decoded, original)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	summary := map[string]uint64{"max_ns": 9, "count": 4, "min_ns": 1, "sum_ns": 20}

	first, err := Marshal(summary)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for range 10 {
		again, err := Marshal(summary)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("map encoding is not deterministic: %x vs %x", first, again)
		}
	}
}

func TestUnmarshalRejectsTrailingBytes(t *testing.T) {
	data, err := Marshal(sampleEvent{Source: 0})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	data = append(data, data...)

	var decoded sampleEvent
	if err := Unmarshal(data, &decoded); err == nil {
		t.Fatal("Unmarshal accepted two concatenated items")
	}
}

func TestOmitEmpty(t *testing.T) {
	data, err := Marshal(sampleEvent{Source: 1})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	diagnostic, err := Diagnose(data)
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	if strings.Contains(diagnostic, "note") {
		t.Errorf("empty note encoded: %s", diagnostic)
	}
	if !strings.Contains(diagnostic, `"source": 1`) {
		t.Errorf("diagnostic %s missing source", diagnostic)
	}
}

func TestEncoderStream(t *testing.T) {
	var buffer bytes.Buffer
	encoder := NewEncoder(&buffer)
	if err := encoder.Encode(sampleEvent{Source: 7}); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var decoded sampleEvent
	if err := Unmarshal(buffer.Bytes(), &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Source != 7 {
		t.Errorf("Source = %d, want 7", decoded.Source)
	}
}
