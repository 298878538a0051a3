// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"math"
	"reflect"
	"testing"
)

// counterRecord mirrors the shape of one rendered counter group.
type counterRecord struct {
	Object       string  `json:"Object"`
	Instructions uint64  `json:"Instructions Retired Any"`
	Frequency    float64 `json:"Core Frequency"`
	Headroom     int32   `json:"Thermal Headroom"`
}

func TestMarshalUnmarshalRoundtrip(t *testing.T) {
	original := counterRecord{
		Object:       "HyperThread",
		Instructions: 1 << 40,
		Frequency:    2.5e9,
		Headroom:     -12,
	}
	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded counterRecord
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded != original {
		t.Errorf("roundtrip mismatch: got %+v, want %+v", decoded, original)
	}
}

func TestMarshalSortsMapKeys(t *testing.T) {
	first, err := Marshal(map[string]any{"b": 1, "a": 2, "Socket ID": 0})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	second, err := Marshal(map[string]any{"Socket ID": 0, "a": 2, "b": 1})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("deterministic encoding violated: %x != %x", first, second)
	}
}

func TestShortestFloats(t *testing.T) {
	tests := []struct {
		value float64
		size  int
	}{
		{1.5, 3},
		{100000, 5},
		{0.1, 9},
		{math.NaN(), 3},
		{math.Inf(1), 3},
	}
	for _, test := range tests {
		data, err := Marshal(test.value)
		if err != nil {
			t.Fatalf("Marshal(%v): %v", test.value, err)
		}
		if len(data) != test.size {
			t.Errorf("Marshal(%v) = %x (%d bytes), want %d bytes", test.value, data, len(data), test.size)
		}
	}
}

func TestUntypedMapsDecodeWithStringKeys(t *testing.T) {
	data, err := Marshal(map[string]any{
		"Sockets": []any{map[string]any{"Socket ID": uint64(0)}},
	})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	want := map[string]any{
		"Sockets": []any{map[string]any{"Socket ID": uint64(0)}},
	}
	if !reflect.DeepEqual(decoded, want) {
		t.Errorf("decoded = %#v, want %#v", decoded, want)
	}
}

func TestEncoderDecoderStream(t *testing.T) {
	records := []counterRecord{
		{Object: "Core", Instructions: 1},
		{Object: "Socket", Instructions: 2, Frequency: 1e9},
	}
	var buffer bytes.Buffer
	encoder := NewEncoder(&buffer)
	for _, record := range records {
		if err := encoder.Encode(record); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}
	decoder := NewDecoder(&buffer)
	for index, want := range records {
		var got counterRecord
		if err := decoder.Decode(&got); err != nil {
			t.Fatalf("Decode record %d: %v", index, err)
		}
		if got != want {
			t.Errorf("record %d = %+v, want %+v", index, got, want)
		}
	}
}

func TestUnmarshalInvalidCBOR(t *testing.T) {
	var record counterRecord
	if err := Unmarshal([]byte{0xFF, 0xFE, 0xFD}, &record); err == nil {
		t.Error("Unmarshal should reject invalid CBOR")
	}
}

func BenchmarkMarshal(b *testing.B) {
	record := counterRecord{Object: "HyperThread", Instructions: 123456789, Frequency: 3.1e9}
	b.ReportAllocs()
	for b.Loop() {
		Marshal(record)
	}
}
