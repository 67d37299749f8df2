// File: internal/netcore/framing_test.go
// Author: momentics <momentics@gmail.com>
package netcore

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeLengthRoundTrip(t *testing.T) {
	cases := []uint64{0, 1, 251, 252, 255, 256, 65535, 65536, 1 << 20, 1 << 40}
	for _, length := range cases {
		encoded := encodeLength(nil, length)
		got, prefixLen, ok := decodeLength(encoded)
		if !ok {
			t.Fatalf("decodeLength(%d) reported incomplete on a full prefix", length)
		}
		if got != length {
			t.Fatalf("decodeLength(%d) = %d", length, got)
		}
		if prefixLen != len(encoded) {
			t.Fatalf("decodeLength(%d) consumed %d, want %d", length, prefixLen, len(encoded))
		}
	}
}

func TestDecodeLengthDirectByteBoundary(t *testing.T) {
	if _, prefixLen, ok := decodeLength([]byte{251}); !ok || prefixLen != 1 {
		t.Fatalf("251 should encode directly in one byte, got prefixLen=%d ok=%v", prefixLen, ok)
	}
	if marker := encodeLength(nil, 252)[0]; marker != prefixWidth1 {
		t.Fatalf("252 should switch to the width-1 marker, got %#x", marker)
	}
}

func TestDecodeLengthIncompletePrefix(t *testing.T) {
	full := encodeLength(nil, 1_000_000)
	for i := 0; i < len(full)-1; i++ {
		if _, _, ok := decodeLength(full[:i]); ok {
			t.Fatalf("decodeLength should report incomplete on a %d-byte truncated prefix", i)
		}
	}
}

func TestFrameDecoderSingleMessagePerRead(t *testing.T) {
	var d frameDecoder
	var got [][]byte
	msg := encodeMessage(nil, []byte("hello"))
	d.feed(msg, func(payload []byte) {
		got = append(got, append([]byte(nil), payload...))
	})
	if len(got) != 1 || string(got[0]) != "hello" {
		t.Fatalf("got %v", got)
	}
}

func TestFrameDecoderCoalescedMessagesInOneRead(t *testing.T) {
	var d frameDecoder
	var got []string
	buf := encodeMessage(nil, []byte("one"))
	buf = encodeMessage(buf, []byte("two"))
	buf = encodeMessage(buf, []byte("three"))
	d.feed(buf, func(payload []byte) {
		got = append(got, string(payload))
	})
	want := []string{"one", "two", "three"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestFrameDecoderSplitAcrossReads(t *testing.T) {
	var d frameDecoder
	var got []string
	full := encodeMessage(nil, []byte("split-message"))

	for i := 1; i < len(full); i++ {
		split := i
		var d2 frameDecoder
		var parts []string
		d2.feed(full[:split], func(payload []byte) { parts = append(parts, string(payload)) })
		d2.feed(full[split:], func(payload []byte) { parts = append(parts, string(payload)) })
		if len(parts) != 1 || parts[0] != "split-message" {
			t.Fatalf("split at byte %d: got %v", split, parts)
		}
	}

	// Also exercise the shared decoder across three separate partial feeds.
	d.feed(full[:2], func(payload []byte) { got = append(got, string(payload)) })
	d.feed(full[2:5], func(payload []byte) { got = append(got, string(payload)) })
	d.feed(full[5:], func(payload []byte) { got = append(got, string(payload)) })
	if len(got) != 1 || got[0] != "split-message" {
		t.Fatalf("got %v", got)
	}
}

func TestEncodeMessageRoundTripsThroughFeed(t *testing.T) {
	var d frameDecoder
	payload := bytes.Repeat([]byte("x"), 300) // forces the width-2 prefix
	msg := encodeMessage(nil, payload)

	var got []byte
	d.feed(msg, func(p []byte) { got = append([]byte(nil), p...) })
	if !bytes.Equal(got, payload) {
		t.Fatalf("round trip mismatch: got %d bytes, want %d", len(got), len(payload))
	}
}
