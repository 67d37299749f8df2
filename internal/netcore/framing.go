// File: internal/netcore/framing.go
// Author: momentics <momentics@gmail.com>
//
// Self-describing variable-length message framing used by FramedTcp.
// The first byte encodes the length directly when it fits in 0..251;
// otherwise it names the width (1, 2, 4 or 8 little-endian follow-up
// bytes) of the actual length. The decoder keeps a per-remote tail
// buffer and repeatedly parses complete messages out of it, tolerating
// arbitrary read-boundary alignment — grounded on the incremental
// decode loop of the original source's util::encoding::Decoder
// (store-then-retry-decode), adapted to this width-prefixed format.
package netcore

import "encoding/binary"

const (
	prefixDirectMax = 0xFB // values 0..251 encode their length directly
	prefixWidth1    = 0xFC
	prefixWidth2    = 0xFD
	prefixWidth4    = 0xFE
	prefixWidth8    = 0xFF
)

// maxPrefixLen is the largest number of bytes the length prefix can
// ever occupy (1 marker byte + 8 width bytes).
const maxPrefixLen = 9

// encodeLength appends the self-describing prefix for length to dst
// and returns the extended slice.
func encodeLength(dst []byte, length uint64) []byte {
	switch {
	case length <= prefixDirectMax:
		return append(dst, byte(length))
	case length <= 0xFF:
		dst = append(dst, prefixWidth1)
		return append(dst, byte(length))
	case length <= 0xFFFF:
		dst = append(dst, prefixWidth2)
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], uint16(length))
		return append(dst, b[:]...)
	case length <= 0xFFFFFFFF:
		dst = append(dst, prefixWidth4)
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(length))
		return append(dst, b[:]...)
	default:
		dst = append(dst, prefixWidth8)
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], length)
		return append(dst, b[:]...)
	}
}

// decodeLength attempts to parse a length prefix from the start of
// data. It returns the decoded length, the number of bytes the prefix
// occupied, and ok=false if data does not yet contain a complete
// prefix.
func decodeLength(data []byte) (length uint64, prefixLen int, ok bool) {
	if len(data) == 0 {
		return 0, 0, false
	}
	marker := data[0]
	switch {
	case marker <= prefixDirectMax:
		return uint64(marker), 1, true
	case marker == prefixWidth1:
		if len(data) < 2 {
			return 0, 0, false
		}
		return uint64(data[1]), 2, true
	case marker == prefixWidth2:
		if len(data) < 3 {
			return 0, 0, false
		}
		return uint64(binary.LittleEndian.Uint16(data[1:3])), 3, true
	case marker == prefixWidth4:
		if len(data) < 5 {
			return 0, 0, false
		}
		return uint64(binary.LittleEndian.Uint32(data[1:5])), 5, true
	default: // prefixWidth8
		if len(data) < 9 {
			return 0, 0, false
		}
		return binary.LittleEndian.Uint64(data[1:9]), 9, true
	}
}

// encodeMessage appends a complete length-prefixed frame for payload
// to dst and returns the extended slice.
func encodeMessage(dst []byte, payload []byte) []byte {
	dst = encodeLength(dst, uint64(len(payload)))
	return append(dst, payload...)
}

// frameDecoder incrementally reassembles complete messages out of a
// byte stream that may deliver partial prefixes, partial bodies, or
// several messages per read.
type frameDecoder struct {
	stored []byte
}

// feed appends data to the decoder and invokes onMessage once per
// complete frame it can now extract. onMessage's slice argument is a
// borrow into the decoder's internal buffer or the input data — it is
// only valid for the duration of the call.
func (d *frameDecoder) feed(data []byte, onMessage func([]byte)) {
	if len(d.stored) > 0 {
		d.stored = append(d.stored, data...)
		data = d.stored
		d.stored = nil
	}

	for {
		length, prefixLen, ok := decodeLength(data)
		if !ok {
			d.stored = append(d.stored, data...)
			return
		}
		total := prefixLen + int(length)
		if len(data) < total {
			d.stored = append(d.stored, data...)
			return
		}
		onMessage(data[prefixLen:total])
		data = data[total:]
		if len(data) == 0 {
			return
		}
	}
}
