// File: internal/netcore/wsframe.go
// Author: momentics <momentics@gmail.com>
//
// RFC 6455 frame codec, adapted from the teacher's
// protocol/frame_codec.go byte-slice encode/decode pair (kept
// self-contained rather than the package's io.Reader variant in
// frame.go, which referenced opcode/bit constants that were never
// actually defined in that package).
package netcore

import (
	"crypto/rand"
	"encoding/binary"
	"errors"

	"github.com/momentics/netcore/api"
)

const wsFinBit = 0x80
const wsMaskBit = 0x80

// wsFrame is a decoded RFC 6455 frame. Payload aliases the input
// buffer it was decoded from; callers that keep it past the current
// read must copy it.
type wsFrame struct {
	final   bool
	opcode  int
	payload []byte
}

// decodeWSFrame parses one frame from the front of data. ok is false
// if data does not yet hold a complete frame. maxFrame of 0 falls back
// to api.MaxWSPayloadLen.
func decodeWSFrame(data []byte, maxFrame int64) (frame wsFrame, consumed int, ok bool, err error) {
	if maxFrame <= 0 {
		maxFrame = api.MaxWSPayloadLen
	}
	if len(data) < 2 {
		return wsFrame{}, 0, false, nil
	}
	final := data[0]&wsFinBit != 0
	opcode := int(data[0] & 0x0F)
	masked := data[1]&wsMaskBit != 0
	length := int64(data[1] & 0x7F)
	offset := 2

	switch length {
	case 126:
		if len(data) < offset+2 {
			return wsFrame{}, 0, false, nil
		}
		length = int64(binary.BigEndian.Uint16(data[offset:]))
		offset += 2
	case 127:
		if len(data) < offset+8 {
			return wsFrame{}, 0, false, nil
		}
		length = int64(binary.BigEndian.Uint64(data[offset:]))
		offset += 8
	}
	if length > maxFrame {
		return wsFrame{}, 0, false, errors.New("ws: frame payload exceeds maximum allowed size")
	}

	var maskKey [4]byte
	if masked {
		if len(data) < offset+4 {
			return wsFrame{}, 0, false, nil
		}
		copy(maskKey[:], data[offset:offset+4])
		offset += 4
	}

	total := offset + int(length)
	if len(data) < total {
		return wsFrame{}, 0, false, nil
	}
	payload := data[offset:total]
	if masked {
		unmasked := make([]byte, length)
		for i := range unmasked {
			unmasked[i] = payload[i] ^ maskKey[i%4]
		}
		payload = unmasked
	}
	return wsFrame{final: final, opcode: opcode, payload: payload}, total, true, nil
}

// encodeWSFrame appends one frame for payload to dst, masking it when
// mask is true (client-to-server frames must be masked per RFC 6455).
func encodeWSFrame(dst []byte, opcode int, payload []byte, mask bool) []byte {
	b0 := byte(wsFinBit | opcode)
	plen := len(payload)

	dst = append(dst, b0)
	switch {
	case plen <= 125:
		dst = append(dst, maskedLen(byte(plen), mask))
	case plen <= 0xFFFF:
		dst = append(dst, maskedLen(126, mask))
		var ext [2]byte
		binary.BigEndian.PutUint16(ext[:], uint16(plen))
		dst = append(dst, ext[:]...)
	default:
		dst = append(dst, maskedLen(127, mask))
		var ext [8]byte
		binary.BigEndian.PutUint64(ext[:], uint64(plen))
		dst = append(dst, ext[:]...)
	}

	if !mask {
		return append(dst, payload...)
	}
	var key [4]byte
	_, _ = rand.Read(key[:]) // RFC 6455 requires an unpredictable masking key per frame
	dst = append(dst, key[:]...)
	start := len(dst)
	dst = append(dst, payload...)
	for i := range payload {
		dst[start+i] ^= key[i%4]
	}
	return dst
}

func maskedLen(lenByte byte, mask bool) byte {
	if mask {
		return lenByte | wsMaskBit
	}
	return lenByte
}

// wsConnState tracks a single WS connection's handshake progress and
// frame reassembly, keyed off the owning netResource.
type wsConnState struct {
	isServer      bool
	handshakeDone bool
	handshakeBuf  []byte
	frameBuf      []byte
	path          string // client: upgrade request path; server: parsed from request line
	host          string
	maxFrame      int64 // 0 means api.MaxWSPayloadLen; set from WSOptions.MaxFrameSize
}

func (s *wsConnState) effectiveMaxFrame() int64 {
	if s.maxFrame > 0 {
		return s.maxFrame
	}
	return api.MaxWSPayloadLen
}

// RFC 6455 §11.8 opcode values.
const (
	wsOpcodeText   = 0x1
	wsOpcodeBinary = 0x2
	wsOpcodeClose  = 0x8
	wsOpcodePing   = 0x9
	wsOpcodePong   = 0xA
)
