// File: api/resourceid.go
// Author: momentics <momentics@gmail.com>
//
// Compact adapter-qualified resource identifier. Bit layout mirrors
// the adapter-id/kind/sequence split described for network resources:
// the low 7 bits carry the adapter id, bit 7 tags local vs. remote, and
// the remaining 56 bits carry a monotonic per-adapter sequence.

package api

import (
	"fmt"
	"sync/atomic"
)

type ResourceKind uint8

const (
	ResourceRemote ResourceKind = iota
	ResourceLocal
)

func (k ResourceKind) String() string {
	if k == ResourceLocal {
		return "L"
	}
	return "R"
}

const (
	adapterIDBits  = 7
	adapterIDMask  = uint64(1<<adapterIDBits) - 1
	kindBitPos     = adapterIDBits
	sequenceShift  = adapterIDBits + 1
	MaxAdapterID   = uint8(adapterIDMask)
	MaxAdapters    = int(MaxAdapterID) + 1
	MaxSequenceVal = ^uint64(0) >> sequenceShift
)

// ResourceID identifies a single kernel resource (socket or listener)
// within a node, for the lifetime of that resource. It is never reused
// within a single engine lifetime and is safe to copy, hash and compare.
type ResourceID uint64

func NewResourceID(adapterID uint8, kind ResourceKind, sequence uint64) ResourceID {
	var kindBit uint64
	if kind == ResourceLocal {
		kindBit = 1 << kindBitPos
	}
	return ResourceID(uint64(adapterID)&adapterIDMask | kindBit | sequence<<sequenceShift)
}

func (id ResourceID) AdapterID() uint8 {
	return uint8(uint64(id) & adapterIDMask)
}

func (id ResourceID) Kind() ResourceKind {
	if uint64(id)&(1<<kindBitPos) != 0 {
		return ResourceLocal
	}
	return ResourceRemote
}

func (id ResourceID) IsLocal() bool  { return id.Kind() == ResourceLocal }
func (id ResourceID) IsRemote() bool { return id.Kind() == ResourceRemote }

func (id ResourceID) Sequence() uint64 {
	return uint64(id) >> sequenceShift
}

func (id ResourceID) Raw() uint64 { return uint64(id) }

func (id ResourceID) String() string {
	return fmt.Sprintf("[%d.%s.%d]", id.AdapterID(), id.Kind(), id.Sequence())
}

// ResourceIDGenerator produces unique, monotonically increasing ids for
// a single adapter and resource kind. Safe for concurrent use.
type ResourceIDGenerator struct {
	adapterID uint8
	kind      ResourceKind
	seq       atomic.Uint64
}

func NewResourceIDGenerator(adapterID uint8, kind ResourceKind) *ResourceIDGenerator {
	return &ResourceIDGenerator{adapterID: adapterID, kind: kind}
}

func (g *ResourceIDGenerator) Generate() ResourceID {
	seq := g.seq.Add(1) - 1
	return NewResourceID(g.adapterID, g.kind, seq)
}
