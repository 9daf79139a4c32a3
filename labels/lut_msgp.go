package labels

import (
	"fmt"

	"github.com/tinylib/msgp/msgp"
)

// MarshalMsg implements msgp.Marshaler.  The LUT is written as a msgpack
// array of uint64 entries indexed by label.
func (lut *LUT) MarshalMsg(b []byte) (o []byte, err error) {
	o = msgp.Require(b, lut.Msgsize())
	o = msgp.AppendArrayHeader(o, uint32(len(lut.parent)))
	for _, p := range lut.parent {
		o = msgp.AppendUint64(o, p)
	}
	return
}

// UnmarshalMsg implements msgp.Unmarshaler.  The decoded table is checked
// for the acyclic invariant before being accepted.
func (lut *LUT) UnmarshalMsg(bts []byte) (o []byte, err error) {
	var sz uint32
	sz, bts, err = msgp.ReadArrayHeaderBytes(bts)
	if err != nil {
		return
	}
	if sz == 0 {
		err = fmt.Errorf("LUT must hold at least label 0")
		return
	}
	parent := make([]uint64, sz)
	for i := range parent {
		parent[i], bts, err = msgp.ReadUint64Bytes(bts)
		if err != nil {
			return
		}
	}
	decoded := LUT{parent: parent}
	if err = decoded.CheckAcyclic(); err != nil {
		return
	}
	lut.parent = parent
	o = bts
	return
}

// Msgsize returns an upper bound on the marshaled size.
func (lut *LUT) Msgsize() (s int) {
	s = msgp.ArrayHeaderSize + len(lut.parent)*msgp.Uint64Size
	return
}
