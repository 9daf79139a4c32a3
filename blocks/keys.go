package blocks

import (
	"encoding/binary"
	"fmt"
	"image"
	"strings"
)

// keyType is the first byte of every key, partitioning the key space.
type keyType byte

const (
	// keyUnknown should never be used and is a check for corrupt or incorrectly set keys
	keyUnknown keyType = iota

	keyMetadata = 31
	keyBlock    = 32
	keyLUT      = 33
)

func (t keyType) String() string {
	switch t {
	case keyMetadata:
		return "Raster metadata"
	case keyBlock:
		return "Raster block"
	case keyLUT:
		return "Label LUT"
	default:
		return "Unknown Key Type"
	}
}

func checkName(name string) error {
	if name == "" {
		return fmt.Errorf("raster name can't be empty")
	}
	if strings.IndexByte(name, 0) >= 0 {
		return fmt.Errorf("raster name %q can't contain a zero byte", name)
	}
	return nil
}

func nameKey(t keyType, name string) []byte {
	k := make([]byte, 1+len(name)+1)
	k[0] = byte(t)
	copy(k[1:], name)
	return k
}

// blockKey is (keyBlock, name, 0, bx, by) with coordinates big-endian so
// blocks of one raster sort row by row.
func blockKey(name string, b image.Point) []byte {
	k := nameKey(keyBlock, name)
	k = binary.BigEndian.AppendUint32(k, uint32(b.Y))
	k = binary.BigEndian.AppendUint32(k, uint32(b.X))
	return k
}

// decodeBlockKey returns the block coordinate of a block key for name.
func decodeBlockKey(name string, k []byte) (image.Point, error) {
	prefix := nameKey(keyBlock, name)
	if len(k) != len(prefix)+8 || string(k[:len(prefix)]) != string(prefix) {
		return image.Point{}, fmt.Errorf("key %x is not a block key of raster %q", k, name)
	}
	y := binary.BigEndian.Uint32(k[len(prefix):])
	x := binary.BigEndian.Uint32(k[len(prefix)+4:])
	return image.Pt(int(x), int(y)), nil
}
