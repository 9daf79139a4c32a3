package blocks

import (
	"fmt"
	"image"

	"github.com/blang/semver"
	"github.com/tinylib/msgp/msgp"
)

// FormatVersion is written with every raster.  Rasters with a different
// major version can't be read.
var FormatVersion = semver.MustParse("1.0.0")

// Kind is the pixel type of a stored raster.
type Kind uint8

const (
	LabelKind Kind = iota + 1
	SpectralKind
)

func (k Kind) String() string {
	switch k {
	case LabelKind:
		return "labels"
	case SpectralKind:
		return "spectral"
	default:
		return fmt.Sprintf("unknown kind %d", uint8(k))
	}
}

// Metadata describes a stored raster.
type Metadata struct {
	Kind      Kind
	Bounds    image.Rectangle
	BlockSize image.Point
	Bands     int
	Version   semver.Version
}

// pixelBytes is the encoded size of one pixel.
func (m Metadata) pixelBytes() int {
	if m.Kind == SpectralKind {
		return 8 * m.Bands
	}
	return 8
}

// blockBytes is the decoded size of one full block.
func (m Metadata) blockBytes() int {
	return m.BlockSize.X * m.BlockSize.Y * m.pixelBytes()
}

// blockRect returns the pixel extent of block b before clipping to the bounds.
func (m Metadata) blockRect(b image.Point) image.Rectangle {
	min := m.Bounds.Min.Add(image.Pt(b.X*m.BlockSize.X, b.Y*m.BlockSize.Y))
	return image.Rectangle{Min: min, Max: min.Add(m.BlockSize)}
}

// blocksCovering returns the range of block coordinates intersecting r.
func (m Metadata) blocksCovering(r image.Rectangle) (min, max image.Point) {
	off := r.Sub(m.Bounds.Min)
	min = image.Pt(off.Min.X/m.BlockSize.X, off.Min.Y/m.BlockSize.Y)
	max = image.Pt((off.Max.X-1)/m.BlockSize.X, (off.Max.Y-1)/m.BlockSize.Y)
	return
}

func (m Metadata) check() error {
	if m.Kind != LabelKind && m.Kind != SpectralKind {
		return fmt.Errorf("bad raster kind %d", m.Kind)
	}
	if m.Bounds.Empty() {
		return fmt.Errorf("raster bounds %v are empty", m.Bounds)
	}
	if m.BlockSize.X <= 0 || m.BlockSize.Y <= 0 {
		return fmt.Errorf("block size %v must be positive", m.BlockSize)
	}
	if m.Kind == SpectralKind && m.Bands <= 0 {
		return fmt.Errorf("spectral raster needs at least one band, got %d", m.Bands)
	}
	return nil
}

// MarshalMsg implements msgp.Marshaler.
func (m *Metadata) MarshalMsg(b []byte) (o []byte, err error) {
	o = msgp.Require(b, m.Msgsize())
	o = msgp.AppendArrayHeader(o, 9)
	o = msgp.AppendUint8(o, uint8(m.Kind))
	o = msgp.AppendInt(o, m.Bounds.Min.X)
	o = msgp.AppendInt(o, m.Bounds.Min.Y)
	o = msgp.AppendInt(o, m.Bounds.Max.X)
	o = msgp.AppendInt(o, m.Bounds.Max.Y)
	o = msgp.AppendInt(o, m.BlockSize.X)
	o = msgp.AppendInt(o, m.BlockSize.Y)
	o = msgp.AppendInt(o, m.Bands)
	o = msgp.AppendString(o, m.Version.String())
	return
}

// UnmarshalMsg implements msgp.Unmarshaler.
func (m *Metadata) UnmarshalMsg(bts []byte) (o []byte, err error) {
	var sz uint32
	sz, bts, err = msgp.ReadArrayHeaderBytes(bts)
	if err != nil {
		return
	}
	if sz != 9 {
		err = msgp.ArrayError{Wanted: 9, Got: sz}
		return
	}
	var kind uint8
	if kind, bts, err = msgp.ReadUint8Bytes(bts); err != nil {
		return
	}
	m.Kind = Kind(kind)
	ints := []*int{
		&m.Bounds.Min.X, &m.Bounds.Min.Y, &m.Bounds.Max.X, &m.Bounds.Max.Y,
		&m.BlockSize.X, &m.BlockSize.Y, &m.Bands,
	}
	for _, p := range ints {
		if *p, bts, err = msgp.ReadIntBytes(bts); err != nil {
			return
		}
	}
	var version string
	if version, bts, err = msgp.ReadStringBytes(bts); err != nil {
		return
	}
	if m.Version, err = semver.Parse(version); err != nil {
		return
	}
	o = bts
	return
}

// Msgsize returns an upper bound on the marshaled size.
func (m *Metadata) Msgsize() int {
	return msgp.ArrayHeaderSize + msgp.Uint8Size + 7*msgp.IntSize + msgp.StringPrefixSize + len(m.Version.String())
}
