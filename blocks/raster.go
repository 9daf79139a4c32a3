package blocks

import (
	"encoding/binary"
	"fmt"
	"image"
	"math"

	"github.com/janelia-flyem/lsms/raster"
)

// blockOp is called for every block intersecting a window with the block
// coordinate and the part of the window inside that block.
type blockOp func(b image.Point, overlap image.Rectangle) error

func (m Metadata) forBlocks(r image.Rectangle, op blockOp) error {
	if !r.In(m.Bounds) {
		return fmt.Errorf("window %v not inside raster bounds %v", r, m.Bounds)
	}
	if r.Empty() {
		return nil
	}
	min, max := m.blocksCovering(r)
	for by := min.Y; by <= max.Y; by++ {
		for bx := min.X; bx <= max.X; bx++ {
			b := image.Pt(bx, by)
			if err := op(b, m.blockRect(b).Intersect(r)); err != nil {
				return err
			}
		}
	}
	return nil
}

// offset returns the pixel index of p within block b.
func (m Metadata) offset(b, p image.Point) int {
	rect := m.blockRect(b)
	return (p.Y-rect.Min.Y)*m.BlockSize.X + (p.X - rect.Min.X)
}

// writeBlocks applies fill to a decoded copy of every block touched by r and
// stores the results in one batch.  Blocks partly covered by r are read first.
func (s *Store) writeBlocks(name string, meta Metadata, r image.Rectangle, fill func(b image.Point, overlap image.Rectangle, data []byte)) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	batch := s.kv.NewBatch()
	err := meta.forBlocks(r, func(b image.Point, overlap image.Rectangle) error {
		data := make([]byte, meta.blockBytes())
		if overlap != meta.blockRect(b).Intersect(meta.Bounds) {
			old, err := s.getBlock(name, meta, b)
			if err != nil {
				return err
			}
			copy(data, old)
		}
		fill(b, overlap, data)
		return s.putBlock(batch, name, b, data)
	})
	if err != nil {
		return err
	}
	return batch.Commit()
}

// LabelRaster is a stored label image.  It implements raster.LabelReader
// and raster.LabelWriter.
type LabelRaster struct {
	s    *Store
	name string
	meta Metadata
}

// CreateLabels records a new, all-background label raster.  An existing
// raster of the same name is replaced.
func (s *Store) CreateLabels(name string, bounds image.Rectangle, blockSize image.Point) (*LabelRaster, error) {
	if err := s.replace(name); err != nil {
		return nil, err
	}
	meta := Metadata{Kind: LabelKind, Bounds: bounds, BlockSize: blockSize}
	if err := s.putMetadata(name, meta); err != nil {
		return nil, err
	}
	return s.OpenLabels(name)
}

// OpenLabels returns a previously created label raster.
func (s *Store) OpenLabels(name string) (*LabelRaster, error) {
	meta, err := s.Metadata(name)
	if err != nil {
		return nil, err
	}
	if meta.Kind != LabelKind {
		return nil, fmt.Errorf("raster %q holds %s, not labels", name, meta.Kind)
	}
	return &LabelRaster{s: s, name: name, meta: meta}, nil
}

func (s *Store) replace(name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if _, err := s.Metadata(name); err != nil {
		return nil
	}
	return s.Delete(name)
}

func (r *LabelRaster) Bounds() image.Rectangle {
	return r.meta.Bounds
}

func (r *LabelRaster) String() string {
	return fmt.Sprintf("label raster %q %v in %v blocks", r.name, r.meta.Bounds, r.meta.BlockSize)
}

// ReadLabels assembles the window from every block it intersects.  Blocks
// never written read as background.
func (r *LabelRaster) ReadLabels(rect image.Rectangle) (*raster.LabelTile, error) {
	tile := raster.NewLabelTile(rect)
	err := r.meta.forBlocks(rect, func(b image.Point, overlap image.Rectangle) error {
		data, err := r.s.getBlock(r.name, r.meta, b)
		if err != nil || data == nil {
			return err
		}
		for y := overlap.Min.Y; y < overlap.Max.Y; y++ {
			i := r.meta.offset(b, image.Pt(overlap.Min.X, y)) * 8
			for x := overlap.Min.X; x < overlap.Max.X; x++ {
				tile.Set(x, y, binary.LittleEndian.Uint64(data[i:]))
				i += 8
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tile, nil
}

// WriteLabels stores the tile, splitting it across blocks.
func (r *LabelRaster) WriteLabels(tile *raster.LabelTile) error {
	return r.s.writeBlocks(r.name, r.meta, tile.Rect, func(b image.Point, overlap image.Rectangle, data []byte) {
		for y := overlap.Min.Y; y < overlap.Max.Y; y++ {
			i := r.meta.offset(b, image.Pt(overlap.Min.X, y)) * 8
			for x := overlap.Min.X; x < overlap.Max.X; x++ {
				binary.LittleEndian.PutUint64(data[i:], tile.At(x, y))
				i += 8
			}
		}
	})
}

// SpectralRaster is a stored multi-band image.  It implements
// raster.SpectralReader.
type SpectralRaster struct {
	s    *Store
	name string
	meta Metadata
}

// CreateSpectral records a new, all-zero spectral raster.  An existing
// raster of the same name is replaced.
func (s *Store) CreateSpectral(name string, bounds image.Rectangle, blockSize image.Point, bands int) (*SpectralRaster, error) {
	if err := s.replace(name); err != nil {
		return nil, err
	}
	meta := Metadata{Kind: SpectralKind, Bounds: bounds, BlockSize: blockSize, Bands: bands}
	if err := s.putMetadata(name, meta); err != nil {
		return nil, err
	}
	return s.OpenSpectral(name)
}

// OpenSpectral returns a previously created spectral raster.
func (s *Store) OpenSpectral(name string) (*SpectralRaster, error) {
	meta, err := s.Metadata(name)
	if err != nil {
		return nil, err
	}
	if meta.Kind != SpectralKind {
		return nil, fmt.Errorf("raster %q holds %s, not spectral values", name, meta.Kind)
	}
	return &SpectralRaster{s: s, name: name, meta: meta}, nil
}

func (r *SpectralRaster) Bounds() image.Rectangle {
	return r.meta.Bounds
}

func (r *SpectralRaster) NumBands() int {
	return r.meta.Bands
}

// ReadSpectral assembles the window from every block it intersects.
func (r *SpectralRaster) ReadSpectral(rect image.Rectangle) (*raster.SpectralTile, error) {
	tile := raster.NewSpectralTile(rect, r.meta.Bands)
	err := r.meta.forBlocks(rect, func(b image.Point, overlap image.Rectangle) error {
		data, err := r.s.getBlock(r.name, r.meta, b)
		if err != nil || data == nil {
			return err
		}
		for y := overlap.Min.Y; y < overlap.Max.Y; y++ {
			i := r.meta.offset(b, image.Pt(overlap.Min.X, y)) * r.meta.pixelBytes()
			for x := overlap.Min.X; x < overlap.Max.X; x++ {
				px := tile.Pixel(x, y)
				for j := range px {
					px[j] = math.Float64frombits(binary.LittleEndian.Uint64(data[i:]))
					i += 8
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tile, nil
}

// WriteSpectral stores the tile, splitting it across blocks.
func (r *SpectralRaster) WriteSpectral(tile *raster.SpectralTile) error {
	if tile.Bands != r.meta.Bands {
		return fmt.Errorf("tile has %d bands, raster %q has %d", tile.Bands, r.name, r.meta.Bands)
	}
	return r.s.writeBlocks(r.name, r.meta, tile.Rect, func(b image.Point, overlap image.Rectangle, data []byte) {
		for y := overlap.Min.Y; y < overlap.Max.Y; y++ {
			i := r.meta.offset(b, image.Pt(overlap.Min.X, y)) * r.meta.pixelBytes()
			for x := overlap.Min.X; x < overlap.Max.X; x++ {
				for _, v := range tile.Pixel(x, y) {
					binary.LittleEndian.PutUint64(data[i:], math.Float64bits(v))
					i += 8
				}
			}
		}
	})
}
