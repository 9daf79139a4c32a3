/*
Package raster describes the label and spectral rasters consumed by the merge
engine, their windowed tiles, the tile grid used to stream over them, and the
relabeling filter that applies a finished label table.
*/
package raster

import (
	"fmt"
	"image"
)

// LabelReader is a label raster that supports axis-aligned windowed reads.
type LabelReader interface {
	// Bounds returns the full extent of the raster.
	Bounds() image.Rectangle

	// ReadLabels returns the labels within r, which must lie inside Bounds().
	ReadLabels(r image.Rectangle) (*LabelTile, error)
}

// LabelWriter accepts label tiles, e.g., the output of Relabel.
type LabelWriter interface {
	Bounds() image.Rectangle
	WriteLabels(tile *LabelTile) error
}

// SpectralReader is a multi-band raster that supports axis-aligned windowed reads.
type SpectralReader interface {
	Bounds() image.Rectangle

	// NumBands returns the fixed number of components per pixel.
	NumBands() int

	// ReadSpectral returns the pixel vectors within r, which must lie inside Bounds().
	ReadSpectral(r image.Rectangle) (*SpectralTile, error)
}

// LabelTile holds row-major labels for a rectangular window.
type LabelTile struct {
	Rect image.Rectangle
	Data []uint64
}

// NewLabelTile allocates a zeroed tile covering r.
func NewLabelTile(r image.Rectangle) *LabelTile {
	return &LabelTile{
		Rect: r,
		Data: make([]uint64, r.Dx()*r.Dy()),
	}
}

// At returns the label at absolute image coordinate (x, y) without bounds checks.
func (t *LabelTile) At(x, y int) uint64 {
	return t.Data[(y-t.Rect.Min.Y)*t.Rect.Dx()+(x-t.Rect.Min.X)]
}

// Set modifies the label at absolute image coordinate (x, y).
func (t *LabelTile) Set(x, y int, label uint64) {
	t.Data[(y-t.Rect.Min.Y)*t.Rect.Dx()+(x-t.Rect.Min.X)] = label
}

func (t *LabelTile) check() error {
	if len(t.Data) != t.Rect.Dx()*t.Rect.Dy() {
		return fmt.Errorf("label tile %v has %d labels, expected %d", t.Rect, len(t.Data), t.Rect.Dx()*t.Rect.Dy())
	}
	return nil
}

// SpectralTile holds pixel-interleaved band values for a rectangular window.
type SpectralTile struct {
	Rect  image.Rectangle
	Bands int
	Data  []float64
}

// NewSpectralTile allocates a zeroed tile covering r with the given band count.
func NewSpectralTile(r image.Rectangle, bands int) *SpectralTile {
	return &SpectralTile{
		Rect:  r,
		Bands: bands,
		Data:  make([]float64, r.Dx()*r.Dy()*bands),
	}
}

// Pixel returns the band vector at absolute image coordinate (x, y).  The
// returned slice aliases the tile data.
func (t *SpectralTile) Pixel(x, y int) []float64 {
	i := ((y-t.Rect.Min.Y)*t.Rect.Dx() + (x - t.Rect.Min.X)) * t.Bands
	return t.Data[i : i+t.Bands]
}

func (t *SpectralTile) check() error {
	if expected := t.Rect.Dx() * t.Rect.Dy() * t.Bands; len(t.Data) != expected {
		return fmt.Errorf("spectral tile %v has %d values, expected %d", t.Rect, len(t.Data), expected)
	}
	return nil
}

// checkWindow returns an error if r is empty or not inside bounds.
func checkWindow(r, bounds image.Rectangle) error {
	if r.Empty() {
		return fmt.Errorf("empty read window %v", r)
	}
	if !r.In(bounds) {
		return fmt.Errorf("read window %v not within raster bounds %v", r, bounds)
	}
	return nil
}
