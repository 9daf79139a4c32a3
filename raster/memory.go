package raster

import (
	"fmt"
	"image"
)

// LabelImage is an in-memory label raster.
type LabelImage struct {
	rect image.Rectangle
	data []uint64
}

// NewLabelImage returns a zeroed label raster covering r.
func NewLabelImage(r image.Rectangle) *LabelImage {
	return &LabelImage{rect: r, data: make([]uint64, r.Dx()*r.Dy())}
}

// NewLabelImageFromRows builds a label raster at the origin from rows of labels.
// All rows must have the same length.
func NewLabelImageFromRows(rows [][]uint64) (*LabelImage, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("can't build label image from empty rows")
	}
	width := len(rows[0])
	img := NewLabelImage(image.Rect(0, 0, width, len(rows)))
	for y, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("row %d has %d labels, expected %d", y, len(row), width)
		}
		copy(img.data[y*width:], row)
	}
	return img, nil
}

func (img *LabelImage) Bounds() image.Rectangle {
	return img.rect
}

// At returns the label at (x, y).
func (img *LabelImage) At(x, y int) uint64 {
	return img.data[(y-img.rect.Min.Y)*img.rect.Dx()+(x-img.rect.Min.X)]
}

// Set modifies the label at (x, y).
func (img *LabelImage) Set(x, y int, label uint64) {
	img.data[(y-img.rect.Min.Y)*img.rect.Dx()+(x-img.rect.Min.X)] = label
}

// ReadLabels copies the labels within r into a new tile.
func (img *LabelImage) ReadLabels(r image.Rectangle) (*LabelTile, error) {
	if err := checkWindow(r, img.rect); err != nil {
		return nil, err
	}
	tile := NewLabelTile(r)
	width := r.Dx()
	for y := r.Min.Y; y < r.Max.Y; y++ {
		src := (y-img.rect.Min.Y)*img.rect.Dx() + (r.Min.X - img.rect.Min.X)
		copy(tile.Data[(y-r.Min.Y)*width:(y-r.Min.Y+1)*width], img.data[src:src+width])
	}
	return tile, nil
}

// WriteLabels copies a tile into the image.
func (img *LabelImage) WriteLabels(tile *LabelTile) error {
	if err := tile.check(); err != nil {
		return err
	}
	if err := checkWindow(tile.Rect, img.rect); err != nil {
		return err
	}
	width := tile.Rect.Dx()
	for y := tile.Rect.Min.Y; y < tile.Rect.Max.Y; y++ {
		dst := (y-img.rect.Min.Y)*img.rect.Dx() + (tile.Rect.Min.X - img.rect.Min.X)
		copy(img.data[dst:dst+width], tile.Data[(y-tile.Rect.Min.Y)*width:(y-tile.Rect.Min.Y+1)*width])
	}
	return nil
}

// SpectralImage is an in-memory multi-band raster with pixel-interleaved values.
type SpectralImage struct {
	rect  image.Rectangle
	bands int
	data  []float64
}

// NewSpectralImage returns a zeroed spectral raster covering r.
func NewSpectralImage(r image.Rectangle, bands int) (*SpectralImage, error) {
	if bands <= 0 {
		return nil, fmt.Errorf("spectral image needs at least one band, got %d", bands)
	}
	return &SpectralImage{
		rect:  r,
		bands: bands,
		data:  make([]float64, r.Dx()*r.Dy()*bands),
	}, nil
}

func (img *SpectralImage) Bounds() image.Rectangle {
	return img.rect
}

func (img *SpectralImage) NumBands() int {
	return img.bands
}

// Pixel returns the band vector at (x, y).  The slice aliases image memory.
func (img *SpectralImage) Pixel(x, y int) []float64 {
	i := ((y-img.rect.Min.Y)*img.rect.Dx() + (x - img.rect.Min.X)) * img.bands
	return img.data[i : i+img.bands]
}

// SetPixel copies values into the band vector at (x, y).
func (img *SpectralImage) SetPixel(x, y int, values ...float64) {
	copy(img.Pixel(x, y), values)
}

// ReadSpectral copies the pixel vectors within r into a new tile.
func (img *SpectralImage) ReadSpectral(r image.Rectangle) (*SpectralTile, error) {
	if err := checkWindow(r, img.rect); err != nil {
		return nil, err
	}
	tile := NewSpectralTile(r, img.bands)
	rowLen := r.Dx() * img.bands
	for y := r.Min.Y; y < r.Max.Y; y++ {
		src := ((y-img.rect.Min.Y)*img.rect.Dx() + (r.Min.X - img.rect.Min.X)) * img.bands
		dst := (y - r.Min.Y) * rowLen
		copy(tile.Data[dst:dst+rowLen], img.data[src:src+rowLen])
	}
	return tile, nil
}
