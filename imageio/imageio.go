// Package imageio converts between image files and the in-memory rasters
// used for merging.
package imageio

import (
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/janelia-flyem/lsms/lsms"
	"github.com/janelia-flyem/lsms/raster"
	"golang.org/x/image/tiff"
)

// MaxExportLabel is the largest label that fits a 16-bit output image.
const MaxExportLabel = math.MaxUint16

// LoadLabels reads an 8- or 16-bit gray image as a label raster.
func LoadLabels(filename string) (*raster.LabelImage, error) {
	img, err := imaging.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("can't read label image %q: %v", filename, err)
	}
	bounds := img.Bounds()
	out := raster.NewLabelImage(bounds)
	switch src := img.(type) {
	case *image.Gray16:
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				out.Set(x, y, uint64(src.Gray16At(x, y).Y))
			}
		}
	case *image.Gray:
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				out.Set(x, y, uint64(src.GrayAt(x, y).Y))
			}
		}
	default:
		return nil, fmt.Errorf("label image %q must be 8- or 16-bit gray, got %T", filename, img)
	}
	lsms.Debugf("Loaded %v label image from %s\n", bounds, filename)
	return out, nil
}

// LoadSpectral reads an image as a spectral raster.  Gray images give one
// band; any other image gives R, G and B bands of its 8-bit NRGBA form.
func LoadSpectral(filename string) (*raster.SpectralImage, error) {
	img, err := imaging.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("can't read spectral image %q: %v", filename, err)
	}
	bounds := img.Bounds()
	switch src := img.(type) {
	case *image.Gray16:
		out, err := raster.NewSpectralImage(bounds, 1)
		if err != nil {
			return nil, err
		}
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				out.SetPixel(x, y, float64(src.Gray16At(x, y).Y))
			}
		}
		return out, nil
	case *image.Gray:
		out, err := raster.NewSpectralImage(bounds, 1)
		if err != nil {
			return nil, err
		}
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				out.SetPixel(x, y, float64(src.GrayAt(x, y).Y))
			}
		}
		return out, nil
	}

	// imaging.Clone always returns an image anchored at (0,0).
	nrgba := imaging.Clone(img)
	out, err := raster.NewSpectralImage(bounds, 3)
	if err != nil {
		return nil, err
	}
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := nrgba.NRGBAAt(x-bounds.Min.X, y-bounds.Min.Y)
			out.SetPixel(x, y, float64(c.R), float64(c.G), float64(c.B))
		}
	}
	lsms.Debugf("Loaded %v RGB spectral image from %s\n", bounds, filename)
	return out, nil
}

// SaveLabels writes src as a 16-bit gray TIFF or PNG, chosen by the file
// extension.  Labels above MaxExportLabel are an error.
func SaveLabels(filename string, src raster.LabelReader, grid raster.TileGrid) error {
	img := image.NewGray16(src.Bounds())
	for _, r := range grid.Tiles() {
		tile, err := src.ReadLabels(r)
		if err != nil {
			return err
		}
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				label := tile.At(x, y)
				if label > MaxExportLabel {
					return fmt.Errorf("label %d at (%d,%d) doesn't fit a 16-bit image", label, x, y)
				}
				i := img.PixOffset(x, y)
				img.Pix[i] = uint8(label >> 8)
				img.Pix[i+1] = uint8(label)
			}
		}
	}

	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".tif", ".tiff":
		f, err := os.Create(filename)
		if err != nil {
			return err
		}
		if err := tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate}); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	case ".png":
		return imaging.Save(img, filename)
	default:
		return fmt.Errorf("can't write labels to %q: extension %q isn't .tif, .tiff or .png", filename, ext)
	}
}
