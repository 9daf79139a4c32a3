package raster

import "fmt"

// Mapper resolves a label to the label it should be written as.
type Mapper interface {
	Canonical(label uint64) uint64
}

// Relabel streams src tile by tile, substitutes every label through m, and
// writes the result to dst.  src and dst must share the grid's bounds.
func Relabel(src LabelReader, m Mapper, grid TileGrid, dst LabelWriter) error {
	if src.Bounds() != grid.Bounds || dst.Bounds() != grid.Bounds {
		return fmt.Errorf("relabel extents differ: source %v, destination %v, grid %v",
			src.Bounds(), dst.Bounds(), grid.Bounds)
	}
	for _, r := range grid.Tiles() {
		tile, err := src.ReadLabels(r)
		if err != nil {
			return fmt.Errorf("reading labels %v for relabel: %v", r, err)
		}
		for i, label := range tile.Data {
			tile.Data[i] = m.Canonical(label)
		}
		if err := dst.WriteLabels(tile); err != nil {
			return fmt.Errorf("writing relabeled tile %v: %v", r, err)
		}
	}
	return nil
}

// CountLabels returns the pixel count of every label in src, including 0.
func CountLabels(src LabelReader, grid TileGrid) (map[uint64]uint64, error) {
	counts := make(map[uint64]uint64)
	for _, r := range grid.Tiles() {
		tile, err := src.ReadLabels(r)
		if err != nil {
			return nil, err
		}
		for _, label := range tile.Data {
			counts[label]++
		}
	}
	return counts, nil
}
