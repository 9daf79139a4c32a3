package raster

import (
	"fmt"
	"image"
)

// TileGrid partitions a raster extent into row-major tiles of equal nominal
// size.  Tiles on the right and bottom edges are clipped to the extent.
type TileGrid struct {
	Bounds   image.Rectangle
	TileSize image.Point

	nx, ny int
}

// NewTileGridBySize returns a grid of tiles with the given pixel dimensions.
func NewTileGridBySize(bounds image.Rectangle, tileWidth, tileHeight int) (TileGrid, error) {
	if bounds.Empty() {
		return TileGrid{}, fmt.Errorf("can't tile empty extent %v", bounds)
	}
	if tileWidth <= 0 || tileHeight <= 0 {
		return TileGrid{}, fmt.Errorf("tile size must be positive, got %d x %d", tileWidth, tileHeight)
	}
	return TileGrid{
		Bounds:   bounds,
		TileSize: image.Pt(tileWidth, tileHeight),
		nx:       ceilDiv(bounds.Dx(), tileWidth),
		ny:       ceilDiv(bounds.Dy(), tileHeight),
	}, nil
}

// NewTileGridByCount returns a grid with the given number of tiles along each
// axis.  Tile size is computed by ceiling division, so fewer tiles may result
// when the count exceeds what the extent can hold.
func NewTileGridByCount(bounds image.Rectangle, tilesX, tilesY int) (TileGrid, error) {
	if bounds.Empty() {
		return TileGrid{}, fmt.Errorf("can't tile empty extent %v", bounds)
	}
	if tilesX <= 0 || tilesY <= 0 {
		return TileGrid{}, fmt.Errorf("tile counts must be positive, got %d x %d", tilesX, tilesY)
	}
	return NewTileGridBySize(bounds, ceilDiv(bounds.Dx(), tilesX), ceilDiv(bounds.Dy(), tilesY))
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// NumTiles returns the number of tiles along x and y.
func (g TileGrid) NumTiles() (nx, ny int) {
	return g.nx, g.ny
}

// Len returns the total number of tiles.
func (g TileGrid) Len() int {
	return g.nx * g.ny
}

// Tile returns the i-th tile in row-major order.
func (g TileGrid) Tile(i int) image.Rectangle {
	col, row := i%g.nx, i/g.nx
	min := g.Bounds.Min.Add(image.Pt(col*g.TileSize.X, row*g.TileSize.Y))
	return image.Rectangle{Min: min, Max: min.Add(g.TileSize)}.Intersect(g.Bounds)
}

// Tiles returns every tile in row-major order.  Together they cover Bounds
// exactly once.
func (g TileGrid) Tiles() []image.Rectangle {
	tiles := make([]image.Rectangle, g.Len())
	for i := range tiles {
		tiles[i] = g.Tile(i)
	}
	return tiles
}

// Padded grows tile by pad pixels on every side, clipped to the grid bounds.
func (g TileGrid) Padded(tile image.Rectangle, pad int) image.Rectangle {
	return tile.Inset(-pad).Intersect(g.Bounds)
}

func (g TileGrid) String() string {
	return fmt.Sprintf("%d x %d tiles of %d x %d over %v", g.nx, g.ny, g.TileSize.X, g.TileSize.Y, g.Bounds)
}
