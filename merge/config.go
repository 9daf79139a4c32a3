package merge

import (
	"image"

	"github.com/janelia-flyem/lsms/raster"
	"github.com/pkg/errors"
)

const (
	// DefaultTileSize is used along an axis when neither tile size nor tile
	// count is given.
	DefaultTileSize = 500

	// DefaultMaxLabel bounds the dense label tables.
	DefaultMaxLabel = 1 << 32
)

// Config sets the merge threshold and how the rasters are tiled.  Tiling is
// given either by pixel size (TileWidth, TileHeight) or by tile counts
// (TilesX, TilesY); size wins if both are set.
type Config struct {
	// MinSize is the population below which regions are merged.  A value of
	// 1 leaves every region alone.
	MinSize int `toml:"minsize"`

	TileWidth  int `toml:"tilesizex"`
	TileHeight int `toml:"tilesizey"`
	TilesX     int `toml:"ntilesx"`
	TilesY     int `toml:"ntilesy"`

	// Workers bounds the number of tiles scanned concurrently.  0 means
	// lsms.NumCPU.
	Workers int `toml:"workers"`

	// MaxLabel is the largest label the dense tables will be sized for.
	// 0 means DefaultMaxLabel.
	MaxLabel uint64 `toml:"maxlabel"`
}

func (c Config) maxLabel() uint64 {
	if c.MaxLabel == 0 {
		return DefaultMaxLabel
	}
	return c.MaxLabel
}

// TileGrid returns the grid described by the configuration over bounds.
func (c Config) TileGrid(bounds image.Rectangle) (raster.TileGrid, error) {
	var grid raster.TileGrid
	var err error
	switch {
	case c.TileWidth != 0 || c.TileHeight != 0:
		grid, err = raster.NewTileGridBySize(bounds, c.TileWidth, c.TileHeight)
	case c.TilesX != 0 || c.TilesY != 0:
		grid, err = raster.NewTileGridByCount(bounds, c.TilesX, c.TilesY)
	default:
		grid, err = raster.NewTileGridBySize(bounds, DefaultTileSize, DefaultTileSize)
	}
	if err != nil {
		return grid, errors.Wrap(ErrConfig, err.Error())
	}
	return grid, nil
}

// Validate checks the settings that don't depend on the rasters.
func (c Config) Validate() error {
	if c.MinSize <= 0 {
		return errors.Wrapf(ErrConfig, "minimum region size must be positive, got %d", c.MinSize)
	}
	if c.Workers < 0 {
		return errors.Wrapf(ErrConfig, "worker count can't be negative, got %d", c.Workers)
	}
	if c.TileWidth < 0 || c.TileHeight < 0 || c.TilesX < 0 || c.TilesY < 0 {
		return errors.Wrapf(ErrConfig, "tiling can't be negative: size %d x %d, count %d x %d",
			c.TileWidth, c.TileHeight, c.TilesX, c.TilesY)
	}
	return nil
}
