/*
Package config loads merge run settings from a TOML file.

	[merge]
	minsize = 50
	tilesizex = 500
	tilesizey = 500
	workers = 8

	[logging]
	logfile = "lsms.log"
	max_log_size = 500 # MB
	max_log_age = 30   # days

	[store]
	engine = "badger"
	path = "merge-store"

	[blocks]
	compression = "zstd"
	blocksizex = 256
	blocksizey = 256

	[cache]
	blockcache_mb = 512

Relative paths are taken relative to the TOML file's directory.
*/
package config

import (
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/janelia-flyem/lsms/blocks"
	"github.com/janelia-flyem/lsms/lsms"
	"github.com/janelia-flyem/lsms/merge"
	"github.com/janelia-flyem/lsms/storage"
)

// DefaultBlockCacheMB is the decoded block cache size used when none is set.
const DefaultBlockCacheMB = 256

type blocksConfig struct {
	Compression string `toml:"compression"`
	BlockSizeX  int    `toml:"blocksizex"`
	BlockSizeY  int    `toml:"blocksizey"`
}

type cacheConfig struct {
	BlockCacheMB int `toml:"blockcache_mb"`
}

// Config is the full set of settings for a merge run.
type Config struct {
	Merge   merge.Config
	Logging lsms.LogConfig
	Store   storage.Config
	Blocks  blocksConfig
	Cache   cacheConfig
}

// Default returns the settings used without a TOML file.
func Default() Config {
	return Config{
		Merge: merge.Config{MinSize: 1},
		Store: storage.Config{Engine: "badger"},
		Blocks: blocksConfig{
			Compression: "snappy",
			BlockSizeX:  blocks.DefaultBlockSize.X,
			BlockSizeY:  blocks.DefaultBlockSize.Y,
		},
		Cache: cacheConfig{BlockCacheMB: DefaultBlockCacheMB},
	}
}

// Load returns the defaults overridden by the given TOML file.
func Load(filename string) (Config, error) {
	c := Default()
	if filename == "" {
		return c, fmt.Errorf("no TOML configuration file provided")
	}
	md, err := toml.DecodeFile(filename, &c)
	if err != nil {
		return c, fmt.Errorf("could not decode TOML config: %v", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return c, fmt.Errorf("unknown settings in %s: %s", filename, strings.Join(keys, ", "))
	}
	if err := c.convertPathsToAbsolute(filename); err != nil {
		return c, fmt.Errorf("could not convert relative paths to absolute paths in TOML config: %v", err)
	}
	if _, err := c.Compression(); err != nil {
		return c, err
	}
	lsms.Debugf("Loaded config from %s: %+v\n", filename, c)
	return c, nil
}

// Some settings in the TOML can be given as relative paths.
// This function converts them in-place to absolute paths,
// assuming the given paths were relative to the TOML file's own directory.
func (c *Config) convertPathsToAbsolute(configPath string) error {
	var err error
	configDir := filepath.Dir(configPath)

	// [logging].logfile
	if c.Logging.Logfile, err = lsms.ConvertToAbsolute(c.Logging.Logfile, configDir); err != nil {
		return fmt.Errorf("error converting logfile setting to absolute path: %v", err)
	}

	// [store].path
	if c.Store.Path, err = lsms.ConvertToAbsolute(c.Store.Path, configDir); err != nil {
		return fmt.Errorf("error converting store path to absolute path: %v", err)
	}
	return nil
}

// Compression returns the parsed block compression.
func (c Config) Compression() (lsms.Compression, error) {
	return lsms.ParseCompression(c.Blocks.Compression)
}

// BlockSize returns the block extent for stored rasters.
func (c Config) BlockSize() image.Point {
	size := image.Pt(c.Blocks.BlockSizeX, c.Blocks.BlockSizeY)
	if size.X <= 0 {
		size.X = blocks.DefaultBlockSize.X
	}
	if size.Y <= 0 {
		size.Y = blocks.DefaultBlockSize.Y
	}
	return size
}

// CacheBytes returns the decoded block cache size in bytes.
func (c Config) CacheBytes() int {
	return c.Cache.BlockCacheMB * lsms.Mega
}
