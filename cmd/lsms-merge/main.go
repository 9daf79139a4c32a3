// Command-line merge of small regions in a label image.
// Loads a label image and a spectral image, merges every region below the
// minimum size into its closest neighbor, and writes the LUT and relabeled image.

package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"log"
	"os"
	"os/signal"
	"runtime/pprof"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/janelia-flyem/lsms/blocks"
	"github.com/janelia-flyem/lsms/config"
	"github.com/janelia-flyem/lsms/imageio"
	"github.com/janelia-flyem/lsms/lsms"
	"github.com/janelia-flyem/lsms/merge"
	"github.com/janelia-flyem/lsms/raster"
	"github.com/janelia-flyem/lsms/storage"
	_ "github.com/janelia-flyem/lsms/storage/badger"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Display usage if true.
	showHelp = flag.Bool("help", false, "")

	// Run in verbose mode if true.
	runVerbose = flag.Bool("verbose", false, "")

	inSpectral = flag.String("in", "", "")
	inSeg      = flag.String("inseg", "", "")
	outSeg     = flag.String("out", "", "")
	lutFile    = flag.String("lut", "", "")
	configFile = flag.String("config", "", "")
	storePath  = flag.String("store", "", "")
	metrics    = flag.String("metrics", "", "")

	minSize    = flag.Int("minsize", 0, "")
	tileWidth  = flag.Int("tilesizex", 0, "")
	tileHeight = flag.Int("tilesizey", 0, "")
	tilesX     = flag.Int("ntilesx", 0, "")
	tilesY     = flag.Int("ntilesy", 0, "")
	workers    = flag.Int("workers", 0, "")

	// Profile CPU usage using standard gotest system.
	cpuprofile = flag.String("cpuprofile", "", "")
)

const helpMessage = `
lsms-merge merges small regions of a segmentation into their closest neighbors

Usage: lsms-merge [options] -in <image> -inseg <labels>

      -in         =string   Spectral image (gray or RGB; any format imaging decodes).
      -inseg      =string   Label image (8- or 16-bit gray TIFF or PNG).
      -out        =string   Write relabeled image to this .tif or .png file.
      -lut        =string   Write the label LUT (msgpack) to this file.
      -minsize    =number   Merge regions with fewer pixels than this.
      -tilesizex  =number   Tile width in pixels.
      -tilesizey  =number   Tile height in pixels.
      -ntilesx    =number   Number of tiles across, used if no tile size is given.
      -ntilesy    =number   Number of tiles down, used if no tile size is given.
      -workers    =number   Number of tiles processed concurrently (default: all CPUs).
      -config     =string   TOML configuration file.  Flags override its settings.
      -store      =string   Path of a badger store used to process the images out of core.
      -metrics    =string   Write Prometheus metrics in text format to this file.
      -cpuprofile =string   Write CPU profile to this file.
      -verbose    (flag)    Run in verbose mode.
  -h, -help       (flag)    Show help message
`

var usage = func() {
	fmt.Print(helpMessage)
}

func main() {
	flag.BoolVar(showHelp, "h", false, "Show help message")
	flag.Usage = usage
	flag.Parse()

	if *showHelp || *inSeg == "" || *inSpectral == "" {
		flag.Usage()
		os.Exit(0)
	}

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatal(err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	// Capture ctrl+c and other interrupts to cancel remaining tile work.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		lsms.Criticalf("%v\n", err)
		lsms.Shutdown()
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	lsms.Shutdown()
}

// loadConfig returns the TOML settings, if any, with every flag given on
// the command line applied on top.
func loadConfig() (config.Config, error) {
	c := config.Default()
	if *configFile != "" {
		var err error
		if c, err = config.Load(*configFile); err != nil {
			return c, err
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "minsize":
			c.Merge.MinSize = *minSize
		case "tilesizex":
			c.Merge.TileWidth = *tileWidth
		case "tilesizey":
			c.Merge.TileHeight = *tileHeight
		case "ntilesx":
			c.Merge.TilesX = *tilesX
		case "ntilesy":
			c.Merge.TilesY = *tilesY
		case "workers":
			c.Merge.Workers = *workers
		case "store":
			c.Store.Path = *storePath
		}
	})
	return c, nil
}

func run(ctx context.Context) error {
	c, err := loadConfig()
	if err != nil {
		return err
	}
	c.Logging.SetLogger()
	if *runVerbose {
		lsms.SetLogMode(lsms.DebugMode)
	}

	seg, err := imageio.LoadLabels(*inSeg)
	if err != nil {
		return err
	}
	spectral, err := imageio.LoadSpectral(*inSpectral)
	if err != nil {
		return err
	}

	var lr raster.LabelReader = seg
	var sr raster.SpectralReader = spectral
	var dst raster.LabelWriter
	var bs *blocks.Store
	if c.Store.Path != "" {
		kv, _, err := storage.NewStore(c.Store)
		if err != nil {
			return err
		}
		defer kv.Close()
		compression, err := c.Compression()
		if err != nil {
			return err
		}
		bs = blocks.New(kv, compression, c.CacheBytes())
		lr, sr, dst, err = importRasters(bs, seg, spectral, c.BlockSize())
		if err != nil {
			return err
		}
	} else {
		dst = raster.NewLabelImage(seg.Bounds())
	}

	m, err := merge.New(lr, sr, c.Merge)
	if err != nil {
		return err
	}
	result, err := m.Run(ctx)
	if err != nil {
		return err
	}
	for _, p := range result.Passes {
		lsms.Infof("  size %d: %d candidates, %d merged in %s\n", p.Size, p.Candidates, p.Merges, p.Elapsed)
	}
	fmt.Printf("Merged %s regions into %s (%s background pixels)\n",
		humanize.Comma(int64(result.RegionsBefore)), humanize.Comma(int64(result.RegionsAfter)),
		humanize.Comma(int64(result.Background)))

	if *lutFile != "" {
		buf, err := result.LUT.MarshalMsg(nil)
		if err != nil {
			return err
		}
		if err := os.WriteFile(*lutFile, buf, 0644); err != nil {
			return err
		}
		lsms.Infof("Wrote %s LUT to %s\n", humanize.Bytes(uint64(len(buf))), *lutFile)
	}
	if bs != nil {
		if err := bs.PutLUT("seg", result.LUT); err != nil {
			return err
		}
	}
	if *outSeg != "" {
		if err := raster.Relabel(lr, result.LUT, m.Grid(), dst); err != nil {
			return err
		}
		if err := imageio.SaveLabels(*outSeg, dst.(raster.LabelReader), m.Grid()); err != nil {
			return err
		}
		lsms.Infof("Wrote relabeled image to %s\n", *outSeg)
	}
	if *metrics != "" {
		if err := prometheus.WriteToTextfile(*metrics, prometheus.DefaultGatherer); err != nil {
			return err
		}
	}
	return nil
}

// importRasters copies the loaded images into the block store and returns
// the stored rasters plus an empty raster for the relabeled output.
func importRasters(bs *blocks.Store, seg *raster.LabelImage, spectral *raster.SpectralImage, blockSize image.Point) (raster.LabelReader, raster.SpectralReader, raster.LabelWriter, error) {
	timedLog := lsms.NewTimeLog()
	bounds := seg.Bounds()
	if spectral.Bounds() != bounds {
		return nil, nil, nil, fmt.Errorf("label image %v and spectral image %v differ in extent", bounds, spectral.Bounds())
	}
	lr, err := bs.CreateLabels("seg", bounds, blockSize)
	if err != nil {
		return nil, nil, nil, err
	}
	sr, err := bs.CreateSpectral("image", bounds, blockSize, spectral.NumBands())
	if err != nil {
		return nil, nil, nil, err
	}
	out, err := bs.CreateLabels("merged", bounds, blockSize)
	if err != nil {
		return nil, nil, nil, err
	}
	grid, err := raster.NewTileGridBySize(bounds, blockSize.X, blockSize.Y)
	if err != nil {
		return nil, nil, nil, err
	}
	for _, r := range grid.Tiles() {
		tile, err := seg.ReadLabels(r)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := lr.WriteLabels(tile); err != nil {
			return nil, nil, nil, err
		}
		stile, err := spectral.ReadSpectral(r)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := sr.WriteSpectral(stile); err != nil {
			return nil, nil, nil, err
		}
	}
	timedLog.Infof("Imported %v rasters into %d-pixel blocks", bounds, blockSize.X*blockSize.Y)
	return lr, sr, out, nil
}
