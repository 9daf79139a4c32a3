package blocks

import (
	"context"
	"image"
	"math/rand"
	"testing"

	"github.com/blang/semver"
	"github.com/janelia-flyem/lsms/labels"
	"github.com/janelia-flyem/lsms/lsms"
	"github.com/janelia-flyem/lsms/merge"
	"github.com/janelia-flyem/lsms/raster"
	"github.com/janelia-flyem/lsms/storage"
	"github.com/janelia-flyem/lsms/storage/badger"
)

func newTestStore(t *testing.T, compression lsms.Compression, cacheBytes int) *Store {
	kv, _, err := storage.NewStore(badger.TestConfig(true))
	if err != nil {
		t.Fatalf("can't open test store: %v", err)
	}
	t.Cleanup(func() { kv.Close() })
	return New(kv, compression, cacheBytes)
}

func randomLabels(rng *rand.Rand, bounds image.Rectangle, maxLabel int) *raster.LabelImage {
	img := raster.NewLabelImage(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			img.Set(x, y, uint64(rng.Intn(maxLabel+1)))
		}
	}
	return img
}

func checkLabelWindow(t *testing.T, r raster.LabelReader, expected *raster.LabelImage, rect image.Rectangle) {
	t.Helper()
	tile, err := r.ReadLabels(rect)
	if err != nil {
		t.Fatalf("reading %v: %v", rect, err)
	}
	if tile.Rect != rect {
		t.Fatalf("read of %v returned tile %v", rect, tile.Rect)
	}
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			if tile.At(x, y) != expected.At(x, y) {
				t.Fatalf("window %v pixel (%d,%d): got %d, expected %d", rect, x, y, tile.At(x, y), expected.At(x, y))
			}
		}
	}
}

func TestLabelRaster(t *testing.T) {
	compressions := []lsms.Compression{lsms.Uncompressed, lsms.Snappy, lsms.LZ4, lsms.Zstd}
	for _, compression := range compressions {
		t.Run(compression.String(), func(t *testing.T) {
			s := newTestStore(t, compression, 0)
			bounds := image.Rect(3, 2, 40, 29)
			rng := rand.New(rand.NewSource(1))
			expected := randomLabels(rng, bounds, 1<<40)

			lr, err := s.CreateLabels("seg", bounds, image.Pt(8, 6))
			if err != nil {
				t.Fatal(err)
			}
			blank, err := lr.ReadLabels(image.Rect(5, 5, 9, 9))
			if err != nil {
				t.Fatal(err)
			}
			for _, label := range blank.Data {
				if label != 0 {
					t.Fatalf("unwritten raster returned label %d", label)
				}
			}

			grid, err := raster.NewTileGridBySize(bounds, 10, 7)
			if err != nil {
				t.Fatal(err)
			}
			for _, rect := range grid.Tiles() {
				tile, err := expected.ReadLabels(rect)
				if err != nil {
					t.Fatal(err)
				}
				if err := lr.WriteLabels(tile); err != nil {
					t.Fatal(err)
				}
			}

			reopened, err := s.OpenLabels("seg")
			if err != nil {
				t.Fatal(err)
			}
			for _, rect := range []image.Rectangle{bounds, image.Rect(3, 2, 4, 3), image.Rect(10, 7, 33, 21), image.Rect(39, 28, 40, 29)} {
				checkLabelWindow(t, reopened, expected, rect)
			}
			if _, err := reopened.ReadLabels(image.Rect(0, 0, 5, 5)); err == nil {
				t.Errorf("expected error reading outside raster bounds")
			}

			coords, err := s.BlockCoords("seg")
			if err != nil {
				t.Fatal(err)
			}
			if len(coords) != 5*5 {
				t.Errorf("got %d stored blocks, expected 25", len(coords))
			}
		})
	}
}

func TestSpectralRaster(t *testing.T) {
	s := newTestStore(t, lsms.Snappy, 1<<20)
	bounds := image.Rect(0, 0, 13, 9)
	img, err := raster.NewSpectralImage(bounds, 3)
	if err != nil {
		t.Fatal(err)
	}
	for y := 0; y < 9; y++ {
		for x := 0; x < 13; x++ {
			img.SetPixel(x, y, float64(x), float64(y), float64(x*y)+0.5)
		}
	}
	sr, err := s.CreateSpectral("image", bounds, image.Pt(4, 4), 3)
	if err != nil {
		t.Fatal(err)
	}
	whole, _ := img.ReadSpectral(bounds)
	if err := sr.WriteSpectral(whole); err != nil {
		t.Fatal(err)
	}
	if sr.NumBands() != 3 {
		t.Errorf("got %d bands, expected 3", sr.NumBands())
	}
	for pass := 0; pass < 2; pass++ {
		tile, err := sr.ReadSpectral(image.Rect(2, 3, 11, 8))
		if err != nil {
			t.Fatal(err)
		}
		for y := 3; y < 8; y++ {
			for x := 2; x < 11; x++ {
				p := tile.Pixel(x, y)
				if p[0] != float64(x) || p[1] != float64(y) || p[2] != float64(x*y)+0.5 {
					t.Fatalf("pixel (%d,%d) = %v", x, y, p)
				}
			}
		}
	}
	if hits, _ := s.CacheStats(); hits == 0 {
		t.Errorf("expected cache hits on second read")
	}
	wrongBands := raster.NewSpectralTile(image.Rect(0, 0, 1, 1), 2)
	if err := sr.WriteSpectral(wrongBands); err == nil {
		t.Errorf("expected error writing tile with wrong band count")
	}
	if _, err := s.OpenLabels("image"); err == nil {
		t.Errorf("expected error opening spectral raster as labels")
	}
}

func TestPartialWrite(t *testing.T) {
	s := newTestStore(t, lsms.LZ4, 1<<20)
	bounds := image.Rect(0, 0, 10, 10)
	lr, err := s.CreateLabels("seg", bounds, image.Pt(4, 4))
	if err != nil {
		t.Fatal(err)
	}
	expected := raster.NewLabelImage(bounds)
	for i, rect := range []image.Rectangle{bounds, image.Rect(1, 1, 3, 6), image.Rect(5, 2, 9, 3)} {
		tile := raster.NewLabelTile(rect)
		for j := range tile.Data {
			tile.Data[j] = uint64(i*100 + j)
		}
		if err := lr.WriteLabels(tile); err != nil {
			t.Fatal(err)
		}
		if err := expected.WriteLabels(tile); err != nil {
			t.Fatal(err)
		}
		checkLabelWindow(t, lr, expected, bounds)
	}
}

func TestMergeOverBlocks(t *testing.T) {
	s := newTestStore(t, lsms.Zstd, 4<<20)
	bounds := image.Rect(0, 0, 30, 20)
	rng := rand.New(rand.NewSource(7))
	lblImg := randomLabels(rng, bounds, 80)
	specImg, err := raster.NewSpectralImage(bounds, 2)
	if err != nil {
		t.Fatal(err)
	}
	for y := 0; y < 20; y++ {
		for x := 0; x < 30; x++ {
			specImg.SetPixel(x, y, float64(rng.Intn(100)), float64(rng.Intn(100)))
		}
	}

	lr, err := s.CreateLabels("seg", bounds, image.Pt(16, 16))
	if err != nil {
		t.Fatal(err)
	}
	whole, _ := lblImg.ReadLabels(bounds)
	if err := lr.WriteLabels(whole); err != nil {
		t.Fatal(err)
	}
	sr, err := s.CreateSpectral("image", bounds, image.Pt(16, 16), 2)
	if err != nil {
		t.Fatal(err)
	}
	spectral, _ := specImg.ReadSpectral(bounds)
	if err := sr.WriteSpectral(spectral); err != nil {
		t.Fatal(err)
	}

	cfg := merge.Config{MinSize: 5, TileWidth: 7, TileHeight: 9, Workers: 4}
	run := func(lr raster.LabelReader, sr raster.SpectralReader) *merge.Result {
		m, err := merge.New(lr, sr, cfg)
		if err != nil {
			t.Fatal(err)
		}
		result, err := m.Run(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		return result
	}
	fromBlocks := run(lr, sr)
	fromMemory := run(lblImg, specImg)
	if !fromBlocks.LUT.Equal(fromMemory.LUT) {
		t.Fatalf("merge over blocks gave a different LUT than merge in memory")
	}

	if err := s.PutLUT("seg", fromBlocks.LUT); err != nil {
		t.Fatal(err)
	}
	lut, err := s.GetLUT("seg")
	if err != nil {
		t.Fatal(err)
	}
	if !lut.Equal(fromMemory.LUT) {
		t.Errorf("stored LUT differs after reload")
	}

	out, err := s.CreateLabels("merged", bounds, image.Pt(16, 16))
	if err != nil {
		t.Fatal(err)
	}
	grid, _ := raster.NewTileGridBySize(bounds, 11, 11)
	if err := raster.Relabel(lr, lut, grid, out); err != nil {
		t.Fatal(err)
	}
	counts, err := raster.CountLabels(out, grid)
	if err != nil {
		t.Fatal(err)
	}
	for label := uint64(1); label <= fromMemory.Stats.MaxLabel(); label++ {
		if counts[label] != fromMemory.Stats.Population(label) {
			t.Errorf("label %d: %d pixels in relabeled raster, population %d", label, counts[label], fromMemory.Stats.Population(label))
		}
	}
}

func TestStoreErrors(t *testing.T) {
	s := newTestStore(t, lsms.Uncompressed, 0)
	if _, err := s.OpenLabels("missing"); err == nil {
		t.Errorf("expected error opening missing raster")
	}
	if _, err := s.CreateLabels("bad\x00name", image.Rect(0, 0, 2, 2), image.Pt(2, 2)); err == nil {
		t.Errorf("expected error for name with zero byte")
	}
	if _, err := s.CreateLabels("empty", image.Rect(0, 0, 0, 2), image.Pt(2, 2)); err == nil {
		t.Errorf("expected error for empty bounds")
	}
	if _, err := s.CreateSpectral("nobands", image.Rect(0, 0, 2, 2), image.Pt(2, 2), 0); err == nil {
		t.Errorf("expected error for zero bands")
	}
	if _, err := s.GetLUT("missing"); err == nil {
		t.Errorf("expected error for missing LUT")
	}

	meta := Metadata{Kind: LabelKind, Bounds: image.Rect(0, 0, 2, 2), BlockSize: image.Pt(2, 2)}
	meta.Version = semver.MustParse("2.1.0")
	buf, err := meta.MarshalMsg(nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.kv.Put(nameKey(keyMetadata, "future"), buf); err != nil {
		t.Fatal(err)
	}
	if _, err := s.OpenLabels("future"); err == nil {
		t.Errorf("expected error opening raster with newer major format")
	}

	if _, err := s.CreateLabels("seg", image.Rect(0, 0, 4, 4), image.Pt(2, 2)); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete("seg"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.OpenLabels("seg"); err == nil {
		t.Errorf("expected error opening deleted raster")
	}
}

func TestLUTRoundTrip(t *testing.T) {
	s := newTestStore(t, lsms.Snappy, 0)
	lut := labels.NewLUT(20)
	lut.Union(4, 9)
	lut.Union(9, 17)
	lut.Union(2, 3)
	lut.Compact()
	if err := s.PutLUT("run", lut); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetLUT("run")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(lut) || got.Find(17) != 4 || got.Find(3) != 2 {
		t.Errorf("LUT changed after round trip")
	}
}
